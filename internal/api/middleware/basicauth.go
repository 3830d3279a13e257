package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"git.taler.net/nexus/internal/domain/nexususer"
)

const principalKey = "nexus_principal"

// BasicAuth resolves the request's HTTP Basic credentials against the
// nexususer table. requireSuperuser gates the operator-only routes
// spec.md marks with a `*`.
func BasicAuth(users nexususer.Repository, requireSuperuser bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		username, password, ok := c.Request.BasicAuth()
		if !ok {
			c.Header("WWW-Authenticate", `Basic realm="nexus"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{"code": "UNAUTHORIZED", "message": "missing credentials"}})
			return
		}

		user, err := users.GetByUsername(c.Request.Context(), username)
		if err != nil {
			var notFound nexususer.ErrNotFound
			if !errors.As(err, &notFound) {
				c.AbortWithStatusJSON(http.StatusInternalServerError, neutralInternalErrorBody)
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{"code": "UNAUTHORIZED", "message": "invalid credentials"}})
			return
		}

		if !user.CheckPassword(password) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{"code": "UNAUTHORIZED", "message": "invalid credentials"}})
			return
		}

		if requireSuperuser && !user.IsSuperuser {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": gin.H{"code": "FORBIDDEN", "message": "superuser required"}})
			return
		}

		c.Set(principalKey, user)
		c.Next()
	}
}

// Principal returns the authenticated nexususer.User set by BasicAuth.
func Principal(c *gin.Context) *nexususer.User {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	u, ok := v.(*nexususer.User)
	if !ok {
		return nil
	}
	return u
}
