package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"git.taler.net/nexus/internal/api/middleware"
	"git.taler.net/nexus/internal/api/service"
)

// UserHandler exposes operator/account-holder principal management
// behind HTTP Basic auth.
type UserHandler struct {
	svc    service.UserService
	logger *slog.Logger
}

func NewUserHandler(logger *slog.Logger, svc service.UserService) *UserHandler {
	return &UserHandler{svc: svc, logger: logger}
}

func (h *UserHandler) Create(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, err.Error())
		return
	}
	if err := h.svc.CreateUser(c.Request.Context(), req.Username, req.Password, req.Superuser); err != nil {
		respondDomainError(c, err)
		return
	}
	RespondNoContent(c)
}

// ChangePassword lets the authenticated principal change their own password.
func (h *UserHandler) ChangePassword(c *gin.Context) {
	principal := middleware.Principal(c)
	if principal == nil {
		RespondUnauthorized(c, "")
		return
	}
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, err.Error())
		return
	}
	if err := h.svc.ChangePassword(c.Request.Context(), principal.Username, req.Password); err != nil {
		respondDomainError(c, err)
		return
	}
	RespondNoContent(c)
}
