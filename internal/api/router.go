package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"git.taler.net/nexus/internal/api/handler"
	"git.taler.net/nexus/internal/api/middleware"
	"git.taler.net/nexus/internal/domain/nexususer"
)

// setupRouter configures API routes and middleware for the application.
// Routes marked `*` in spec.md's operator surface require a superuser
// principal; every other route accepts any registered user.
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	users nexususer.Repository,
	bankConnections *handler.BankConnectionHandler,
	bankAccounts *handler.BankAccountHandler,
	facades *handler.FacadeHandler,
	userHandler *handler.UserHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Logger(logger))

	auth := middleware.BasicAuth(users, false)
	superuser := middleware.BasicAuth(users, true)

	v1 := r.Group("/", auth)
	{
		connections := v1.Group("/bank-connections")
		{
			connections.POST("", superuser, bankConnections.Create)
			connections.GET("", bankConnections.List)
			connections.POST("/:name/connect", superuser, bankConnections.Connect)
			connections.POST("/:name/confirm-keys", superuser, bankConnections.ConfirmKeys)
			connections.POST("/:name/fetch-accounts", superuser, bankConnections.FetchAccounts)
			connections.POST("/:name/import-account", superuser, bankConnections.ImportAccount)
			connections.POST("/delete-connection", superuser, bankConnections.Delete)
			connections.POST("/:name/export-backup", superuser, bankConnections.ExportBackup)
		}

		accounts := v1.Group("/bank-accounts")
		{
			accounts.GET("", bankAccounts.List)
			accounts.POST("/:account/payment-initiations", bankAccounts.CreatePaymentInitiation)
			accounts.POST("/:account/payment-initiations/:uid/submit", superuser, bankAccounts.SubmitInitiation)
			accounts.POST("/:account/submit-all-payment-initiations", superuser, bankAccounts.SubmitAllInitiations)
			accounts.POST("/:account/fetch-transactions", superuser, bankAccounts.FetchTransactions)
			accounts.GET("/:account/transactions", bankAccounts.ListTransactions)
			accounts.POST("/:account/schedule", superuser, bankAccounts.ScheduleTask)
			accounts.GET("/:account/schedule/:name", bankAccounts.GetTask)
			accounts.DELETE("/:account/schedule/:name", superuser, bankAccounts.DeleteTask)
			accounts.POST("/:account/test-camt-ingestion/:msgType", superuser, bankAccounts.TestCamtIngestion)
		}

		v1.POST("/users", superuser, userHandler.Create)
		v1.POST("/users/password", userHandler.ChangePassword)

		v1.POST("/facades", superuser, facades.Register)
		v1.GET("/facades", facades.List)
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
