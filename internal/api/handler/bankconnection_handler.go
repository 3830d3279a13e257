package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"git.taler.net/nexus/internal/api/middleware"
	"git.taler.net/nexus/internal/api/service"
)

// BankConnectionHandler exposes the key-management routes: connection
// lifecycle, the INI/HIA/HPB handshake, and remote account import.
type BankConnectionHandler struct {
	svc    service.BankConnectionService
	logger *slog.Logger
}

func NewBankConnectionHandler(logger *slog.Logger, svc service.BankConnectionService) *BankConnectionHandler {
	return &BankConnectionHandler{svc: svc, logger: logger}
}

func (h *BankConnectionHandler) Create(c *gin.Context) {
	var req CreateBankConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, err.Error())
		return
	}
	owner := middleware.Principal(c)
	if owner == nil {
		RespondUnauthorized(c, "")
		return
	}
	conn, err := h.svc.Create(c.Request.Context(), owner.ID, req.Name, req.Dialect, req.URL, req.HostID, req.PartnerID, req.UserID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	RespondCreated(c, newBankConnectionResponse(conn))
}

func (h *BankConnectionHandler) List(c *gin.Context) {
	owner := middleware.Principal(c)
	if owner == nil {
		RespondUnauthorized(c, "")
		return
	}
	conns, err := h.svc.List(c.Request.Context(), owner.ID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	out := make([]BankConnectionResponse, 0, len(conns))
	for _, conn := range conns {
		out = append(out, newBankConnectionResponse(conn))
	}
	RespondOK(c, out)
}

func (h *BankConnectionHandler) Connect(c *gin.Context) {
	id, err := uuid.Parse(c.Param("name"))
	if err != nil {
		RespondBadRequest(c, "invalid connection id")
		return
	}
	result, err := h.svc.Connect(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	RespondOK(c, ConnectResponse{
		AuthPublicKeyFingerprint: result.AuthPublicKeyFingerprint,
		EncPublicKeyFingerprint:  result.EncPublicKeyFingerprint,
	})
}

func (h *BankConnectionHandler) ConfirmKeys(c *gin.Context) {
	id, err := uuid.Parse(c.Param("name"))
	if err != nil {
		RespondBadRequest(c, "invalid connection id")
		return
	}
	if err := h.svc.ConfirmBankKeys(c.Request.Context(), id); err != nil {
		respondDomainError(c, err)
		return
	}
	RespondNoContent(c)
}

func (h *BankConnectionHandler) FetchAccounts(c *gin.Context) {
	id, err := uuid.Parse(c.Param("name"))
	if err != nil {
		RespondBadRequest(c, "invalid connection id")
		return
	}
	offered, err := h.svc.FetchAccounts(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	out := make([]OfferedAccountResponse, 0, len(offered))
	for _, o := range offered {
		out = append(out, newOfferedAccountResponse(o))
	}
	RespondOK(c, out)
}

func (h *BankConnectionHandler) ImportAccount(c *gin.Context) {
	var req ImportAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, err.Error())
		return
	}
	acc, err := h.svc.ImportAccount(c.Request.Context(), req.OfferedAccountID, req.Label)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	RespondCreated(c, newBankAccountResponse(acc))
}

func (h *BankConnectionHandler) Delete(c *gin.Context) {
	var req struct {
		ConnectionID uuid.UUID `json:"connectionId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, err.Error())
		return
	}
	if err := h.svc.Delete(c.Request.Context(), req.ConnectionID); err != nil {
		respondDomainError(c, err)
		return
	}
	RespondNoContent(c)
}

func (h *BankConnectionHandler) ExportBackup(c *gin.Context) {
	id, err := uuid.Parse(c.Param("name"))
	if err != nil {
		RespondBadRequest(c, "invalid connection id")
		return
	}
	var req ExportBackupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, err.Error())
		return
	}
	blob, err := h.svc.ExportBackup(c.Request.Context(), id, req.Passphrase)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", blob)
}
