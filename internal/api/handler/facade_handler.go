package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"git.taler.net/nexus/internal/api/service"
)

// FacadeHandler exposes facade registration, the generic binding a
// facade-specific frontend uses to observe a bank account's ledger.
type FacadeHandler struct {
	svc    service.FacadeService
	logger *slog.Logger
}

func NewFacadeHandler(logger *slog.Logger, svc service.FacadeService) *FacadeHandler {
	return &FacadeHandler{svc: svc, logger: logger}
}

func (h *FacadeHandler) Register(c *gin.Context) {
	var req RegisterFacadeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, err.Error())
		return
	}
	f, err := h.svc.Register(c.Request.Context(), req.Name, req.Type, req.BankAccountID, req.BankConnectionID, req.Config)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	RespondCreated(c, newFacadeResponse(f))
}

func (h *FacadeHandler) List(c *gin.Context) {
	facades, err := h.svc.List(c.Request.Context())
	if err != nil {
		respondDomainError(c, err)
		return
	}
	out := make([]FacadeResponse, 0, len(facades))
	for _, f := range facades {
		out = append(out, newFacadeResponse(f))
	}
	RespondOK(c, out)
}
