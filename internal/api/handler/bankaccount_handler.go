package handler

import (
	"io"
	"log/slog"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"git.taler.net/nexus/internal/api/service"
)

// BankAccountHandler exposes payment initiation, fetch/submit dispatch,
// transaction listing, and scheduling on an imported bank account.
type BankAccountHandler struct {
	svc    service.BankAccountService
	logger *slog.Logger
}

func NewBankAccountHandler(logger *slog.Logger, svc service.BankAccountService) *BankAccountHandler {
	return &BankAccountHandler{svc: svc, logger: logger}
}

func (h *BankAccountHandler) List(c *gin.Context) {
	accs, err := h.svc.List(c.Request.Context())
	if err != nil {
		respondDomainError(c, err)
		return
	}
	out := make([]BankAccountResponse, 0, len(accs))
	for _, a := range accs {
		out = append(out, newBankAccountResponse(a))
	}
	RespondOK(c, out)
}

func (h *BankAccountHandler) CreatePaymentInitiation(c *gin.Context) {
	accountID, err := uuid.Parse(c.Param("account"))
	if err != nil {
		RespondBadRequest(c, "invalid bank account id")
		return
	}
	var req CreatePaymentInitiationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, err.Error())
		return
	}
	amount, currency, err := req.ParseAmount()
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}
	init, err := h.svc.CreatePaymentInitiation(c.Request.Context(), accountID, req.IBAN, req.BIC, req.CreditorName, amount, currency, req.Subject, req.UID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	RespondCreated(c, newPaymentInitiationResponse(init))
}

func (h *BankAccountHandler) SubmitInitiation(c *gin.Context) {
	accountID, err := uuid.Parse(c.Param("account"))
	if err != nil {
		RespondBadRequest(c, "invalid bank account id")
		return
	}
	if err := h.svc.SubmitInitiation(c.Request.Context(), accountID); err != nil {
		respondDomainError(c, err)
		return
	}
	RespondAccepted(c, nil)
}

func (h *BankAccountHandler) SubmitAllInitiations(c *gin.Context) {
	accountID, err := uuid.Parse(c.Param("account"))
	if err != nil {
		RespondBadRequest(c, "invalid bank account id")
		return
	}
	if err := h.svc.SubmitAllInitiations(c.Request.Context(), accountID); err != nil {
		respondDomainError(c, err)
		return
	}
	RespondAccepted(c, nil)
}

func (h *BankAccountHandler) FetchTransactions(c *gin.Context) {
	accountID, err := uuid.Parse(c.Param("account"))
	if err != nil {
		RespondBadRequest(c, "invalid bank account id")
		return
	}
	var req FetchTransactionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, err.Error())
		return
	}
	if err := h.svc.FetchTransactions(c.Request.Context(), accountID, req.Level, req.RangeType, req.Number); err != nil {
		respondDomainError(c, err)
		return
	}
	RespondAccepted(c, nil)
}

func (h *BankAccountHandler) ListTransactions(c *gin.Context) {
	accountID, err := uuid.Parse(c.Param("account"))
	if err != nil {
		RespondBadRequest(c, "invalid bank account id")
		return
	}
	limit := parseIntDefault(c.Query("limit"), 50)
	offset := parseIntDefault(c.Query("offset"), 0)

	entries, err := h.svc.ListTransactions(c.Request.Context(), accountID, limit, offset)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	out := make([]BankTransactionEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, newBankTransactionEntryResponse(e))
	}
	RespondOK(c, out)
}

func (h *BankAccountHandler) ScheduleTask(c *gin.Context) {
	accountID, err := uuid.Parse(c.Param("account"))
	if err != nil {
		RespondBadRequest(c, "invalid bank account id")
		return
	}
	var req ScheduleTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, err.Error())
		return
	}
	task, err := h.svc.ScheduleTask(c.Request.Context(), accountID, req.Name, req.Type, req.CronSpec, req.Params)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	RespondCreated(c, newScheduledTaskResponse(task))
}

func (h *BankAccountHandler) GetTask(c *gin.Context) {
	accountID, err := uuid.Parse(c.Param("account"))
	if err != nil {
		RespondBadRequest(c, "invalid bank account id")
		return
	}
	task, err := h.svc.GetTask(c.Request.Context(), accountID, c.Param("name"))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	RespondOK(c, newScheduledTaskResponse(task))
}

func (h *BankAccountHandler) DeleteTask(c *gin.Context) {
	accountID, err := uuid.Parse(c.Param("account"))
	if err != nil {
		RespondBadRequest(c, "invalid bank account id")
		return
	}
	if err := h.svc.DeleteTask(c.Request.Context(), accountID, c.Param("name")); err != nil {
		respondDomainError(c, err)
		return
	}
	RespondNoContent(c)
}

// TestCamtIngestion accepts a raw camt XML body and feeds it straight
// into ingestion, bypassing EBICS (spec §9 supplement).
func (h *BankAccountHandler) TestCamtIngestion(c *gin.Context) {
	accountID, err := uuid.Parse(c.Param("account"))
	if err != nil {
		RespondBadRequest(c, "invalid bank account id")
		return
	}
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		RespondBadRequest(c, "failed to read request body")
		return
	}
	inserted, err := h.svc.TestCamtIngestion(c.Request.Context(), accountID, c.Param("msgType"), raw)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"inserted": inserted})
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}
