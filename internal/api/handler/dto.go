package handler

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"git.taler.net/nexus/internal/domain/bankaccount"
	"git.taler.net/nexus/internal/domain/bankconnection"
	"git.taler.net/nexus/internal/domain/banktransaction"
	"git.taler.net/nexus/internal/domain/facade"
	"git.taler.net/nexus/internal/domain/offeredaccount"
	"git.taler.net/nexus/internal/domain/paymentinitiation"
	"git.taler.net/nexus/internal/domain/scheduledtask"
	"git.taler.net/nexus/internal/domain/shared"
)

// CreateBankConnectionRequest is the body of POST /bank-connections.
type CreateBankConnectionRequest struct {
	Name      string              `json:"name" binding:"required"`
	Dialect   shared.EbicsDialect `json:"dialect" binding:"required"`
	URL       string              `json:"url" binding:"required"`
	HostID    string              `json:"hostId" binding:"required"`
	PartnerID string              `json:"partnerId" binding:"required"`
	UserID    string              `json:"userId" binding:"required"`
}

// BankConnectionResponse mirrors a bankconnection.Connection.
type BankConnectionResponse struct {
	ID        uuid.UUID             `json:"id"`
	Name      string                `json:"name"`
	Type      shared.ConnectionType `json:"type"`
	Dialect   shared.EbicsDialect   `json:"dialect"`
	CreatedAt time.Time             `json:"createdAt"`
}

func newBankConnectionResponse(c *bankconnection.Connection) BankConnectionResponse {
	return BankConnectionResponse{ID: c.ID, Name: c.Name, Type: c.Type, Dialect: c.Dialect, CreatedAt: c.CreatedAt}
}

// ConnectResponse reports the bank key fingerprints an operator must
// confirm out of band before POSTing the confirm-keys route.
type ConnectResponse struct {
	AuthPublicKeyFingerprint string `json:"authPublicKeyFingerprint"`
	EncPublicKeyFingerprint  string `json:"encPublicKeyFingerprint"`
}

// OfferedAccountResponse mirrors an offeredaccount.Offered.
type OfferedAccountResponse struct {
	ID              uuid.UUID  `json:"id"`
	RemoteAccountID string     `json:"remoteAccountId"`
	IBAN            string     `json:"iban"`
	BIC             string     `json:"bic"`
	HolderName      string     `json:"holderName"`
	ImportedAs      *uuid.UUID `json:"importedAs,omitempty"`
}

func newOfferedAccountResponse(o *offeredaccount.Offered) OfferedAccountResponse {
	return OfferedAccountResponse{
		ID:              o.ID,
		RemoteAccountID: o.RemoteAccountID,
		IBAN:            o.IBAN,
		BIC:             o.BIC,
		HolderName:      o.HolderName,
		ImportedAs:      o.ImportedAs,
	}
}

// ImportAccountRequest is the body of POST /bank-connections/{n}/import-account.
type ImportAccountRequest struct {
	OfferedAccountID uuid.UUID `json:"offeredAccountId" binding:"required"`
	Label            string    `json:"label" binding:"required"`
}

// ExportBackupRequest is the body of POST /bank-connections/{n}/export-backup.
type ExportBackupRequest struct {
	Passphrase string `json:"passphrase" binding:"required"`
}

// BankAccountResponse mirrors a bankaccount.Account.
type BankAccountResponse struct {
	ID         uuid.UUID `json:"id"`
	Label      string    `json:"label"`
	HolderName string    `json:"holderName"`
	IBAN       string    `json:"iban"`
	BIC        string    `json:"bic"`
	CreatedAt  time.Time `json:"createdAt"`
}

func newBankAccountResponse(a *bankaccount.Account) BankAccountResponse {
	return BankAccountResponse{ID: a.ID, Label: a.Label, HolderName: a.HolderName, IBAN: a.IBAN, BIC: a.BIC, CreatedAt: a.CreatedAt}
}

// CreatePaymentInitiationRequest is the body of
// POST /bank-accounts/{a}/payment-initiations. Amount is the spec's
// composite "CURRENCY:VALUE" form, e.g. "TESTKUDOS:1" or "EUR:1".
type CreatePaymentInitiationRequest struct {
	IBAN         string `json:"iban" binding:"required"`
	BIC          string `json:"bic"`
	CreditorName string `json:"name" binding:"required"`
	Amount       string `json:"amount" binding:"required"`
	Subject      string `json:"subject"`
	UID          string `json:"uid"`
}

// ParseAmount splits Amount into its value and currency. It fails
// closed (neither half empty) so a malformed amount never silently
// initiates a payment with an empty currency.
func (r CreatePaymentInitiationRequest) ParseAmount() (value, currency string, err error) {
	currency, value, found := strings.Cut(r.Amount, ":")
	if !found || value == "" || currency == "" {
		return "", "", fmt.Errorf("amount %q must be in CURRENCY:VALUE form, e.g. TESTKUDOS:1", r.Amount)
	}
	return value, currency, nil
}

// PaymentInitiationResponse mirrors a paymentinitiation.Initiation.
type PaymentInitiationResponse struct {
	ID           uuid.UUID `json:"id"`
	Amount       string    `json:"amount"`
	Currency     string    `json:"currency"`
	CreditorIBAN string    `json:"creditorIban"`
	CreditorBIC  string    `json:"creditorBic"`
	CreditorName string    `json:"creditorName"`
	Subject      string    `json:"subject"`
	Submitted    bool      `json:"submitted"`
	Status       *string   `json:"status,omitempty"`
}

func newPaymentInitiationResponse(i *paymentinitiation.Initiation) PaymentInitiationResponse {
	return PaymentInitiationResponse{
		ID:           i.ID,
		Amount:       i.Amount,
		Currency:     i.Currency,
		CreditorIBAN: i.CreditorIBAN,
		CreditorBIC:  i.CreditorBIC,
		CreditorName: i.CreditorName,
		Subject:      i.Subject,
		Submitted:    i.Submitted,
	}
}

// BankTransactionEntryResponse mirrors a banktransaction.Entry.
type BankTransactionEntryResponse struct {
	ID            uuid.UUID                   `json:"id"`
	TransactionID string                      `json:"transactionId"`
	Direction     shared.CreditDebitIndicator `json:"direction"`
	Currency      string                      `json:"currency"`
	Amount        string                      `json:"amount"`
	Status        shared.EntryStatus          `json:"status"`
	CreatedAt     time.Time                   `json:"createdAt"`
}

func newBankTransactionEntryResponse(e *banktransaction.Entry) BankTransactionEntryResponse {
	return BankTransactionEntryResponse{
		ID:            e.ID,
		TransactionID: e.TransactionID,
		Direction:     e.Direction,
		Currency:      e.Currency,
		Amount:        e.Amount,
		Status:        e.Status,
		CreatedAt:     e.CreatedAt,
	}
}

// FetchTransactionsRequest is the body of
// POST /bank-accounts/{a}/fetch-transactions.
type FetchTransactionsRequest struct {
	Level     shared.FetchLevel `json:"level" binding:"required"`
	RangeType shared.RangeType  `json:"rangeType" binding:"required"`
	Number    *int              `json:"number,omitempty"`
}

// ScheduleTaskRequest is the body of POST /bank-accounts/{a}/schedule.
type ScheduleTaskRequest struct {
	Name     string                   `json:"name" binding:"required"`
	Type     shared.ScheduledTaskType `json:"type" binding:"required"`
	CronSpec string                   `json:"cronSpec" binding:"required"`
	Params   json.RawMessage          `json:"params,omitempty"`
}

// ScheduledTaskResponse mirrors a scheduledtask.Task.
type ScheduledTaskResponse struct {
	Name             string                   `json:"name"`
	Type             shared.ScheduledTaskType `json:"type"`
	CronSpec         string                   `json:"cronSpec"`
	NextExecutionSec int64                    `json:"nextExecutionSec"`
}

func newScheduledTaskResponse(t *scheduledtask.Task) ScheduledTaskResponse {
	return ScheduledTaskResponse{Name: t.Name, Type: t.Type, CronSpec: t.CronSpec, NextExecutionSec: t.NextExecutionSec}
}

// RegisterFacadeRequest is the body of POST /facades.
type RegisterFacadeRequest struct {
	Name             string          `json:"name" binding:"required"`
	Type             string          `json:"type" binding:"required"`
	BankAccountID    uuid.UUID       `json:"bankAccountId" binding:"required"`
	BankConnectionID uuid.UUID       `json:"bankConnectionId" binding:"required"`
	Config           json.RawMessage `json:"config,omitempty"`
}

// FacadeResponse mirrors a facade.Facade.
type FacadeResponse struct {
	Name             string    `json:"name"`
	Type             string    `json:"type"`
	BankAccountID    uuid.UUID `json:"bankAccountId"`
	BankConnectionID uuid.UUID `json:"bankConnectionId"`
}

func newFacadeResponse(f *facade.Facade) FacadeResponse {
	return FacadeResponse{Name: f.Name, Type: f.Type, BankAccountID: f.BankAccountID, BankConnectionID: f.BankConnectionID}
}

// CreateUserRequest is the body of POST /users.
type CreateUserRequest struct {
	Username  string `json:"username" binding:"required"`
	Password  string `json:"password" binding:"required"`
	Superuser bool   `json:"superuser"`
}

// ChangePasswordRequest is the body of POST /users/password.
type ChangePasswordRequest struct {
	Password string `json:"password" binding:"required"`
}
