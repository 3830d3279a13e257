// Package service implements nexusd's HTTP-facing business logic: the
// key-management routes that talk to a bank synchronously, and the
// everything-else routes that publish a bankprocessor.Task and return
// 202 Accepted, per the two-binary split described in cmd/nexus-worker.
package service

import (
	"context"
	"encoding/json"

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

// BankConnectionService covers the key-management surface: creating a
// connection, running the EBICS INI/HIA/HPB handshake, and importing
// remote accounts. These calls block on the bank because operators
// expect an immediate INI/HIA/HPB outcome.
type BankConnectionService interface {
	Create(ctx context.Context, ownerID uuid.UUID, name string, dialect shared.EbicsDialect, url, hostID, partnerID, userID string) (*bankconnection.Connection, error)
	List(ctx context.Context, ownerID uuid.UUID) ([]*bankconnection.Connection, error)
	Connect(ctx context.Context, connectionID uuid.UUID) (*ConnectResult, error)
	ConfirmBankKeys(ctx context.Context, connectionID uuid.UUID) error
	FetchAccounts(ctx context.Context, connectionID uuid.UUID) ([]*offeredaccount.Offered, error)
	ImportAccount(ctx context.Context, offeredID uuid.UUID, label string) (*bankaccount.Account, error)
	Delete(ctx context.Context, connectionID uuid.UUID) error
	ExportBackup(ctx context.Context, connectionID uuid.UUID, passphrase string) ([]byte, error)
}

// ConnectResult reports the outcome of the INI/HIA/HPB handshake,
// including the bank key fingerprints an operator must confirm out of
// band before the connection is usable.
type ConnectResult struct {
	AuthPublicKeyFingerprint string
	EncPublicKeyFingerprint  string
}

// BankAccountService covers payment initiation, transaction fetch, and
// scheduling on an imported bank account. Submission and fetch are
// asynchronous: they publish a bankprocessor.Task and return, the
// worker process runs the actual EBICS exchange.
type BankAccountService interface {
	List(ctx context.Context) ([]*bankaccount.Account, error)
	CreatePaymentInitiation(ctx context.Context, bankAccountID uuid.UUID, iban, bic, creditorName, amount, currency, subject, uid string) (*paymentinitiation.Initiation, error)
	SubmitInitiation(ctx context.Context, bankAccountID uuid.UUID) error
	SubmitAllInitiations(ctx context.Context, bankAccountID uuid.UUID) error
	FetchTransactions(ctx context.Context, bankAccountID uuid.UUID, level shared.FetchLevel, rangeType shared.RangeType, number *int) error
	ListTransactions(ctx context.Context, bankAccountID uuid.UUID, limit, offset int) ([]*banktransaction.Entry, error)
	ScheduleTask(ctx context.Context, bankAccountID uuid.UUID, name string, taskType shared.ScheduledTaskType, cronSpec string, params json.RawMessage) (*scheduledtask.Task, error)
	GetTask(ctx context.Context, bankAccountID uuid.UUID, name string) (*scheduledtask.Task, error)
	DeleteTask(ctx context.Context, bankAccountID uuid.UUID, name string) error
	TestCamtIngestion(ctx context.Context, bankAccountID uuid.UUID, msgType string, raw []byte) (int, error)
}

// FacadeService covers facade registration, the generic binding a
// facade-specific frontend uses to observe a bank account's ledger.
type FacadeService interface {
	Register(ctx context.Context, name, facadeType string, bankAccountID, bankConnectionID uuid.UUID, config json.RawMessage) (*facade.Facade, error)
	List(ctx context.Context) ([]*facade.Facade, error)
}

// UserService covers the operator/account-holder principal table
// behind HTTP Basic auth.
type UserService interface {
	CreateUser(ctx context.Context, username, password string, superuser bool) error
	ChangePassword(ctx context.Context, username, password string) error
}
