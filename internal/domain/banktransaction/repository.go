package banktransaction

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines bank transaction entry persistence operations.
// Create enforces the (bank_account, transaction_id) uniqueness
// constraint (invariant 1, dedup) at the database level; callers treat
// ErrDuplicate as "already ingested", not a failure.
type Repository interface {
	Create(ctx context.Context, entry *Entry) error
	GetByTransactionID(ctx context.Context, bankAccountID uuid.UUID, transactionID string) (*Entry, error)
	ListForAccount(ctx context.Context, bankAccountID uuid.UUID, limit, offset int) ([]*Entry, error)
	// SetConfirmationLink sets ConfirmationOf on entry and is called within
	// the same transaction as the paymentinitiation confirmation update.
	SetConfirmationLink(ctx context.Context, entryID, initiationID uuid.UUID) error
	WithTx(tx pgx.Tx) Repository
}

// NotificationChannel is the Postgres LISTEN/NOTIFY channel signaled on
// every successful Create for bankAccountID, backing the long-polling GET
// /bank-accounts/{a}/transactions design (spec.md §9). Postgres channel
// names are unquoted SQL identifiers, not parameter placeholders, so the
// UUID's dashes are replaced with underscores before use.
func NotificationChannel(bankAccountID uuid.UUID) string {
	return "nexus_txn_" + strings.ReplaceAll(bankAccountID.String(), "-", "_")
}

// ErrDuplicate indicates the (bank_account, transaction_id) row already exists.
type ErrDuplicate struct {
	BankAccountID uuid.UUID
	TransactionID string
}

func (e ErrDuplicate) Error() string {
	return "bank transaction entry already exists: " + e.TransactionID
}

// ErrNotFound indicates a missing entry.
type ErrNotFound struct{ TransactionID string }

func (e ErrNotFound) Error() string { return "bank transaction entry not found: " + e.TransactionID }
