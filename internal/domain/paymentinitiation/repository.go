package paymentinitiation

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines payment initiation persistence operations.
type Repository interface {
	// Create enforces idempotency on (bank_account, uid): a second create
	// with the same uid and an identical body is a no-op that returns the
	// existing row; a differing body returns ErrUIDConflict (spec invariant 4).
	Create(ctx context.Context, init *Initiation) error
	GetByUID(ctx context.Context, bankAccountID uuid.UUID, uid string) (*Initiation, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Initiation, error)
	// GetByPaymentInformationID supports confirmation matching (spec
	// §4.3): looking up the initiation a newly-ingested DBIT entry's
	// TxDtls/Refs/PmtInfId refers to.
	GetByPaymentInformationID(ctx context.Context, bankAccountID uuid.UUID, paymentInformationID string) (*Initiation, error)
	ListPendingForAccount(ctx context.Context, bankAccountID uuid.UUID) ([]*Initiation, error)
	MarkSubmitted(ctx context.Context, id uuid.UUID) error
	SetConfirmation(ctx context.Context, id, entryID uuid.UUID) error
	WithTx(tx pgx.Tx) Repository
}

// ErrNotFound indicates a missing initiation.
type ErrNotFound struct{ ID uuid.UUID }

func (e ErrNotFound) Error() string { return "payment initiation not found: " + e.ID.String() }

// ErrUIDConflict indicates a second create with the same uid but a
// differing body (spec invariant 4, scenario F).
type ErrUIDConflict struct{ UID string }

func (e ErrUIDConflict) Error() string {
	return "payment initiation with uid already exists with different fields: " + e.UID
}
