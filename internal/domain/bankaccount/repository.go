package bankaccount

import (
	"context"
	"time"

	"git.taler.net/nexus/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines bank account persistence operations.
type Repository interface {
	Create(ctx context.Context, acc *Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByLabel(ctx context.Context, label string) (*Account, error)
	List(ctx context.Context) ([]*Account, error)

	// LockForUpdate obtains a pessimistic row lock, used while advancing
	// watermarks or the pain001 counter transactionally with ledger writes.
	LockForUpdate(ctx context.Context, id uuid.UUID) (*Account, error)

	// AdvanceWatermark sets the watermark for level to max(existing, t)
	// (invariant 2: watermark monotonicity) and the highest seen serial id.
	AdvanceWatermark(ctx context.Context, id uuid.UUID, level shared.FetchLevel, t time.Time, highestSerial int64) error

	// SavePain001Counter persists the counter advanced by Account.NextPain001Identifiers.
	SavePain001Counter(ctx context.Context, id uuid.UUID, counter int64) error

	WithTx(tx pgx.Tx) Repository
}

// ErrNotFound indicates a missing bank account.
type ErrNotFound struct{ ID uuid.UUID }

func (e ErrNotFound) Error() string { return "bank account not found: " + e.ID.String() }

// ErrDuplicateLabel indicates the (label) uniqueness constraint was violated.
type ErrDuplicateLabel struct{ Label string }

func (e ErrDuplicateLabel) Error() string { return "bank account label already in use: " + e.Label }
