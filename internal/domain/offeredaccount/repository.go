package offeredaccount

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines offered-account persistence operations.
type Repository interface {
	// ReplaceForConnection atomically replaces the offered set for a
	// connection with the result of a fresh HTD/HKD fetch.
	ReplaceForConnection(ctx context.Context, connectionID uuid.UUID, offered []*Offered) error
	ListForConnection(ctx context.Context, connectionID uuid.UUID) ([]*Offered, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Offered, error)
	MarkImported(ctx context.Context, id, importedAs uuid.UUID) error
	WithTx(tx pgx.Tx) Repository
}

// ErrNotFound indicates a missing offered account.
type ErrNotFound struct{ ID uuid.UUID }

func (e ErrNotFound) Error() string { return "offered bank account not found: " + e.ID.String() }

// ErrAlreadyImported indicates the offered account was already bound.
type ErrAlreadyImported struct{ ID uuid.UUID }

func (e ErrAlreadyImported) Error() string {
	return "offered bank account already imported: " + e.ID.String()
}
