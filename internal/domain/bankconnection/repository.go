package bankconnection

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines bank connection persistence operations.
type Repository interface {
	Create(ctx context.Context, conn *Connection) error
	GetByID(ctx context.Context, id uuid.UUID) (*Connection, error)
	GetByName(ctx context.Context, name string) (*Connection, error)
	List(ctx context.Context, ownerID uuid.UUID) ([]*Connection, error)
	// Delete cascades to the owned EbicsSubscriber and BankMessage rows.
	Delete(ctx context.Context, id uuid.UUID) error
	WithTx(tx pgx.Tx) Repository
}

// ErrNotFound indicates a missing connection.
type ErrNotFound struct{ ID uuid.UUID }

func (e ErrNotFound) Error() string { return "bank connection not found: " + e.ID.String() }

// ErrDuplicateName indicates the (name) uniqueness constraint was violated.
// Surfaced by the HTTP layer as 406 Not Acceptable, matching the reference
// Nexus implementation's behavior for this specific conflict.
type ErrDuplicateName struct{ Name string }

func (e ErrDuplicateName) Error() string { return "bank connection name already in use: " + e.Name }
