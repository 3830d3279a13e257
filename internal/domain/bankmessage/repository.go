package bankmessage

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines bank message persistence operations.
type Repository interface {
	Create(ctx context.Context, msg *Message) error
	MarkErrored(ctx context.Context, id uuid.UUID) error
	ListForConnection(ctx context.Context, connectionID uuid.UUID, limit int) ([]*Message, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrNotFound indicates a missing bank message.
type ErrNotFound struct{ ID uuid.UUID }

func (e ErrNotFound) Error() string { return "bank message not found: " + e.ID.String() }
