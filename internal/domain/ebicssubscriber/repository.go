package ebicssubscriber

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines subscriber persistence operations.
type Repository interface {
	Create(ctx context.Context, sub *Subscriber) error
	GetByConnectionID(ctx context.Context, connectionID uuid.UUID) (*Subscriber, error)
	// UpdateKeyState sets the INI or HIA handshake flag after a successful upload.
	UpdateKeyState(ctx context.Context, id uuid.UUID, ini, hia *string) error
	// SetBankKeys stores the bank's auth/enc public keys downloaded via HPB.
	SetBankKeys(ctx context.Context, id uuid.UUID, bankAuthPub, bankEncPub []byte) error
	ConfirmBankKeys(ctx context.Context, id uuid.UUID) error
	// NextOrderID atomically increments and returns the upload order-id
	// counter under the subscriber's row lock (read-modify-write per spec §5).
	NextOrderID(ctx context.Context, id uuid.UUID) (int64, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrNotFound indicates a missing subscriber.
type ErrNotFound struct{ ID uuid.UUID }

func (e ErrNotFound) Error() string { return "ebics subscriber not found: " + e.ID.String() }

// ErrOrderIDOverflow indicates the 6-character order id counter
// (base-36-ish, modulo 26^2*10^4) would wrap. Callers must rotate
// subscriber state rather than silently reuse an id.
type ErrOrderIDOverflow struct{ SubscriberID uuid.UUID }

func (e ErrOrderIDOverflow) Error() string {
	return "order id space exhausted for subscriber: " + e.SubscriberID.String()
}
