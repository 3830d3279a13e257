package facade

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Repository defines facade registration persistence operations.
type Repository interface {
	Create(ctx context.Context, f *Facade) error
	GetByName(ctx context.Context, name string) (*Facade, error)
	List(ctx context.Context) ([]*Facade, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrNotFound indicates a missing facade registration.
type ErrNotFound struct{ Name string }

func (e ErrNotFound) Error() string { return "facade not found: " + e.Name }

// ErrDuplicate indicates the (name) uniqueness constraint was violated.
type ErrDuplicate struct{ Name string }

func (e ErrDuplicate) Error() string { return "facade already registered: " + e.Name }
