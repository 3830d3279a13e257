package nexususer

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Repository defines user persistence operations.
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByUsername(ctx context.Context, username string) (*User, error)
	UpdatePassword(ctx context.Context, username, passwordHash string) error
	WithTx(tx pgx.Tx) Repository
}

// ErrNotFound indicates a missing user.
type ErrNotFound struct{ Username string }

func (e ErrNotFound) Error() string { return "user not found: " + e.Username }

// ErrDuplicateUsername indicates the username uniqueness constraint was violated.
type ErrDuplicateUsername struct{ Username string }

func (e ErrDuplicateUsername) Error() string { return "username already exists: " + e.Username }
