// Package nexususer models the small operator/account-holder principal
// table behind HTTP Basic auth (spec §9 supplement): username, a bcrypt
// password hash, and a superuser flag gating the routes spec.md marks `*`.
package nexususer

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmptyUsername = errors.New("username cannot be empty")
	ErrEmptyPassword = errors.New("password cannot be empty")
)

// User is a NexusUser row.
type User struct {
	ID           uuid.UUID
	Username     string
	PasswordHash string
	IsSuperuser  bool
	CreatedAt    time.Time
}

func New(username, password string, superuser bool) (*User, error) {
	if username == "" {
		return nil, ErrEmptyUsername
	}
	if password == "" {
		return nil, ErrEmptyPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: string(hash),
		IsSuperuser:  superuser,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// CheckPassword reports whether password matches the stored hash.
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// SetPassword replaces the stored hash (used by POST /users/password).
func (u *User) SetPassword(password string) error {
	if password == "" {
		return ErrEmptyPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}
