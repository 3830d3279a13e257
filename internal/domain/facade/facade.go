// Package facade models the generic Facade registration row (spec §9
// supplement): a name, a facade type tag, and the bank account/connection
// it is bound to, plus an opaque config blob. The business logic behind
// any particular facade type (e.g. a Taler wire gateway) is out of scope;
// Nexus only persists the binding and exposes the two internal/facadebus hooks.
package facade

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrEmptyName = errors.New("facade name cannot be empty")

// Facade is a Facade row.
type Facade struct {
	ID                 uuid.UUID
	Name               string
	Type               string
	BankAccountID      uuid.UUID
	BankConnectionID   uuid.UUID
	Config             json.RawMessage
	CreatedAt          time.Time
}

func New(name, facadeType string, bankAccountID, bankConnectionID uuid.UUID, config json.RawMessage) (*Facade, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	return &Facade{
		ID:               uuid.New(),
		Name:             name,
		Type:             facadeType,
		BankAccountID:    bankAccountID,
		BankConnectionID: bankConnectionID,
		Config:           config,
		CreatedAt:        time.Now().UTC(),
	}, nil
}
