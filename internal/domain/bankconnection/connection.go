// Package bankconnection models the operator-facing handle on a bank
// relationship: a stable name, a connection type (only ebics today),
// and the dialect-specific wire quirks the ebics engine must honor.
package bankconnection

import (
	"errors"
	"time"

	"git.taler.net/nexus/internal/domain/shared"
	"github.com/google/uuid"
)

var (
	ErrEmptyName = errors.New("connection name cannot be empty")
	ErrNoOwner   = errors.New("connection must have an owner")
)

// Connection is a BankConnection row.
type Connection struct {
	ID        uuid.UUID
	Name      string
	Type      shared.ConnectionType
	Dialect   shared.EbicsDialect
	OwnerID   uuid.UUID
	CreatedAt time.Time
}

// New validates and constructs a Connection. Only ebics connections
// are supported in this version.
func New(name string, dialect shared.EbicsDialect, ownerID uuid.UUID) (*Connection, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if ownerID == uuid.Nil {
		return nil, ErrNoOwner
	}
	return &Connection{
		ID:        uuid.New(),
		Name:      name,
		Type:      shared.ConnectionTypeEBICS,
		Dialect:   dialect,
		OwnerID:   ownerID,
		CreatedAt: time.Now().UTC(),
	}, nil
}
