package facade

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ExtensionEntry is a facade-scoped timeline record: a copy of an ingested
// bank transaction entry (or a submission event) alongside whatever
// facade-type-specific annotation the bus attaches. Shape varies freely by
// facade Type, which is why this lives in MongoDB rather than the
// Postgres ledger tables that must stay atomic with watermark advancement.
type ExtensionEntry struct {
	ID            uuid.UUID              `bson:"_id"`
	FacadeName    string                 `bson:"facade_name"`
	Kind          string                 `bson:"kind"` // "ingested" or "submitted"
	BankAccountID uuid.UUID              `bson:"bank_account_id"`
	ReferenceID   uuid.UUID              `bson:"reference_id"` // banktransaction.Entry.ID or paymentinitiation.Initiation.ID
	Annotation    map[string]interface{} `bson:"annotation,omitempty"`
	CreatedAt     time.Time              `bson:"created_at"`
}

func NewExtensionEntry(facadeName, kind string, bankAccountID, referenceID uuid.UUID, annotation map[string]interface{}) *ExtensionEntry {
	return &ExtensionEntry{
		ID:            uuid.New(),
		FacadeName:    facadeName,
		Kind:          kind,
		BankAccountID: bankAccountID,
		ReferenceID:   referenceID,
		Annotation:    annotation,
		CreatedAt:     time.Now().UTC(),
	}
}

// ExtensionRepository persists the facade timeline. Separate from
// Repository (the Postgres-backed registration row) because it lives in
// a different store with a different consistency domain: this timeline
// is a read model, never a write path for ledger or watermark state.
type ExtensionRepository interface {
	Append(ctx context.Context, entry *ExtensionEntry) error
	ListForFacade(ctx context.Context, facadeName string, limit int) ([]*ExtensionEntry, error)
}
