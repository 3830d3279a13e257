// Package offeredaccount models the set of remote accounts a bank
// connection is authorized to see (populated by HTD/HKD), pending the
// operator's explicit import into a local bankaccount.Account.
package offeredaccount

import (
	"time"

	"github.com/google/uuid"
)

// Offered is an OfferedBankAccount row.
type Offered struct {
	ID             uuid.UUID
	ConnectionID   uuid.UUID
	RemoteAccountID string
	IBAN           string
	BIC            string
	HolderName     string
	ImportedAs     *uuid.UUID // nullable, set once imported
	CreatedAt      time.Time
}

func New(connectionID uuid.UUID, remoteAccountID, iban, bic, holderName string) *Offered {
	return &Offered{
		ID:              uuid.New(),
		ConnectionID:    connectionID,
		RemoteAccountID: remoteAccountID,
		IBAN:            iban,
		BIC:             bic,
		HolderName:      holderName,
		CreatedAt:       time.Now().UTC(),
	}
}
