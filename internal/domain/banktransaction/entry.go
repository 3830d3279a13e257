// Package banktransaction holds the canonical, deduplicated view of
// bank-reported money movements: BankTransactionEntry. Rows are
// inserted during ingestion and never mutated except through a
// superseding row linked by UpdatedBy.
package banktransaction

import (
	"encoding/json"
	"errors"
	"time"

	"git.taler.net/nexus/internal/domain/shared"
	"github.com/google/uuid"
)

var (
	ErrInvalidAmount      = errors.New("entry amount must be positive")
	ErrMissingAcctSvcrRef = errors.New("entry has no AcctSvcrRef; dropped per ingestion policy")
)

// Entry is a BankTransactionEntry row.
type Entry struct {
	ID             uuid.UUID
	BankAccountID  uuid.UUID
	TransactionID  string // scheme: "AcctSvcrRef:<ref>"
	Direction      shared.CreditDebitIndicator
	Currency       string
	Amount         string // decimal string, never float
	Status         shared.EntryStatus
	TransactionJSON json.RawMessage // canonical parsed Ntry
	UpdatedBy       *uuid.UUID      // nullable, supersession link

	// ConfirmationOf is set when this DBIT entry's PmtInfId matches an
	// outstanding PaymentInitiation (spec §4.3 confirmation matching).
	ConfirmationOf *uuid.UUID

	CreatedAt time.Time
}

// TransactionIDFor builds the dedup key from a raw AcctSvcrRef.
func TransactionIDFor(acctSvcrRef string) string {
	return "AcctSvcrRef:" + acctSvcrRef
}

// New validates and constructs an Entry. acctSvcrRef must be non-empty;
// callers drop entries lacking one before calling New (spec §4.3).
func New(bankAccountID uuid.UUID, acctSvcrRef string, direction shared.CreditDebitIndicator, currency, amount string, status shared.EntryStatus, txJSON json.RawMessage) (*Entry, error) {
	if acctSvcrRef == "" {
		return nil, ErrMissingAcctSvcrRef
	}
	return &Entry{
		ID:              uuid.New(),
		BankAccountID:   bankAccountID,
		TransactionID:   TransactionIDFor(acctSvcrRef),
		Direction:       direction,
		Currency:        currency,
		Amount:          amount,
		Status:          status,
		TransactionJSON: txJSON,
		CreatedAt:       time.Now().UTC(),
	}, nil
}
