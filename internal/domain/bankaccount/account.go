// Package bankaccount models the local BankAccount resource: the IBAN
// Nexus fetches and submits against, its three fetch watermarks, the
// highest seen bank message serial, and the pain.001 identifier counter.
package bankaccount

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEmptyLabel    = errors.New("account label cannot be empty")
	ErrEmptyIBAN     = errors.New("IBAN cannot be empty")
	ErrIBANImmutable = errors.New("IBAN cannot change after first ingestion")
)

// Account is the BankAccount row.
type Account struct {
	ID           uuid.UUID
	Label        string
	HolderName   string
	IBAN         string
	BIC          string
	ConnectionID *uuid.UUID // nullable default connection

	LastReportCreationTimestamp       time.Time
	LastStatementCreationTimestamp    time.Time
	LastNotificationCreationTimestamp time.Time
	HighestSeenBankMessageSerialID    int64

	Pain001Counter int64

	CreatedAt time.Time
}

// New constructs an Account from an OfferedBankAccount import.
func New(label, holderName, iban, bic string) (*Account, error) {
	if label == "" {
		return nil, ErrEmptyLabel
	}
	if iban == "" {
		return nil, ErrEmptyIBAN
	}
	return &Account{
		ID:         uuid.New(),
		Label:      label,
		HolderName: holderName,
		IBAN:       iban,
		BIC:        bic,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// NextPain001Identifiers returns the identifier triplet for the next
// initiation and advances the counter. The template matches spec §4.3:
// leuf-<role>-<timestampHex>-<painCounterHex>-<accountHex>. Monotonicity
// (invariant 3) follows directly from the counter increment, which the
// caller persists under the account row lock.
func (a *Account) NextPain001Identifiers(now time.Time, role string) (endToEndID, messageID, paymentInformationID string) {
	a.Pain001Counter++
	ts := fmtHex(now.UnixNano())
	ctr := fmtHex(a.Pain001Counter)
	acctHex := a.ID.String()[:8]
	base := "leuf-" + role + "-" + ts + "-" + ctr + "-" + acctHex
	return base + "-e2e", base + "-msg", base + "-pmtinf"
}

func fmtHex(n int64) string {
	const digits = "0123456789abcdef"
	if n == 0 {
		return "0"
	}
	var buf [16]byte
	i := len(buf)
	u := uint64(n)
	for u > 0 {
		i--
		buf[i] = digits[u%16]
		u /= 16
	}
	return string(buf[i:])
}
