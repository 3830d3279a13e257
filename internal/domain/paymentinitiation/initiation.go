// Package paymentinitiation models outgoing payment requests: creation
// is idempotent on an opaque client uid, submission uploads a pain.001
// via EBICS, and confirmation is a nullable weak link set asynchronously
// by ingestion once a matching DBIT entry is seen.
package paymentinitiation

import (
	"errors"
	"time"

	"git.taler.net/nexus/internal/domain/shared"
	"github.com/google/uuid"
)

var (
	ErrEmptyCreditorIBAN = errors.New("creditor IBAN cannot be empty")
	ErrEmptyAmount       = errors.New("amount cannot be empty")
	ErrExcessPrecision   = errors.New("amount has more than 2 fractional digits")
)

// Initiation is a PaymentInitiation row.
type Initiation struct {
	ID            uuid.UUID
	BankAccountID uuid.UUID

	PreparationDate time.Time
	SubmissionDate  *time.Time

	Amount   string
	Currency string
	Subject  string

	CreditorIBAN string
	CreditorBIC  string
	CreditorName string

	EndToEndID            string
	MessageID             string
	PaymentInformationID  string
	InstructionID         string

	UID string // opaque client-supplied idempotency key, optional

	Submitted bool
	Invalid   bool

	ConfirmationTransactionID *uuid.UUID // nullable, weak ref to banktransaction.Entry
}

// New validates and constructs an Initiation; ids come from
// bankaccount.Account.NextPain001Identifiers under the account lock.
func New(bankAccountID uuid.UUID, iban, bic, creditorName, amount, currency, subject, uid string, endToEndID, messageID, paymentInformationID string, now time.Time) (*Initiation, error) {
	if iban == "" {
		return nil, ErrEmptyCreditorIBAN
	}
	if amount == "" {
		return nil, ErrEmptyAmount
	}
	if !hasAtMostTwoFractionalDigits(amount) {
		return nil, ErrExcessPrecision
	}
	return &Initiation{
		ID:                   uuid.New(),
		BankAccountID:        bankAccountID,
		PreparationDate:      now,
		Amount:               amount,
		Currency:             currency,
		Subject:              subject,
		CreditorIBAN:         iban,
		CreditorBIC:          bic,
		CreditorName:         creditorName,
		EndToEndID:           endToEndID,
		MessageID:            messageID,
		PaymentInformationID: paymentInformationID,
		InstructionID:        endToEndID,
		UID:                  uid,
	}, nil
}

// hasAtMostTwoFractionalDigits enforces the stricter-than-ISO InstdAmt
// precision contract from spec §4.3 (scenario D).
func hasAtMostTwoFractionalDigits(amount string) bool {
	dot := -1
	for i, r := range amount {
		if r == '.' {
			dot = i
			break
		}
	}
	if dot == -1 {
		return true
	}
	return len(amount)-dot-1 <= 2
}

// MarkSubmitted flips the submitted flag and stamps the submission date.
func (i *Initiation) MarkSubmitted(now time.Time) {
	i.Submitted = true
	i.SubmissionDate = &now
}

// APIStatus projects the HTTP-visible status field: BOOK/PDNG/INFO once
// confirmed, nil while unconfirmed. The confirming entry's own Status
// (an EntryStatus) is passed in by the caller after a lookup.
func (i *Initiation) APIStatus(confirmedEntryStatus *shared.EntryStatus) *string {
	if confirmedEntryStatus == nil {
		return nil
	}
	s := string(*confirmedEntryStatus)
	return &s
}
