// Package outbox implements the transactional outbox pattern for bank
// transaction ingestion: iso20022.Ingestor writes one row here in the
// same Postgres transaction as the BankTransactionEntry insert and the
// account watermark advance, so a crash between "ledger written" and
// "notification sent" can never happen. A separate poller drains
// pending rows after the transaction commits.
package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"git.taler.net/nexus/internal/domain/banktransaction"
	"git.taler.net/nexus/internal/domain/shared"
)

// Message is one pending or processed ingestion notification.
type Message struct {
	ID                      int64               `json:"id"`
	BankTransactionEntryID  uuid.UUID           `json:"bank_transaction_entry_id"`
	BankAccountID           uuid.UUID           `json:"bank_account_id"`
	Payload                 json.RawMessage     `json:"payload"`
	Status                  shared.OutboxStatus `json:"status"`
	Attempts                int                 `json:"attempts"`
	CreatedAt               time.Time           `json:"created_at"`
	LastAttemptAt           *time.Time          `json:"last_attempt_at,omitempty"`
}

// NewMessage builds a pending outbox row carrying entry's own JSON, so
// the poller can republish or hand it to the facade bus without a
// second Postgres read.
func NewMessage(entry *banktransaction.Entry) (*Message, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}

	return &Message{
		BankTransactionEntryID: entry.ID,
		BankAccountID:          entry.BankAccountID,
		Payload:                payload,
		Status:                 shared.OutboxStatusPending,
		Attempts:               0,
		CreatedAt:              time.Now(),
	}, nil
}

func (m *Message) IncrementAttempts() {
	m.Attempts++
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsProcessed() {
	m.Status = shared.OutboxStatusProcessed
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsFailed() {
	m.Status = shared.OutboxStatusFailedToPublish
	now := time.Now()
	m.LastAttemptAt = &now
}

// Entry unmarshals the ingested BankTransactionEntry back out of the payload.
func (m *Message) Entry() (*banktransaction.Entry, error) {
	var entry banktransaction.Entry
	if err := json.Unmarshal(m.Payload, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}
