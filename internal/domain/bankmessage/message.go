// Package bankmessage stores the raw bytes of every successful bank
// response, immutable after insert except the errors flag set when
// ingestion (parsing) of that message subsequently fails.
package bankmessage

import (
	"time"

	"git.taler.net/nexus/internal/domain/shared"
	"github.com/google/uuid"
)

// Message is a BankMessage row. Serial is the database-assigned
// auto-increment position, used as the bank account's
// highestSeenBankMessageSerialId watermark; it is zero until Create
// persists the row.
type Message struct {
	ID            uuid.UUID
	Serial        int64
	ConnectionID  uuid.UUID
	BankAccountID uuid.UUID
	Level         shared.FetchLevel
	MessageID     string // optional bank-assigned MsgId, empty if absent
	Raw           []byte
	Errors        bool
	CreatedAt     time.Time
}

func New(connectionID, bankAccountID uuid.UUID, level shared.FetchLevel, messageID string, raw []byte) *Message {
	return &Message{
		ID:            uuid.New(),
		ConnectionID:  connectionID,
		BankAccountID: bankAccountID,
		Level:         level,
		MessageID:     messageID,
		Raw:           raw,
		CreatedAt:     time.Now().UTC(),
	}
}
