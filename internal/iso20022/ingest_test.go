package iso20022

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"git.taler.net/nexus/internal/domain/bankmessage"
	"git.taler.net/nexus/internal/domain/shared"
)

type MockBankMessageRepository struct {
	mock.Mock
}

func (m *MockBankMessageRepository) Create(ctx context.Context, msg *bankmessage.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockBankMessageRepository) MarkErrored(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockBankMessageRepository) ListForConnection(ctx context.Context, connectionID uuid.UUID, limit int) ([]*bankmessage.Message, error) {
	args := m.Called(ctx, connectionID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*bankmessage.Message), args.Error(1)
}

func (m *MockBankMessageRepository) WithTx(tx pgx.Tx) bankmessage.Repository {
	args := m.Called(tx)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(bankmessage.Repository)
}

var _ bankmessage.Repository = (*MockBankMessageRepository)(nil)

// TestIngest_ParseFailure covers the only Ingest branch reachable without
// a live Postgres connection: a parse failure marks the message errored
// and returns before the db.ExecuteTx closure is ever entered. The
// dedupe/confirmation-matching/watermark-advance path runs inside
// persistence.PostgresDB.ExecuteTx, a concrete *pgxpool.Pool-backed
// method, the same limitation the teacher's own
// internal/platform/persistence/postgres_test.go documents for its own
// repositories.
func TestIngest_ParseFailure(t *testing.T) {
	t.Run("MarkErrored succeeds", func(t *testing.T) {
		messages := new(MockBankMessageRepository)
		ingestor := NewIngestor(nil, nil, nil, nil, messages, nil, slog.Default())

		msg := &bankmessage.Message{ID: uuid.New(), BankAccountID: uuid.New(), Level: shared.FetchLevelStatement, Raw: []byte("<root><unclosed>")}
		messages.On("MarkErrored", mock.Anything, msg.ID).Return(nil).Once()

		inserted, err := ingestor.Ingest(context.Background(), msg)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "parse bank message")
		assert.Equal(t, 0, inserted)
		messages.AssertExpectations(t)
	})

	t.Run("MarkErrored itself fails, parse error still returned", func(t *testing.T) {
		messages := new(MockBankMessageRepository)
		ingestor := NewIngestor(nil, nil, nil, nil, messages, nil, slog.Default())

		msg := &bankmessage.Message{ID: uuid.New(), BankAccountID: uuid.New(), Level: shared.FetchLevelStatement, Raw: []byte("<<not-xml")}
		messages.On("MarkErrored", mock.Anything, msg.ID).Return(errors.New("db unavailable")).Once()

		inserted, err := ingestor.Ingest(context.Background(), msg)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "parse bank message")
		assert.Equal(t, 0, inserted)
		messages.AssertExpectations(t)
	})
}
