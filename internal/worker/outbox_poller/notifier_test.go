package outbox_poller

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"git.taler.net/nexus/internal/domain/banktransaction"
	"git.taler.net/nexus/internal/domain/facade"
	"git.taler.net/nexus/internal/domain/outbox"
	"git.taler.net/nexus/internal/domain/shared"
	"git.taler.net/nexus/internal/facadebus"
)

// MockOutboxRepo for testing
type MockOutboxRepo struct {
	mock.Mock
}

func (m *MockOutboxRepo) Create(ctx context.Context, message *outbox.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockOutboxRepo) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepo) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockOutboxRepo) IncrementAttempts(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepo) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepo) GetByBankTransactionEntryID(ctx context.Context, entryID uuid.UUID) (*outbox.Message, error) {
	args := m.Called(ctx, entryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepo) WithTx(tx pgx.Tx) outbox.Repository {
	args := m.Called(tx)
	return args.Get(0).(outbox.Repository)
}

// MockProducer for testing
type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, key string, value interface{}) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

// MockFacadeRepo for testing
type MockFacadeRepo struct {
	mock.Mock
}

func (m *MockFacadeRepo) Create(ctx context.Context, f *facade.Facade) error {
	args := m.Called(ctx, f)
	return args.Error(0)
}

func (m *MockFacadeRepo) GetByName(ctx context.Context, name string) (*facade.Facade, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*facade.Facade), args.Error(1)
}

func (m *MockFacadeRepo) List(ctx context.Context) ([]*facade.Facade, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*facade.Facade), args.Error(1)
}

func (m *MockFacadeRepo) WithTx(tx pgx.Tx) facade.Repository {
	return m
}

// MockExtensionRepo for testing
type MockExtensionRepo struct {
	mock.Mock
}

func (m *MockExtensionRepo) Append(ctx context.Context, entry *facade.ExtensionEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockExtensionRepo) ListForFacade(ctx context.Context, facadeName string, limit int) ([]*facade.ExtensionEntry, error) {
	args := m.Called(ctx, facadeName, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*facade.ExtensionEntry), args.Error(1)
}

func TestIngestionNotifier_Notify(t *testing.T) {
	entryID := uuid.New()
	accountID := uuid.New()
	entry := &banktransaction.Entry{
		ID:            entryID,
		BankAccountID: accountID,
		TransactionID: banktransaction.TransactionIDFor("ref-1"),
		Direction:     shared.Credit,
		Currency:      "CHF",
		Amount:        "10.00",
		Status:        shared.StatusBooked,
	}
	entryJSON, err := json.Marshal(entry)
	assert.NoError(t, err)

	message := &outbox.Message{
		ID:                     1,
		BankTransactionEntryID: entryID,
		BankAccountID:          accountID,
		Status:                 shared.OutboxStatusPending,
		Payload:                entryJSON,
		Attempts:               0,
		CreatedAt:              time.Now(),
	}

	newBus := func(facadeRepo *MockFacadeRepo, extRepo *MockExtensionRepo) *facadebus.Bus {
		return facadebus.New(facadeRepo, extRepo, nil, slog.Default())
	}

	t.Run("successful notify with no bound facades", func(t *testing.T) {
		outboxRepo := &MockOutboxRepo{}
		producer := &MockProducer{}
		facadeRepo := &MockFacadeRepo{}
		extRepo := &MockExtensionRepo{}

		producer.On("Publish", mock.Anything, accountID.String(), mock.Anything).Return(nil).Once()
		facadeRepo.On("List", mock.Anything).Return([]*facade.Facade{}, nil).Once()
		outboxRepo.On("UpdateStatus", mock.Anything, int64(1), shared.OutboxStatusProcessed).Return(nil).Once()

		notifier := NewIngestionNotifier(outboxRepo, producer, newBus(facadeRepo, extRepo), slog.Default())
		err := notifier.Notify(context.Background(), message)

		assert.NoError(t, err)
		outboxRepo.AssertExpectations(t)
		producer.AssertExpectations(t)
		facadeRepo.AssertExpectations(t)
	})

	t.Run("error unmarshalling payload", func(t *testing.T) {
		outboxRepo := &MockOutboxRepo{}
		producer := &MockProducer{}
		facadeRepo := &MockFacadeRepo{}
		extRepo := &MockExtensionRepo{}

		badMessage := &outbox.Message{ID: 2, Payload: []byte("invalid json")}
		outboxRepo.On("UpdateStatus", mock.Anything, int64(2), shared.OutboxStatusFailedToPublish).Return(nil).Once()

		notifier := NewIngestionNotifier(outboxRepo, producer, newBus(facadeRepo, extRepo), slog.Default())
		err := notifier.Notify(context.Background(), badMessage)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unmarshal payload")
		outboxRepo.AssertExpectations(t)
	})

	t.Run("error publishing notification", func(t *testing.T) {
		outboxRepo := &MockOutboxRepo{}
		producer := &MockProducer{}
		facadeRepo := &MockFacadeRepo{}
		extRepo := &MockExtensionRepo{}

		producer.On("Publish", mock.Anything, accountID.String(), mock.Anything).Return(errors.New("kafka down")).Once()

		notifier := NewIngestionNotifier(outboxRepo, producer, newBus(facadeRepo, extRepo), slog.Default())
		err := notifier.Notify(context.Background(), message)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "publish ingested notification")
		producer.AssertExpectations(t)
	})

	t.Run("error marking outbox processed", func(t *testing.T) {
		outboxRepo := &MockOutboxRepo{}
		producer := &MockProducer{}
		facadeRepo := &MockFacadeRepo{}
		extRepo := &MockExtensionRepo{}

		producer.On("Publish", mock.Anything, accountID.String(), mock.Anything).Return(nil).Once()
		facadeRepo.On("List", mock.Anything).Return([]*facade.Facade{}, nil).Once()
		outboxRepo.On("UpdateStatus", mock.Anything, int64(1), shared.OutboxStatusProcessed).Return(errors.New("db error")).Once()

		notifier := NewIngestionNotifier(outboxRepo, producer, newBus(facadeRepo, extRepo), slog.Default())
		err := notifier.Notify(context.Background(), message)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to mark outbox")
		outboxRepo.AssertExpectations(t)
	})
}
