package service

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"git.taler.net/nexus/internal/domain/bankaccount"
	"git.taler.net/nexus/internal/domain/bankconnection"
	"git.taler.net/nexus/internal/domain/ebicssubscriber"
	"git.taler.net/nexus/internal/domain/offeredaccount"
	"git.taler.net/nexus/internal/domain/shared"
)

// rsaTestKey generates a key just large enough for cryptoebics.MarshalPrivateKey
// to round-trip; production keys are 2048-bit but tests don't need the size.
func rsaTestKey() (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, 1024)
}

type MockBankConnectionRepository struct {
	mock.Mock
}

func (m *MockBankConnectionRepository) Create(ctx context.Context, conn *bankconnection.Connection) error {
	args := m.Called(ctx, conn)
	return args.Error(0)
}

func (m *MockBankConnectionRepository) GetByID(ctx context.Context, id uuid.UUID) (*bankconnection.Connection, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bankconnection.Connection), args.Error(1)
}

func (m *MockBankConnectionRepository) GetByName(ctx context.Context, name string) (*bankconnection.Connection, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bankconnection.Connection), args.Error(1)
}

func (m *MockBankConnectionRepository) List(ctx context.Context, ownerID uuid.UUID) ([]*bankconnection.Connection, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*bankconnection.Connection), args.Error(1)
}

func (m *MockBankConnectionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockBankConnectionRepository) WithTx(tx pgx.Tx) bankconnection.Repository {
	args := m.Called(tx)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(bankconnection.Repository)
}

type MockEbicsSubscriberRepository struct {
	mock.Mock
}

func (m *MockEbicsSubscriberRepository) Create(ctx context.Context, sub *ebicssubscriber.Subscriber) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

func (m *MockEbicsSubscriberRepository) GetByConnectionID(ctx context.Context, connectionID uuid.UUID) (*ebicssubscriber.Subscriber, error) {
	args := m.Called(ctx, connectionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ebicssubscriber.Subscriber), args.Error(1)
}

func (m *MockEbicsSubscriberRepository) UpdateKeyState(ctx context.Context, id uuid.UUID, ini, hia *string) error {
	args := m.Called(ctx, id, ini, hia)
	return args.Error(0)
}

func (m *MockEbicsSubscriberRepository) SetBankKeys(ctx context.Context, id uuid.UUID, bankAuthPub, bankEncPub []byte) error {
	args := m.Called(ctx, id, bankAuthPub, bankEncPub)
	return args.Error(0)
}

func (m *MockEbicsSubscriberRepository) ConfirmBankKeys(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockEbicsSubscriberRepository) NextOrderID(ctx context.Context, id uuid.UUID) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockEbicsSubscriberRepository) WithTx(tx pgx.Tx) ebicssubscriber.Repository {
	args := m.Called(tx)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(ebicssubscriber.Repository)
}

type MockOfferedAccountRepository struct {
	mock.Mock
}

func (m *MockOfferedAccountRepository) ReplaceForConnection(ctx context.Context, connectionID uuid.UUID, offered []*offeredaccount.Offered) error {
	args := m.Called(ctx, connectionID, offered)
	return args.Error(0)
}

func (m *MockOfferedAccountRepository) ListForConnection(ctx context.Context, connectionID uuid.UUID) ([]*offeredaccount.Offered, error) {
	args := m.Called(ctx, connectionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*offeredaccount.Offered), args.Error(1)
}

func (m *MockOfferedAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*offeredaccount.Offered, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*offeredaccount.Offered), args.Error(1)
}

func (m *MockOfferedAccountRepository) MarkImported(ctx context.Context, id, importedAs uuid.UUID) error {
	args := m.Called(ctx, id, importedAs)
	return args.Error(0)
}

func (m *MockOfferedAccountRepository) WithTx(tx pgx.Tx) offeredaccount.Repository {
	args := m.Called(tx)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(offeredaccount.Repository)
}

var (
	_ bankconnection.Repository  = (*MockBankConnectionRepository)(nil)
	_ ebicssubscriber.Repository = (*MockEbicsSubscriberRepository)(nil)
	_ offeredaccount.Repository  = (*MockOfferedAccountRepository)(nil)
)

// newTestBankConnectionService wires a bankConnectionService with mocked
// repositories and a nil *ebics.Client. Tests exercising Connect and the
// happy path of FetchAccounts, which issue real EBICS requests, are out
// of scope here the same way the postgres package's own tests exclude
// anything that needs a live pgxpool.
func newTestBankConnectionService(connections bankconnection.Repository, subscribers ebicssubscriber.Repository, offered offeredaccount.Repository, accounts bankaccount.Repository) *bankConnectionService {
	return &bankConnectionService{
		connections: connections,
		subscribers: subscribers,
		offered:     offered,
		accounts:    accounts,
		clock:       shared.SystemClock{},
	}
}

func TestBankConnectionService_Create(t *testing.T) {
	ctx := context.Background()
	connections := new(MockBankConnectionRepository)
	subscribers := new(MockEbicsSubscriberRepository)
	svc := newTestBankConnectionService(connections, subscribers, nil, nil)
	ownerID := uuid.New()

	connections.On("Create", ctx, mock.AnythingOfType("*bankconnection.Connection")).Return(nil).Once()
	subscribers.On("Create", ctx, mock.AnythingOfType("*ebicssubscriber.Subscriber")).Return(nil).Once()

	conn, err := svc.Create(ctx, ownerID, "postfinance-main", shared.DialectPostfinance, "https://bank.example/ebics", "HOST1", "PARTNER1", "USER1")

	assert.NoError(t, err)
	assert.Equal(t, "postfinance-main", conn.Name)
	assert.Equal(t, ownerID, conn.OwnerID)
	connections.AssertExpectations(t)
	subscribers.AssertExpectations(t)
}

func TestBankConnectionService_Create_EmptyName(t *testing.T) {
	ctx := context.Background()
	connections := new(MockBankConnectionRepository)
	svc := newTestBankConnectionService(connections, nil, nil, nil)

	conn, err := svc.Create(ctx, uuid.New(), "", shared.DialectPostfinance, "https://bank.example/ebics", "HOST1", "PARTNER1", "USER1")

	assert.ErrorIs(t, err, bankconnection.ErrEmptyName)
	assert.Nil(t, conn)
	connections.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestBankConnectionService_Create_SubscriberPersistError(t *testing.T) {
	ctx := context.Background()
	connections := new(MockBankConnectionRepository)
	subscribers := new(MockEbicsSubscriberRepository)
	svc := newTestBankConnectionService(connections, subscribers, nil, nil)
	subErr := errors.New("insert failed")

	connections.On("Create", ctx, mock.AnythingOfType("*bankconnection.Connection")).Return(nil).Once()
	subscribers.On("Create", ctx, mock.AnythingOfType("*ebicssubscriber.Subscriber")).Return(subErr).Once()

	conn, err := svc.Create(ctx, uuid.New(), "gls-main", shared.DialectGLS, "https://bank.example/ebics", "HOST1", "PARTNER1", "USER1")

	assert.Error(t, err)
	assert.Nil(t, conn)
	connections.AssertExpectations(t)
	subscribers.AssertExpectations(t)
}

func TestBankConnectionService_List(t *testing.T) {
	ctx := context.Background()
	connections := new(MockBankConnectionRepository)
	svc := newTestBankConnectionService(connections, nil, nil, nil)
	ownerID := uuid.New()
	expected := []*bankconnection.Connection{{ID: uuid.New(), Name: "main"}}

	connections.On("List", ctx, ownerID).Return(expected, nil).Once()

	got, err := svc.List(ctx, ownerID)

	assert.NoError(t, err)
	assert.Equal(t, expected, got)
	connections.AssertExpectations(t)
}

func TestBankConnectionService_ConfirmBankKeys(t *testing.T) {
	ctx := context.Background()
	subscribers := new(MockEbicsSubscriberRepository)
	svc := newTestBankConnectionService(nil, subscribers, nil, nil)
	connectionID := uuid.New()
	subscriberID := uuid.New()

	subscribers.On("GetByConnectionID", ctx, connectionID).Return(&ebicssubscriber.Subscriber{ID: subscriberID, ConnectionID: connectionID}, nil).Once()
	subscribers.On("ConfirmBankKeys", ctx, subscriberID).Return(nil).Once()

	err := svc.ConfirmBankKeys(ctx, connectionID)

	assert.NoError(t, err)
	subscribers.AssertExpectations(t)
}

func TestBankConnectionService_ConfirmBankKeys_SubscriberNotFound(t *testing.T) {
	ctx := context.Background()
	subscribers := new(MockEbicsSubscriberRepository)
	svc := newTestBankConnectionService(nil, subscribers, nil, nil)
	connectionID := uuid.New()
	notFound := ebicssubscriber.ErrNotFound{ID: connectionID}

	subscribers.On("GetByConnectionID", ctx, connectionID).Return(nil, notFound).Once()

	err := svc.ConfirmBankKeys(ctx, connectionID)

	assert.ErrorIs(t, err, notFound)
	subscribers.AssertExpectations(t)
	subscribers.AssertNotCalled(t, "ConfirmBankKeys", mock.Anything, mock.Anything)
}

func TestBankConnectionService_FetchAccounts_NotReady(t *testing.T) {
	ctx := context.Background()
	connections := new(MockBankConnectionRepository)
	subscribers := new(MockEbicsSubscriberRepository)
	svc := newTestBankConnectionService(connections, subscribers, nil, nil)
	connectionID := uuid.New()

	connections.On("GetByID", ctx, connectionID).Return(&bankconnection.Connection{ID: connectionID}, nil).Once()
	subscribers.On("GetByConnectionID", ctx, connectionID).Return(&ebicssubscriber.Subscriber{ID: uuid.New(), ConnectionID: connectionID}, nil).Once()

	offered, err := svc.FetchAccounts(ctx, connectionID)

	assert.Nil(t, offered)
	assert.ErrorIs(t, err, ebicssubscriber.ErrBankKeysNotReady)
	connections.AssertExpectations(t)
	subscribers.AssertExpectations(t)
}

func TestBankConnectionService_ImportAccount(t *testing.T) {
	ctx := context.Background()
	offered := new(MockOfferedAccountRepository)
	accounts := new(MockBankAccountRepository)
	svc := newTestBankConnectionService(nil, nil, offered, accounts)
	connectionID := uuid.New()
	offeredID := uuid.New()

	off := &offeredaccount.Offered{
		ID:           offeredID,
		ConnectionID: connectionID,
		IBAN:         "DE00000000000000000001",
		BIC:          "TESTDEXX",
		HolderName:   "Alice",
	}
	offered.On("GetByID", ctx, offeredID).Return(off, nil).Once()
	accounts.On("Create", ctx, mock.AnythingOfType("*bankaccount.Account")).Return(nil).Once()
	offered.On("MarkImported", ctx, offeredID, mock.AnythingOfType("uuid.UUID")).Return(nil).Once()

	acc, err := svc.ImportAccount(ctx, offeredID, "main-account")

	assert.NoError(t, err)
	assert.Equal(t, "main-account", acc.Label)
	assert.Equal(t, "DE00000000000000000001", acc.IBAN)
	assert.Equal(t, &connectionID, acc.ConnectionID)
	offered.AssertExpectations(t)
	accounts.AssertExpectations(t)
}

func TestBankConnectionService_ImportAccount_AlreadyImported(t *testing.T) {
	ctx := context.Background()
	offered := new(MockOfferedAccountRepository)
	accounts := new(MockBankAccountRepository)
	svc := newTestBankConnectionService(nil, nil, offered, accounts)
	offeredID := uuid.New()
	importedAs := uuid.New()

	off := &offeredaccount.Offered{ID: offeredID, ImportedAs: &importedAs}
	offered.On("GetByID", ctx, offeredID).Return(off, nil).Once()

	acc, err := svc.ImportAccount(ctx, offeredID, "main-account")

	assert.Nil(t, acc)
	var alreadyImported offeredaccount.ErrAlreadyImported
	assert.ErrorAs(t, err, &alreadyImported)
	assert.Equal(t, offeredID, alreadyImported.ID)
	accounts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestBankConnectionService_Delete(t *testing.T) {
	ctx := context.Background()
	connections := new(MockBankConnectionRepository)
	svc := newTestBankConnectionService(connections, nil, nil, nil)
	connectionID := uuid.New()

	connections.On("Delete", ctx, connectionID).Return(nil).Once()

	err := svc.Delete(ctx, connectionID)

	assert.NoError(t, err)
	connections.AssertExpectations(t)
}

func TestBankConnectionService_ExportBackup(t *testing.T) {
	ctx := context.Background()
	subscribers := new(MockEbicsSubscriberRepository)
	svc := newTestBankConnectionService(nil, subscribers, nil, nil)
	connectionID := uuid.New()

	signingKey, err := rsaTestKey()
	assert.NoError(t, err)
	authKey, err := rsaTestKey()
	assert.NoError(t, err)
	encKey, err := rsaTestKey()
	assert.NoError(t, err)

	sub := &ebicssubscriber.Subscriber{
		ID:                       uuid.New(),
		ConnectionID:             connectionID,
		SigningPrivateKey:        signingKey,
		AuthenticationPrivateKey: authKey,
		EncryptionPrivateKey:     encKey,
	}
	subscribers.On("GetByConnectionID", ctx, connectionID).Return(sub, nil).Once()

	blob, err := svc.ExportBackup(ctx, connectionID, "correct-horse-battery-staple")

	assert.NoError(t, err)
	assert.NotEmpty(t, blob)
	subscribers.AssertExpectations(t)
}

func TestBankConnectionService_ExportBackup_SubscriberLookupError(t *testing.T) {
	ctx := context.Background()
	subscribers := new(MockEbicsSubscriberRepository)
	svc := newTestBankConnectionService(nil, subscribers, nil, nil)
	connectionID := uuid.New()
	lookupErr := ebicssubscriber.ErrNotFound{ID: connectionID}

	subscribers.On("GetByConnectionID", ctx, connectionID).Return(nil, lookupErr).Once()

	blob, err := svc.ExportBackup(ctx, connectionID, "correct-horse-battery-staple")

	assert.Nil(t, blob)
	assert.ErrorIs(t, err, lookupErr)
	subscribers.AssertExpectations(t)
}
