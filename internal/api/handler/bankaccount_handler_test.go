package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"git.taler.net/nexus/internal/api/service"
	"git.taler.net/nexus/internal/domain/bankaccount"
	"git.taler.net/nexus/internal/domain/banktransaction"
	"git.taler.net/nexus/internal/domain/paymentinitiation"
	"git.taler.net/nexus/internal/domain/scheduledtask"
	"git.taler.net/nexus/internal/domain/shared"
)

type MockBankAccountService struct {
	mock.Mock
}

var _ service.BankAccountService = (*MockBankAccountService)(nil)

func (m *MockBankAccountService) List(ctx context.Context) ([]*bankaccount.Account, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*bankaccount.Account), args.Error(1)
}

func (m *MockBankAccountService) CreatePaymentInitiation(ctx context.Context, bankAccountID uuid.UUID, iban, bic, creditorName, amount, currency, subject, uid string) (*paymentinitiation.Initiation, error) {
	args := m.Called(ctx, bankAccountID, iban, bic, creditorName, amount, currency, subject, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentinitiation.Initiation), args.Error(1)
}

func (m *MockBankAccountService) SubmitInitiation(ctx context.Context, bankAccountID uuid.UUID) error {
	args := m.Called(ctx, bankAccountID)
	return args.Error(0)
}

func (m *MockBankAccountService) SubmitAllInitiations(ctx context.Context, bankAccountID uuid.UUID) error {
	args := m.Called(ctx, bankAccountID)
	return args.Error(0)
}

func (m *MockBankAccountService) FetchTransactions(ctx context.Context, bankAccountID uuid.UUID, level shared.FetchLevel, rangeType shared.RangeType, number *int) error {
	args := m.Called(ctx, bankAccountID, level, rangeType, number)
	return args.Error(0)
}

func (m *MockBankAccountService) ListTransactions(ctx context.Context, bankAccountID uuid.UUID, limit, offset int) ([]*banktransaction.Entry, error) {
	args := m.Called(ctx, bankAccountID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*banktransaction.Entry), args.Error(1)
}

func (m *MockBankAccountService) ScheduleTask(ctx context.Context, bankAccountID uuid.UUID, name string, taskType shared.ScheduledTaskType, cronSpec string, params json.RawMessage) (*scheduledtask.Task, error) {
	args := m.Called(ctx, bankAccountID, name, taskType, cronSpec, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*scheduledtask.Task), args.Error(1)
}

func (m *MockBankAccountService) GetTask(ctx context.Context, bankAccountID uuid.UUID, name string) (*scheduledtask.Task, error) {
	args := m.Called(ctx, bankAccountID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*scheduledtask.Task), args.Error(1)
}

func (m *MockBankAccountService) DeleteTask(ctx context.Context, bankAccountID uuid.UUID, name string) error {
	args := m.Called(ctx, bankAccountID, name)
	return args.Error(0)
}

func (m *MockBankAccountService) TestCamtIngestion(ctx context.Context, bankAccountID uuid.UUID, msgType string, raw []byte) (int, error) {
	args := m.Called(ctx, bankAccountID, msgType, raw)
	return args.Int(0), args.Error(1)
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

func decodeResponse(t *testing.T, body []byte) Response {
	var r Response
	require.NoError(t, json.Unmarshal(body, &r))
	return r
}

func TestBankAccountHandler_List(t *testing.T) {
	svc := new(MockBankAccountService)
	h := NewBankAccountHandler(testLogger(), svc)
	router := setupTestRouter()
	router.GET("/bank-accounts", h.List)

	accountID := uuid.New()
	svc.On("List", mock.Anything).Return([]*bankaccount.Account{{ID: accountID, Label: "main", IBAN: "DE00"}}, nil).Once()

	req, _ := http.NewRequest(http.MethodGet, "/bank-accounts", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	resp := decodeResponse(t, rr.Body.Bytes())
	require.NotNil(t, resp.Data)
	svc.AssertExpectations(t)
}

func TestBankAccountHandler_CreatePaymentInitiation(t *testing.T) {
	svc := new(MockBankAccountService)
	h := NewBankAccountHandler(testLogger(), svc)
	router := setupTestRouter()
	router.POST("/bank-accounts/:account/payment-initiations", h.CreatePaymentInitiation)

	accountID := uuid.New()
	initID := uuid.New()
	svc.On("CreatePaymentInitiation", mock.Anything, accountID, "DE00", "TESTDEXX", "Alice", "10.00", "EUR", "invoice 1", "uid-1").
		Return(&paymentinitiation.Initiation{ID: initID, Amount: "10.00", Currency: "EUR"}, nil).Once()

	body, _ := json.Marshal(CreatePaymentInitiationRequest{
		IBAN: "DE00", BIC: "TESTDEXX", CreditorName: "Alice",
		Amount: "EUR:10.00", Subject: "invoice 1", UID: "uid-1",
	})
	req, _ := http.NewRequest(http.MethodPost, "/bank-accounts/"+accountID.String()+"/payment-initiations", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	svc.AssertExpectations(t)
}

func TestBankAccountHandler_CreatePaymentInitiation_MalformedAmount(t *testing.T) {
	svc := new(MockBankAccountService)
	h := NewBankAccountHandler(testLogger(), svc)
	router := setupTestRouter()
	router.POST("/bank-accounts/:account/payment-initiations", h.CreatePaymentInitiation)

	accountID := uuid.New()
	body, _ := json.Marshal(CreatePaymentInitiationRequest{
		IBAN: "DE00", BIC: "TESTDEXX", CreditorName: "Alice",
		Amount: "10.00", Subject: "invoice 1", UID: "uid-1",
	})
	req, _ := http.NewRequest(http.MethodPost, "/bank-accounts/"+accountID.String()+"/payment-initiations", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertNotCalled(t, "CreatePaymentInitiation", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBankAccountHandler_CreatePaymentInitiation_InvalidAccountID(t *testing.T) {
	svc := new(MockBankAccountService)
	h := NewBankAccountHandler(testLogger(), svc)
	router := setupTestRouter()
	router.POST("/bank-accounts/:account/payment-initiations", h.CreatePaymentInitiation)

	req, _ := http.NewRequest(http.MethodPost, "/bank-accounts/not-a-uuid/payment-initiations", bytes.NewReader([]byte(`{}`)))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertNotCalled(t, "CreatePaymentInitiation", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBankAccountHandler_CreatePaymentInitiation_UIDConflict(t *testing.T) {
	svc := new(MockBankAccountService)
	h := NewBankAccountHandler(testLogger(), svc)
	router := setupTestRouter()
	router.POST("/bank-accounts/:account/payment-initiations", h.CreatePaymentInitiation)

	accountID := uuid.New()
	svc.On("CreatePaymentInitiation", mock.Anything, accountID, "DE00", "TESTDEXX", "Alice", "10.00", "EUR", "invoice 1", "uid-1").
		Return(nil, paymentinitiation.ErrUIDConflict{UID: "uid-1"}).Once()

	body, _ := json.Marshal(CreatePaymentInitiationRequest{
		IBAN: "DE00", BIC: "TESTDEXX", CreditorName: "Alice",
		Amount: "EUR:10.00", Subject: "invoice 1", UID: "uid-1",
	})
	req, _ := http.NewRequest(http.MethodPost, "/bank-accounts/"+accountID.String()+"/payment-initiations", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
	svc.AssertExpectations(t)
}

func TestBankAccountHandler_SubmitInitiation(t *testing.T) {
	svc := new(MockBankAccountService)
	h := NewBankAccountHandler(testLogger(), svc)
	router := setupTestRouter()
	router.POST("/bank-accounts/:account/payment-initiations/:uid/submit", h.SubmitInitiation)

	accountID := uuid.New()
	svc.On("SubmitInitiation", mock.Anything, accountID).Return(nil).Once()

	req, _ := http.NewRequest(http.MethodPost, "/bank-accounts/"+accountID.String()+"/payment-initiations/uid-1/submit", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusAccepted, rr.Code)
	svc.AssertExpectations(t)
}

func TestBankAccountHandler_FetchTransactions(t *testing.T) {
	svc := new(MockBankAccountService)
	h := NewBankAccountHandler(testLogger(), svc)
	router := setupTestRouter()
	router.POST("/bank-accounts/:account/fetch-transactions", h.FetchTransactions)

	accountID := uuid.New()
	svc.On("FetchTransactions", mock.Anything, accountID, shared.FetchLevelStatement, shared.RangeLatest, (*int)(nil)).Return(nil).Once()

	body, _ := json.Marshal(FetchTransactionsRequest{Level: shared.FetchLevelStatement, RangeType: shared.RangeLatest})
	req, _ := http.NewRequest(http.MethodPost, "/bank-accounts/"+accountID.String()+"/fetch-transactions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusAccepted, rr.Code)
	svc.AssertExpectations(t)
}

func TestBankAccountHandler_ListTransactions(t *testing.T) {
	svc := new(MockBankAccountService)
	h := NewBankAccountHandler(testLogger(), svc)
	router := setupTestRouter()
	router.GET("/bank-accounts/:account/transactions", h.ListTransactions)

	accountID := uuid.New()
	svc.On("ListTransactions", mock.Anything, accountID, 50, 0).Return([]*banktransaction.Entry{{ID: uuid.New()}}, nil).Once()

	req, _ := http.NewRequest(http.MethodGet, "/bank-accounts/"+accountID.String()+"/transactions", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestBankAccountHandler_ListTransactions_CustomLimitOffset(t *testing.T) {
	svc := new(MockBankAccountService)
	h := NewBankAccountHandler(testLogger(), svc)
	router := setupTestRouter()
	router.GET("/bank-accounts/:account/transactions", h.ListTransactions)

	accountID := uuid.New()
	svc.On("ListTransactions", mock.Anything, accountID, 10, 5).Return([]*banktransaction.Entry{}, nil).Once()

	req, _ := http.NewRequest(http.MethodGet, "/bank-accounts/"+accountID.String()+"/transactions?limit=10&offset=5", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestBankAccountHandler_ScheduleTask(t *testing.T) {
	svc := new(MockBankAccountService)
	h := NewBankAccountHandler(testLogger(), svc)
	router := setupTestRouter()
	router.POST("/bank-accounts/:account/schedule", h.ScheduleTask)

	accountID := uuid.New()
	svc.On("ScheduleTask", mock.Anything, accountID, "nightly-fetch", shared.TaskFetch, "0 2 * * *", json.RawMessage(nil)).
		Return(&scheduledtask.Task{Name: "nightly-fetch", Type: shared.TaskFetch, CronSpec: "0 2 * * *"}, nil).Once()

	body, _ := json.Marshal(ScheduleTaskRequest{Name: "nightly-fetch", Type: shared.TaskFetch, CronSpec: "0 2 * * *"})
	req, _ := http.NewRequest(http.MethodPost, "/bank-accounts/"+accountID.String()+"/schedule", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	svc.AssertExpectations(t)
}

func TestBankAccountHandler_GetTask_NotFound(t *testing.T) {
	svc := new(MockBankAccountService)
	h := NewBankAccountHandler(testLogger(), svc)
	router := setupTestRouter()
	router.GET("/bank-accounts/:account/schedule/:name", h.GetTask)

	accountID := uuid.New()
	svc.On("GetTask", mock.Anything, accountID, "missing").Return(nil, scheduledtask.ErrNotFound{ResourceID: accountID, Name: "missing"}).Once()

	req, _ := http.NewRequest(http.MethodGet, "/bank-accounts/"+accountID.String()+"/schedule/missing", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	svc.AssertExpectations(t)
}

func TestBankAccountHandler_DeleteTask(t *testing.T) {
	svc := new(MockBankAccountService)
	h := NewBankAccountHandler(testLogger(), svc)
	router := setupTestRouter()
	router.DELETE("/bank-accounts/:account/schedule/:name", h.DeleteTask)

	accountID := uuid.New()
	svc.On("DeleteTask", mock.Anything, accountID, "nightly-fetch").Return(nil).Once()

	req, _ := http.NewRequest(http.MethodDelete, "/bank-accounts/"+accountID.String()+"/schedule/nightly-fetch", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	svc.AssertExpectations(t)
}

func TestBankAccountHandler_TestCamtIngestion(t *testing.T) {
	svc := new(MockBankAccountService)
	h := NewBankAccountHandler(testLogger(), svc)
	router := setupTestRouter()
	router.POST("/bank-accounts/:account/test-camt-ingestion/:msgType", h.TestCamtIngestion)

	accountID := uuid.New()
	raw := []byte("<Document/>")
	svc.On("TestCamtIngestion", mock.Anything, accountID, "camt.053", raw).Return(3, nil).Once()

	req, _ := http.NewRequest(http.MethodPost, "/bank-accounts/"+accountID.String()+"/test-camt-ingestion/camt.053", bytes.NewReader(raw))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestBankAccountHandler_TestCamtIngestion_ServiceError(t *testing.T) {
	svc := new(MockBankAccountService)
	h := NewBankAccountHandler(testLogger(), svc)
	router := setupTestRouter()
	router.POST("/bank-accounts/:account/test-camt-ingestion/:msgType", h.TestCamtIngestion)

	accountID := uuid.New()
	raw := []byte("<Document/>")
	svc.On("TestCamtIngestion", mock.Anything, accountID, "camt.053", raw).Return(0, errors.New("boom")).Once()

	req, _ := http.NewRequest(http.MethodPost, "/bank-accounts/"+accountID.String()+"/test-camt-ingestion/camt.053", bytes.NewReader(raw))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	svc.AssertExpectations(t)
}
