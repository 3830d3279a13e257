package consumer

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockDeadLetterPublisher mirrors the DLQ publisher interface.
type MockDeadLetterPublisher struct {
	mock.Mock
}

func (m *MockDeadLetterPublisher) PublishToDLQ(ctx context.Context, key string, value []byte, reason string) error {
	args := m.Called(ctx, key, value, reason)
	return args.Error(0)
}

func (m *MockDeadLetterPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

// TestHandleMessage_UnmarshalError covers the malformed-message path.
// The processor is a concrete *bankprocessor.Processor (wired with a live
// EBICS client and repositories), so the happy path and the
// processor-returns-an-error path aren't reachable without those live
// dependencies; only the unmarshal branch, which never touches the
// processor, is unit-tested here.
func TestHandleMessage_UnmarshalError(t *testing.T) {
	logger := slog.Default()

	tests := []struct {
		name          string
		setupMocks    func(dlq *MockDeadLetterPublisher)
		expectedError string
	}{
		{
			name: "DLQ publish succeeds",
			setupMocks: func(dlq *MockDeadLetterPublisher) {
				dlq.On("PublishToDLQ", mock.Anything, "test-key", []byte("invalid json"), mock.Anything).Return(nil)
			},
			expectedError: "",
		},
		{
			name: "DLQ publish fails",
			setupMocks: func(dlq *MockDeadLetterPublisher) {
				dlq.On("PublishToDLQ", mock.Anything, "test-key", []byte("invalid json"), mock.Anything).Return(errors.New("dlq unavailable"))
			},
			expectedError: "failed to unmarshal bank task request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dlq := new(MockDeadLetterPublisher)
			tt.setupMocks(dlq)

			handler := NewBankTaskHandler(logger, nil, dlq)

			err := handler.HandleMessage(context.Background(), []byte("test-key"), []byte("invalid json"))

			if tt.expectedError == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.expectedError)
			}
			dlq.AssertExpectations(t)
		})
	}
}

func TestHandleMessage_UnmarshalError_NoDLQ(t *testing.T) {
	logger := slog.Default()
	handler := NewBankTaskHandler(logger, nil, nil)

	err := handler.HandleMessage(context.Background(), []byte("test-key"), []byte("invalid json"))

	assert.ErrorContains(t, err, "failed to unmarshal bank task request")
}
