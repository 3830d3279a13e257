// Package consumer adapts Kafka messages into calls against the worker's
// own processing types. BankTaskHandler is nexus-worker's side of the
// scheduler/bank-task split described in spec §2: nexusd never talks to
// a bank directly, it only publishes a BankTaskRequest here.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"git.taler.net/nexus/internal/platform/messaging/producers"
	"git.taler.net/nexus/internal/worker/bankprocessor"
)

// BankTaskHandler decodes a bankprocessor.Task from a Kafka message and
// runs it against the bank processor.
type BankTaskHandler struct {
	processor *bankprocessor.Processor
	dlq       producers.DeadLetterPublisher
	logger    *slog.Logger
}

func NewBankTaskHandler(
	logger *slog.Logger,
	processor *bankprocessor.Processor,
	dlq producers.DeadLetterPublisher,
) *BankTaskHandler {
	return &BankTaskHandler{
		processor: processor,
		dlq:       dlq,
		logger:    logger,
	}
}

// HandleMessage processes one BankTaskRequest. A malformed message goes
// to the DLQ (if configured) and is otherwise treated as retryable, same
// policy as the ledger side's TransactionEventHandler.
func (h *BankTaskHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var task bankprocessor.Task
	if err := json.Unmarshal(value, &task); err != nil {
		unmarshalErrorMsg := "failed to unmarshal bank task request from Kafka message"
		h.logger.Error(unmarshalErrorMsg, "error", err, "message_key", string(key))

		if h.dlq != nil {
			reason := fmt.Sprintf("%s: %s", unmarshalErrorMsg, err.Error())
			if dlqErr := h.dlq.PublishToDLQ(ctx, string(key), value, reason); dlqErr != nil {
				h.logger.Error("failed to publish message to DLQ after unmarshal error", "dlq_error", dlqErr, "original_error", err)
			} else {
				h.logger.Info("published unprocessable bank task message to DLQ", "message_key", string(key), "reason", reason)
				return nil
			}
		}
		return fmt.Errorf("failed to unmarshal bank task request: %w", err)
	}

	logger := h.logger.With("bank_account_id", task.BankAccountID.String(), "type", task.Type)
	logger.Info("received bank task")

	if err := h.processor.Submit(ctx, task); err != nil {
		logger.Error("bank task failed", "error", err)
		return fmt.Errorf("bank task for account %s failed: %w", task.BankAccountID, err)
	}

	logger.Info("bank task completed")
	return nil
}
