// Package outbox_poller drains the bank_transaction_outbox table that
// iso20022.Ingestor writes to inside the same Postgres transaction as a
// BankTransactionEntry insert (spec §2, §5): ledger write and watermark
// advance commit first, notification happens after, on a fixed poll
// interval, so a crash between the two can never lose an ingested entry.
package outbox_poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"git.taler.net/nexus/internal/config"
	"git.taler.net/nexus/internal/domain/outbox"
	"git.taler.net/nexus/internal/domain/shared"
)

// Poller processes pending outbox messages.
type Poller struct {
	outboxRepo       outbox.Repository
	notifier         IngestionNotifier
	logger           *slog.Logger
	pollInterval     time.Duration
	batchSize        int
	maxRetryAttempts int
}

func NewPoller(
	cfg *config.OutboxConfig,
	outboxRepo outbox.Repository,
	notifier IngestionNotifier,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		outboxRepo:       outboxRepo,
		notifier:         notifier,
		logger:           logger,
		pollInterval:     cfg.PollingInterval,
		batchSize:        cfg.BatchSize,
		maxRetryAttempts: cfg.MaxRetryAttempts,
	}
}

// Start begins polling until context is canceled.
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("starting outbox poller",
		"poll_interval", p.pollInterval.String(),
		"batch_size", p.batchSize,
		"max_retry_attempts", p.maxRetryAttempts,
	)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("outbox poller stopping due to context cancellation")
			return
		case <-ticker.C:
			if err := p.processPendingMessages(ctx); err != nil {
				p.logger.Error("error during batch processing of pending outbox messages", "error", err)
			}
		}
	}
}

func (p *Poller) processPendingMessages(ctx context.Context) error {
	messages, err := p.outboxRepo.GetPending(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("failed to get pending outbox messages: %w", err)
	}
	if len(messages) == 0 {
		return nil
	}

	p.logger.Debug("fetched pending outbox messages", "count", len(messages))

	for _, msg := range messages {
		if err := p.notifier.Notify(ctx, msg); err != nil {
			p.logger.Error("failed to notify outbox message",
				"outbox_id", msg.ID, "bank_transaction_entry_id", msg.BankTransactionEntryID, "current_attempts", msg.Attempts, "error", err,
			)

			if errInc := p.outboxRepo.IncrementAttempts(ctx, msg.ID); errInc != nil {
				p.logger.Error("failed to increment attempts for outbox message", "outbox_id", msg.ID, "error", errInc)
				continue
			}

			if msg.Attempts+1 >= p.maxRetryAttempts {
				p.logger.Warn("max retry attempts reached for outbox message, marking as FAILED_TO_PUBLISH",
					"outbox_id", msg.ID, "attempts_made", msg.Attempts+1,
				)
				if errUpdate := p.outboxRepo.UpdateStatus(ctx, msg.ID, shared.OutboxStatusFailedToPublish); errUpdate != nil {
					p.logger.Error("failed to update outbox status to FAILED_TO_PUBLISH after max retries", "outbox_id", msg.ID, "error", errUpdate)
				}
			}
		}
	}
	return nil
}
