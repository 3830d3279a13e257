package outbox_poller

import (
	"context"
	"fmt"
	"log/slog"

	"git.taler.net/nexus/internal/domain/outbox"
	"git.taler.net/nexus/internal/domain/shared"
	"git.taler.net/nexus/internal/facadebus"
)

// IngestionNotifier turns a pending outbox message into the two externally
// visible effects of ingestion: a Kafka notification on the ingested topic
// (KafkaConfig.IngestedTopic), and a facade-bus fan-out.
type IngestionNotifier interface {
	Notify(ctx context.Context, message *outbox.Message) error
}

// ingestedPublisher is the subset of producers.MessagePublisher the
// notifier needs, narrowed so tests can substitute a fake.
type ingestedPublisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
}

// IngestionNotifierImpl implements IngestionNotifier.
type IngestionNotifierImpl struct {
	outboxRepo outbox.Repository
	producer   ingestedPublisher
	bus        *facadebus.Bus
	logger     *slog.Logger
}

func NewIngestionNotifier(
	outboxRepo outbox.Repository,
	producer ingestedPublisher,
	bus *facadebus.Bus,
	logger *slog.Logger,
) IngestionNotifier {
	return &IngestionNotifierImpl{
		outboxRepo: outboxRepo,
		producer:   producer,
		bus:        bus,
		logger:     logger,
	}
}

// Notify decodes the BankTransactionEntry carried in message, publishes it
// to the ingested-notification topic, fans it out to every bound facade,
// and marks the outbox row processed. A Kafka publish failure leaves the
// row pending for the next poll; the facade fan-out never fails the whole
// notification since facadebus.Bus.OnIngested swallows its own errors.
func (n *IngestionNotifierImpl) Notify(ctx context.Context, message *outbox.Message) error {
	entry, err := message.Entry()
	if err != nil {
		n.logger.Error("failed to unmarshal bank transaction entry from outbox payload",
			"outbox_id", message.ID, "bank_transaction_entry_id", message.BankTransactionEntryID, "error", err,
		)
		if updateErr := n.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusFailedToPublish); updateErr != nil {
			n.logger.Error("also failed to mark outbox message FAILED_TO_PUBLISH after unmarshal error", "outbox_id", message.ID, "update_error", updateErr)
		}
		return fmt.Errorf("unmarshal payload for outbox %d failed: %w", message.ID, err)
	}

	logger := n.logger.With("outbox_id", message.ID, "bank_transaction_entry_id", entry.ID)

	if err := n.producer.Publish(ctx, entry.BankAccountID.String(), entry); err != nil {
		logger.Error("failed to publish ingested notification", "error", err)
		return fmt.Errorf("publish ingested notification for entry %s: %w", entry.ID, err)
	}

	n.bus.OnIngested(ctx, entry)

	if err := n.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusProcessed); err != nil {
		logger.Error("failed to mark outbox message PROCESSED", "error", err)
		return fmt.Errorf("notification for entry %s sent, but failed to mark outbox %d processed: %w", entry.ID, message.ID, err)
	}

	logger.Info("outbox message processed")
	return nil
}
