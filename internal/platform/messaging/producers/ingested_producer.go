package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"git.taler.net/nexus/internal/config"
)

// IngestedProducer publishes one notification per BankTransactionEntry the
// worker ingests. The outbox poller is the only caller; the facade bus
// itself runs in-process against the same outbox row, so this topic exists
// for external consumers (and a second worker replica) to observe ingestion
// without polling Postgres themselves.
type IngestedProducer struct {
	logger *slog.Logger
	writer KafkaWriter
	topic  string
}

func NewIngestedProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*IngestedProducer, error) {
	if cfg.IngestedTopic == "" {
		return nil, fmt.Errorf("kafka ingested topic is not configured")
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for ingested producer: %w", err)
	}
	defer conn.Close()

	if err := createKafkaTopicIfNotExists(conn, cfg.IngestedTopic, "ingestion-notification", cfg.NumPartitions, cfg.ReplicationFactor, logger); err != nil {
		return nil, fmt.Errorf("failed to ensure ingested topic %s exists: %w", cfg.IngestedTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.IngestedTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		WriteTimeout: cfg.MaxWait,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("failed to write ingested notifications", "topic", cfg.IngestedTopic, "error", err, "count", len(messages))
			}
		},
	}

	return &IngestedProducer{logger: logger, writer: writer, topic: cfg.IngestedTopic}, nil
}

func (p *IngestedProducer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal ingested notification: %w", err)
	}
	msg := kafka.Message{Key: []byte(key), Value: jsonValue}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish ingested notification to %s: %w", p.topic, err)
	}
	return nil
}

func (p *IngestedProducer) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close ingested kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
