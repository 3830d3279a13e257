package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"git.taler.net/nexus/internal/config"
	"github.com/segmentio/kafka-go"
)

type BankTaskProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topic  string
}

// NewBankTaskProducer dials Kafka, ensures the bank task topic exists, and
// returns a producer nexusd's scheduler and manual-trigger API use to hand
// BankTaskRequests to the worker.
func NewBankTaskProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*BankTaskProducer, error) {
	if cfg.BankTaskTopic == "" {
		return nil, fmt.Errorf("kafka bank task topic is not configured")
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for bank task producer: %w", err)
	}
	defer conn.Close()

	err = createKafkaTopicIfNotExists(conn, cfg.BankTaskTopic, "bank-task-dispatch", cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure bank task topic %s exists for bank task producer: %w", cfg.BankTaskTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.BankTaskTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        true, // Using async for high throughput
		WriteTimeout: cfg.MaxWait,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("Failed to write messages asynchronously", "topic", cfg.BankTaskTopic, "error", err, "count", len(messages))
			} else {
				logger.Debug("Successfully wrote messages asynchronously", "topic", cfg.BankTaskTopic, "count", len(messages))
			}
		},
	}

	return &BankTaskProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.BankTaskTopic,
	}, nil
}

func (p *BankTaskProducer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal message value for bank task producer: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish message via bank task producer",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish message to %s via bank task producer: %w", p.topic, err)
	}

	p.logger.Debug("Published message via bank task producer",
		"topic", p.topic,
		"key", key,
	)
	return nil
}

func (p *BankTaskProducer) Close() error {
	p.logger.Info("Closing bank task Kafka producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close bank task kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
