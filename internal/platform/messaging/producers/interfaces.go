package producers

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// MessagePublisher handles publishing messages to a primary topic.
// BankTaskProducer implements this against Kafka's bank_tasks topic
// (bankprocessor.Task, keyed by bank account id) and IngestedProducer
// against bank_tasks_ingested (one notification per newly ingested
// BankTransactionEntry, fanned out to registered facades).
type MessagePublisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
	Close() error
}

// DeadLetterPublisher handles publishing messages to the bank_tasks_dlq
// topic: a bank task message nexus-worker's consumer could not unmarshal
// or process lands here instead of being silently dropped.
type DeadLetterPublisher interface {
	PublishToDLQ(ctx context.Context, key string, originalMessageValue []byte, reason string) error
	Close() error
}

// KafkaWriter wraps kafka.Writer methods for testing
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}
