package producers

import (
	"context"

	"github.com/segmentio/kafka-go"

	"github.com/card-repayment-ledger/internal/domain/shared"
)

// EventPublisher publishes record lifecycle events
type EventPublisher interface {
	PublishEvent(ctx context.Context, event shared.RecordEvent) error
	Close() error
}

// DeadLetterPublisher handles publishing messages to a Dead Letter Queue
type DeadLetterPublisher interface {
	PublishToDLQ(ctx context.Context, key string, originalMessageValue []byte, reason string) error
	Close() error
}

// KafkaWriter wraps kafka.Writer methods for testing
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var (
	_ EventPublisher      = (*RecordEventProducer)(nil)
	_ DeadLetterPublisher = (*DLQProducer)(nil)
)
