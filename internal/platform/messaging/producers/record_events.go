package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/card-repayment-ledger/internal/config"
	"github.com/card-repayment-ledger/internal/domain/shared"
)

// eventTypeHeader lets consumers filter without decoding the payload
const eventTypeHeader = "event-type"

// RecordEventProducer publishes record lifecycle events keyed by (owner, card)
type RecordEventProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topic  string
}

// NewRecordEventProducer creates the api gateway producer and ensures the topic exists
func NewRecordEventProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*RecordEventProducer, error) {
	if cfg.RecordEventsTopic == "" {
		return nil, fmt.Errorf("kafka record events topic is not configured")
	}

	if err := dialAndEnsureTopic(ctx, cfg.BrokerList(), cfg.RecordEventsTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger); err != nil {
		return nil, fmt.Errorf("failed to ensure record events topic %s: %w", cfg.RecordEventsTopic, err)
	}

	writer := &kafka.Writer{
		Addr:  kafka.TCP(cfg.BrokerList()...),
		Topic: cfg.RecordEventsTopic,
		// Events of one card stay ordered on one partition
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		WriteTimeout: cfg.MaxWait,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("Failed to write record events asynchronously", "topic", cfg.RecordEventsTopic, "error", err, "count", len(messages))
			}
		},
	}

	return &RecordEventProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.RecordEventsTopic,
	}, nil
}

// PublishEvent writes a record event on its card partition with the type as a header
func (p *RecordEventProducer) PublishEvent(ctx context.Context, event shared.RecordEvent) error {
	jsonValue, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal record event: %w", err)
	}
	return p.write(ctx, kafka.Message{
		Key:   []byte(event.PartitionKey()),
		Value: jsonValue,
		Headers: []kafka.Header{
			{Key: eventTypeHeader, Value: []byte(event.Type)},
		},
	})
}

func (p *RecordEventProducer) write(ctx context.Context, msg kafka.Message) error {
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish record event",
			"topic", p.topic,
			"key", string(msg.Key),
			"error", err,
		)
		return fmt.Errorf("failed to publish message to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published record event",
		"topic", p.topic,
		"key", string(msg.Key),
	)
	return nil
}

func (p *RecordEventProducer) Close() error {
	p.logger.Info("Closing record event producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
