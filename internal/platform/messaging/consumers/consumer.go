package consumers

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/card-repayment-ledger/internal/config"
)

// MessageHandler processes one message. A nil return commits its offset.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// Consumer delivers messages from a stream to a handler
type Consumer interface {
	Subscribe(ctx context.Context, handler MessageHandler) error
	Close() error
}

// MessageReader is the part of kafka.Reader the fetch loop needs
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const (
	minFetchBackoff = time.Second
	maxFetchBackoff = 30 * time.Second
)

// KafkaConsumer reads record events as a member of a consumer group. Offsets
// are committed one message at a time, after the handler accepted it, so a
// failed message is redelivered after a rebalance or restart.
type KafkaConsumer struct {
	reader MessageReader
	logger *slog.Logger

	minBackoff time.Duration
	maxBackoff time.Duration

	wg     sync.WaitGroup
	closed atomic.Bool
}

// NewKafkaConsumer builds a group reader for cfg.RecordEventsTopic. A start
// offset of -1 (kafka.LastOffset) skips history for a new group.
func NewKafkaConsumer(_ context.Context, logger *slog.Logger, cfg *config.KafkaConfig) *KafkaConsumer {
	start := kafka.FirstOffset
	if cfg.StartOffset == kafka.LastOffset {
		start = kafka.LastOffset
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.BrokerList(),
		GroupID:     cfg.ConsumerGroup,
		Topic:       cfg.RecordEventsTopic,
		StartOffset: start,
		MinBytes:    cfg.MinBytes,
		MaxBytes:    cfg.MaxBytes,
		MaxWait:     cfg.MaxWait,
	})

	return &KafkaConsumer{
		reader:     reader,
		logger:     logger.With("topic", cfg.RecordEventsTopic, "group_id", cfg.ConsumerGroup),
		minBackoff: minFetchBackoff,
		maxBackoff: maxFetchBackoff,
	}
}

// Subscribe starts the fetch loop and returns; the loop ends with ctx
func (c *KafkaConsumer) Subscribe(ctx context.Context, handler MessageHandler) error {
	c.logger.Info("Subscribed to Kafka topic")

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.consume(ctx, handler)
	}()
	return nil
}

func (c *KafkaConsumer) consume(ctx context.Context, handler MessageHandler) {
	backoff := c.minBackoff
	for ctx.Err() == nil {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || c.closed.Load() {
				break
			}
			c.logger.Error("Failed to fetch message from Kafka", "error", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				break
			}
			backoff = min(backoff*2, c.maxBackoff)
			continue
		}
		backoff = c.minBackoff

		log := c.logger.With(
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
		)
		log.Debug("Received message from Kafka")

		if err := handler(ctx, msg.Key, msg.Value); err != nil {
			log.Error("Failed to process message, offset left uncommitted", "error", err)
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			log.Error("Failed to commit offset", "error", err)
		}
	}
	c.logger.Info("Stopped consuming Kafka topic")
}

// sleep waits for d and reports false when ctx ended first
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Close closes the reader, which unblocks a pending fetch, then waits for the
// loop to return
func (c *KafkaConsumer) Close() error {
	if c.reader == nil {
		return nil
	}
	c.closed.Store(true)
	err := c.reader.Close()
	c.wg.Wait()
	return err
}
