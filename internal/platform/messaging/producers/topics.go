package producers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// topicAdmin is the part of *kafka.Conn used to provision topics
type topicAdmin interface {
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	CreateTopics(topics ...kafka.TopicConfig) error
}

var _ topicAdmin = (*kafka.Conn)(nil)

// topicProvisioner creates a topic when reading its partitions keeps failing.
// Record events rely on the partition count for per-card ordering, so an
// existing topic is never altered.
type topicProvisioner struct {
	admin    topicAdmin
	logger   *slog.Logger
	attempts int
	backoff  time.Duration
}

func newTopicProvisioner(admin topicAdmin, logger *slog.Logger) *topicProvisioner {
	return &topicProvisioner{admin: admin, logger: logger, attempts: 5, backoff: 2 * time.Second}
}

func (tp *topicProvisioner) ensure(ctx context.Context, topic string, numPartitions, replicationFactor int) error {
	logger := tp.logger.With("topic", topic)

	var lastErr error
	for attempt := 1; attempt <= tp.attempts; attempt++ {
		partitions, err := tp.admin.ReadPartitions(topic)
		if err == nil && len(partitions) > 0 {
			logger.Info("Kafka topic already exists", "partitions", len(partitions))
			return nil
		}
		lastErr = err
		if err == nil {
			// Reachable broker, unknown topic
			break
		}
		logger.Warn("Failed to read topic partitions, retrying", "attempt", attempt, "error", err)
		if attempt == tp.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("provisioning kafka topic %s: %w", topic, ctx.Err())
		case <-time.After(tp.backoff):
		}
	}

	spec := kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     max(numPartitions, 1),
		ReplicationFactor: max(replicationFactor, 1),
	}
	logger.Info("Creating Kafka topic",
		"partitions", spec.NumPartitions,
		"replication_factor", spec.ReplicationFactor,
		"last_read_error", lastErr,
	)
	if err := tp.admin.CreateTopics(spec); err != nil {
		return fmt.Errorf("failed to create kafka topic %s: %w", topic, err)
	}
	return nil
}

// dialAndEnsureTopic provisions topic over a short-lived admin connection to
// the first broker that accepts one
func dialAndEnsureTopic(ctx context.Context, brokers []string, topic string, numPartitions, replicationFactor int, logger *slog.Logger) error {
	if len(brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}

	var dialErr error
	for _, broker := range brokers {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err != nil {
			dialErr = errors.Join(dialErr, fmt.Errorf("%s: %w", broker, err))
			continue
		}
		defer conn.Close()
		return newTopicProvisioner(conn, logger).ensure(ctx, topic, numPartitions, replicationFactor)
	}
	return fmt.Errorf("failed to dial kafka: %w", dialErr)
}
