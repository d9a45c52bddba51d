// Package config provides configuration structures and validation for the ledger
// binaries. Every value comes from an optional .env file, then the environment,
// over defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config is the resolved configuration shared by the api gateway, the
// reconciler and ledgerctl. Each binary reads only the sections it wires.
type Config struct {
	Application ApplicationConfig
	Logging     LoggingConfig
	Server      ServerConfig
	Kafka       KafkaConfig
	Postgres    PostgresConfig
	MongoDB     MongoDBConfig
	Redis       RedisConfig
	Reconciler  ReconcilerConfig
	WorkerPool  WorkerPoolConfig
}

type ApplicationConfig struct {
	Env      string
	Name     string
	Timezone string // IANA zone used for the dashboard month window
}

// Location resolves Timezone, falling back to UTC when it is empty
func (a ApplicationConfig) Location() (*time.Location, error) {
	if a.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", a.Timezone, err)
	}
	return loc, nil
}

type LoggingConfig struct {
	Level string
}

// ServerConfig covers the gateway listener and the reconciler metrics listener
type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
}

// KafkaConfig names the record event stream and its consumer settings
type KafkaConfig struct {
	Brokers           string
	RecordEventsTopic string
	NumPartitions     int
	ReplicationFactor int
	ConsumerGroup     string
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration
	StartOffset       int64
	DLQTopic          string // Topic for messages the reconciler cannot decode
}

// BrokerList splits the comma separated KAFKA_BROKERS value
func (k KafkaConfig) BrokerList() []string {
	var brokers []string
	for _, b := range strings.Split(k.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// PostgresConfig contains PostgreSQL configuration for the card catalog
type PostgresConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	MigrationsPath  string
	AutoMigrate     bool // Apply pending migrations when the api gateway starts
}

// MongoDBConfig contains MongoDB configuration for the record store
type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
	UseTransactions bool // Requires a replica set
}

// RedisConfig configures the distributed card lock. An empty URL selects the
// in-process lock.
type RedisConfig struct {
	URL               string
	KeyPrefix         string
	LockTTL           time.Duration
	LockRenewInterval time.Duration // held leases are extended this often
	LockRetryInterval time.Duration
	LockWaitTimeout   time.Duration
}

// ReconcilerConfig contains settings for the periodic consistency sweep
type ReconcilerConfig struct {
	SweepEnabled     bool
	SweepInterval    time.Duration
	SweepConcurrency int // Cards reconciled at once during a sweep
}

// WorkerPoolConfig bounds concurrent event driven reconciliations
type WorkerPoolConfig struct {
	Size int
}

// problems collects every validation failure so one run reports them all
type problems []string

func (p *problems) require(key, value string) {
	if strings.TrimSpace(value) == "" {
		*p = append(*p, key+" is required")
	}
}

func (p *problems) positive(key string, ok bool) {
	if !ok {
		*p = append(*p, key+" must be greater than 0")
	}
}

func (p problems) err() error {
	if len(p) == 0 {
		return nil
	}
	return errors.New(strings.Join(p, ", "))
}

func (c *Config) validate() error {
	var p problems

	if _, err := c.Application.Location(); err != nil {
		p = append(p, "APP_TIMEZONE must be a valid IANA time zone")
	}

	p.positive("SERVER_PORT", c.Server.Port > 0)
	p.positive("SERVER_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout > 0)
	p.positive("SERVER_READ_TIMEOUT", c.Server.ReadTimeout > 0)
	p.positive("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout > 0)
	p.positive("SERVER_IDLE_TIMEOUT", c.Server.IdleTimeout > 0)

	p.require("KAFKA_BROKERS", c.Kafka.Brokers)
	p.require("KAFKA_RECORD_EVENTS_TOPIC", c.Kafka.RecordEventsTopic)
	p.require("KAFKA_CONSUMER_GROUP", c.Kafka.ConsumerGroup)
	p.require("KAFKA_DLQ_TOPIC", c.Kafka.DLQTopic)
	p.positive("KAFKA_CONSUMER_MIN_BYTES", c.Kafka.MinBytes > 0)
	p.positive("KAFKA_CONSUMER_MAX_BYTES", c.Kafka.MaxBytes > 0)
	p.positive("KAFKA_CONSUMER_MAX_WAIT", c.Kafka.MaxWait > 0)

	p.require("POSTGRES_URL", c.Postgres.URL)
	p.positive("POSTGRES_MAX_CONNS", c.Postgres.MaxConns > 0)
	p.positive("POSTGRES_MIN_CONNS", c.Postgres.MinConns > 0)
	p.positive("POSTGRES_MAX_CONN_LIFETIME", c.Postgres.ConnMaxLifetime > 0)
	p.positive("POSTGRES_MAX_CONN_IDLE_TIME", c.Postgres.ConnMaxIdleTime > 0)

	p.require("MONGO_URI", c.MongoDB.URI)
	p.require("MONGO_DATABASE", c.MongoDB.Database)
	p.positive("MONGO_TIMEOUT", c.MongoDB.Timeout > 0)
	p.positive("MONGO_MAX_POOL_SIZE", c.MongoDB.MaxPoolSize > 0)
	p.positive("MONGO_MIN_POOL_SIZE", c.MongoDB.MinPoolSize > 0)
	p.positive("MONGO_MAX_CONN_IDLE_TIME", c.MongoDB.MaxConnIdleTime > 0)

	// REDIS_URL is optional, the lock timings are not
	p.positive("REDIS_LOCK_TTL", c.Redis.LockTTL > 0)
	p.positive("REDIS_LOCK_RETRY_INTERVAL", c.Redis.LockRetryInterval > 0)
	p.positive("REDIS_LOCK_WAIT_TIMEOUT", c.Redis.LockWaitTimeout > 0)
	if c.Redis.LockRenewInterval <= 0 || c.Redis.LockRenewInterval >= c.Redis.LockTTL {
		p = append(p, "REDIS_LOCK_RENEW_INTERVAL must be greater than 0 and less than REDIS_LOCK_TTL")
	}

	if c.Reconciler.SweepEnabled {
		p.positive("RECONCILER_SWEEP_INTERVAL", c.Reconciler.SweepInterval > 0)
	}
	p.positive("RECONCILER_SWEEP_CONCURRENCY", c.Reconciler.SweepConcurrency > 0)

	p.positive("WORKER_POOL_SIZE", c.WorkerPool.Size > 0)

	return p.err()
}
