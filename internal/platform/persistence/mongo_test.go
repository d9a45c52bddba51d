package persistence

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/card-repayment-ledger/internal/config"
)

func TestClientOptions(t *testing.T) {
	opts := clientOptions(&config.MongoDBConfig{
		URI:             "mongodb://mongo-0:27017,mongo-1:27017/?replicaSet=rs0",
		MaxPoolSize:     50,
		MinPoolSize:     5,
		MaxConnIdleTime: time.Minute,
		Timeout:         3 * time.Second,
	})
	require.NoError(t, opts.Validate())

	assert.Equal(t, []string{"mongo-0:27017", "mongo-1:27017"}, opts.Hosts)
	assert.Equal(t, "rs0", *opts.ReplicaSet)
	assert.Equal(t, uint64(50), *opts.MaxPoolSize)
	assert.Equal(t, uint64(5), *opts.MinPoolSize)
	assert.Equal(t, time.Minute, *opts.MaxConnIdleTime)
	assert.Equal(t, 3*time.Second, *opts.ServerSelectionTimeout)
	assert.Equal(t, "primary", opts.ReadPreference.Mode().String())
}

func TestNewMongoDB_InvalidURI(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := NewMongoDB(context.Background(), logger, &config.MongoDBConfig{
		URI:     "not-a-mongo-uri",
		Timeout: time.Second,
	})
	assert.Nil(t, db)
	assert.ErrorContains(t, err, "failed to connect to MongoDB")
}
