// Package lock serializes allocation work per (owner, card) pair.
package lock

import (
	"context"
	"errors"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/card-repayment-ledger/internal/config"
)

// ErrLockTimeout is returned when a lock could not be obtained within the wait timeout
var ErrLockTimeout = errors.New("timed out waiting for lock")

// ErrLockLost is returned by Release when the lease expired and another
// holder took the key while it was held
var ErrLockLost = errors.New("lock expired while held")

// Locker hands out exclusive leases on string keys
type Locker interface {
	Acquire(ctx context.Context, key string) (Lease, error)
}

// Lease is a held lock. Release is safe to call more than once.
type Lease interface {
	Release(ctx context.Context) error
}

// Do runs fn while holding the lock on key. The lease is released with a
// non-cancelled context so a cancelled request still frees the lock.
func Do(ctx context.Context, l Locker, key string, fn func(ctx context.Context) error) (err error) {
	lease, err := l.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer func() {
		if relErr := lease.Release(context.WithoutCancel(ctx)); relErr != nil && err == nil {
			err = relErr
		}
	}()
	return fn(ctx)
}

// DoAll runs fn while holding every distinct key. Keys are taken in sorted
// order so two callers locking the same pair cannot deadlock.
func DoAll(ctx context.Context, l Locker, keys []string, fn func(ctx context.Context) error) error {
	unique := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		unique = append(unique, k)
	}
	sort.Strings(unique)

	var run func(ctx context.Context, i int) error
	run = func(ctx context.Context, i int) error {
		if i == len(unique) {
			return fn(ctx)
		}
		return Do(ctx, l, unique[i], func(ctx context.Context) error {
			return run(ctx, i+1)
		})
	}
	return run(ctx, 0)
}

// FromConfig returns a Redis-backed locker when client is set and an in-process
// one otherwise
func FromConfig(client *redis.Client, cfg config.RedisConfig) Locker {
	if client == nil {
		return NewMemoryLocker(cfg.LockWaitTimeout)
	}
	return NewRedisLocker(client, RedisConfig{
		KeyPrefix:     cfg.KeyPrefix,
		TTL:           cfg.LockTTL,
		RenewInterval: cfg.LockRenewInterval,
		RetryInterval: cfg.LockRetryInterval,
		WaitTimeout:   cfg.LockWaitTimeout,
	})
}
