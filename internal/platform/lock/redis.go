package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

const renewScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`

// RedisClient is the subset of the go-redis client the locker needs
type RedisClient interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// RedisConfig tunes lock expiry and contention behaviour. A held lease is
// extended back to TTL every RenewInterval until it is released.
type RedisConfig struct {
	KeyPrefix     string
	TTL           time.Duration
	RenewInterval time.Duration
	RetryInterval time.Duration
	WaitTimeout   time.Duration
}

// RedisLocker implements Locker with SET NX PX, a token-checked PEXPIRE
// keepalive and a compare-and-delete release
type RedisLocker struct {
	client  RedisClient
	release *redis.Script
	renew   *redis.Script
	cfg     RedisConfig
}

// NewRedisLocker creates a RedisLocker, filling zero config values with defaults
func NewRedisLocker(client RedisClient, cfg RedisConfig) *RedisLocker {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if cfg.RenewInterval <= 0 || cfg.RenewInterval >= cfg.TTL {
		cfg.RenewInterval = cfg.TTL / 3
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 50 * time.Millisecond
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = 10 * time.Second
	}
	return &RedisLocker{
		client:  client,
		release: redis.NewScript(releaseScript),
		renew:   redis.NewScript(renewScript),
		cfg:     cfg,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (Lease, error) {
	if key == "" {
		return nil, errors.New("lock key is empty")
	}

	fullKey := l.cfg.KeyPrefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(l.cfg.WaitTimeout)

	for {
		ok, err := l.client.SetNX(ctx, fullKey, token, l.cfg.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", fullKey, err)
		}
		if ok {
			lease := &redisLease{
				locker: l,
				key:    fullKey,
				token:  token,
				stop:   make(chan struct{}),
				done:   make(chan struct{}),
			}
			go lease.keepAlive()
			return lease, nil
		}
		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, fullKey)
		}

		timer := time.NewTimer(l.cfg.RetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

type redisLease struct {
	locker *RedisLocker
	key    string
	token  string
	stop   chan struct{}
	done   chan struct{}
	lost   atomic.Bool
	once   sync.Once
	err    error
}

// keepAlive pushes the expiry forward until Release closes stop. It gives up
// once the key is found under another token.
func (l *redisLease) keepAlive() {
	defer close(l.done)

	ticker := time.NewTicker(l.locker.cfg.RenewInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), l.locker.cfg.RenewInterval)
		n, err := l.locker.renew.Run(ctx, l.locker.client, []string{l.key}, l.token, l.locker.cfg.TTL.Milliseconds()).Int64()
		cancel()
		if err != nil {
			// transient; the next tick retries while the key has not expired
			continue
		}
		if n == 0 {
			l.lost.Store(true)
			return
		}
	}
}

// Release deletes the key only while it still holds this lease's token, so an
// expired lease never removes a lock now owned by someone else.
func (l *redisLease) Release(ctx context.Context) error {
	l.once.Do(func() {
		close(l.stop)
		<-l.done

		err := l.locker.release.Run(context.WithoutCancel(ctx), l.locker.client, []string{l.key}, l.token).Err()
		if err != nil && !errors.Is(err, redis.Nil) {
			l.err = fmt.Errorf("failed to release lock %s: %w", l.key, err)
			return
		}
		if l.lost.Load() {
			l.err = fmt.Errorf("%w: %s", ErrLockLost, l.key)
		}
	})
	return l.err
}
