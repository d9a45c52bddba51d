package lock

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryLocker implements Locker within a single process
type MemoryLocker struct {
	mu          sync.Mutex
	slots       map[string]chan struct{}
	waitTimeout time.Duration
}

// NewMemoryLocker creates a MemoryLocker. A non-positive waitTimeout waits until ctx is done.
func NewMemoryLocker(waitTimeout time.Duration) *MemoryLocker {
	return &MemoryLocker{
		slots:       make(map[string]chan struct{}),
		waitTimeout: waitTimeout,
	}
}

func (l *MemoryLocker) Acquire(ctx context.Context, key string) (Lease, error) {
	slot := l.slot(key)

	var timeout <-chan time.Time
	if l.waitTimeout > 0 {
		timer := time.NewTimer(l.waitTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case slot <- struct{}{}:
		return &memoryLease{slot: slot}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timeout:
		return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
	}
}

func (l *MemoryLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = make(chan struct{}, 1)
		l.slots[key] = s
	}
	return s
}

type memoryLease struct {
	slot chan struct{}
	once sync.Once
}

func (l *memoryLease) Release(context.Context) error {
	l.once.Do(func() { <-l.slot })
	return nil
}
