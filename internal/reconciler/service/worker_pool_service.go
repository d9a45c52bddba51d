package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/card-repayment-ledger/internal/domain/shared"
)

// WorkerPoolReconcileService runs reconciliations on a bounded ants pool.
// Concurrent requests for the same card share one run.
type WorkerPoolReconcileService struct {
	baseService ReconcileService
	pool        *ants.Pool
	logger      *slog.Logger
	drainFor    time.Duration
	// Protects inflight
	mu       sync.Mutex
	inflight map[string]*job
}

// job is one reconciliation run that several callers may wait on
type job struct {
	done   chan struct{}
	report *Report
	err    error
}

type WorkerPoolConfig struct {
	Size int
	// ShutdownTimeout bounds how long Shutdown waits for running jobs
	ShutdownTimeout time.Duration
}

func NewWorkerPoolReconcileService(
	baseService ReconcileService,
	config WorkerPoolConfig,
	logger *slog.Logger,
) (*WorkerPoolReconcileService, error) {
	pool, err := ants.NewPool(config.Size)
	if err != nil {
		return nil, err
	}
	drain := config.ShutdownTimeout
	if drain <= 0 {
		drain = 30 * time.Second
	}

	return &WorkerPoolReconcileService{
		baseService: baseService,
		pool:        pool,
		logger:      logger,
		drainFor:    drain,
		inflight:    make(map[string]*job),
	}, nil
}

// ReconcileCard submits the card to the pool, or joins the run already in
// flight for it, and waits for the report
func (s *WorkerPoolReconcileService) ReconcileCard(ctx context.Context, ownerID, cardID, trigger string) (*Report, error) {
	key := shared.CardKey(ownerID, cardID)

	s.mu.Lock()
	if running, ok := s.inflight[key]; ok {
		s.mu.Unlock()
		s.logger.Debug("Joining in-flight reconciliation", "card_key", key, "trigger", trigger)
		return s.wait(ctx, running)
	}
	j := &job{done: make(chan struct{})}
	s.inflight[key] = j
	s.mu.Unlock()

	// The run outlives a caller that stops waiting
	runCtx := context.WithoutCancel(ctx)
	err := s.pool.Submit(func() {
		j.report, j.err = s.baseService.ReconcileCard(runCtx, ownerID, cardID, trigger)
		s.finish(key, j)
	})
	if err != nil {
		j.err = err
		s.finish(key, j)

		s.logger.Error("Failed to submit reconciliation to worker pool", "card_key", key, "error", err)
		return nil, err
	}

	return s.wait(ctx, j)
}

func (s *WorkerPoolReconcileService) finish(key string, j *job) {
	s.mu.Lock()
	delete(s.inflight, key)
	s.mu.Unlock()
	close(j.done)
}

func (s *WorkerPoolReconcileService) wait(ctx context.Context, j *job) (*Report, error) {
	select {
	case <-j.done:
		return j.report, j.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Shutdown waits for running reconciliations and releases the pool
func (s *WorkerPoolReconcileService) Shutdown() {
	s.logger.Info("Shutting down worker pool", "running_workers", s.pool.Running())
	if err := s.pool.ReleaseTimeout(s.drainFor); err != nil {
		s.logger.Warn("Worker pool did not drain before timeout", "timeout", s.drainFor.String(), "error", err)
	}
}

// Running returns the number of running workers in the pool.
func (s *WorkerPoolReconcileService) Running() int {
	return s.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (s *WorkerPoolReconcileService) Capacity() int {
	return s.pool.Cap()
}
