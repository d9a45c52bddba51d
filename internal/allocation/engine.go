// Package allocation matches a newly created record against the open records
// of the opposite type on the same card, oldest first.
package allocation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/card-repayment-ledger/internal/domain/record"
	"github.com/card-repayment-ledger/internal/domain/settlement"
	"github.com/card-repayment-ledger/internal/domain/shared"
	"github.com/card-repayment-ledger/internal/platform/lock"
	"github.com/card-repayment-ledger/internal/platform/metrics"
)

// Engine runs FIFO allocation for one record at a time per card
type Engine struct {
	repo       record.Repository
	locker     lock.Locker
	transactor record.Transactor
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// Option customizes an Engine
type Option func(*Engine)

// WithTransactor makes both sides of every edge commit in one store transaction
func WithTransactor(t record.Transactor) Option {
	return func(e *Engine) { e.transactor = t }
}

// WithClock overrides the time source used for allocation timestamps
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an allocation engine
func NewEngine(repo record.Repository, locker lock.Locker, m *metrics.Metrics, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		repo:    repo,
		locker:  locker,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Allocate links rec to open counterparts until either rec or the candidates are
// exhausted, then stores rec's settlement status and returns it as persisted.
// Edges written before a failure stay committed.
func (e *Engine) Allocate(ctx context.Context, rec *record.Record) (*record.Record, error) {
	logger := e.logger.With("record_id", rec.ID, "owner_id", rec.OwnerID, "card_id", rec.CardID, "record_type", rec.Type)

	waitStart := time.Now()
	lease, err := e.locker.Acquire(ctx, rec.CardKey())
	e.metrics.ObserveLockWait(time.Since(waitStart))
	if err != nil {
		e.metrics.ObserveAllocation(string(rec.Type), metrics.OutcomeFailed, 0, 0)
		return nil, fmt.Errorf("failed to lock card %s: %w", rec.CardKey(), err)
	}
	defer func() {
		if relErr := lease.Release(context.WithoutCancel(ctx)); relErr != nil {
			logger.Error("Failed to release card lock", "error", relErr)
		}
	}()

	// The caller's copy may predate allocations made by whoever held the lock before us.
	fresh, err := e.repo.GetByID(ctx, rec.OwnerID, rec.ID)
	if err != nil {
		e.metrics.ObserveAllocation(string(rec.Type), metrics.OutcomeFailed, 0, 0)
		return nil, fmt.Errorf("failed to reload record %s: %w", rec.ID, err)
	}
	if fresh.CardKey() != rec.CardKey() {
		e.metrics.ObserveAllocation(string(rec.Type), metrics.OutcomeFailed, 0, 0)
		return nil, fmt.Errorf("record %s moved from card %s to %s while waiting for the lock", rec.ID, rec.CardKey(), fresh.CardKey())
	}
	applied, err := AppliedAmount(ctx, e.repo, fresh)
	if err != nil {
		e.metrics.ObserveAllocation(string(rec.Type), metrics.OutcomeFailed, 0, 0)
		return nil, err
	}

	var (
		edges     int
		allocated int64
	)
	if fresh.IsActive && applied < fresh.Amount {
		edges, allocated, err = e.allocate(ctx, fresh, fresh.Amount-applied, logger)
		if err != nil {
			e.metrics.ObserveAllocation(string(rec.Type), metrics.OutcomeFailed, edges, allocated)
			return nil, err
		}
	}

	status := settlement.Derive(fresh.Amount, applied+allocated)
	if err = e.repo.SetStatus(ctx, rec.OwnerID, rec.ID, status); err != nil {
		e.metrics.ObserveAllocation(string(rec.Type), metrics.OutcomeFailed, edges, allocated)
		return nil, fmt.Errorf("failed to store status of record %s: %w", rec.ID, err)
	}

	outcome := metrics.OutcomeAllocated
	if edges == 0 {
		outcome = metrics.OutcomeNoCandidate
	}
	e.metrics.ObserveAllocation(string(rec.Type), outcome, edges, allocated)
	logger.Info("Allocation finished", "edges", edges, "allocated", allocated, "status", status)

	stored, err := e.repo.GetByID(ctx, rec.OwnerID, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to read back record %s: %w", rec.ID, err)
	}
	return stored, nil
}

func (e *Engine) allocate(ctx context.Context, rec *record.Record, remaining int64, logger *slog.Logger) (int, int64, error) {
	counterparts, err := e.repo.FindOpen(ctx, rec.OwnerID, rec.CardID, rec.Type.Counterpart())
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load counterparts for record %s: %w", rec.ID, err)
	}

	var (
		edges     int
		allocated int64
	)
	for _, cp := range counterparts {
		if remaining <= 0 {
			break
		}

		applied, err := AppliedAmount(ctx, e.repo, cp)
		if err != nil {
			return edges, allocated, err
		}

		if applied >= cp.Amount {
			if cp.Status != settlement.StatusPaid {
				logger.Warn("Counterpart already fully applied, correcting status", "counterpart_id", cp.ID, "applied", applied, "amount", cp.Amount)
				if err = e.repo.SetStatus(ctx, cp.OwnerID, cp.ID, settlement.StatusPaid); err != nil {
					return edges, allocated, fmt.Errorf("failed to correct status of record %s: %w", cp.ID, err)
				}
			}
			continue
		}

		amount := min(cp.Amount-applied, remaining)
		if err = e.writeEdge(ctx, rec, cp, amount); err != nil {
			logger.Error("Failed to write allocation edge", "counterpart_id", cp.ID, "amount", amount, "error", err)
			return edges, allocated, fmt.Errorf("failed to allocate %d between %s and %s: %w", amount, rec.ID, cp.ID, err)
		}

		if err = e.repo.SetStatus(ctx, cp.OwnerID, cp.ID, settlement.Derive(cp.Amount, applied+amount)); err != nil {
			return edges, allocated, fmt.Errorf("failed to store status of record %s: %w", cp.ID, err)
		}

		remaining -= amount
		allocated += amount
		edges++
		logger.Debug("Allocation edge written", "counterpart_id", cp.ID, "amount", amount, "remaining", remaining)
	}
	return edges, allocated, nil
}

// writeEdge appends the reciprocal allocation entries, repayment side first
func (e *Engine) writeEdge(ctx context.Context, rec, cp *record.Record, amount int64) error {
	spender, receiver := rec, cp
	if rec.Type == shared.RecordTypePayment {
		spender, receiver = cp, rec
	}
	at := e.now().UTC()

	write := func(ctx context.Context) error {
		if _, err := e.repo.AppendAllocation(ctx, spender.OwnerID, spender.ID, record.Allocation{
			CounterpartID: receiver.ID,
			Amount:        amount,
			AllocatedAt:   at,
		}); err != nil {
			return fmt.Errorf("repayment side %s: %w", spender.ID, err)
		}
		if _, err := e.repo.AppendAllocation(ctx, receiver.OwnerID, receiver.ID, record.Allocation{
			CounterpartID: spender.ID,
			Amount:        amount,
			AllocatedAt:   at,
		}); err != nil {
			return fmt.Errorf("payment side %s: %w", receiver.ID, err)
		}
		return nil
	}

	if e.transactor != nil {
		return e.transactor.WithinTransaction(ctx, write)
	}
	return write(ctx)
}

// AppliedAmount is how much of rec is already used up: the larger of its own
// allocation entries and every entry elsewhere that references it.
func AppliedAmount(ctx context.Context, repo record.Repository, rec *record.Record) (int64, error) {
	external, err := repo.SumAllocatedTo(ctx, rec.OwnerID, rec.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to sum allocations to record %s: %w", rec.ID, err)
	}
	return max(rec.AllocatedSum(), external), nil
}
