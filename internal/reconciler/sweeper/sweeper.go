package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/card-repayment-ledger/internal/config"
	"github.com/card-repayment-ledger/internal/domain/record"
	"github.com/card-repayment-ledger/internal/reconciler/service"
)

// CardLister enumerates the cards that hold active records
type CardLister interface {
	ListCardKeys(ctx context.Context) ([]record.CardKey, error)
}

// Summary totals one sweep
type Summary struct {
	Cards        int
	Failed       int
	MissingEdges int
	StatusFixes  int
	Flagged      int // Cards with dangling or over-allocated records
}

// Sweeper periodically reconciles every card so drift that produced no event
// is still repaired
type Sweeper struct {
	lister      CardLister
	reconciler  service.ReconcileService
	logger      *slog.Logger
	interval    time.Duration
	concurrency int
	trigger     string
}

func NewSweeper(
	cfg *config.ReconcilerConfig,
	lister CardLister,
	reconciler service.ReconcileService,
	logger *slog.Logger,
) *Sweeper {
	concurrency := cfg.SweepConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Sweeper{
		lister:      lister,
		reconciler:  reconciler,
		logger:      logger,
		interval:    cfg.SweepInterval,
		concurrency: concurrency,
		trigger:     service.TriggerSweep,
	}
}

// WithTrigger returns a copy that labels its runs with trigger
func (s *Sweeper) WithTrigger(trigger string) *Sweeper {
	cp := *s
	cp.trigger = trigger
	return &cp
}

// Start sweeps on every tick until ctx is canceled
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("Starting reconciliation sweeper",
		"sweep_interval", s.interval.String(),
		"concurrency", s.concurrency,
	)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Sweeper stopping due to context cancellation.")
			return
		case <-ticker.C:
			s.logger.Debug("Sweeper tick: reconciling cards")
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error("Error during reconciliation sweep", "error", err)
			}
		}
	}
}

// Sweep reconciles every card once. A failing card is logged and counted but
// does not stop the others.
func (s *Sweeper) Sweep(ctx context.Context) (Summary, error) {
	keys, err := s.lister.ListCardKeys(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to list cards: %w", err)
	}
	if len(keys) == 0 {
		s.logger.Debug("No cards to reconcile.")
		return Summary{}, nil
	}

	var failed, missing, fixes, flagged atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, key := range keys {
		g.Go(func() error {
			report, err := s.reconciler.ReconcileCard(gctx, key.OwnerID, key.CardID, s.trigger)
			if err != nil {
				failed.Add(1)
				s.logger.Error("Failed to reconcile card",
					"owner_id", key.OwnerID, "card_id", key.CardID, "error", err,
				)
				return nil
			}
			missing.Add(int64(report.MissingEdges))
			fixes.Add(int64(report.StatusFixes))
			if len(report.Dangling) > 0 || len(report.OverAllocated) > 0 {
				flagged.Add(1)
			}
			return nil
		})
	}
	// Workers never return an error
	_ = g.Wait()

	summary := Summary{
		Cards:        len(keys),
		Failed:       int(failed.Load()),
		MissingEdges: int(missing.Load()),
		StatusFixes:  int(fixes.Load()),
		Flagged:      int(flagged.Load()),
	}
	s.logger.Info("Reconciliation sweep finished",
		"cards", summary.Cards,
		"failed", summary.Failed,
		"missing_edges", summary.MissingEdges,
		"status_fixes", summary.StatusFixes,
		"flagged", summary.Flagged,
	)
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}
