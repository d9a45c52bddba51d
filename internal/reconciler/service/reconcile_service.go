package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/card-repayment-ledger/internal/allocation"
	"github.com/card-repayment-ledger/internal/domain/record"
	"github.com/card-repayment-ledger/internal/domain/settlement"
	"github.com/card-repayment-ledger/internal/domain/shared"
	"github.com/card-repayment-ledger/internal/platform/lock"
	"github.com/card-repayment-ledger/internal/platform/metrics"
)

// Reconciler implements ReconcileService on the record store. It never removes
// allocation entries.
type Reconciler struct {
	repo    record.Repository
	locker  lock.Locker
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewReconciler creates a Reconciler
func NewReconciler(repo record.Repository, locker lock.Locker, m *metrics.Metrics, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		repo:    repo,
		locker:  locker,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// ReconcileCard runs under the card lock so it never races an allocation:
// one-sided edges get their missing reciprocal entry when the counterpart has
// room, then every active record's status is re-derived.
func (r *Reconciler) ReconcileCard(ctx context.Context, ownerID, cardID, trigger string) (*Report, error) {
	report := &Report{OwnerID: ownerID, CardID: cardID}
	logger := r.logger.With("owner_id", ownerID, "card_id", cardID, "trigger", trigger)

	err := lock.Do(ctx, r.locker, shared.CardKey(ownerID, cardID), func(ctx context.Context) error {
		records, err := r.repo.ListByCard(ctx, ownerID, cardID)
		if err != nil {
			return fmt.Errorf("failed to list records of card %s: %w", cardID, err)
		}
		byID := make(map[string]*record.Record, len(records))
		for _, rec := range records {
			byID[rec.ID] = rec
		}

		if err := r.repairEdges(ctx, records, byID, report, logger); err != nil {
			return err
		}
		return r.rederiveStatuses(ctx, records, report, logger)
	})
	r.metrics.ObserveReconcile(trigger, err)
	if err != nil {
		logger.Error("Reconciliation failed", "error", err)
		return nil, err
	}

	r.metrics.AddRepairs(metrics.RepairMissingEdge, report.MissingEdges)
	r.metrics.AddRepairs(metrics.RepairStatus, report.StatusFixes)
	r.metrics.AddRepairs(metrics.RepairDanglingEdge, len(report.Dangling))
	r.metrics.AddRepairs(metrics.RepairOverAllocation, len(report.OverAllocated))

	if report.Clean() {
		logger.Debug("Card is consistent", "records", report.Records)
	} else {
		logger.Warn("Card reconciled",
			"records", report.Records,
			"missing_edges", report.MissingEdges,
			"status_fixes", report.StatusFixes,
			"dangling", report.Dangling,
			"over_allocated", report.OverAllocated,
		)
	}
	return report, nil
}

// repairEdges compares both sides of every linked pair once. The larger side
// wins; the smaller side is topped up when the record can take it.
func (r *Reconciler) repairEdges(ctx context.Context, records []*record.Record, byID map[string]*record.Record, report *Report, logger *slog.Logger) error {
	seen := make(map[[2]string]struct{})
	dangling := make(map[string]struct{})
	over := make(map[string]struct{})

	for _, rec := range records {
		if !rec.IsActive {
			continue
		}
		report.Records++
		for _, entry := range rec.Allocations {
			cp, ok := byID[entry.CounterpartID]
			if !ok || !cp.IsActive || cp.Type == rec.Type {
				dangling[rec.ID] = struct{}{}
				continue
			}
			pair := [2]string{rec.ID, cp.ID}
			if pair[0] > pair[1] {
				pair[0], pair[1] = pair[1], pair[0]
			}
			if _, done := seen[pair]; done {
				continue
			}
			seen[pair] = struct{}{}

			mine, theirs := rec.AllocatedTo(cp.ID), cp.AllocatedTo(rec.ID)
			if mine == theirs {
				continue
			}
			short, long, missing := cp, rec, mine-theirs
			if theirs > mine {
				short, long, missing = rec, cp, theirs-mine
			}
			if short.AllocatedSum()+missing > short.Amount {
				over[short.ID] = struct{}{}
				logger.Error("One-sided allocation cannot be mirrored without over-allocating",
					"record_id", short.ID, "counterpart_id", long.ID, "missing", missing)
				continue
			}

			updated, err := r.repo.AppendAllocation(ctx, short.OwnerID, short.ID, record.Allocation{
				CounterpartID: long.ID,
				Amount:        missing,
				AllocatedAt:   r.now().UTC(),
			})
			if err != nil {
				return fmt.Errorf("failed to mirror allocation %s -> %s: %w", long.ID, short.ID, err)
			}
			// Later pairs must see the entry just written
			*short = *updated
			report.MissingEdges++
			logger.Info("Mirrored one-sided allocation", "record_id", short.ID, "counterpart_id", long.ID, "amount", missing)
		}
	}

	report.Dangling = sortedKeys(dangling)
	report.OverAllocated = sortedKeys(over)
	return nil
}

func (r *Reconciler) rederiveStatuses(ctx context.Context, records []*record.Record, report *Report, logger *slog.Logger) error {
	over := make(map[string]struct{}, len(report.OverAllocated))
	for _, id := range report.OverAllocated {
		over[id] = struct{}{}
	}

	for _, rec := range records {
		if !rec.IsActive {
			continue
		}
		applied, err := allocation.AppliedAmount(ctx, r.repo, rec)
		if err != nil {
			return err
		}
		if applied > rec.Amount {
			over[rec.ID] = struct{}{}
		}

		status := settlement.Derive(rec.Amount, applied)
		if status == rec.Status {
			continue
		}
		if err := r.repo.SetStatus(ctx, rec.OwnerID, rec.ID, status); err != nil {
			return fmt.Errorf("failed to store status of record %s: %w", rec.ID, err)
		}
		logger.Info("Corrected record status", "record_id", rec.ID, "from", rec.Status, "to", status, "applied", applied)
		rec.Status = status
		report.StatusFixes++
	}

	report.OverAllocated = sortedKeys(over)
	return nil
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
