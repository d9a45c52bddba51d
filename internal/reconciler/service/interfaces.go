package service

import (
	"context"
)

// Triggers label what started a reconciliation run
const (
	TriggerEvent = "event"
	TriggerSweep = "sweep"
	TriggerCLI   = "cli"
)

// ReconcileService checks and repairs the allocation state of one card
type ReconcileService interface {
	ReconcileCard(ctx context.Context, ownerID, cardID, trigger string) (*Report, error)
}

// Report lists what a run found on one card. Repairs were written; dangling
// and over-allocated records were only reported.
type Report struct {
	OwnerID       string   `json:"owner_id"`
	CardID        string   `json:"card_id"`
	Records       int      `json:"records"`
	MissingEdges  int      `json:"missing_edges_repaired"`
	StatusFixes   int      `json:"status_fixes"`
	Dangling      []string `json:"dangling_records,omitempty"`
	OverAllocated []string `json:"over_allocated_records,omitempty"`
}

// Clean reports whether the run found nothing to repair or report
func (r *Report) Clean() bool {
	return r.MissingEdges == 0 && r.StatusFixes == 0 && len(r.Dangling) == 0 && len(r.OverAllocated) == 0
}
