// Package metrics exposes Prometheus collectors for allocation and reconciliation.
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Allocation outcomes
const (
	OutcomeAllocated   = "allocated"
	OutcomeNoCandidate = "no_candidate"
	OutcomeFailed      = "failed"
)

// Repair kinds reported by reconciliation
const (
	RepairMissingEdge    = "missing_edge"
	RepairStatus         = "status"
	RepairDanglingEdge   = "dangling_edge"
	RepairOverAllocation = "over_allocation"
)

// Config sets constant labels on every collector
type Config struct {
	ServiceName string
	Environment string
}

// Metrics holds the ledger collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	allocationRuns   *prometheus.CounterVec
	allocatedAmount  *prometheus.CounterVec
	allocationEdges  *prometheus.CounterVec
	lockWait         prometheus.Histogram
	reconcileRepairs *prometheus.CounterVec
	reconcileRuns    *prometheus.CounterVec
}

// New creates the collectors and registers them with registerer
func New(registerer prometheus.Registerer, cfg Config) (*Metrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	service := strings.TrimSpace(cfg.ServiceName)
	if service == "" {
		service = "card-ledger"
	}
	env := strings.TrimSpace(cfg.Environment)
	if env == "" {
		env = "unknown"
	}
	constLabels := prometheus.Labels{"service": service, "env": env}

	m := &Metrics{
		allocationRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "ledger_allocation_runs_total",
			Help:        "Allocation runs by record type and outcome.",
			ConstLabels: constLabels,
		}, []string{"record_type", "outcome"}),
		allocatedAmount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "ledger_allocated_amount_minor_total",
			Help:        "Amount allocated in minor currency units by record type.",
			ConstLabels: constLabels,
		}, []string{"record_type"}),
		allocationEdges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "ledger_allocation_edges_total",
			Help:        "Allocation edges written by record type.",
			ConstLabels: constLabels,
		}, []string{"record_type"}),
		lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "ledger_card_lock_wait_seconds",
			Help:        "Time spent waiting for a per-card lock.",
			Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			ConstLabels: constLabels,
		}),
		reconcileRepairs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "ledger_reconcile_repairs_total",
			Help:        "Findings and repairs made while reconciling a card.",
			ConstLabels: constLabels,
		}, []string{"kind"}),
		reconcileRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "ledger_reconcile_runs_total",
			Help:        "Card reconciliation runs by trigger and result.",
			ConstLabels: constLabels,
		}, []string{"trigger", "result"}),
	}

	for _, c := range []prometheus.Collector{
		m.allocationRuns, m.allocatedAmount, m.allocationEdges,
		m.lockWait, m.reconcileRepairs, m.reconcileRuns,
	} {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveAllocation records one allocation run
func (m *Metrics) ObserveAllocation(recordType, outcome string, edges int, amount int64) {
	if m == nil {
		return
	}
	m.allocationRuns.WithLabelValues(recordType, outcome).Inc()
	if edges > 0 {
		m.allocationEdges.WithLabelValues(recordType).Add(float64(edges))
	}
	if amount > 0 {
		m.allocatedAmount.WithLabelValues(recordType).Add(float64(amount))
	}
}

// ObserveLockWait records how long a lock acquisition took
func (m *Metrics) ObserveLockWait(d time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.Observe(d.Seconds())
}

// AddRepairs counts reconciliation findings of one kind
func (m *Metrics) AddRepairs(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.reconcileRepairs.WithLabelValues(kind).Add(float64(n))
}

// ObserveReconcile records one reconciliation run
func (m *Metrics) ObserveReconcile(trigger string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.reconcileRuns.WithLabelValues(trigger, result).Inc()
}
