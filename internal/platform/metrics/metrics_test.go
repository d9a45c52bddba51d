package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_ObserveAllocation(t *testing.T) {
	m, err := New(prometheus.NewRegistry(), Config{ServiceName: "api", Environment: "test"})
	require.NoError(t, err)

	m.ObserveAllocation("REPAYMENT", OutcomeAllocated, 2, 12000)
	m.ObserveAllocation("REPAYMENT", OutcomeNoCandidate, 0, 0)
	m.ObserveAllocation("PAYMENT", OutcomeFailed, 0, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.allocationRuns.WithLabelValues("REPAYMENT", OutcomeAllocated)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.allocationRuns.WithLabelValues("PAYMENT", OutcomeFailed)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.allocationEdges.WithLabelValues("REPAYMENT")))
	assert.Equal(t, 12000.0, testutil.ToFloat64(m.allocatedAmount.WithLabelValues("REPAYMENT")))
}

func TestMetrics_Reconcile(t *testing.T) {
	m, err := New(prometheus.NewRegistry(), Config{})
	require.NoError(t, err)

	m.AddRepairs(RepairMissingEdge, 3)
	m.AddRepairs(RepairStatus, 0)
	m.ObserveReconcile("sweep", nil)
	m.ObserveReconcile("event", errors.New("boom"))
	m.ObserveLockWait(15 * time.Millisecond)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.reconcileRepairs.WithLabelValues(RepairMissingEdge)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.reconcileRepairs))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reconcileRuns.WithLabelValues("event", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.lockWait))
}

func TestMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg, Config{})
	require.NoError(t, err)

	_, err = New(reg, Config{})
	assert.Error(t, err)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveAllocation("PAYMENT", OutcomeAllocated, 1, 1)
		m.ObserveLockWait(time.Second)
		m.AddRepairs(RepairStatus, 1)
		m.ObserveReconcile("sweep", nil)
	})
}
