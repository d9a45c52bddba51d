package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_ExposesRuntimeAndLedgerMetrics(t *testing.T) {
	reg := NewRegistry()
	m, err := New(reg, Config{ServiceName: "reconciler", Environment: "test"})
	require.NoError(t, err)
	m.ObserveReconcile("sweep", nil)

	rr := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "go_goroutines")
	assert.Contains(t, body, `ledger_reconcile_runs_total{env="test",result="ok",service="reconciler",trigger="sweep"} 1`)
}
