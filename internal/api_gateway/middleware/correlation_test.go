package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/card-repayment-ledger/internal/logger"
)

// serveWithCorrelation runs one GET through CorrelationID and reports the id
// seen on the gin context, on the request context and on the response header
func serveWithCorrelation(t *testing.T, header string) (fromGin, fromRequest, fromResponse string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(CorrelationID())
	router.GET("/ping", func(c *gin.Context) {
		fromGin = GetCorrelationID(c)
		fromRequest = logger.CorrelationID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if header != "" {
		req.Header.Set(CorrelationIDHeader, header)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)

	return fromGin, fromRequest, rr.Header().Get(CorrelationIDHeader)
}

func TestCorrelationID_Propagation(t *testing.T) {
	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{name: "Missing", header: "", keep: false},
		{name: "Supplied", header: "req-42", keep: true},
		{name: "SuppliedUUID", header: "6f1c1e4e-3f55-4a8e-9a4f-4d3e2b1a0c9d", keep: true},
		{name: "ContainsSpace", header: "bad id", keep: false},
		{name: "TooLong", header: strings.Repeat("a", maxCorrelationIDLen+1), keep: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fromGin, fromRequest, fromResponse := serveWithCorrelation(t, tt.header)

			assert.Equal(t, fromGin, fromRequest)
			assert.Equal(t, fromGin, fromResponse)
			if tt.keep {
				assert.Equal(t, tt.header, fromGin)
				return
			}
			_, err := uuid.Parse(fromGin)
			assert.NoError(t, err, "replacement id should be a uuid")
		})
	}
}

func TestGetCorrelationID_Unset(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Empty(t, GetCorrelationID(c))

	c.Set(CorrelationIDKey, 7)
	assert.Empty(t, GetCorrelationID(c))
}
