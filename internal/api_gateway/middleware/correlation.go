package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/card-repayment-ledger/internal/logger"
)

const (
	// CorrelationIDHeader carries the request trace id in and out
	CorrelationIDHeader = "X-Correlation-ID"

	// CorrelationIDKey is the gin context key holding the trace id
	CorrelationIDKey = "correlation_id"

	maxCorrelationIDLen = 128
)

// CorrelationID accepts a caller supplied trace id or mints one, echoes it on
// the response and stores it on both the gin and the request context.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := acceptCorrelationID(c.GetHeader(CorrelationIDHeader))

		c.Set(CorrelationIDKey, id)
		c.Writer.Header().Set(CorrelationIDHeader, id)
		ctx := logger.WithCorrelationID(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// acceptCorrelationID keeps printable ASCII ids up to a bounded length.
// Anything else is replaced so log lines stay well formed.
func acceptCorrelationID(raw string) string {
	if raw == "" || len(raw) > maxCorrelationIDLen {
		return uuid.NewString()
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] < 0x21 || raw[i] > 0x7e {
			return uuid.NewString()
		}
	}
	return raw
}

// GetCorrelationID returns the trace id set by CorrelationID, or ""
func GetCorrelationID(c *gin.Context) string {
	return c.GetString(CorrelationIDKey)
}
