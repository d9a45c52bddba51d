package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// OwnerIDHeader carries the authenticated owner, set by the upstream auth proxy
	OwnerIDHeader = "X-Owner-ID"

	// OwnerIDKey is the key used to store the owner id in the context
	OwnerIDKey = "owner_id"
)

// OwnerIdentity rejects requests that do not name an owner. Every record and
// catalog query is scoped to this id.
func OwnerIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID := strings.TrimSpace(c.GetHeader(OwnerIDHeader))
		if ownerID == "" {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing "+OwnerIDHeader+" header")
			return
		}

		c.Set(OwnerIDKey, ownerID)
		c.Next()
	}
}

// GetOwnerID retrieves the owner id set by OwnerIdentity
func GetOwnerID(c *gin.Context) string {
	return c.GetString(OwnerIDKey)
}
