package api_gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/card-repayment-ledger/internal/api_gateway/handler"
	"github.com/card-repayment-ledger/internal/api_gateway/middleware"
)

// handlers groups the route handlers mounted by setupRouter
type handlers struct {
	records          *handler.RecordHandler
	cards            *handler.CardHandler
	swipeTypes       *handler.CategoryHandler
	consumptionTypes *handler.CategoryHandler
	dashboard        *handler.DashboardHandler
	metrics          http.Handler
}

// setupRouter configures API routes and middleware for the application
func setupRouter(logger *slog.Logger, r *gin.Engine, h handlers) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Logger(logger))

	// API v1 endpoints, all scoped to the calling owner
	v1 := r.Group("/api/v1", middleware.OwnerIdentity())
	{
		records := v1.Group("/records")
		{
			records.POST("", h.records.Create)
			records.GET("", h.records.List)
			records.GET("/stats", h.records.Stats)
			records.GET("/:id", h.records.GetByID)
			records.PATCH("/:id", h.records.Update)
			records.DELETE("/:id", h.records.Delete)
		}

		v1.GET("/dashboard", h.dashboard.Get)

		cards := v1.Group("/cards")
		{
			cards.POST("", h.cards.Create)
			cards.GET("", h.cards.List)
			cards.GET("/:id", h.cards.GetByID)
			cards.PATCH("/:id", h.cards.Update)
			cards.DELETE("/:id", h.cards.Delete)
		}

		mountCategories(v1.Group("/swipe-types"), h.swipeTypes)
		mountCategories(v1.Group("/consumption-types"), h.consumptionTypes)
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics))
	}
}

func mountCategories(g *gin.RouterGroup, h *handler.CategoryHandler) {
	g.POST("", h.Create)
	g.GET("", h.List)
	g.PATCH("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}
