package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/card-repayment-ledger/internal/api_gateway/middleware"
	"github.com/card-repayment-ledger/internal/api_gateway/service"
)

// DashboardHandler serves the home summary
type DashboardHandler struct {
	dashboardService service.DashboardService
	logger           *slog.Logger
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(logger *slog.Logger, dashboardService service.DashboardService) *DashboardHandler {
	return &DashboardHandler{
		dashboardService: dashboardService,
		logger:           logger,
	}
}

// Get returns the summary for every card, or for one card when card_id is set
func (h *DashboardHandler) Get(c *gin.Context) {
	var params DashboardParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondInvalidParams(c, "Invalid query parameters: "+err.Error())
		return
	}

	summary, err := h.dashboardService.GetSummary(c.Request.Context(), middleware.GetOwnerID(c), params.CardID)
	if err != nil {
		respondServiceError(c, h.logger, err, "build dashboard")
		return
	}
	RespondOK(c, mapSummaryToResponse(summary))
}
