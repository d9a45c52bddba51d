package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/card-repayment-ledger/internal/dashboard"
)

// SummaryBuilder assembles a dashboard summary
type SummaryBuilder interface {
	Build(ctx context.Context, ownerID string, opts dashboard.Options) (*dashboard.Summary, error)
}

// DashboardServiceImpl implements the DashboardService interface
type DashboardServiceImpl struct {
	builder SummaryBuilder
	logger  *slog.Logger
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(logger *slog.Logger, builder SummaryBuilder) *DashboardServiceImpl {
	return &DashboardServiceImpl{builder: builder, logger: logger}
}

func (s *DashboardServiceImpl) GetSummary(ctx context.Context, ownerID, cardID string) (*dashboard.Summary, error) {
	start := time.Now()
	summary, err := s.builder.Build(ctx, ownerID, dashboard.Options{CardID: cardID})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Dashboard built",
		"owner_id", ownerID,
		"card_id", cardID,
		"cards", len(summary.Cards),
		"duration", time.Since(start),
	)
	return summary, nil
}
