package api_gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/card-repayment-ledger/internal/api_gateway/handler"
	"github.com/card-repayment-ledger/internal/api_gateway/service"
	"github.com/card-repayment-ledger/internal/config"
	"github.com/card-repayment-ledger/internal/domain/catalog"
)

// Services are the application services the HTTP layer depends on
type Services struct {
	Records    service.RecordService
	Cards      service.CardService
	Categories service.CategoryService
	Dashboard  service.DashboardService
	// Metrics serves /metrics when set
	Metrics http.Handler
}

// Server owns the gin engine and the listener of the api gateway
type Server struct {
	logger *slog.Logger
	engine *gin.Engine
	http   *http.Server
	// drain bounds how long Stop waits for in-flight requests
	drain time.Duration
}

// NewServer mounts every route on a fresh engine. loc is the zone calendar
// dates in requests are read in.
func NewServer(log *slog.Logger, cfg *config.Config, loc *time.Location, svc Services) *Server {
	if cfg.Application.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	setupRouter(log, engine, handlers{
		records:          handler.NewRecordHandler(log, svc.Records, loc),
		cards:            handler.NewCardHandler(log, svc.Cards),
		swipeTypes:       handler.NewCategoryHandler(log, svc.Categories, catalog.KindSwipe),
		consumptionTypes: handler.NewCategoryHandler(log, svc.Categories, catalog.KindConsumption),
		dashboard:        handler.NewDashboardHandler(log, svc.Dashboard),
		metrics:          svc.Metrics,
	})

	return &Server{
		logger: log.With("component", "http"),
		engine: engine,
		drain:  cfg.Server.ShutdownTimeout,
		http: &http.Server{
			Addr:              ":" + strconv.Itoa(cfg.Server.Port),
			Handler:           engine,
			ReadHeaderTimeout: cfg.Server.ReadTimeout,
			ReadTimeout:       cfg.Server.ReadTimeout,
			WriteTimeout:      cfg.Server.WriteTimeout,
			IdleTimeout:       cfg.Server.IdleTimeout,
		},
	}
}

// Handler returns the routed engine without a listener
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until Stop is called. A clean stop returns nil.
func (s *Server) Start() error {
	s.logger.Info("Listening", "addr", s.http.Addr)
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("http server on %s: %w", s.http.Addr, err)
}

// Stop refuses new connections and waits for in-flight requests, for at most
// the configured shutdown timeout or until ctx ends
func (s *Server) Stop(ctx context.Context) error {
	if s.drain > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.drain)
		defer cancel()
	}
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("draining http server: %w", err)
	}
	s.logger.Info("Stopped")
	return nil
}
