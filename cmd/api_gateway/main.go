package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/card-repayment-ledger/internal/allocation"
	"github.com/card-repayment-ledger/internal/api_gateway"
	"github.com/card-repayment-ledger/internal/api_gateway/service"
	"github.com/card-repayment-ledger/internal/config"
	"github.com/card-repayment-ledger/internal/dashboard"
	"github.com/card-repayment-ledger/internal/data/mongo"
	"github.com/card-repayment-ledger/internal/data/postgres"
	"github.com/card-repayment-ledger/internal/logger"
	"github.com/card-repayment-ledger/internal/platform/lock"
	"github.com/card-repayment-ledger/internal/platform/messaging/producers"
	"github.com/card-repayment-ledger/internal/platform/metrics"
	"github.com/card-repayment-ledger/internal/platform/persistence"
	"github.com/card-repayment-ledger/internal/platform/shutdown"
)

func main() {
	cfg, err := config.LoadConfig("api_gateway")
	if err != nil {
		// no logger before the config is known
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := run(cfg); err != nil {
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	log := logger.NewLogger(cfg)
	fail := func(msg string, err error) error {
		log.Error(msg, "error", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	closers := shutdown.NewStack(log)
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := closers.Release(releaseCtx); err != nil {
			log.Error("API gateway shutdown completed with errors", "error", err)
			return
		}
		log.Info("API gateway shutdown completed")
	}()

	loc, err := cfg.Application.Location()
	if err != nil {
		return fail("Failed to resolve application timezone", err)
	}

	// Stores
	postgresDB, err := persistence.NewPostgresDB(ctx, log, &cfg.Postgres)
	if err != nil {
		return fail("Failed to initialize PostgreSQL", err)
	}
	closers.PushCloser("postgres", func() error {
		postgresDB.Close()
		return nil
	})

	mongoDB, err := persistence.NewMongoDB(ctx, log, &cfg.MongoDB)
	if err != nil {
		return fail("Failed to initialize MongoDB", err)
	}
	closers.Push("mongo", mongoDB.Close)

	redisClient, err := persistence.NewRedisClient(ctx, log, &cfg.Redis)
	if err != nil {
		return fail("Failed to initialize Redis", err)
	}
	if redisClient != nil {
		closers.PushCloser("redis", redisClient.Close)
	}

	registry := metrics.NewRegistry()
	ledgerMetrics, err := metrics.New(registry, metrics.Config{
		ServiceName: cfg.Application.Name,
		Environment: cfg.Application.Env,
	})
	if err != nil {
		return fail("Failed to register metrics", err)
	}

	events, err := producers.NewRecordEventProducer(ctx, log, &cfg.Kafka)
	if err != nil {
		return fail("Failed to initialize record event producer", err)
	}
	closers.PushCloser("record event producer", events.Close)

	cardRepo := postgres.NewCardRepository(log, postgresDB)
	categoryRepo := postgres.NewCategoryRepository(log, postgresDB)
	recordRepo := mongo.NewRecordRepository(log, mongoDB.Database())
	if err := recordRepo.EnsureIndexes(ctx); err != nil {
		return fail("Failed to ensure record indexes", err)
	}

	locker := lock.FromConfig(redisClient, cfg.Redis)
	var engineOpts []allocation.Option
	if cfg.MongoDB.UseTransactions {
		engineOpts = append(engineOpts, allocation.WithTransactor(recordRepo))
	}
	engine := allocation.NewEngine(recordRepo, locker, ledgerMetrics, log, engineOpts...)

	server := api_gateway.NewServer(log, cfg, loc, api_gateway.Services{
		Records:    service.NewRecordService(log, recordRepo, cardRepo, categoryRepo, engine, locker, events, loc),
		Cards:      service.NewCardService(log, cardRepo),
		Categories: service.NewCategoryService(log, categoryRepo),
		Dashboard:  service.NewDashboardService(log, dashboard.NewAggregator(recordRepo, cardRepo, loc, log)),
		Metrics:    metrics.Handler(registry),
	})
	// stops first, while the stores are still open for in-flight requests
	closers.Push("http server", server.Stop)

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Start() }()

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
		return nil
	case err := <-serveErr:
		if err == nil {
			return nil
		}
		return fail("HTTP server stopped unexpectedly", err)
	}
}
