package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/card-repayment-ledger/internal/config"
	"github.com/card-repayment-ledger/internal/data/mongo"
	"github.com/card-repayment-ledger/internal/logger"
	"github.com/card-repayment-ledger/internal/platform/lock"
	"github.com/card-repayment-ledger/internal/platform/messaging/consumers"
	"github.com/card-repayment-ledger/internal/platform/messaging/producers"
	"github.com/card-repayment-ledger/internal/platform/metrics"
	"github.com/card-repayment-ledger/internal/platform/persistence"
	"github.com/card-repayment-ledger/internal/platform/shutdown"
	"github.com/card-repayment-ledger/internal/reconciler/consumer"
	"github.com/card-repayment-ledger/internal/reconciler/service"
	"github.com/card-repayment-ledger/internal/reconciler/sweeper"
)

func main() {
	cfg, err := config.LoadConfig("reconciler")
	if err != nil {
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
	log.Info("Starting reconciler", "app_name", cfg.Application.Name, "env", cfg.Application.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	// background loops end with ctx; the stack waits for them before closing stores
	var loops sync.WaitGroup
	closers := shutdown.NewStack(log)
	defer func() {
		stop()
		releaseCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := closers.Release(releaseCtx); err != nil {
			log.Error("Reconciler shutdown completed with errors", "error", err)
			return
		}
		log.Info("Reconciler shutdown completed")
	}()

	mongoDB, err := persistence.NewMongoDB(ctx, log, &cfg.MongoDB)
	if err != nil {
		return fail("Failed to initialize MongoDB", err)
	}
	closers.Push("mongo", mongoDB.Close)

	redisClient, err := persistence.NewRedisClient(ctx, log, &cfg.Redis)
	if err != nil {
		return fail("Failed to initialize Redis", err)
	}
	if redisClient == nil {
		log.Warn("Reconciler is using a process-local card lock; it only excludes allocations running in this process")
	} else {
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

	recordRepo := mongo.NewRecordRepository(log, mongoDB.Database())
	reconciler := service.NewReconciler(recordRepo, lock.FromConfig(redisClient, cfg.Redis), ledgerMetrics, log)

	pool, err := service.NewWorkerPoolReconcileService(reconciler, service.WorkerPoolConfig{
		Size:            cfg.WorkerPool.Size,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, log)
	if err != nil {
		return fail("Failed to initialize worker pool", err)
	}
	closers.PushCloser("worker pool", func() error {
		pool.Shutdown()
		return nil
	})

	// nil when KAFKA_DLQ_TOPIC is empty
	dlqProducer, err := producers.NewDLQProducer(ctx, log, &cfg.Kafka)
	if err != nil {
		return fail("Failed to initialize DLQ producer", err)
	}
	var deadLetters producers.DeadLetterPublisher
	if dlqProducer != nil {
		deadLetters = dlqProducer
		closers.PushCloser("dlq producer", dlqProducer.Close)
	}

	metricsServer := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           metrics.Handler(registry),
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
	}
	closers.Push("metrics server", metricsServer.Shutdown)

	handler := consumer.NewRecordEventHandler(log, pool, deadLetters)
	kafkaConsumer := consumers.NewKafkaConsumer(ctx, log, &cfg.Kafka)
	// closed before the pool so no new work arrives
	closers.PushCloser("kafka consumer", kafkaConsumer.Close)
	closers.PushCloser("background loops", func() error {
		loops.Wait()
		return nil
	})

	if err := kafkaConsumer.Subscribe(ctx, handler.HandleMessage); err != nil {
		return fail("Failed to subscribe to record events", err)
	}

	if cfg.Reconciler.SweepEnabled {
		sw := sweeper.NewSweeper(&cfg.Reconciler, recordRepo, pool, log)
		loops.Add(1)
		go func() {
			defer loops.Done()
			sw.Start(ctx)
		}()
	} else {
		log.Info("Periodic sweep disabled")
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Serving metrics", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
		return nil
	case err := <-serveErr:
		return fail("Metrics server stopped unexpectedly", err)
	}
}
