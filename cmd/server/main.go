package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/siteguardhq/siteguard/internal/api"
	"github.com/siteguardhq/siteguard/internal/config"
	"github.com/siteguardhq/siteguard/internal/database"
	"github.com/siteguardhq/siteguard/internal/jobs"
	"github.com/siteguardhq/siteguard/internal/logging"
	"github.com/siteguardhq/siteguard/internal/metrics"
	"github.com/siteguardhq/siteguard/internal/notification"
	"github.com/siteguardhq/siteguard/internal/probe"
	"github.com/siteguardhq/siteguard/internal/scheduler"
	"github.com/siteguardhq/siteguard/internal/state"
	"github.com/siteguardhq/siteguard/internal/storage"
	"github.com/siteguardhq/siteguard/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.NewLogger(cfg.LogDir, cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("failed to get database connection", zap.Error(err))
	}
	defer sqlDB.Close()

	if err := database.RunMigrations(cfg.Database); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	store := storage.NewPostgresStore(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := websocket.NewHub(cfg.JWTSecret, cfg.CORSOrigins, logger)
	go hub.Run(ctx)

	dispatcher := notification.NewDispatcher(store, store, store, notification.Options{}, logger)
	dispatcher.Start(ctx)

	aggregator := metrics.NewAggregator(store, store, logger)

	engine := state.NewEngine(store, store, aggregator, dispatcher, hub, state.Options{
		SlowThresholdMs:  cfg.SlowThresholdMs,
		OfflineThreshold: cfg.OfflineThreshold,
		SSLWarningWindow: cfg.SSLWarningWindow,
	}, logger)

	prober := probe.New(cfg.ProbeTimeout, logger)
	sched := scheduler.New(store, prober, scheduler.Options{
		Tick:                cfg.SchedulerTick,
		MaxConcurrentProbes: cfg.MaxConcurrentProbes,
	}, logger)
	if err := sched.Start(ctx); err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}
	go engine.Run(ctx, sched.Results())

	housekeeping := jobs.NewHousekeeping(store, store, logger)
	housekeeping.Start()
	defer housekeeping.Stop()

	guard := probe.NewURLGuard(cfg.AllowPrivateIPs)

	router := api.NewRouter(cfg, api.Deps{
		Store:      store,
		Scheduler:  sched,
		Forgetter:  engine,
		Guard:      guard,
		Aggregator: aggregator,
		Tester:     dispatcher,
		Hub:        hub,
		Logger:     logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	sched.Wait()
	dispatcher.Wait()

	logger.Info("server exited")
}
