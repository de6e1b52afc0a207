package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/segyhp/loan-ledger/internal/config"
	"github.com/segyhp/loan-ledger/internal/scheduler"
	"github.com/segyhp/loan-ledger/internal/service"
	"github.com/segyhp/loan-ledger/internal/store"
	"github.com/segyhp/loan-ledger/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting ledger scheduler...")

	ctx := context.Background()

	st, err := store.Open(ctx, cfg)
	if err != nil {
		logger.L().Fatal("Failed to open store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer st.Close()

	summaries := store.OpenCache(ctx, cfg)
	defer summaries.Close()

	reports := service.NewReportService(st.Loans, st.Payments, st.Users, summaries.Summaries, cfg)

	s, err := scheduler.New(cfg, reports)
	if err != nil {
		logger.L().Fatal("Failed to schedule jobs", zap.Error(err))
	}

	// Warm the cache before the first tick.
	if err := s.RunWarmUp(ctx); err != nil {
		logger.Error("Initial cache warm-up failed", err)
	}

	s.Start()
	logger.Info("Scheduler started", zap.Int("jobs", s.Entries()), zap.String("timezone", cfg.Scheduler.Timezone))

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down scheduler...")
	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.GetShutdownTimeout())
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		logger.Error("Scheduler did not stop cleanly", err)
	}
	logger.Info("Scheduler stopped")
}
