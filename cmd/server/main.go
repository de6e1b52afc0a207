package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/segyhp/loan-ledger/internal/auth"
	"github.com/segyhp/loan-ledger/internal/config"
	"github.com/segyhp/loan-ledger/internal/handler"
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

	ctx := context.Background()

	// Initialize storage
	st, err := store.Open(ctx, cfg)
	if err != nil {
		logger.L().Fatal("Failed to open store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer st.Close()

	// Initialize Redis
	summaries := store.OpenCache(ctx, cfg)
	defer summaries.Close()

	if cfg.Auth.AdminPassword == "" {
		logger.Warn("ADMIN_PASSWORD is empty, admin sign-in is disabled")
	}
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.GetTokenTTL())

	// Initialize services
	loanService := service.NewLoanService(st.Loans, st.Payments, summaries.Summaries, cfg)
	reportService := service.NewReportService(st.Loans, st.Payments, st.Users, summaries.Summaries, cfg)
	userService := service.NewUserService(st.Users, st.Loans, st.Payments, tokens, summaries.Summaries, cfg)

	checks := map[string]handler.Check{"store": handler.Check(st.Check)}
	if summaries.Check != nil {
		checks["redis"] = handler.Check(summaries.Check)
	}

	router := handler.NewRouter(
		handler.New(loanService, reportService, userService),
		handler.NewHealthHandler(checks, cfg.GetHealthTimeout()),
		tokens,
	)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.GetReadTimeout(),
		WriteTimeout: cfg.GetWriteTimeout(),
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", zap.String("addr", server.Addr), zap.String("env", cfg.Server.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L().Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GetShutdownTimeout())
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", err)
	}

	logger.Info("Server exited")
}
