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

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/openpayments/genesis-payment-service/internal/adapters/genesis"
	kafkaadapter "github.com/openpayments/genesis-payment-service/internal/adapters/kafka"
	"github.com/openpayments/genesis-payment-service/internal/adapters/postgres"
	"github.com/openpayments/genesis-payment-service/internal/config"
	"github.com/openpayments/genesis-payment-service/internal/domain/ports"
	"github.com/openpayments/genesis-payment-service/internal/handlers"
	"github.com/openpayments/genesis-payment-service/internal/services/payment"
	"github.com/openpayments/genesis-payment-service/internal/services/reconcile"
	"github.com/openpayments/genesis-payment-service/pkg/logger"
	"github.com/openpayments/genesis-payment-service/pkg/middleware"
	"github.com/openpayments/genesis-payment-service/pkg/observability"
)

func main() {
	// Local development loads .env; deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}

	zapLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Development)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer zapLogger.Sync()

	if err := run(cfg, zapLogger); err != nil {
		zapLogger.Fatal("Service terminated", zap.Error(err))
	}
}

func run(cfg *config.Config, zapLogger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := postgres.Connect(ctx, cfg.Database.ConnectionString(),
		cfg.Database.MaxConns, cfg.Database.MinConns, zapLogger)
	cancel()
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	var events ports.EventPublisher = kafkaadapter.NopPublisher{}
	if cfg.Kafka.Enabled {
		publisher := kafkaadapter.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, zapLogger)
		defer publisher.Close()
		events = publisher
	}

	orders := postgres.NewOrderRepository(db)
	txns := postgres.NewTransactionRepository(db)
	gateway := genesis.NewClient(cfg.Gateway, zapLogger)

	payments := payment.NewService(cfg, db, orders, txns, gateway, events, zapLogger)
	reconciler := reconcile.NewService(cfg, db, orders, txns, gateway, events, zapLogger)

	rateLimiter := middleware.NewRateLimiter(
		float64(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst)
	defer rateLimiter.Shutdown()

	router := handlers.NewRouter(cfg, payments, reconciler, rateLimiter, zapLogger)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	healthChecker := observability.NewHealthChecker(db.Pool())
	metricsServer := observability.StartMetricsServer(cfg.Metrics.Port, healthChecker, zapLogger)

	errCh := make(chan error, 1)
	go func() {
		zapLogger.Info("Payment service listening",
			zap.String("addr", server.Addr),
			zap.Int("metrics_port", cfg.Metrics.Port),
			zap.String("env", cfg.Env),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-sigCh:
		zapLogger.Info("Shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	if err := observability.ShutdownMetricsServer(metricsServer); err != nil {
		zapLogger.Error("Metrics server shutdown failed", zap.Error(err))
	}

	zapLogger.Info("Shutdown complete")
	return nil
}
