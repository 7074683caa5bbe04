package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/V4T54L/barber-pos/internal/adapter/api"
	"github.com/V4T54L/barber-pos/internal/adapter/metrics"
	"github.com/V4T54L/barber-pos/internal/adapter/notifier"
	"github.com/V4T54L/barber-pos/internal/adapter/pii"
	"github.com/V4T54L/barber-pos/internal/adapter/repository/postgres"
	"github.com/V4T54L/barber-pos/internal/adapter/repository/snapshot"
	"github.com/V4T54L/barber-pos/internal/adapter/repository/sqlite"
	"github.com/V4T54L/barber-pos/internal/domain"
	"github.com/V4T54L/barber-pos/internal/pkg/config"
	"github.com/V4T54L/barber-pos/internal/pkg/logger"
	"github.com/V4T54L/barber-pos/internal/usecase"
)

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logger.New(cfg.LogLevel)
	slog.SetDefault(logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewServerMetrics(reg)

	// --- Metrics Server ---
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("starting metrics server", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Stores ---
	var (
		stores  domain.TenantStoreFactory
		tenants domain.BusinessRegistry
		trail   domain.AuditLog
	)
	switch cfg.StoreBackend {
	case "postgres":
		db, err := postgres.Open(ctx, cfg.PostgresURL)
		if err != nil {
			logger.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			logger.Error("failed to migrate postgres schema", "error", err)
			os.Exit(1)
		}
		stores = postgres.NewStore(db, logger)
		tenants = postgres.NewTenantRepository(db, logger, cfg.TenantCacheTTL, m)
		trail = postgres.NewAuditRepository(db, logger)
		logger.Info("connected to postgres")
	case "embedded":
		medium, err := snapshot.NewFileMedium(filepath.Join(cfg.DataDir, "snapshots"), logger)
		if err != nil {
			logger.Error("failed to open snapshot directory", "error", err)
			os.Exit(1)
		}
		factory := sqlite.NewTenantFactory(medium, filepath.Join(cfg.DataDir, "scratch"), logger)
		defer factory.Close()
		stores, tenants, trail = factory, factory, factory
		logger.Info("serving from embedded stores", "dir", cfg.DataDir)
	default:
		logger.Error("unknown store backend", "backend", cfg.StoreBackend)
		os.Exit(1)
	}

	// --- Audit Trail ---
	var auditNotifier domain.AuditNotifier
	if len(cfg.KafkaBrokers) > 0 {
		kn := notifier.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaAuditTopic)
		defer kn.Close()
		auditNotifier = kn
		logger.Info("publishing audit events to kafka", "topic", cfg.KafkaAuditTopic)
	} else {
		auditNotifier = notifier.NewLogNotifier(logger)
	}
	redactor := pii.NewRedactor(strings.Split(cfg.PIIRedactionFields, ","), logger)
	auditor := usecase.NewAuditRecorder(auditNotifier, trail, redactor, logger, m)

	// --- HTTP Server ---
	router := api.NewRouter(cfg, logger, tenants, stores, trail, auditor, m)
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("starting api server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("api server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down servers...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api server shutdown failed", "error", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown failed", "error", err)
	}
	logger.Info("servers shut down gracefully")
}
