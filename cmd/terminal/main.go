package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/barber-pos/internal/adapter/gateway"
	"github.com/V4T54L/barber-pos/internal/adapter/metrics"
	"github.com/V4T54L/barber-pos/internal/adapter/repository/snapshot"
	"github.com/V4T54L/barber-pos/internal/adapter/repository/sqlite"
	"github.com/V4T54L/barber-pos/internal/adapter/repository/wal"
	"github.com/V4T54L/barber-pos/internal/domain"
	"github.com/V4T54L/barber-pos/internal/pkg/auth"
	"github.com/V4T54L/barber-pos/internal/pkg/config"
	"github.com/V4T54L/barber-pos/internal/pkg/logger"
	"github.com/V4T54L/barber-pos/internal/session"
	"github.com/V4T54L/barber-pos/internal/usecase"
)

func main() {
	cfg, err := config.LoadTerminal()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)
	log = log.With("device_id", cfg.DeviceID)
	log.Info("starting terminal")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stopChan
		log.Info("shutdown signal received, stopping terminal...")
		cancel()
	}()

	reg := prometheus.NewRegistry()
	m := metrics.NewTerminalMetrics(reg)
	metricsServer := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("starting metrics server", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", "error", err)
		}
	}()

	medium, err := openMedium(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open snapshot medium", "error", err)
		os.Exit(1)
	}

	httpClient := gateway.NewHTTPClient(cfg.RequestTimeout)
	remoteFor := func(s domain.Session) domain.EntityStore {
		return gateway.NewClient(gateway.Config{
			BaseURL:     cfg.ServerURL,
			Token:       s.Token,
			BusinessID:  s.BusinessID,
			RequestRate: cfg.RequestRate,
			HTTPClient:  httpClient,
		}, log)
	}
	openLocal := func(ctx context.Context, businessID string) (domain.LocalStore, error) {
		return sqlite.Open(ctx, sqlite.Config{
			BusinessID: businessID,
			KeyPrefix:  cfg.DeviceID,
			ScratchDir: filepath.Join(cfg.DataDir, "scratch"),
		}, medium, log, m)
	}
	openOutbox := func(businessID string) (domain.OutboxRepository, error) {
		return wal.NewOutbox(filepath.Join(cfg.DataDir, "outbox", businessID), cfg.OutboxSegmentSize, cfg.OutboxMaxDiskSize, log)
	}

	sessions := session.NewManager(log)
	orch := usecase.NewOrchestrator(sessions, remoteFor, openLocal, openOutbox, usecase.OrchestratorConfig{
		FullRefreshAfterMutation: cfg.FullRefreshAfterMutation,
	}, log, m)

	sess, err := auth.SessionFromToken(cfg.APIToken)
	if err != nil {
		log.Error("invalid api token", "error", err)
		os.Exit(1)
	}
	sessions.Login(sess)
	log.Info("session started", "business_id", sess.BusinessID, "role", sess.Role)

	// Run refreshes for the session already open when it starts.
	runDone := make(chan error, 1)
	go func() { runDone <- orch.Run(ctx) }()

	ticker := time.NewTicker(cfg.RefreshInterval)
	defer ticker.Stop()

Loop:
	for {
		select {
		case <-ticker.C:
			if err := orch.Refresh(ctx); err != nil {
				log.Error("periodic refresh failed", "error", err)
				continue
			}
			log.Debug("refreshed", "mode", orch.Mode().String(), "connected", orch.IsConnected())
		case <-ctx.Done():
			log.Info("context cancelled, shutting down terminal loop")
			break Loop
		}
	}

	<-runDone
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := orch.Close(shutdownCtx); err != nil {
		log.Error("failed to close orchestrator", "error", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Error("metrics server shutdown failed", "error", err)
	}
	log.Info("terminal shut down gracefully")
}

func openMedium(ctx context.Context, cfg *config.TerminalConfig, log *slog.Logger) (domain.SnapshotMedium, error) {
	switch cfg.SnapshotBackend {
	case "file":
		return snapshot.NewFileMedium(filepath.Join(cfg.DataDir, "snapshots"), log)
	case "redis":
		opts, err := redis.ParseURL(cfg.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return snapshot.NewRedisMedium(client, "barber-pos:"+cfg.DeviceID, log), nil
	}
	return nil, fmt.Errorf("unknown snapshot backend %q", cfg.SnapshotBackend)
}
