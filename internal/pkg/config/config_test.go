package config

import (
	"testing"
	"time"
)

func TestLoadTerminal(t *testing.T) {
	t.Setenv("SERVER_URL", "http://pos.example.test")
	t.Setenv("API_TOKEN", "token")
	t.Setenv("REFRESH_INTERVAL", "1m")

	cfg, err := LoadTerminal()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RefreshInterval != time.Minute {
		t.Errorf("expected refresh interval 1m, got %v", cfg.RefreshInterval)
	}
	if cfg.SnapshotBackend != "file" || !cfg.FullRefreshAfterMutation {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadServer_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := LoadServer(); err == nil {
		t.Fatal("expected error when JWT_SECRET is empty")
	}
}

func TestLoadServer_SplitsBrokers(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Errorf("unexpected brokers: %v", cfg.KafkaBrokers)
	}
}
