package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// TerminalConfig configures a shop terminal.
type TerminalConfig struct {
	LogLevel                 string        `env:"LOG_LEVEL" envDefault:"info"`
	ServerURL                string        `env:"SERVER_URL,required"`
	APIToken                 string        `env:"API_TOKEN,required"`
	DeviceID                 string        `env:"DEVICE_ID" envDefault:"terminal-1"`
	DataDir                  string        `env:"DATA_DIR" envDefault:"./data"`
	SnapshotBackend          string        `env:"SNAPSHOT_BACKEND" envDefault:"file"` // file or redis
	RedisAddr                string        `env:"REDIS_ADDR" envDefault:"redis://localhost:6379/0"`
	RefreshInterval          time.Duration `env:"REFRESH_INTERVAL" envDefault:"30s"`
	RequestTimeout           time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
	RequestRate              float64       `env:"REQUEST_RATE" envDefault:"20"` // requests per second to the service
	FullRefreshAfterMutation bool          `env:"FULL_REFRESH_AFTER_MUTATION" envDefault:"true"`
	OutboxSegmentSize        int64         `env:"OUTBOX_SEGMENT_SIZE_BYTES" envDefault:"1048576"`  // 1MB
	OutboxMaxDiskSize        int64         `env:"OUTBOX_MAX_DISK_SIZE_BYTES" envDefault:"67108864"` // 64MB
	MetricsAddr              string        `env:"METRICS_ADDR" envDefault:":9092"`
}

// ServerConfig configures the remote multi-tenant service.
type ServerConfig struct {
	LogLevel           string        `env:"LOG_LEVEL" envDefault:"info"`
	HTTPAddr           string        `env:"HTTP_ADDR" envDefault:":8080"`
	MetricsAddr        string        `env:"METRICS_ADDR" envDefault:":9091"`
	StoreBackend       string        `env:"STORE_BACKEND" envDefault:"postgres"` // postgres or embedded
	PostgresURL        string        `env:"POSTGRES_URL"`
	DataDir            string        `env:"DATA_DIR" envDefault:"./server-data"`
	JWTSecret          string        `env:"JWT_SECRET,required,notEmpty"`
	TenantCacheTTL     time.Duration `env:"TENANT_CACHE_TTL" envDefault:"5m"`
	KafkaBrokers       []string      `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaAuditTopic    string        `env:"KAFKA_AUDIT_TOPIC" envDefault:"barber-pos.audit"`
	PIIRedactionFields string        `env:"PII_REDACTION_FIELDS" envDefault:"phone,email,customerPhone,mpesaPhoneNumber,passwordHash"`
}

// LoadTerminal reads terminal configuration from environment variables.
func LoadTerminal() (*TerminalConfig, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &TerminalConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadServer reads service configuration from environment variables.
func LoadServer() (*ServerConfig, error) {
	_ = godotenv.Load()

	cfg := &ServerConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
