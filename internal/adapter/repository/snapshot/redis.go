package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisMedium stores snapshots as plain string values under a key prefix.
// Useful when the terminal's disk is not trusted to survive a reinstall.
type RedisMedium struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewRedisMedium wraps client. prefix namespaces the keys, typically by device.
func NewRedisMedium(client *redis.Client, prefix string, logger *slog.Logger) *RedisMedium {
	return &RedisMedium{
		client: client,
		prefix: prefix,
		logger: logger.With("component", "snapshot_redis"),
	}
}

func (m *RedisMedium) key(key string) string {
	return m.prefix + ":" + key
}

func (m *RedisMedium) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := m.client.Get(ctx, m.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot %s from redis: %w", key, err)
	}
	return data, nil
}

func (m *RedisMedium) Save(ctx context.Context, key string, data []byte) error {
	if err := m.client.Set(ctx, m.key(key), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save snapshot %s to redis: %w", key, err)
	}
	m.logger.Debug("snapshot saved", "key", key, "bytes", len(data))
	return nil
}
