package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/V4T54L/barber-pos/internal/adapter/metrics"
	"github.com/V4T54L/barber-pos/internal/domain"
)

type cacheEntry struct {
	isActive  bool
	expiresAt time.Time
}

// TenantRepository implements domain.BusinessRegistry using PostgreSQL as the
// source of truth and an in-memory, time-based cache for status checks.
type TenantRepository struct {
	db       *sql.DB
	logger   *slog.Logger
	cache    map[string]cacheEntry
	mu       sync.RWMutex
	cacheTTL time.Duration
	metrics  *metrics.ServerMetrics
}

var _ domain.BusinessRegistry = (*TenantRepository)(nil)

// NewTenantRepository creates a new instance of the PostgreSQL tenant repository.
func NewTenantRepository(db *sql.DB, logger *slog.Logger, cacheTTL time.Duration, m *metrics.ServerMetrics) *TenantRepository {
	return &TenantRepository{
		db:       db,
		logger:   logger.With("component", "tenant_repository"),
		cache:    make(map[string]cacheEntry),
		cacheTTL: cacheTTL,
		metrics:  m,
	}
}

// IsActive reports whether a business may use the service. It first checks a
// local cache and falls back to the database if the entry is missing or stale.
func (r *TenantRepository) IsActive(ctx context.Context, businessID string) (bool, error) {
	r.mu.RLock()
	entry, found := r.cache[businessID]
	r.mu.RUnlock()

	if found && time.Now().Before(entry.expiresAt) {
		if r.metrics != nil {
			r.metrics.TenantCacheHits.Inc()
		}
		return entry.isActive, nil
	}

	if r.metrics != nil {
		r.metrics.TenantCacheMisses.Inc()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another goroutine may have filled the entry while we waited.
	entry, found = r.cache[businessID]
	if found && time.Now().Before(entry.expiresAt) {
		return entry.isActive, nil
	}

	var status string
	err := r.db.QueryRowContext(ctx, `SELECT status FROM businesses WHERE id = $1`, businessID).Scan(&status)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		r.logger.Error("failed to read business status", "error", err, "business_id", businessID)
		// Errors are not cached; the next request retries the database.
		return false, err
	}
	active := err == nil && domain.BusinessStatus(status) == domain.BusinessActive

	r.cache[businessID] = cacheEntry{
		isActive:  active,
		expiresAt: time.Now().Add(r.cacheTTL),
	}
	return active, nil
}

// UpsertBusiness creates a shop or updates its name and status. The cached
// status is dropped so the change applies to the next request.
func (r *TenantRepository) UpsertBusiness(ctx context.Context, b domain.Business) (domain.Business, error) {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO businesses (id, name, status) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, status = EXCLUDED.status
		RETURNING created_at`,
		b.ID, b.Name, string(b.Status)).Scan(&b.CreatedAt)
	if err != nil {
		return domain.Business{}, fmt.Errorf("failed to upsert business %s: %w", b.ID, err)
	}
	r.forget(b.ID)
	return b, nil
}

// SetBusinessStatus suspends or reactivates a shop.
func (r *TenantRepository) SetBusinessStatus(ctx context.Context, id string, status domain.BusinessStatus) (domain.Business, error) {
	var (
		b   domain.Business
		raw string
	)
	err := r.db.QueryRowContext(ctx,
		`UPDATE businesses SET status = $2 WHERE id = $1 RETURNING id, name, status, created_at`,
		id, string(status)).Scan(&b.ID, &b.Name, &raw, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Business{}, fmt.Errorf("%w: business %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return domain.Business{}, fmt.Errorf("failed to update business %s: %w", id, err)
	}
	b.Status = domain.BusinessStatus(raw)
	r.forget(id)
	r.logger.Info("business status changed", "business_id", id, "status", status)
	return b, nil
}

func (r *TenantRepository) ListBusinesses(ctx context.Context) ([]domain.Business, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, status, created_at FROM businesses ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list businesses: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Business, 0)
	for rows.Next() {
		var (
			b   domain.Business
			raw string
		)
		if err := rows.Scan(&b.ID, &b.Name, &raw, &b.CreatedAt); err != nil {
			return nil, err
		}
		b.Status = domain.BusinessStatus(raw)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *TenantRepository) forget(businessID string) {
	r.mu.Lock()
	delete(r.cache, businessID)
	r.mu.Unlock()
}
