package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/V4T54L/barber-pos/internal/domain"
)

// registryKey is where the business list lives on the medium. Tenant
// snapshots use the "server." prefix, so it cannot collide with one.
const registryKey = "registry.businesses"

// TenantFactory opens one embedded Store per tenant on first use and keeps it
// open. It lets the remote service run without Postgres, and backs the HTTP
// tests with the same engine the terminals use.
//
// It is also the embedded business registry and audit trail. A shop that was
// never registered is active, so a single-shop deployment needs no
// provisioning.
type TenantFactory struct {
	medium     domain.SnapshotMedium
	scratchDir string
	logger     *slog.Logger

	mu     sync.Mutex
	stores map[string]*Store

	regMu      sync.Mutex
	businesses map[string]domain.Business
}

var (
	_ domain.TenantStoreFactory = (*TenantFactory)(nil)
	_ domain.BusinessRegistry   = (*TenantFactory)(nil)
	_ domain.AuditLog           = (*TenantFactory)(nil)
)

func NewTenantFactory(medium domain.SnapshotMedium, scratchDir string, logger *slog.Logger) *TenantFactory {
	return &TenantFactory{
		medium:     medium,
		scratchDir: scratchDir,
		logger:     logger.With("component", "tenant_factory"),
		stores:     make(map[string]*Store),
	}
}

func (f *TenantFactory) ForTenant(ctx context.Context, businessID string) (domain.EntityStore, error) {
	return f.store(ctx, businessID)
}

func (f *TenantFactory) store(ctx context.Context, businessID string) (*Store, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if s, ok := f.stores[businessID]; ok {
		return s, nil
	}
	s, err := Open(ctx, Config{BusinessID: businessID, KeyPrefix: "server", ScratchDir: f.scratchDir}, f.medium, f.logger, nil)
	if err != nil {
		return nil, err
	}
	f.stores[businessID] = s
	return s, nil
}

// Close releases every open store.
func (f *TenantFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var firstErr error
	for id, s := range f.stores {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(f.stores, id)
	}
	return firstErr
}

// AppendAudit stores e in its tenant's store. An event kept in memory but not
// yet snapshotted counts as stored; the next mutation persists it.
func (f *TenantFactory) AppendAudit(ctx context.Context, e domain.AuditEvent) error {
	s, err := f.store(ctx, e.BusinessID)
	if err != nil {
		return err
	}
	if err := s.AppendAudit(ctx, e); err != nil {
		if isPersistence(err) {
			f.logger.Warn("audit event stored but not persisted", "event_id", e.ID, "error", err)
			return nil
		}
		return err
	}
	return nil
}

func (f *TenantFactory) ListAudit(ctx context.Context, businessID string, limit int) ([]domain.AuditEvent, error) {
	s, err := f.store(ctx, businessID)
	if err != nil {
		return nil, err
	}
	return s.ListAudit(ctx, businessID, limit)
}

// IsActive reports false only for registered shops that are suspended.
func (f *TenantFactory) IsActive(ctx context.Context, businessID string) (bool, error) {
	if businessID == "" {
		return false, nil
	}
	f.regMu.Lock()
	defer f.regMu.Unlock()
	if err := f.loadRegistryLocked(ctx); err != nil {
		return false, err
	}
	b, ok := f.businesses[businessID]
	return !ok || b.Status == domain.BusinessActive, nil
}

func (f *TenantFactory) UpsertBusiness(ctx context.Context, b domain.Business) (domain.Business, error) {
	f.regMu.Lock()
	defer f.regMu.Unlock()
	if err := f.loadRegistryLocked(ctx); err != nil {
		return domain.Business{}, err
	}
	if prev, ok := f.businesses[b.ID]; ok {
		b.CreatedAt = prev.CreatedAt
	} else {
		b.CreatedAt = time.Now().UTC()
	}
	next := cloneRegistry(f.businesses)
	next[b.ID] = b
	if err := f.saveRegistryLocked(ctx, next); err != nil {
		return domain.Business{}, err
	}
	return b, nil
}

func (f *TenantFactory) SetBusinessStatus(ctx context.Context, id string, status domain.BusinessStatus) (domain.Business, error) {
	f.regMu.Lock()
	defer f.regMu.Unlock()
	if err := f.loadRegistryLocked(ctx); err != nil {
		return domain.Business{}, err
	}
	b, ok := f.businesses[id]
	if !ok {
		return domain.Business{}, fmt.Errorf("%w: business %s", domain.ErrNotFound, id)
	}
	b.Status = status
	next := cloneRegistry(f.businesses)
	next[id] = b
	if err := f.saveRegistryLocked(ctx, next); err != nil {
		return domain.Business{}, err
	}
	f.logger.Info("business status changed", "business_id", id, "status", status)
	return b, nil
}

func (f *TenantFactory) ListBusinesses(ctx context.Context) ([]domain.Business, error) {
	f.regMu.Lock()
	defer f.regMu.Unlock()
	if err := f.loadRegistryLocked(ctx); err != nil {
		return nil, err
	}
	out := make([]domain.Business, 0, len(f.businesses))
	for _, b := range f.businesses {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *TenantFactory) loadRegistryLocked(ctx context.Context) error {
	if f.businesses != nil {
		return nil
	}
	data, err := f.medium.Load(ctx, registryKey)
	if err != nil {
		return fmt.Errorf("%w: failed to load business registry: %v", domain.ErrStorageUnavailable, err)
	}
	reg := make(map[string]domain.Business)
	if data != nil {
		var list []domain.Business
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("failed to decode business registry: %w", err)
		}
		for _, b := range list {
			reg[b.ID] = b
		}
	}
	f.businesses = reg
	return nil
}

// saveRegistryLocked writes next and adopts it only once it is durable.
func (f *TenantFactory) saveRegistryLocked(ctx context.Context, next map[string]domain.Business) error {
	list := make([]domain.Business, 0, len(next))
	for _, b := range next {
		list = append(list, b)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("failed to encode business registry: %w", err)
	}
	if err := f.medium.Save(ctx, registryKey, data); err != nil {
		return fmt.Errorf("failed to save business registry: %w", err)
	}
	f.businesses = next
	return nil
}

func cloneRegistry(in map[string]domain.Business) map[string]domain.Business {
	out := make(map[string]domain.Business, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}
