package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/barber-pos/internal/adapter/repository/snapshot"
	"github.com/V4T54L/barber-pos/internal/domain"
)

func auditEvent(id, businessID, action string, at time.Time) domain.AuditEvent {
	return domain.AuditEvent{ID: id, BusinessID: businessID, UserID: "user-1", Action: action, Resource: "staff/s1", Timestamp: at}
}

func TestStore_AuditTrailSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	medium := snapshot.NewMemoryMedium()
	base := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

	s := openTestStore(t, medium, "shop-a")
	first := auditEvent("ev-1", "shop-a", domain.AuditStaffAdded, base)
	first.Details = []byte(`{"phone":"[REDACTED]"}`)
	first.PIIRedacted = true
	require.NoError(t, s.AppendAudit(ctx, first))
	require.NoError(t, s.AppendAudit(ctx, auditEvent("ev-2", "shop-a", domain.AuditSaleRecorded, base.Add(time.Minute))))
	require.NoError(t, s.Close())

	reopened := openTestStore(t, medium, "shop-a")
	got, err := reopened.ListAudit(ctx, "shop-a", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ev-2", got[0].ID)
	assert.Nil(t, got[0].Details)
	assert.Equal(t, "ev-1", got[1].ID)
	assert.JSONEq(t, `{"phone":"[REDACTED]"}`, string(got[1].Details))
	assert.True(t, got[1].PIIRedacted)
	assert.True(t, got[1].Timestamp.Equal(base))

	got, err = reopened.ListAudit(ctx, "shop-a", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestStore_AuditTrailIsTenantBound(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, snapshot.NewMemoryMedium(), "shop-a")

	err := s.AppendAudit(ctx, auditEvent("ev-1", "shop-b", domain.AuditStaffAdded, time.Now()))
	assert.ErrorIs(t, err, domain.ErrTenantMismatch)

	_, err = s.ListAudit(ctx, "shop-b", 10)
	assert.ErrorIs(t, err, domain.ErrTenantMismatch)
}

func TestTenantFactory_AuditRoutesByTenant(t *testing.T) {
	ctx := context.Background()
	f := NewTenantFactory(snapshot.NewMemoryMedium(), t.TempDir(), testLogger())
	t.Cleanup(func() { f.Close() })

	require.NoError(t, f.AppendAudit(ctx, auditEvent("ev-a", "shop-a", domain.AuditStaffAdded, time.Now())))
	require.NoError(t, f.AppendAudit(ctx, auditEvent("ev-b", "shop-b", domain.AuditStaffAdded, time.Now())))

	got, err := f.ListAudit(ctx, "shop-a", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ev-a", got[0].ID)
}

func TestTenantFactory_Registry(t *testing.T) {
	ctx := context.Background()
	medium := snapshot.NewMemoryMedium()
	f := NewTenantFactory(medium, t.TempDir(), testLogger())

	active, err := f.IsActive(ctx, "shop-unregistered")
	require.NoError(t, err)
	assert.True(t, active, "unregistered shops are served")

	b, err := f.UpsertBusiness(ctx, domain.Business{ID: "shop-a", Name: "Kinyozi", Status: domain.BusinessActive})
	require.NoError(t, err)
	assert.False(t, b.CreatedAt.IsZero())

	_, err = f.SetBusinessStatus(ctx, "shop-a", domain.BusinessSuspended)
	require.NoError(t, err)
	active, err = f.IsActive(ctx, "shop-a")
	require.NoError(t, err)
	assert.False(t, active)

	_, err = f.SetBusinessStatus(ctx, "shop-missing", domain.BusinessActive)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// A new factory on the same medium sees the same registry.
	again := NewTenantFactory(medium, t.TempDir(), testLogger())
	list, err := again.ListBusinesses(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.BusinessSuspended, list[0].Status)
	assert.True(t, list[0].CreatedAt.Equal(b.CreatedAt))

	// A failed save leaves the registry unchanged.
	medium.SetErrors(nil, errors.New("disk full"))
	_, err = again.SetBusinessStatus(ctx, "shop-a", domain.BusinessActive)
	require.Error(t, err)
	medium.SetErrors(nil, nil)
	active, err = again.IsActive(ctx, "shop-a")
	require.NoError(t, err)
	assert.False(t, active)
}
