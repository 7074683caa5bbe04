package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/barber-pos/internal/adapter/metrics"
	"github.com/V4T54L/barber-pos/internal/adapter/repository/snapshot"
	"github.com/V4T54L/barber-pos/internal/adapter/repository/sqlite"
	"github.com/V4T54L/barber-pos/internal/adapter/repository/wal"
	"github.com/V4T54L/barber-pos/internal/domain"
	"github.com/V4T54L/barber-pos/internal/domain/mocks"
	"github.com/V4T54L/barber-pos/internal/session"
)

var errOffline = fmt.Errorf("%w: dial tcp 127.0.0.1:8080: connection refused", domain.ErrServerUnreachable)

type harness struct {
	o        *Orchestrator
	sessions *session.Manager
	metrics  *metrics.TerminalMetrics

	mu       sync.Mutex
	remotes  map[string]*mocks.MockEntityStore
	locals   map[string]*mocks.MockEntityStore
	outboxes map[string]*mocks.MockOutbox
	localErr error
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithOutbox(t, nil)
}

// newHarnessWithOutbox uses openOutbox for journals instead of in-memory
// ones when it is not nil.
func newHarnessWithOutbox(t *testing.T, openOutbox OutboxOpener) *harness {
	t.Helper()
	h := &harness{
		sessions: session.NewManager(testLogger()),
		metrics:  metrics.NewTerminalMetrics(prometheus.NewRegistry()),
		remotes:  make(map[string]*mocks.MockEntityStore),
		locals:   make(map[string]*mocks.MockEntityStore),
		outboxes: make(map[string]*mocks.MockOutbox),
	}
	h.o = NewOrchestrator(h.sessions,
		func(s domain.Session) domain.EntityStore { return h.remote(s.BusinessID) },
		func(ctx context.Context, businessID string) (domain.LocalStore, error) {
			h.mu.Lock()
			defer h.mu.Unlock()
			if h.localErr != nil {
				return nil, h.localErr
			}
			return h.localLocked(businessID), nil
		},
		openOutbox,
		OrchestratorConfig{FullRefreshAfterMutation: true, ReplayRetryCount: 2, ReplayRetryBackoff: time.Millisecond},
		testLogger(), h.metrics)
	if openOutbox == nil {
		h.o.openOutbox = func(businessID string) (domain.OutboxRepository, error) { return h.outbox(businessID), nil }
	}
	t.Cleanup(func() { h.o.Close(context.Background()) })
	return h
}

func (h *harness) remote(businessID string) *mocks.MockEntityStore {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.remotes[businessID]; !ok {
		h.remotes[businessID] = mocks.NewMockEntityStore(businessID)
	}
	return h.remotes[businessID]
}

func (h *harness) local(businessID string) *mocks.MockEntityStore {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.localLocked(businessID)
}

func (h *harness) localLocked(businessID string) *mocks.MockEntityStore {
	if _, ok := h.locals[businessID]; !ok {
		h.locals[businessID] = mocks.NewMockEntityStore(businessID)
	}
	return h.locals[businessID]
}

func (h *harness) outbox(businessID string) *mocks.MockOutbox {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.outboxes[businessID]; !ok {
		h.outboxes[businessID] = &mocks.MockOutbox{}
	}
	return h.outboxes[businessID]
}

func (h *harness) login(businessID string) {
	h.sessions.Login(domain.Session{BusinessID: businessID, UserID: "user-1", Role: domain.RoleOwner, Token: "token-" + businessID})
}

func cashSale(id string) domain.Transaction {
	return domain.Transaction{
		ID:            id,
		Items:         []domain.CartItem{{ItemID: "svc-haircut", Type: domain.ItemService, Name: "Haircut", Price: 500, Quantity: 1}},
		Total:         500,
		PaymentMethod: domain.PaymentCash,
		Status:        domain.TransactionCompleted,
	}
}

func TestOrchestrator_NoSession(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.o.Refresh(context.Background()), domain.ErrNoSession)

	_, err := h.o.AddStaff(context.Background(), domain.Staff{Name: "Ann"})
	assert.ErrorIs(t, err, domain.ErrNoSession)
	assert.Equal(t, ModeUninitialized, h.o.Mode())
}

func TestOrchestrator_RefreshPrefersRemote(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.login("shop-a")
	h.remote("shop-a").Products = []domain.Product{{ID: "p1", BusinessID: "shop-a", Name: "Pomade", Stock: 10, Version: 1}}

	require.NoError(t, h.o.Refresh(ctx))
	assert.Equal(t, ModeRemote, h.o.Mode())
	assert.True(t, h.o.IsRemote())
	assert.True(t, h.o.IsConnected())
	require.Len(t, h.o.Products(), 1)
	assert.Equal(t, "Pomade", h.o.Products()[0].Name)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.RemoteBackend))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.RefreshTotal.WithLabelValues("remote")))
}

func TestOrchestrator_FallsBackToLocalWhenUnreachable(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.login("shop-a")
	h.remote("shop-a").SetErrors(errOffline, errOffline)

	require.NoError(t, h.o.Refresh(ctx))
	assert.Equal(t, ModeLocal, h.o.Mode())
	assert.False(t, h.o.IsRemote())
	assert.False(t, h.o.IsConnected())

	appt, err := h.o.AddAppointment(ctx, domain.Appointment{CustomerName: "Brian", ServiceID: "svc-haircut", Date: "2026-10-17T09:00:00Z"})
	require.NoError(t, err)
	assert.Equal(t, domain.AppointmentScheduled, appt.Status)

	appts := h.o.Appointments()
	require.Len(t, appts, 1)
	assert.Equal(t, appt.ID, appts[0].ID)
	assert.Equal(t, 1, h.local("shop-a").WriteCount())
	assert.Equal(t, 0, h.remote("shop-a").WriteCount())
}

func TestOrchestrator_WriteSwitchesToLocalWhenRemoteDrops(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.login("shop-a")
	require.NoError(t, h.o.Refresh(ctx))
	require.True(t, h.o.IsRemote())

	h.remote("shop-a").SetErrors(errOffline, errOffline)
	p, err := h.o.AddProduct(ctx, domain.Product{Name: "Beard Oil", Price: 650, Stock: 5})
	require.NoError(t, err)

	assert.Equal(t, ModeLocal, h.o.Mode())
	assert.Equal(t, 1, h.local("shop-a").WriteCount())
	assert.Contains(t, h.o.Products(), p)
}

func TestOrchestrator_RejectedWriteDoesNotFallBack(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.login("shop-a")
	require.NoError(t, h.o.Refresh(ctx))

	rejected := &domain.RequestFailedError{StatusCode: 400, Code: domain.CodeValidation, Message: "name is required"}
	h.remote("shop-a").SetErrors(nil, rejected)

	_, err := h.o.AddStaff(ctx, domain.Staff{Name: "Ann", Role: domain.RoleBarber})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrServerRejected)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, ModeRemote, h.o.Mode())
	assert.Equal(t, 0, h.local("shop-a").WriteCount())
}

func TestOrchestrator_StaleAppointmentVersion(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.login("shop-a")
	h.remote("shop-a").Appointments = []domain.Appointment{{ID: "a1", BusinessID: "shop-a", CustomerName: "Brian", Status: domain.AppointmentScheduled, Version: 3}}
	require.NoError(t, h.o.Refresh(ctx))

	_, err := h.o.UpdateAppointmentStatus(ctx, "a1", domain.AppointmentCompleted, 2)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)

	appts := h.o.Appointments()
	require.Len(t, appts, 1)
	assert.Equal(t, domain.AppointmentScheduled, appts[0].Status)
	assert.Equal(t, 3, appts[0].Version)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.VersionConflicts))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.MutationsTotal.WithLabelValues("update_appointment_status", "conflict")))

	done, err := h.o.UpdateAppointmentStatus(ctx, "a1", domain.AppointmentCompleted, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, done.Version)
	assert.Equal(t, domain.AppointmentCompleted, h.o.Appointments()[0].Status)
}

func TestOrchestrator_ConcurrentStockUpdatesHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.login("shop-a")
	h.remote("shop-a").Products = []domain.Product{{ID: "p1", BusinessID: "shop-a", Name: "Pomade", Stock: 10, Version: 1}}
	require.NoError(t, h.o.Refresh(ctx))

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for _, stock := range []int{8, 7} {
		wg.Add(1)
		go func(stock int) {
			defer wg.Done()
			_, err := h.o.UpdateProductStock(ctx, "p1", stock, 1)
			results <- err
		}(stock)
	}
	wg.Wait()
	close(results)

	var wins, conflicts int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, domain.ErrVersionConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, conflicts)

	products := h.o.Products()
	require.Len(t, products, 1)
	assert.Equal(t, 2, products[0].Version)
	assert.Contains(t, []int{7, 8}, products[0].Stock)
}

func TestOrchestrator_DeleteTwice(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.login("shop-a")
	h.remote("shop-a").Products = []domain.Product{{ID: "p1", BusinessID: "shop-a", Name: "Pomade", Version: 1}}
	require.NoError(t, h.o.Refresh(ctx))

	require.NoError(t, h.o.DeleteProduct(ctx, "p1"))
	require.NoError(t, h.o.DeleteProduct(ctx, "p1"))
	assert.Empty(t, h.o.Products())
}

func TestOrchestrator_ProcessSaleValidates(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.login("shop-a")
	require.NoError(t, h.o.Refresh(ctx))

	sale := cashSale("")
	sale.PaymentMethod = "Cheque"
	_, err := h.o.ProcessSale(ctx, sale)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, 0, h.remote("shop-a").WriteCount())

	saved, err := h.o.ProcessSale(ctx, cashSale(""))
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.False(t, saved.Timestamp.IsZero())
	assert.True(t, saved.IsSynced)
	assert.Equal(t, saved.ID, h.o.Transactions()[0].ID)
}

func TestOrchestrator_OfflineSaleReplayedOnReconnect(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.login("shop-a")
	remote, local, outbox := h.remote("shop-a"), h.local("shop-a"), h.outbox("shop-a")

	remote.SetErrors(errOffline, errOffline)
	require.NoError(t, h.o.Refresh(ctx))
	require.Equal(t, ModeLocal, h.o.Mode())

	saved, err := h.o.ProcessSale(ctx, cashSale("tx-offline"))
	require.NoError(t, err)
	assert.False(t, saved.IsSynced)
	assert.Equal(t, 1, outbox.Len())

	remote.SetErrors(nil, nil)
	require.NoError(t, h.o.Refresh(ctx))
	assert.Equal(t, ModeRemote, h.o.Mode())

	remoteTxs, err := remote.ListTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, remoteTxs, 1)
	assert.Equal(t, "tx-offline", remoteTxs[0].ID)
	assert.True(t, remoteTxs[0].IsSynced)

	localTxs, err := local.ListTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, localTxs, 1)
	assert.True(t, localTxs[0].IsSynced)

	assert.Equal(t, 0, outbox.Len())
	assert.Equal(t, 1, outbox.Truncates)
	require.Len(t, h.o.Transactions(), 1)
	assert.True(t, h.o.Transactions()[0].IsSynced)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.OutboxReplayed.WithLabelValues("synced")))
}

func TestOrchestrator_SaleRefundedOfflineReachesRemote(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	h := newHarnessWithOutbox(t, func(businessID string) (domain.OutboxRepository, error) {
		return wal.NewOutbox(filepath.Join(dir, businessID), 1<<20, 8<<20, testLogger())
	})
	h.login("shop-a")
	remote, local := h.remote("shop-a"), h.local("shop-a")

	remote.SetErrors(errOffline, errOffline)
	require.NoError(t, h.o.Refresh(ctx))
	require.Equal(t, ModeLocal, h.o.Mode())

	_, err := h.o.ProcessSale(ctx, cashSale("tx-1"))
	require.NoError(t, err)
	refunded, err := h.o.RefundTransaction(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionRefunded, refunded.Status)

	remote.SetErrors(nil, nil)
	require.NoError(t, h.o.Refresh(ctx))
	assert.Equal(t, ModeRemote, h.o.Mode())

	remoteTxs, err := remote.ListTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, remoteTxs, 1)
	assert.Equal(t, domain.TransactionRefunded, remoteTxs[0].Status)
	assert.True(t, remoteTxs[0].IsSynced)

	localTxs, err := local.ListTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, localTxs, 1)
	assert.Equal(t, domain.TransactionRefunded, localTxs[0].Status)
	assert.True(t, localTxs[0].IsSynced)

	assert.Equal(t, 0.0, testutil.ToFloat64(h.metrics.OutboxReplayed.WithLabelValues("rejected")))

	// The journal was emptied on disk.
	reopened, err := wal.NewOutbox(filepath.Join(dir, "shop-a"), 1<<20, 8<<20, testLogger())
	require.NoError(t, err)
	defer reopened.Close()
	entries := 0
	require.NoError(t, reopened.Replay(ctx, func(domain.Transaction) error { entries++; return nil }))
	assert.Zero(t, entries)
}

func TestOrchestrator_SweepPushesStartingStateOfRefundedSale(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.login("shop-a")
	remote, local := h.remote("shop-a"), h.local("shop-a")

	// Refunded offline, but its journal entries were lost.
	refunded := cashSale("tx-1")
	refunded.BusinessID = "shop-a"
	refunded.Status = domain.TransactionRefunded
	local.Transactions = []domain.Transaction{refunded}

	require.NoError(t, h.o.Refresh(ctx))
	assert.Equal(t, ModeRemote, h.o.Mode())

	remoteTxs, err := remote.ListTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, remoteTxs, 1)
	assert.Equal(t, domain.TransactionRefunded, remoteTxs[0].Status)

	localTxs, err := local.ListTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, localTxs, 1)
	assert.True(t, localTxs[0].IsSynced)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.OutboxReplayed.WithLabelValues("synced")))
}

func TestOrchestrator_ReplayDropsRejectedSales(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.login("shop-a")
	remote, outbox := h.remote("shop-a"), h.outbox("shop-a")

	refunded := cashSale("tx-1")
	refunded.Status = domain.TransactionRefunded
	refunded.IsSynced = true
	remote.Transactions = []domain.Transaction{refunded}

	// The journal still holds the older Completed state of the same sale.
	require.NoError(t, outbox.Write(ctx, cashSale("tx-1")))

	require.NoError(t, h.o.Refresh(ctx))
	assert.Equal(t, ModeRemote, h.o.Mode())
	assert.Equal(t, 0, outbox.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.OutboxReplayed.WithLabelValues("rejected")))

	txs, err := remote.ListTransactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionRefunded, txs[0].Status)
}

func TestOrchestrator_ReplayKeepsJournalWhenRemoteDropsAgain(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.login("shop-a")
	remote, outbox := h.remote("shop-a"), h.outbox("shop-a")
	require.NoError(t, outbox.Write(ctx, cashSale("tx-1")))

	// Reads work, writes do not.
	remote.SetErrors(nil, errOffline)
	require.NoError(t, h.o.Refresh(ctx))

	assert.Equal(t, 1, outbox.Len())
	assert.Equal(t, 0, outbox.Truncates)
}

func TestOrchestrator_SweepsUnsyncedSalesMissingFromJournal(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.login("shop-a")
	remote, local := h.remote("shop-a"), h.local("shop-a")

	unsynced := cashSale("tx-lost")
	unsynced.IsSynced = false
	_, err := local.UpsertTransaction(ctx, unsynced)
	require.NoError(t, err)

	require.NoError(t, h.o.Refresh(ctx))
	txs, err := remote.ListTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "tx-lost", txs[0].ID)
}

func TestOrchestrator_SettlementAndRefund(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.login("shop-a")
	require.NoError(t, h.o.Refresh(ctx))

	sale := cashSale("tx-mpesa")
	sale.PaymentMethod = domain.PaymentMpesa
	sale.MpesaPhoneNumber = "0712345678"
	sale.Status = domain.TransactionPending
	_, err := h.o.ProcessSale(ctx, sale)
	require.NoError(t, err)

	_, err = h.o.RefundTransaction(ctx, "tx-mpesa")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	settled, err := h.o.ApplySettlement(ctx, "tx-mpesa", domain.TransactionCompleted, "QGH7X2ABC")
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionCompleted, settled.Status)
	assert.Equal(t, "QGH7X2ABC", settled.MpesaReceiptNumber)

	refunded, err := h.o.RefundTransaction(ctx, "tx-mpesa")
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionRefunded, refunded.Status)
	assert.Equal(t, domain.TransactionRefunded, h.o.Transactions()[0].Status)

	_, err = h.o.ApplySettlement(ctx, "tx-missing", domain.TransactionCompleted, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = h.o.ApplySettlement(ctx, "tx-mpesa", domain.TransactionRefunded, "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestOrchestrator_UpdateSettings(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.login("shop-a")
	require.NoError(t, h.o.Refresh(ctx))

	profile := domain.BusinessProfile{Name: "Kinyozi"}
	next, err := h.o.UpdateSettings(ctx, domain.SettingsPatch{Business: &profile}, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, next.Version)
	assert.Equal(t, "Kinyozi", h.o.Settings().Business.Name)

	_, err = h.o.UpdateSettings(ctx, domain.SettingsPatch{Business: &profile}, 1)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)
}

func TestOrchestrator_KeepsLastViewWhenEverythingFails(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.localErr = domain.ErrStorageUnavailable
	h.login("shop-a")
	h.remote("shop-a").Staff = []domain.Staff{{ID: "s1", BusinessID: "shop-a", Name: "Ann", Version: 1}}

	require.NoError(t, h.o.Refresh(ctx))
	require.Len(t, h.o.Staff(), 1)

	h.remote("shop-a").SetErrors(errOffline, errOffline)
	err := h.o.Refresh(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrServerUnreachable)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.False(t, h.o.IsConnected())
	assert.Len(t, h.o.Staff(), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.RefreshTotal.WithLabelValues("failed")))
}

func TestOrchestrator_CloseFlushesLocalStore(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.login("shop-a")
	require.NoError(t, h.o.Refresh(ctx))

	require.NoError(t, h.o.Close(ctx))
	local := h.local("shop-a")
	assert.Equal(t, 1, local.Flushes)
	assert.True(t, local.Closed)
	assert.Equal(t, ModeUninitialized, h.o.Mode())
	assert.Empty(t, h.o.Staff())
}

// fakeSessions delivers session events through a channel the test controls.
type fakeSessions struct {
	mu     sync.Mutex
	cur    *domain.Session
	events chan domain.SessionEvent
}

func (f *fakeSessions) Current() (domain.Session, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cur == nil {
		return domain.Session{}, false
	}
	return *f.cur, true
}

func (f *fakeSessions) Subscribe() (<-chan domain.SessionEvent, func()) {
	return f.events, func() {}
}

func (f *fakeSessions) set(s *domain.Session) {
	f.mu.Lock()
	f.cur = s
	f.mu.Unlock()
	f.events <- domain.SessionEvent{Current: s}
}

func TestOrchestrator_RunSwitchesTenantsWithoutLeaking(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	remotes := map[string]*mocks.MockEntityStore{
		"shop-a": mocks.NewMockEntityStore("shop-a"),
		"shop-b": mocks.NewMockEntityStore("shop-b"),
	}
	remotes["shop-a"].Customers = []domain.Customer{{ID: "c-a", BusinessID: "shop-a", Name: "Alice", Version: 1}}
	remotes["shop-b"].Customers = []domain.Customer{{ID: "c-b", BusinessID: "shop-b", Name: "Bob", Version: 1}}
	locals := map[string]*mocks.MockEntityStore{
		"shop-a": mocks.NewMockEntityStore("shop-a"),
		"shop-b": mocks.NewMockEntityStore("shop-b"),
	}

	sessions := &fakeSessions{events: make(chan domain.SessionEvent, 4)}
	o := NewOrchestrator(sessions,
		func(s domain.Session) domain.EntityStore { return remotes[s.BusinessID] },
		func(ctx context.Context, businessID string) (domain.LocalStore, error) { return locals[businessID], nil },
		nil,
		OrchestratorConfig{FullRefreshAfterMutation: true},
		testLogger(), nil)

	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	sessions.set(&domain.Session{BusinessID: "shop-a", Token: "a"})
	require.Eventually(t, func() bool {
		c := o.Customers()
		return len(c) == 1 && c[0].ID == "c-a"
	}, time.Second, 5*time.Millisecond)

	sessions.set(&domain.Session{BusinessID: "shop-b", Token: "b"})
	require.Eventually(t, func() bool {
		c := o.Customers()
		return len(c) == 1 && c[0].ID == "c-b"
	}, time.Second, 5*time.Millisecond)
	for _, c := range o.Customers() {
		assert.Equal(t, "shop-b", c.BusinessID)
	}
	assert.Eventually(t, func() bool { return locals["shop-a"].FlushCount() == 1 }, time.Second, 5*time.Millisecond)

	sessions.set(nil)
	require.Eventually(t, func() bool { return o.Mode() == ModeUninitialized && len(o.Customers()) == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestOrchestrator_RunPicksUpSessionOpenedBeforeIt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	remote := mocks.NewMockEntityStore("shop-a")
	remote.Customers = []domain.Customer{{ID: "c-a", BusinessID: "shop-a", Name: "Alice", Version: 1}}

	// Logged in already; no event will ever arrive for it.
	sessions := &fakeSessions{
		cur:    &domain.Session{BusinessID: "shop-a", Token: "a"},
		events: make(chan domain.SessionEvent),
	}
	o := NewOrchestrator(sessions,
		func(s domain.Session) domain.EntityStore { return remote },
		func(ctx context.Context, businessID string) (domain.LocalStore, error) {
			return mocks.NewMockEntityStore(businessID), nil
		},
		nil,
		OrchestratorConfig{FullRefreshAfterMutation: true},
		testLogger(), nil)
	defer o.Close(context.Background())

	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	require.Eventually(t, func() bool {
		c := o.Customers()
		return o.Mode() == ModeRemote && len(c) == 1 && c[0].ID == "c-a"
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestOrchestrator_EmbeddedStoreEndToEnd(t *testing.T) {
	ctx := context.Background()
	medium := snapshot.NewMemoryMedium()
	scratch := t.TempDir()
	h := newHarness(t)
	o := NewOrchestrator(h.sessions,
		func(s domain.Session) domain.EntityStore { return h.remote(s.BusinessID) },
		func(ctx context.Context, businessID string) (domain.LocalStore, error) {
			return sqlite.Open(ctx, sqlite.Config{BusinessID: businessID, KeyPrefix: "device-1", ScratchDir: scratch}, medium, testLogger(), nil)
		},
		nil,
		OrchestratorConfig{FullRefreshAfterMutation: true},
		testLogger(), nil)
	defer o.Close(ctx)

	h.login("shop-a")
	h.remote("shop-a").SetErrors(errOffline, errOffline)
	require.NoError(t, o.Refresh(ctx))
	require.Equal(t, ModeLocal, o.Mode())
	assert.NotEmpty(t, o.Products(), "embedded store should be seeded")

	c, err := o.AddCustomer(ctx, domain.Customer{Name: "Wanjiku", Phone: "0722000000"})
	require.NoError(t, err)

	// A snapshot failure keeps the write and says so.
	medium.SetErrors(nil, errors.New("disk full"))
	c.Notes = "prefers scissors"
	updated, err := o.UpdateCustomer(ctx, c)
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.Equal(t, 2, updated.Version)
	medium.SetErrors(nil, nil)

	require.NoError(t, o.Close(ctx))

	// Reopening reads the flushed snapshot.
	require.NoError(t, o.Refresh(ctx))
	var found *domain.Customer
	for _, cu := range o.Customers() {
		if cu.ID == c.ID {
			cu := cu
			found = &cu
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, "prefers scissors", found.Notes)
	assert.Equal(t, 2, found.Version)
}
