package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/V4T54L/barber-pos/internal/adapter/metrics"
	"github.com/V4T54L/barber-pos/internal/domain"
	"github.com/V4T54L/barber-pos/internal/validation"
)

// Mode is the backend the orchestrator currently routes calls to.
type Mode int

const (
	ModeUninitialized Mode = iota
	ModeRemote
	ModeLocal
)

func (m Mode) String() string {
	switch m {
	case ModeRemote:
		return "remote"
	case ModeLocal:
		return "local"
	}
	return "uninitialized"
}

// RemoteFactory builds the gateway for a session's credential.
type RemoteFactory func(s domain.Session) domain.EntityStore

// LocalOpener opens the embedded store of one tenant.
type LocalOpener func(ctx context.Context, businessID string) (domain.LocalStore, error)

// OutboxOpener opens the offline sales journal of one tenant.
type OutboxOpener func(businessID string) (domain.OutboxRepository, error)

// OrchestratorConfig tunes the orchestrator.
type OrchestratorConfig struct {
	// FullRefreshAfterMutation re-reads every collection from the active
	// backend after each successful write.
	FullRefreshAfterMutation bool
	ReplayRetryCount         int
	ReplayRetryBackoff       time.Duration
}

// Orchestrator is the single data facade of a terminal. It owns the tenant's
// embedded store for the length of a session and decides on every refresh
// whether the remote service or the embedded store is authoritative.
type Orchestrator struct {
	sessions   domain.SessionProvider
	remoteFor  RemoteFactory
	openLocal  LocalOpener
	openOutbox OutboxOpener
	validator  *validation.Validator
	cfg        OrchestratorConfig
	logger     *slog.Logger
	metrics    *metrics.TerminalMetrics
	tracer     trace.Tracer

	// refreshMu serializes refreshes with session changes.
	refreshMu sync.Mutex

	mu        sync.RWMutex
	session   *domain.Session
	mode      Mode
	connected bool
	backend   domain.EntityStore
	remote    domain.EntityStore
	local     domain.LocalStore
	outbox    domain.OutboxRepository
	view      view
}

// NewOrchestrator creates an orchestrator. openOutbox and m may be nil.
func NewOrchestrator(
	sessions domain.SessionProvider,
	remoteFor RemoteFactory,
	openLocal LocalOpener,
	openOutbox OutboxOpener,
	cfg OrchestratorConfig,
	logger *slog.Logger,
	m *metrics.TerminalMetrics,
) *Orchestrator {
	if cfg.ReplayRetryCount < 1 {
		cfg.ReplayRetryCount = defaultRetryCount
	}
	if cfg.ReplayRetryBackoff <= 0 {
		cfg.ReplayRetryBackoff = defaultRetryBackoff
	}
	return &Orchestrator{
		sessions:   sessions,
		remoteFor:  remoteFor,
		openLocal:  openLocal,
		openOutbox: openOutbox,
		validator:  validation.NewValidator(),
		cfg:        cfg,
		logger:     logger.With("component", "orchestrator"),
		metrics:    m,
		tracer:     otel.Tracer("barber-pos/orchestrator"),
	}
}

// Refresh re-evaluates the backend from scratch: it pulls every collection
// from the remote service and falls back to the embedded store when that
// fails for any reason. If both fail the last good view is kept and the
// error is returned.
func (o *Orchestrator) Refresh(ctx context.Context) error {
	o.refreshMu.Lock()
	defer o.refreshMu.Unlock()
	return o.refreshLocked(ctx)
}

func (o *Orchestrator) refreshLocked(ctx context.Context) (err error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.Refresh")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "refresh failed")
		}
		span.End()
	}()

	sess, ok := o.sessions.Current()
	if !ok {
		return domain.ErrNoSession
	}
	o.acquireLocked(ctx, sess)
	span.SetAttributes(attribute.String("business_id", sess.BusinessID))

	o.mu.RLock()
	remote, local, outbox, prevMode := o.remote, o.local, o.outbox, o.mode
	o.mu.RUnlock()

	remoteView, remoteErr := pull(ctx, remote)
	if remoteErr == nil {
		o.install(ModeRemote, true, remote, remoteView)
		o.countRefresh("remote")
		if prevMode != ModeRemote {
			o.syncOutbox(ctx, remote, local, outbox)
		}
		return nil
	}

	o.logger.Warn("remote pull failed, using embedded store", "business_id", sess.BusinessID, "error", remoteErr)
	if local == nil {
		o.setConnected(false)
		o.countRefresh("failed")
		return fmt.Errorf("refresh failed: %w", errors.Join(remoteErr, domain.ErrStorageUnavailable))
	}
	localView, localErr := pull(ctx, local)
	if localErr != nil {
		o.setConnected(false)
		o.countRefresh("failed")
		return fmt.Errorf("refresh failed: %w", errors.Join(remoteErr, localErr))
	}
	o.install(ModeLocal, false, local, localView)
	o.countRefresh("local")
	return nil
}

// acquireLocked binds the orchestrator to sess, opening its embedded store
// and outbox. A store that failed to open is retried on the next refresh.
func (o *Orchestrator) acquireLocked(ctx context.Context, sess domain.Session) {
	o.mu.RLock()
	same := o.session != nil && o.session.BusinessID == sess.BusinessID && o.session.Token == sess.Token
	o.mu.RUnlock()
	if !same {
		o.releaseLocked(ctx)
		o.mu.Lock()
		o.session = &sess
		o.remote = o.remoteFor(sess)
		o.mu.Unlock()
	}

	o.mu.RLock()
	needLocal, needOutbox := o.local == nil, o.outbox == nil && o.openOutbox != nil
	o.mu.RUnlock()

	if needLocal {
		local, err := o.openLocal(ctx, sess.BusinessID)
		if err != nil {
			o.logger.Error("failed to open embedded store", "business_id", sess.BusinessID, "error", err)
		} else {
			o.mu.Lock()
			o.local = local
			o.mu.Unlock()
		}
	}
	if needOutbox {
		outbox, err := o.openOutbox(sess.BusinessID)
		if err != nil {
			o.logger.Error("failed to open outbox", "business_id", sess.BusinessID, "error", err)
		} else {
			o.mu.Lock()
			o.outbox = outbox
			o.mu.Unlock()
		}
	}
}

// releaseLocked flushes and closes everything owned for the current session
// and forgets its view so nothing of the previous tenant stays readable.
func (o *Orchestrator) releaseLocked(ctx context.Context) error {
	o.mu.Lock()
	local, outbox, sess := o.local, o.outbox, o.session
	o.session, o.remote, o.local, o.outbox, o.backend = nil, nil, nil, nil, nil
	o.mode, o.connected, o.view = ModeUninitialized, false, view{}
	o.mu.Unlock()
	o.setBackendGauge(ModeUninitialized)

	var errs []error
	if local != nil {
		if err := local.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to flush embedded store: %w", err))
		}
		if err := local.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close embedded store: %w", err))
		}
	}
	if outbox != nil {
		if err := outbox.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close outbox: %w", err))
		}
	}
	if sess != nil {
		o.logger.Info("released session resources", "business_id", sess.BusinessID)
	}
	return errors.Join(errs...)
}

func (o *Orchestrator) install(mode Mode, connected bool, backend domain.EntityStore, v view) {
	o.mu.Lock()
	prev := o.mode
	o.mode, o.connected, o.backend, o.view = mode, connected, backend, v
	o.mu.Unlock()
	if prev != mode {
		o.logger.Info("backend switched", "from", prev.String(), "to", mode.String())
	}
	o.setBackendGauge(mode)
}

func (o *Orchestrator) setConnected(connected bool) {
	o.mu.Lock()
	o.connected = connected
	o.mu.Unlock()
}

// Run follows session changes until ctx ends. Every change drops the previous
// tenant's state and refreshes from scratch.
func (o *Orchestrator) Run(ctx context.Context) error {
	events, cancel := o.sessions.Subscribe()
	defer cancel()

	// A login that happened before Subscribe produced no event we can see.
	if sess, ok := o.sessions.Current(); ok {
		o.refreshMu.Lock()
		if err := o.refreshLocked(ctx); err != nil {
			o.logger.Error("initial refresh failed", "business_id", sess.BusinessID, "error", err)
		}
		o.refreshMu.Unlock()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			o.handleSessionChange(ctx, ev)
		}
	}
}

func (o *Orchestrator) handleSessionChange(ctx context.Context, ev domain.SessionEvent) {
	o.refreshMu.Lock()
	defer o.refreshMu.Unlock()

	if err := o.releaseLocked(ctx); err != nil {
		o.logger.Error("failed to release previous session", "error", err)
	}
	if ev.Current == nil {
		return
	}
	if err := o.refreshLocked(ctx); err != nil {
		o.logger.Error("refresh after session change failed", "business_id", ev.Current.BusinessID, "error", err)
	}
}

// Close flushes and releases the session's embedded store and outbox.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.refreshMu.Lock()
	defer o.refreshMu.Unlock()
	return o.releaseLocked(ctx)
}

// Mode returns the backend currently in use.
func (o *Orchestrator) Mode() Mode {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.mode
}

// IsRemote reports whether calls go to the remote service.
func (o *Orchestrator) IsRemote() bool { return o.Mode() == ModeRemote }

// IsConnected reports whether the last contact with the remote service
// succeeded.
func (o *Orchestrator) IsConnected() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.connected
}

func (o *Orchestrator) Staff() []domain.Staff {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]domain.Staff{}, o.view.staff...)
}

func (o *Orchestrator) Services() []domain.Service {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]domain.Service{}, o.view.services...)
}

func (o *Orchestrator) Products() []domain.Product {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]domain.Product{}, o.view.products...)
}

func (o *Orchestrator) Customers() []domain.Customer {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]domain.Customer{}, o.view.customers...)
}

func (o *Orchestrator) Appointments() []domain.Appointment {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]domain.Appointment{}, o.view.appointments...)
}

// Transactions returns the sales newest first.
func (o *Orchestrator) Transactions() []domain.Transaction {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]domain.Transaction{}, o.view.transactions...)
}

func (o *Orchestrator) Settings() domain.Settings {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.view.settings
}

func (o *Orchestrator) countRefresh(result string) {
	if o.metrics != nil {
		o.metrics.RefreshTotal.WithLabelValues(result).Inc()
	}
}

func (o *Orchestrator) setBackendGauge(mode Mode) {
	if o.metrics == nil {
		return
	}
	if mode == ModeRemote {
		o.metrics.RemoteBackend.Set(1)
	} else {
		o.metrics.RemoteBackend.Set(0)
	}
}
