package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/V4T54L/barber-pos/internal/domain"
)

const (
	defaultRetryCount   = 3
	defaultRetryBackoff = 1 * time.Second
)

// syncOutbox pushes sales recorded while offline to the remote service,
// marks them synced in the embedded store and re-reads the remote view.
// Journal entries are pushed in the order they were written, so a sale that
// moved through several states offline arrives at each in turn. Rejected
// sales are logged and dropped; an unreachable service stops the replay and
// keeps the journal for the next attempt.
func (o *Orchestrator) syncOutbox(ctx context.Context, remote domain.EntityStore, local domain.LocalStore, outbox domain.OutboxRepository) {
	seen := make(map[string]bool)
	var order []string
	latest := make(map[string]domain.Transaction)

	push := func(t domain.Transaction) error {
		seen[t.ID] = true
		t.IsSynced = true
		err := o.pushSale(ctx, remote, t)
		switch {
		case err == nil:
			if _, ok := latest[t.ID]; !ok {
				order = append(order, t.ID)
			}
			latest[t.ID] = t
			o.countReplay("synced")
			return nil
		case errors.Is(err, domain.ErrServerUnreachable), ctx.Err() != nil:
			return err
		default:
			o.countReplay("rejected")
			o.logger.Warn("offline sale rejected by remote service, dropping", "id", t.ID, "status", t.Status, "error", err)
			return nil
		}
	}

	var err error
	if outbox != nil {
		err = outbox.Replay(ctx, push)
	}
	if err == nil && local != nil {
		// Sales the journal missed are still flagged in the embedded store.
		err = o.sweepUnsynced(ctx, local, seen, push)
	}
	if err != nil {
		o.logger.Warn("outbox replay interrupted, journal kept", "synced", len(order), "error", err)
	} else if outbox != nil {
		if terr := outbox.Truncate(ctx); terr != nil {
			o.logger.Error("failed to truncate outbox after replay", "error", terr)
		}
	}

	if len(order) == 0 {
		return
	}
	if local != nil {
		for _, id := range order {
			t := latest[id]
			if _, err := local.UpsertTransaction(ctx, t); err != nil && !errors.Is(err, domain.ErrPersistence) {
				o.logger.Warn("failed to mark sale synced in embedded store", "id", t.ID, "error", err)
			}
		}
	}
	o.logger.Info("replayed offline sales", "count", len(order))

	v, err := pull(ctx, remote)
	if err != nil {
		o.logger.Warn("re-read after replay failed", "error", err)
		return
	}
	o.mu.Lock()
	if o.backend == remote {
		o.view = v
	}
	o.mu.Unlock()
}

func (o *Orchestrator) sweepUnsynced(ctx context.Context, local domain.LocalStore, seen map[string]bool, push func(domain.Transaction) error) error {
	txs, err := local.ListTransactions(ctx)
	if err != nil {
		o.logger.Warn("failed to read embedded store for unsynced sales", "error", err)
		return nil
	}
	// Oldest first, the order they were recorded in.
	for i := len(txs) - 1; i >= 0; i-- {
		t := txs[i]
		if t.IsSynced || seen[t.ID] {
			continue
		}
		if err := push(t); err != nil {
			return err
		}
	}
	return nil
}

// pushSale upserts t remotely. A sale that reached a later status offline
// but whose first state never reached the service is rejected as a
// transition from nothing; the state it must have started in is pushed
// first and t is retried once.
func (o *Orchestrator) pushSale(ctx context.Context, remote domain.EntityStore, t domain.Transaction) error {
	err := o.upsertWithRetry(ctx, remote, t)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		return err
	}
	start, ok := startingStatus(t.Status)
	if !ok {
		return err
	}
	first := t
	first.Status = start
	if ferr := o.upsertWithRetry(ctx, remote, first); ferr != nil {
		if errors.Is(ferr, domain.ErrServerUnreachable) {
			return ferr
		}
		return err
	}
	o.logger.Info("pushed missing starting state of offline sale", "id", t.ID, "status", start)
	return o.upsertWithRetry(ctx, remote, t)
}

// startingStatus is the creation status a sale in status s passed through.
func startingStatus(s domain.TransactionStatus) (domain.TransactionStatus, bool) {
	switch s {
	case domain.TransactionRefunded:
		return domain.TransactionCompleted, true
	case domain.TransactionFailed:
		return domain.TransactionPending, true
	}
	return "", false
}

// upsertWithRetry retries only while the service is unreachable; a rejection
// will not change on retry.
func (o *Orchestrator) upsertWithRetry(ctx context.Context, remote domain.EntityStore, t domain.Transaction) error {
	var lastErr error
	for i := 0; i < o.cfg.ReplayRetryCount; i++ {
		_, err := remote.UpsertTransaction(ctx, t)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrServerUnreachable) {
			return err
		}
		lastErr = err
		o.logger.Warn("failed to replay sale, retrying...", "attempt", i+1, "id", t.ID, "error", err)
		select {
		case <-time.After(o.cfg.ReplayRetryBackoff):
			// continue
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

func (o *Orchestrator) countReplay(result string) {
	if o.metrics != nil {
		o.metrics.OutboxReplayed.WithLabelValues(result).Inc()
	}
}
