package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/V4T54L/barber-pos/internal/domain"
)

// mutate runs call against the active backend. When the remote service turns
// out to be unreachable the orchestrator switches to the embedded store and
// the call is repeated there; every other error reaches the caller as is.
// A PersistenceError is returned together with the applied result.
func mutate[T any](ctx context.Context, o *Orchestrator, op string, call func(store domain.EntityStore, local bool) (T, error), patch func(v *view, res T)) (T, error) {
	var zero T
	store, local, err := o.activeBackend(ctx)
	if err != nil {
		return zero, err
	}

	res, err := call(store, local)
	if err != nil && !local && errors.Is(err, domain.ErrServerUnreachable) {
		o.logger.Warn("remote unreachable during write, switching to embedded store", "op", op, "error", err)
		if fallback, ok := o.fallBackToLocal(ctx, store); ok {
			store, local = fallback, true
			res, err = call(store, local)
		}
	}
	o.countMutation(op, err)

	if err != nil && !errors.Is(err, domain.ErrPersistence) {
		if errors.Is(err, domain.ErrVersionConflict) {
			o.logger.Info("write lost a version race", "op", op, "error", err)
		}
		return zero, err
	}
	if err != nil {
		o.logger.Warn("write applied but not persisted", "op", op, "error", err)
	}
	o.afterWrite(ctx, store, func(v *view) { patch(v, res) })
	return res, err
}

// activeBackend returns the store calls go to, running the first refresh of
// a session if it has not happened yet.
func (o *Orchestrator) activeBackend(ctx context.Context) (domain.EntityStore, bool, error) {
	o.mu.RLock()
	store, mode := o.backend, o.mode
	o.mu.RUnlock()

	if mode == ModeUninitialized {
		if err := o.Refresh(ctx); err != nil {
			return nil, false, err
		}
		o.mu.RLock()
		store, mode = o.backend, o.mode
		o.mu.RUnlock()
	}
	if store == nil {
		return nil, false, domain.ErrNoSession
	}
	return store, mode == ModeLocal, nil
}

// fallBackToLocal makes the embedded store authoritative after failed was
// found unreachable.
func (o *Orchestrator) fallBackToLocal(ctx context.Context, failed domain.EntityStore) (domain.EntityStore, bool) {
	o.refreshMu.Lock()
	defer o.refreshMu.Unlock()

	o.mu.RLock()
	backend, local := o.backend, o.local
	o.mu.RUnlock()
	if local == nil {
		return nil, false
	}
	if backend != failed && backend == domain.EntityStore(local) {
		return local, true
	}
	v, err := pull(ctx, local)
	if err != nil {
		o.logger.Error("embedded store unreadable, cannot fall back", "error", err)
		o.setConnected(false)
		return nil, false
	}
	o.install(ModeLocal, false, local, v)
	return local, true
}

// afterWrite patches the written entity into the view, then re-reads the
// whole backend when configured to. Nothing is applied if the backend changed
// in the meantime.
func (o *Orchestrator) afterWrite(ctx context.Context, store domain.EntityStore, patch func(v *view)) {
	o.mu.Lock()
	if o.backend == store {
		patch(&o.view)
	}
	o.mu.Unlock()

	if !o.cfg.FullRefreshAfterMutation {
		return
	}
	v, err := pull(ctx, store)
	if err != nil {
		o.logger.Warn("re-read after write failed, view holds the patched state", "error", err)
		return
	}
	o.mu.Lock()
	if o.backend == store {
		o.view = v
	}
	o.mu.Unlock()
}

func (o *Orchestrator) countMutation(op string, err error) {
	if o.metrics == nil {
		return
	}
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrPersistence):
		result = "unpersisted"
	case errors.Is(err, domain.ErrVersionConflict):
		result = "conflict"
		o.metrics.VersionConflicts.Inc()
	default:
		result = "error"
	}
	o.metrics.MutationsTotal.WithLabelValues(op, result).Inc()
}

type none struct{}

func (o *Orchestrator) AddStaff(ctx context.Context, s domain.Staff) (domain.Staff, error) {
	return mutate(ctx, o, "add_staff",
		func(st domain.EntityStore, _ bool) (domain.Staff, error) { return st.AddStaff(ctx, s) },
		func(v *view, r domain.Staff) { v.staff = upsertByID(v.staff, r, staffID) })
}

// UpdateStaff replaces a staff record; s.Version must be the version read.
func (o *Orchestrator) UpdateStaff(ctx context.Context, s domain.Staff) (domain.Staff, error) {
	return mutate(ctx, o, "update_staff",
		func(st domain.EntityStore, _ bool) (domain.Staff, error) { return st.UpdateStaff(ctx, s) },
		func(v *view, r domain.Staff) { v.staff = upsertByID(v.staff, r, staffID) })
}

func (o *Orchestrator) DeleteStaff(ctx context.Context, id string) error {
	_, err := mutate(ctx, o, "delete_staff",
		func(st domain.EntityStore, _ bool) (none, error) { return none{}, st.DeleteStaff(ctx, id) },
		func(v *view, _ none) { v.staff = removeByID(v.staff, id, staffID) })
	return err
}

func (o *Orchestrator) AddService(ctx context.Context, s domain.Service) (domain.Service, error) {
	return mutate(ctx, o, "add_service",
		func(st domain.EntityStore, _ bool) (domain.Service, error) { return st.AddService(ctx, s) },
		func(v *view, r domain.Service) { v.services = upsertByID(v.services, r, serviceID) })
}

func (o *Orchestrator) UpdateService(ctx context.Context, s domain.Service) (domain.Service, error) {
	return mutate(ctx, o, "update_service",
		func(st domain.EntityStore, _ bool) (domain.Service, error) { return st.UpdateService(ctx, s) },
		func(v *view, r domain.Service) { v.services = upsertByID(v.services, r, serviceID) })
}

func (o *Orchestrator) DeleteService(ctx context.Context, id string) error {
	_, err := mutate(ctx, o, "delete_service",
		func(st domain.EntityStore, _ bool) (none, error) { return none{}, st.DeleteService(ctx, id) },
		func(v *view, _ none) { v.services = removeByID(v.services, id, serviceID) })
	return err
}

func (o *Orchestrator) AddProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	return mutate(ctx, o, "add_product",
		func(st domain.EntityStore, _ bool) (domain.Product, error) { return st.AddProduct(ctx, p) },
		func(v *view, r domain.Product) { v.products = upsertByID(v.products, r, productID) })
}

func (o *Orchestrator) UpdateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	return mutate(ctx, o, "update_product",
		func(st domain.EntityStore, _ bool) (domain.Product, error) { return st.UpdateProduct(ctx, p) },
		func(v *view, r domain.Product) { v.products = upsertByID(v.products, r, productID) })
}

// UpdateProductStock sets the stock of a product still at expectedVersion.
// A stale version yields domain.ErrVersionConflict and is not retried.
func (o *Orchestrator) UpdateProductStock(ctx context.Context, id string, stock, expectedVersion int) (domain.Product, error) {
	return mutate(ctx, o, "update_product_stock",
		func(st domain.EntityStore, _ bool) (domain.Product, error) {
			return st.UpdateProductStock(ctx, id, stock, expectedVersion)
		},
		func(v *view, r domain.Product) { v.products = upsertByID(v.products, r, productID) })
}

func (o *Orchestrator) DeleteProduct(ctx context.Context, id string) error {
	_, err := mutate(ctx, o, "delete_product",
		func(st domain.EntityStore, _ bool) (none, error) { return none{}, st.DeleteProduct(ctx, id) },
		func(v *view, _ none) { v.products = removeByID(v.products, id, productID) })
	return err
}

func (o *Orchestrator) AddCustomer(ctx context.Context, c domain.Customer) (domain.Customer, error) {
	if err := o.validator.ValidateCustomer(c); err != nil {
		return domain.Customer{}, err
	}
	return mutate(ctx, o, "add_customer",
		func(st domain.EntityStore, _ bool) (domain.Customer, error) { return st.AddCustomer(ctx, c) },
		func(v *view, r domain.Customer) { v.customers = upsertByID(v.customers, r, customerID) })
}

func (o *Orchestrator) UpdateCustomer(ctx context.Context, c domain.Customer) (domain.Customer, error) {
	if err := o.validator.ValidateCustomer(c); err != nil {
		return domain.Customer{}, err
	}
	return mutate(ctx, o, "update_customer",
		func(st domain.EntityStore, _ bool) (domain.Customer, error) { return st.UpdateCustomer(ctx, c) },
		func(v *view, r domain.Customer) { v.customers = upsertByID(v.customers, r, customerID) })
}

func (o *Orchestrator) AddAppointment(ctx context.Context, a domain.Appointment) (domain.Appointment, error) {
	if err := o.validator.ValidateAppointment(a); err != nil {
		return domain.Appointment{}, err
	}
	return mutate(ctx, o, "add_appointment",
		func(st domain.EntityStore, _ bool) (domain.Appointment, error) { return st.AddAppointment(ctx, a) },
		func(v *view, r domain.Appointment) { v.appointments = upsertByID(v.appointments, r, appointmentID) })
}

// UpdateAppointmentStatus moves an appointment still at expectedVersion to
// status.
func (o *Orchestrator) UpdateAppointmentStatus(ctx context.Context, id string, status domain.AppointmentStatus, expectedVersion int) (domain.Appointment, error) {
	return mutate(ctx, o, "update_appointment_status",
		func(st domain.EntityStore, _ bool) (domain.Appointment, error) {
			return st.UpdateAppointmentStatus(ctx, id, status, expectedVersion)
		},
		func(v *view, r domain.Appointment) { v.appointments = upsertByID(v.appointments, r, appointmentID) })
}

// UpdateSettings applies the sections present in patch if the settings are
// still at expectedVersion.
func (o *Orchestrator) UpdateSettings(ctx context.Context, patch domain.SettingsPatch, expectedVersion int) (domain.Settings, error) {
	return mutate(ctx, o, "update_settings",
		func(st domain.EntityStore, _ bool) (domain.Settings, error) {
			return st.UpdateSettings(ctx, patch, expectedVersion)
		},
		func(v *view, r domain.Settings) { v.settings = r })
}

// ProcessSale validates and records a sale. Sales recorded while the remote
// service is unreachable are kept unsynced and journaled for replay.
func (o *Orchestrator) ProcessSale(ctx context.Context, t domain.Transaction) (domain.Transaction, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now().UTC()
	}
	if err := o.validator.ValidateTransaction(t); err != nil {
		return domain.Transaction{}, err
	}
	return o.recordTransaction(ctx, "process_sale", t)
}

// ApplySettlement records the outcome of an asynchronous payment for a
// pending sale.
func (o *Orchestrator) ApplySettlement(ctx context.Context, id string, status domain.TransactionStatus, reference string) (domain.Transaction, error) {
	if status != domain.TransactionCompleted && status != domain.TransactionFailed {
		return domain.Transaction{}, &domain.ValidationError{Field: "status", Reason: "settlement must be Completed or Failed"}
	}
	t, err := o.findTransaction(id)
	if err != nil {
		return domain.Transaction{}, err
	}
	t.Status = status
	if reference != "" {
		t.PaymentReference = reference
		if t.PaymentMethod == domain.PaymentMpesa {
			t.MpesaReceiptNumber = reference
		}
	}
	return o.recordTransaction(ctx, "apply_settlement", t)
}

// RefundTransaction marks a completed sale refunded.
func (o *Orchestrator) RefundTransaction(ctx context.Context, id string) (domain.Transaction, error) {
	t, err := o.findTransaction(id)
	if err != nil {
		return domain.Transaction{}, err
	}
	t.Status = domain.TransactionRefunded
	return o.recordTransaction(ctx, "refund_transaction", t)
}

func (o *Orchestrator) findTransaction(id string) (domain.Transaction, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, t := range o.view.transactions {
		if t.ID == id {
			return t, nil
		}
	}
	return domain.Transaction{}, fmt.Errorf("%w: transaction %s", domain.ErrNotFound, id)
}

func (o *Orchestrator) recordTransaction(ctx context.Context, op string, t domain.Transaction) (domain.Transaction, error) {
	return mutate(ctx, o, op,
		func(st domain.EntityStore, local bool) (domain.Transaction, error) {
			tx := t
			tx.IsSynced = !local
			saved, err := st.UpsertTransaction(ctx, tx)
			if local && (err == nil || errors.Is(err, domain.ErrPersistence)) {
				o.journal(ctx, saved)
			}
			return saved, err
		},
		func(v *view, r domain.Transaction) { v.transactions = upsertTransaction(v.transactions, r) })
}

// journal appends an offline sale to the outbox. A sale that cannot be
// journaled is still found by the unsynced sweep of the embedded store.
func (o *Orchestrator) journal(ctx context.Context, t domain.Transaction) {
	o.mu.RLock()
	outbox := o.outbox
	o.mu.RUnlock()
	if outbox == nil {
		o.logger.Warn("outbox unavailable, sale kept only in embedded store", "id", t.ID)
		return
	}
	if err := outbox.Write(ctx, t); err != nil {
		o.logger.Error("failed to journal offline sale", "id", t.ID, "error", err)
	}
}
