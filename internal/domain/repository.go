package domain

import "context"

// EntityStore is the tenant-scoped data surface shared by the embedded store
// and the remote gateway. Every call acts on exactly one tenant, fixed when the
// store was obtained.
//
// Update calls on versioned entities are compare-and-swap: the record's
// Version (or expectedVersion) must equal the stored version, and the stored
// version becomes expectedVersion+1. A stale version yields ErrVersionConflict.
type EntityStore interface {
	ListStaff(ctx context.Context) ([]Staff, error)
	AddStaff(ctx context.Context, s Staff) (Staff, error)
	UpdateStaff(ctx context.Context, s Staff) (Staff, error)
	DeleteStaff(ctx context.Context, id string) error

	ListServices(ctx context.Context) ([]Service, error)
	AddService(ctx context.Context, s Service) (Service, error)
	UpdateService(ctx context.Context, s Service) (Service, error)
	DeleteService(ctx context.Context, id string) error

	ListProducts(ctx context.Context) ([]Product, error)
	AddProduct(ctx context.Context, p Product) (Product, error)
	UpdateProduct(ctx context.Context, p Product) (Product, error)
	UpdateProductStock(ctx context.Context, id string, stock, expectedVersion int) (Product, error)
	DeleteProduct(ctx context.Context, id string) error

	ListCustomers(ctx context.Context) ([]Customer, error)
	AddCustomer(ctx context.Context, c Customer) (Customer, error)
	UpdateCustomer(ctx context.Context, c Customer) (Customer, error)

	ListAppointments(ctx context.Context) ([]Appointment, error)
	AddAppointment(ctx context.Context, a Appointment) (Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id string, status AppointmentStatus, expectedVersion int) (Appointment, error)

	// ListTransactions returns newest first.
	ListTransactions(ctx context.Context) ([]Transaction, error)
	// UpsertTransaction inserts or replaces by id. It is not versioned; the
	// status lattice is enforced instead.
	UpsertTransaction(ctx context.Context, t Transaction) (Transaction, error)

	GetSettings(ctx context.Context) (Settings, error)
	UpdateSettings(ctx context.Context, patch SettingsPatch, expectedVersion int) (Settings, error)
}

// LocalStore is an EntityStore that owns durable state and must be flushed
// and released at the end of a session.
type LocalStore interface {
	EntityStore
	// Flush writes the current state to the durable medium.
	Flush(ctx context.Context) error
	Close() error
}

// TenantStoreFactory hands out stores bound to one tenant. The remote service
// resolves the tenant from the caller's credential and asks for its store.
type TenantStoreFactory interface {
	ForTenant(ctx context.Context, businessID string) (EntityStore, error)
}

// SnapshotMedium is the durable key/value home of embedded store snapshots.
// Load returns nil data and no error when the key has never been written.
type SnapshotMedium interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
}

// OutboxRepository journals sales recorded while the remote service was
// unreachable so they can be replayed later.
type OutboxRepository interface {
	// Write appends a transaction to the journal.
	Write(ctx context.Context, t Transaction) error

	// Replay reads journaled transactions in order and hands each to handler.
	// A handler error stops the replay.
	Replay(ctx context.Context, handler func(t Transaction) error) error

	// Truncate removes everything that has been replayed.
	Truncate(ctx context.Context) error

	Close() error
}

// TenantRepository answers whether a shop may use the service.
// Implementations should handle caching to reduce database load.
type TenantRepository interface {
	IsActive(ctx context.Context, businessID string) (bool, error)
}

// BusinessRegistry is the platform's list of shops. Only active shops are
// served.
type BusinessRegistry interface {
	TenantRepository
	// UpsertBusiness creates or renames a shop and sets its status.
	UpsertBusiness(ctx context.Context, b Business) (Business, error)
	// SetBusinessStatus returns ErrNotFound for an unknown shop.
	SetBusinessStatus(ctx context.Context, id string, status BusinessStatus) (Business, error)
	ListBusinesses(ctx context.Context) ([]Business, error)
}

// AuditLog keeps the audit trail each tenant can read back.
type AuditLog interface {
	AppendAudit(ctx context.Context, e AuditEvent) error
	// ListAudit returns a tenant's events newest first, at most limit.
	ListAudit(ctx context.Context, businessID string, limit int) ([]AuditEvent, error)
}

// AuditNotifier publishes audit events.
type AuditNotifier interface {
	Notify(ctx context.Context, event AuditEvent) error
}
