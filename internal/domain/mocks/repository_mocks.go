package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/V4T54L/barber-pos/internal/domain"
)

// MockEntityStore is an in-memory domain.EntityStore with the same version
// rules as the real stores. ListErr fails every read; WriteErr fails every
// write before it takes effect.
type MockEntityStore struct {
	mu           sync.Mutex
	BusinessID   string
	Staff        []domain.Staff
	Services     []domain.Service
	Products     []domain.Product
	Customers    []domain.Customer
	Appointments []domain.Appointment
	Transactions []domain.Transaction
	Settings     domain.Settings
	ListErr      error
	WriteErr     error
	Writes       []string
	Lists        int
	Flushes      int
	Closed       bool
}

// NewMockEntityStore returns a store with settings at version 1.
func NewMockEntityStore(businessID string) *MockEntityStore {
	return &MockEntityStore{
		BusinessID: businessID,
		Settings:   domain.Settings{BusinessID: businessID, Business: domain.BusinessProfile{Name: "Mock Shop"}, Version: 1},
	}
}

// SetErrors swaps the injected failures under the lock.
func (m *MockEntityStore) SetErrors(listErr, writeErr error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListErr = listErr
	m.WriteErr = writeErr
}

// WriteCount reports how many writes reached the store.
func (m *MockEntityStore) WriteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Writes)
}

func (m *MockEntityStore) read() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Lists++
	return m.ListErr
}

func (m *MockEntityStore) write(op string) error {
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.Writes = append(m.Writes, op)
	return nil
}

func conflict(kind, id string, have, want int) error {
	return fmt.Errorf("%w: %s %s is at version %d, expected %d", domain.ErrVersionConflict, kind, id, have, want)
}

func notFound(kind, id string) error {
	return fmt.Errorf("%w: %s %s", domain.ErrNotFound, kind, id)
}

func (m *MockEntityStore) ListStaff(ctx context.Context) ([]domain.Staff, error) {
	if err := m.read(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Staff{}, m.Staff...), nil
}

func (m *MockEntityStore) AddStaff(ctx context.Context, s domain.Staff) (domain.Staff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("AddStaff"); err != nil {
		return domain.Staff{}, err
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	for _, existing := range m.Staff {
		if existing.ID == s.ID {
			return domain.Staff{}, fmt.Errorf("%w: staff %s exists", domain.ErrConstraintViolation, s.ID)
		}
	}
	s.BusinessID, s.Version = m.BusinessID, 1
	m.Staff = append(m.Staff, s)
	return s, nil
}

func (m *MockEntityStore) UpdateStaff(ctx context.Context, s domain.Staff) (domain.Staff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("UpdateStaff"); err != nil {
		return domain.Staff{}, err
	}
	for i, existing := range m.Staff {
		if existing.ID != s.ID {
			continue
		}
		if existing.Version != s.Version {
			return domain.Staff{}, conflict("staff", s.ID, existing.Version, s.Version)
		}
		s.BusinessID, s.Version = m.BusinessID, s.Version+1
		m.Staff[i] = s
		return s, nil
	}
	return domain.Staff{}, notFound("staff", s.ID)
}

func (m *MockEntityStore) DeleteStaff(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("DeleteStaff"); err != nil {
		return err
	}
	for i, existing := range m.Staff {
		if existing.ID == id {
			m.Staff = append(m.Staff[:i], m.Staff[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MockEntityStore) ListServices(ctx context.Context) ([]domain.Service, error) {
	if err := m.read(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Service{}, m.Services...), nil
}

func (m *MockEntityStore) AddService(ctx context.Context, s domain.Service) (domain.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("AddService"); err != nil {
		return domain.Service{}, err
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.BusinessID, s.Version = m.BusinessID, 1
	m.Services = append(m.Services, s)
	return s, nil
}

func (m *MockEntityStore) UpdateService(ctx context.Context, s domain.Service) (domain.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("UpdateService"); err != nil {
		return domain.Service{}, err
	}
	for i, existing := range m.Services {
		if existing.ID != s.ID {
			continue
		}
		if existing.Version != s.Version {
			return domain.Service{}, conflict("service", s.ID, existing.Version, s.Version)
		}
		s.BusinessID, s.Version = m.BusinessID, s.Version+1
		m.Services[i] = s
		return s, nil
	}
	return domain.Service{}, notFound("service", s.ID)
}

func (m *MockEntityStore) DeleteService(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("DeleteService"); err != nil {
		return err
	}
	for i, existing := range m.Services {
		if existing.ID == id {
			m.Services = append(m.Services[:i], m.Services[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MockEntityStore) ListProducts(ctx context.Context) ([]domain.Product, error) {
	if err := m.read(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Product{}, m.Products...), nil
}

func (m *MockEntityStore) AddProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("AddProduct"); err != nil {
		return domain.Product{}, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.BusinessID, p.Version = m.BusinessID, 1
	m.Products = append(m.Products, p)
	return p, nil
}

func (m *MockEntityStore) UpdateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("UpdateProduct"); err != nil {
		return domain.Product{}, err
	}
	for i, existing := range m.Products {
		if existing.ID != p.ID {
			continue
		}
		if existing.Version != p.Version {
			return domain.Product{}, conflict("product", p.ID, existing.Version, p.Version)
		}
		p.BusinessID, p.Version = m.BusinessID, p.Version+1
		m.Products[i] = p
		return p, nil
	}
	return domain.Product{}, notFound("product", p.ID)
}

func (m *MockEntityStore) UpdateProductStock(ctx context.Context, id string, stock, expectedVersion int) (domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("UpdateProductStock"); err != nil {
		return domain.Product{}, err
	}
	for i, existing := range m.Products {
		if existing.ID != id {
			continue
		}
		if existing.Version != expectedVersion {
			return domain.Product{}, conflict("product", id, existing.Version, expectedVersion)
		}
		existing.Stock, existing.Version = stock, expectedVersion+1
		m.Products[i] = existing
		return existing, nil
	}
	return domain.Product{}, notFound("product", id)
}

func (m *MockEntityStore) DeleteProduct(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("DeleteProduct"); err != nil {
		return err
	}
	for i, existing := range m.Products {
		if existing.ID == id {
			m.Products = append(m.Products[:i], m.Products[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MockEntityStore) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	if err := m.read(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Customer{}, m.Customers...), nil
}

func (m *MockEntityStore) AddCustomer(ctx context.Context, c domain.Customer) (domain.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("AddCustomer"); err != nil {
		return domain.Customer{}, err
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.BusinessID, c.Version = m.BusinessID, 1
	m.Customers = append(m.Customers, c)
	return c, nil
}

func (m *MockEntityStore) UpdateCustomer(ctx context.Context, c domain.Customer) (domain.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("UpdateCustomer"); err != nil {
		return domain.Customer{}, err
	}
	for i, existing := range m.Customers {
		if existing.ID != c.ID {
			continue
		}
		if existing.Version != c.Version {
			return domain.Customer{}, conflict("customer", c.ID, existing.Version, c.Version)
		}
		c.BusinessID, c.Version = m.BusinessID, c.Version+1
		m.Customers[i] = c
		return c, nil
	}
	return domain.Customer{}, notFound("customer", c.ID)
}

func (m *MockEntityStore) ListAppointments(ctx context.Context) ([]domain.Appointment, error) {
	if err := m.read(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Appointment{}, m.Appointments...), nil
}

func (m *MockEntityStore) AddAppointment(ctx context.Context, a domain.Appointment) (domain.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("AddAppointment"); err != nil {
		return domain.Appointment{}, err
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = domain.AppointmentScheduled
	}
	a.BusinessID, a.Version = m.BusinessID, 1
	m.Appointments = append(m.Appointments, a)
	return a, nil
}

func (m *MockEntityStore) UpdateAppointmentStatus(ctx context.Context, id string, status domain.AppointmentStatus, expectedVersion int) (domain.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("UpdateAppointmentStatus"); err != nil {
		return domain.Appointment{}, err
	}
	for i, existing := range m.Appointments {
		if existing.ID != id {
			continue
		}
		if existing.Version != expectedVersion {
			return domain.Appointment{}, conflict("appointment", id, existing.Version, expectedVersion)
		}
		if err := domain.CheckAppointmentTransition(existing.Status, status); err != nil {
			return domain.Appointment{}, err
		}
		existing.Status, existing.Version = status, expectedVersion+1
		m.Appointments[i] = existing
		return existing, nil
	}
	return domain.Appointment{}, notFound("appointment", id)
}

func (m *MockEntityStore) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	if err := m.read(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]domain.Transaction{}, m.Transactions...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (m *MockEntityStore) UpsertTransaction(ctx context.Context, t domain.Transaction) (domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("UpsertTransaction"); err != nil {
		return domain.Transaction{}, err
	}
	t.BusinessID = m.BusinessID
	for i, existing := range m.Transactions {
		if existing.ID != t.ID {
			continue
		}
		if err := domain.CheckTransactionUpsert(&existing, t); err != nil {
			return domain.Transaction{}, err
		}
		m.Transactions[i] = t
		return t, nil
	}
	if err := domain.CheckTransactionUpsert(nil, t); err != nil {
		return domain.Transaction{}, err
	}
	m.Transactions = append(m.Transactions, t)
	return t, nil
}

func (m *MockEntityStore) GetSettings(ctx context.Context) (domain.Settings, error) {
	if err := m.read(); err != nil {
		return domain.Settings{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Settings, nil
}

func (m *MockEntityStore) UpdateSettings(ctx context.Context, patch domain.SettingsPatch, expectedVersion int) (domain.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("UpdateSettings"); err != nil {
		return domain.Settings{}, err
	}
	if m.Settings.Version != expectedVersion {
		return domain.Settings{}, conflict("settings", m.BusinessID, m.Settings.Version, expectedVersion)
	}
	next := patch.Apply(m.Settings)
	next.Version = expectedVersion + 1
	m.Settings = next
	return next, nil
}

// Flush and Close make the mock usable as a domain.LocalStore.
func (m *MockEntityStore) Flush(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Flushes++
	return nil
}

// FlushCount reports how many times Flush was called.
func (m *MockEntityStore) FlushCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Flushes
}

func (m *MockEntityStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// MockOutbox is an in-memory domain.OutboxRepository.
type MockOutbox struct {
	mu        sync.Mutex
	Entries   []domain.Transaction
	Truncates int
	WriteErr  error
}

func (m *MockOutbox) Write(ctx context.Context, t domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.Entries = append(m.Entries, t)
	return nil
}

func (m *MockOutbox) Replay(ctx context.Context, handler func(t domain.Transaction) error) error {
	m.mu.Lock()
	entries := append([]domain.Transaction{}, m.Entries...)
	m.mu.Unlock()
	for _, t := range entries {
		if err := handler(t); err != nil {
			return fmt.Errorf("replay handler failed: %w", err)
		}
	}
	return nil
}

func (m *MockOutbox) Truncate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Entries = nil
	m.Truncates++
	return nil
}

func (m *MockOutbox) Close() error { return nil }

// Len reports the number of journaled entries.
func (m *MockOutbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Entries)
}

// MockAuditNotifier records every event it is given.
type MockAuditNotifier struct {
	mu        sync.Mutex
	Events    []domain.AuditEvent
	NotifyErr error
}

func (m *MockAuditNotifier) Notify(ctx context.Context, event domain.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.NotifyErr != nil {
		return m.NotifyErr
	}
	m.Events = append(m.Events, event)
	return nil
}

// Snapshot returns a copy of the recorded events.
func (m *MockAuditNotifier) Snapshot() []domain.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.AuditEvent{}, m.Events...)
}

// MockTenantRepository is an in-memory domain.BusinessRegistry. Shops it
// has never heard of are active.
type MockTenantRepository struct {
	mu         sync.Mutex
	Suspended  map[string]bool
	Businesses map[string]domain.Business
	Err        error
}

var _ domain.BusinessRegistry = (*MockTenantRepository)(nil)

func (m *MockTenantRepository) IsActive(ctx context.Context, businessID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	return !m.Suspended[businessID], nil
}

func (m *MockTenantRepository) UpsertBusiness(ctx context.Context, b domain.Business) (domain.Business, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return domain.Business{}, m.Err
	}
	if m.Businesses == nil {
		m.Businesses = make(map[string]domain.Business)
	}
	if prev, ok := m.Businesses[b.ID]; ok {
		b.CreatedAt = prev.CreatedAt
	} else if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	m.Businesses[b.ID] = b
	m.setSuspendedLocked(b.ID, b.Status)
	return b, nil
}

func (m *MockTenantRepository) SetBusinessStatus(ctx context.Context, id string, status domain.BusinessStatus) (domain.Business, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return domain.Business{}, m.Err
	}
	b, ok := m.Businesses[id]
	if !ok {
		return domain.Business{}, notFound("business", id)
	}
	b.Status = status
	m.Businesses[id] = b
	m.setSuspendedLocked(id, status)
	return b, nil
}

func (m *MockTenantRepository) ListBusinesses(ctx context.Context) ([]domain.Business, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]domain.Business, 0, len(m.Businesses))
	for _, b := range m.Businesses {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockTenantRepository) setSuspendedLocked(id string, status domain.BusinessStatus) {
	if m.Suspended == nil {
		m.Suspended = make(map[string]bool)
	}
	m.Suspended[id] = status == domain.BusinessSuspended
}

// MockAuditLog is an in-memory domain.AuditLog.
type MockAuditLog struct {
	mu        sync.Mutex
	Events    []domain.AuditEvent
	AppendErr error
}

func (m *MockAuditLog) AppendAudit(ctx context.Context, e domain.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AppendErr != nil {
		return m.AppendErr
	}
	m.Events = append(m.Events, e)
	return nil
}

func (m *MockAuditLog) ListAudit(ctx context.Context, businessID string, limit int) ([]domain.AuditEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.AuditEvent
	for i := len(m.Events) - 1; i >= 0 && len(out) < limit; i-- {
		if m.Events[i].BusinessID == businessID {
			out = append(out, m.Events[i])
		}
	}
	return out, nil
}
