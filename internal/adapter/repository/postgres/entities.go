package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/V4T54L/barber-pos/internal/domain"
)

const (
	staffColumns       = `id, business_id, name, role, commission_rate, phone, email, avatar, username, password_hash, version`
	serviceColumns     = `id, business_id, name, price, duration, category, version`
	productColumns     = `id, business_id, name, price, stock, category, version`
	customerColumns    = `id, business_id, name, phone, email, notes, join_date, version`
	appointmentColumns = `id, business_id, customer_name, customer_phone, service_id, staff_id, date, status, version`
	transactionColumns = `id, business_id, occurred_at, items, total, payment_method, status, customer_id, customer_name,
	is_synced, payment_reference, mpesa_phone_number, mpesa_checkout_request_id, mpesa_receipt_number, metadata`
)

func scanStaff(r scanner) (domain.Staff, error) {
	var s domain.Staff
	err := r.Scan(&s.ID, &s.BusinessID, &s.Name, &s.Role, &s.CommissionRate, &s.Phone, &s.Email, &s.Avatar,
		&s.Username, &s.PasswordHash, &s.Version)
	return s, err
}

func (t *tenantStore) ListStaff(ctx context.Context) ([]domain.Staff, error) {
	out, err := list(ctx, t.db, scanStaff, `SELECT `+staffColumns+` FROM staff WHERE business_id = $1 ORDER BY name, id`, t.businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to list staff: %w", err)
	}
	return out, nil
}

func (t *tenantStore) AddStaff(ctx context.Context, s domain.Staff) (domain.Staff, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.BusinessID, s.Version = t.businessID, 1
	_, err := t.db.ExecContext(ctx, `INSERT INTO staff (`+staffColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		s.ID, s.BusinessID, s.Name, s.Role, s.CommissionRate, s.Phone, s.Email, s.Avatar, s.Username, s.PasswordHash, s.Version)
	if err != nil {
		return domain.Staff{}, mapErr(err)
	}
	return s, nil
}

func (t *tenantStore) UpdateStaff(ctx context.Context, s domain.Staff) (domain.Staff, error) {
	err := t.casUpdate(ctx, "staff", s.ID, s.Version,
		`name = $1, role = $2, commission_rate = $3, phone = $4, email = $5, avatar = $6, username = $7, password_hash = $8`,
		s.Name, s.Role, s.CommissionRate, s.Phone, s.Email, s.Avatar, s.Username, s.PasswordHash)
	if err != nil {
		return domain.Staff{}, err
	}
	s.BusinessID, s.Version = t.businessID, s.Version+1
	return s, nil
}

func (t *tenantStore) DeleteStaff(ctx context.Context, id string) error {
	return t.deleteRow(ctx, "staff", id)
}

func scanService(r scanner) (domain.Service, error) {
	var sv domain.Service
	err := r.Scan(&sv.ID, &sv.BusinessID, &sv.Name, &sv.Price, &sv.Duration, &sv.Category, &sv.Version)
	return sv, err
}

func (t *tenantStore) ListServices(ctx context.Context) ([]domain.Service, error) {
	out, err := list(ctx, t.db, scanService, `SELECT `+serviceColumns+` FROM services WHERE business_id = $1 ORDER BY name, id`, t.businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	return out, nil
}

func (t *tenantStore) AddService(ctx context.Context, sv domain.Service) (domain.Service, error) {
	if sv.ID == "" {
		sv.ID = uuid.NewString()
	}
	sv.BusinessID, sv.Version = t.businessID, 1
	_, err := t.db.ExecContext(ctx, `INSERT INTO services (`+serviceColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sv.ID, sv.BusinessID, sv.Name, sv.Price, sv.Duration, sv.Category, sv.Version)
	if err != nil {
		return domain.Service{}, mapErr(err)
	}
	return sv, nil
}

func (t *tenantStore) UpdateService(ctx context.Context, sv domain.Service) (domain.Service, error) {
	err := t.casUpdate(ctx, "services", sv.ID, sv.Version,
		`name = $1, price = $2, duration = $3, category = $4`,
		sv.Name, sv.Price, sv.Duration, sv.Category)
	if err != nil {
		return domain.Service{}, err
	}
	sv.BusinessID, sv.Version = t.businessID, sv.Version+1
	return sv, nil
}

func (t *tenantStore) DeleteService(ctx context.Context, id string) error {
	return t.deleteRow(ctx, "services", id)
}

func scanProduct(r scanner) (domain.Product, error) {
	var p domain.Product
	err := r.Scan(&p.ID, &p.BusinessID, &p.Name, &p.Price, &p.Stock, &p.Category, &p.Version)
	return p, err
}

func (t *tenantStore) ListProducts(ctx context.Context) ([]domain.Product, error) {
	out, err := list(ctx, t.db, scanProduct, `SELECT `+productColumns+` FROM products WHERE business_id = $1 ORDER BY name, id`, t.businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return out, nil
}

func (t *tenantStore) AddProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Category == "" {
		p.Category = domain.ProductRetail
	}
	p.BusinessID, p.Version = t.businessID, 1
	_, err := t.db.ExecContext(ctx, `INSERT INTO products (`+productColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.BusinessID, p.Name, p.Price, p.Stock, p.Category, p.Version)
	if err != nil {
		return domain.Product{}, mapErr(err)
	}
	return p, nil
}

func (t *tenantStore) UpdateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	err := t.casUpdate(ctx, "products", p.ID, p.Version,
		`name = $1, price = $2, stock = $3, category = $4`,
		p.Name, p.Price, p.Stock, p.Category)
	if err != nil {
		return domain.Product{}, err
	}
	p.BusinessID, p.Version = t.businessID, p.Version+1
	return p, nil
}

// UpdateProductStock is the contended write: one statement, one winner.
func (t *tenantStore) UpdateProductStock(ctx context.Context, id string, stock, expectedVersion int) (domain.Product, error) {
	row := t.db.QueryRowContext(ctx,
		`UPDATE products SET stock = $1, version = version + 1
		 WHERE business_id = $2 AND id = $3 AND version = $4
		 RETURNING `+productColumns,
		stock, t.businessID, id, expectedVersion)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, t.missOrConflict(ctx, "products", id, expectedVersion)
	}
	if err != nil {
		return domain.Product{}, mapErr(err)
	}
	return p, nil
}

func (t *tenantStore) DeleteProduct(ctx context.Context, id string) error {
	return t.deleteRow(ctx, "products", id)
}

func scanCustomer(r scanner) (domain.Customer, error) {
	var c domain.Customer
	err := r.Scan(&c.ID, &c.BusinessID, &c.Name, &c.Phone, &c.Email, &c.Notes, &c.JoinDate, &c.Version)
	return c, err
}

func (t *tenantStore) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	out, err := list(ctx, t.db, scanCustomer, `SELECT `+customerColumns+` FROM customers WHERE business_id = $1 ORDER BY name, id`, t.businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	return out, nil
}

func (t *tenantStore) AddCustomer(ctx context.Context, c domain.Customer) (domain.Customer, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.JoinDate == "" {
		c.JoinDate = time.Now().UTC().Format(time.DateOnly)
	}
	c.BusinessID, c.Version = t.businessID, 1
	_, err := t.db.ExecContext(ctx, `INSERT INTO customers (`+customerColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.BusinessID, c.Name, c.Phone, c.Email, c.Notes, c.JoinDate, c.Version)
	if err != nil {
		return domain.Customer{}, mapErr(err)
	}
	return c, nil
}

func (t *tenantStore) UpdateCustomer(ctx context.Context, c domain.Customer) (domain.Customer, error) {
	err := t.casUpdate(ctx, "customers", c.ID, c.Version,
		`name = $1, phone = $2, email = $3, notes = $4, join_date = $5`,
		c.Name, c.Phone, c.Email, c.Notes, c.JoinDate)
	if err != nil {
		return domain.Customer{}, err
	}
	c.BusinessID, c.Version = t.businessID, c.Version+1
	return c, nil
}

func scanAppointment(r scanner) (domain.Appointment, error) {
	var a domain.Appointment
	err := r.Scan(&a.ID, &a.BusinessID, &a.CustomerName, &a.CustomerPhone, &a.ServiceID, &a.StaffID, &a.Date, &a.Status, &a.Version)
	return a, err
}

func (t *tenantStore) ListAppointments(ctx context.Context) ([]domain.Appointment, error) {
	out, err := list(ctx, t.db, scanAppointment, `SELECT `+appointmentColumns+` FROM appointments WHERE business_id = $1 ORDER BY date, id`, t.businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return out, nil
}

func (t *tenantStore) AddAppointment(ctx context.Context, a domain.Appointment) (domain.Appointment, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = domain.AppointmentScheduled
	}
	a.BusinessID, a.Version = t.businessID, 1
	_, err := t.db.ExecContext(ctx, `INSERT INTO appointments (`+appointmentColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.BusinessID, a.CustomerName, a.CustomerPhone, a.ServiceID, a.StaffID, a.Date, a.Status, a.Version)
	if err != nil {
		return domain.Appointment{}, mapErr(err)
	}
	return a, nil
}

// UpdateAppointmentStatus checks the version first, then the status lattice,
// under a row lock.
func (t *tenantStore) UpdateAppointmentStatus(ctx context.Context, id string, status domain.AppointmentStatus, expectedVersion int) (domain.Appointment, error) {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Appointment{}, err
	}
	defer tx.Rollback() // no-op after Commit

	current, err := scanAppointment(tx.QueryRowContext(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE business_id = $1 AND id = $2 FOR UPDATE`, t.businessID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Appointment{}, fmt.Errorf("%w: appointment %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return domain.Appointment{}, err
	}
	if current.Version != expectedVersion {
		return domain.Appointment{}, fmt.Errorf("%w: appointment %s is at version %d, expected %d",
			domain.ErrVersionConflict, id, current.Version, expectedVersion)
	}
	if err := domain.CheckAppointmentTransition(current.Status, status); err != nil {
		return domain.Appointment{}, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE appointments SET status = $1, version = version + 1 WHERE business_id = $2 AND id = $3`,
		status, t.businessID, id); err != nil {
		return domain.Appointment{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Appointment{}, err
	}
	current.Status, current.Version = status, expectedVersion+1
	return current, nil
}

func scanTransaction(r scanner) (domain.Transaction, error) {
	var (
		t        domain.Transaction
		items    []byte
		metadata []byte
	)
	err := r.Scan(&t.ID, &t.BusinessID, &t.Timestamp, &items, &t.Total, &t.PaymentMethod, &t.Status, &t.CustomerID,
		&t.CustomerName, &t.IsSynced, &t.PaymentReference, &t.MpesaPhoneNumber, &t.MpesaCheckoutRequestID,
		&t.MpesaReceiptNumber, &metadata)
	if err != nil {
		return domain.Transaction{}, err
	}
	t.Timestamp = t.Timestamp.UTC()
	if err := json.Unmarshal(items, &t.Items); err != nil {
		return domain.Transaction{}, fmt.Errorf("failed to decode items of transaction %s: %w", t.ID, err)
	}
	if len(metadata) > 0 {
		t.Metadata = &domain.TransactionMetadata{}
		if err := json.Unmarshal(metadata, t.Metadata); err != nil {
			return domain.Transaction{}, fmt.Errorf("failed to decode metadata of transaction %s: %w", t.ID, err)
		}
	}
	return t, nil
}

func (t *tenantStore) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	out, err := list(ctx, t.db, scanTransaction,
		`SELECT `+transactionColumns+` FROM transactions WHERE business_id = $1 ORDER BY occurred_at DESC, id`, t.businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return out, nil
}

// UpsertTransaction locks the existing row, if any, so two terminals settling
// the same sale cannot both pass the lattice check.
func (t *tenantStore) UpsertTransaction(ctx context.Context, tr domain.Transaction) (domain.Transaction, error) {
	tr.BusinessID = t.businessID
	if tr.Timestamp.IsZero() {
		tr.Timestamp = time.Now().UTC()
	}
	if tr.Items == nil {
		tr.Items = []domain.CartItem{}
	}
	items, err := json.Marshal(tr.Items)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("failed to encode items: %w", err)
	}
	var metadata []byte
	if tr.Metadata != nil {
		if metadata, err = json.Marshal(tr.Metadata); err != nil {
			return domain.Transaction{}, fmt.Errorf("failed to encode metadata: %w", err)
		}
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Transaction{}, err
	}
	defer tx.Rollback() // no-op after Commit

	existing, err := scanTransaction(tx.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE business_id = $1 AND id = $2 FOR UPDATE`, t.businessID, tr.ID))
	var prev *domain.Transaction
	switch {
	case err == nil:
		prev = &existing
	case !errors.Is(err, sql.ErrNoRows):
		return domain.Transaction{}, err
	}
	if err := domain.CheckTransactionUpsert(prev, tr); err != nil {
		return domain.Transaction{}, err
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (business_id, id) DO UPDATE SET
			occurred_at = EXCLUDED.occurred_at, items = EXCLUDED.items, total = EXCLUDED.total,
			payment_method = EXCLUDED.payment_method, status = EXCLUDED.status,
			customer_id = EXCLUDED.customer_id, customer_name = EXCLUDED.customer_name,
			is_synced = EXCLUDED.is_synced, payment_reference = EXCLUDED.payment_reference,
			mpesa_phone_number = EXCLUDED.mpesa_phone_number,
			mpesa_checkout_request_id = EXCLUDED.mpesa_checkout_request_id,
			mpesa_receipt_number = EXCLUDED.mpesa_receipt_number, metadata = EXCLUDED.metadata`,
		tr.ID, tr.BusinessID, tr.Timestamp, items, tr.Total, tr.PaymentMethod, tr.Status,
		tr.CustomerID, tr.CustomerName, tr.IsSynced, tr.PaymentReference, tr.MpesaPhoneNumber,
		tr.MpesaCheckoutRequestID, tr.MpesaReceiptNumber, nullableJSON(metadata))
	if err != nil {
		return domain.Transaction{}, mapErr(err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Transaction{}, err
	}
	return tr, nil
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

func (t *tenantStore) GetSettings(ctx context.Context) (domain.Settings, error) {
	return t.scanSettings(t.db.QueryRowContext(ctx,
		`SELECT content, version FROM settings WHERE business_id = $1`, t.businessID))
}

func (t *tenantStore) scanSettings(row scanner) (domain.Settings, error) {
	var (
		content []byte
		version int
	)
	err := row.Scan(&content, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Settings{}, fmt.Errorf("%w: settings", domain.ErrNotFound)
	}
	if err != nil {
		return domain.Settings{}, fmt.Errorf("failed to read settings: %w", err)
	}
	var st domain.Settings
	if err := json.Unmarshal(content, &st); err != nil {
		return domain.Settings{}, fmt.Errorf("failed to decode settings: %w", err)
	}
	st.BusinessID, st.Version = t.businessID, version
	return st, nil
}

// UpdateSettings replaces the sections present in patch if the settings are
// still at expectedVersion.
func (t *tenantStore) UpdateSettings(ctx context.Context, patch domain.SettingsPatch, expectedVersion int) (domain.Settings, error) {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Settings{}, err
	}
	defer tx.Rollback() // no-op after Commit

	current, err := t.scanSettings(tx.QueryRowContext(ctx,
		`SELECT content, version FROM settings WHERE business_id = $1 FOR UPDATE`, t.businessID))
	if err != nil {
		return domain.Settings{}, err
	}
	if current.Version != expectedVersion {
		return domain.Settings{}, fmt.Errorf("%w: settings are at version %d, expected %d",
			domain.ErrVersionConflict, current.Version, expectedVersion)
	}
	next := patch.Apply(current)
	next.Version = expectedVersion + 1
	content, err := json.Marshal(next)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("failed to encode settings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE settings SET content = $1, version = $2 WHERE business_id = $3`,
		content, next.Version, t.businessID); err != nil {
		return domain.Settings{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Settings{}, err
	}
	return next, nil
}
