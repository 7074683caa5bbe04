package gateway

import (
	"context"
	"net/http"
	"net/url"

	"github.com/V4T54L/barber-pos/internal/domain"
)

func itemPath(collection, id string) string {
	return "/api/" + collection + "/" + url.PathEscape(id)
}

func (c *Client) ListStaff(ctx context.Context) ([]domain.Staff, error) {
	out := make([]domain.Staff, 0)
	err := c.do(ctx, http.MethodGet, "/api/staff", nil, &out)
	return out, err
}

func (c *Client) AddStaff(ctx context.Context, s domain.Staff) (domain.Staff, error) {
	s.BusinessID = c.businessID
	var out domain.Staff
	err := c.do(ctx, http.MethodPost, "/api/staff", s, &out)
	return out, err
}

func (c *Client) UpdateStaff(ctx context.Context, s domain.Staff) (domain.Staff, error) {
	s.BusinessID = c.businessID
	var out domain.Staff
	err := c.do(ctx, http.MethodPut, itemPath("staff", s.ID), s, &out)
	return out, err
}

func (c *Client) DeleteStaff(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, itemPath("staff", id), nil, nil)
}

func (c *Client) ListServices(ctx context.Context) ([]domain.Service, error) {
	out := make([]domain.Service, 0)
	err := c.do(ctx, http.MethodGet, "/api/services", nil, &out)
	return out, err
}

func (c *Client) AddService(ctx context.Context, s domain.Service) (domain.Service, error) {
	s.BusinessID = c.businessID
	var out domain.Service
	err := c.do(ctx, http.MethodPost, "/api/services", s, &out)
	return out, err
}

func (c *Client) UpdateService(ctx context.Context, s domain.Service) (domain.Service, error) {
	s.BusinessID = c.businessID
	var out domain.Service
	err := c.do(ctx, http.MethodPut, itemPath("services", s.ID), s, &out)
	return out, err
}

func (c *Client) DeleteService(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, itemPath("services", id), nil, nil)
}

func (c *Client) ListProducts(ctx context.Context) ([]domain.Product, error) {
	out := make([]domain.Product, 0)
	err := c.do(ctx, http.MethodGet, "/api/products", nil, &out)
	return out, err
}

func (c *Client) AddProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	p.BusinessID = c.businessID
	var out domain.Product
	err := c.do(ctx, http.MethodPost, "/api/products", p, &out)
	return out, err
}

func (c *Client) UpdateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	p.BusinessID = c.businessID
	var out domain.Product
	err := c.do(ctx, http.MethodPut, itemPath("products", p.ID), p, &out)
	return out, err
}

func (c *Client) UpdateProductStock(ctx context.Context, id string, stock, expectedVersion int) (domain.Product, error) {
	var out domain.Product
	body := domain.StockUpdate{Stock: stock, Version: expectedVersion}
	err := c.do(ctx, http.MethodPut, itemPath("products", id)+"/stock", body, &out)
	return out, err
}

func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, itemPath("products", id), nil, nil)
}

func (c *Client) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	out := make([]domain.Customer, 0)
	err := c.do(ctx, http.MethodGet, "/api/customers", nil, &out)
	return out, err
}

func (c *Client) AddCustomer(ctx context.Context, cu domain.Customer) (domain.Customer, error) {
	cu.BusinessID = c.businessID
	var out domain.Customer
	err := c.do(ctx, http.MethodPost, "/api/customers", cu, &out)
	return out, err
}

func (c *Client) UpdateCustomer(ctx context.Context, cu domain.Customer) (domain.Customer, error) {
	cu.BusinessID = c.businessID
	var out domain.Customer
	err := c.do(ctx, http.MethodPut, itemPath("customers", cu.ID), cu, &out)
	return out, err
}

func (c *Client) ListAppointments(ctx context.Context) ([]domain.Appointment, error) {
	out := make([]domain.Appointment, 0)
	err := c.do(ctx, http.MethodGet, "/api/appointments", nil, &out)
	return out, err
}

func (c *Client) AddAppointment(ctx context.Context, a domain.Appointment) (domain.Appointment, error) {
	a.BusinessID = c.businessID
	var out domain.Appointment
	err := c.do(ctx, http.MethodPost, "/api/appointments", a, &out)
	return out, err
}

func (c *Client) UpdateAppointmentStatus(ctx context.Context, id string, status domain.AppointmentStatus, expectedVersion int) (domain.Appointment, error) {
	var out domain.Appointment
	body := domain.AppointmentStatusUpdate{Status: status, Version: expectedVersion}
	err := c.do(ctx, http.MethodPut, itemPath("appointments", id)+"/status", body, &out)
	return out, err
}

func (c *Client) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	out := make([]domain.Transaction, 0)
	err := c.do(ctx, http.MethodGet, "/api/transactions", nil, &out)
	return out, err
}

func (c *Client) UpsertTransaction(ctx context.Context, t domain.Transaction) (domain.Transaction, error) {
	t.BusinessID = c.businessID
	var out domain.Transaction
	err := c.do(ctx, http.MethodPut, itemPath("transactions", t.ID), t, &out)
	return out, err
}

func (c *Client) GetSettings(ctx context.Context) (domain.Settings, error) {
	var out domain.Settings
	err := c.do(ctx, http.MethodGet, "/api/settings", nil, &out)
	return out, err
}

func (c *Client) UpdateSettings(ctx context.Context, patch domain.SettingsPatch, expectedVersion int) (domain.Settings, error) {
	var out domain.Settings
	body := domain.SettingsUpdate{SettingsPatch: patch, Version: expectedVersion}
	err := c.do(ctx, http.MethodPut, "/api/settings", body, &out)
	return out, err
}
