package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/V4T54L/barber-pos/internal/domain"
)

func (h *EntityHandler) staffResource() resource[domain.Staff] {
	return resource[domain.Staff]{
		name:      "staff",
		addAction: domain.AuditStaffAdded,
		delAction: domain.AuditStaffDeleted,
		fields:    func(s *domain.Staff) (*string, *string) { return &s.ID, &s.BusinessID },
		validate:  h.validator.ValidateStaff,
	}
}

func (h *EntityHandler) serviceResource() resource[domain.Service] {
	return resource[domain.Service]{
		name:      "services",
		addAction: domain.AuditServiceAdded,
		fields:    func(s *domain.Service) (*string, *string) { return &s.ID, &s.BusinessID },
		validate:  h.validator.ValidateService,
	}
}

func (h *EntityHandler) productResource() resource[domain.Product] {
	return resource[domain.Product]{
		name:     "products",
		fields:   func(p *domain.Product) (*string, *string) { return &p.ID, &p.BusinessID },
		validate: h.validator.ValidateProduct,
	}
}

func (h *EntityHandler) customerResource() resource[domain.Customer] {
	return resource[domain.Customer]{
		name:     "customers",
		fields:   func(c *domain.Customer) (*string, *string) { return &c.ID, &c.BusinessID },
		validate: h.validator.ValidateCustomer,
	}
}

func (h *EntityHandler) appointmentResource() resource[domain.Appointment] {
	return resource[domain.Appointment]{
		name:     "appointments",
		fields:   func(a *domain.Appointment) (*string, *string) { return &a.ID, &a.BusinessID },
		validate: h.validator.ValidateAppointment,
	}
}

// Routes mounts the entity API. The caller is expected to wrap it in Auth.
func (h *EntityHandler) Routes() chi.Router {
	r := chi.NewRouter()

	staff := h.staffResource()
	r.Get("/staff", listHandler(h, staff, domain.EntityStore.ListStaff))
	r.Post("/staff", createHandler(h, staff, domain.EntityStore.AddStaff))
	r.Put("/staff/{id}", updateHandler(h, staff, domain.EntityStore.UpdateStaff))
	r.Delete("/staff/{id}", deleteHandler(h, staff, domain.EntityStore.DeleteStaff))

	services := h.serviceResource()
	r.Get("/services", listHandler(h, services, domain.EntityStore.ListServices))
	r.Post("/services", createHandler(h, services, domain.EntityStore.AddService))
	r.Put("/services/{id}", updateHandler(h, services, domain.EntityStore.UpdateService))
	r.Delete("/services/{id}", deleteHandler(h, services, domain.EntityStore.DeleteService))

	products := h.productResource()
	r.Get("/products", listHandler(h, products, domain.EntityStore.ListProducts))
	r.Post("/products", createHandler(h, products, domain.EntityStore.AddProduct))
	r.Put("/products/{id}", updateHandler(h, products, domain.EntityStore.UpdateProduct))
	r.Put("/products/{id}/stock", h.UpdateProductStock)
	r.Delete("/products/{id}", deleteHandler(h, products, domain.EntityStore.DeleteProduct))

	customers := h.customerResource()
	r.Get("/customers", listHandler(h, customers, domain.EntityStore.ListCustomers))
	r.Post("/customers", createHandler(h, customers, domain.EntityStore.AddCustomer))
	r.Put("/customers/{id}", updateHandler(h, customers, domain.EntityStore.UpdateCustomer))

	appointments := h.appointmentResource()
	r.Get("/appointments", listHandler(h, appointments, domain.EntityStore.ListAppointments))
	r.Post("/appointments", createHandler(h, appointments, domain.EntityStore.AddAppointment))
	r.Put("/appointments/{id}/status", h.UpdateAppointmentStatus)

	r.Get("/transactions", h.ListTransactions)
	r.Put("/transactions/{id}", h.UpsertTransaction)

	r.Get("/settings", h.GetSettings)
	r.Put("/settings", h.UpdateSettings)

	return r
}

// UpdateProductStock handles a versioned stock change.
// PUT /api/products/{id}/stock
func (h *EntityHandler) UpdateProductStock(w http.ResponseWriter, r *http.Request) {
	store, claims, ok := h.tenantStore(w, r)
	if !ok {
		return
	}
	var body domain.StockUpdate
	if err := decodeBody(w, r, &body); err != nil {
		respondWithError(w, err)
		return
	}
	if body.Stock < 0 {
		respondWithError(w, &domain.ValidationError{Field: "stock", Reason: "must not be negative"})
		return
	}
	id := chi.URLParam(r, "id")
	product, err := store.UpdateProductStock(r.Context(), id, body.Stock, body.Version)
	if !h.settle(w, claims, "update product stock", err) {
		return
	}
	h.audit(r.Context(), claims, domain.AuditStockChanged, "products/"+id, map[string]int{"stock": product.Stock, "version": product.Version})
	respondWithJSON(w, http.StatusOK, product)
}

// UpdateAppointmentStatus moves an appointment along its status lattice.
// PUT /api/appointments/{id}/status
func (h *EntityHandler) UpdateAppointmentStatus(w http.ResponseWriter, r *http.Request) {
	store, claims, ok := h.tenantStore(w, r)
	if !ok {
		return
	}
	var body domain.AppointmentStatusUpdate
	if err := decodeBody(w, r, &body); err != nil {
		respondWithError(w, err)
		return
	}
	if !body.Status.Valid() {
		respondWithError(w, &domain.ValidationError{Field: "status", Reason: "is not a known appointment status"})
		return
	}
	appt, err := store.UpdateAppointmentStatus(r.Context(), chi.URLParam(r, "id"), body.Status, body.Version)
	if !h.settle(w, claims, "update appointment status", err) {
		return
	}
	respondWithJSON(w, http.StatusOK, appt)
}

// ListTransactions returns the tenant's sales, newest first.
// GET /api/transactions
func (h *EntityHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	store, claims, ok := h.tenantStore(w, r)
	if !ok {
		return
	}
	txs, err := store.ListTransactions(r.Context())
	if !h.settle(w, claims, "list transactions", err) {
		return
	}
	respondWithJSON(w, http.StatusOK, txs)
}

// UpsertTransaction records a sale or advances its status.
// PUT /api/transactions/{id}
func (h *EntityHandler) UpsertTransaction(w http.ResponseWriter, r *http.Request) {
	store, claims, ok := h.tenantStore(w, r)
	if !ok {
		return
	}
	var tx domain.Transaction
	if err := decodeBody(w, r, &tx); err != nil {
		respondWithError(w, err)
		return
	}
	if err := checkPathID(r, &tx.ID); err != nil {
		respondWithError(w, err)
		return
	}
	if err := checkTenant(claims, &tx.BusinessID); err != nil {
		respondWithError(w, err)
		return
	}
	if err := h.validator.ValidateTransaction(tx); err != nil {
		respondWithError(w, err)
		return
	}
	// Anything the service holds is synced by definition.
	tx.IsSynced = true
	saved, err := store.UpsertTransaction(r.Context(), tx)
	if !h.settle(w, claims, "upsert transaction", err) {
		return
	}
	h.audit(r.Context(), claims, domain.AuditSaleRecorded, "transactions/"+saved.ID, map[string]any{
		"status":           saved.Status,
		"total":            saved.Total,
		"paymentMethod":    saved.PaymentMethod,
		"mpesaPhoneNumber": saved.MpesaPhoneNumber,
	})
	respondWithJSON(w, http.StatusOK, saved)
}

// GetSettings returns the tenant's settings document.
// GET /api/settings
func (h *EntityHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	store, claims, ok := h.tenantStore(w, r)
	if !ok {
		return
	}
	settings, err := store.GetSettings(r.Context())
	if !h.settle(w, claims, "get settings", err) {
		return
	}
	respondWithJSON(w, http.StatusOK, settings)
}

// UpdateSettings applies a partial, versioned settings change.
// PUT /api/settings
func (h *EntityHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	store, claims, ok := h.tenantStore(w, r)
	if !ok {
		return
	}
	var body domain.SettingsUpdate
	if err := decodeBody(w, r, &body); err != nil {
		respondWithError(w, err)
		return
	}
	settings, err := store.UpdateSettings(r.Context(), body.SettingsPatch, body.Version)
	if !h.settle(w, claims, "update settings", err) {
		return
	}
	h.audit(r.Context(), claims, domain.AuditSettingsUpdated, "settings", body.SettingsPatch)
	respondWithJSON(w, http.StatusOK, settings)
}
