package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/V4T54L/barber-pos/internal/adapter/api/middleware"
	"github.com/V4T54L/barber-pos/internal/domain"
	"github.com/V4T54L/barber-pos/internal/validation"
)

// AdminHandler serves platform provisioning to super admins and the audit
// trail to shop owners.
type AdminHandler struct {
	registry  domain.BusinessRegistry
	trail     domain.AuditLog
	auditor   Auditor
	validator *validation.Validator
	logger    *slog.Logger
}

// NewAdminHandler creates a new AdminHandler. auditor may be nil.
func NewAdminHandler(registry domain.BusinessRegistry, trail domain.AuditLog, auditor Auditor, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		registry:  registry,
		trail:     trail,
		auditor:   auditor,
		validator: validation.NewValidator(),
		logger:    logger.With("component", "admin_handler"),
	}
}

// SuperRoutes is mounted under /api/super.
func (h *AdminHandler) SuperRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/businesses", h.ListBusinesses)
	r.Put("/businesses/{id}", h.UpsertBusiness)
	r.Put("/businesses/{id}/status", h.SetBusinessStatus)
	return r
}

func (h *AdminHandler) ListBusinesses(w http.ResponseWriter, r *http.Request) {
	list, err := h.registry.ListBusinesses(r.Context())
	if err != nil {
		h.fail(w, "list businesses", err)
		return
	}
	respondWithJSON(w, http.StatusOK, list)
}

// UpsertBusiness provisions a shop, or renames it. A missing status means
// active.
func (h *AdminHandler) UpsertBusiness(w http.ResponseWriter, r *http.Request) {
	var b domain.Business
	if err := decodeBody(w, r, &b); err != nil {
		respondWithError(w, err)
		return
	}
	if err := checkPathID(r, &b.ID); err != nil {
		respondWithError(w, err)
		return
	}
	if b.Status == "" {
		b.Status = domain.BusinessActive
	}
	if err := h.validator.ValidateBusiness(b); err != nil {
		respondWithError(w, err)
		return
	}
	saved, err := h.registry.UpsertBusiness(r.Context(), b)
	if err != nil {
		h.fail(w, "upsert business", err)
		return
	}
	h.record(r, saved.ID, domain.AuditBusinessProvisioned, saved)
	respondWithJSON(w, http.StatusOK, saved)
}

func (h *AdminHandler) SetBusinessStatus(w http.ResponseWriter, r *http.Request) {
	var body domain.BusinessStatusUpdate
	if err := decodeBody(w, r, &body); err != nil {
		respondWithError(w, err)
		return
	}
	if !body.Status.Valid() {
		respondWithError(w, &domain.ValidationError{Field: "status", Reason: "must be active or suspended"})
		return
	}
	id := chi.URLParam(r, "id")
	saved, err := h.registry.SetBusinessStatus(r.Context(), id, body.Status)
	if err != nil {
		h.fail(w, "set business status", err)
		return
	}
	h.record(r, id, domain.AuditBusinessStatusChanged, body)
	respondWithJSON(w, http.StatusOK, saved)
}

// ListAudit returns the caller's shop trail, newest first. ?limit= caps it.
func (h *AdminHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		respondWithError(w, domain.ErrUnauthorized)
		return
	}
	limit := domain.DefaultAuditPage
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > domain.MaxAuditPage {
			respondWithError(w, &domain.ValidationError{Field: "limit", Reason: "must be between 1 and " + strconv.Itoa(domain.MaxAuditPage)})
			return
		}
		limit = n
	}
	events, err := h.trail.ListAudit(r.Context(), claims.BusinessID, limit)
	if err != nil {
		h.fail(w, "list audit", err)
		return
	}
	respondWithJSON(w, http.StatusOK, events)
}

// record audits a platform change against the shop it affected.
func (h *AdminHandler) record(r *http.Request, businessID, action string, details any) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if h.auditor == nil || !ok {
		return
	}
	if err := h.auditor.Record(r.Context(), businessID, claims.UserID, action, "businesses/"+businessID, details); err != nil {
		h.logger.Warn("failed to record audit event", "action", action, "business_id", businessID, "error", err)
	}
}

func (h *AdminHandler) fail(w http.ResponseWriter, op string, err error) {
	if status, _ := domain.HTTPStatus(err); status == http.StatusInternalServerError {
		h.logger.Error("request failed", "op", op, "error", err)
	}
	respondWithError(w, err)
}
