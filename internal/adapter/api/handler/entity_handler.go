package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/V4T54L/barber-pos/internal/adapter/api/middleware"
	"github.com/V4T54L/barber-pos/internal/adapter/metrics"
	"github.com/V4T54L/barber-pos/internal/domain"
	"github.com/V4T54L/barber-pos/internal/pkg/auth"
	"github.com/V4T54L/barber-pos/internal/validation"
)

// Auditor records privileged changes. It is satisfied by
// *usecase.AuditRecorder.
type Auditor interface {
	Record(ctx context.Context, businessID, userID, action, resource string, details any) error
}

// EntityHandler serves the tenant-scoped entity API. Every request acts on the
// store of the business named in its bearer token.
type EntityHandler struct {
	stores    domain.TenantStoreFactory
	auditor   Auditor
	validator *validation.Validator
	logger    *slog.Logger
	metrics   *metrics.ServerMetrics
}

// NewEntityHandler creates a new EntityHandler. auditor and m may be nil.
func NewEntityHandler(stores domain.TenantStoreFactory, auditor Auditor, logger *slog.Logger, m *metrics.ServerMetrics) *EntityHandler {
	return &EntityHandler{
		stores:    stores,
		auditor:   auditor,
		validator: validation.NewValidator(),
		logger:    logger.With("component", "entity_handler"),
		metrics:   m,
	}
}

// tenantStore resolves the caller's store, writing the error response itself
// when it cannot.
func (h *EntityHandler) tenantStore(w http.ResponseWriter, r *http.Request) (domain.EntityStore, *auth.Claims, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		respondWithError(w, domain.ErrUnauthorized)
		return nil, nil, false
	}
	store, err := h.stores.ForTenant(r.Context(), claims.BusinessID)
	if err != nil {
		h.logger.Error("failed to open tenant store", "error", err, "business_id", claims.BusinessID)
		respondWithError(w, err)
		return nil, nil, false
	}
	return store, claims, true
}

// settle decides what a store error means for the response. A write that
// landed but could not be snapshotted is still a success.
func (h *EntityHandler) settle(w http.ResponseWriter, claims *auth.Claims, op string, err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, domain.ErrPersistence) {
		h.logger.Warn("write applied but not persisted", "op", op, "business_id", claims.BusinessID, "error", err)
		return true
	}
	if errors.Is(err, domain.ErrVersionConflict) && h.metrics != nil {
		h.metrics.VersionConflicts.Inc()
	}
	status, _ := domain.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "op", op, "business_id", claims.BusinessID, "error", err)
	} else {
		h.logger.Debug("request rejected", "op", op, "business_id", claims.BusinessID, "error", err)
	}
	respondWithError(w, err)
	return false
}

func (h *EntityHandler) audit(ctx context.Context, claims *auth.Claims, action, resource string, details any) {
	if h.auditor == nil || action == "" {
		return
	}
	if err := h.auditor.Record(ctx, claims.BusinessID, claims.UserID, action, resource, details); err != nil {
		// The change is committed; a lost audit entry must not fail it.
		h.logger.Warn("failed to record audit event", "action", action, "resource", resource, "error", err)
	}
}

// checkTenant stamps an unset business id and refuses a foreign one.
func checkTenant(claims *auth.Claims, businessID *string) error {
	if *businessID != "" && *businessID != claims.BusinessID {
		return fmt.Errorf("%w: payload names business %q", domain.ErrTenantMismatch, *businessID)
	}
	*businessID = claims.BusinessID
	return nil
}

// checkPathID fills an empty body id from the URL and rejects a disagreeing one.
func checkPathID(r *http.Request, id *string) error {
	pathID := chi.URLParam(r, "id")
	if *id == "" {
		*id = pathID
	}
	if *id != pathID {
		return &domain.ValidationError{Field: "id", Reason: "does not match the URL"}
	}
	return nil
}

// resource describes one entity collection for the generic handlers.
type resource[T any] struct {
	name      string
	addAction string
	delAction string
	fields    func(*T) (id, businessID *string)
	validate  func(T) error
}

func listHandler[T any](h *EntityHandler, res resource[T], list func(domain.EntityStore, context.Context) ([]T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, claims, ok := h.tenantStore(w, r)
		if !ok {
			return
		}
		items, err := list(store, r.Context())
		if !h.settle(w, claims, "list "+res.name, err) {
			return
		}
		respondWithJSON(w, http.StatusOK, items)
	}
}

func createHandler[T any](h *EntityHandler, res resource[T], add func(domain.EntityStore, context.Context, T) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, claims, ok := h.tenantStore(w, r)
		if !ok {
			return
		}
		var item T
		if err := decodeBody(w, r, &item); err != nil {
			respondWithError(w, err)
			return
		}
		_, businessID := res.fields(&item)
		if err := checkTenant(claims, businessID); err != nil {
			respondWithError(w, err)
			return
		}
		if err := res.validate(item); err != nil {
			respondWithError(w, err)
			return
		}
		created, err := add(store, r.Context(), item)
		if !h.settle(w, claims, "add "+res.name, err) {
			return
		}
		newID, _ := res.fields(&created)
		h.audit(r.Context(), claims, res.addAction, res.name+"/"+*newID, created)
		respondWithJSON(w, http.StatusCreated, created)
	}
}

func updateHandler[T any](h *EntityHandler, res resource[T], update func(domain.EntityStore, context.Context, T) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, claims, ok := h.tenantStore(w, r)
		if !ok {
			return
		}
		var item T
		if err := decodeBody(w, r, &item); err != nil {
			respondWithError(w, err)
			return
		}
		id, businessID := res.fields(&item)
		if err := checkPathID(r, id); err != nil {
			respondWithError(w, err)
			return
		}
		if err := checkTenant(claims, businessID); err != nil {
			respondWithError(w, err)
			return
		}
		if err := res.validate(item); err != nil {
			respondWithError(w, err)
			return
		}
		updated, err := update(store, r.Context(), item)
		if !h.settle(w, claims, "update "+res.name, err) {
			return
		}
		respondWithJSON(w, http.StatusOK, updated)
	}
}

func deleteHandler[T any](h *EntityHandler, res resource[T], del func(domain.EntityStore, context.Context, string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, claims, ok := h.tenantStore(w, r)
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")
		if !h.settle(w, claims, "delete "+res.name, del(store, r.Context(), id)) {
			return
		}
		h.audit(r.Context(), claims, res.delAction, res.name+"/"+id, nil)
		w.WriteHeader(http.StatusNoContent)
	}
}
