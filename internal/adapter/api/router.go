package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/V4T54L/barber-pos/internal/adapter/api/handler"
	"github.com/V4T54L/barber-pos/internal/adapter/api/middleware"
	"github.com/V4T54L/barber-pos/internal/adapter/metrics"
	"github.com/V4T54L/barber-pos/internal/domain"
	"github.com/V4T54L/barber-pos/internal/pkg/config"
)

// NewRouter creates and configures the main HTTP router of the service.
func NewRouter(
	cfg *config.ServerConfig,
	logger *slog.Logger,
	registry domain.BusinessRegistry,
	stores domain.TenantStoreFactory,
	trail domain.AuditLog,
	auditor handler.Auditor,
	m *metrics.ServerMetrics,
) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging(logger, m))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	entities := handler.NewEntityHandler(stores, auditor, logger, m)
	admin := handler.NewAdminHandler(registry, trail, auditor, logger)
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret, registry, logger))
		r.Route("/super", func(r chi.Router) {
			r.Use(middleware.RequireRole(logger, domain.RoleSuperAdmin))
			r.Mount("/", admin.SuperRoutes())
		})
		r.With(middleware.RequireRole(logger, domain.RoleOwner, domain.RoleManager)).Get("/audit-logs", admin.ListAudit)
		r.Mount("/", entities.Routes())
	})

	return r
}
