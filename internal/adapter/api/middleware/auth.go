package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/V4T54L/barber-pos/internal/domain"
	"github.com/V4T54L/barber-pos/internal/pkg/auth"
)

type claimsKey struct{}

// WithClaims returns a copy of ctx carrying the caller's credential.
func WithClaims(ctx context.Context, c *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFromContext returns the credential Auth attached to the request.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*auth.Claims)
	return c, ok && c != nil
}

// Auth is a middleware factory that returns a new authentication middleware.
// It checks for a valid bearer token and that the token's business is still
// allowed to use the service.
func Auth(secret string, tenants domain.TenantRepository, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || token == "" {
				logger.Warn("bearer token missing from request", "remote_addr", r.RemoteAddr)
				writeError(w, http.StatusUnauthorized, domain.CodeUnauthorized, "bearer token required")
				return
			}

			claims, err := auth.ValidateToken(token, secret)
			if err != nil {
				logger.Warn("invalid bearer token provided", "remote_addr", r.RemoteAddr, "error", err)
				writeError(w, http.StatusUnauthorized, domain.CodeUnauthorized, "invalid bearer token")
				return
			}

			noteTenant(r.Context(), claims.BusinessID)

			// Platform operators are not bound to a shop's standing.
			if claims.Role == domain.RoleSuperAdmin {
				next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
				return
			}

			active, err := tenants.IsActive(r.Context(), claims.BusinessID)
			if err != nil {
				logger.Error("failed to check business status", "error", err, "business_id", claims.BusinessID)
				writeError(w, http.StatusInternalServerError, domain.CodeInternal, "internal server error")
				return
			}
			if !active {
				logger.Warn("request from inactive business", "business_id", claims.BusinessID)
				writeError(w, http.StatusForbidden, domain.CodeTenantInactive, domain.ErrTenantInactive.Error())
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequireRole lets through only callers holding one of roles. It must run
// after Auth.
func RequireRole(logger *slog.Logger, roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, domain.CodeUnauthorized, "bearer token required")
				return
			}
			for _, role := range roles {
				if claims.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			logger.Warn("role not allowed", "role", claims.Role, "path", r.URL.Path, "business_id", claims.BusinessID)
			writeError(w, http.StatusForbidden, domain.CodeForbidden, domain.ErrForbidden.Error())
		})
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(domain.ErrorResponse{Error: msg, Code: code})
}
