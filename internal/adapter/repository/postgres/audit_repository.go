package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/V4T54L/barber-pos/internal/domain"
)

// AuditRepository is the audit trail tenants read back.
type AuditRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ domain.AuditLog = (*AuditRepository)(nil)

func NewAuditRepository(db *sql.DB, logger *slog.Logger) *AuditRepository {
	return &AuditRepository{db: db, logger: logger.With("component", "audit_repository")}
}

func (r *AuditRepository) AppendAudit(ctx context.Context, e domain.AuditEvent) error {
	var details any
	if len(e.Details) > 0 {
		details = string(e.Details)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, business_id, user_id, action, resource, details, pii_redacted, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.BusinessID, e.UserID, e.Action, e.Resource, details, e.PIIRedacted, e.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert audit event %s: %w", e.ID, err)
	}
	return nil
}

func (r *AuditRepository) ListAudit(ctx context.Context, businessID string, limit int) ([]domain.AuditEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, business_id, user_id, action, resource, details, pii_redacted, occurred_at
		FROM audit_logs WHERE business_id = $1
		ORDER BY occurred_at DESC, id DESC LIMIT $2`,
		businessID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	out := make([]domain.AuditEvent, 0)
	for rows.Next() {
		var (
			e       domain.AuditEvent
			details sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.BusinessID, &e.UserID, &e.Action, &e.Resource, &details, &e.PIIRedacted, &e.Timestamp); err != nil {
			return nil, err
		}
		if details.Valid {
			e.Details = []byte(details.String)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
