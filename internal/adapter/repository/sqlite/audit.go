package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/V4T54L/barber-pos/internal/domain"
)

// AppendAudit adds an event to the bound tenant's trail. Events of other
// tenants are refused.
func (s *Store) AppendAudit(ctx context.Context, e domain.AuditEvent) error {
	if e.BusinessID != s.businessID {
		return fmt.Errorf("%w: audit event for %s in store of %s", domain.ErrTenantMismatch, e.BusinessID, s.businessID)
	}
	var details sql.NullString
	if len(e.Details) > 0 {
		details = sql.NullString{String: string(e.Details), Valid: true}
	}
	return s.mutate(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `INSERT INTO audit_logs
			(business_id, id, user_id, action, resource, details, pii_redacted, occurred_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			s.businessID, e.ID, e.UserID, e.Action, e.Resource, details, e.PIIRedacted, e.Timestamp.UnixMilli())
		return mapErr(err)
	})
}

// ListAudit returns the bound tenant's newest events first.
func (s *Store) ListAudit(ctx context.Context, businessID string, limit int) ([]domain.AuditEvent, error) {
	if businessID != s.businessID {
		return nil, fmt.Errorf("%w: audit trail of %s from store of %s", domain.ErrTenantMismatch, businessID, s.businessID)
	}
	out := make([]domain.AuditEvent, 0)
	err := s.view(func() error {
		rows, err := s.db.QueryContext(ctx, `SELECT id, user_id, action, resource, details, pii_redacted, occurred_at
			FROM audit_logs WHERE business_id = ? ORDER BY occurred_at DESC, rowid DESC LIMIT ?`, s.businessID, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				e       = domain.AuditEvent{BusinessID: s.businessID}
				details sql.NullString
				at      int64
			)
			if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.Resource, &details, &e.PIIRedacted, &at); err != nil {
				return err
			}
			if details.Valid {
				e.Details = []byte(details.String)
			}
			e.Timestamp = time.UnixMilli(at).UTC()
			out = append(out, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	return out, nil
}
