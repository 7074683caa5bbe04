package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/V4T54L/barber-pos/internal/domain"
)

// Store is the service's shared relational backend. ForTenant hands out a
// view bound to one business; every statement filters by it.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore creates a new PostgreSQL entity store.
func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger.With("component", "postgres_store")}
}

// ForTenant makes sure the business has a settings document and returns its
// store.
func (s *Store) ForTenant(ctx context.Context, businessID string) (domain.EntityStore, error) {
	content, err := json.Marshal(domain.Settings{BusinessID: businessID, Version: 1})
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO settings (business_id, content, version) VALUES ($1, $2, 1) ON CONFLICT (business_id) DO NOTHING`,
		businessID, content)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare tenant %s: %w", businessID, err)
	}
	return &tenantStore{db: s.db, businessID: businessID, logger: s.logger.With("business_id", businessID)}, nil
}

type tenantStore struct {
	db         *sql.DB
	businessID string
	logger     *slog.Logger
}

var _ domain.EntityStore = (*tenantStore)(nil)

type scanner interface {
	Scan(dest ...any) error
}

// casUpdate applies set only while the row is still at expected and bumps
// the version. set uses placeholders starting at $1; the key and version
// arguments follow them.
func (t *tenantStore) casUpdate(ctx context.Context, table, id string, expected int, set string, args ...any) error {
	n := len(args)
	q := fmt.Sprintf(`UPDATE %s SET %s, version = version + 1 WHERE business_id = $%d AND id = $%d AND version = $%d`,
		table, set, n+1, n+2, n+3)
	args = append(args, t.businessID, id, expected)
	res, err := t.db.ExecContext(ctx, q, args...)
	if err != nil {
		return mapErr(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}
	return t.missOrConflict(ctx, table, id, expected)
}

func (t *tenantStore) missOrConflict(ctx context.Context, table, id string, expected int) error {
	var current int
	q := fmt.Sprintf(`SELECT version FROM %s WHERE business_id = $1 AND id = $2`, table)
	err := t.db.QueryRowContext(ctx, q, t.businessID, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s %s", domain.ErrNotFound, table, id)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s %s is at version %d, expected %d", domain.ErrVersionConflict, table, id, current, expected)
}

func (t *tenantStore) deleteRow(ctx context.Context, table, id string) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE business_id = $1 AND id = $2`, table)
	if _, err := t.db.ExecContext(ctx, q, t.businessID, id); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	return nil
}

func list[T any](ctx context.Context, db *sql.DB, scan func(scanner) (T, error), query string, args ...any) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]T, 0)
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
