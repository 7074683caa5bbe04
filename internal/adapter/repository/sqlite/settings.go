package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/V4T54L/barber-pos/internal/domain"
)

// Settings are stored as one JSON document per tenant next to its version.

func insertSettings(ctx context.Context, db execer, st domain.Settings) error {
	content, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	_, err = db.ExecContext(ctx, `INSERT INTO settings (business_id, content, version) VALUES (?, ?, ?)`,
		st.BusinessID, string(content), st.Version)
	return mapErr(err)
}

func (s *Store) GetSettings(ctx context.Context) (domain.Settings, error) {
	var out domain.Settings
	err := s.view(func() error {
		var err error
		out, err = s.getSettings(ctx)
		return err
	})
	return out, err
}

func (s *Store) getSettings(ctx context.Context) (domain.Settings, error) {
	var (
		content string
		version int
	)
	err := s.db.QueryRowContext(ctx, `SELECT content, version FROM settings WHERE business_id = ?`, s.businessID).
		Scan(&content, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Settings{}, fmt.Errorf("%w: settings", domain.ErrNotFound)
	}
	if err != nil {
		return domain.Settings{}, fmt.Errorf("failed to read settings: %w", err)
	}
	var st domain.Settings
	if err := json.Unmarshal([]byte(content), &st); err != nil {
		return domain.Settings{}, fmt.Errorf("failed to decode settings: %w", err)
	}
	st.BusinessID, st.Version = s.businessID, version
	return st, nil
}

// UpdateSettings replaces the sections present in patch if the settings are
// still at expectedVersion.
func (s *Store) UpdateSettings(ctx context.Context, patch domain.SettingsPatch, expectedVersion int) (domain.Settings, error) {
	var out domain.Settings
	err := s.mutate(ctx, func() error {
		current, err := s.getSettings(ctx)
		if err != nil {
			return err
		}
		if current.Version != expectedVersion {
			return fmt.Errorf("%w: settings are at version %d, expected %d",
				domain.ErrVersionConflict, current.Version, expectedVersion)
		}
		next := patch.Apply(current)
		next.Version = expectedVersion + 1
		content, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to encode settings: %w", err)
		}
		res, err := s.db.ExecContext(ctx,
			`UPDATE settings SET content = ?, version = version + 1 WHERE business_id = ? AND version = ?`,
			string(content), s.businessID, expectedVersion)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return fmt.Errorf("%w: settings changed during update", domain.ErrVersionConflict)
		}
		out = next
		return nil
	})
	if err != nil && !isPersistence(err) {
		return domain.Settings{}, err
	}
	return out, err
}
