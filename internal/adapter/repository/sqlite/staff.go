package sqlite

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/V4T54L/barber-pos/internal/domain"
)

const staffColumns = `id, business_id, name, role, commission_rate, phone, email, avatar, username, password_hash, version`

func insertStaff(ctx context.Context, db execer, st domain.Staff) error {
	_, err := db.ExecContext(ctx, `INSERT INTO staff (`+staffColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.BusinessID, st.Name, st.Role, st.CommissionRate, st.Phone, st.Email, st.Avatar, st.Username, st.PasswordHash, st.Version)
	return mapErr(err)
}

func (s *Store) ListStaff(ctx context.Context) ([]domain.Staff, error) {
	out := make([]domain.Staff, 0)
	err := s.view(func() error {
		rows, err := s.db.QueryContext(ctx, `SELECT `+staffColumns+` FROM staff WHERE business_id = ? ORDER BY name, id`, s.businessID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var st domain.Staff
			if err := rows.Scan(&st.ID, &st.BusinessID, &st.Name, &st.Role, &st.CommissionRate, &st.Phone,
				&st.Email, &st.Avatar, &st.Username, &st.PasswordHash, &st.Version); err != nil {
				return err
			}
			out = append(out, st)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list staff: %w", err)
	}
	return out, nil
}

func (s *Store) AddStaff(ctx context.Context, st domain.Staff) (domain.Staff, error) {
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	st.BusinessID, st.Version = s.businessID, 1
	err := s.mutate(ctx, func() error { return insertStaff(ctx, s.db, st) })
	return st, err
}

func (s *Store) UpdateStaff(ctx context.Context, st domain.Staff) (domain.Staff, error) {
	expected := st.Version
	err := s.mutate(ctx, func() error {
		return s.casUpdate(ctx, "staff", st.ID, expected,
			`name = ?, role = ?, commission_rate = ?, phone = ?, email = ?, avatar = ?, username = ?, password_hash = ?`,
			st.Name, st.Role, st.CommissionRate, st.Phone, st.Email, st.Avatar, st.Username, st.PasswordHash)
	})
	if err != nil && !isPersistence(err) {
		return domain.Staff{}, err
	}
	st.BusinessID, st.Version = s.businessID, expected+1
	return st, err
}

func (s *Store) DeleteStaff(ctx context.Context, id string) error {
	return s.deleteRow(ctx, "staff", id)
}
