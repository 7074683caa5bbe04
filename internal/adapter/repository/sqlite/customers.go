package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/V4T54L/barber-pos/internal/domain"
)

const customerColumns = `id, business_id, name, phone, email, notes, join_date, version`

func insertCustomer(ctx context.Context, db execer, c domain.Customer) error {
	_, err := db.ExecContext(ctx, `INSERT INTO customers (`+customerColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.BusinessID, c.Name, c.Phone, c.Email, c.Notes, c.JoinDate, c.Version)
	return mapErr(err)
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	out := make([]domain.Customer, 0)
	err := s.view(func() error {
		rows, err := s.db.QueryContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE business_id = ? ORDER BY name, id`, s.businessID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var c domain.Customer
			if err := rows.Scan(&c.ID, &c.BusinessID, &c.Name, &c.Phone, &c.Email, &c.Notes, &c.JoinDate, &c.Version); err != nil {
				return err
			}
			out = append(out, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	return out, nil
}

func (s *Store) AddCustomer(ctx context.Context, c domain.Customer) (domain.Customer, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.JoinDate == "" {
		c.JoinDate = time.Now().UTC().Format(time.DateOnly)
	}
	c.BusinessID, c.Version = s.businessID, 1
	err := s.mutate(ctx, func() error { return insertCustomer(ctx, s.db, c) })
	return c, err
}

func (s *Store) UpdateCustomer(ctx context.Context, c domain.Customer) (domain.Customer, error) {
	expected := c.Version
	err := s.mutate(ctx, func() error {
		return s.casUpdate(ctx, "customers", c.ID, expected,
			`name = ?, phone = ?, email = ?, notes = ?, join_date = ?`,
			c.Name, c.Phone, c.Email, c.Notes, c.JoinDate)
	})
	if err != nil && !isPersistence(err) {
		return domain.Customer{}, err
	}
	c.BusinessID, c.Version = s.businessID, expected+1
	return c, err
}
