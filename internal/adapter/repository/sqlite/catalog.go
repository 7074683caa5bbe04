package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/V4T54L/barber-pos/internal/domain"
)

const (
	serviceColumns = `id, business_id, name, price, duration, category, version`
	productColumns = `id, business_id, name, price, stock, category, version`
)

func insertService(ctx context.Context, db execer, sv domain.Service) error {
	_, err := db.ExecContext(ctx, `INSERT INTO services (`+serviceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sv.ID, sv.BusinessID, sv.Name, sv.Price, sv.Duration, sv.Category, sv.Version)
	return mapErr(err)
}

func insertProduct(ctx context.Context, db execer, p domain.Product) error {
	_, err := db.ExecContext(ctx, `INSERT INTO products (`+productColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.BusinessID, p.Name, p.Price, p.Stock, p.Category, p.Version)
	return mapErr(err)
}

func (s *Store) ListServices(ctx context.Context) ([]domain.Service, error) {
	out := make([]domain.Service, 0)
	err := s.view(func() error {
		rows, err := s.db.QueryContext(ctx, `SELECT `+serviceColumns+` FROM services WHERE business_id = ? ORDER BY name, id`, s.businessID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var sv domain.Service
			if err := rows.Scan(&sv.ID, &sv.BusinessID, &sv.Name, &sv.Price, &sv.Duration, &sv.Category, &sv.Version); err != nil {
				return err
			}
			out = append(out, sv)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	return out, nil
}

func (s *Store) AddService(ctx context.Context, sv domain.Service) (domain.Service, error) {
	if sv.ID == "" {
		sv.ID = uuid.NewString()
	}
	sv.BusinessID, sv.Version = s.businessID, 1
	err := s.mutate(ctx, func() error { return insertService(ctx, s.db, sv) })
	return sv, err
}

func (s *Store) UpdateService(ctx context.Context, sv domain.Service) (domain.Service, error) {
	expected := sv.Version
	err := s.mutate(ctx, func() error {
		return s.casUpdate(ctx, "services", sv.ID, expected,
			`name = ?, price = ?, duration = ?, category = ?`,
			sv.Name, sv.Price, sv.Duration, sv.Category)
	})
	if err != nil && !isPersistence(err) {
		return domain.Service{}, err
	}
	sv.BusinessID, sv.Version = s.businessID, expected+1
	return sv, err
}

func (s *Store) DeleteService(ctx context.Context, id string) error {
	return s.deleteRow(ctx, "services", id)
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	out := make([]domain.Product, 0)
	err := s.view(func() error {
		rows, err := s.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products WHERE business_id = ? ORDER BY name, id`, s.businessID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var p domain.Product
			if err := rows.Scan(&p.ID, &p.BusinessID, &p.Name, &p.Price, &p.Stock, &p.Category, &p.Version); err != nil {
				return err
			}
			out = append(out, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return out, nil
}

func (s *Store) AddProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Category == "" {
		p.Category = domain.ProductRetail
	}
	p.BusinessID, p.Version = s.businessID, 1
	err := s.mutate(ctx, func() error { return insertProduct(ctx, s.db, p) })
	return p, err
}

func (s *Store) UpdateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	expected := p.Version
	err := s.mutate(ctx, func() error {
		return s.casUpdate(ctx, "products", p.ID, expected,
			`name = ?, price = ?, stock = ?, category = ?`,
			p.Name, p.Price, p.Stock, p.Category)
	})
	if err != nil && !isPersistence(err) {
		return domain.Product{}, err
	}
	p.BusinessID, p.Version = s.businessID, expected+1
	return p, err
}

// UpdateProductStock sets the stock level if the product is still at
// expectedVersion.
func (s *Store) UpdateProductStock(ctx context.Context, id string, stock, expectedVersion int) (domain.Product, error) {
	var out domain.Product
	err := s.mutate(ctx, func() error {
		if err := s.casUpdate(ctx, "products", id, expectedVersion, `stock = ?`, stock); err != nil {
			return err
		}
		var err error
		out, err = s.getProduct(ctx, id)
		return err
	})
	if err != nil && !isPersistence(err) {
		return domain.Product{}, err
	}
	return out, err
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	return s.deleteRow(ctx, "products", id)
}

func (s *Store) getProduct(ctx context.Context, id string) (domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE business_id = ? AND id = ?`, s.businessID, id).
		Scan(&p.ID, &p.BusinessID, &p.Name, &p.Price, &p.Stock, &p.Category, &p.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("%w: product %s", domain.ErrNotFound, id)
	}
	return p, err
}
