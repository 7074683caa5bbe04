package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/V4T54L/barber-pos/internal/domain"
)

//go:embed seed.yaml
var seedYAML []byte

type seedData struct {
	Staff     []domain.Staff    `yaml:"staff"`
	Services  []domain.Service  `yaml:"services"`
	Products  []domain.Product  `yaml:"products"`
	Customers []domain.Customer `yaml:"customers"`
	Settings  domain.Settings   `yaml:"settings"`
}

func loadSeed() (*seedData, error) {
	var seed seedData
	if err := yaml.Unmarshal(seedYAML, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed data: %w", err)
	}
	return &seed, nil
}

// seedTenant writes the default dataset for the bound tenant in one
// transaction. Callers hold s.mu.
func (s *Store) seedTenant(ctx context.Context) error {
	seed, err := loadSeed()
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin seed transaction: %w", err)
	}
	defer tx.Rollback()

	for _, st := range seed.Staff {
		st.BusinessID, st.Version = s.businessID, 1
		if err := insertStaff(ctx, tx, st); err != nil {
			return fmt.Errorf("failed to seed staff %s: %w", st.ID, err)
		}
	}
	for _, sv := range seed.Services {
		sv.BusinessID, sv.Version = s.businessID, 1
		if err := insertService(ctx, tx, sv); err != nil {
			return fmt.Errorf("failed to seed service %s: %w", sv.ID, err)
		}
	}
	for _, p := range seed.Products {
		p.BusinessID, p.Version = s.businessID, 1
		if err := insertProduct(ctx, tx, p); err != nil {
			return fmt.Errorf("failed to seed product %s: %w", p.ID, err)
		}
	}
	for _, c := range seed.Customers {
		c.BusinessID, c.Version = s.businessID, 1
		if err := insertCustomer(ctx, tx, c); err != nil {
			return fmt.Errorf("failed to seed customer %s: %w", c.ID, err)
		}
	}
	settings := seed.Settings
	settings.BusinessID, settings.Version = s.businessID, 1
	if err := insertSettings(ctx, tx, settings); err != nil {
		return fmt.Errorf("failed to seed settings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seed: %w", err)
	}
	s.logger.Info("seeded default dataset", "business_id", s.businessID)
	return nil
}

func (s *Store) hasSettings(ctx context.Context) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM settings WHERE business_id = ?)`, s.businessID).Scan(&exists)
	if err != nil && err != sql.ErrNoRows {
		return false, err
	}
	return exists, nil
}
