package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/V4T54L/barber-pos/internal/domain"
)

const appointmentColumns = `id, business_id, customer_name, customer_phone, service_id, staff_id, date, status, version`

func (s *Store) ListAppointments(ctx context.Context) ([]domain.Appointment, error) {
	out := make([]domain.Appointment, 0)
	err := s.view(func() error {
		rows, err := s.db.QueryContext(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE business_id = ? ORDER BY date, id`, s.businessID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			a, err := scanAppointment(rows)
			if err != nil {
				return err
			}
			out = append(out, a)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return out, nil
}

func (s *Store) AddAppointment(ctx context.Context, a domain.Appointment) (domain.Appointment, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = domain.AppointmentScheduled
	}
	a.BusinessID, a.Version = s.businessID, 1
	err := s.mutate(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `INSERT INTO appointments (`+appointmentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.BusinessID, a.CustomerName, a.CustomerPhone, a.ServiceID, a.StaffID, a.Date, a.Status, a.Version)
		return mapErr(err)
	})
	return a, err
}

// UpdateAppointmentStatus checks the version first, then the status lattice.
func (s *Store) UpdateAppointmentStatus(ctx context.Context, id string, status domain.AppointmentStatus, expectedVersion int) (domain.Appointment, error) {
	var out domain.Appointment
	err := s.mutate(ctx, func() error {
		current, err := s.getAppointment(ctx, id)
		if err != nil {
			return err
		}
		if current.Version != expectedVersion {
			return fmt.Errorf("%w: appointment %s is at version %d, expected %d",
				domain.ErrVersionConflict, id, current.Version, expectedVersion)
		}
		if err := domain.CheckAppointmentTransition(current.Status, status); err != nil {
			return err
		}
		if err := s.casUpdate(ctx, "appointments", id, expectedVersion, `status = ?`, status); err != nil {
			return err
		}
		current.Status, current.Version = status, expectedVersion+1
		out = current
		return nil
	})
	if err != nil && !isPersistence(err) {
		return domain.Appointment{}, err
	}
	return out, err
}

func (s *Store) getAppointment(ctx context.Context, id string) (domain.Appointment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE business_id = ? AND id = ?`, s.businessID, id)
	a, err := scanAppointment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Appointment{}, fmt.Errorf("%w: appointment %s", domain.ErrNotFound, id)
	}
	return a, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAppointment(r scanner) (domain.Appointment, error) {
	var a domain.Appointment
	err := r.Scan(&a.ID, &a.BusinessID, &a.CustomerName, &a.CustomerPhone, &a.ServiceID, &a.StaffID, &a.Date, &a.Status, &a.Version)
	return a, err
}
