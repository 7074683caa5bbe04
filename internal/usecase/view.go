package usecase

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/V4T54L/barber-pos/internal/domain"
)

// view is the materialized state of one tenant as last read from a backend.
type view struct {
	staff        []domain.Staff
	services     []domain.Service
	products     []domain.Product
	customers    []domain.Customer
	appointments []domain.Appointment
	transactions []domain.Transaction
	settings     domain.Settings
}

// pull reads every collection from store concurrently. The first failure
// cancels the other reads and fails the whole pull, so a half-read view is
// never installed.
func pull(ctx context.Context, store domain.EntityStore) (view, error) {
	var v view
	g, ctx := errgroup.WithContext(ctx)
	read := func(name string, fn func() error) {
		g.Go(func() error {
			if err := fn(); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			return nil
		})
	}

	read("staff", func() (err error) { v.staff, err = store.ListStaff(ctx); return })
	read("services", func() (err error) { v.services, err = store.ListServices(ctx); return })
	read("products", func() (err error) { v.products, err = store.ListProducts(ctx); return })
	read("customers", func() (err error) { v.customers, err = store.ListCustomers(ctx); return })
	read("appointments", func() (err error) { v.appointments, err = store.ListAppointments(ctx); return })
	read("transactions", func() (err error) { v.transactions, err = store.ListTransactions(ctx); return })
	read("settings", func() (err error) { v.settings, err = store.GetSettings(ctx); return })

	if err := g.Wait(); err != nil {
		return view{}, err
	}
	return v, nil
}

// upsertByID replaces the element with item's id or appends item.
func upsertByID[T any](items []T, item T, id func(T) string) []T {
	out := make([]T, 0, len(items)+1)
	replaced := false
	for _, existing := range items {
		if id(existing) == id(item) {
			out = append(out, item)
			replaced = true
			continue
		}
		out = append(out, existing)
	}
	if !replaced {
		out = append(out, item)
	}
	return out
}

func removeByID[T any](items []T, target string, id func(T) string) []T {
	out := make([]T, 0, len(items))
	for _, existing := range items {
		if id(existing) != target {
			out = append(out, existing)
		}
	}
	return out
}

// upsertTransaction keeps the newest-first order: a new sale goes on top.
func upsertTransaction(items []domain.Transaction, t domain.Transaction) []domain.Transaction {
	for i, existing := range items {
		if existing.ID == t.ID {
			out := append([]domain.Transaction{}, items...)
			out[i] = t
			return out
		}
	}
	return append([]domain.Transaction{t}, items...)
}

func staffID(s domain.Staff) string             { return s.ID }
func serviceID(s domain.Service) string         { return s.ID }
func productID(p domain.Product) string         { return p.ID }
func customerID(c domain.Customer) string       { return c.ID }
func appointmentID(a domain.Appointment) string { return a.ID }
