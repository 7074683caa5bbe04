package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/V4T54L/barber-pos/internal/domain"
)

const transactionColumns = `id, business_id, timestamp, items, total, payment_method, status, customer_id, customer_name,
	is_synced, payment_reference, mpesa_phone_number, mpesa_checkout_request_id, mpesa_receipt_number, metadata`

func (s *Store) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	out := make([]domain.Transaction, 0)
	err := s.view(func() error {
		rows, err := s.db.QueryContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE business_id = ? ORDER BY timestamp DESC, id`, s.businessID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			t, err := scanTransaction(rows)
			if err != nil {
				return err
			}
			out = append(out, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return out, nil
}

// UpsertTransaction inserts t or replaces the stored record with the same id.
func (s *Store) UpsertTransaction(ctx context.Context, t domain.Transaction) (domain.Transaction, error) {
	t.BusinessID = s.businessID
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now().UTC()
	}
	if t.Items == nil {
		t.Items = []domain.CartItem{}
	}
	items, err := json.Marshal(t.Items)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("failed to encode items: %w", err)
	}
	var metadata []byte
	if t.Metadata != nil {
		if metadata, err = json.Marshal(t.Metadata); err != nil {
			return domain.Transaction{}, fmt.Errorf("failed to encode metadata: %w", err)
		}
	}

	err = s.mutate(ctx, func() error {
		existing, err := s.getTransaction(ctx, t.ID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		var prev *domain.Transaction
		if err == nil {
			prev = &existing
		}
		if err := domain.CheckTransactionUpsert(prev, t); err != nil {
			return err
		}
		_, err = s.db.ExecContext(ctx, `INSERT INTO transactions (`+transactionColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (business_id, id) DO UPDATE SET
				timestamp = excluded.timestamp, items = excluded.items, total = excluded.total,
				payment_method = excluded.payment_method, status = excluded.status,
				customer_id = excluded.customer_id, customer_name = excluded.customer_name,
				is_synced = excluded.is_synced, payment_reference = excluded.payment_reference,
				mpesa_phone_number = excluded.mpesa_phone_number,
				mpesa_checkout_request_id = excluded.mpesa_checkout_request_id,
				mpesa_receipt_number = excluded.mpesa_receipt_number, metadata = excluded.metadata`,
			t.ID, t.BusinessID, t.Timestamp.UnixNano(), string(items), t.Total, t.PaymentMethod, t.Status,
			t.CustomerID, t.CustomerName, t.IsSynced, t.PaymentReference, t.MpesaPhoneNumber,
			t.MpesaCheckoutRequestID, t.MpesaReceiptNumber, string(metadata))
		return mapErr(err)
	})
	if err != nil && !isPersistence(err) {
		return domain.Transaction{}, err
	}
	return t, err
}

func (s *Store) getTransaction(ctx context.Context, id string) (domain.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE business_id = ? AND id = ?`, s.businessID, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Transaction{}, fmt.Errorf("%w: transaction %s", domain.ErrNotFound, id)
	}
	return t, err
}

func scanTransaction(r scanner) (domain.Transaction, error) {
	var (
		t        domain.Transaction
		ts       int64
		items    string
		metadata string
	)
	err := r.Scan(&t.ID, &t.BusinessID, &ts, &items, &t.Total, &t.PaymentMethod, &t.Status, &t.CustomerID,
		&t.CustomerName, &t.IsSynced, &t.PaymentReference, &t.MpesaPhoneNumber, &t.MpesaCheckoutRequestID,
		&t.MpesaReceiptNumber, &metadata)
	if err != nil {
		return domain.Transaction{}, err
	}
	t.Timestamp = time.Unix(0, ts).UTC()
	if err := json.Unmarshal([]byte(items), &t.Items); err != nil {
		return domain.Transaction{}, fmt.Errorf("failed to decode items of transaction %s: %w", t.ID, err)
	}
	if metadata != "" {
		t.Metadata = &domain.TransactionMetadata{}
		if err := json.Unmarshal([]byte(metadata), t.Metadata); err != nil {
			return domain.Transaction{}, fmt.Errorf("failed to decode metadata of transaction %s: %w", t.ID, err)
		}
	}
	return t, nil
}
