package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/barber-pos/internal/domain"
	"github.com/V4T54L/barber-pos/internal/domain/mocks"
)

// stallingStore fails the staff read and holds the transaction read until
// its context ends.
type stallingStore struct {
	*mocks.MockEntityStore
	released chan struct{}
}

func (s *stallingStore) ListStaff(ctx context.Context) ([]domain.Staff, error) {
	return nil, errOffline
}

func (s *stallingStore) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	<-ctx.Done()
	close(s.released)
	return nil, ctx.Err()
}

func TestPull(t *testing.T) {
	t.Run("reads every collection", func(t *testing.T) {
		store := mocks.NewMockEntityStore("shop-a")
		store.Products = []domain.Product{{ID: "p1", BusinessID: "shop-a", Name: "Pomade", Version: 1}}
		store.Settings = domain.Settings{BusinessID: "shop-a", Version: 3}

		v, err := pull(context.Background(), store)
		require.NoError(t, err)
		require.Len(t, v.products, 1)
		assert.Equal(t, 3, v.settings.Version)
		assert.Equal(t, 7, store.Lists)
	})

	t.Run("first failure cancels the rest", func(t *testing.T) {
		store := &stallingStore{MockEntityStore: mocks.NewMockEntityStore("shop-a"), released: make(chan struct{})}

		done := make(chan error, 1)
		go func() {
			_, err := pull(context.Background(), store)
			done <- err
		}()

		select {
		case err := <-done:
			assert.ErrorIs(t, err, domain.ErrServerUnreachable)
			assert.Contains(t, err.Error(), "staff:")
		case <-time.After(2 * time.Second):
			t.Fatal("pull did not return after a failed read")
		}
		select {
		case <-store.released:
		default:
			t.Error("stalled read was not cancelled")
		}
	})
}

func TestUpsertByID(t *testing.T) {
	id := func(p domain.Product) string { return p.ID }
	items := []domain.Product{{ID: "a", Stock: 1}, {ID: "b", Stock: 2}}

	got := upsertByID(items, domain.Product{ID: "b", Stock: 5}, id)
	require.Len(t, got, 2)
	assert.Equal(t, 5, got[1].Stock)
	assert.Equal(t, 2, items[1].Stock, "input is not modified")

	got = upsertByID(items, domain.Product{ID: "c"}, id)
	assert.Len(t, got, 3)
}
