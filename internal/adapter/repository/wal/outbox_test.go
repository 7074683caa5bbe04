package wal

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/barber-pos/internal/domain"
)

func newOutbox(t *testing.T, dir string, maxSegmentSize, maxTotalSize int64) *Outbox {
	t.Helper()
	o, err := NewOutbox(dir, maxSegmentSize, maxTotalSize, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { o.Close() })
	return o
}

func sale(id string, status domain.TransactionStatus) domain.Transaction {
	return domain.Transaction{ID: id, BusinessID: "shop-a", PaymentMethod: domain.PaymentCash, Status: status, Total: 500}
}

func writeAll(t *testing.T, o *Outbox, sales ...domain.Transaction) {
	t.Helper()
	for _, s := range sales {
		require.NoError(t, o.Write(context.Background(), s))
	}
}

func replayAll(t *testing.T, o *Outbox) []domain.Transaction {
	t.Helper()
	var got []domain.Transaction
	require.NoError(t, o.Replay(context.Background(), func(t domain.Transaction) error {
		got = append(got, t)
		return nil
	}))
	return got
}

func TestOutbox_WriteAndReplayAfterRestart(t *testing.T) {
	dir := t.TempDir()
	o := newOutbox(t, dir, 1024, 10*1024)

	sales := []domain.Transaction{
		sale(uuid.NewString(), domain.TransactionCompleted),
		sale(uuid.NewString(), domain.TransactionPending),
		sale(uuid.NewString(), domain.TransactionCompleted),
	}
	writeAll(t, o, sales...)
	require.NoError(t, o.Close())

	got := replayAll(t, newOutbox(t, dir, 1024, 10*1024))
	require.Len(t, got, len(sales))
	for i, s := range sales {
		assert.Equal(t, s.ID, got[i].ID, "entry %d", i)
		assert.Equal(t, s.Status, got[i].Status, "entry %d", i)
	}
}

func TestOutbox_ReplayHandsOverEveryStateInWriteOrder(t *testing.T) {
	o := newOutbox(t, t.TempDir(), 1024, 10*1024)

	writeAll(t, o,
		sale("tx-1", domain.TransactionCompleted),
		sale("tx-2", domain.TransactionPending),
		sale("tx-1", domain.TransactionRefunded),
		sale("tx-2", domain.TransactionFailed),
	)

	got := replayAll(t, o)
	type entry struct {
		id     string
		status domain.TransactionStatus
	}
	var seq []entry
	for _, tx := range got {
		seq = append(seq, entry{tx.ID, tx.Status})
	}
	assert.Equal(t, []entry{
		{"tx-1", domain.TransactionCompleted},
		{"tx-2", domain.TransactionPending},
		{"tx-1", domain.TransactionRefunded},
		{"tx-2", domain.TransactionFailed},
	}, seq)
}

func TestOutbox_ReplayStopsOnHandlerError(t *testing.T) {
	o := newOutbox(t, t.TempDir(), 1024, 10*1024)
	writeAll(t, o, sale("tx-1", domain.TransactionCompleted), sale("tx-2", domain.TransactionCompleted))

	calls := 0
	err := o.Replay(context.Background(), func(t domain.Transaction) error {
		calls++
		return domain.ErrServerUnreachable
	})
	assert.ErrorIs(t, err, domain.ErrServerUnreachable)
	assert.Equal(t, 1, calls)

	// Nothing was consumed.
	assert.Len(t, replayAll(t, o), 2)
}

func TestOutbox_SkipsTornEntry(t *testing.T) {
	dir := t.TempDir()
	o := newOutbox(t, dir, 1024, 10*1024)
	writeAll(t, o, sale("tx-1", domain.TransactionCompleted))

	segs, err := o.segments()
	require.NoError(t, err)
	require.Len(t, segs, 1)
	f, err := os.OpenFile(segs[0].path, os.O_APPEND|os.O_WRONLY, filePerm)
	require.NoError(t, err)
	_, err = f.WriteString(`{"id":"tx-2","sta`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	got := replayAll(t, o)
	require.Len(t, got, 1)
	assert.Equal(t, "tx-1", got[0].ID)
}

func TestOutbox_SegmentRotation(t *testing.T) {
	o := newOutbox(t, t.TempDir(), 100, 10*1024)

	s := sale(uuid.NewString(), domain.TransactionCompleted)
	b, err := json.Marshal(s)
	require.NoError(t, err)
	writes := 100/len(b) + 2
	for i := 0; i < writes; i++ {
		writeAll(t, o, s)
	}

	segs, err := o.segments()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(segs), 2)
	assert.Len(t, replayAll(t, o), writes)
}

func TestOutbox_Truncate(t *testing.T) {
	dir := t.TempDir()
	o := newOutbox(t, dir, 1024, 1024)
	writeAll(t, o, sale("tx-1", domain.TransactionCompleted))

	require.NoError(t, o.Truncate(context.Background()))

	segs, err := o.segments()
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Zero(t, segs[0].size)
	assert.Empty(t, replayAll(t, o))

	// The journal stays writable after a truncate.
	writeAll(t, o, sale("tx-2", domain.TransactionCompleted))
	got := replayAll(t, o)
	require.Len(t, got, 1)
	assert.Equal(t, "tx-2", got[0].ID)
	assert.Equal(t, dir, filepath.Dir(segs[0].path))
}

func TestOutbox_MaxTotalSize(t *testing.T) {
	o := newOutbox(t, t.TempDir(), 100, 150)

	var err error
	for i := 0; i < 5 && err == nil; i++ {
		err = o.Write(context.Background(), sale(uuid.NewString(), domain.TransactionCompleted))
	}
	assert.True(t, errors.Is(err, ErrOutboxFull), "got %v", err)
}
