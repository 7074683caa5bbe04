package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"modernc.org/sqlite"

	"github.com/V4T54L/barber-pos/internal/adapter/metrics"
	"github.com/V4T54L/barber-pos/internal/adapter/repository/snapshot"
	"github.com/V4T54L/barber-pos/internal/domain"
)

// sqliteConstraint is the primary result code SQLITE_CONSTRAINT.
const sqliteConstraint = 19

// Config controls where a Store keeps its snapshot.
type Config struct {
	// BusinessID is the tenant the store is bound to for its whole life.
	BusinessID string

	// KeyPrefix namespaces the snapshot key, usually the device id. The
	// final key is "<prefix>.<businessID>".
	KeyPrefix string

	// ScratchDir holds the short-lived files used to move the database image
	// in and out of the engine. Defaults to os.TempDir().
	ScratchDir string
}

// Store is the embedded relational store. The engine lives in memory and
// every successful mutation is followed by a full snapshot written to the
// durable medium.
type Store struct {
	db         *sql.DB
	medium     domain.SnapshotMedium
	businessID string
	key        string
	scratchDir string
	logger     *slog.Logger
	metrics    *metrics.TerminalMetrics

	// mu serializes mutations with the snapshot that follows them.
	mu     sync.Mutex
	closed bool
}

var _ domain.LocalStore = (*Store)(nil)

// Open brings up the engine for one tenant: creates the schema, restores the
// last snapshot from medium if there is one, and seeds the default dataset
// when the tenant has never been seen on this medium. Failures are
// ErrStorageUnavailable.
func Open(ctx context.Context, cfg Config, medium domain.SnapshotMedium, logger *slog.Logger, m *metrics.TerminalMetrics) (*Store, error) {
	if cfg.BusinessID == "" {
		return nil, fmt.Errorf("%w: business id is required", domain.ErrStorageUnavailable)
	}
	if cfg.ScratchDir == "" {
		cfg.ScratchDir = os.TempDir()
	}
	if err := os.MkdirAll(cfg.ScratchDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: failed to create scratch dir: %v", domain.ErrStorageUnavailable, err)
	}
	key := cfg.BusinessID
	if cfg.KeyPrefix != "" {
		key = cfg.KeyPrefix + "." + cfg.BusinessID
	}

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open engine: %v", domain.ErrStorageUnavailable, err)
	}
	// An in-memory database lives and dies with its connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{
		db:         db,
		medium:     medium,
		businessID: cfg.BusinessID,
		key:        key,
		scratchDir: cfg.ScratchDir,
		logger:     logger.With("component", "embedded_store", "business_id", cfg.BusinessID),
		metrics:    m,
	}

	if err := s.init(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	data, err := s.medium.Load(ctx, s.key)
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}
	if data != nil {
		if err := s.restore(ctx, data); err != nil {
			return fmt.Errorf("failed to restore snapshot: %w", err)
		}
		s.logger.Info("restored snapshot", "bytes", len(data))
	}

	seeded, err := s.hasSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to inspect store: %w", err)
	}
	if seeded {
		return nil
	}
	if err := s.seedTenant(ctx); err != nil {
		return err
	}
	if err := s.persistLocked(ctx); err != nil {
		// The seed is in memory; the next successful mutation persists it.
		s.logger.Warn("failed to persist seeded store", "error", err)
	}
	return nil
}

// BusinessID returns the tenant this store is bound to.
func (s *Store) BusinessID() string { return s.businessID }

// Flush writes a snapshot of the current state.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrStorageUnavailable
	}
	return s.persistLocked(ctx)
}

// Close releases the engine. It does not flush; every mutation has already
// been persisted, or reported a PersistenceError.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// mutate runs fn and then persists. A failure in fn leaves nothing to
// persist; a persistence failure after a successful fn is returned as a
// PersistenceError and the in-memory change stands.
func (s *Store) mutate(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrStorageUnavailable
	}
	if err := fn(); err != nil {
		return err
	}
	return s.persistLocked(ctx)
}

func (s *Store) persistLocked(ctx context.Context) error {
	start := time.Now()

	raw, err := s.serialize(ctx)
	if err != nil {
		s.logger.Error("failed to serialize store", "error", err)
		return &domain.PersistenceError{Err: err}
	}
	data := snapshot.Encode(raw)
	if err := s.medium.Save(ctx, s.key, data); err != nil {
		s.logger.Error("failed to save snapshot", "error", err)
		return &domain.PersistenceError{Err: err}
	}

	if s.metrics != nil {
		s.metrics.SnapshotBytes.Set(float64(len(data)))
		s.metrics.SnapshotPersistSeconds.Observe(time.Since(start).Seconds())
	}
	return nil
}

// serialize produces a standalone database image of the engine.
func (s *Store) serialize(ctx context.Context) ([]byte, error) {
	path, err := s.scratchPath()
	if err != nil {
		return nil, err
	}
	defer os.Remove(path)

	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return nil, fmt.Errorf("failed to export database image: %w", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read database image: %w", err)
	}
	return raw, nil
}

// restore copies the bound tenant's rows out of a snapshot image.
func (s *Store) restore(ctx context.Context, data []byte) error {
	raw, err := snapshot.Decode(data)
	if err != nil {
		return err
	}
	path, err := s.scratchPath()
	if err != nil {
		return err
	}
	defer os.Remove(path)
	if err := os.WriteFile(path, raw, 0600); err != nil {
		return fmt.Errorf("failed to stage database image: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `ATTACH DATABASE ? AS snap`, path); err != nil {
		return fmt.Errorf("failed to attach database image: %w", err)
	}
	defer func() {
		if _, err := s.db.ExecContext(context.Background(), `DETACH DATABASE snap`); err != nil {
			s.logger.Warn("failed to detach snapshot", "error", err)
		}
	}()

	for _, tc := range tableColumns {
		// Images written before a table existed simply lack it.
		var present int
		if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM snap.sqlite_master WHERE type = 'table' AND name = ?`, tc.table).Scan(&present); err != nil {
			return fmt.Errorf("failed to inspect database image: %w", err)
		}
		if present == 0 {
			continue
		}
		q := fmt.Sprintf(`INSERT OR REPLACE INTO main.%[1]s (%[2]s) SELECT %[2]s FROM snap.%[1]s WHERE business_id = ?`,
			tc.table, tc.columns)
		if _, err := s.db.ExecContext(ctx, q, s.businessID); err != nil {
			return fmt.Errorf("failed to restore table %s: %w", tc.table, err)
		}
	}
	return nil
}

// scratchPath reserves a fresh file name in the scratch directory.
// VACUUM INTO needs the target to be absent or empty.
func (s *Store) scratchPath() (string, error) {
	f, err := os.CreateTemp(s.scratchDir, "barber-pos-*.db")
	if err != nil {
		return "", fmt.Errorf("failed to create scratch file: %w", err)
	}
	path := f.Name()
	f.Close()
	if err := os.Remove(path); err != nil {
		return "", fmt.Errorf("failed to clear scratch file: %w", err)
	}
	return path, nil
}

// mapErr translates engine errors into the domain taxonomy.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var serr *sqlite.Error
	if errors.As(err, &serr) && serr.Code()&0xff == sqliteConstraint {
		return fmt.Errorf("%w: %v", domain.ErrConstraintViolation, err)
	}
	return err
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// casUpdate applies set to one row only if its version still equals expected,
// and bumps the version. It tells a missing row from a stale version.
func (s *Store) casUpdate(ctx context.Context, table, id string, expected int, set string, args ...any) error {
	q := fmt.Sprintf(`UPDATE %s SET %s, version = version + 1 WHERE business_id = ? AND id = ? AND version = ?`, table, set)
	args = append(args, s.businessID, id, expected)
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	return s.missOrConflict(ctx, table, id, expected)
}

func (s *Store) missOrConflict(ctx context.Context, table, id string, expected int) error {
	var current int
	q := fmt.Sprintf(`SELECT version FROM %s WHERE business_id = ? AND id = ?`, table)
	err := s.db.QueryRowContext(ctx, q, s.businessID, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s %s", domain.ErrNotFound, table, id)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s %s is at version %d, expected %d", domain.ErrVersionConflict, table, id, current, expected)
}

// deleteRow is idempotent: a missing row is not an error and does not
// trigger a snapshot.
func (s *Store) deleteRow(ctx context.Context, table, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrStorageUnavailable
	}
	q := fmt.Sprintf(`DELETE FROM %s WHERE business_id = ? AND id = ?`, table)
	res, err := s.db.ExecContext(ctx, q, s.businessID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}
	return s.persistLocked(ctx)
}

// view runs a read under the store lock so it never races Close.
func (s *Store) view(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrStorageUnavailable
	}
	return fn()
}

// isPersistence reports a write that took effect but was not saved.
func isPersistence(err error) bool {
	return errors.Is(err, domain.ErrPersistence)
}
