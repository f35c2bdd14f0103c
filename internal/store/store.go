// Package store provides transactional SQLite persistence for all taskctl
// entities and relations.
//
// The store is the single source of truth. Every mutation is serialised
// per-process behind a mutex, and every multi-row change that touches the
// state machine executes inside one SQL transaction so an external reader
// never observes a partial transition. Across invocations, an advisory file
// lock on the database path serialises writers.
//
// Failures surface as one of four wrapped sentinels: ErrNotFound,
// ErrConflict (unique/foreign key), ErrInvalidTransition (domain rule via
// internal/lifecycle), or ErrBackend (underlying storage error).
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/taskctl/taskctl/internal/clock"
	taskctlerrors "github.com/taskctl/taskctl/internal/errors"
	"github.com/taskctl/taskctl/internal/flock"
)

// Store wraps the SQLite database with per-process write serialisation.
type Store struct {
	db     *sql.DB
	mu     sync.Mutex
	clock  *clock.Monotonic
	logger zerolog.Logger

	lockFile *os.File // advisory cross-invocation lock; nil for in-memory stores
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for store operations.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithClock sets the timestamp source. Primarily for tests.
func WithClock(c clock.Clock) Option {
	return func(s *Store) {
		s.clock = clock.NewMonotonic(c)
	}
}

// Open opens (creating if necessary) the store at the given path, acquires
// the cross-invocation file lock, and applies pending migrations.
func Open(path string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create store directory: %w: %w", err, taskctlerrors.ErrBackend)
	}

	lockFile, err := acquireLock(path + ".lock")
	if err != nil {
		return nil, err
	}

	// foreign_keys enforces cascades; WAL keeps readers unblocked during
	// writes; busy_timeout covers the window between flock release and
	// connection close in a previous invocation.
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		releaseLock(lockFile)
		return nil, fmt.Errorf("open database: %w: %w", err, taskctlerrors.ErrBackend)
	}
	// A single connection sidesteps table-lock contention entirely; the
	// store serialises writes anyway.
	db.SetMaxOpenConns(1)

	s := &Store{
		db:       db,
		clock:    clock.NewMonotonic(nil),
		logger:   zerolog.Nop(),
		lockFile: lockFile,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := NewMigrator(db).Migrate(); err != nil {
		_ = db.Close()
		releaseLock(lockFile)
		return nil, err
	}

	s.logger.Debug().Str("path", path).Msg("store opened")
	return s, nil
}

// Close releases the database connection and the invocation lock.
func (s *Store) Close() error {
	err := s.db.Close()
	releaseLock(s.lockFile)
	if err != nil {
		return fmt.Errorf("close database: %w: %w", err, taskctlerrors.ErrBackend)
	}
	return nil
}

// acquireLock opens the lock file and takes an exclusive non-blocking lock.
func acquireLock(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600) //#nosec G304 -- path derives from the configured DB location
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w: %w", err, taskctlerrors.ErrBackend)
	}
	if err := flock.Exclusive(f.Fd()); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: another taskctl invocation holds the store lock", taskctlerrors.ErrConflict)
	}
	return f, nil
}

// releaseLock unlocks and closes the lock file if held.
func releaseLock(f *os.File) {
	if f == nil {
		return
	}
	_ = flock.Unlock(f.Fd())
	_ = f.Close()
}

// now returns the next monotonic timestamp for audit fields.
func (s *Store) now() time.Time {
	return s.clock.Now()
}

// stamp renders a time the way the store persists it.
func stamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// parseStamp reads a persisted timestamp, tolerating the zero value.
func parseStamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := clock.ParseStamp(s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// mapError translates driver errors into the store's sentinel taxonomy.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return taskctlerrors.ErrNotFound
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		if sqliteErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("%w: %s", taskctlerrors.ErrConflict, sqliteErr.Error())
		}
	}
	return fmt.Errorf("%w: %s", taskctlerrors.ErrBackend, err.Error())
}

// withTx runs fn inside a transaction under the process write lock,
// committing on success and rolling back on error.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapError(err)
	}
	return nil
}

// nullable converts an empty string into a SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullableInt converts a zero value into a SQL NULL.
func nullableInt(v int) any {
	if v == 0 {
		return nil
	}
	return v
}

// textOrEmpty unwraps a nullable text column.
func textOrEmpty(v sql.NullString) string {
	if v.Valid {
		return v.String
	}
	return ""
}

// intOrZero unwraps a nullable integer column.
func intOrZero(v sql.NullInt64) int {
	if v.Valid {
		return int(v.Int64)
	}
	return 0
}
