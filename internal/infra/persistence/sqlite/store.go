// Package sqlite keeps the in-memory store durable in an embedded SQLite
// file, one JSON row per snapshot bucket.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"liderforte/internal/infra/persistence/memory"
	"liderforte/pkg/domain"
)

var _ domain.PersistentStore = (*Store)(nil)

// DefaultPath is used when no database path is configured.
const DefaultPath = "liderforte.db"

const (
	pragmas = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(on)"

	createTable = `CREATE TABLE IF NOT EXISTS liderforte_state (
		bucket     TEXT PRIMARY KEY,
		payload    BLOB NOT NULL,
		updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`
	selectState = `SELECT bucket, payload FROM liderforte_state`
	upsertState = `INSERT INTO liderforte_state(bucket, payload, updated_at) VALUES(?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(bucket) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`
)

// Store wraps the memory store and writes the buckets a commit changed
// inside the memory store's commit hook. A failed write leaves the previous
// in-memory state in place.
type Store struct {
	*memory.Store
	db    *sql.DB
	path  string
	cache *memory.BucketCache
}

// NewStore opens (or creates) the database at path and hydrates the memory
// store from it.
func NewStore(path string, engine *domain.RulesEngine) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	db, err := sql.Open("sqlite", path+pragmas)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if _, err := db.Exec(createTable); err != nil {
		_ = db.Close()
		return nil, classify("create state table", err)
	}
	s := &Store{Store: memory.NewStore(engine), db: db, path: path, cache: memory.NewBucketCache()}
	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.SetCommitHook(s.persist)
	return s, nil
}

func (s *Store) load() error {
	rows, err := s.db.Query(selectState)
	if err != nil {
		return classify("select state", err)
	}
	defer func() { _ = rows.Close() }()
	var snapshot memory.Snapshot
	found := false
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return fmt.Errorf("scan state: %w", err)
		}
		if err := snapshot.DecodeBucket(bucket, payload); err != nil {
			return err
		}
		s.cache.Remember(bucket, payload)
		found = true
	}
	if err := rows.Err(); err != nil {
		return classify("iterate state", err)
	}
	if found {
		s.ImportState(snapshot)
	}
	return nil
}

func (s *Store) persist(ctx context.Context, snapshot memory.Snapshot) (retErr error) {
	changed, err := s.cache.Changed(snapshot)
	if err != nil || len(changed) == 0 {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Unavailable("sqlite persist", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, p := range changed {
		if _, err := tx.ExecContext(ctx, upsertState, p.Bucket, p.Data); err != nil {
			return classify("upsert "+p.Bucket, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return classify("commit", err)
	}
	s.cache.Commit(changed)
	return nil
}

// classify marks lock contention and cancellation as retryable.
func classify(op string, err error) error {
	var se *msqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return domain.Unavailable("sqlite "+op, err)
		}
		return fmt.Errorf("sqlite %s: %w", op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, sql.ErrConnDone) {
		return domain.Unavailable("sqlite "+op, err)
	}
	return fmt.Errorf("sqlite %s: %w", op, err)
}

// DB exposes the handle for tests.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }
