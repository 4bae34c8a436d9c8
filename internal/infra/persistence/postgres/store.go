// Package postgres keeps the in-memory store durable in PostgreSQL, one
// JSONB row per snapshot bucket, through the pgx database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver

	"liderforte/internal/infra/persistence/memory"
	"liderforte/pkg/domain"
)

var _ domain.PersistentStore = (*Store)(nil)

// DefaultDSN is used when no DSN is configured.
const DefaultDSN = "postgres://localhost/liderforte?sslmode=disable"

const (
	driverName  = "pgx"
	createTable = `CREATE TABLE IF NOT EXISTS liderforte_state (
		bucket     TEXT PRIMARY KEY,
		payload    JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`
	selectState = `SELECT bucket, payload FROM liderforte_state`
	upsertState = `INSERT INTO liderforte_state(bucket, payload, updated_at) VALUES($1, $2, now())
		ON CONFLICT(bucket) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`
)

var (
	openMu  sync.Mutex
	sqlOpen = sql.Open
)

// SQLSTATE codes worth retrying.
var retryableCodes = map[string]struct{}{
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"55P03": {}, // lock_not_available
	"57014": {}, // query_canceled
}

// Store wraps the memory store and writes the buckets a commit changed in
// one Postgres transaction from the memory store's commit hook.
type Store struct {
	*memory.Store
	db    *sql.DB
	cache *memory.BucketCache
}

// NewStore connects, ensures the state table and hydrates the memory store.
func NewStore(ctx context.Context, dsn string, engine *domain.RulesEngine) (*Store, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(driverName, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	s := &Store{Store: memory.NewStore(engine), db: db, cache: memory.NewBucketCache()}
	if err := s.bootstrap(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.SetCommitHook(s.persist)
	return s, nil
}

func (s *Store) bootstrap(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return classify("ping", err)
	}
	if _, err := s.db.ExecContext(ctx, createTable); err != nil {
		return classify("create state table", err)
	}
	rows, err := s.db.QueryContext(ctx, selectState)
	if err != nil {
		return classify("select state", err)
	}
	defer func() { _ = rows.Close() }()

	var snapshot memory.Snapshot
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
	}
	if err := rows.Err(); err != nil {
		return classify("iterate state", err)
	}
	s.ImportState(snapshot)
	return nil
}

func (s *Store) persist(ctx context.Context, snapshot memory.Snapshot) error {
	changed, err := s.cache.Changed(snapshot)
	if err != nil || len(changed) == 0 {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin", err)
	}
	committed := false
	defer func() {
		if !committed {
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
	committed = true
	s.cache.Commit(changed)
	return nil
}

// classify maps transient failures to the retryable dependency kind and
// wraps everything else with the failing step.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	op = "postgres " + op
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if _, ok := retryableCodes[pgErr.Code]; ok {
			return domain.Unavailable(op, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || pgconn.Timeout(err) {
		return domain.Unavailable(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// DB exposes the pool for tests.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the pool.
func (s *Store) Close() error { return s.db.Close() }

// OverrideSQLOpen swaps the opener, typically for go-sqlmock, and returns
// the restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
