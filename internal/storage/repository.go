package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	createRollingTablesSQL = `CREATE TABLE IF NOT EXISTS rolling_tables (
        name       TEXT PRIMARY KEY,
        payload    BYTEA NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
    );`

	upsertBlobSQL = `INSERT INTO rolling_tables (
        name,
        payload,
        updated_at
    ) VALUES (
        $1,$2,now()
    )
    ON CONFLICT (name) DO UPDATE
    SET
        payload    = EXCLUDED.payload,
        updated_at = EXCLUDED.updated_at;`

	loadBlobSQL = `SELECT payload FROM rolling_tables WHERE name = $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// Store keeps rolling tables in PostgreSQL, one row per table name.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// EnsureSchema creates the rolling_tables relation when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, createRollingTablesSQL); execErr != nil {
		return fmt.Errorf("ensure schema: %w", execErr)
	}
	return nil
}

// Load reads the payload stored under name.
func (s *Store) Load(ctx context.Context, name string) ([]byte, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	var payload []byte
	if scanErr := pool.QueryRow(ctx, loadBlobSQL, name).Scan(&payload); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load %s: %w", name, scanErr)
	}
	return payload, nil
}

// Save upserts the payload for name. The single statement is atomic for
// concurrent readers.
func (s *Store) Save(ctx context.Context, name string, data []byte) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, upsertBlobSQL, name, data); execErr != nil {
		return fmt.Errorf("save %s: %w", name, execErr)
	}
	return nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// best effort; the session lock goes away with the connection anyway
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

var (
	_ BlobStore      = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)
