package snapshot

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS snapshots (
	id         TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	expires_at INTEGER NOT NULL DEFAULT 0,
	updated_at INTEGER NOT NULL
)`

// SQLiteBackend stores envelopes in a single SQLite table. Rows carry an
// expiry timestamp; expired rows are invisible and purged on open.
type SQLiteBackend struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// OpenSQLite opens (creating if needed) the database at path. A zero ttl
// keeps rows until deleted.
func OpenSQLite(ctx context.Context, path string, ttl time.Duration) (*SQLiteBackend, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create snapshot dir: %w", err)
		}
	}

	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serializes writers and keeps Swap's transaction honest.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create snapshots table: %w", err)
	}

	b := &SQLiteBackend{db: db, ttl: ttl, now: time.Now}
	if _, err := b.Purge(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

// Close closes the database.
func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}

func (s *SQLiteBackend) expiry() int64 {
	if s.ttl <= 0 {
		return 0
	}
	return s.now().Add(s.ttl).UnixNano()
}

const liveClause = "(expires_at = 0 OR expires_at > ?)"

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteBackend) upsert(ctx context.Context, ex execer, key, value string) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO snapshots (id, payload, expires_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, expires_at = excluded.expires_at, updated_at = excluded.updated_at`,
		key, value, s.expiry(), s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("upsert snapshot %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteBackend) Put(ctx context.Context, key, value string) error {
	return s.upsert(ctx, s.db, key, value)
}

func (s *SQLiteBackend) Get(ctx context.Context, key string) (string, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		"SELECT payload FROM snapshots WHERE id = ? AND "+liveClause,
		key, s.now().UnixNano()).Scan(&payload)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select snapshot %s: %w", key, err)
	}
	return payload, true, nil
}

func (s *SQLiteBackend) Delete(ctx context.Context, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM snapshots WHERE id = ? AND "+liveClause,
		key, s.now().UnixNano())
	if err != nil {
		return false, fmt.Errorf("delete snapshot %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete snapshot %s: %w", key, err)
	}
	return n > 0, nil
}

func (s *SQLiteBackend) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.Get(ctx, key)
	return ok, err
}

func (s *SQLiteBackend) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM snapshots WHERE "+liveClause, s.now().UnixNano()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}
	return n, nil
}

func (s *SQLiteBackend) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM snapshots WHERE "+liveClause+" ORDER BY id", s.now().UnixNano())
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan snapshot id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteBackend) Swap(ctx context.Context, key, old, value string) (swapped bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin swap %s: %w", key, err)
	}
	defer func() {
		if !swapped {
			_ = tx.Rollback()
		}
	}()

	var cur string
	err = tx.QueryRowContext(ctx,
		"SELECT payload FROM snapshots WHERE id = ? AND "+liveClause,
		key, s.now().UnixNano()).Scan(&cur)
	if err != nil && err != sql.ErrNoRows {
		return false, fmt.Errorf("select snapshot %s: %w", key, err)
	}
	if cur != old {
		return false, nil
	}
	if err := s.upsert(ctx, tx, key, value); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit swap %s: %w", key, err)
	}
	return true, nil
}

// Purge removes expired rows and reports how many were removed.
func (s *SQLiteBackend) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM snapshots WHERE expires_at != 0 AND expires_at <= ?", s.now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("purge snapshots: %w", err)
	}
	return res.RowsAffected()
}

var (
	_ Backend = (*SQLiteBackend)(nil)
	_ Counter = (*SQLiteBackend)(nil)
	_ Lister  = (*SQLiteBackend)(nil)
	_ Swapper = (*SQLiteBackend)(nil)
)
