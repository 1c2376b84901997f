package store

import (
	"context"
	"database/sql"
	"errors"

	_ "modernc.org/sqlite"
)

// SQLiteKV persists values in a single SQLite table.
type SQLiteKV struct {
	db    *sql.DB
	retry RetryConfig
}

// OpenSQLite opens/creates a SQLite database and runs migrations.
func OpenSQLite(path string) (*SQLiteKV, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, err
	}
	s := &SQLiteKV{db: db, retry: DefaultRetryConfig()}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database handle.
func (s *SQLiteKV) Close() error { return s.db.Close() }

func (s *SQLiteKV) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS kv (
  k TEXT PRIMARY KEY,
  v BLOB NOT NULL,
  updated_at INTEGER NOT NULL DEFAULT (unixepoch())
);
`)
	return err
}

func (s *SQLiteKV) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx, `SELECT v FROM kv WHERE k = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return v, err
}

func (s *SQLiteKV) Put(ctx context.Context, key string, value []byte) error {
	return withRetry(ctx, s.retry, "put", func() error {
		_, err := s.db.ExecContext(ctx, `
INSERT INTO kv(k, v, updated_at) VALUES(?, ?, unixepoch())
ON CONFLICT(k) DO UPDATE SET v=excluded.v, updated_at=excluded.updated_at`, key, value)
		return err
	})
}

func (s *SQLiteKV) Delete(ctx context.Context, key string) error {
	return withRetry(ctx, s.retry, "delete", func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE k = ?`, key)
		return err
	})
}

func (s *SQLiteKV) Scan(ctx context.Context, fn func(string, []byte) error) error {
	rows, err := s.db.QueryContext(ctx, `SELECT k, v FROM kv ORDER BY k ASC`)
	if err != nil {
		return err
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var k string
		var v []byte
		if err := rows.Scan(&k, &v); err != nil {
			return err
		}
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return rows.Err()
}
