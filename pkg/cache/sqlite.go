package cache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// sqliteStore is the durable backend, grounded on the original service's
// cache_entries schema: key/value/created_at/expires_at/hit_count/
// last_accessed/size_bytes, with indices on expires_at and last_accessed.
type sqliteStore struct {
	db *sql.DB
}

func newSQLiteStore(dir string) (*sqliteStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create dir: %w", err)
	}
	path := filepath.Join(dir, "cache.db")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cache: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite, single-writer discipline

	const schema = `
CREATE TABLE IF NOT EXISTS cache_entries (
    key TEXT PRIMARY KEY,
    value BLOB NOT NULL,
    created_at INTEGER NOT NULL,
    expires_at INTEGER NOT NULL,
    hit_count INTEGER NOT NULL DEFAULT 0,
    last_accessed INTEGER NOT NULL,
    size_bytes INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cache_expires ON cache_entries(expires_at);
CREATE INDEX IF NOT EXISTS idx_cache_last_accessed ON cache_entries(last_accessed);
`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: create schema: %w", err)
	}

	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) get(key string) (*Entry, error) {
	row := s.db.QueryRow(`SELECT key, value, created_at, expires_at, hit_count, last_accessed, size_bytes
		FROM cache_entries WHERE key = ?`, key)

	var e Entry
	if err := row.Scan(&e.Key, &e.Value, &e.CreatedAt, &e.ExpiresAt, &e.HitCount, &e.LastAccessed, &e.SizeBytes); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

func (s *sqliteStore) put(e Entry) error {
	_, err := s.db.Exec(`INSERT INTO cache_entries (key, value, created_at, expires_at, hit_count, last_accessed, size_bytes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value=excluded.value, created_at=excluded.created_at, expires_at=excluded.expires_at,
			hit_count=excluded.hit_count, last_accessed=excluded.last_accessed, size_bytes=excluded.size_bytes`,
		e.Key, e.Value, e.CreatedAt, e.ExpiresAt, e.HitCount, e.LastAccessed, e.SizeBytes)
	return err
}

func (s *sqliteStore) delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM cache_entries WHERE key = ?`, key)
	return err
}

func (s *sqliteStore) clearAll() error {
	_, err := s.db.Exec(`DELETE FROM cache_entries`)
	return err
}

func (s *sqliteStore) deleteExpired(now int64) (int, error) {
	res, err := s.db.Exec(`DELETE FROM cache_entries WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *sqliteStore) totalSize() (int64, error) {
	var total sql.NullInt64
	if err := s.db.QueryRow(`SELECT SUM(size_bytes) FROM cache_entries`).Scan(&total); err != nil {
		return 0, err
	}
	return total.Int64, nil
}

func (s *sqliteStore) counts(now int64) (total, expired int, hits int64, err error) {
	if err = s.db.QueryRow(`SELECT COUNT(*) FROM cache_entries`).Scan(&total); err != nil {
		return
	}
	if err = s.db.QueryRow(`SELECT COUNT(*) FROM cache_entries WHERE expires_at <= ?`, now).Scan(&expired); err != nil {
		return
	}
	var hitsNull sql.NullInt64
	if err = s.db.QueryRow(`SELECT SUM(hit_count) FROM cache_entries`).Scan(&hitsNull); err != nil {
		return
	}
	hits = hitsNull.Int64
	return
}

func (s *sqliteStore) oldestByLastAccessed(limit int) ([]Entry, error) {
	rows, err := s.db.Query(`SELECT key, value, created_at, expires_at, hit_count, last_accessed, size_bytes
		FROM cache_entries ORDER BY last_accessed ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Value, &e.CreatedAt, &e.ExpiresAt, &e.HitCount, &e.LastAccessed, &e.SizeBytes); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *sqliteStore) close() error { return s.db.Close() }

var _ store = (*sqliteStore)(nil)
