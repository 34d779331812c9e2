package credentials

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/strrl/aurora-cli/internal/logger"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS credentials (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// StoreError wraps failures of the on-disk store
type StoreError struct {
	Path string
	Op   string // "open", "load", "save", "clear"
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("credentials store error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// SQLiteStore keeps the pair in a key/value table of a local SQLite file
type SQLiteStore struct {
	path string
	db   *sql.DB
}

// OpenSQLite opens (creating if needed) the credentials database at path
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, &StoreError{Path: path, Op: "open", Err: err}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &StoreError{Path: path, Op: "open", Err: err}
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, &StoreError{Path: path, Op: "open", Err: err}
	}
	// Tokens are secrets; keep the file private to the user
	if err := os.Chmod(path, 0600); err != nil {
		logger.LogWarn("could not restrict credentials file permissions", "path", path, "err", err)
	}

	return &SQLiteStore{path: path, db: db}, nil
}

// Close releases the database handle
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load returns the stored pair. A half-present pair is treated as absent
// and removed.
func (s *SQLiteStore) Load() (Pair, error) {
	rows, err := s.db.Query("SELECT key, value FROM credentials WHERE key IN (?, ?)", KeyAccessToken, KeyRefreshToken)
	if err != nil {
		return Pair{}, &StoreError{Path: s.path, Op: "load", Err: err}
	}
	defer rows.Close()

	var p Pair
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return Pair{}, &StoreError{Path: s.path, Op: "load", Err: err}
		}
		switch key {
		case KeyAccessToken:
			p.AccessToken = value
		case KeyRefreshToken:
			p.RefreshToken = value
		}
	}
	if err := rows.Err(); err != nil {
		return Pair{}, &StoreError{Path: s.path, Op: "load", Err: err}
	}

	if !p.Empty() && !p.Complete() {
		logger.LogWarn("found incomplete credential pair, clearing", "path", s.path)
		return Pair{}, s.Clear()
	}
	return p, nil
}

// Save writes both tokens in one transaction
func (s *SQLiteStore) Save(p Pair) error {
	if !p.Complete() {
		return ErrIncompletePair
	}

	tx, err := s.db.Begin()
	if err != nil {
		return &StoreError{Path: s.path, Op: "save", Err: err}
	}
	defer tx.Rollback()

	upsert := "INSERT INTO credentials (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value"
	if _, err := tx.Exec(upsert, KeyAccessToken, p.AccessToken); err != nil {
		return &StoreError{Path: s.path, Op: "save", Err: err}
	}
	if _, err := tx.Exec(upsert, KeyRefreshToken, p.RefreshToken); err != nil {
		return &StoreError{Path: s.path, Op: "save", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &StoreError{Path: s.path, Op: "save", Err: err}
	}
	return nil
}

// Clear removes both tokens
func (s *SQLiteStore) Clear() error {
	if _, err := s.db.Exec("DELETE FROM credentials WHERE key IN (?, ?)", KeyAccessToken, KeyRefreshToken); err != nil {
		return &StoreError{Path: s.path, Op: "clear", Err: err}
	}
	return nil
}
