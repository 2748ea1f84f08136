// Package db is the storage layer of the reference todo application: one
// SQLCipher database holding users, sessions and todos.
package db

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// MaxOpenConns bounds connections to the single database file.
	// SQLite is single-writer, so high connection counts are counterproductive.
	MaxOpenConns = 10

	// MaxIdleConns is the maximum number of idle connections.
	MaxIdleConns = 2

	// KeySize is the raw SQLCipher key length in bytes.
	KeySize = 32
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when an insert violates a uniqueness constraint.
	ErrDuplicate = errors.New("already exists")
)

// Store wraps the application database.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database at path. A non-empty key
// encrypts the file with SQLCipher; an empty key leaves it in plaintext.
// The schema is applied on every open.
func Open(ctx context.Context, path string, key []byte) (*Store, error) {
	if len(key) != 0 && len(key) != KeySize {
		return nil, fmt.Errorf("database key must be %d bytes, got %d", KeySize, len(key))
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	sqlDB, err := sql.Open(SQLiteDriverName, dsn(path, key))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(MaxOpenConns)
	sqlDB.SetMaxIdleConns(MaxIdleConns)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := sqlDB.ExecContext(ctx, Schema); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: sqlDB, path: path}, nil
}

// DecodeKey parses a hex-encoded database key. An empty string yields a nil key.
func DecodeKey(hexKey string) ([]byte, error) {
	hexKey = strings.TrimSpace(hexKey)
	if hexKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decode database key: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("database key must be %d bytes, got %d", KeySize, len(key))
	}
	return key, nil
}

// DB exposes the underlying connection pool.
func (s *Store) DB() *sql.DB { return s.db }

// Path is the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func dsn(path string, key []byte) string {
	if len(key) == 0 {
		return appendSQLiteParams(path, sqliteCommonParams())
	}
	keyHex := hex.EncodeToString(key)
	return appendSQLiteParams(
		fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", path, keyHex),
		sqliteCommonParams(),
	)
}

func sqliteCommonParams() string {
	return "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on"
}

func appendSQLiteParams(dsn, params string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + params
	}
	return dsn + "?" + params
}
