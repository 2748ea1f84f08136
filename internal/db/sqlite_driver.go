package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sqlite3 "github.com/mutecomm/go-sqlcipher/v4"
)

const (
	// SQLiteDriverName is the project-specific SQLCipher driver with custom SQL functions.
	SQLiteDriverName = "sqlite3_todo"
)

func init() {
	sql.Register(SQLiteDriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			if err := conn.RegisterFunc("normalize_email", NormalizeEmail, true); err != nil {
				if strings.Contains(strings.ToLower(err.Error()), "already exists") {
					return nil
				}
				return fmt.Errorf("register normalize_email SQL function: %w", err)
			}
			return nil
		},
	})
}

// NormalizeEmail is the canonical form emails are stored and looked up in.
// It is also available to SQL as normalize_email().
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
