// Package repository implements sqlite persistence for calendar entries,
// time-report records, import batches and check runs.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Storage layouts for date and datetime columns.
const (
	dateLayout     = "2006-01-02"
	datetimeLayout = "2006-01-02 15:04:05"
)

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func formatDatetime(t time.Time) string {
	return t.Format(datetimeLayout)
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

func parseDatetime(s string) (time.Time, error) {
	// sqlite CURRENT_TIMESTAMP and our own writes both use this layout, but
	// drivers occasionally hand back RFC3339 from DATETIME defaults.
	if t, err := time.Parse(datetimeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// executor abstracts *sql.DB and *sql.Tx so write methods can participate in
// a caller-owned transaction. Context variants only, so cancellation reaches
// statements running inside a transaction too.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// pick returns tx when the caller supplied one, the pool otherwise.
func pick(db *sql.DB, tx *sql.Tx) executor {
	if tx != nil {
		return tx
	}
	return db
}

// IsUniqueViolation reports whether err is a sqlite UNIQUE or PRIMARY KEY
// constraint failure.
func IsUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
