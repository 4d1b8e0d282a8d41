// Package sqlitedb opens the SQLite databases shared by the ledger, the
// artifact store, the processing log and the prompt cache.
package sqlitedb

import (
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// TimeLayout is the fixed-width UTC layout used for every stored timestamp.
// Lexical order equals chronological order and the first ten bytes are the
// calendar day.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// Open opens path with a busy timeout and WAL journaling so several handles
// can share one file.
func Open(path string) (*sqlx.DB, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	return db, nil
}

// Migrate runs each statement in order.
func Migrate(db *sqlx.DB, stmts ...string) error {
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a TimeLayout timestamp. Invalid input yields the zero time.
func ParseTime(s string) time.Time {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
