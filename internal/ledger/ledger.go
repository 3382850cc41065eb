// Package ledger keeps an in-memory SQLite trail of a confirmation pass.
//
// Every kernel session records the runs folded into it and the fences each
// run dropped. Reports read their audit trail from here. The database lives
// in memory only; a session's rows are discarded once its report has been
// emitted.
//
// # Ordering
//
// Rows are stamped with seq from a monotonic logical clock and every read
// orders by it, so the trail reads back in the order events happened.
package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - sessions, runs, drops
const currentSchemaVersion = 1

// memoryDSN opens a private in-memory database. The pool is capped at one
// connection, so every query sees the same database.
const memoryDSN = ":memory:"

// Ledger is the session trail of one confirmation pass.
type Ledger struct {
	db    *sql.DB
	clock clock
}

// Open creates an empty in-memory ledger.
func Open() (*Ledger, error) {
	db, err := sql.Open("sqlite3", memoryDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	// A second connection would open a second, empty database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to ledger: %w", err)
	}

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Close releases the database. All rows are lost.
func (l *Ledger) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA temp_store = MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version < currentSchemaVersion {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}
	return nil
}

// clock is the ledger's logical clock. Every write takes the next value.
type clock struct {
	seq atomic.Int64
}

func (c *clock) next() int64 {
	return c.seq.Add(1)
}

// query runs a read and hands each row to scan.
func (l *Ledger) query(ctx context.Context, scan func(*sql.Rows) error, query string, args ...any) error {
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
