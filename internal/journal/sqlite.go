package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"tradehook/internal/domain"
)

// Compile-time interface check.
var _ Journal = (*SQLiteJournal)(nil)

const decisionsSchema = `
CREATE TABLE IF NOT EXISTS decisions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at TEXT NOT NULL,
	symbol     TEXT NOT NULL,
	side       TEXT NOT NULL,
	price      TEXT NOT NULL,
	status     TEXT NOT NULL,
	message    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_decisions_symbol ON decisions(symbol);
`

// SQLiteJournal implements Journal backed by a SQLite database.
type SQLiteJournal struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) a SQLite journal at dbPath and ensures the
// schema exists.
func OpenSQLite(dbPath string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening journal db: %w", err)
	}
	if _, err := db.Exec(decisionsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating journal schema: %w", err)
	}
	return &SQLiteJournal{db: db}, nil
}

// Close closes the underlying database connection.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

// Record appends one decision row.
func (j *SQLiteJournal) Record(ctx context.Context, sig domain.Signal, out domain.Outcome) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO decisions (created_at, symbol, side, price, status, message)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339Nano),
		sig.Symbol,
		string(sig.Side),
		sig.Price.String(),
		string(out.Status),
		out.Message,
	)
	if err != nil {
		return fmt.Errorf("inserting decision: %w", err)
	}
	return nil
}

// Recent returns up to limit decisions, newest first.
func (j *SQLiteJournal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, created_at, symbol, side, price, status, message
		 FROM decisions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying decisions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var createdAt string
		if err := rows.Scan(&e.ID, &createdAt, &e.Symbol, &e.Side, &e.Price, &e.Status, &e.Message); err != nil {
			return nil, fmt.Errorf("scanning decision: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			e.CreatedAt = t
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating decisions: %w", err)
	}
	return entries, nil
}
