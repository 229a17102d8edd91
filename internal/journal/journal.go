// Package journal persists an audit trail of resolved signal outcomes. It
// records what the service decided and did, not the inbound signal stream
// itself.
package journal

import (
	"context"
	"time"

	"tradehook/internal/domain"
)

// Entry is one journaled decision.
type Entry struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Symbol    string    `json:"symbol"`
	Side      string    `json:"side"`
	Price     string    `json:"price"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
}

// Journal records resolved outcomes and serves them back for inspection.
type Journal interface {
	// Record appends one decision to the journal.
	Record(ctx context.Context, sig domain.Signal, out domain.Outcome) error

	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]Entry, error)

	// Close releases the underlying storage.
	Close() error
}

// Compile-time interface check.
var _ Journal = Nop{}

// Nop is a Journal that discards everything. It is used when no journal
// path is configured.
type Nop struct{}

// Record discards the entry.
func (Nop) Record(context.Context, domain.Signal, domain.Outcome) error { return nil }

// Recent returns no entries.
func (Nop) Recent(context.Context, int) ([]Entry, error) { return nil, nil }

// Close does nothing.
func (Nop) Close() error { return nil }
