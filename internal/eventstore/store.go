package eventstore

import (
	"context"
	"time"
)

// Store is an append-only run ledger.
type Store interface {
	Append(ctx context.Context, e Event) error
	// Events returns the records of one run in append order.
	Events(ctx context.Context, runID string) ([]Record, error)
	// Since returns every record at or after t in append order.
	Since(ctx context.Context, t time.Time) ([]Record, error)
	Close() error
}
