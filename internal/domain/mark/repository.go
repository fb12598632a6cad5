package mark

import (
	"context"
	"time"
)

// MarkRepository is the durable store behind the ledger. Marks are only ever inserted.
type MarkRepository interface {
	// LockChain blocks other appenders for workerID until the surrounding transaction ends.
	LockChain(ctx context.Context, workerID string) error

	// Tail returns the worker's latest mark by server timestamp, or nil for an empty chain.
	Tail(ctx context.Context, workerID string) (*Mark, error)

	Insert(ctx context.Context, m Mark) error

	// FindByClientRef returns the mark a device already submitted under ref, or nil.
	FindByClientRef(ctx context.Context, workerID, deviceID, ref string) (*Mark, error)

	// ListByWorker returns the whole chain in (server_timestamp, id) order.
	ListByWorker(ctx context.Context, workerID string) ([]Mark, error)

	// ListBetween returns the worker's marks with from <= server_timestamp < to, in chain order.
	ListBetween(ctx context.Context, workerID string, from, to time.Time) ([]Mark, error)

	// WorkersWithMarks lists every worker that has at least one mark.
	WorkersWithMarks(ctx context.Context) ([]string, error)
}
