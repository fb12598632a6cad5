package schedule

import (
	"context"
	"time"
)

type EntryRepository interface {
	Create(ctx context.Context, entry Entry) (Entry, error)
	GetByID(ctx context.Context, id string) (Entry, error)
	Update(ctx context.Context, entry Entry) (Entry, error)
	Delete(ctx context.Context, id string) error
	ListByWorker(ctx context.Context, workerID string) ([]Entry, error)
	// ListForWeeks returns the worker's templates plus overrides anchored in [from, to].
	ListForWeeks(ctx context.Context, workerID string, from, to time.Time) ([]Entry, error)
	WorkersWithEntries(ctx context.Context) ([]string, error)
}
