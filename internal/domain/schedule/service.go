package schedule

import (
	"context"
	"time"
)

// Change describes which workers and weeks a schedule edit touched.
// A nil week means a template changed.
type Change struct {
	WorkerIDs  []string
	WeekStarts []*time.Time
}

// ChangeNotifier receives schedule changes without blocking the edit.
type ChangeNotifier interface {
	Notify(change Change)
}

type ScheduleService interface {
	CreateEntry(ctx context.Context, req EntryRequest) (EntryResponse, error)
	UpdateEntry(ctx context.Context, id string, req EntryRequest) (EntryResponse, error)
	DeleteEntry(ctx context.Context, id string) error
	ListEntries(ctx context.Context, workerID string) ([]EntryResponse, error)
}
