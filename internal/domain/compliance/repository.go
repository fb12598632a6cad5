package compliance

import (
	"context"
	"time"
)

type AlertRepository interface {
	// ResolveWindow flags every open alert of kinds in [from, to) as resolved.
	ResolveWindow(ctx context.Context, workerID string, kinds []Kind, from, to time.Time) (int64, error)
	// Upsert writes alerts keyed by (worker, kind, timestamp) with resolved=false.
	Upsert(ctx context.Context, alerts []Alert) error
	List(ctx context.Context, filter AlertFilter) ([]Alert, error)
}

// HoursSource looks up authorized weekly hours by normalised worker identifier.
// ok is false when the HR source has no figure for the worker.
type HoursSource interface {
	AuthorizedWeeklyMinutes(ctx context.Context, normalizedID string) (minutes int, ok bool, err error)
}
