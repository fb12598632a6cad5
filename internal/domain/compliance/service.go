package compliance

import (
	"context"
	"time"
)

type ComplianceService interface {
	// Recompute re-evaluates the window around weekStart (nil for templates).
	Recompute(ctx context.Context, workerID string, weekStart *time.Time) (RecomputeResult, error)
	ListAlerts(ctx context.Context, filter AlertFilter) ([]AlertResponse, error)
}
