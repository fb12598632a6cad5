package worker

import (
	"context"
	"time"
)

type WorkerRepository interface {
	GetByID(ctx context.Context, id string) (Worker, error)

	// RecordConsent stores the first consent acknowledgment; later calls keep the original time.
	RecordConsent(ctx context.Context, id string, at time.Time) error
}
