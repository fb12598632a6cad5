package mark

import (
	"context"

	"github.com/cmlabs-hris/attendance-ledger/internal/domain/worker"
)

// LedgerService records marks and verifies chains.
type LedgerService interface {
	// Submit validates, geofences and appends a mark for the actor.
	Submit(ctx context.Context, actor worker.Actor, req SubmitRequest) (SubmitResponse, error)

	// ListMarks returns a worker's marks; workers may only read their own.
	ListMarks(ctx context.Context, actor worker.Actor, filter MarkFilter) ([]MarkResponse, error)

	// VerifyChain re-derives every link of one worker's chain. It never repairs.
	VerifyChain(ctx context.Context, workerID string) (ChainReport, error)

	// VerifyAll verifies every chain in the ledger.
	VerifyAll(ctx context.Context) (VerificationReport, error)

	// EnsureIntact returns an *IntegrityError when the worker's chain does not verify.
	EnsureIntact(ctx context.Context, workerID string) error
}
