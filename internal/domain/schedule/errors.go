package schedule

import "github.com/cmlabs-hris/attendance-ledger/internal/pkg/apperror"

var (
	ErrEntryNotFound  = apperror.New(apperror.ErrNotFound, "schedule entry not found")
	ErrWorkerNotFound = apperror.New(apperror.ErrNotFound, "worker not found")
)
