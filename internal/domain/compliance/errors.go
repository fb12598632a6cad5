package compliance

import "github.com/cmlabs-hris/attendance-ledger/internal/pkg/apperror"

var ErrWorkerNotFound = apperror.New(apperror.ErrNotFound, "worker not found")
