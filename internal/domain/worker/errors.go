package worker

import "github.com/cmlabs-hris/attendance-ledger/internal/pkg/apperror"

var (
	ErrWorkerNotFound     = apperror.New(apperror.ErrNotFound, "worker not found")
	ErrPermissionRequired = apperror.New(apperror.ErrAuthorization, "insufficient permissions for this operation")
	ErrActorMissing       = apperror.New(apperror.ErrAuthorization, "authenticated worker identity is missing")
)
