package site

import "github.com/cmlabs-hris/attendance-ledger/internal/pkg/apperror"

var ErrSiteNotFound = apperror.New(apperror.ErrNotFound, "site not found")
