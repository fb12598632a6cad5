package anomaly

import (
	"strings"
	"time"

	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/validator"
)

type AnomalyFilter struct {
	WorkerID *string
	Kind     *string
	From     *time.Time
	To       *time.Time
	Limit    int
}

func (f *AnomalyFilter) Validate() error {
	var errs validator.ValidationErrors

	if f.Kind != nil && !validator.IsInSlice(*f.Kind, KindValues) {
		errs = append(errs, validator.ValidationError{
			Field:   "kind",
			Message: "kind must be one of: " + strings.Join(KindValues, ", "),
		})
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		errs = append(errs, validator.ValidationError{
			Field:   "to",
			Message: "to must not be before from",
		})
	}
	if f.Limit < 0 || f.Limit > 500 {
		errs = append(errs, validator.ValidationError{
			Field:   "limit",
			Message: "limit must be between 1 and 500",
		})
	}
	if f.Limit == 0 {
		f.Limit = 100
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
