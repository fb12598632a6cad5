package compliance

import (
	"strings"
	"time"

	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/validator"
)

type RecomputeRequest struct {
	WorkerID  string  `json:"worker_id"`
	WeekStart *string `json:"week_start,omitempty"` // YYYY-MM-DD; nil evaluates templates
}

func (r *RecomputeRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.WorkerID) {
		errs = append(errs, validator.ValidationError{
			Field:   "worker_id",
			Message: "worker_id is required",
		})
	}
	if r.WeekStart != nil {
		if _, ok := validator.IsValidDate(*r.WeekStart); !ok {
			errs = append(errs, validator.ValidationError{
				Field:   "week_start",
				Message: "week_start must be in YYYY-MM-DD format",
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Week returns the parsed week, or nil for a template recomputation.
func (r *RecomputeRequest) Week() *time.Time {
	if r.WeekStart == nil {
		return nil
	}
	t, _ := validator.IsValidDate(*r.WeekStart)
	return &t
}

type RecomputeResult struct {
	WorkerID   string    `json:"worker_id"`
	WindowFrom time.Time `json:"window_from"`
	WindowTo   time.Time `json:"window_to"`
	Resolved   int64     `json:"resolved"`
	Open       int       `json:"open"`
}

type AlertFilter struct {
	WorkerID *string
	Kind     *string
	OpenOnly bool
	From     *time.Time
	To       *time.Time
	Limit    int
}

func (f *AlertFilter) Validate() error {
	var errs validator.ValidationErrors

	if f.Kind != nil && !validator.IsInSlice(*f.Kind, KindValues) {
		errs = append(errs, validator.ValidationError{
			Field:   "kind",
			Message: "kind must be one of: " + strings.Join(KindValues, ", "),
		})
	}
	if f.Limit < 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "limit",
			Message: "limit must be a positive number",
		})
	}
	if f.Limit == 0 {
		f.Limit = 100
	}
	if f.Limit > 500 {
		errs = append(errs, validator.ValidationError{
			Field:   "limit",
			Message: "limit must not exceed 500",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type AlertResponse struct {
	ID        string         `json:"id"`
	WorkerID  string         `json:"worker_id"`
	Kind      Kind           `json:"kind"`
	Timestamp string         `json:"timestamp"`
	Metadata  map[string]any `json:"metadata"`
	Resolved  bool           `json:"resolved"`
	UpdatedAt string         `json:"updated_at"`
}

func ToResponse(a Alert) AlertResponse {
	return AlertResponse{
		ID:        a.ID,
		WorkerID:  a.WorkerID,
		Kind:      a.Kind,
		Timestamp: a.Timestamp.Format(time.RFC3339),
		Metadata:  a.Metadata,
		Resolved:  a.Resolved,
		UpdatedAt: a.UpdatedAt.Format(time.RFC3339),
	}
}
