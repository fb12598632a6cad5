package schedule

import (
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/validator"
)

type EntryRequest struct {
	WorkerID     string  `json:"worker_id"`
	WeekStart    *string `json:"week_start,omitempty"` // YYYY-MM-DD, any day of the week; nil means template
	DayOfWeek    int     `json:"day_of_week"`
	StartTime    string  `json:"start_time"` // HH:MM
	EndTime      string  `json:"end_time"`   // HH:MM
	BreakMinutes int     `json:"break_minutes"`
}

func (r *EntryRequest) Validate() error {
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

	if r.DayOfWeek < 0 || r.DayOfWeek > 6 {
		errs = append(errs, validator.ValidationError{
			Field:   "day_of_week",
			Message: "day_of_week must be between 0 (Sunday) and 6 (Saturday)",
		})
	}

	if _, ok := validator.ParseClock(r.StartTime); !ok {
		errs = append(errs, validator.ValidationError{
			Field:   "start_time",
			Message: "start_time must be in HH:MM format",
		})
	}
	if _, ok := validator.ParseClock(r.EndTime); !ok {
		errs = append(errs, validator.ValidationError{
			Field:   "end_time",
			Message: "end_time must be in HH:MM format",
		})
	}

	if r.BreakMinutes < 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "break_minutes",
			Message: "break_minutes must be a non-negative number",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ToEntry converts a validated request.
func (r *EntryRequest) ToEntry() Entry {
	start, _ := validator.ParseClock(r.StartTime)
	end, _ := validator.ParseClock(r.EndTime)

	var rec Recurrence = Template{}
	if r.WeekStart != nil {
		day, _ := time.Parse("2006-01-02", *r.WeekStart)
		rec = NewWeekOverride(day)
	}

	return Entry{
		WorkerID:     r.WorkerID,
		Recurrence:   rec,
		DayOfWeek:    r.DayOfWeek,
		StartMinutes: start,
		EndMinutes:   end,
		BreakMinutes: r.BreakMinutes,
	}
}

type EntryResponse struct {
	ID           string  `json:"id"`
	WorkerID     string  `json:"worker_id"`
	WeekStart    *string `json:"week_start"`
	DayOfWeek    int     `json:"day_of_week"`
	StartTime    string  `json:"start_time"`
	EndTime      string  `json:"end_time"`
	BreakMinutes int     `json:"break_minutes"`
	Overnight    bool    `json:"overnight"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

func ToResponse(e Entry) EntryResponse {
	var weekStart *string
	if ws := e.WeekStart(); ws != nil {
		s := ws.Format("2006-01-02")
		weekStart = &s
	}
	return EntryResponse{
		ID:           e.ID,
		WorkerID:     e.WorkerID,
		WeekStart:    weekStart,
		DayOfWeek:    e.DayOfWeek,
		StartTime:    formatClock(e.StartMinutes),
		EndTime:      formatClock(e.EndMinutes),
		BreakMinutes: e.BreakMinutes,
		Overnight:    e.Overnight(),
		CreatedAt:    e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    e.UpdatedAt.Format(time.RFC3339),
	}
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
