package schedule

import "time"

// Recurrence says which weeks an Entry applies to. It is either Template
// (every week) or WeekOverride (one Monday-anchored week).
type Recurrence interface {
	isRecurrence()
}

// Template repeats every week.
type Template struct{}

// WeekOverride applies only to the week starting WeekStart (a Monday).
type WeekOverride struct {
	WeekStart time.Time
}

func (Template) isRecurrence()     {}
func (WeekOverride) isRecurrence() {}

// NewWeekOverride anchors the override to the Monday of day's ISO week.
func NewWeekOverride(day time.Time) WeekOverride {
	return WeekOverride{WeekStart: MondayOf(day)}
}

// Entry is one programmed shift of a worker's weekly schedule.
type Entry struct {
	ID           string
	WorkerID     string
	Recurrence   Recurrence
	DayOfWeek    int // 0=Sunday..6=Saturday
	StartMinutes int // minutes since midnight
	EndMinutes   int // <= StartMinutes means the shift ends the next day
	BreakMinutes int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// WeekStart returns the override anchor, or nil for templates.
func (e Entry) WeekStart() *time.Time {
	if o, ok := e.Recurrence.(WeekOverride); ok {
		ws := o.WeekStart
		return &ws
	}
	return nil
}

// AppliesTo reports whether the entry produces a shift in the week starting weekStart.
func (e Entry) AppliesTo(weekStart time.Time) bool {
	switch r := e.Recurrence.(type) {
	case Template:
		return true
	case WeekOverride:
		return DayIndex(r.WeekStart) == DayIndex(weekStart)
	default:
		return false
	}
}

// Overnight reports whether the shift crosses midnight.
func (e Entry) Overnight() bool {
	return e.EndMinutes <= e.StartMinutes
}

// ShiftInstance is a dated occurrence of an Entry. It is derived, never stored.
type ShiftInstance struct {
	EntryID      string
	WorkerID     string
	Start        int // absolute timeline minute
	End          int // absolute timeline minute, always > Start
	BreakMinutes int
}

func (s ShiftInstance) Duration() int {
	return s.End - s.Start
}

// WorkMinutes is duration minus break, clamped to [0, duration].
func (s ShiftInstance) WorkMinutes() int {
	w := s.Duration() - s.BreakMinutes
	if w < 0 {
		return 0
	}
	if w > s.Duration() {
		return s.Duration()
	}
	return w
}

func (s ShiftInstance) StartDay() int {
	return floorDiv(s.Start, MinutesPerDay)
}

// EndDay is the last day the shift occupies; a shift ending exactly at
// midnight does not touch the following day.
func (s ShiftInstance) EndDay() int {
	return floorDiv(s.End-1, MinutesPerDay)
}

func (s ShiftInstance) StartTime() time.Time { return TimeAt(s.Start) }

func (s ShiftInstance) EndTime() time.Time { return TimeAt(s.End) }

// Overlap returns the minutes of the shift inside [from, to).
func (s ShiftInstance) Overlap(from, to int) int {
	lo := max(s.Start, from)
	hi := min(s.End, to)
	if hi <= lo {
		return 0
	}
	return hi - lo
}

// WorkedWithin apportions WorkMinutes by the fraction of the shift inside [from, to).
func (s ShiftInstance) WorkedWithin(from, to int) float64 {
	d := s.Duration()
	if d == 0 {
		return 0
	}
	return float64(s.WorkMinutes()) * float64(s.Overlap(from, to)) / float64(d)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
