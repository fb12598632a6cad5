package compliance

import (
	"time"

	"github.com/cmlabs-hris/attendance-ledger/internal/domain/schedule"
)

// ReferenceWeek anchors template-only recomputations. 2001-01-01 is a Monday.
var ReferenceWeek = time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)

// Window is the wall-clock span one recomputation owns: alerts with a
// timestamp in [From, To) are resolved and re-derived together.
type Window struct {
	Week   time.Time // Monday of the directly affected week
	From   time.Time
	To     time.Time
	Months []time.Time // first day of every month starting in [From, To)

	// Weeks projected beyond the default span so working-day runs that
	// reach into the window can be followed to their true ends.
	ExtraBefore int
	ExtraAfter  int
}

// WindowFor expands the affected week by one week on each side and to the
// full months starting inside that span. A nil week selects ReferenceWeek.
func WindowFor(weekStart *time.Time) Window {
	week := ReferenceWeek
	if weekStart != nil {
		week = schedule.MondayOf(*weekStart)
	}

	w := Window{
		Week: week,
		From: week.AddDate(0, 0, -7),
		To:   week.AddDate(0, 0, 14),
	}
	if first := schedule.MonthStart(week); first.Before(w.From) {
		w.From = first
	}

	// Every month whose first day the window owns is evaluated whole, so
	// To grows to the end of the last one.
	for m := schedule.MonthStart(w.From); m.Before(w.To); m = m.AddDate(0, 1, 0) {
		if m.Before(w.From) {
			continue
		}
		w.Months = append(w.Months, m)
	}
	if n := len(w.Months); n > 0 {
		if end := w.Months[n-1].AddDate(0, 1, 0); end.After(w.To) {
			w.To = end
		}
	}
	return w
}

// ProjectionWeeks returns the first and last Monday to project so every
// shift that can influence a rule inside the window is present.
func (w Window) ProjectionWeeks() (first, last time.Time) {
	first = schedule.MondayOf(w.From).AddDate(0, 0, -7*(1+w.ExtraBefore))
	last = schedule.MondayOf(w.To.Add(-time.Minute)).AddDate(0, 0, 7*(1+w.ExtraAfter))
	return first, last
}

// projectedDays returns the first and last day index covered by ProjectionWeeks.
func (w Window) projectedDays() (first, last int) {
	f, l := w.ProjectionWeeks()
	return schedule.DayIndex(f), schedule.DayIndex(l) + 6
}

func (w Window) contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}

func minuteOf(t time.Time) int {
	return int(t.Unix() / 60)
}
