package schedule

import (
	"sort"
	"time"
)

// Project turns one entry into its occurrence within the week starting weekStart.
func Project(e Entry, weekStart time.Time) ShiftInstance {
	day := DayIndex(weekStart) + MondayOffset(e.DayOfWeek)

	endDay := day
	if e.Overnight() {
		endDay++
	}

	return ShiftInstance{
		EntryID:      e.ID,
		WorkerID:     e.WorkerID,
		Start:        day*MinutesPerDay + e.StartMinutes,
		End:          endDay*MinutesPerDay + e.EndMinutes,
		BreakMinutes: e.BreakMinutes,
	}
}

// ProjectWeek returns the shift instances of every entry that is a template
// or an override of the week starting weekStart, ordered by start.
func ProjectWeek(entries []Entry, weekStart time.Time) []ShiftInstance {
	weekStart = MondayOf(weekStart)

	var out []ShiftInstance
	for _, e := range entries {
		if e.AppliesTo(weekStart) {
			out = append(out, Project(e, weekStart))
		}
	}
	sortInstances(out)
	return out
}

// ProjectWeeks projects the weeks starting at firstMonday, firstMonday+7d, ... up to
// and including lastMonday.
func ProjectWeeks(entries []Entry, firstMonday, lastMonday time.Time) []ShiftInstance {
	first := DayIndex(MondayOf(firstMonday))
	last := DayIndex(MondayOf(lastMonday))

	var out []ShiftInstance
	for d := first; d <= last; d += 7 {
		out = append(out, ProjectWeek(entries, DateOf(d))...)
	}
	sortInstances(out)
	return out
}

// ShiftOn returns the first shift starting on the given day, if any.
func ShiftOn(instances []ShiftInstance, day int) *ShiftInstance {
	for i := range instances {
		if instances[i].StartDay() == day {
			s := instances[i]
			return &s
		}
	}
	return nil
}

func sortInstances(s []ShiftInstance) {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].Start != s[j].Start {
			return s[i].Start < s[j].Start
		}
		return s[i].EntryID < s[j].EntryID
	})
}
