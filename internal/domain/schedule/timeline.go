package schedule

import "time"

// Schedules live on a continuous wall-clock timeline: day index d is the
// number of days since 1970-01-01 and minute m of that day sits at d*1440+m.
// Times produced from the timeline carry the UTC location but represent
// local wall-clock values.
const (
	MinutesPerDay  = 1440
	MinutesPerWeek = 7 * MinutesPerDay
)

// DayIndex returns the timeline day of t's calendar date in t's own location.
func DayIndex(t time.Time) int {
	y, m, d := t.Date()
	return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}

// DateOf returns midnight of day index d.
func DateOf(d int) time.Time {
	return time.Unix(int64(d)*86400, 0).UTC()
}

// TimeAt converts an absolute timeline minute to a wall-clock time.
func TimeAt(minute int) time.Time {
	return time.Unix(int64(minute)*60, 0).UTC()
}

// Weekday returns the weekday of day index d (0=Sunday..6=Saturday).
func Weekday(d int) int {
	// 1970-01-01 was a Thursday.
	return ((d % 7) + 7 + 4) % 7
}

// MondayOffset converts a weekday (0=Sunday) to its offset from Monday.
func MondayOffset(dayOfWeek int) int {
	return (dayOfWeek + 6) % 7
}

// MondayOf returns midnight of the Monday starting t's ISO week.
func MondayOf(t time.Time) time.Time {
	d := DayIndex(t)
	return DateOf(d - MondayOffset(Weekday(d)))
}

// MonthStart returns midnight of the first day of t's month.
func MonthStart(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}
