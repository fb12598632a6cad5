package compliance

import (
	"fmt"
	"math"
	"time"

	"github.com/cmlabs-hris/attendance-ledger/internal/domain/compliance"
	"github.com/cmlabs-hris/attendance-ledger/internal/domain/schedule"
)

const (
	MinRestMinutes     = 600
	MaxConsecutiveDays = 6
	MinSundaysOff      = 2
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "2006-01-02T15:04"
)

// Evaluate runs every rule over instances, which must be sorted by start.
// authorizedMinutes nil skips the weekly ceiling.
func Evaluate(workerID string, instances []schedule.ShiftInstance, w Window, authorizedMinutes *int) []compliance.Alert {
	var alerts []compliance.Alert
	if authorizedMinutes != nil {
		alerts = append(alerts, WeeklyHours(instances, w, *authorizedMinutes)...)
	}
	alerts = append(alerts, MinRest(instances, w)...)
	alerts = append(alerts, ConsecutiveDays(instances, w)...)
	alerts = append(alerts, SundaysOff(instances, w)...)

	seen := make(map[string]bool, len(alerts))
	out := alerts[:0]
	for _, a := range alerts {
		a.WorkerID = workerID
		if seen[a.Key()] {
			continue
		}
		seen[a.Key()] = true
		out = append(out, a)
	}
	return out
}

// WeeklyHours compares apportioned work minutes of every week starting in
// the window against the authorized figure.
func WeeklyHours(instances []schedule.ShiftInstance, w Window, authorizedMinutes int) []compliance.Alert {
	var alerts []compliance.Alert

	monday := schedule.MondayOf(w.From)
	if monday.Before(w.From) {
		monday = monday.AddDate(0, 0, 7)
	}
	for ; monday.Before(w.To); monday = monday.AddDate(0, 0, 7) {
		from := minuteOf(monday)
		to := from + schedule.MinutesPerWeek

		var worked float64
		for _, s := range instances {
			worked += s.WorkedWithin(from, to)
		}

		if worked > float64(authorizedMinutes)+1e-9 {
			alerts = append(alerts, compliance.Alert{
				Kind:      compliance.KindWeeklyHoursExceeded,
				Timestamp: monday,
				Metadata: map[string]any{
					"week_start":         monday.Format(dateLayout),
					"worked_minutes":     round2(worked),
					"authorized_minutes": authorizedMinutes,
					"excess_minutes":     round2(worked - float64(authorizedMinutes)),
				},
			})
		}
	}
	return alerts
}

// MinRest flags adjacent shifts separated by less than MinRestMinutes.
// The alert is stamped at the end of the earlier shift.
func MinRest(instances []schedule.ShiftInstance, w Window) []compliance.Alert {
	var alerts []compliance.Alert

	for i := 1; i < len(instances); i++ {
		prev, next := instances[i-1], instances[i]
		rest := next.Start - prev.End
		if rest >= MinRestMinutes {
			continue
		}

		ts := prev.EndTime()
		if !w.contains(ts) {
			continue
		}
		alerts = append(alerts, compliance.Alert{
			Kind:      compliance.KindMinRestViolation,
			Timestamp: ts,
			Metadata: map[string]any{
				"previous_shift_start": prev.StartTime().Format(clockLayout),
				"previous_shift_end":   prev.EndTime().Format(clockLayout),
				"next_shift_start":     next.StartTime().Format(clockLayout),
				"next_shift_end":       next.EndTime().Format(clockLayout),
				"rest_minutes":         rest,
				"required_minutes":     MinRestMinutes,
			},
		})
	}
	return alerts
}

// dayRun is a maximal run of touched days. A run cut by the edge of the
// projected span is open on that side.
type dayRun struct {
	start, end         int
	openStart, openEnd bool
}

func (r dayRun) length() int {
	return r.end - r.start + 1
}

// stamp is the run's first day, or the window start when the run began
// before anything projected.
func (r dayRun) stamp(w Window) time.Time {
	if r.openStart {
		return w.From
	}
	return schedule.DateOf(r.start)
}

// workingRuns returns the maximal runs of touched days that reach into the
// window. An overnight shift touches both of its days.
func workingRuns(instances []schedule.ShiftInstance, w Window) []dayRun {
	firstDay, lastDay := w.projectedDays()
	from := schedule.DayIndex(w.From)
	to := schedule.DayIndex(w.To) - 1

	touched := make(map[int]bool)
	for _, s := range instances {
		for d := s.StartDay(); d <= s.EndDay(); d++ {
			if d >= firstDay && d <= lastDay {
				touched[d] = true
			}
		}
	}

	var runs []dayRun
	for d := firstDay; d <= lastDay; d++ {
		if !touched[d] || touched[d-1] {
			continue
		}
		end := d
		for touched[end+1] {
			end++
		}
		if end < from || d > to {
			continue
		}
		runs = append(runs, dayRun{
			start:     d,
			end:       end,
			openStart: d == firstDay,
			openEnd:   end == lastDay,
		})
	}
	return runs
}

// runsReachEdges reports whether a run reaching into the window is cut by the
// start or the end of the projected span.
func runsReachEdges(instances []schedule.ShiftInstance, w Window) (before, after bool) {
	for _, r := range workingRuns(instances, w) {
		before = before || r.openStart
		after = after || r.openEnd
	}
	return before, after
}

// consecutiveFrom is the earliest timestamp a CONSECUTIVE_DAYS_VIOLATION
// owned by w can carry: the start of a run that began before the window.
func consecutiveFrom(instances []schedule.ShiftInstance, w Window) time.Time {
	from := w.From
	for _, r := range workingRuns(instances, w) {
		if ts := r.stamp(w); ts.Before(from) {
			from = ts
		}
	}
	return from
}

// ConsecutiveDays flags every run of more than MaxConsecutiveDays touched
// days that reaches into the window, measured over its full length.
func ConsecutiveDays(instances []schedule.ShiftInstance, w Window) []compliance.Alert {
	var alerts []compliance.Alert
	for _, r := range workingRuns(instances, w) {
		if r.length() <= MaxConsecutiveDays {
			continue
		}

		metadata := map[string]any{
			"start_date": schedule.DateOf(r.start).Format(dateLayout),
			"end_date":   schedule.DateOf(r.end).Format(dateLayout),
			"length":     r.length(),
		}
		if r.openStart {
			metadata["open_start"] = true
		}
		if r.openEnd {
			metadata["open_end"] = true
		}
		alerts = append(alerts, compliance.Alert{
			Kind:      compliance.KindConsecutiveDaysViolation,
			Timestamp: r.stamp(w),
			Metadata:  metadata,
		})
	}
	return alerts
}

// SundaysOff counts, per affected month, the Sundays with no worked minutes.
func SundaysOff(instances []schedule.ShiftInstance, w Window) []compliance.Alert {
	var alerts []compliance.Alert

	for _, month := range w.Months {
		next := month.AddDate(0, 1, 0)
		total, worked := 0, 0

		for day := month; day.Before(next); day = day.AddDate(0, 0, 1) {
			if day.Weekday() != time.Sunday {
				continue
			}
			total++

			from := minuteOf(day)
			var minutes float64
			for _, s := range instances {
				minutes += s.WorkedWithin(from, from+schedule.MinutesPerDay)
			}
			if minutes > 0 {
				worked++
			}
		}

		off := total - worked
		if off < MinSundaysOff {
			alerts = append(alerts, compliance.Alert{
				Kind:      compliance.KindSundaysOffViolation,
				Timestamp: month,
				Metadata: map[string]any{
					"month":          fmt.Sprintf("%04d-%02d", month.Year(), int(month.Month())),
					"total_sundays":  total,
					"worked_sundays": worked,
					"off_sundays":    off,
				},
			})
		}
	}
	return alerts
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
