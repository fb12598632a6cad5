package anomaly

import (
	"time"

	"github.com/cmlabs-hris/attendance-ledger/internal/domain/anomaly"
	"github.com/cmlabs-hris/attendance-ledger/internal/domain/mark"
	"github.com/cmlabs-hris/attendance-ledger/internal/domain/schedule"
)

// EvaluationInput is everything the real-time rules look at for one mark.
type EvaluationInput struct {
	Mark     mark.Mark
	Previous *mark.Mark              // the worker's mark right before Mark, if any
	DayMarks []mark.Mark             // the worker's marks of the same local day, Mark included
	Shift    *schedule.ShiftInstance // the day's programmed shift, if any
}

// Evaluate applies the real-time rules. IDs are left empty for the caller to assign.
func Evaluate(policy anomaly.Policy, in EvaluationInput) []anomaly.Anomaly {
	var out []anomaly.Anomaly
	m := in.Mark

	raise := func(kind anomaly.Kind, metadata map[string]any) {
		out = append(out, anomaly.Anomaly{
			WorkerID:  m.WorkerID,
			MarkID:    m.ID,
			Kind:      kind,
			Timestamp: m.ServerTimestamp,
			Metadata:  metadata,
		})
	}

	switch m.EventType {
	case mark.EventIn:
		if in.Previous != nil && in.Previous.EventType == mark.EventIn {
			raise(anomaly.KindMissingOut, map[string]any{
				"previous_mark_id":   in.Previous.ID,
				"previous_timestamp": in.Previous.ServerTimestamp.Format(time.RFC3339),
			})
		}
		return out

	case mark.EventOut:
		if in.Previous == nil || in.Previous.EventType == mark.EventOut {
			meta := map[string]any{}
			if in.Previous != nil {
				meta["previous_mark_id"] = in.Previous.ID
				meta["previous_timestamp"] = in.Previous.ServerTimestamp.Format(time.RFC3339)
			}
			raise(anomaly.KindMissingIn, meta)
		}
	}

	firstIn := firstInOfDay(in.DayMarks)
	if firstIn == nil || !m.ServerTimestamp.After(firstIn.ServerTimestamp) {
		return out
	}
	elapsed := int(m.ServerTimestamp.Sub(firstIn.ServerTimestamp) / time.Minute)

	shiftMinutes := policy.DefaultShiftMinutes
	breakMinutes := 0
	if in.Shift != nil {
		shiftMinutes = in.Shift.Duration()
		breakMinutes = in.Shift.BreakMinutes
	}

	if elapsed > shiftMinutes+policy.OvertimeGraceMinutes {
		raise(anomaly.KindOvertime, map[string]any{
			"elapsed_minutes": elapsed,
			"shift_minutes":   shiftMinutes,
			"grace_minutes":   policy.OvertimeGraceMinutes,
			"first_in":        firstIn.ServerTimestamp.Format(time.RFC3339),
		})
	}

	if elapsed > breakMinutes+policy.NoBreakThresholdMinutes && !tookBreak(in.DayMarks, policy.BreakNoteKeywords) {
		raise(anomaly.KindNoBreak, map[string]any{
			"elapsed_minutes":   elapsed,
			"break_minutes":     breakMinutes,
			"threshold_minutes": policy.NoBreakThresholdMinutes,
		})
	}

	return out
}

func firstInOfDay(marks []mark.Mark) *mark.Mark {
	var first *mark.Mark
	for i := range marks {
		if marks[i].EventType != mark.EventIn {
			continue
		}
		if first == nil || marks[i].ServerTimestamp.Before(first.ServerTimestamp) {
			first = &marks[i]
		}
	}
	return first
}

func tookBreak(marks []mark.Mark, keywords []string) bool {
	for _, m := range marks {
		if m.IsBreak(keywords) {
			return true
		}
	}
	return false
}
