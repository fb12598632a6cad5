package anomaly

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/attendance-ledger/internal/domain/anomaly"
	"github.com/cmlabs-hris/attendance-ledger/internal/domain/mark"
	"github.com/cmlabs-hris/attendance-ledger/internal/domain/schedule"
	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/metrics"
	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/sse"
	"github.com/google/uuid"
)

const EventAnomaly = "anomaly"

type AnomalyServiceImpl struct {
	anomaly.AnomalyRepository
	marks   mark.MarkRepository
	entries schedule.EntryRepository
	hub     *sse.Hub
	policy  anomaly.Policy
	loc     *time.Location
}

// OnMarkAppended implements anomaly.AnomalyService.
func (s *AnomalyServiceImpl) OnMarkAppended(ctx context.Context, m mark.Mark, previous *mark.Mark) ([]anomaly.Anomaly, error) {
	local := m.ServerTimestamp.In(s.loc)
	y, mo, d := local.Date()
	dayStart := time.Date(y, mo, d, 0, 0, 0, 0, s.loc)

	dayMarks, err := s.marks.ListBetween(ctx, m.WorkerID, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("load marks of the day: %w", err)
	}
	if !containsMark(dayMarks, m.ID) {
		dayMarks = append(dayMarks, m)
	}

	found := Evaluate(s.policy, EvaluationInput{
		Mark:     m,
		Previous: previous,
		DayMarks: dayMarks,
		Shift:    s.shiftOn(ctx, m.WorkerID, local),
	})
	if len(found) == 0 {
		return nil, nil
	}

	for i := range found {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("generate anomaly id: %w", err)
		}
		found[i].ID = id.String()
	}

	if err := s.AnomalyRepository.Insert(ctx, found); err != nil {
		return nil, err
	}

	for _, a := range found {
		metrics.AnomaliesDetected.WithLabelValues(string(a.Kind)).Inc()
		if s.hub != nil {
			s.hub.Publish(sse.Event{WorkerID: a.WorkerID, Event: EventAnomaly, Data: a})
		}
	}
	return found, nil
}

// shiftOn resolves the programmed shift starting on local's calendar day.
// Lookup failures fall back to the default shift length.
func (s *AnomalyServiceImpl) shiftOn(ctx context.Context, workerID string, local time.Time) *schedule.ShiftInstance {
	if s.entries == nil {
		return nil
	}

	week := schedule.MondayOf(local)
	entries, err := s.entries.ListForWeeks(ctx, workerID, week, week)
	if err != nil {
		slog.Warn("schedule lookup failed, using default shift", "worker_id", workerID, "error", err)
		return nil
	}
	return schedule.ShiftOn(schedule.ProjectWeek(entries, week), schedule.DayIndex(local))
}

// List implements anomaly.AnomalyService.
func (s *AnomalyServiceImpl) List(ctx context.Context, filter anomaly.AnomalyFilter) ([]anomaly.Anomaly, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	return s.AnomalyRepository.List(ctx, filter)
}

func containsMark(marks []mark.Mark, id string) bool {
	for _, m := range marks {
		if m.ID == id {
			return true
		}
	}
	return false
}

func NewAnomalyService(
	anomalyRepo anomaly.AnomalyRepository,
	markRepo mark.MarkRepository,
	entryRepo schedule.EntryRepository,
	hub *sse.Hub,
	policy anomaly.Policy,
	loc *time.Location,
) *AnomalyServiceImpl {
	if loc == nil {
		loc = time.UTC
	}
	return &AnomalyServiceImpl{
		AnomalyRepository: anomalyRepo,
		marks:             markRepo,
		entries:           entryRepo,
		hub:               hub,
		policy:            policy,
		loc:               loc,
	}
}
