package anomaly

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmlabs-hris/attendance-ledger/internal/domain/anomaly"
	"github.com/cmlabs-hris/attendance-ledger/internal/domain/mark"
	"github.com/cmlabs-hris/attendance-ledger/internal/domain/schedule"
	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/sse"
)

// dayMarks serves ListBetween from a fixed slice; the other methods are unused.
type dayMarks struct {
	mark.MarkRepository
	marks []mark.Mark
	from  time.Time
	to    time.Time
}

func (d *dayMarks) ListBetween(ctx context.Context, workerID string, from, to time.Time) ([]mark.Mark, error) {
	d.from, d.to = from, to
	var out []mark.Mark
	for _, m := range d.marks {
		if !m.ServerTimestamp.Before(from) && m.ServerTimestamp.Before(to) {
			out = append(out, m)
		}
	}
	return out, nil
}

type weekEntries struct {
	schedule.EntryRepository
	entries []schedule.Entry
	err     error
}

func (w weekEntries) ListForWeeks(ctx context.Context, workerID string, from, to time.Time) ([]schedule.Entry, error) {
	return w.entries, w.err
}

type memAnomalies struct {
	mu    sync.Mutex
	items []anomaly.Anomaly
}

func (r *memAnomalies) Insert(ctx context.Context, anomalies []anomaly.Anomaly) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, anomalies...)
	return nil
}

func (r *memAnomalies) List(ctx context.Context, filter anomaly.AnomalyFilter) ([]anomaly.Anomaly, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]anomaly.Anomaly(nil), r.items...), nil
}

func TestOnMarkAppended_StoresAndPublishes(t *testing.T) {
	in := mk("in", mark.EventIn, morning)
	out := mk("out", mark.EventOut, morning.Add(11*time.Hour))
	repo := &memAnomalies{}
	hub := sse.NewHub()
	events, cleanup := hub.Subscribe(sse.TopicSupervisors)
	defer cleanup()

	svc := NewAnomalyService(repo, &dayMarks{marks: []mark.Mark{in}}, weekEntries{}, hub, anomaly.DefaultPolicy(), time.UTC)

	found, err := svc.OnMarkAppended(context.Background(), out, &in)
	require.NoError(t, err)

	assert.ElementsMatch(t, []anomaly.Kind{anomaly.KindOvertime, anomaly.KindNoBreak}, kinds(found))
	assert.Len(t, repo.items, 2)
	for _, a := range found {
		assert.NotEmpty(t, a.ID)
	}
	require.Len(t, events, 2)
	assert.Equal(t, EventAnomaly, (<-events).Event)
}

func TestOnMarkAppended_UsesLocalCalendarDay(t *testing.T) {
	loc := time.FixedZone("UTC-3", -3*3600)
	// 01:30 UTC on the 5th is still the 4th at UTC-3.
	at := time.Date(2024, 3, 5, 1, 30, 0, 0, time.UTC)
	source := &dayMarks{}

	svc := NewAnomalyService(&memAnomalies{}, source, nil, nil, anomaly.DefaultPolicy(), loc)
	_, err := svc.OnMarkAppended(context.Background(), mk("m1", mark.EventIn, at), nil)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, loc), source.from)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, loc), source.to)
}

func TestOnMarkAppended_ScheduledShiftReplacesDefault(t *testing.T) {
	in := mk("in", mark.EventIn, morning)
	out := mk("out", mark.EventOut, morning.Add(11*time.Hour), "lunch")
	entries := weekEntries{entries: []schedule.Entry{{
		ID: "e1", WorkerID: "w1", Recurrence: schedule.Template{}, DayOfWeek: 1,
		StartMinutes: 8 * 60, EndMinutes: 20 * 60, BreakMinutes: 60,
	}}}

	svc := NewAnomalyService(&memAnomalies{}, &dayMarks{marks: []mark.Mark{in}}, entries, nil, anomaly.DefaultPolicy(), time.UTC)
	found, err := svc.OnMarkAppended(context.Background(), out, &in)
	require.NoError(t, err)

	assert.Empty(t, found)
}

func TestOnMarkAppended_ScheduleFailureFallsBackToDefault(t *testing.T) {
	in := mk("in", mark.EventIn, morning)
	out := mk("out", mark.EventOut, morning.Add(10*time.Hour), "break")

	svc := NewAnomalyService(&memAnomalies{}, &dayMarks{marks: []mark.Mark{in}}, weekEntries{err: errors.New("db down")}, nil, anomaly.DefaultPolicy(), time.UTC)
	found, err := svc.OnMarkAppended(context.Background(), out, &in)
	require.NoError(t, err)

	assert.Equal(t, []anomaly.Kind{anomaly.KindOvertime}, kinds(found))
}

func TestList_ValidatesFilter(t *testing.T) {
	svc := NewAnomalyService(&memAnomalies{}, &dayMarks{}, nil, nil, anomaly.DefaultPolicy(), time.UTC)

	bogus := "LATE"
	_, err := svc.List(context.Background(), anomaly.AnomalyFilter{Kind: &bogus})
	assert.Error(t, err)

	_, err = svc.List(context.Background(), anomaly.AnomalyFilter{})
	assert.NoError(t, err)
}
