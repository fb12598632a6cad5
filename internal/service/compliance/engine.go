package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/attendance-ledger/internal/domain/compliance"
	"github.com/cmlabs-hris/attendance-ledger/internal/domain/schedule"
	"github.com/cmlabs-hris/attendance-ledger/internal/domain/worker"
	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/metrics"
	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/sse"
)

// Engine re-derives a worker's schedule compliance alerts for one window.
type Engine struct {
	tx database.Transactor
	schedule.EntryRepository
	compliance.AlertRepository
	worker.WorkerRepository
	hours compliance.HoursSource
	hub   *sse.Hub
}

const (
	runLookaroundStep = 4
	maxRunLookaround  = 26
)

// Consecutive-day alerts are stamped at the start of their run, which may
// precede the window; every other recomputed kind is stamped inside it.
var (
	runKinds    = []compliance.Kind{compliance.KindConsecutiveDaysViolation}
	windowKinds = []compliance.Kind{
		compliance.KindWeeklyHoursExceeded,
		compliance.KindMinRestViolation,
		compliance.KindSundaysOffViolation,
	}
)

// EventCompliance is the SSE event carrying a recompute summary.
const EventCompliance = "compliance"

// PublishTo makes every recompute that changed alerts announce its summary on hub.
func (e *Engine) PublishTo(hub *sse.Hub) *Engine {
	e.hub = hub
	return e
}

// Recompute implements compliance.ComplianceService. Running it twice over
// unchanged entries leaves the same alert set.
func (e *Engine) Recompute(ctx context.Context, workerID string, weekStart *time.Time) (compliance.RecomputeResult, error) {
	w, err := e.WorkerRepository.GetByID(ctx, workerID)
	if err != nil {
		return compliance.RecomputeResult{}, err
	}

	window := WindowFor(weekStart)
	instances, err := e.project(ctx, workerID, &window)
	if err != nil {
		return compliance.RecomputeResult{}, err
	}

	alerts := Evaluate(workerID, instances, window, e.authorizedMinutes(ctx, w))
	runsFrom := consecutiveFrom(instances, window)

	var resolved int64
	err = e.tx.WithinTx(ctx, func(ctx context.Context) error {
		n, err := e.AlertRepository.ResolveWindow(ctx, workerID, windowKinds, window.From, window.To)
		if err != nil {
			return err
		}
		m, err := e.AlertRepository.ResolveWindow(ctx, workerID, runKinds, runsFrom, window.To)
		if err != nil {
			return err
		}
		resolved = n + m
		return e.AlertRepository.Upsert(ctx, alerts)
	})
	if err != nil {
		return compliance.RecomputeResult{}, fmt.Errorf("store compliance alerts: %w", err)
	}

	for _, a := range alerts {
		metrics.ComplianceAlertsEmitted.WithLabelValues(string(a.Kind)).Inc()
	}

	result := compliance.RecomputeResult{
		WorkerID:   workerID,
		WindowFrom: window.From,
		WindowTo:   window.To,
		Resolved:   resolved,
		Open:       len(alerts),
	}
	if e.hub != nil && (resolved > 0 || len(alerts) > 0) {
		e.hub.Publish(sse.Event{WorkerID: workerID, Event: EventCompliance, Data: result})
	}
	return result, nil
}

// project loads and projects the window's shifts. While a run of working
// days reaching into the window is cut by the projected span, the span grows
// by runLookaroundStep weeks on that side, up to maxRunLookaround.
func (e *Engine) project(ctx context.Context, workerID string, window *Window) ([]schedule.ShiftInstance, error) {
	for {
		first, last := window.ProjectionWeeks()
		entries, err := e.EntryRepository.ListForWeeks(ctx, workerID, first, last)
		if err != nil {
			return nil, fmt.Errorf("load schedule entries: %w", err)
		}
		instances := schedule.ProjectWeeks(entries, first, last)

		before, after := runsReachEdges(instances, *window)
		grown := false
		if before && window.ExtraBefore < maxRunLookaround {
			window.ExtraBefore = min(window.ExtraBefore+runLookaroundStep, maxRunLookaround)
			grown = true
		}
		if after && window.ExtraAfter < maxRunLookaround {
			window.ExtraAfter = min(window.ExtraAfter+runLookaroundStep, maxRunLookaround)
			grown = true
		}
		if !grown {
			return instances, nil
		}
	}
}

// authorizedMinutes returns nil when the HR source has no figure or cannot
// be reached; the weekly ceiling is then skipped rather than failed.
func (e *Engine) authorizedMinutes(ctx context.Context, w worker.Worker) *int {
	if e.hours == nil {
		return nil
	}

	minutes, ok, err := e.hours.AuthorizedWeeklyMinutes(ctx, compliance.NormalizeWorkerID(w.ExternalID))
	if err != nil {
		slog.Warn("authorized hours lookup failed, skipping weekly ceiling",
			"worker_id", w.ID,
			"error", err,
		)
		return nil
	}
	if !ok {
		return nil
	}
	return &minutes
}

// ListAlerts implements compliance.ComplianceService.
func (e *Engine) ListAlerts(ctx context.Context, filter compliance.AlertFilter) ([]compliance.AlertResponse, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	alerts, err := e.AlertRepository.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	out := make([]compliance.AlertResponse, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, compliance.ToResponse(a))
	}
	return out, nil
}

func NewEngine(
	tx database.Transactor,
	entryRepo schedule.EntryRepository,
	alertRepo compliance.AlertRepository,
	workerRepo worker.WorkerRepository,
	hours compliance.HoursSource,
) *Engine {
	return &Engine{
		tx:               tx,
		EntryRepository:  entryRepo,
		AlertRepository:  alertRepo,
		WorkerRepository: workerRepo,
		hours:            hours,
	}
}
