package compliance

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/cmlabs-hris/attendance-ledger/internal/domain/compliance"
	"github.com/cmlabs-hris/attendance-ledger/internal/domain/schedule"
	"github.com/cmlabs-hris/attendance-ledger/internal/domain/worker"
)

type passthroughTx struct{}

func (passthroughTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memEntries struct {
	mu      sync.Mutex
	entries []schedule.Entry
}

func (r *memEntries) Create(ctx context.Context, e schedule.Entry) (schedule.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return e, nil
}

func (r *memEntries) GetByID(ctx context.Context, id string) (schedule.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return schedule.Entry{}, schedule.ErrEntryNotFound
}

func (r *memEntries) Update(ctx context.Context, e schedule.Entry) (schedule.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].ID == e.ID {
			r.entries[i] = e
			return e, nil
		}
	}
	return schedule.Entry{}, schedule.ErrEntryNotFound
}

func (r *memEntries) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].ID == id {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return nil
		}
	}
	return schedule.ErrEntryNotFound
}

func (r *memEntries) ListByWorker(ctx context.Context, workerID string) ([]schedule.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []schedule.Entry
	for _, e := range r.entries {
		if e.WorkerID == workerID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memEntries) ListForWeeks(ctx context.Context, workerID string, from, to time.Time) ([]schedule.Entry, error) {
	all, _ := r.ListByWorker(ctx, workerID)
	var out []schedule.Entry
	for _, e := range all {
		ws := e.WeekStart()
		if ws == nil || (!ws.Before(from) && !ws.After(to)) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memEntries) WorkersWithEntries(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, e := range r.entries {
		if !seen[e.WorkerID] {
			seen[e.WorkerID] = true
			out = append(out, e.WorkerID)
		}
	}
	sort.Strings(out)
	return out, nil
}

type memAlerts struct {
	mu     sync.Mutex
	alerts map[string]compliance.Alert
}

func newMemAlerts() *memAlerts {
	return &memAlerts{alerts: map[string]compliance.Alert{}}
}

func (r *memAlerts) ResolveWindow(ctx context.Context, workerID string, kinds []compliance.Kind, from, to time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for key, a := range r.alerts {
		if a.WorkerID != workerID || a.Resolved || a.Timestamp.Before(from) || !a.Timestamp.Before(to) {
			continue
		}
		for _, k := range kinds {
			if a.Kind == k {
				a.Resolved = true
				r.alerts[key] = a
				n++
			}
		}
	}
	return n, nil
}

func (r *memAlerts) Upsert(ctx context.Context, alerts []compliance.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range alerts {
		a.Resolved = false
		r.alerts[a.Key()] = a
	}
	return nil
}

func (r *memAlerts) List(ctx context.Context, filter compliance.AlertFilter) ([]compliance.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []compliance.Alert
	for _, a := range r.alerts {
		if filter.WorkerID != nil && a.WorkerID != *filter.WorkerID {
			continue
		}
		if filter.OpenOnly && a.Resolved {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

func (r *memAlerts) open() []compliance.Alert {
	all, _ := r.List(context.Background(), compliance.AlertFilter{OpenOnly: true})
	return all
}

type memWorkers map[string]worker.Worker

func (m memWorkers) GetByID(ctx context.Context, id string) (worker.Worker, error) {
	w, ok := m[id]
	if !ok {
		return worker.Worker{}, worker.ErrWorkerNotFound
	}
	return w, nil
}

func (m memWorkers) RecordConsent(ctx context.Context, id string, at time.Time) error { return nil }

type staticHours struct {
	minutes map[string]int
	err     error
}

func (h staticHours) AuthorizedWeeklyMinutes(ctx context.Context, normalizedID string) (int, bool, error) {
	if h.err != nil {
		return 0, false, h.err
	}
	m, ok := h.minutes[normalizedID]
	return m, ok, nil
}

var errHRDown = errors.New("hr source unavailable")

func (r *memAlerts) all() []compliance.Alert {
	all, _ := r.List(context.Background(), compliance.AlertFilter{})
	return all
}
