package ledger

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/cmlabs-hris/attendance-ledger/internal/domain/anomaly"
	"github.com/cmlabs-hris/attendance-ledger/internal/domain/mark"
	"github.com/cmlabs-hris/attendance-ledger/internal/domain/site"
	"github.com/cmlabs-hris/attendance-ledger/internal/domain/worker"
	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/apperror"
)

type passthroughTx struct{}

func (passthroughTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// memMarks keeps chains in memory. Tail and Insert lock separately, so only
// the service's own critical section prevents forks.
type memMarks struct {
	mu       sync.Mutex
	byWorker map[string][]mark.Mark
	delay    time.Duration
}

func newMemMarks() *memMarks {
	return &memMarks{byWorker: map[string][]mark.Mark{}}
}

func (r *memMarks) LockChain(ctx context.Context, workerID string) error { return nil }

func (r *memMarks) Tail(ctx context.Context, workerID string) (*mark.Mark, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	chain := r.sorted(workerID)
	if len(chain) == 0 {
		return nil, nil
	}
	tail := chain[len(chain)-1]
	return &tail, nil
}

func (r *memMarks) Insert(ctx context.Context, m mark.Mark) error {
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byWorker[m.WorkerID] {
		if sameHash(existing.HashPrev, m.HashPrev) {
			return errors.Join(apperror.ErrConflict, errors.New("chain fork"))
		}
	}
	r.byWorker[m.WorkerID] = append(r.byWorker[m.WorkerID], m)
	return nil
}

func (r *memMarks) FindByClientRef(ctx context.Context, workerID, deviceID, ref string) (*mark.Mark, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.byWorker[workerID] {
		if m.DeviceID == deviceID && m.ClientRef != nil && *m.ClientRef == ref {
			found := m
			return &found, nil
		}
	}
	return nil, nil
}

func (r *memMarks) ListByWorker(ctx context.Context, workerID string) ([]mark.Mark, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(workerID), nil
}

func (r *memMarks) ListBetween(ctx context.Context, workerID string, from, to time.Time) ([]mark.Mark, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []mark.Mark
	for _, m := range r.sorted(workerID) {
		if !m.ServerTimestamp.Before(from) && m.ServerTimestamp.Before(to) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memMarks) WorkersWithMarks(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, chain := range r.byWorker {
		if len(chain) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// tamper rewrites a stored mark in place, bypassing the ledger.
func (r *memMarks) tamper(workerID string, index int, fn func(m *mark.Mark)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	chain := r.sorted(workerID)
	target := chain[index].ID
	for i := range r.byWorker[workerID] {
		if r.byWorker[workerID][i].ID == target {
			fn(&r.byWorker[workerID][i])
		}
	}
}

func (r *memMarks) remove(workerID string, index int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	chain := r.sorted(workerID)
	r.byWorker[workerID] = append(chain[:index:index], chain[index+1:]...)
}

func (r *memMarks) sorted(workerID string) []mark.Mark {
	chain := append([]mark.Mark(nil), r.byWorker[workerID]...)
	sort.Slice(chain, func(i, j int) bool {
		if !chain[i].ServerTimestamp.Equal(chain[j].ServerTimestamp) {
			return chain[i].ServerTimestamp.Before(chain[j].ServerTimestamp)
		}
		return chain[i].ID < chain[j].ID
	})
	return chain
}

type memWorkers struct {
	mu      sync.Mutex
	workers map[string]worker.Worker
}

func (r *memWorkers) GetByID(ctx context.Context, id string) (worker.Worker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[id]
	if !ok {
		return worker.Worker{}, worker.ErrWorkerNotFound
	}
	return w, nil
}

func (r *memWorkers) RecordConsent(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[id]
	if !ok {
		return worker.ErrWorkerNotFound
	}
	if w.ConsentAcceptedAt == nil {
		w.ConsentAcceptedAt = &at
	}
	r.workers[id] = w
	return nil
}

type memSites struct {
	sites    map[string]site.Site
	assigned map[string]bool // siteID + "/" + workerID
}

func (r *memSites) GetByID(ctx context.Context, id string) (site.Site, error) {
	s, ok := r.sites[id]
	if !ok {
		return site.Site{}, site.ErrSiteNotFound
	}
	return s, nil
}

func (r *memSites) IsAssigned(ctx context.Context, siteID, workerID string) (bool, error) {
	return r.assigned[siteID+"/"+workerID], nil
}

type recordingEvaluator struct {
	mu    sync.Mutex
	calls []mark.Mark
	err   error
}

func (e *recordingEvaluator) OnMarkAppended(ctx context.Context, m mark.Mark, previous *mark.Mark) ([]anomaly.Anomaly, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, m)
	return nil, e.err
}
