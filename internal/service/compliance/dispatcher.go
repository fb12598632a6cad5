package compliance

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cmlabs-hris/attendance-ledger/internal/domain/compliance"
	"github.com/cmlabs-hris/attendance-ledger/internal/domain/schedule"
	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/metrics"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	dispatchQueueSize = 256
	recomputeTimeout  = 2 * time.Minute
)

// Recomputer is the part of Engine the dispatcher drives.
type Recomputer interface {
	Recompute(ctx context.Context, workerID string, weekStart *time.Time) (compliance.RecomputeResult, error)
}

// Dispatcher runs recomputations in the background so schedule edits never
// wait on or fail because of them. A (worker, week) that changes while its
// recomputation runs is recomputed once more afterwards.
type Dispatcher struct {
	engine Recomputer
	queue  chan schedule.Change
	slots  *semaphore.Weighted
	wg     sync.WaitGroup
	done   chan struct{}

	mu      sync.Mutex
	running map[string]bool // key -> dirty
}

func NewDispatcher(engine Recomputer, concurrency int) *Dispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Dispatcher{
		engine:  engine,
		queue:   make(chan schedule.Change, dispatchQueueSize),
		slots:   semaphore.NewWeighted(int64(concurrency)),
		done:    make(chan struct{}),
		running: make(map[string]bool),
	}
}

// Start consumes changes until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	slog.Info("compliance dispatcher started")
	go func() {
		defer close(d.done)
		for {
			select {
			case <-ctx.Done():
				d.wg.Wait()
				slog.Info("compliance dispatcher stopped")
				return
			case change := <-d.queue:
				d.wg.Add(1)
				go func() {
					defer d.wg.Done()
					d.process(ctx, change)
				}()
			}
		}
	}()
}

// Done is closed once the dispatcher stopped and in-flight work finished.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

// Notify implements schedule.ChangeNotifier. It never blocks the caller.
func (d *Dispatcher) Notify(change schedule.Change) {
	select {
	case d.queue <- change:
	default:
		slog.Warn("compliance queue full, handing off change", "workers", len(change.WorkerIDs))
		go func() {
			select {
			case d.queue <- change:
			case <-d.done:
			}
		}()
	}
}

func (d *Dispatcher) process(ctx context.Context, change schedule.Change) {
	weeks := change.WeekStarts
	if len(weeks) == 0 {
		weeks = []*time.Time{nil}
	}

	var g errgroup.Group
	for _, workerID := range change.WorkerIDs {
		for _, week := range weeks {
			g.Go(func() error {
				d.recompute(ctx, workerID, week)
				return nil
			})
		}
	}
	_ = g.Wait()
}

func (d *Dispatcher) recompute(ctx context.Context, workerID string, week *time.Time) {
	key := workerID + "|template"
	if week != nil {
		key = workerID + "|" + schedule.MondayOf(*week).Format(dateLayout)
	}

	d.mu.Lock()
	if _, busy := d.running[key]; busy {
		d.running[key] = true
		d.mu.Unlock()
		metrics.ComplianceRecomputes.WithLabelValues("deferred").Inc()
		return
	}
	d.running[key] = false
	d.mu.Unlock()

	for {
		d.run(ctx, key, workerID, week)

		d.mu.Lock()
		if !d.running[key] || ctx.Err() != nil {
			delete(d.running, key)
			d.mu.Unlock()
			return
		}
		d.running[key] = false
		d.mu.Unlock()
	}
}

func (d *Dispatcher) run(ctx context.Context, key, workerID string, week *time.Time) {
	if err := d.slots.Acquire(ctx, 1); err != nil {
		return
	}
	defer d.slots.Release(1)

	ctx, cancel := context.WithTimeout(ctx, recomputeTimeout)
	defer cancel()

	start := time.Now()
	result, err := d.engine.Recompute(ctx, workerID, week)
	if err != nil {
		metrics.ComplianceRecomputes.WithLabelValues("error").Inc()
		slog.Error("compliance recompute failed",
			"worker_id", workerID,
			"key", key,
			"error", err,
		)
		return
	}

	metrics.ComplianceRecomputes.WithLabelValues("ok").Inc()
	slog.Info("compliance recomputed",
		"worker_id", workerID,
		"window_from", result.WindowFrom,
		"window_to", result.WindowTo,
		"open", result.Open,
		"resolved", result.Resolved,
		"duration", time.Since(start),
	)
}
