package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/attendance-ledger/internal/domain/schedule"
)

// ComplianceJobs periodically re-evaluates the current week for every
// worker with schedule entries, so alerts follow the calendar even when
// nobody edits a schedule.
type ComplianceJobs struct {
	entries  schedule.EntryRepository
	notifier schedule.ChangeNotifier
	loc      *time.Location
	now      func() time.Time
}

func NewComplianceJobs(entries schedule.EntryRepository, notifier schedule.ChangeNotifier, loc *time.Location) *ComplianceJobs {
	if loc == nil {
		loc = time.UTC
	}
	return &ComplianceJobs{
		entries:  entries,
		notifier: notifier,
		loc:      loc,
		now:      time.Now,
	}
}

func (j *ComplianceJobs) RegisterJobs(scheduler *Scheduler, interval time.Duration) {
	scheduler.AddJob("compliance_sweep", interval, j.SweepCurrentWeek)
}

// SweepCurrentWeek hands the current week of every scheduled worker to the
// dispatcher. It returns once the change is queued.
func (j *ComplianceJobs) SweepCurrentWeek(ctx context.Context) error {
	workers, err := j.entries.WorkersWithEntries(ctx)
	if err != nil {
		return fmt.Errorf("list scheduled workers: %w", err)
	}
	if len(workers) == 0 {
		return nil
	}

	week := schedule.MondayOf(j.now().In(j.loc))
	j.notifier.Notify(schedule.Change{WorkerIDs: workers, WeekStarts: []*time.Time{&week}})

	slog.Info("Cron: compliance sweep queued", "workers", len(workers), "week", week.Format(time.DateOnly))
	return nil
}
