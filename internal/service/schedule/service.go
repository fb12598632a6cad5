package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/attendance-ledger/internal/domain/schedule"
	"github.com/cmlabs-hris/attendance-ledger/internal/domain/worker"
)

type ScheduleServiceImpl struct {
	schedule.EntryRepository
	workerRepo worker.WorkerRepository
	notifier   schedule.ChangeNotifier
}

// CreateEntry implements schedule.ScheduleService.
func (s *ScheduleServiceImpl) CreateEntry(ctx context.Context, req schedule.EntryRequest) (schedule.EntryResponse, error) {
	if err := req.Validate(); err != nil {
		return schedule.EntryResponse{}, err
	}
	if _, err := s.workerRepo.GetByID(ctx, req.WorkerID); err != nil {
		return schedule.EntryResponse{}, err
	}

	created, err := s.EntryRepository.Create(ctx, req.ToEntry())
	if err != nil {
		return schedule.EntryResponse{}, fmt.Errorf("create schedule entry: %w", err)
	}

	s.notify(created)
	return schedule.ToResponse(created), nil
}

// UpdateEntry implements schedule.ScheduleService. Both the old and the new
// placement of the entry are re-evaluated.
func (s *ScheduleServiceImpl) UpdateEntry(ctx context.Context, id string, req schedule.EntryRequest) (schedule.EntryResponse, error) {
	if err := req.Validate(); err != nil {
		return schedule.EntryResponse{}, err
	}

	existing, err := s.EntryRepository.GetByID(ctx, id)
	if err != nil {
		return schedule.EntryResponse{}, err
	}
	if req.WorkerID != existing.WorkerID {
		if _, err := s.workerRepo.GetByID(ctx, req.WorkerID); err != nil {
			return schedule.EntryResponse{}, err
		}
	}

	entry := req.ToEntry()
	entry.ID = existing.ID
	updated, err := s.EntryRepository.Update(ctx, entry)
	if err != nil {
		return schedule.EntryResponse{}, fmt.Errorf("update schedule entry: %w", err)
	}

	s.notify(existing, updated)
	return schedule.ToResponse(updated), nil
}

// DeleteEntry implements schedule.ScheduleService.
func (s *ScheduleServiceImpl) DeleteEntry(ctx context.Context, id string) error {
	existing, err := s.EntryRepository.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.EntryRepository.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete schedule entry: %w", err)
	}

	s.notify(existing)
	return nil
}

// ListEntries implements schedule.ScheduleService.
func (s *ScheduleServiceImpl) ListEntries(ctx context.Context, workerID string) ([]schedule.EntryResponse, error) {
	if _, err := s.workerRepo.GetByID(ctx, workerID); err != nil {
		return nil, err
	}

	entries, err := s.EntryRepository.ListByWorker(ctx, workerID)
	if err != nil {
		return nil, fmt.Errorf("list schedule entries: %w", err)
	}

	responses := make([]schedule.EntryResponse, 0, len(entries))
	for _, e := range entries {
		responses = append(responses, schedule.ToResponse(e))
	}
	return responses, nil
}

// notify reports the distinct workers and weeks touched by entries.
func (s *ScheduleServiceImpl) notify(entries ...schedule.Entry) {
	if s.notifier == nil {
		return
	}

	var change schedule.Change
	seenWorkers := make(map[string]bool)
	seenWeeks := make(map[string]bool)
	for _, e := range entries {
		if !seenWorkers[e.WorkerID] {
			seenWorkers[e.WorkerID] = true
			change.WorkerIDs = append(change.WorkerIDs, e.WorkerID)
		}

		ws := e.WeekStart()
		key := "template"
		if ws != nil {
			key = ws.Format(time.DateOnly)
		}
		if !seenWeeks[key] {
			seenWeeks[key] = true
			change.WeekStarts = append(change.WeekStarts, ws)
		}
	}

	slog.Debug("schedule changed", "workers", change.WorkerIDs, "weeks", len(change.WeekStarts))
	s.notifier.Notify(change)
}

func NewScheduleService(entryRepo schedule.EntryRepository, workerRepo worker.WorkerRepository, notifier schedule.ChangeNotifier) *ScheduleServiceImpl {
	return &ScheduleServiceImpl{
		EntryRepository: entryRepo,
		workerRepo:      workerRepo,
		notifier:        notifier,
	}
}
