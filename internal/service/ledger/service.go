package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/attendance-ledger/internal/domain/anomaly"
	"github.com/cmlabs-hris/attendance-ledger/internal/domain/mark"
	"github.com/cmlabs-hris/attendance-ledger/internal/domain/site"
	"github.com/cmlabs-hris/attendance-ledger/internal/domain/worker"
	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/geofence"
	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/keylock"
	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/metrics"
	"github.com/google/uuid"
)

// Evaluator inspects a mark right after it was committed.
type Evaluator interface {
	OnMarkAppended(ctx context.Context, m mark.Mark, previous *mark.Mark) ([]anomaly.Anomaly, error)
}

type LedgerServiceImpl struct {
	tx database.Transactor
	mark.MarkRepository
	worker.WorkerRepository
	site.SiteRepository
	evaluator Evaluator
	locks     *keylock.Locker
	now       func() time.Time
}

// Submit implements mark.LedgerService.
func (s *LedgerServiceImpl) Submit(ctx context.Context, actor worker.Actor, req mark.SubmitRequest) (mark.SubmitResponse, error) {
	if actor.WorkerID == "" {
		return mark.SubmitResponse{}, worker.ErrActorMissing
	}
	if !actor.Can(worker.PermissionMarkCreate) {
		return mark.SubmitResponse{}, worker.ErrPermissionRequired
	}
	if err := req.Validate(); err != nil {
		return mark.SubmitResponse{}, err
	}

	if req.ClientRef != "" {
		existing, err := s.MarkRepository.FindByClientRef(ctx, actor.WorkerID, req.DeviceID, req.ClientRef)
		if err != nil {
			return mark.SubmitResponse{}, err
		}
		if existing != nil {
			metrics.MarksReplayed.Inc()
			return submitResponse(*existing), nil
		}
	}

	candidate, err := s.admit(ctx, actor.WorkerID, req)
	if err != nil {
		var rejection *mark.RejectionError
		if errors.As(err, &rejection) {
			metrics.MarksRejected.WithLabelValues(string(rejection.Code)).Inc()
		}
		return mark.SubmitResponse{}, err
	}

	appended, previous, replayed, err := s.Append(ctx, candidate)
	if err != nil {
		return mark.SubmitResponse{}, err
	}
	if replayed {
		metrics.MarksReplayed.Inc()
		return submitResponse(appended), nil
	}

	if s.evaluator != nil {
		if _, err := s.evaluator.OnMarkAppended(ctx, appended, previous); err != nil {
			slog.Error("real-time evaluation failed",
				"worker_id", appended.WorkerID,
				"mark_id", appended.ID,
				"error", err,
			)
		}
	}

	return submitResponse(appended), nil
}

func submitResponse(m mark.Mark) mark.SubmitResponse {
	return mark.SubmitResponse{
		ID:               m.ID,
		ServerTimestamp:  m.ServerTimestamp,
		HashSelf:         m.HashSelf,
		ReceiptReference: mark.ReceiptReference(m.HashSelf),
		GeoStatus:        m.GeoStatus,
	}
}

// admit runs every pre-append check and builds the candidate mark.
// Nothing but a consent acknowledgment is written before the append.
func (s *LedgerServiceImpl) admit(ctx context.Context, workerID string, req mark.SubmitRequest) (mark.Mark, error) {
	w, err := s.WorkerRepository.GetByID(ctx, workerID)
	if err != nil {
		return mark.Mark{}, err
	}
	if !w.Active {
		return mark.Mark{}, mark.Reject(mark.CodePersonInactive, "worker is inactive")
	}

	if !w.HasConsent() {
		if !req.ConsentAccepted {
			return mark.Mark{}, mark.Reject(mark.CodeConsentMissing, "location consent must be accepted before marking")
		}
		if err := s.WorkerRepository.RecordConsent(ctx, w.ID, s.now().UTC()); err != nil {
			return mark.Mark{}, fmt.Errorf("failed to record consent: %w", err)
		}
	}

	st, err := s.SiteRepository.GetByID(ctx, req.SiteID)
	if err != nil {
		return mark.Mark{}, err
	}
	assigned, err := s.SiteRepository.IsAssigned(ctx, st.ID, w.ID)
	if err != nil {
		return mark.Mark{}, err
	}
	if !assigned {
		return mark.Mark{}, mark.Reject(mark.CodeSiteNotAccessible, "worker is not assigned to this site")
	}
	if !st.Active {
		return mark.Mark{}, mark.Reject(mark.CodeSiteInactive, "site is inactive")
	}

	candidate := mark.Mark{
		WorkerID:  w.ID,
		SiteID:    st.ID,
		EventType: req.EventType,
		Geo:       req.Geo,
		DeviceID:  req.DeviceID,
		Note:      req.Note,
	}
	if req.ClientRef != "" {
		ref := req.ClientRef
		candidate.ClientRef = &ref
	}
	if req.ClientTimestamp != nil {
		ct := req.ClientTimestamp.UTC().Truncate(mark.TimestampPrecision)
		candidate.ClientTimestamp = &ct
	}

	if fence := st.Fence(); fence.Enabled() {
		if req.Geo == nil {
			return mark.Mark{}, mark.Reject(mark.CodeGeoRequired, "site requires a location reading")
		}
		result := geofence.Classify(fence, req.Geo)
		if result.Status == geofence.StatusFail {
			return mark.Mark{}, mark.Reject(mark.CodeOutsideGeofence,
				fmt.Sprintf("location is %.0f m from the site, allowed radius is %.0f m", *result.DistanceMeters, result.RadiusMeters))
		}
		candidate.GeoStatus = &result.Status
	}

	id, err := uuid.NewV7()
	if err != nil {
		return mark.Mark{}, fmt.Errorf("generate mark id: %w", err)
	}
	candidate.ID = id.String()

	return candidate, nil
}

// Append links candidate to the end of its worker's chain. The in-process
// key lock keeps same-worker requests in this instance from queueing on the
// database; the advisory lock serializes instances. A candidate whose client
// ref the device already used is not written; the stored mark comes back
// with replayed set.
func (s *LedgerServiceImpl) Append(ctx context.Context, candidate mark.Mark) (appended mark.Mark, previous *mark.Mark, replayed bool, err error) {
	start := time.Now()
	defer func() { metrics.AppendDuration.Observe(time.Since(start).Seconds()) }()

	unlock, err := s.locks.Lock(ctx, candidate.WorkerID)
	if err != nil {
		return mark.Mark{}, nil, false, err
	}
	defer unlock()

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.MarkRepository.LockChain(ctx, candidate.WorkerID); err != nil {
			return err
		}

		if candidate.ClientRef != nil {
			existing, err := s.MarkRepository.FindByClientRef(ctx, candidate.WorkerID, candidate.DeviceID, *candidate.ClientRef)
			if err != nil {
				return err
			}
			if existing != nil {
				appended, replayed = *existing, true
				return nil
			}
		}

		tail, err := s.MarkRepository.Tail(ctx, candidate.WorkerID)
		if err != nil {
			return err
		}

		m := candidate
		m.ServerTimestamp = nextTimestamp(s.now(), tail)
		m.HashPrev = nil
		if tail != nil {
			prev := tail.HashSelf
			m.HashPrev = &prev
		}

		m.HashSelf, err = ComputeHash(m.Payload(), m.HashPrev)
		if err != nil {
			return err
		}

		if err := s.MarkRepository.Insert(ctx, m); err != nil {
			return err
		}

		appended, previous = m, tail
		return nil
	})
	if err != nil {
		return mark.Mark{}, nil, false, fmt.Errorf("append mark: %w", err)
	}
	if replayed {
		return appended, nil, true, nil
	}

	metrics.MarksAppended.WithLabelValues(string(appended.EventType)).Inc()
	return appended, previous, false, nil
}

// nextTimestamp keeps server timestamps strictly increasing along a chain
// at storage precision, even if the clock stalls or steps back.
func nextTimestamp(now time.Time, tail *mark.Mark) time.Time {
	ts := now.UTC().Truncate(mark.TimestampPrecision)
	if tail != nil && !ts.After(tail.ServerTimestamp) {
		ts = tail.ServerTimestamp.UTC().Truncate(mark.TimestampPrecision).Add(mark.TimestampPrecision)
	}
	return ts
}

// ListMarks implements mark.LedgerService.
func (s *LedgerServiceImpl) ListMarks(ctx context.Context, actor worker.Actor, filter mark.MarkFilter) ([]mark.MarkResponse, error) {
	if actor.WorkerID == "" {
		return nil, worker.ErrActorMissing
	}
	if filter.WorkerID == "" {
		filter.WorkerID = actor.WorkerID
	}

	required := worker.PermissionMarkViewOwn
	if filter.WorkerID != actor.WorkerID {
		required = worker.PermissionMarkViewAll
	}
	if !actor.Can(required) {
		return nil, worker.ErrPermissionRequired
	}

	if err := filter.Validate(); err != nil {
		return nil, err
	}

	var (
		marks []mark.Mark
		err   error
	)
	if filter.From == nil && filter.To == nil {
		marks, err = s.MarkRepository.ListByWorker(ctx, filter.WorkerID)
	} else {
		from := time.Time{}
		if filter.From != nil {
			from = *filter.From
		}
		to := s.now().AddDate(100, 0, 0)
		if filter.To != nil {
			to = *filter.To
		}
		marks, err = s.MarkRepository.ListBetween(ctx, filter.WorkerID, from, to)
	}
	if err != nil {
		return nil, err
	}

	out := make([]mark.MarkResponse, 0, len(marks))
	for _, m := range marks {
		out = append(out, mark.ToResponse(m))
	}
	return out, nil
}

// VerifyChain implements mark.LedgerService.
func (s *LedgerServiceImpl) VerifyChain(ctx context.Context, workerID string) (mark.ChainReport, error) {
	marks, err := s.MarkRepository.ListByWorker(ctx, workerID)
	if err != nil {
		return mark.ChainReport{}, err
	}

	report := mark.ChainReport{
		WorkerID:   workerID,
		TotalMarks: len(marks),
		Issues:     []mark.ChainIssue{},
	}

	var expectedPrev *string
	for _, m := range marks {
		if !sameHash(m.HashPrev, expectedPrev) {
			report.Issues = append(report.Issues, mark.ChainIssue{WorkerID: workerID, MarkID: m.ID, IssueKind: mark.IssueBrokenLink})
		}

		recomputed, err := ComputeHash(m.Payload(), m.HashPrev)
		if err != nil {
			return mark.ChainReport{}, fmt.Errorf("recompute hash of mark %s: %w", m.ID, err)
		}
		if recomputed != m.HashSelf {
			report.Issues = append(report.Issues, mark.ChainIssue{WorkerID: workerID, MarkID: m.ID, IssueKind: mark.IssueIntegrityFailure})
		}

		self := m.HashSelf
		expectedPrev = &self
	}

	report.Valid = len(report.Issues) == 0
	if report.Valid {
		metrics.ChainVerifications.WithLabelValues("valid").Inc()
	} else {
		metrics.ChainVerifications.WithLabelValues("broken").Inc()
	}
	return report, nil
}

// VerifyAll implements mark.LedgerService.
func (s *LedgerServiceImpl) VerifyAll(ctx context.Context) (mark.VerificationReport, error) {
	workers, err := s.MarkRepository.WorkersWithMarks(ctx)
	if err != nil {
		return mark.VerificationReport{}, err
	}

	report := mark.VerificationReport{PerMarkIssues: []mark.ChainIssue{}}
	for _, workerID := range workers {
		chain, err := s.VerifyChain(ctx, workerID)
		if err != nil {
			return mark.VerificationReport{}, fmt.Errorf("verify chain of worker %s: %w", workerID, err)
		}
		report.Add(chain)
	}
	return report, nil
}

// EnsureIntact implements mark.LedgerService.
func (s *LedgerServiceImpl) EnsureIntact(ctx context.Context, workerID string) error {
	report, err := s.VerifyChain(ctx, workerID)
	if err != nil {
		return err
	}
	if !report.Valid {
		return &mark.IntegrityError{WorkerID: workerID, Issues: report.Issues}
	}
	return nil
}

func sameHash(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func NewLedgerService(
	tx database.Transactor,
	markRepo mark.MarkRepository,
	workerRepo worker.WorkerRepository,
	siteRepo site.SiteRepository,
	evaluator Evaluator,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		tx:               tx,
		MarkRepository:   markRepo,
		WorkerRepository: workerRepo,
		SiteRepository:   siteRepo,
		evaluator:        evaluator,
		locks:            keylock.New(),
		now:              time.Now,
	}
}
