package offline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cmlabs-hris/attendance-ledger/internal/domain/mark"
	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/apperror"
)

// ErrReplayHalted means a transient failure stopped the replay. The failed
// item and everything after it are still queued; retry later.
var ErrReplayHalted = apperror.New(apperror.ErrTransient, "replay halted")

type Accepted struct {
	LocalID string              `json:"localId"`
	Result  mark.SubmitResponse `json:"result"`
}

type Rejected struct {
	LocalID string `json:"localId"`
	Code    string `json:"code"`
	Reason  string `json:"reason"`
}

type ReplayReport struct {
	Accepted  []Accepted `json:"accepted"`
	Rejected  []Rejected `json:"rejected"`
	Remaining int        `json:"remaining"`
}

type outcome int

const (
	outcomeTransient outcome = iota
	outcomeConsent
	outcomePermanent
)

// Replayer drains a Queue through a Submitter, one item at a time.
type Replayer struct {
	queue     *Queue
	submitter Submitter

	// DropRejected removes permanently refused items instead of keeping
	// them as rejected for manual resolution.
	DropRejected bool
}

func NewReplayer(queue *Queue, submitter Submitter) *Replayer {
	return &Replayer{queue: queue, submitter: submitter}
}

// Replay submits pending items oldest first. Items are never sent in
// parallel, and the first transient failure stops the loop so later marks
// cannot overtake an earlier one. Each item is sent under its local id as
// client ref, so a mark the server stored before a lost response is not
// appended twice.
func (r *Replayer) Replay(ctx context.Context) (ReplayReport, error) {
	items, err := r.queue.List(ctx)
	if err != nil {
		return ReplayReport{}, err
	}

	var report ReplayReport
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			report.Remaining = len(items) - i
			return report, fmt.Errorf("%w: %w", ErrReplayHalted, err)
		}

		req := item.Request
		if req.ClientRef == "" {
			req.ClientRef = item.LocalID
		}

		result, err := r.submitter.Submit(ctx, req)
		if err != nil && classify(err) == outcomeConsent {
			retry := req
			retry.ConsentAccepted = true
			slog.Info("retrying queued mark with consent", "local_id", item.LocalID)
			result, err = r.submitter.Submit(ctx, retry)
		}

		if err == nil {
			if err := r.queue.Dequeue(ctx, item.LocalID); err != nil {
				return report, fmt.Errorf("dequeue accepted mark %s: %w", item.LocalID, err)
			}
			report.Accepted = append(report.Accepted, Accepted{LocalID: item.LocalID, Result: result})
			continue
		}

		if classify(err) == outcomeTransient {
			if recErr := r.queue.recordAttempt(ctx, item.LocalID, err.Error()); recErr != nil {
				slog.Warn("failed to record replay attempt", "local_id", item.LocalID, "error", recErr)
			}
			report.Remaining = len(items) - i
			slog.Warn("replay halted", "local_id", item.LocalID, "remaining", report.Remaining, "error", err)
			return report, fmt.Errorf("%w at %s: %w", ErrReplayHalted, item.LocalID, err)
		}

		rejected := Rejected{LocalID: item.LocalID, Code: rejectionCode(err), Reason: err.Error()}
		if r.DropRejected {
			err = r.queue.Dequeue(ctx, item.LocalID)
		} else {
			err = r.queue.MarkRejected(ctx, item.LocalID, rejected.Code+": "+rejected.Reason)
		}
		if err != nil {
			return report, fmt.Errorf("set aside rejected mark %s: %w", item.LocalID, err)
		}
		report.Rejected = append(report.Rejected, rejected)
	}

	return report, nil
}

// classify sorts a submission error. Anything unrecognised counts as
// transient so the item stays queued.
func classify(err error) outcome {
	var rejection *mark.RejectionError
	if errors.As(err, &rejection) {
		if rejection.Code == mark.CodeConsentMissing {
			return outcomeConsent
		}
		return outcomePermanent
	}
	if apperror.IsRetryable(err) {
		return outcomeTransient
	}
	if errors.Is(err, ErrRefused) {
		return outcomePermanent
	}

	switch apperror.KindOf(err) {
	case apperror.KindValidation, apperror.KindAuthorization, apperror.KindNotFound, apperror.KindIntegrity:
		return outcomePermanent
	default:
		return outcomeTransient
	}
}

func rejectionCode(err error) string {
	var rejection *mark.RejectionError
	if errors.As(err, &rejection) {
		return string(rejection.Code)
	}
	if errors.Is(err, ErrRefused) {
		return "REFUSED"
	}
	return string(apperror.KindOf(err))
}
