package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/attendance-ledger/internal/domain/compliance"
	"github.com/cmlabs-hris/attendance-ledger/internal/domain/mark"
	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/metrics"
	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/sse"
)

// EventChainIntegrity is the SSE event raised for a chain that failed verification.
const EventChainIntegrity = "chain_integrity"

// LedgerJobs verifies every chain and raises an alert for each broken one.
// It only reports; chains are never repaired.
type LedgerJobs struct {
	ledger mark.LedgerService
	alerts compliance.AlertRepository
	hub    *sse.Hub
	now    func() time.Time
}

func NewLedgerJobs(ledger mark.LedgerService, alerts compliance.AlertRepository, hub *sse.Hub) *LedgerJobs {
	return &LedgerJobs{
		ledger: ledger,
		alerts: alerts,
		hub:    hub,
		now:    time.Now,
	}
}

func (j *LedgerJobs) RegisterJobs(scheduler *Scheduler, interval time.Duration) {
	scheduler.AddJob("verify_chains", interval, j.VerifyChains)
}

// VerifyChains runs a full verification. Each broken chain gets one
// CHAIN_INTEGRITY_FAILURE alert per verification day listing its issues.
func (j *LedgerJobs) VerifyChains(ctx context.Context) error {
	report, err := j.ledger.VerifyAll(ctx)
	if err != nil {
		return fmt.Errorf("verify chains: %w", err)
	}

	slog.Info("Cron: chain verification finished",
		"total_marks", report.TotalMarks,
		"valid_chains", report.ValidChains,
		"broken_chains", report.BrokenChains,
	)
	if report.BrokenChains == 0 {
		return nil
	}

	byWorker := make(map[string][]mark.ChainIssue)
	var order []string
	for _, issue := range report.PerMarkIssues {
		if _, seen := byWorker[issue.WorkerID]; !seen {
			order = append(order, issue.WorkerID)
		}
		byWorker[issue.WorkerID] = append(byWorker[issue.WorkerID], issue)
	}

	day := j.now().UTC().Truncate(24 * time.Hour)
	alerts := make([]compliance.Alert, 0, len(order))
	for _, workerID := range order {
		issues := byWorker[workerID]
		details := make([]map[string]any, 0, len(issues))
		for _, issue := range issues {
			details = append(details, map[string]any{"mark_id": issue.MarkID, "issue": string(issue.IssueKind)})
		}
		alerts = append(alerts, compliance.Alert{
			WorkerID:  workerID,
			Kind:      compliance.KindChainIntegrityFailure,
			Timestamp: day,
			Metadata: map[string]any{
				"verified_at": j.now().UTC().Format(time.RFC3339),
				"issues":      details,
			},
		})
		slog.Error("Cron: ledger chain failed verification", "worker_id", workerID, "issues", len(issues))
	}

	if err := j.alerts.Upsert(ctx, alerts); err != nil {
		return fmt.Errorf("store integrity alerts: %w", err)
	}
	metrics.ComplianceAlertsEmitted.WithLabelValues(string(compliance.KindChainIntegrityFailure)).Add(float64(len(alerts)))
	if j.hub != nil {
		for _, a := range alerts {
			j.hub.Publish(sse.Event{WorkerID: a.WorkerID, Event: EventChainIntegrity, Data: compliance.ToResponse(a)})
		}
	}
	return nil
}
