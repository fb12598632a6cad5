// Package metrics exposes the ledger's Prometheus instruments on the default registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// MarksAppended counts marks that joined a chain, by event type.
	MarksAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_marks_appended_total",
		Help: "Marks appended to worker chains by event type",
	}, []string{"event_type"})

	// MarksReplayed counts resubmissions answered with an already stored mark.
	MarksReplayed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_marks_replayed_total",
		Help: "Mark submissions matched to an existing mark by client ref",
	})

	// MarksRejected counts refused submissions by rejection code.
	MarksRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_marks_rejected_total",
		Help: "Mark submissions rejected before append by code",
	}, []string{"code"})

	// AppendDuration tracks time spent inside the per-worker critical section.
	AppendDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledger_append_duration_seconds",
		Help:    "Duration of the lock, read tail, hash and insert sequence",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
	})

	// ChainVerifications counts verified chains by result.
	ChainVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_chain_verifications_total",
		Help: "Chain verifications by result (valid, broken)",
	}, []string{"result"})

	// ComplianceRecomputes counts schedule recomputations by result.
	ComplianceRecomputes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "compliance_recomputes_total",
		Help: "Schedule compliance recomputations by result (ok, error, deferred)",
	}, []string{"result"})

	// ComplianceAlertsEmitted counts alerts upserted by kind.
	ComplianceAlertsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "compliance_alerts_emitted_total",
		Help: "Compliance alerts upserted by kind",
	}, []string{"kind"})

	// AnomaliesDetected counts real-time anomalies by kind.
	AnomaliesDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_anomalies_total",
		Help: "Real-time anomalies raised by kind",
	}, []string{"kind"})

	// JobRuns counts background job executions by job and result.
	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "background_job_runs_total",
		Help: "Background job runs by job name and result (ok, error)",
	}, []string{"job", "result"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
