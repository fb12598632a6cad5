package compliance

import (
	"strings"
	"time"
)

type Kind string

const (
	KindWeeklyHoursExceeded      Kind = "WEEKLY_HOURS_EXCEEDED"
	KindMinRestViolation         Kind = "MIN_REST_VIOLATION"
	KindConsecutiveDaysViolation Kind = "CONSECUTIVE_DAYS_VIOLATION"
	KindSundaysOffViolation      Kind = "SUNDAYS_OFF_VIOLATION"
	// Raised by ledger verification, never resolved by schedule recomputation.
	KindChainIntegrityFailure Kind = "CHAIN_INTEGRITY_FAILURE"
)

// RecomputedKinds are owned by schedule recomputation.
var RecomputedKinds = []Kind{
	KindWeeklyHoursExceeded,
	KindMinRestViolation,
	KindConsecutiveDaysViolation,
	KindSundaysOffViolation,
}

var KindValues = []string{
	string(KindWeeklyHoursExceeded),
	string(KindMinRestViolation),
	string(KindConsecutiveDaysViolation),
	string(KindSundaysOffViolation),
	string(KindChainIntegrityFailure),
}

// Alert is keyed by (WorkerID, Kind, Timestamp).
type Alert struct {
	ID        string
	WorkerID  string
	Kind      Kind
	Timestamp time.Time
	Metadata  map[string]any
	Resolved  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Key identifies the alert for upserts.
func (a Alert) Key() string {
	return a.WorkerID + "|" + string(a.Kind) + "|" + a.Timestamp.UTC().Format(time.RFC3339)
}

// NormalizeWorkerID canonicalises an HR identifier: trimmed, upper-case,
// without dots, dashes or spaces.
func NormalizeWorkerID(id string) string {
	id = strings.ToUpper(strings.TrimSpace(id))
	return strings.NewReplacer(".", "", "-", "", " ", "").Replace(id)
}
