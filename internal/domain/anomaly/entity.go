package anomaly

import "time"

type Kind string

const (
	KindMissingOut Kind = "MISSING_OUT"
	KindMissingIn  Kind = "MISSING_IN"
	KindOvertime   Kind = "OVERTIME"
	KindNoBreak    Kind = "NO_BREAK"
)

var KindValues = []string{
	string(KindMissingOut),
	string(KindMissingIn),
	string(KindOvertime),
	string(KindNoBreak),
}

// Anomaly is a fire-once event derived from a freshly appended mark.
// It is never updated or resolved.
type Anomaly struct {
	ID        string         `json:"id"`
	WorkerID  string         `json:"worker_id"`
	MarkID    string         `json:"mark_id"`
	Kind      Kind           `json:"kind"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Policy holds the thresholds of the real-time evaluator. They are empirical
// and supplied by configuration.
type Policy struct {
	OvertimeGraceMinutes    int      `yaml:"overtime_grace_minutes"`
	NoBreakThresholdMinutes int      `yaml:"no_break_threshold_minutes"`
	DefaultShiftMinutes     int      `yaml:"default_shift_minutes"`
	BreakNoteKeywords       []string `yaml:"break_note_keywords"`
}

func DefaultPolicy() Policy {
	return Policy{
		OvertimeGraceMinutes:    60,
		NoBreakThresholdMinutes: 300,
		DefaultShiftMinutes:     480,
		BreakNoteKeywords:       []string{"break", "colacion", "colación", "lunch"},
	}
}
