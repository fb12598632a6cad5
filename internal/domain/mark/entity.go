package mark

import (
	"strings"
	"time"

	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/geofence"
)

type EventType string

const (
	EventIn  EventType = "IN"
	EventOut EventType = "OUT"
)

// Mark is one link in a worker's ledger. It is written once and never updated.
type Mark struct {
	ID              string
	WorkerID        string
	SiteID          string
	EventType       EventType
	ServerTimestamp time.Time
	ClientTimestamp *time.Time
	Geo             *geofence.Point
	GeoStatus       *geofence.Status // nil when the site has no geofence
	DeviceID        string
	Note            *string
	HashPrev        *string
	HashSelf        string
	ClientRef       *string // not hashed
	CreatedAt       time.Time
}

// Payload is the hashed content of a mark. Field order is irrelevant; the
// ledger canonicalizes it before hashing.
type Payload struct {
	ID              string          `json:"id"`
	WorkerID        string          `json:"worker_id"`
	SiteID          string          `json:"site_id"`
	EventType       EventType       `json:"event_type"`
	ServerTimestamp string          `json:"server_timestamp"`
	ClientTimestamp *string         `json:"client_timestamp,omitempty"`
	Geo             *geofence.Point `json:"geo,omitempty"`
	GeoStatus       *string         `json:"geo_status,omitempty"`
	DeviceID        string          `json:"device_id"`
	Note            *string         `json:"note,omitempty"`
}

// TimestampPrecision is the resolution marks are stored and hashed at.
const TimestampPrecision = time.Microsecond

func formatTimestamp(t time.Time) string {
	return t.UTC().Truncate(TimestampPrecision).Format(time.RFC3339Nano)
}

func (m Mark) Payload() Payload {
	p := Payload{
		ID:              m.ID,
		WorkerID:        m.WorkerID,
		SiteID:          m.SiteID,
		EventType:       m.EventType,
		ServerTimestamp: formatTimestamp(m.ServerTimestamp),
		Geo:             m.Geo,
		DeviceID:        m.DeviceID,
		Note:            m.Note,
	}
	if m.ClientTimestamp != nil {
		ts := formatTimestamp(*m.ClientTimestamp)
		p.ClientTimestamp = &ts
	}
	if m.GeoStatus != nil {
		s := string(*m.GeoStatus)
		p.GeoStatus = &s
	}
	return p
}

// IsBreak reports whether the mark's note starts with one of keywords, case-insensitively.
func (m Mark) IsBreak(keywords []string) bool {
	if m.Note == nil {
		return false
	}
	note := strings.ToLower(strings.TrimSpace(*m.Note))
	for _, k := range keywords {
		if k != "" && strings.HasPrefix(note, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

// ReceiptReference is the short human-facing reference for a mark.
func ReceiptReference(hashSelf string) string {
	n := 12
	if len(hashSelf) < n {
		n = len(hashSelf)
	}
	return "RCPT-" + strings.ToUpper(hashSelf[:n])
}

type IssueKind string

const (
	IssueBrokenLink       IssueKind = "BROKEN_LINK"
	IssueIntegrityFailure IssueKind = "INTEGRITY_FAILURE"
)

type ChainIssue struct {
	WorkerID  string    `json:"worker"`
	MarkID    string    `json:"mark"`
	IssueKind IssueKind `json:"issueKind"`
}

// ChainReport is the verification outcome for one worker.
type ChainReport struct {
	WorkerID   string       `json:"worker"`
	TotalMarks int          `json:"totalMarks"`
	Valid      bool         `json:"valid"`
	Issues     []ChainIssue `json:"issues"`
}

// VerificationReport aggregates chain reports across workers.
type VerificationReport struct {
	TotalMarks    int          `json:"totalMarks"`
	ValidChains   int          `json:"validChains"`
	BrokenChains  int          `json:"brokenChains"`
	PerMarkIssues []ChainIssue `json:"perMarkIssues"`
}

// Add folds a single chain report into the aggregate.
func (r *VerificationReport) Add(c ChainReport) {
	r.TotalMarks += c.TotalMarks
	if c.Valid {
		r.ValidChains++
	} else {
		r.BrokenChains++
	}
	r.PerMarkIssues = append(r.PerMarkIssues, c.Issues...)
}
