package mark

import (
	"fmt"
	"strings"

	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/apperror"
)

// RejectionCode is the stable reason a submission was refused.
type RejectionCode string

const (
	CodeConsentMissing    RejectionCode = "CONSENT_MISSING"
	CodeSiteNotAccessible RejectionCode = "SITE_NOT_ACCESSIBLE"
	CodeSiteInactive      RejectionCode = "SITE_INACTIVE"
	CodeGeoRequired       RejectionCode = "GEO_REQUIRED"
	CodeOutsideGeofence   RejectionCode = "OUTSIDE_GEOFENCE"
	CodePersonInactive    RejectionCode = "PERSON_INACTIVE"
)

var RejectionCodeValues = []string{
	string(CodeConsentMissing),
	string(CodeSiteNotAccessible),
	string(CodeSiteInactive),
	string(CodeGeoRequired),
	string(CodeOutsideGeofence),
	string(CodePersonInactive),
}

// RejectionError refuses a submission before anything is written.
type RejectionError struct {
	Code    RejectionCode
	Message string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Actionable reports whether the user can fix the cause and resubmit
// (move closer, enable location, accept consent).
func (e *RejectionError) Actionable() bool {
	switch e.Code {
	case CodeConsentMissing, CodeGeoRequired, CodeOutsideGeofence:
		return true
	default:
		return false
	}
}

func Reject(code RejectionCode, message string) *RejectionError {
	return &RejectionError{Code: code, Message: message}
}

var (
	ErrMarkNotFound = apperror.New(apperror.ErrNotFound, "mark not found")
)

// IntegrityError reports a chain that no longer verifies. It is never retried.
type IntegrityError struct {
	WorkerID string
	Issues   []ChainIssue
}

func (e *IntegrityError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, fmt.Sprintf("%s@%s", issue.IssueKind, issue.MarkID))
	}
	return fmt.Sprintf("ledger integrity failure for worker %s: %s", e.WorkerID, strings.Join(parts, ", "))
}

func (e *IntegrityError) Unwrap() error { return apperror.ErrIntegrity }
