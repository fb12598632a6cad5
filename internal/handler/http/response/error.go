package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/attendance-ledger/internal/domain/mark"
	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/apperror"
	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	// Submission refusals keep their stable code so clients can act on them
	var rejection *mark.RejectionError
	if errors.As(err, &rejection) {
		Rejected(w, rejection)
		return
	}

	switch apperror.KindOf(err) {
	case apperror.KindAuthorization:
		Forbidden(w, err.Error())
	case apperror.KindNotFound:
		NotFound(w, err.Error())
	case apperror.KindConflict:
		Conflict(w, err.Error())
	case apperror.KindIntegrity:
		slog.Error("ledger integrity failure", "error", err)
		IntegrityFailure(w, err.Error())
	case apperror.KindTransient:
		slog.Error("infrastructure failure", "error", err)
		ServiceUnavailable(w, "Temporarily unavailable, retry later")

	// Default
	default:
		slog.Error("unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}

func Rejected(w http.ResponseWriter, rejection *mark.RejectionError) {
	details := map[string]string{"actionable": "false"}
	if rejection.Actionable() {
		details["actionable"] = "true"
	}
	writeJSON(w, http.StatusUnprocessableEntity, Response{
		Success: false,
		Error: &ErrorDetail{
			Code:    string(rejection.Code),
			Message: rejection.Message,
			Details: details,
		},
	})
}
