package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/validator"
)

// getIntQueryParam gets an int query parameter with a default value
func getIntQueryParam(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return intVal
}

// getBoolQueryParam gets a bool query parameter with a default value
func getBoolQueryParam(r *http.Request, key string, defaultVal bool) bool {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	return val == "true" || val == "1"
}

func getStringQueryParam(r *http.Request, key string) *string {
	val := r.URL.Query().Get(key)
	if val == "" {
		return nil
	}
	return &val
}

// getTimeRange reads "from" and "to" as RFC 3339 instants or YYYY-MM-DD dates.
func getTimeRange(r *http.Request) (from, to *time.Time, err error) {
	var errs validator.ValidationErrors
	parse := func(key string) *time.Time {
		val := r.URL.Query().Get(key)
		if val == "" {
			return nil
		}
		if t, err := time.Parse(time.RFC3339, val); err == nil {
			return &t
		}
		if t, ok := validator.IsValidDate(val); ok {
			return &t
		}
		errs = append(errs, validator.ValidationError{
			Field:   key,
			Message: key + " must be an RFC 3339 timestamp or YYYY-MM-DD",
		})
		return nil
	}

	from, to = parse("from"), parse("to")
	if len(errs) > 0 {
		return nil, nil, errs
	}
	return from, to, nil
}
