package offline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/cmlabs-hris/attendance-ledger/internal/domain/mark"
	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/apperror"
	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/validator"
)

// Submitter sends one mark through the ledger's submission contract.
// Refusals are reported as *mark.RejectionError or apperror kinds so the
// replayer can tell permanent from transient outcomes.
type Submitter interface {
	Submit(ctx context.Context, req mark.SubmitRequest) (mark.SubmitResponse, error)
}

// ErrRefused is a client error the server gave no specific code for.
var ErrRefused = errors.New("refused by server")

const marksPath = "/api/v1/marks"

// HTTPSubmitter posts marks to the attendance API with a bearer token.
type HTTPSubmitter struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewHTTPSubmitter(baseURL, token string) *HTTPSubmitter {
	return &HTTPSubmitter{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func (s *HTTPSubmitter) Submit(ctx context.Context, req mark.SubmitRequest) (mark.SubmitResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return mark.SubmitResponse{}, fmt.Errorf("encode mark: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+marksPath, bytes.NewReader(body))
	if err != nil {
		return mark.SubmitResponse{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if s.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := s.Client.Do(httpReq)
	if err != nil {
		return mark.SubmitResponse{}, apperror.Transient(fmt.Errorf("submit mark: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return mark.SubmitResponse{}, apperror.Transient(fmt.Errorf("read response: %w", err))
	}

	switch {
	case resp.StatusCode >= 500, resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode == http.StatusRequestTimeout:
		return mark.SubmitResponse{}, apperror.Transient(fmt.Errorf("server answered %d", resp.StatusCode))
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 400 {
			return mark.SubmitResponse{}, fmt.Errorf("%w: status %d", ErrRefused, resp.StatusCode)
		}
		return mark.SubmitResponse{}, apperror.Transient(fmt.Errorf("decode response: %w", err))
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var out mark.SubmitResponse
		if err := json.Unmarshal(env.Data, &out); err != nil {
			return mark.SubmitResponse{}, apperror.Transient(fmt.Errorf("decode submit result: %w", err))
		}
		return out, nil
	}

	return mark.SubmitResponse{}, refusal(resp.StatusCode, env)
}

// refusal turns a 4xx envelope back into the error the server started from.
func refusal(status int, env envelope) error {
	code, message := "", http.StatusText(status)
	var details map[string]string
	if env.Error != nil {
		code, message, details = env.Error.Code, env.Error.Message, env.Error.Details
	}

	if validator.IsInSlice(code, mark.RejectionCodeValues) {
		return mark.Reject(mark.RejectionCode(code), message)
	}

	switch status {
	case http.StatusConflict:
		// The chain moved under a concurrent write or is being repaired;
		// the same mark may be accepted later.
		return apperror.Transient(fmt.Errorf("%w: %d %s: %s", ErrRefused, status, code, message))
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperror.New(apperror.ErrAuthorization, message)
	case http.StatusNotFound:
		return apperror.New(apperror.ErrNotFound, message)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		if len(details) > 0 {
			return detailsToErrors(details)
		}
	}
	return fmt.Errorf("%w: %d %s: %s", ErrRefused, status, code, message)
}

func detailsToErrors(details map[string]string) validator.ValidationErrors {
	fields := make([]string, 0, len(details))
	for f := range details {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	errs := make(validator.ValidationErrors, 0, len(fields))
	for _, f := range fields {
		errs = append(errs, validator.ValidationError{Field: f, Message: details[f]})
	}
	return errs
}
