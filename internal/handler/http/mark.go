package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cmlabs-hris/attendance-ledger/internal/domain/mark"
	"github.com/cmlabs-hris/attendance-ledger/internal/handler/http/middleware"
	"github.com/cmlabs-hris/attendance-ledger/internal/handler/http/response"
)

type MarkHandler interface {
	Submit(w http.ResponseWriter, r *http.Request)
	ListMine(w http.ResponseWriter, r *http.Request)
	ListForWorker(w http.ResponseWriter, r *http.Request)
	VerifyChain(w http.ResponseWriter, r *http.Request)
	VerifyAll(w http.ResponseWriter, r *http.Request)
}

type markHandlerImpl struct {
	ledgerService mark.LedgerService
}

func NewMarkHandler(ledgerService mark.LedgerService) MarkHandler {
	return &markHandlerImpl{
		ledgerService: ledgerService,
	}
}

// Submit implements MarkHandler.
func (h *markHandlerImpl) Submit(w http.ResponseWriter, r *http.Request) {
	var req mark.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Debug("Failed to decode mark submission", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return
	}

	result, err := h.ledgerService.Submit(r.Context(), middleware.ActorFrom(r.Context()), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Mark recorded", result)
}

// ListMine implements MarkHandler.
func (h *markHandlerImpl) ListMine(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFrom(r.Context())
	h.list(w, r, actor.WorkerID)
}

// ListForWorker implements MarkHandler.
func (h *markHandlerImpl) ListForWorker(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, chi.URLParam(r, "workerID"))
}

func (h *markHandlerImpl) list(w http.ResponseWriter, r *http.Request, workerID string) {
	from, to, err := getTimeRange(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	marks, err := h.ledgerService.ListMarks(r.Context(), middleware.ActorFrom(r.Context()), mark.MarkFilter{
		WorkerID: workerID,
		From:     from,
		To:       to,
	})
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMeta(w, marks, &response.Meta{TotalItems: int64(len(marks))})
}

// VerifyChain implements MarkHandler. With ?strict=true a broken chain
// answers 409 instead of a report.
func (h *markHandlerImpl) VerifyChain(w http.ResponseWriter, r *http.Request) {
	workerID := chi.URLParam(r, "workerID")
	if getBoolQueryParam(r, "strict", false) {
		if err := h.ledgerService.EnsureIntact(r.Context(), workerID); err != nil {
			response.HandleError(w, err)
			return
		}
	}

	report, err := h.ledgerService.VerifyChain(r.Context(), workerID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, report)
}

// VerifyAll implements MarkHandler.
func (h *markHandlerImpl) VerifyAll(w http.ResponseWriter, r *http.Request) {
	report, err := h.ledgerService.VerifyAll(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, report)
}
