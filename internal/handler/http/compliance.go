package http

import (
	"encoding/json"
	"net/http"

	"github.com/cmlabs-hris/attendance-ledger/internal/domain/anomaly"
	"github.com/cmlabs-hris/attendance-ledger/internal/domain/compliance"
	"github.com/cmlabs-hris/attendance-ledger/internal/handler/http/response"
)

type ComplianceHandler interface {
	Recompute(w http.ResponseWriter, r *http.Request)
	ListAlerts(w http.ResponseWriter, r *http.Request)
	ListAnomalies(w http.ResponseWriter, r *http.Request)
}

type complianceHandlerImpl struct {
	complianceService compliance.ComplianceService
	anomalyService    anomaly.AnomalyService
}

func NewComplianceHandler(complianceService compliance.ComplianceService, anomalyService anomaly.AnomalyService) ComplianceHandler {
	return &complianceHandlerImpl{
		complianceService: complianceService,
		anomalyService:    anomalyService,
	}
}

// Recompute runs a recomputation synchronously, for operators who want the
// result now instead of waiting for the background dispatcher.
func (h *complianceHandlerImpl) Recompute(w http.ResponseWriter, r *http.Request) {
	var req compliance.RecomputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request format", nil)
		return
	}
	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.complianceService.Recompute(r.Context(), req.WorkerID, req.Week())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// ListAlerts implements ComplianceHandler.
func (h *complianceHandlerImpl) ListAlerts(w http.ResponseWriter, r *http.Request) {
	from, to, err := getTimeRange(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	filter := compliance.AlertFilter{
		WorkerID: getStringQueryParam(r, "worker_id"),
		Kind:     getStringQueryParam(r, "kind"),
		OpenOnly: getBoolQueryParam(r, "open", true),
		From:     from,
		To:       to,
		Limit:    getIntQueryParam(r, "limit", 100),
	}

	alerts, err := h.complianceService.ListAlerts(r.Context(), filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMeta(w, alerts, &response.Meta{Limit: filter.Limit, TotalItems: int64(len(alerts))})
}

// ListAnomalies implements ComplianceHandler.
func (h *complianceHandlerImpl) ListAnomalies(w http.ResponseWriter, r *http.Request) {
	from, to, err := getTimeRange(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	filter := anomaly.AnomalyFilter{
		WorkerID: getStringQueryParam(r, "worker_id"),
		Kind:     getStringQueryParam(r, "kind"),
		From:     from,
		To:       to,
		Limit:    getIntQueryParam(r, "limit", 100),
	}

	anomalies, err := h.anomalyService.List(r.Context(), filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMeta(w, anomalies, &response.Meta{Limit: filter.Limit, TotalItems: int64(len(anomalies))})
}
