package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"mpesa-recon/internal/model"
	"mpesa-recon/internal/service"
	"mpesa-recon/pkg/logger"
)

// ReconcileHandler handles the unmatched-transaction deposit endpoint and
// on-demand reconciliation passes
type ReconcileHandler struct {
	txns    service.UnmatchedStore
	matcher *service.Matcher
	logger  *logger.Logger
}

// NewReconcileHandler creates a new reconcile handler
func NewReconcileHandler(txns service.UnmatchedStore, matcher *service.Matcher, log *logger.Logger) *ReconcileHandler {
	return &ReconcileHandler{
		txns:    txns,
		matcher: matcher,
		logger:  log,
	}
}

// IngestUnmatched handles POST /api/v1/unmatched, the deposit endpoint for
// the callback-ingestion collaborator. Redelivery of the same transaction
// code is acknowledged without creating a second row.
func (h *ReconcileHandler) IngestUnmatched(w http.ResponseWriter, r *http.Request) {
	var req model.UnmatchedIngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendErrorResponse(w, "ERR_INVALID_BODY", "Invalid JSON body", http.StatusBadRequest)
		return
	}

	if req.TrxCode == "" {
		sendErrorResponse(w, "ERR_MISSING_PARAMETER", "trx_code is required", http.StatusBadRequest)
		return
	}
	if req.Amount.IsZero() || req.Amount.IsNegative() {
		sendErrorResponse(w, "ERR_INVALID_PARAMETER", "amount must be positive", http.StatusBadRequest)
		return
	}
	if req.ReceivedAt.IsZero() {
		req.ReceivedAt = time.Now()
	}

	inserted, err := h.txns.Ingest(req.TrxCode, req.Amount, req.ReceivedAt)
	if err != nil {
		h.logger.WithTrxCode(req.TrxCode).Error("Failed to ingest unmatched transaction", "error", err)
		code, status := mapError(err)
		sendErrorResponse(w, code, err.Error(), status)
		return
	}

	if !inserted {
		sendSuccessResponse(w, "Transaction already ingested", nil)
		return
	}

	h.logger.WithTrxCode(req.TrxCode).Info("Unmatched transaction ingested",
		"amount", req.Amount.String(),
	)

	sendSuccessResponse(w, "Transaction ingested", nil)
}

// RunNow handles POST /api/v1/reconcile, an on-demand matcher pass
func (h *ReconcileHandler) RunNow(w http.ResponseWriter, r *http.Request) {
	matched, err := h.matcher.RunOnce()
	if err != nil {
		h.logger.Error("On-demand reconciliation failed", "error", err)
		code, status := mapError(err)
		sendErrorResponse(w, code, err.Error(), status)
		return
	}

	sendSuccessResponse(w, "Reconciliation pass completed", map[string]interface{}{
		"matched": matched,
	})
}
