package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"mpesa-recon/internal/model"
	"mpesa-recon/internal/service"
	"mpesa-recon/pkg/logger"
)

// ManualEntryHandler handles transcribed confirmation requests
type ManualEntryHandler struct {
	entries *service.ManualEntryService
	logger  *logger.Logger
}

// NewManualEntryHandler creates a new manual entry handler
func NewManualEntryHandler(entries *service.ManualEntryService, log *logger.Logger) *ManualEntryHandler {
	return &ManualEntryHandler{
		entries: entries,
		logger:  log,
	}
}

// Submit handles POST /api/v1/manual
func (h *ManualEntryHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req model.ManualSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendErrorResponse(w, "ERR_INVALID_BODY", "Invalid JSON body", http.StatusBadRequest)
		return
	}

	if req.RawText == "" || req.EnteredBy == "" {
		sendErrorResponse(w, "ERR_MISSING_PARAMETER", "raw_text and entered_by are required", http.StatusBadRequest)
		return
	}

	entry, err := h.entries.Submit(req.RawText, req.EnteredBy)
	if err != nil {
		h.logger.Error("Failed to submit manual entry", "error", err)
		code, status := mapError(err)
		sendErrorResponse(w, code, err.Error(), status)
		return
	}

	sendSuccessResponse(w, "Manual entry stored pending verification", entry)
}

// ListPending handles GET /api/v1/manual/pending — the supervisor queue
func (h *ManualEntryHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	entries, err := h.entries.ListPending()
	if err != nil {
		h.logger.Error("Failed to list pending manual entries", "error", err)
		code, status := mapError(err)
		sendErrorResponse(w, code, err.Error(), status)
		return
	}

	sendSuccessResponse(w, "Pending manual entries", entries)
}

// Verify handles POST /api/v1/manual/{entryId}/verify
func (h *ManualEntryHandler) Verify(w http.ResponseWriter, r *http.Request) {
	entryID := mux.Vars(r)["entryId"]

	var req model.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendErrorResponse(w, "ERR_INVALID_BODY", "Invalid JSON body", http.StatusBadRequest)
		return
	}

	entry, err := h.entries.Verify(entryID, req.Accept, req.Notes)
	if err != nil {
		h.logger.WithEntryID(entryID).Error("Failed to verify manual entry", "error", err)
		code, status := mapError(err)
		sendErrorResponse(w, code, err.Error(), status)
		return
	}

	sendSuccessResponse(w, "Manual entry verified", entry)
}

// LinkSale handles POST /api/v1/manual/{entryId}/sale
func (h *ManualEntryHandler) LinkSale(w http.ResponseWriter, r *http.Request) {
	entryID := mux.Vars(r)["entryId"]

	var req model.LinkSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendErrorResponse(w, "ERR_INVALID_BODY", "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.SaleID == "" {
		sendErrorResponse(w, "ERR_MISSING_PARAMETER", "sale_id is required", http.StatusBadRequest)
		return
	}

	if err := h.entries.LinkToSale(entryID, req.SaleID); err != nil {
		h.logger.WithEntryID(entryID).Error("Failed to link manual entry to sale", "error", err)
		code, status := mapError(err)
		sendErrorResponse(w, code, err.Error(), status)
		return
	}

	sendSuccessResponse(w, "Sale linked", nil)
}
