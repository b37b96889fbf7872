package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"mpesa-recon/internal/model"
	"mpesa-recon/internal/service"
	"mpesa-recon/pkg/logger"
)

// PaymentHandler handles push-payment requests
type PaymentHandler struct {
	gateway *service.GatewayClient
	logger  *logger.Logger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(gateway *service.GatewayClient, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		gateway: gateway,
		logger:  log,
	}
}

// RequestPush handles POST /api/v1/payments/push
func (h *PaymentHandler) RequestPush(w http.ResponseWriter, r *http.Request) {
	var req model.PushRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendErrorResponse(w, "ERR_INVALID_BODY", "Invalid JSON body", http.StatusBadRequest)
		return
	}

	if req.Phone == "" {
		sendErrorResponse(w, "ERR_MISSING_PARAMETER", "phone is required", http.StatusBadRequest)
		return
	}
	if req.Amount.IsZero() || req.Amount.IsNegative() {
		sendErrorResponse(w, "ERR_INVALID_PARAMETER", "amount must be positive", http.StatusBadRequest)
		return
	}

	result, err := h.gateway.InitiateStkPush(r.Context(), req.Phone, req.Amount, req.AccountRef, req.Description)
	if err != nil {
		h.logger.Error("Push initiation failed",
			"error", err,
			"phone", req.Phone,
		)
		code, status := mapError(err)
		sendErrorResponse(w, code, err.Error(), status)
		return
	}

	sendSuccessResponse(w, "Push request submitted", result)
}

// QueryStatus handles POST /api/v1/payments/push/{checkoutRequestId}/status
func (h *PaymentHandler) QueryStatus(w http.ResponseWriter, r *http.Request) {
	checkoutRequestID := mux.Vars(r)["checkoutRequestId"]
	if checkoutRequestID == "" {
		sendErrorResponse(w, "ERR_MISSING_PARAMETER", "checkoutRequestId is required", http.StatusBadRequest)
		return
	}

	payload, err := h.gateway.QueryStatus(r.Context(), checkoutRequestID)
	if err != nil {
		h.logger.Error("Status query failed",
			"error", err,
			"checkout_request_id", checkoutRequestID,
		)
		code, status := mapError(err)
		sendErrorResponse(w, code, err.Error(), status)
		return
	}

	sendSuccessResponse(w, "Status retrieved", payload)
}
