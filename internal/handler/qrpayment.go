package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"mpesa-recon/internal/model"
	"mpesa-recon/internal/service"
	"mpesa-recon/pkg/logger"
)

// QRPaymentHandler handles QR payment requests
type QRPaymentHandler struct {
	payments *service.QRPaymentService
	logger   *logger.Logger
}

// NewQRPaymentHandler creates a new QR payment handler
func NewQRPaymentHandler(payments *service.QRPaymentService, log *logger.Logger) *QRPaymentHandler {
	return &QRPaymentHandler{
		payments: payments,
		logger:   log,
	}
}

// Create handles POST /api/v1/payments/qr
func (h *QRPaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateQRRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendErrorResponse(w, "ERR_INVALID_BODY", "Invalid JSON body", http.StatusBadRequest)
		return
	}

	if req.Amount.IsZero() || req.Amount.IsNegative() {
		sendErrorResponse(w, "ERR_INVALID_PARAMETER", "amount must be positive", http.StatusBadRequest)
		return
	}
	if req.CreatedBy == "" {
		sendErrorResponse(w, "ERR_MISSING_PARAMETER", "created_by is required", http.StatusBadRequest)
		return
	}

	created, err := h.payments.Create(r.Context(), req.Amount, req.CustomerPhone, req.CustomerName, req.Description, req.CreatedBy)
	if err != nil {
		h.logger.Error("Failed to create QR payment", "error", err)
		code, status := mapError(err)
		sendErrorResponse(w, code, err.Error(), status)
		return
	}

	sendSuccessResponse(w, "QR payment created", created)
}

// List handles GET /api/v1/payments/qr
func (h *QRPaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	payments, err := h.payments.ListPending()
	if err != nil {
		h.logger.Error("Failed to list pending QR payments", "error", err)
		code, status := mapError(err)
		sendErrorResponse(w, code, err.Error(), status)
		return
	}

	sendSuccessResponse(w, "Pending QR payments", payments)
}

// Get handles GET /api/v1/payments/qr/{reference}
func (h *QRPaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	reference := mux.Vars(r)["reference"]

	payment, err := h.payments.Get(reference)
	if err != nil {
		code, status := mapError(err)
		sendErrorResponse(w, code, err.Error(), status)
		return
	}

	sendSuccessResponse(w, "QR payment", payment)
}

// MarkPaid handles POST /api/v1/payments/qr/{reference}/paid, called by the
// callback-ingestion collaborator when the gateway confirms a QR session.
// Redelivery of a confirmation is answered with a duplicate-redemption
// conflict rather than a second completion.
func (h *QRPaymentHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	reference := mux.Vars(r)["reference"]

	var req model.MarkPaidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendErrorResponse(w, "ERR_INVALID_BODY", "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.TrxCode == "" {
		sendErrorResponse(w, "ERR_MISSING_PARAMETER", "trx_code is required", http.StatusBadRequest)
		return
	}
	if req.ReceiptNumber == "" {
		req.ReceiptNumber = req.TrxCode
	}

	ok, err := h.payments.MarkPaid(reference, req.ReceiptNumber, req.TrxCode)
	if err != nil {
		h.logger.WithReference(reference).Error("Failed to mark QR payment paid", "error", err)
		code, status := mapError(err)
		sendErrorResponse(w, code, err.Error(), status)
		return
	}
	if !ok {
		payment, err := h.payments.Get(reference)
		if err != nil {
			code, status := mapError(err)
			sendErrorResponse(w, code, err.Error(), status)
			return
		}
		code, status := mapError(model.ErrDuplicateRedemption)
		sendErrorResponse(w, code,
			"payment already resolved with status "+string(payment.Status), status)
		return
	}

	sendSuccessResponse(w, "QR payment marked paid", nil)
}

// LinkSale handles POST /api/v1/payments/qr/{reference}/sale
func (h *QRPaymentHandler) LinkSale(w http.ResponseWriter, r *http.Request) {
	reference := mux.Vars(r)["reference"]

	var req model.LinkSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendErrorResponse(w, "ERR_INVALID_BODY", "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.SaleID == "" {
		sendErrorResponse(w, "ERR_MISSING_PARAMETER", "sale_id is required", http.StatusBadRequest)
		return
	}

	if err := h.payments.LinkToSale(reference, req.SaleID); err != nil {
		h.logger.WithReference(reference).Error("Failed to link QR payment to sale", "error", err)
		code, status := mapError(err)
		sendErrorResponse(w, code, err.Error(), status)
		return
	}

	sendSuccessResponse(w, "Sale linked", nil)
}
