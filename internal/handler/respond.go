package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"mpesa-recon/internal/model"
)

// sendSuccessResponse sends a success envelope
func sendSuccessResponse(w http.ResponseWriter, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	response := model.APIResponse{
		Status:  "success",
		Message: message,
		Data:    data,
	}

	json.NewEncoder(w).Encode(response)
}

// sendErrorResponse sends an error envelope
func sendErrorResponse(w http.ResponseWriter, code, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := model.APIResponse{
		Status:  "error",
		Message: message,
		Error: &model.APIError{
			Code:    code,
			Message: message,
		},
	}

	json.NewEncoder(w).Encode(response)
}

// mapError maps a service error to an error code and HTTP status
func mapError(err error) (string, int) {
	var authErr *model.GatewayAuthError
	var configErr *model.GatewayConfigError
	var timeoutErr *model.GatewayTimeoutError
	var pushErr *model.PushInitiationError
	var requestErr *model.GatewayRequestError

	switch {
	case errors.Is(err, model.ErrNotFound):
		return "ERR_NOT_FOUND", http.StatusNotFound
	case errors.Is(err, model.ErrDuplicateRedemption):
		return "ERR_DUPLICATE_REDEMPTION", http.StatusConflict
	case errors.Is(err, model.ErrNotPaid):
		return "ERR_PAYMENT_NOT_CONFIRMED", http.StatusConflict
	case errors.Is(err, model.ErrNotVerified):
		return "ERR_ENTRY_NOT_VERIFIED", http.StatusConflict
	case errors.As(err, &authErr):
		return "ERR_GATEWAY_AUTH", http.StatusBadGateway
	case errors.As(err, &configErr):
		return "ERR_GATEWAY_CONFIG", http.StatusBadGateway
	case errors.As(err, &timeoutErr):
		return "ERR_GATEWAY_TIMEOUT", http.StatusGatewayTimeout
	case errors.As(err, &pushErr):
		return "ERR_PUSH_FAILED", http.StatusBadGateway
	case errors.As(err, &requestErr):
		return "ERR_GATEWAY_REQUEST", http.StatusBadGateway
	default:
		return "ERR_INTERNAL_SERVER", http.StatusInternalServerError
	}
}
