package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/victor-jaber/cara-pt-ecom-sub000/internal/payment"
	"github.com/victor-jaber/cara-pt-ecom-sub000/internal/repository"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleServiceError maps the payment and repository error taxonomy to HTTP
// status codes. Sentinel messages are safe to show; anything unrecognized is
// masked as an internal error.
func handleServiceError(w http.ResponseWriter, err error) {
	var httpStatus int
	var code string

	switch {
	case errors.Is(err, payment.ErrUnauthenticated):
		httpStatus = http.StatusUnauthorized
		code = "unauthenticated"
	case errors.Is(err, payment.ErrForbidden):
		httpStatus = http.StatusForbidden
		code = "forbidden"
	case errors.Is(err, payment.ErrProviderNotConfigured):
		httpStatus = http.StatusServiceUnavailable
		code = "provider_not_configured"
	case errors.Is(err, payment.ErrEmptyCart):
		httpStatus = http.StatusBadRequest
		code = "empty_cart"
	case errors.Is(err, payment.ErrInvalidQuantity):
		httpStatus = http.StatusBadRequest
		code = "invalid_quantity"
	case errors.Is(err, payment.ErrShippingOptionRequired):
		httpStatus = http.StatusBadRequest
		code = "shipping_option_required"
	case errors.Is(err, payment.ErrInvalidShippingOption):
		httpStatus = http.StatusBadRequest
		code = "invalid_shipping_option"
	case errors.Is(err, payment.ErrProductNotFound):
		httpStatus = http.StatusConflict
		code = "product_not_found"
	case errors.Is(err, payment.ErrOutOfStock):
		httpStatus = http.StatusConflict
		code = "out_of_stock"
	case errors.Is(err, payment.ErrPaymentExpiredOrNotFound):
		httpStatus = http.StatusNotFound
		code = "payment_not_found"
	case errors.Is(err, payment.ErrPaymentNotCompleted):
		httpStatus = http.StatusBadRequest
		code = "payment_not_completed"
	case errors.Is(err, payment.ErrProviderRejected):
		httpStatus = http.StatusBadGateway
		code = "provider_rejected"
	case errors.Is(err, repository.ErrOrderNotFound):
		httpStatus = http.StatusNotFound
		code = "order_not_found"
	case errors.Is(err, repository.ErrBadTransition):
		httpStatus = http.StatusConflict
		code = "invalid_status_transition"
	default:
		log.Printf("internal error: %v", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	respondError(w, httpStatus, code, err.Error())
}
