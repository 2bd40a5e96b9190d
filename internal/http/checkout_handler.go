package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/victor-jaber/cara-pt-ecom-sub000/internal/domain"
	"github.com/victor-jaber/cara-pt-ecom-sub000/internal/payment"
	"github.com/victor-jaber/cara-pt-ecom-sub000/internal/snapshot"
)

// CheckoutService is the payment orchestration surface the handlers need.
type CheckoutService interface {
	CreateOrder(ctx context.Context, user *domain.User, req payment.CreateRequest) (*payment.CreateResult, error)
	ConfirmPayPal(ctx context.Context, user *domain.User, providerOrderID string) (*payment.ConfirmResult, error)
	ConfirmStripe(ctx context.Context, user *domain.User, intentID string) (*payment.ConfirmResult, error)
	HandleEuPagoWebhook(ctx context.Context, p payment.WebhookParams) error
}

type CheckoutHandler struct {
	service CheckoutService
	timeout time.Duration
}

func NewCheckoutHandler(service CheckoutService, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{service: service, timeout: timeout}
}

var methodsByPath = map[string]domain.PaymentMethod{
	"paypal":     domain.PaymentMethodPayPal,
	"stripe":     domain.PaymentMethodStripe,
	"multibanco": domain.PaymentMethodMultibanco,
	"mbway":      domain.PaymentMethodMBWay,
}

type CreateOrderRequestDTO struct {
	Items            []snapshot.ClientItem `json:"items,omitempty"`
	ShippingAddress  string                `json:"shipping_address,omitempty"`
	Notes            string                `json:"notes,omitempty"`
	Country          string                `json:"country"`
	Region           string                `json:"region,omitempty"`
	ShippingOptionID string                `json:"shipping_option_id,omitempty"`
	Phone            string                `json:"phone,omitempty"`
}

type ConfirmRequestDTO struct {
	PayPalOrderID   string `json:"paypal_order_id,omitempty"`
	PaymentIntentID string `json:"payment_intent_id,omitempty"`
}

// POST /api/v1/checkout/{method}
func (h *CheckoutHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user := userFromContext(r.Context())
	if user == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	method, ok := methodsByPath[chi.URLParam(r, "method")]
	if !ok {
		respondError(w, http.StatusNotFound, "unknown_method", "unknown payment method")
		return
	}

	var req CreateOrderRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	result, err := h.service.CreateOrder(ctx, user, payment.CreateRequest{
		Method:           method,
		Items:            req.Items,
		ShippingAddress:  req.ShippingAddress,
		Notes:            req.Notes,
		Country:          req.Country,
		Region:           req.Region,
		ShippingOptionID: req.ShippingOptionID,
		Phone:            req.Phone,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, result)
}

// POST /api/v1/checkout/{method}/confirm
func (h *CheckoutHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user := userFromContext(r.Context())
	if user == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req ConfirmRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	var result *payment.ConfirmResult
	var err error
	switch chi.URLParam(r, "method") {
	case "paypal":
		if req.PayPalOrderID == "" {
			respondError(w, http.StatusBadRequest, "missing_paypal_order_id", "paypal_order_id is required")
			return
		}
		result, err = h.service.ConfirmPayPal(ctx, user, req.PayPalOrderID)
	case "stripe":
		if req.PaymentIntentID == "" {
			respondError(w, http.StatusBadRequest, "missing_payment_intent_id", "payment_intent_id is required")
			return
		}
		result, err = h.service.ConfirmStripe(ctx, user, req.PaymentIntentID)
	default:
		// Multibanco and MBWay confirm via webhook only.
		respondError(w, http.StatusNotFound, "unknown_method", "unknown payment method")
		return
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// EuPagoWebhook handles POST and GET /api/v1/webhooks/eupago. EuPago retries
// any non-200 response forever, so the handler always acknowledges and only
// logs failures. Parameters arrive in the query string on some API
// generations and in the form body on others.
func (h *CheckoutHandler) EuPagoWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := r.ParseForm(); err != nil {
		log.Printf("eupago webhook: bad form data: %v", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	params := payment.WebhookParams{
		APIKey:        webhookParam(r, "chave_api", "chave"),
		Reference:     webhookParam(r, "referencia", "reference"),
		Entity:        webhookParam(r, "entidade", "entity"),
		TransactionID: webhookParam(r, "transacao", "transactionID", "trid"),
		Identifier:    webhookParam(r, "identificador", "identifier", "id"),
		Value:         webhookParam(r, "valor", "value"),
	}

	if err := h.service.HandleEuPagoWebhook(ctx, params); err != nil {
		log.Printf("eupago webhook: %v", err)
	}
	w.WriteHeader(http.StatusOK)
}

// webhookParam returns the first non-empty value among the given aliases,
// checking query string and form body.
func webhookParam(r *http.Request, names ...string) string {
	for _, name := range names {
		if v := r.Form.Get(name); v != "" {
			return v
		}
	}
	return ""
}
