package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/victor-jaber/cara-pt-ecom-sub000/internal/domain"
)

// OrderReader is the slice of the order ledger the read endpoints need.
type OrderReader interface {
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) (*domain.Order, error)
}

type OrdersHandler struct {
	orders  OrderReader
	timeout time.Duration
}

func NewOrdersHandler(orders OrderReader, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{orders: orders, timeout: timeout}
}

type OrderItemDTO struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int32  `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
}

type OrderResponseDTO struct {
	ID                 string         `json:"id"`
	Total              string         `json:"total"`
	Status             string         `json:"status"`
	PaymentMethod      string         `json:"payment_method"`
	PaymentStatus      string         `json:"payment_status"`
	ShippingAddress    string         `json:"shipping_address,omitempty"`
	ShippingOptionID   string         `json:"shipping_option_id,omitempty"`
	ShippingOptionName string         `json:"shipping_option_name,omitempty"`
	ShippingCost       string         `json:"shipping_cost"`
	Notes              string         `json:"notes,omitempty"`
	PaymentMetadata    map[string]any `json:"payment_metadata,omitempty"`
	Items              []OrderItemDTO `json:"items"`
	CreatedAt          string         `json:"created_at"`
}

func convertOrder(o *domain.Order) OrderResponseDTO {
	items := make([]OrderItemDTO, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemDTO{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice.StringFixed(2),
		})
	}

	return OrderResponseDTO{
		ID:                 o.ID.String(),
		Total:              o.Total.StringFixed(2),
		Status:             string(o.Status),
		PaymentMethod:      string(o.PaymentMethod),
		PaymentStatus:      string(o.PaymentStatus),
		ShippingAddress:    o.ShippingAddress,
		ShippingOptionID:   o.ShippingOptionID,
		ShippingOptionName: o.ShippingOptionName,
		ShippingCost:       o.ShippingCost.StringFixed(2),
		Notes:              o.Notes,
		PaymentMetadata:    o.PaymentMetadata,
		Items:              items,
		CreatedAt:          o.CreatedAt.Format(time.RFC3339),
	}
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user := userFromContext(r.Context())
	if user == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orders, err := h.orders.ListOrdersByUserID(ctx, user.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	dtos := make([]OrderResponseDTO, 0, len(orders))
	for _, o := range orders {
		dtos = append(dtos, convertOrder(o))
	}
	respondJSON(w, http.StatusOK, dtos)
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user := userFromContext(r.Context())
	if user == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "order_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id must be a UUID")
		return
	}

	order, err := h.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if order.UserID != user.ID && !user.Admin {
		// Same response as a missing order so ids cannot be enumerated.
		respondError(w, http.StatusNotFound, "order_not_found", "order not found")
		return
	}

	respondJSON(w, http.StatusOK, convertOrder(order))
}

type UpdateStatusRequestDTO struct {
	Status string `json:"status"`
}

// PATCH /api/v1/admin/orders/{order_id}/status
func (h *OrdersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user := userFromContext(r.Context())
	if user == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}
	if !user.Admin {
		respondError(w, http.StatusForbidden, "forbidden", "admin access required")
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "order_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id must be a UUID")
		return
	}

	var req UpdateStatusRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	status := domain.OrderStatus(req.Status)
	if !status.Valid() {
		respondError(w, http.StatusBadRequest, "invalid_status", "unknown order status")
		return
	}

	order, err := h.orders.UpdateOrderStatus(ctx, orderID, status)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, convertOrder(order))
}
