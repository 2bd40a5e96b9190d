package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) String() string {
	return string(s)
}

// Valid reports whether s is one of the known lifecycle states.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo encodes the admin-visible lifecycle. Orders are never
// deleted, only moved forward or cancelled.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case OrderStatusPending:
		return next == OrderStatusConfirmed || next == OrderStatusCancelled
	case OrderStatusConfirmed:
		return next == OrderStatusShipped || next == OrderStatusCancelled
	case OrderStatusShipped:
		return next == OrderStatusDelivered
	default:
		return false
	}
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

type PaymentMethod string

const (
	PaymentMethodPayPal     PaymentMethod = "paypal"
	PaymentMethodStripe     PaymentMethod = "stripe"
	PaymentMethodMultibanco PaymentMethod = "eupago_multibanco"
	PaymentMethodMBWay      PaymentMethod = "eupago_mbway"
	PaymentMethodNone       PaymentMethod = "none"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodPayPal, PaymentMethodStripe, PaymentMethodMultibanco,
		PaymentMethodMBWay, PaymentMethodNone:
		return true
	}
	return false
}

// OrderItem is a line within an order. UnitPrice is snapshotted from the
// product at order-creation time and never re-read afterwards.
type OrderItem struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int32           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// Order is a purchase attempt. It is created in pending/pending the moment a
// payment attempt begins, so orders that were never paid are expected.
type Order struct {
	ID                 uuid.UUID
	UserID             string
	Total              decimal.Decimal
	ShippingAddress    string
	Notes              string
	Status             OrderStatus
	PaymentMethod      PaymentMethod
	PaymentStatus      PaymentStatus
	PaymentMetadata    map[string]any
	ShippingOptionID   string
	ShippingCost       decimal.Decimal
	ShippingOptionName string
	Items              []OrderItem
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
