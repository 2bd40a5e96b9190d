package domain

import "github.com/shopspring/decimal"

// ShippingOption is a computed, non-persisted checkout choice. Name and price
// are denormalized onto the order at creation time because the option catalog
// is derived, not stored.
type ShippingOption struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	EstimatedDays string          `json:"estimated_days"`
	SortOrder     int             `json:"sort_order"`
}
