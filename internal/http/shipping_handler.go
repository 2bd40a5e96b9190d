package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/victor-jaber/cara-pt-ecom-sub000/internal/shipping"
)

type ShippingOptionDTO struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	Price         string `json:"price"`
	EstimatedDays string `json:"estimated_days,omitempty"`
}

// GET /api/v1/shipping/options?country=PT&region=Lisboa&subtotal=123.45
//
// Public endpoint: the storefront previews shipping costs before login.
func ShippingOptions(w http.ResponseWriter, r *http.Request) {
	country := r.URL.Query().Get("country")
	if country == "" {
		respondError(w, http.StatusBadRequest, "missing_country", "country is required")
		return
	}

	subtotal := decimal.Zero
	if raw := r.URL.Query().Get("subtotal"); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil || parsed.IsNegative() {
			respondError(w, http.StatusBadRequest, "invalid_subtotal", "subtotal must be a non-negative number")
			return
		}
		subtotal = parsed
	}

	options := shipping.ComputeOptions(country, r.URL.Query().Get("region"), subtotal)

	dtos := make([]ShippingOptionDTO, 0, len(options))
	for _, opt := range options {
		dtos = append(dtos, ShippingOptionDTO{
			ID:            opt.ID,
			Name:          opt.Name,
			Description:   opt.Description,
			Price:         opt.Price.StringFixed(2),
			EstimatedDays: opt.EstimatedDays,
		})
	}
	respondJSON(w, http.StatusOK, dtos)
}
