package domain

import "github.com/shopspring/decimal"

// PromotionRule is a quantity-break price tier: buy at least MinQuantity
// units, pay PricePerUnit per unit.
type PromotionRule struct {
	MinQuantity  int32           `json:"min_quantity"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
}

type Product struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	Price          decimal.Decimal `json:"price"`
	InStock        bool            `json:"in_stock"`
	IsActive       bool            `json:"is_active"`
	PromotionRules []PromotionRule `json:"promotion_rules,omitempty"`
}

// UnitPriceFor returns the effective unit price for the given quantity,
// applying the best matching promotion tier. The base price wins when no
// tier matches or a tier would be more expensive.
func (p *Product) UnitPriceFor(quantity int32) decimal.Decimal {
	price := p.Price
	for _, rule := range p.PromotionRules {
		if quantity >= rule.MinQuantity && rule.PricePerUnit.LessThan(price) {
			price = rule.PricePerUnit
		}
	}
	return price
}
