package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/victor-jaber/cara-pt-ecom-sub000/internal/domain"
)

// GetProduct returns the live catalog entry. The payment core re-reads
// products at snapshot time; it never writes them.
func (r *Repository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	query := `SELECT id, name, price, in_stock, is_active, promotion_rules
	          FROM products WHERE id = $1`

	var product domain.Product
	var rulesJSON []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&product.ID,
		&product.Name,
		&product.Price,
		&product.InStock,
		&product.IsActive,
		&rulesJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product by id: %w", err)
	}

	if len(rulesJSON) > 0 {
		if err := json.Unmarshal(rulesJSON, &product.PromotionRules); err != nil {
			return nil, fmt.Errorf("unmarshal promotion rules: %w", err)
		}
	}
	return &product, nil
}
