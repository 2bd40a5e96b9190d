package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/victor-jaber/cara-pt-ecom-sub000/internal/domain"
)

var (
	ErrEmptyCart       = errors.New("cart is empty, nothing to checkout")
	ErrProductNotFound = errors.New("product not found")
	ErrOutOfStock      = errors.New("product is out of stock")
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

type Source string

const (
	SourceServerCart  Source = "server_cart"
	SourceClientItems Source = "client_items"
)

// ClientItem is a client-supplied cart line used by the guest/international
// checkout path. Only the id and quantity are trusted; price and name are
// re-read from the live product.
type ClientItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int32 `json:"quantity"`
}

// Item captures a cart line at the moment a payment attempt starts. Price and
// name are locked here, independent of later cart or catalog mutations.
type Item struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int32           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Snapshot is the single source of truth for what is being paid for and at
// what price.
type Snapshot struct {
	Items    []Item          `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Source   Source          `json:"source"`
}

type ProductGetter interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
}

type CartReader interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
}

type Builder struct {
	products ProductGetter
	carts    CartReader
}

func NewBuilder(products ProductGetter, carts CartReader) *Builder {
	return &Builder{products: products, carts: carts}
}

// Build resolves either a client-supplied item list or the user's persisted
// cart into a priced, stock-checked snapshot. It has no side effects; cart
// clearing is the create-phase's job.
func (b *Builder) Build(ctx context.Context, userID string, clientItems []ClientItem) (*Snapshot, error) {
	if len(clientItems) > 0 {
		return b.fromItems(ctx, clientItems, SourceClientItems)
	}

	cart, err := b.carts.GetCart(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	if cart == nil || len(cart.Items) == 0 {
		return nil, ErrEmptyCart
	}

	items := make([]ClientItem, 0, len(cart.Items))
	for _, ci := range cart.Items {
		items = append(items, ClientItem{ProductID: ci.ProductID, Quantity: ci.Quantity})
	}
	return b.fromItems(ctx, items, SourceServerCart)
}

func (b *Builder) fromItems(ctx context.Context, items []ClientItem, source Source) (*Snapshot, error) {
	snap := &Snapshot{
		Items:    make([]Item, 0, len(items)),
		Subtotal: decimal.Zero,
		Source:   source,
	}

	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("product %d: %w", item.ProductID, ErrInvalidQuantity)
		}

		product, err := b.products.GetProduct(ctx, item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("product %d: %w", item.ProductID, ErrProductNotFound)
		}
		if !product.IsActive {
			return nil, fmt.Errorf("product %d: %w", item.ProductID, ErrProductNotFound)
		}
		if !product.InStock {
			return nil, fmt.Errorf("product %d: %w", item.ProductID, ErrOutOfStock)
		}

		// Promotion tiers apply here so the charged subtotal matches the
		// price shown in the cart.
		unitPrice := product.UnitPriceFor(item.Quantity)

		snap.Items = append(snap.Items, Item{
			ProductID: product.ID,
			Name:      product.Name,
			Quantity:  item.Quantity,
			UnitPrice: unitPrice,
		})
		snap.Subtotal = snap.Subtotal.Add(unitPrice.Mul(decimal.NewFromInt32(item.Quantity)))
	}

	return snap, nil
}
