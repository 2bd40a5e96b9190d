package payment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/victor-jaber/cara-pt-ecom-sub000/internal/domain"
	"github.com/victor-jaber/cara-pt-ecom-sub000/internal/pending"
	"github.com/victor-jaber/cara-pt-ecom-sub000/internal/repository"
	"github.com/victor-jaber/cara-pt-ecom-sub000/internal/shipping"
	"github.com/victor-jaber/cara-pt-ecom-sub000/internal/snapshot"
)

// Provider keys for the settings store. Both EuPago methods share one
// configuration row.
const (
	ProviderPayPal = "paypal"
	ProviderStripe = "stripe"
	ProviderEuPago = "eupago"
)

// Metadata keys under which provider correlation ids are stored. Besides
// feeding webhook resolution, they are the durable fallback for the
// in-memory pending registry.
const (
	metaPayPalOrderID   = "paypal_order_id"
	metaPayPalCaptureID = "paypal_capture_id"
	metaPayerEmail      = "payer_email"
	metaStripeIntentID  = "stripe_payment_intent_id"
	metaStripeStatus    = "stripe_status"
	metaEuPagoEntity    = "eupago_entity"
	metaEuPagoReference = "eupago_reference"
	metaEuPagoTxID      = "eupago_transaction_id"
	metaEuPagoIdent     = "eupago_identifier"
	metaCustomerEmail   = "customer_email"
)

type CartClearer interface {
	ClearCart(ctx context.Context, userID string) error
}

type CreateRequest struct {
	Method           domain.PaymentMethod
	Items            []snapshot.ClientItem
	ShippingAddress  string
	Notes            string
	Country          string
	Region           string
	ShippingOptionID string
	Phone            string // MBWay only
}

type CreateResult struct {
	OrderID       uuid.UUID            `json:"order_id"`
	Method        domain.PaymentMethod `json:"method"`
	Total         string               `json:"total"`
	PayPalOrderID string               `json:"paypal_order_id,omitempty"`
	ClientSecret  string               `json:"client_secret,omitempty"`
	Entity        string               `json:"entity,omitempty"`
	Reference     string               `json:"reference,omitempty"`
	TransactionID string               `json:"transaction_id,omitempty"`
}

type ConfirmResult struct {
	Success                bool      `json:"success"`
	OrderID                uuid.UUID `json:"order_id"`
	ProviderConfirmationID string    `json:"provider_confirmation_id,omitempty"`
}

// Service orchestrates the two-phase payment protocol across all providers:
// create a provider intent plus a local pending order, then transition the
// order to confirmed on capture or webhook.
type Service struct {
	orders   repository.OrderRepository
	settings repository.SettingsStore
	products snapshot.ProductGetter
	builder  *snapshot.Builder
	carts    CartClearer
	registry *pending.Registry
	gateways GatewayFactory
}

func NewService(
	orders repository.OrderRepository,
	settings repository.SettingsStore,
	products snapshot.ProductGetter,
	builder *snapshot.Builder,
	carts CartClearer,
	registry *pending.Registry,
	gateways GatewayFactory,
) *Service {
	return &Service{
		orders:   orders,
		settings: settings,
		products: products,
		builder:  builder,
		carts:    carts,
		registry: registry,
		gateways: gateways,
	}
}

func providerOf(method domain.PaymentMethod) string {
	switch method {
	case domain.PaymentMethodPayPal:
		return ProviderPayPal
	case domain.PaymentMethodStripe:
		return ProviderStripe
	case domain.PaymentMethodMultibanco, domain.PaymentMethodMBWay:
		return ProviderEuPago
	default:
		return ""
	}
}

func (s *Service) providerSettings(ctx context.Context, method domain.PaymentMethod) (*repository.ProviderSettings, error) {
	provider := providerOf(method)
	if provider == "" {
		return nil, fmt.Errorf("%w: unknown method %q", ErrProviderNotConfigured, method)
	}
	st, err := s.settings.GetProviderSettings(ctx, provider)
	if errors.Is(err, repository.ErrSettingsNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, provider)
	}
	if err != nil {
		return nil, err
	}
	if !st.Enabled {
		return nil, fmt.Errorf("%w: %s is disabled", ErrProviderNotConfigured, provider)
	}
	return st, nil
}

// CreateOrder runs phase one: snapshot the cart, validate shipping, create
// the provider-side intent, then persist the pending order. No local order
// exists if the provider call fails.
func (s *Service) CreateOrder(ctx context.Context, user *domain.User, req CreateRequest) (*CreateResult, error) {
	if user == nil {
		return nil, ErrUnauthenticated
	}

	st, err := s.providerSettings(ctx, req.Method)
	if err != nil {
		return nil, err
	}

	snap, err := s.builder.Build(ctx, user.ID, req.Items)
	if err != nil {
		return nil, err
	}

	options := shipping.ComputeOptions(req.Country, req.Region, snap.Subtotal)
	shippingCost := decimal.Zero
	var selected domain.ShippingOption
	if len(options) > 0 {
		if req.ShippingOptionID == "" {
			return nil, ErrShippingOptionRequired
		}
		opt, ok := shipping.Find(options, req.ShippingOptionID)
		if !ok {
			return nil, ErrInvalidShippingOption
		}
		selected = opt
		shippingCost = opt.Price
	} else if req.ShippingOptionID != "" {
		return nil, ErrInvalidShippingOption
	}

	total := snap.Subtotal.Add(shippingCost).Round(2)
	orderID := uuid.New()

	metadata := map[string]any{metaCustomerEmail: user.Email}
	result := &CreateResult{
		OrderID: orderID,
		Method:  req.Method,
		Total:   total.StringFixed(2),
	}
	var registryKey string

	switch req.Method {
	case domain.PaymentMethodPayPal:
		gw, gwErr := s.gateways.PayPal(ctx, st)
		if gwErr != nil {
			return nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, ProviderPayPal)
		}
		ppOrderID, createErr := gw.CreateOrder(ctx, total)
		if createErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrProviderRejected, createErr)
		}
		metadata[metaPayPalOrderID] = ppOrderID
		result.PayPalOrderID = ppOrderID
		registryKey = ppOrderID

	case domain.PaymentMethodStripe:
		intent, createErr := s.gateways.Stripe(st).CreateIntent(ctx, eurCents(total))
		if createErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrProviderRejected, createErr)
		}
		metadata[metaStripeIntentID] = intent.ID
		result.ClientSecret = intent.ClientSecret
		registryKey = intent.ID

	case domain.PaymentMethodMultibanco:
		ref, createErr := s.gateways.EuPago(st).CreateMultibancoReference(ctx, orderID.String(), total)
		if createErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrProviderRejected, createErr)
		}
		metadata[metaEuPagoEntity] = ref.Entity
		metadata[metaEuPagoReference] = ref.Reference
		metadata[metaEuPagoIdent] = orderID.String()
		result.Entity = ref.Entity
		result.Reference = ref.Reference

	case domain.PaymentMethodMBWay:
		phone, phoneErr := NormalizeMBWayPhone(req.Phone)
		if phoneErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrProviderRejected, phoneErr)
		}
		mbw, createErr := s.gateways.EuPago(st).CreateMBWayRequest(ctx, orderID.String(), total, phone)
		if createErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrProviderRejected, createErr)
		}
		metadata[metaEuPagoTxID] = mbw.TransactionID
		if mbw.Reference != "" {
			metadata[metaEuPagoReference] = mbw.Reference
		}
		metadata[metaEuPagoIdent] = orderID.String()
		result.TransactionID = mbw.TransactionID

	default:
		return nil, fmt.Errorf("%w: unknown method %q", ErrProviderNotConfigured, req.Method)
	}

	shippingAddress := req.ShippingAddress
	if shippingAddress == "" {
		shippingAddress = user.ClinicAddress
	}

	order := &domain.Order{
		ID:                 orderID,
		UserID:             user.ID,
		Total:              total,
		ShippingAddress:    shippingAddress,
		Notes:              req.Notes,
		Status:             domain.OrderStatusPending,
		PaymentMethod:      req.Method,
		PaymentStatus:      domain.PaymentStatusPending,
		PaymentMetadata:    metadata,
		ShippingOptionID:   selected.ID,
		ShippingCost:       shippingCost,
		ShippingOptionName: selected.Name,
		Items:              orderItems(snap),
	}

	if err := s.orders.CreatePendingOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create pending order: %w", err)
	}

	// The cart is consumed at intent creation, not at confirmation, so an
	// abandoned payment still empties it.
	if snap.Source == snapshot.SourceServerCart {
		if clearErr := s.carts.ClearCart(ctx, user.ID); clearErr != nil {
			log.Printf("failed to clear cart for user %s: %v", user.ID, clearErr)
		}
	}

	// PayPal and Stripe confirms only carry the provider id back, so keep the
	// correlation around until the capture arrives.
	if registryKey != "" {
		s.registry.Put(registryKey, &pending.Entry{
			UserID:             user.ID,
			OrderID:            orderID,
			Snapshot:           snap,
			Total:              total,
			ShippingOptionID:   selected.ID,
			ShippingCost:       shippingCost,
			ShippingOptionName: selected.Name,
		})
	}

	return result, nil
}

// ConfirmPayPal runs phase two for PayPal: the client hands back the provider
// order id after approval and we capture it.
func (s *Service) ConfirmPayPal(ctx context.Context, user *domain.User, providerOrderID string) (*ConfirmResult, error) {
	if user == nil {
		return nil, ErrUnauthenticated
	}

	st, err := s.providerSettings(ctx, domain.PaymentMethodPayPal)
	if err != nil {
		return nil, err
	}

	orderID, completed, err := s.resolvePending(ctx, user, metaPayPalOrderID, providerOrderID)
	if err != nil {
		return nil, err
	}
	if completed != nil {
		// Replayed confirm: capturing again would be rejected by the
		// provider, so report the recorded outcome instead.
		captureID, _ := completed.PaymentMetadata[metaPayPalCaptureID].(string)
		return &ConfirmResult{
			Success:                true,
			OrderID:                completed.ID,
			ProviderConfirmationID: captureID,
		}, nil
	}

	gw, err := s.gateways.PayPal(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, ProviderPayPal)
	}
	capture, err := gw.CaptureOrder(ctx, providerOrderID)
	if err != nil {
		// Order stays pending; the user can retry or contact support.
		return nil, fmt.Errorf("%w: %v", ErrProviderRejected, err)
	}

	order, _, err := s.orders.ConfirmOrder(ctx, orderID, map[string]any{
		metaPayPalCaptureID: capture.CaptureID,
		metaPayerEmail:      capture.PayerEmail,
	})
	if err != nil {
		return nil, err
	}

	s.registry.Delete(providerOrderID)
	return &ConfirmResult{
		Success:                true,
		OrderID:                order.ID,
		ProviderConfirmationID: capture.CaptureID,
	}, nil
}

// ConfirmStripe runs phase two for Stripe: the intent must already be
// succeeded on Stripe's side.
func (s *Service) ConfirmStripe(ctx context.Context, user *domain.User, intentID string) (*ConfirmResult, error) {
	if user == nil {
		return nil, ErrUnauthenticated
	}

	st, err := s.providerSettings(ctx, domain.PaymentMethodStripe)
	if err != nil {
		return nil, err
	}

	orderID, completed, err := s.resolvePending(ctx, user, metaStripeIntentID, intentID)
	if err != nil {
		return nil, err
	}
	if completed != nil {
		return &ConfirmResult{
			Success:                true,
			OrderID:                completed.ID,
			ProviderConfirmationID: intentID,
		}, nil
	}

	intent, err := s.gateways.Stripe(st).RetrieveIntent(ctx, intentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderRejected, err)
	}
	if intent.Status != "succeeded" {
		return nil, fmt.Errorf("%w: intent status is %s", ErrPaymentNotCompleted, intent.Status)
	}

	order, _, err := s.orders.ConfirmOrder(ctx, orderID, map[string]any{
		metaStripeStatus: intent.Status,
	})
	if err != nil {
		return nil, err
	}

	s.registry.Delete(intentID)
	return &ConfirmResult{
		Success:                true,
		OrderID:                order.ID,
		ProviderConfirmationID: intent.ID,
	}, nil
}

// resolvePending maps a provider id to the local order, enforcing ownership
// and re-validating the snapshot when the registry still has it. On a
// registry miss it falls back to the durable metadata mirror so a process
// restart does not orphan the payment; the fallback honors the same TTL and
// surfaces an already-completed order so a replayed confirm stays a no-op.
func (s *Service) resolvePending(ctx context.Context, user *domain.User, metaKey, providerID string) (uuid.UUID, *domain.Order, error) {
	entry, ok := s.registry.Get(providerID)
	if !ok {
		order, err := s.orders.GetOrderByProviderRef(ctx, metaKey, providerID)
		if err != nil {
			return uuid.Nil, nil, ErrPaymentExpiredOrNotFound
		}
		if order.UserID != user.ID {
			return uuid.Nil, nil, ErrForbidden
		}
		if order.PaymentStatus == domain.PaymentStatusCompleted {
			return order.ID, order, nil
		}
		// The mirror only covers a lost registry entry within the payment
		// window; an expired attempt requires restarting checkout.
		if time.Since(order.CreatedAt) > pending.EntryTTL {
			return uuid.Nil, nil, ErrPaymentExpiredOrNotFound
		}
		return order.ID, nil, nil
	}

	if entry.UserID != user.ID {
		return uuid.Nil, nil, ErrForbidden
	}

	// Products may have vanished between intent and capture; abort rather
	// than confirm an unfulfillable order.
	for _, item := range entry.Snapshot.Items {
		product, err := s.products.GetProduct(ctx, item.ProductID)
		if err != nil {
			s.registry.Delete(providerID)
			return uuid.Nil, nil, fmt.Errorf("product %d: %w", item.ProductID, ErrProductNotFound)
		}
		if !product.InStock {
			s.registry.Delete(providerID)
			return uuid.Nil, nil, fmt.Errorf("product %d: %w", item.ProductID, ErrOutOfStock)
		}
	}

	return entry.OrderID, nil, nil
}

func orderItems(snap *snapshot.Snapshot) []domain.OrderItem {
	items := make([]domain.OrderItem, len(snap.Items))
	for i, item := range snap.Items {
		items[i] = domain.OrderItem{
			ProductID:   item.ProductID,
			ProductName: item.Name,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		}
	}
	return items
}

func eurCents(total decimal.Decimal) int64 {
	return total.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
