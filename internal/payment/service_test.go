package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victor-jaber/cara-pt-ecom-sub000/internal/domain"
	"github.com/victor-jaber/cara-pt-ecom-sub000/internal/pending"
	"github.com/victor-jaber/cara-pt-ecom-sub000/internal/repository"
	"github.com/victor-jaber/cara-pt-ecom-sub000/internal/shipping"
	"github.com/victor-jaber/cara-pt-ecom-sub000/internal/snapshot"
)

type fixture struct {
	svc      *Service
	orders   *mockOrderRepo
	settings *mockSettingsStore
	products *mockProductGetter
	carts    *mockCartClearer
	registry *pending.Registry
	gateways *fakeGateways
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	orders := newMockOrderRepo()
	settings := &mockSettingsStore{settings: map[string]*repository.ProviderSettings{
		ProviderPayPal: {Provider: ProviderPayPal, Enabled: true, Mode: "sandbox", ClientID: "cid", ClientSecret: "sec"},
		ProviderStripe: {Provider: ProviderStripe, Enabled: true, Mode: "sandbox", APIKey: "sk_test"},
		ProviderEuPago: {Provider: ProviderEuPago, Enabled: true, Mode: "sandbox", APIKey: "demo-key", WebhookSecret: "demo-key"},
	}}
	products := &mockProductGetter{products: map[int64]*domain.Product{
		1: {ID: 1, Name: "Hyaluronic Filler", Price: decimal.RequireFromString("89.90"), InStock: true, IsActive: true},
		2: {
			ID: 2, Name: "Botulinum 100U", Price: decimal.RequireFromString("199.00"), InStock: true, IsActive: true,
			PromotionRules: []domain.PromotionRule{{MinQuantity: 5, PricePerUnit: decimal.RequireFromString("179.00")}},
		},
	}}
	cartReader := &mockCartReader{cart: &domain.Cart{
		UserID: "user-1",
		Items:  []domain.CartItem{{ProductID: 1, Quantity: 2}},
	}}
	carts := &mockCartClearer{}
	registry := pending.NewRegistry()
	t.Cleanup(registry.Close)

	gateways := &fakeGateways{
		paypal: &fakePayPal{orderID: "PP-123", capture: &PayPalCapture{CaptureID: "CAP-1", PayerEmail: "payer@example.com"}},
		stripe: &fakeStripe{
			intent:    &StripeIntent{ID: "pi_123", ClientSecret: "pi_123_secret", Status: "requires_payment_method"},
			retrieved: &StripeIntent{ID: "pi_123", Status: "succeeded"},
		},
		eupago: &fakeEuPago{
			multibanco: &MultibancoRef{Entity: "11111", Reference: "123456789"},
			mbway:      &MBWayRequest{TransactionID: "tx-777"},
		},
	}

	svc := NewService(orders, settings, products, snapshot.NewBuilder(products, cartReader), carts, registry, gateways)
	return &fixture{svc: svc, orders: orders, settings: settings, products: products, carts: carts, registry: registry, gateways: gateways}
}

func testUser() *domain.User {
	return &domain.User{ID: "user-1", Email: "clinic@example.pt", ClinicAddress: "Rua das Flores 1, Lisboa"}
}

func ptRequest(method domain.PaymentMethod) CreateRequest {
	return CreateRequest{
		Method:           method,
		Country:          "PT",
		ShippingOptionID: shipping.OptionFreeShipping,
	}
}

func TestCreateOrder_Unauthenticated(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateOrder(context.Background(), nil, ptRequest(domain.PaymentMethodPayPal))
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestCreateOrder_ProviderNotConfigured(t *testing.T) {
	f := newFixture(t)
	delete(f.settings.settings, ProviderStripe)

	_, err := f.svc.CreateOrder(context.Background(), testUser(), ptRequest(domain.PaymentMethodStripe))
	assert.ErrorIs(t, err, ErrProviderNotConfigured)
}

func TestCreateOrder_ProviderDisabled(t *testing.T) {
	f := newFixture(t)
	f.settings.settings[ProviderPayPal].Enabled = false

	_, err := f.svc.CreateOrder(context.Background(), testUser(), ptRequest(domain.PaymentMethodPayPal))
	assert.ErrorIs(t, err, ErrProviderNotConfigured)
}

func TestCreateOrder_ShippingOptionRequired(t *testing.T) {
	f := newFixture(t)

	req := ptRequest(domain.PaymentMethodPayPal)
	req.ShippingOptionID = ""
	_, err := f.svc.CreateOrder(context.Background(), testUser(), req)
	assert.ErrorIs(t, err, ErrShippingOptionRequired)
}

func TestCreateOrder_InvalidShippingOption(t *testing.T) {
	f := newFixture(t)

	req := ptRequest(domain.PaymentMethodPayPal)
	req.ShippingOptionID = "carrier-pigeon"
	_, err := f.svc.CreateOrder(context.Background(), testUser(), req)
	assert.ErrorIs(t, err, ErrInvalidShippingOption)
}

func TestCreateOrder_PayPal(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.CreateOrder(context.Background(), testUser(), ptRequest(domain.PaymentMethodPayPal))
	require.NoError(t, err)

	assert.Equal(t, "PP-123", res.PayPalOrderID)
	assert.Equal(t, "179.80", res.Total)

	order, err := f.orders.GetOrderByID(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, domain.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, "PP-123", order.PaymentMetadata[metaPayPalOrderID])
	assert.Equal(t, "Rua das Flores 1, Lisboa", order.ShippingAddress)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "Hyaluronic Filler", order.Items[0].ProductName)

	// The server cart is consumed at intent creation.
	assert.Equal(t, []string{"user-1"}, f.carts.cleared)

	entry, ok := f.registry.Get("PP-123")
	require.True(t, ok)
	assert.Equal(t, "user-1", entry.UserID)
	assert.Equal(t, res.OrderID, entry.OrderID)
}

func TestCreateOrder_ClientItemsSkipCartClear(t *testing.T) {
	f := newFixture(t)

	req := ptRequest(domain.PaymentMethodStripe)
	req.Items = []snapshot.ClientItem{{ProductID: 1, Quantity: 1}}
	res, err := f.svc.CreateOrder(context.Background(), testUser(), req)
	require.NoError(t, err)

	assert.Equal(t, "pi_123_secret", res.ClientSecret)
	assert.Empty(t, f.carts.cleared)
}

func TestCreateOrder_PromotionTierApplied(t *testing.T) {
	f := newFixture(t)

	req := ptRequest(domain.PaymentMethodStripe)
	req.Items = []snapshot.ClientItem{{ProductID: 2, Quantity: 5}}
	res, err := f.svc.CreateOrder(context.Background(), testUser(), req)
	require.NoError(t, err)

	// 5 x 179.00 tier price, not 5 x 199.00.
	assert.Equal(t, "895.00", res.Total)

	order, err := f.orders.GetOrderByID(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.True(t, order.Items[0].UnitPrice.Equal(decimal.RequireFromString("179.00")))
}

func TestCreateOrder_ProviderRejectionLeavesNoOrder(t *testing.T) {
	f := newFixture(t)
	f.gateways.paypal.createErr = errors.New("upstream 500")

	_, err := f.svc.CreateOrder(context.Background(), testUser(), ptRequest(domain.PaymentMethodPayPal))
	assert.ErrorIs(t, err, ErrProviderRejected)
	assert.Empty(t, f.orders.orders)
	assert.Equal(t, 0, f.registry.Len())
}

func TestCreateOrder_Multibanco(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.CreateOrder(context.Background(), testUser(), ptRequest(domain.PaymentMethodMultibanco))
	require.NoError(t, err)

	assert.Equal(t, "11111", res.Entity)
	assert.Equal(t, "123456789", res.Reference)
	// EuPago confirms via webhook; nothing to correlate in the registry.
	assert.Equal(t, 0, f.registry.Len())

	order, err := f.orders.GetOrderByID(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "123456789", order.PaymentMetadata[metaEuPagoReference])
}

func TestCreateOrder_MBWayNormalizesPhone(t *testing.T) {
	f := newFixture(t)

	req := ptRequest(domain.PaymentMethodMBWay)
	req.Phone = "+351 912 345 678"
	res, err := f.svc.CreateOrder(context.Background(), testUser(), req)
	require.NoError(t, err)

	assert.Equal(t, "tx-777", res.TransactionID)
	assert.Equal(t, "912345678", f.gateways.eupago.mbwayPhone)
}

func TestCreateOrder_MBWayRejectsBadPhone(t *testing.T) {
	f := newFixture(t)

	req := ptRequest(domain.PaymentMethodMBWay)
	req.Phone = "12345"
	_, err := f.svc.CreateOrder(context.Background(), testUser(), req)
	assert.ErrorIs(t, err, ErrProviderRejected)
	assert.Empty(t, f.orders.orders)
}

func TestConfirmPayPal_Success(t *testing.T) {
	f := newFixture(t)
	user := testUser()

	created, err := f.svc.CreateOrder(context.Background(), user, ptRequest(domain.PaymentMethodPayPal))
	require.NoError(t, err)

	res, err := f.svc.ConfirmPayPal(context.Background(), user, "PP-123")
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, created.OrderID, res.OrderID)
	assert.Equal(t, "CAP-1", res.ProviderConfirmationID)

	order, err := f.orders.GetOrderByID(context.Background(), created.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusConfirmed, order.Status)
	assert.Equal(t, domain.PaymentStatusCompleted, order.PaymentStatus)
	assert.Equal(t, "payer@example.com", order.PaymentMetadata[metaPayerEmail])

	_, ok := f.registry.Get("PP-123")
	assert.False(t, ok)
}

func TestConfirmPayPal_ForbiddenForOtherUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateOrder(context.Background(), testUser(), ptRequest(domain.PaymentMethodPayPal))
	require.NoError(t, err)

	intruder := &domain.User{ID: "user-2", Email: "other@example.pt"}
	_, err = f.svc.ConfirmPayPal(context.Background(), intruder, "PP-123")
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Empty(t, f.gateways.paypal.captured)
}

func TestConfirmPayPal_RegistryMissFallsBackToMetadata(t *testing.T) {
	f := newFixture(t)
	user := testUser()

	created, err := f.svc.CreateOrder(context.Background(), user, ptRequest(domain.PaymentMethodPayPal))
	require.NoError(t, err)

	// Simulate a process restart losing the in-memory entry.
	f.registry.Delete("PP-123")

	res, err := f.svc.ConfirmPayPal(context.Background(), user, "PP-123")
	require.NoError(t, err)
	assert.Equal(t, created.OrderID, res.OrderID)
}

func TestConfirmPayPal_ExpiredAttemptFails(t *testing.T) {
	f := newFixture(t)
	user := testUser()

	created, err := f.svc.CreateOrder(context.Background(), user, ptRequest(domain.PaymentMethodPayPal))
	require.NoError(t, err)

	// Age the attempt past the pending-payment TTL; the swept registry entry
	// must not be resurrected through the metadata mirror.
	f.registry.Delete("PP-123")
	f.orders.orders[created.OrderID].CreatedAt = time.Now().Add(-pending.EntryTTL - time.Minute)

	_, err = f.svc.ConfirmPayPal(context.Background(), user, "PP-123")
	assert.ErrorIs(t, err, ErrPaymentExpiredOrNotFound)

	order, err := f.orders.GetOrderByID(context.Background(), created.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, order.PaymentStatus)
	assert.Empty(t, f.gateways.paypal.captured)
}

func TestConfirmPayPal_UnknownProviderID(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ConfirmPayPal(context.Background(), testUser(), "PP-unknown")
	assert.ErrorIs(t, err, ErrPaymentExpiredOrNotFound)
}

func TestConfirmPayPal_ProductGoneAbortsConfirm(t *testing.T) {
	f := newFixture(t)
	user := testUser()

	created, err := f.svc.CreateOrder(context.Background(), user, ptRequest(domain.PaymentMethodPayPal))
	require.NoError(t, err)

	delete(f.products.products, 1)

	_, err = f.svc.ConfirmPayPal(context.Background(), user, "PP-123")
	assert.ErrorIs(t, err, ErrProductNotFound)

	// Order stays pending and the stale registry entry is dropped.
	order, err := f.orders.GetOrderByID(context.Background(), created.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, order.PaymentStatus)
	_, ok := f.registry.Get("PP-123")
	assert.False(t, ok)
}

func TestConfirmStripe_Success(t *testing.T) {
	f := newFixture(t)
	user := testUser()

	created, err := f.svc.CreateOrder(context.Background(), user, ptRequest(domain.PaymentMethodStripe))
	require.NoError(t, err)

	res, err := f.svc.ConfirmStripe(context.Background(), user, "pi_123")
	require.NoError(t, err)
	assert.Equal(t, created.OrderID, res.OrderID)
	assert.Equal(t, "pi_123", res.ProviderConfirmationID)
}

func TestConfirmStripe_NotSucceeded(t *testing.T) {
	f := newFixture(t)
	user := testUser()
	f.gateways.stripe.retrieved = &StripeIntent{ID: "pi_123", Status: "requires_action"}

	created, err := f.svc.CreateOrder(context.Background(), user, ptRequest(domain.PaymentMethodStripe))
	require.NoError(t, err)

	_, err = f.svc.ConfirmStripe(context.Background(), user, "pi_123")
	assert.ErrorIs(t, err, ErrPaymentNotCompleted)

	order, err := f.orders.GetOrderByID(context.Background(), created.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, order.PaymentStatus)
}

func TestConfirmPayPal_IdempotentSecondCall(t *testing.T) {
	f := newFixture(t)
	user := testUser()

	_, err := f.svc.CreateOrder(context.Background(), user, ptRequest(domain.PaymentMethodPayPal))
	require.NoError(t, err)

	first, err := f.svc.ConfirmPayPal(context.Background(), user, "PP-123")
	require.NoError(t, err)

	// PayPal rejects a second capture of the same order, so the replay must
	// be answered from the recorded outcome without touching the provider.
	f.gateways.paypal.captureErr = errors.New("ORDER_ALREADY_CAPTURED")

	second, err := f.svc.ConfirmPayPal(context.Background(), user, "PP-123")
	require.NoError(t, err)
	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Equal(t, "CAP-1", second.ProviderConfirmationID)
	assert.Equal(t, 1, f.orders.confirmCalls)
	assert.Len(t, f.gateways.paypal.captured, 1)
}

func TestConfirmStripe_IdempotentSecondCall(t *testing.T) {
	f := newFixture(t)
	user := testUser()

	created, err := f.svc.CreateOrder(context.Background(), user, ptRequest(domain.PaymentMethodStripe))
	require.NoError(t, err)

	first, err := f.svc.ConfirmStripe(context.Background(), user, "pi_123")
	require.NoError(t, err)

	f.gateways.stripe.retrieveErr = errors.New("should not be called on replay")

	second, err := f.svc.ConfirmStripe(context.Background(), user, "pi_123")
	require.NoError(t, err)
	assert.Equal(t, created.OrderID, second.OrderID)
	assert.Equal(t, first.ProviderConfirmationID, second.ProviderConfirmationID)
	assert.Equal(t, 1, f.orders.confirmCalls)
}
