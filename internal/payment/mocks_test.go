package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/victor-jaber/cara-pt-ecom-sub000/internal/domain"
	"github.com/victor-jaber/cara-pt-ecom-sub000/internal/repository"
)

type mockOrderRepo struct {
	orders        map[uuid.UUID]*domain.Order
	createErr     error
	confirmCalls  int
	confirmedMeta map[string]any
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: make(map[uuid.UUID]*domain.Order)}
}

func (m *mockOrderRepo) CreatePendingOrder(_ context.Context, order *domain.Order) error {
	if m.createErr != nil {
		return m.createErr
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	m.orders[order.ID] = order
	return nil
}

func (m *mockOrderRepo) ConfirmOrder(_ context.Context, id uuid.UUID, metadata map[string]any) (*domain.Order, bool, error) {
	order, ok := m.orders[id]
	if !ok {
		return nil, false, repository.ErrOrderNotFound
	}
	if order.PaymentStatus == domain.PaymentStatusCompleted {
		return order, false, nil
	}
	m.confirmCalls++
	m.confirmedMeta = metadata
	order.Status = domain.OrderStatusConfirmed
	order.PaymentStatus = domain.PaymentStatusCompleted
	if order.PaymentMetadata == nil {
		order.PaymentMetadata = map[string]any{}
	}
	for k, v := range metadata {
		order.PaymentMetadata[k] = v
	}
	return order, true, nil
}

func (m *mockOrderRepo) GetOrderByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	order, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return order, nil
}

func (m *mockOrderRepo) GetOrderByProviderRef(_ context.Context, key, value string) (*domain.Order, error) {
	for _, order := range m.orders {
		if v, ok := order.PaymentMetadata[key].(string); ok && v == value {
			return order, nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (m *mockOrderRepo) ListOrdersByUserID(_ context.Context, userID string) ([]*domain.Order, error) {
	var out []*domain.Order
	for _, order := range m.orders {
		if order.UserID == userID {
			out = append(out, order)
		}
	}
	return out, nil
}

func (m *mockOrderRepo) UpdateOrderStatus(_ context.Context, id uuid.UUID, status domain.OrderStatus) (*domain.Order, error) {
	order, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	if !order.Status.CanTransitionTo(status) {
		return nil, repository.ErrBadTransition
	}
	order.Status = status
	return order, nil
}

func (m *mockOrderRepo) CancelStaleOrders(context.Context, time.Duration) (int64, error) {
	return 0, nil
}

func (m *mockOrderRepo) GetUnprocessedEvents(context.Context, int) ([]*repository.OutboxEvent, error) {
	return nil, nil
}

func (m *mockOrderRepo) MarkEventAsProcessed(context.Context, int64) error { return nil }
func (m *mockOrderRepo) RunMigrations(*repository.Credentials) error       { return nil }
func (m *mockOrderRepo) Close() error                                      { return nil }

type mockSettingsStore struct {
	settings map[string]*repository.ProviderSettings
}

func (m *mockSettingsStore) GetProviderSettings(_ context.Context, provider string) (*repository.ProviderSettings, error) {
	st, ok := m.settings[provider]
	if !ok {
		return nil, repository.ErrSettingsNotFound
	}
	return st, nil
}

type mockProductGetter struct {
	products map[int64]*domain.Product
}

func (m *mockProductGetter) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	product, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return product, nil
}

type mockCartReader struct {
	cart *domain.Cart
	err  error
}

func (m *mockCartReader) GetCart(context.Context, string) (*domain.Cart, error) {
	return m.cart, m.err
}

type mockCartClearer struct {
	cleared []string
	err     error
}

func (m *mockCartClearer) ClearCart(_ context.Context, userID string) error {
	if m.err != nil {
		return m.err
	}
	m.cleared = append(m.cleared, userID)
	return nil
}

type fakePayPal struct {
	orderID    string
	createErr  error
	capture    *PayPalCapture
	captureErr error
	captured   []string
}

func (f *fakePayPal) CreateOrder(context.Context, decimal.Decimal) (string, error) {
	return f.orderID, f.createErr
}

func (f *fakePayPal) CaptureOrder(_ context.Context, orderID string) (*PayPalCapture, error) {
	f.captured = append(f.captured, orderID)
	return f.capture, f.captureErr
}

type fakeStripe struct {
	intent      *StripeIntent
	createErr   error
	retrieved   *StripeIntent
	retrieveErr error
}

func (f *fakeStripe) CreateIntent(context.Context, int64) (*StripeIntent, error) {
	return f.intent, f.createErr
}

func (f *fakeStripe) RetrieveIntent(context.Context, string) (*StripeIntent, error) {
	return f.retrieved, f.retrieveErr
}

type fakeEuPago struct {
	multibanco    *MultibancoRef
	multibancoErr error
	mbway         *MBWayRequest
	mbwayErr      error
	mbwayPhone    string
}

func (f *fakeEuPago) CreateMultibancoReference(context.Context, string, decimal.Decimal) (*MultibancoRef, error) {
	return f.multibanco, f.multibancoErr
}

func (f *fakeEuPago) CreateMBWayRequest(_ context.Context, _ string, _ decimal.Decimal, phone string) (*MBWayRequest, error) {
	f.mbwayPhone = phone
	return f.mbway, f.mbwayErr
}

type fakeGateways struct {
	paypal    *fakePayPal
	paypalErr error
	stripe    *fakeStripe
	eupago    *fakeEuPago
}

func (f *fakeGateways) PayPal(context.Context, *repository.ProviderSettings) (PayPalGateway, error) {
	if f.paypalErr != nil {
		return nil, f.paypalErr
	}
	return f.paypal, nil
}

func (f *fakeGateways) Stripe(*repository.ProviderSettings) StripeGateway { return f.stripe }
func (f *fakeGateways) EuPago(*repository.ProviderSettings) EuPagoGateway { return f.eupago }
func (f *fakeGateways) Invalidate(string)                                 {}
