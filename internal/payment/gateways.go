package payment

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/victor-jaber/cara-pt-ecom-sub000/internal/repository"
)

// The gateway interfaces isolate provider-quirk handling behind a documented
// contract so the orchestration logic can be tested against fakes and the
// quirks against captured fixture responses.

type PayPalCapture struct {
	CaptureID  string
	PayerEmail string
}

type PayPalGateway interface {
	// CreateOrder creates a provider-side order in capture intent mode and
	// returns its id.
	CreateOrder(ctx context.Context, total decimal.Decimal) (string, error)
	CaptureOrder(ctx context.Context, orderID string) (*PayPalCapture, error)
}

type StripeIntent struct {
	ID           string
	ClientSecret string
	Status       string
}

type StripeGateway interface {
	CreateIntent(ctx context.Context, amountCents int64) (*StripeIntent, error)
	RetrieveIntent(ctx context.Context, id string) (*StripeIntent, error)
}

type MultibancoRef struct {
	Entity    string
	Reference string
}

type MBWayRequest struct {
	TransactionID string
	Reference     string
}

type EuPagoGateway interface {
	CreateMultibancoReference(ctx context.Context, orderID string, amount decimal.Decimal) (*MultibancoRef, error)
	// CreateMBWayRequest sends a request-to-pay to the given phone number,
	// which must already be normalized to nine digits.
	CreateMBWayRequest(ctx context.Context, orderID string, amount decimal.Decimal, phone string) (*MBWayRequest, error)
}

// GatewayFactory hands out provider clients for a settings snapshot. Clients
// are cached by settings fingerprint; Invalidate drops the cache for a
// provider after the back office changes its credentials.
type GatewayFactory interface {
	PayPal(ctx context.Context, s *repository.ProviderSettings) (PayPalGateway, error)
	Stripe(s *repository.ProviderSettings) StripeGateway
	EuPago(s *repository.ProviderSettings) EuPagoGateway
	Invalidate(provider string)
}
