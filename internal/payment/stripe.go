package payment

import (
	"context"
	"fmt"

	stripe "github.com/stripe/stripe-go/v82"
	stripeclient "github.com/stripe/stripe-go/v82/client"
)

type stripeGateway struct {
	api *stripeclient.API
}

func newStripeGateway(apiKey string) *stripeGateway {
	api := &stripeclient.API{}
	api.Init(apiKey, nil)
	return &stripeGateway{api: api}
}

func (g *stripeGateway) CreateIntent(ctx context.Context, amountCents int64) (*StripeIntent, error) {
	params := &stripe.PaymentIntentParams{
		Params:   stripe.Params{Context: ctx},
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(string(stripe.CurrencyEUR)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create intent: %w", err)
	}
	return &StripeIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
	}, nil
}

func (g *stripeGateway) RetrieveIntent(ctx context.Context, id string) (*StripeIntent, error) {
	params := &stripe.PaymentIntentParams{Params: stripe.Params{Context: ctx}}

	pi, err := g.api.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("stripe retrieve intent: %w", err)
	}
	return &StripeIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
	}, nil
}
