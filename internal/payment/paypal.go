package payment

import (
	"context"
	"fmt"

	"github.com/plutov/paypal/v4"
	"github.com/shopspring/decimal"
)

type paypalGateway struct {
	client *paypal.Client
}

func newPayPalGateway(ctx context.Context, clientID, secret string, sandbox bool) (*paypalGateway, error) {
	base := paypal.APIBaseLive
	if sandbox {
		base = paypal.APIBaseSandBox
	}

	client, err := paypal.NewClient(clientID, secret, base)
	if err != nil {
		return nil, fmt.Errorf("paypal client: %w", err)
	}
	if _, err := client.GetAccessToken(ctx); err != nil {
		return nil, fmt.Errorf("paypal token: %w", err)
	}

	return &paypalGateway{client: client}, nil
}

func (g *paypalGateway) CreateOrder(ctx context.Context, total decimal.Decimal) (string, error) {
	units := []paypal.PurchaseUnitRequest{
		{
			Amount: &paypal.PurchaseUnitAmount{
				Currency: "EUR",
				Value:    total.StringFixed(2),
			},
		},
	}

	order, err := g.client.CreateOrder(ctx, paypal.OrderIntentCapture, units, nil, nil)
	if err != nil {
		return "", fmt.Errorf("paypal create order: %w", err)
	}
	return order.ID, nil
}

func (g *paypalGateway) CaptureOrder(ctx context.Context, orderID string) (*PayPalCapture, error) {
	res, err := g.client.CaptureOrder(ctx, orderID, paypal.CaptureOrderRequest{})
	if err != nil {
		return nil, fmt.Errorf("paypal capture: %w", err)
	}

	capture := &PayPalCapture{}
	if res.Payer != nil {
		capture.PayerEmail = res.Payer.EmailAddress
	}
	for _, unit := range res.PurchaseUnits {
		if unit.Payments != nil && len(unit.Payments.Captures) > 0 {
			capture.CaptureID = unit.Payments.Captures[0].ID
			break
		}
	}
	if capture.CaptureID == "" {
		return nil, fmt.Errorf("paypal capture: no capture id in response for order %s", orderID)
	}
	return capture, nil
}
