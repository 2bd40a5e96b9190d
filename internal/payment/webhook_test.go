package payment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victor-jaber/cara-pt-ecom-sub000/internal/domain"
)

func createMultibancoOrder(t *testing.T, f *fixture) *domain.Order {
	t.Helper()
	res, err := f.svc.CreateOrder(context.Background(), testUser(), ptRequest(domain.PaymentMethodMultibanco))
	require.NoError(t, err)
	order, err := f.orders.GetOrderByID(context.Background(), res.OrderID)
	require.NoError(t, err)
	return order
}

func TestWebhook_ConfirmsByReference(t *testing.T) {
	f := newFixture(t)
	order := createMultibancoOrder(t, f)

	err := f.svc.HandleEuPagoWebhook(context.Background(), WebhookParams{
		APIKey:        "demo-key",
		Reference:     "123456789",
		Entity:        "11111",
		TransactionID: "tx-1",
		Value:         "179.80",
	})
	require.NoError(t, err)

	got, err := f.orders.GetOrderByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, got.PaymentStatus)
	assert.Equal(t, "tx-1", got.PaymentMetadata[metaEuPagoTxID])
}

func TestWebhook_KeyMismatchIsSilentNoOp(t *testing.T) {
	f := newFixture(t)
	order := createMultibancoOrder(t, f)

	err := f.svc.HandleEuPagoWebhook(context.Background(), WebhookParams{
		APIKey:    "wrong-key",
		Reference: "123456789",
	})
	require.NoError(t, err)

	got, err := f.orders.GetOrderByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, got.PaymentStatus)
	assert.Equal(t, 0, f.orders.confirmCalls)
}

func TestWebhook_EntityCrossCheckRejectsMismatch(t *testing.T) {
	f := newFixture(t)
	createMultibancoOrder(t, f)

	err := f.svc.HandleEuPagoWebhook(context.Background(), WebhookParams{
		APIKey:    "demo-key",
		Reference: "123456789",
		Entity:    "99999",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, f.orders.confirmCalls)
}

func TestWebhook_ResolvesByIdentifierWhenReferenceMissing(t *testing.T) {
	f := newFixture(t)
	order := createMultibancoOrder(t, f)

	err := f.svc.HandleEuPagoWebhook(context.Background(), WebhookParams{
		APIKey:     "demo-key",
		Identifier: order.ID.String(),
	})
	require.NoError(t, err)

	got, err := f.orders.GetOrderByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, got.PaymentStatus)
}

func TestWebhook_UnknownReferenceDropped(t *testing.T) {
	f := newFixture(t)

	err := f.svc.HandleEuPagoWebhook(context.Background(), WebhookParams{
		APIKey:    "demo-key",
		Reference: "000000000",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, f.orders.confirmCalls)
}

func TestWebhook_AlreadyCompletedIsNoOp(t *testing.T) {
	f := newFixture(t)
	createMultibancoOrder(t, f)

	params := WebhookParams{APIKey: "demo-key", Reference: "123456789", TransactionID: "tx-1"}
	require.NoError(t, f.svc.HandleEuPagoWebhook(context.Background(), params))
	require.NoError(t, f.svc.HandleEuPagoWebhook(context.Background(), params))
	assert.Equal(t, 1, f.orders.confirmCalls)
}
