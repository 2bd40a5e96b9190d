package payment

import (
	"context"
	"errors"
	"log"

	"github.com/victor-jaber/cara-pt-ecom-sub000/internal/domain"
	"github.com/victor-jaber/cara-pt-ecom-sub000/internal/repository"
)

// WebhookParams are the fields EuPago sends on payment confirmation. Field
// names vary between their API generations, so the HTTP layer collects them
// from both query string and form body.
type WebhookParams struct {
	APIKey        string
	Reference     string
	Entity        string
	TransactionID string
	Identifier    string
	Value         string
}

// HandleEuPagoWebhook processes a payment notification. The caller always
// acknowledges with 200 regardless of the returned error, which exists only
// so failures get logged: EuPago retries non-200 responses indefinitely, and
// a silent ack on key mismatch avoids leaking validation state.
func (s *Service) HandleEuPagoWebhook(ctx context.Context, p WebhookParams) error {
	st, err := s.settings.GetProviderSettings(ctx, ProviderEuPago)
	if err != nil {
		return err
	}
	if p.APIKey == "" || p.APIKey != st.WebhookSecret {
		log.Printf("eupago webhook: api key mismatch, dropping")
		return nil
	}

	order, err := s.resolveWebhookOrder(ctx, p)
	if err != nil {
		return err
	}
	if order == nil {
		// Unknown reference: possibly a retried or unrelated event.
		log.Printf("eupago webhook: no matching order, dropping")
		return nil
	}
	if order.PaymentStatus == domain.PaymentStatusCompleted {
		return nil
	}

	metadata := map[string]any{}
	if p.TransactionID != "" {
		metadata[metaEuPagoTxID] = p.TransactionID
	}
	if p.Value != "" {
		metadata["eupago_paid_value"] = p.Value
	}

	_, confirmedNow, err := s.orders.ConfirmOrder(ctx, order.ID, metadata)
	if err != nil {
		return err
	}
	if !confirmedNow {
		log.Printf("eupago webhook: order %s already completed", order.ID)
	}
	return nil
}

// resolveWebhookOrder tries, in order: reference+entity, transaction id,
// identifier. EuPago's payloads are not consistent about which fields they
// carry.
func (s *Service) resolveWebhookOrder(ctx context.Context, p WebhookParams) (*domain.Order, error) {
	if p.Reference != "" {
		order, err := s.orders.GetOrderByProviderRef(ctx, metaEuPagoReference, p.Reference)
		if err == nil {
			if p.Entity != "" {
				if entity, _ := order.PaymentMetadata[metaEuPagoEntity].(string); entity != "" && entity != p.Entity {
					return nil, nil
				}
			}
			return order, nil
		}
		if !errors.Is(err, repository.ErrOrderNotFound) {
			return nil, err
		}
	}

	if p.TransactionID != "" {
		order, err := s.orders.GetOrderByProviderRef(ctx, metaEuPagoTxID, p.TransactionID)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, repository.ErrOrderNotFound) {
			return nil, err
		}
	}

	if p.Identifier != "" {
		order, err := s.orders.GetOrderByProviderRef(ctx, metaEuPagoIdent, p.Identifier)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, repository.ErrOrderNotFound) {
			return nil, err
		}
	}

	return nil, nil
}
