package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/segmentio/kafka-go"

	"github.com/victor-jaber/cara-pt-ecom-sub000/internal/outbox"
	"github.com/victor-jaber/cara-pt-ecom-sub000/internal/repository"
)

// EmailSender delivers a rendered message. The production deployment plugs a
// transactional mail provider here; LogSender serves development.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

type LogSender struct{}

func (LogSender) Send(_ context.Context, to, subject, _ string) error {
	log.Printf("mail to %s: %s", to, subject)
	return nil
}

// orderEvent mirrors the outbox payload written by the order repository.
type orderEvent struct {
	OrderID       string         `json:"order_id"`
	UserID        string         `json:"user_id"`
	Total         string         `json:"total"`
	Status        string         `json:"status"`
	PaymentMethod string         `json:"payment_method"`
	Metadata      map[string]any `json:"metadata"`
}

type Consumer struct {
	sender EmailSender
	reader *kafka.Reader
}

func NewConsumer(sender EmailSender, brokers ...string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    outbox.Topic,
		GroupID:  "mailer",
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{sender, reader}
}

func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		log.Printf("error closing kafka reader: %v", err)
	}
}

func (c *Consumer) processMessage(ctx context.Context) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Printf("error reading message: %v", err)
		return
	}

	eventType := headerValue(m, "event_type")
	if err := c.handleEvent(ctx, eventType, m.Value); err != nil {
		log.Printf("failed to handle %s event: %v", eventType, err)
	}
}

func (c *Consumer) handleEvent(ctx context.Context, eventType string, payload []byte) error {
	var event orderEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("parse event payload: %w", err)
	}

	to, _ := event.Metadata["customer_email"].(string)
	if to == "" {
		return fmt.Errorf("event for order %s carries no customer email", event.OrderID)
	}

	switch eventType {
	case repository.EventOrderCreated:
		return c.sender.Send(ctx, to, createdSubject(event), createdBody(event))
	case repository.EventOrderConfirmed:
		subject := fmt.Sprintf("Pagamento confirmado: encomenda %s", event.OrderID)
		body := fmt.Sprintf("O pagamento de %s EUR da encomenda %s foi confirmado.", event.Total, event.OrderID)
		return c.sender.Send(ctx, to, subject, body)
	default:
		// Unknown event types are skipped, not retried.
		return nil
	}
}

// createdSubject and createdBody cover the pending-order notification. For
// Multibanco the mail repeats the reference so the customer can pay later
// from home banking.
func createdSubject(event orderEvent) string {
	return fmt.Sprintf("Recebemos a sua encomenda %s", event.OrderID)
}

func createdBody(event orderEvent) string {
	body := fmt.Sprintf("A sua encomenda %s no valor de %s EUR aguarda pagamento.", event.OrderID, event.Total)
	entity, _ := event.Metadata["eupago_entity"].(string)
	reference, _ := event.Metadata["eupago_reference"].(string)
	if entity != "" && reference != "" {
		body += fmt.Sprintf("\nEntidade: %s\nReferência: %s", entity, reference)
	}
	return body
}

func headerValue(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
