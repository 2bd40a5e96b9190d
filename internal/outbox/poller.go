package outbox

import (
	"context"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/victor-jaber/cara-pt-ecom-sub000/internal/repository"
)

const Topic = "order-events"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Poller drains the outbox table into Kafka. It also owns the optional
// stale-order sweep: pending orders whose payment never arrived get cancelled
// after staleAge. A zero staleAge disables the sweep.
type Poller struct {
	eventTick time.Duration
	staleTick time.Duration
	staleAge  time.Duration
	repo      repository.OrderRepository
	writer    messageWriter
}

func NewPoller(repo repository.OrderRepository, staleAge time.Duration, brokers ...string) *Poller {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  Topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &Poller{
		eventTick: time.Second,
		staleTick: time.Minute,
		staleAge:  staleAge,
		repo:      repo,
		writer:    w,
	}
}

func (p *Poller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	staleTicker := time.NewTicker(p.staleTick)
	defer eventTicker.Stop()
	defer staleTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-staleTicker.C:
			p.cancelStaleOrders(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *Poller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnprocessedEvents(ctx, 100)
	if err != nil {
		log.Printf("failed to fetch events %v", err)
		return
	}

	for _, event := range events {
		if errPublish := p.publishToKafka(ctx, event); errPublish != nil {
			log.Printf("failed to publish event id = %v with error %v", event.ID, errPublish)
			continue
		}

		if errMark := p.repo.MarkEventAsProcessed(ctx, event.ID); errMark != nil {
			log.Printf("failed to mark event as processed id = %v with error %v", event.ID, errMark)
			continue
		}
	}
}

func (p *Poller) cancelStaleOrders(ctx context.Context) {
	if p.staleAge <= 0 {
		return
	}
	n, err := p.repo.CancelStaleOrders(ctx, p.staleAge)
	if err != nil {
		log.Printf("failed to cancel stale orders: %v", err)
		return
	}
	if n > 0 {
		log.Printf("cancelled %d stale pending orders", n)
	}
}

func (p *Poller) publishToKafka(ctx context.Context, event *repository.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateID), // order id for ordering
		Value: event.Payload,             // Already JSON from database
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}
