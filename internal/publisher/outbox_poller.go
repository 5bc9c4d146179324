package publisher

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"

	"github.com/Cyb3rKotl3Ta/bookshop/internal/repository"
)

// KafkaWriter is the slice of *kafka.Writer the poller needs.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// OutboxPoller drains purchase_outbox rows written by the checkout
// transaction and publishes them to Kafka. Publishing goes through a
// circuit breaker so a dead broker does not stall every tick; unpublished
// rows simply wait for a later pass.
type OutboxPoller struct {
	repo    repository.OutboxRepository
	writer  KafkaWriter
	breaker *gobreaker.CircuitBreaker[any]
	tick    time.Duration
	batch   int
	log     zerolog.Logger
}

func NewOutboxPoller(repo repository.OutboxRepository, log zerolog.Logger, brokers ...string) *OutboxPoller {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  "purchase-events",
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:    "kafka-outbox",
		Timeout: 30 * time.Second,
	})
	return &OutboxPoller{
		repo:    repo,
		writer:  w,
		breaker: breaker,
		tick:    time.Second,
		batch:   100,
		log:     log,
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.processUnpublishedEvents(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnpublishedEvents(ctx, p.batch)
	if err != nil {
		p.log.Error().Err(err).Msg("failed to fetch outbox events")
		return
	}

	for _, event := range events {
		if errPublish := p.publish(ctx, event); errPublish != nil {
			p.log.Error().Err(errPublish).Str("event_id", event.ID).Msg("failed to publish outbox event")
			continue
		}

		if errMark := p.repo.MarkEventPublished(ctx, event.ID); errMark != nil {
			// Event stays unpublished and will be re-sent; consumers must
			// treat purchase.completed as at-least-once.
			p.log.Error().Err(errMark).Str("event_id", event.ID).Msg("failed to mark outbox event published")
		}
	}
}

func (p *OutboxPoller) publish(ctx context.Context, event *repository.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateID), // user id, keeps per-user ordering
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}

	_, err := p.breaker.Execute(func() (any, error) {
		return nil, p.writer.WriteMessages(ctx, msg)
	})
	return err
}
