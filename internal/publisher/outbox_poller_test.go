package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cyb3rKotl3Ta/bookshop/internal/repository"
)

type mockOutboxRepo struct {
	events    []*repository.OutboxEvent
	published map[string]bool
	getErr    error
	markErr   error
}

func (m *mockOutboxRepo) GetUnpublishedEvents(_ context.Context, limit int) ([]*repository.OutboxEvent, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var out []*repository.OutboxEvent
	for _, e := range m.events {
		if !m.published[e.ID] {
			out = append(out, e)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *mockOutboxRepo) MarkEventPublished(_ context.Context, id string) error {
	if m.markErr != nil {
		return m.markErr
	}
	if m.published == nil {
		m.published = map[string]bool{}
	}
	m.published[id] = true
	return nil
}

type mockWriter struct {
	msgs     []kafka.Message
	writeErr error
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.msgs = append(m.msgs, msgs...)
	return nil
}

func newTestPoller(repo repository.OutboxRepository, writer KafkaWriter) *OutboxPoller {
	return &OutboxPoller{
		repo:    repo,
		writer:  writer,
		breaker: gobreaker.NewCircuitBreaker[any](gobreaker.Settings{Name: "test"}),
		tick:    time.Millisecond,
		batch:   100,
		log:     zerolog.Nop(),
	}
}

func TestProcessUnpublishedEvents(t *testing.T) {
	repo := &mockOutboxRepo{events: []*repository.OutboxEvent{
		{ID: "e1", AggregateID: "1", EventType: "purchase.completed", Payload: []byte(`{"user_id":1}`)},
		{ID: "e2", AggregateID: "2", EventType: "purchase.completed", Payload: []byte(`{"user_id":2}`)},
	}}
	writer := &mockWriter{}

	p := newTestPoller(repo, writer)
	p.processUnpublishedEvents(context.Background())

	require.Len(t, writer.msgs, 2)
	assert.Equal(t, []byte("1"), writer.msgs[0].Key)
	assert.Equal(t, []byte(`{"user_id":1}`), []byte(writer.msgs[0].Value))
	require.Len(t, writer.msgs[0].Headers, 1)
	assert.Equal(t, "event_type", writer.msgs[0].Headers[0].Key)
	assert.Equal(t, []byte("purchase.completed"), writer.msgs[0].Headers[0].Value)

	assert.True(t, repo.published["e1"])
	assert.True(t, repo.published["e2"])
}

func TestProcessUnpublishedEvents_WriteFailureKeepsEvent(t *testing.T) {
	repo := &mockOutboxRepo{events: []*repository.OutboxEvent{
		{ID: "e1", AggregateID: "1", EventType: "purchase.completed", Payload: []byte(`{}`)},
	}}
	writer := &mockWriter{writeErr: errors.New("broker down")}

	p := newTestPoller(repo, writer)
	p.processUnpublishedEvents(context.Background())

	// Publish failed, so the event must stay unpublished for the next pass.
	assert.False(t, repo.published["e1"])

	writer.writeErr = nil
	p.processUnpublishedEvents(context.Background())
	assert.True(t, repo.published["e1"])
}

func TestProcessUnpublishedEvents_MarkFailureRepublishes(t *testing.T) {
	repo := &mockOutboxRepo{
		events: []*repository.OutboxEvent{
			{ID: "e1", AggregateID: "1", EventType: "purchase.completed", Payload: []byte(`{}`)},
		},
		markErr: errors.New("db down"),
	}
	writer := &mockWriter{}

	p := newTestPoller(repo, writer)
	p.processUnpublishedEvents(context.Background())
	require.Len(t, writer.msgs, 1)

	// Marking failed: a later pass re-sends the same event (at-least-once).
	repo.markErr = nil
	p.processUnpublishedEvents(context.Background())
	assert.Len(t, writer.msgs, 2)
	assert.True(t, repo.published["e1"])
}

func TestPublish_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	repo := &mockOutboxRepo{}
	writer := &mockWriter{writeErr: errors.New("broker down")}

	p := newTestPoller(repo, writer)
	event := &repository.OutboxEvent{ID: "e1", AggregateID: "1", EventType: "purchase.completed", Payload: []byte(`{}`)}

	// Default settings trip the breaker once consecutive failures exceed five.
	for i := 0; i < 6; i++ {
		require.Error(t, p.publish(context.Background(), event))
	}

	err := p.publish(context.Background(), event)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}
