package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/medflow/pharmacy-backend/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConsumer() *Consumer {
	return &Consumer{
		queueName: "test.queue",
		handlers:  make(map[string]MessageHandler),
		attempts:  make(map[string]int),
		logger:    logger.Nop(),
	}
}

func TestConsumer_Dispatch(t *testing.T) {
	ctx := context.Background()

	t.Run("unregistered event type is not handled", func(t *testing.T) {
		c := newTestConsumer()

		handled, err := c.Dispatch(ctx, &Event{Type: "unknown.event"})
		require.NoError(t, err)
		assert.False(t, handled)
	})

	t.Run("handler receives correlation id on context", func(t *testing.T) {
		c := newTestConsumer()

		var gotCorrelation string
		c.RegisterHandler(EventUserCreated, func(ctx context.Context, event *Event) error {
			gotCorrelation = getCorrelationID(ctx)
			return nil
		})

		handled, err := c.Dispatch(ctx, &Event{ID: "e1", Type: EventUserCreated, CorrelationID: "corr-1"})
		require.NoError(t, err)
		assert.True(t, handled)
		assert.Equal(t, "corr-1", gotCorrelation)
	})

	t.Run("handler error is returned", func(t *testing.T) {
		c := newTestConsumer()
		boom := errors.New("boom")
		c.RegisterHandler(EventUserDeleted, func(ctx context.Context, event *Event) error {
			return boom
		})

		handled, err := c.Dispatch(ctx, &Event{ID: "e2", Type: EventUserDeleted})
		assert.True(t, handled)
		assert.ErrorIs(t, err, boom)
	})
}

type recordingAck struct {
	acked, nacked, rejected int
	requeued                bool
}

func (a *recordingAck) Ack(tag uint64, multiple bool) error {
	a.acked++
	return nil
}

func (a *recordingAck) Nack(tag uint64, multiple, requeue bool) error {
	a.nacked++
	a.requeued = requeue
	return nil
}

func (a *recordingAck) Reject(tag uint64, requeue bool) error {
	a.rejected++
	a.requeued = requeue
	return nil
}

func delivery(t *testing.T, ack *recordingAck, event *Event) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(event)
	require.NoError(t, err)
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: body}
}

func TestConsumer_HandleDisposition(t *testing.T) {
	ctx := context.Background()

	t.Run("success acks", func(t *testing.T) {
		c := newTestConsumer()
		c.RegisterHandler(EventUserCreated, func(context.Context, *Event) error { return nil })

		ack := &recordingAck{}
		d := delivery(t, ack, &Event{ID: "e1", Type: EventUserCreated})
		c.settle(d, c.handle(ctx, d))
		assert.Equal(t, 1, ack.acked)
	})

	t.Run("unknown type acks", func(t *testing.T) {
		c := newTestConsumer()
		ack := &recordingAck{}
		d := delivery(t, ack, &Event{ID: "e2", Type: "inventory.restocked"})
		c.settle(d, c.handle(ctx, d))
		assert.Equal(t, 1, ack.acked)
	})

	t.Run("malformed body is dead-lettered", func(t *testing.T) {
		c := newTestConsumer()
		ack := &recordingAck{}
		d := amqp.Delivery{Acknowledger: ack, Body: []byte("{not json")}
		c.settle(d, c.handle(ctx, d))
		assert.Equal(t, 1, ack.rejected)
		assert.False(t, ack.requeued)
	})

	t.Run("failures requeue until the attempt budget is spent", func(t *testing.T) {
		c := newTestConsumer()
		c.RegisterHandler(EventUserUpdated, func(context.Context, *Event) error { return errors.New("db down") })

		event := &Event{ID: "e3", Type: EventUserUpdated}
		for i := 1; i < MaxDeliveryAttempts; i++ {
			ack := &recordingAck{}
			d := delivery(t, ack, event)
			c.settle(d, c.handle(ctx, d))
			assert.Equal(t, 1, ack.nacked, "attempt %d", i)
			assert.True(t, ack.requeued)
		}

		ack := &recordingAck{}
		d := delivery(t, ack, event)
		c.settle(d, c.handle(ctx, d))
		assert.Equal(t, 1, ack.rejected)
		assert.False(t, ack.requeued)
		assert.NotContains(t, c.attempts, "e3")
	})
}

func TestGetRetryCount(t *testing.T) {
	tests := []struct {
		name     string
		headers  amqp.Table
		expected int
	}{
		{"no headers", nil, 0},
		{"no x-death", amqp.Table{"other": "x"}, 0},
		{
			"x-death count",
			amqp.Table{"x-death": []interface{}{amqp.Table{"count": int64(2)}}},
			2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, getRetryCount(amqp.Delivery{Headers: tt.headers}))
		})
	}
}

func TestNewEvent(t *testing.T) {
	event, err := NewEvent(EventMedicineMissing, "pharmacy-service", "corr", MedicineMissingEvent{
		PatientID:    "1234567890123",
		MedicineName: "Aspirin",
		Quantity:     2,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, EventMedicineMissing, event.Type)
	assert.Equal(t, "corr", event.CorrelationID)

	var data MedicineMissingEvent
	require.NoError(t, event.UnmarshalData(&data))
	assert.Equal(t, "Aspirin", data.MedicineName)
	assert.Equal(t, 2, data.Quantity)
}
