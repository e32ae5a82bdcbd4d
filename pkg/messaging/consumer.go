package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/medflow/pharmacy-backend/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MaxDeliveryAttempts is how often a failing message is delivered before it is dead-lettered
const MaxDeliveryAttempts = 3

// MessageHandler processes one decoded event
type MessageHandler func(ctx context.Context, event *Event) error

// HandlerRegistry is the part of a Consumer that event handlers attach to
type HandlerRegistry interface {
	RegisterHandler(eventType string, handler MessageHandler)
}

type disposition int

const (
	ack disposition = iota
	requeue
	deadLetter
)

// Consumer reads one durable queue and routes events to handlers by type
type Consumer struct {
	rmq       *RabbitMQ
	queueName string
	handlers  map[string]MessageHandler
	// attempts is keyed by event ID. Requeued deliveries carry no x-death header,
	// so failures are also counted here. Only the delivery goroutine touches it.
	attempts map[string]int
	logger   *logger.Logger
}

// NewConsumer declares queueName and returns a consumer for it
func NewConsumer(rmq *RabbitMQ, queueName string, log *logger.Logger) (*Consumer, error) {
	if _, err := rmq.DeclareQueue(queueName); err != nil {
		return nil, fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}

	return &Consumer{
		rmq:       rmq,
		queueName: queueName,
		handlers:  make(map[string]MessageHandler),
		attempts:  make(map[string]int),
		logger:    log.WithComponent("consumer:" + queueName),
	}, nil
}

// Subscribe binds the queue to exchange for routing keys matching pattern
func (c *Consumer) Subscribe(exchange, pattern string) error {
	if err := c.rmq.DeclareExchange(exchange); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}
	if err := c.rmq.BindQueue(c.queueName, exchange, pattern); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	c.logger.Info().
		Str("exchange", exchange).
		Str("routing_key", pattern).
		Msg("subscribed to exchange")
	return nil
}

func (c *Consumer) RegisterHandler(eventType string, handler MessageHandler) {
	c.handlers[eventType] = handler
}

// Start consumes in the background until ctx is done or the channel closes
func (c *Consumer) Start(ctx context.Context) error {
	deliveries, err := c.rmq.consumeChannel().ConsumeWithContext(ctx, c.queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info().Msg("consumer started")

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.logger.Info().Msg("consumer stopped")
				return
			case d, ok := <-deliveries:
				if !ok {
					c.logger.Warn().Msg("delivery channel closed")
					return
				}
				c.settle(d, c.handle(ctx, d))
			}
		}
	}()

	return nil
}

// handle decodes and dispatches one delivery and decides its fate
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) disposition {
	var event Event
	if err := json.Unmarshal(d.Body, &event); err != nil {
		c.logger.Error().Err(err).Str("message_id", d.MessageId).Msg("failed to unmarshal event")
		return deadLetter
	}

	handled, err := c.Dispatch(ctx, &event)
	if !handled || err == nil {
		delete(c.attempts, event.ID)
		return ack
	}

	c.attempts[event.ID]++
	attempt := max(getRetryCount(d), c.attempts[event.ID])
	if attempt < MaxDeliveryAttempts {
		return requeue
	}

	delete(c.attempts, event.ID)
	c.logger.Warn().
		Str("event_id", event.ID).
		Str("event_type", event.Type).
		Int("attempts", attempt).
		Msg("max delivery attempts reached, dead-lettering")
	return deadLetter
}

func (c *Consumer) settle(d amqp.Delivery, disp disposition) {
	var err error
	switch disp {
	case ack:
		err = d.Ack(false)
	case requeue:
		err = d.Nack(false, true)
	case deadLetter:
		err = d.Reject(false)
	}
	if err != nil {
		c.logger.Error().Err(err).Uint64("delivery_tag", d.DeliveryTag).Msg("failed to settle delivery")
	}
}

// Dispatch runs the handler registered for the event's type.
// handled is false when no handler is registered.
func (c *Consumer) Dispatch(ctx context.Context, event *Event) (handled bool, err error) {
	handler, ok := c.handlers[event.Type]
	if !ok {
		c.logger.Debug().Str("event_type", event.Type).Msg("no handler registered for event type")
		return false, nil
	}

	ctx = WithCorrelationID(ctx, event.CorrelationID)

	if err := handler(ctx, event); err != nil {
		c.logger.Error().
			Err(err).
			Str("event_type", event.Type).
			Str("event_id", event.ID).
			Str("correlation_id", event.CorrelationID).
			Msg("failed to process event")
		return true, err
	}

	c.logger.Debug().
		Str("event_type", event.Type).
		Str("event_id", event.ID).
		Msg("event processed")
	return true, nil
}

// getRetryCount reads the broker's x-death count from a dead-lettered redelivery
func getRetryCount(d amqp.Delivery) int {
	deaths, _ := d.Headers["x-death"].([]interface{})
	for _, death := range deaths {
		if t, ok := death.(amqp.Table); ok {
			if count, ok := t["count"].(int64); ok {
				return int(count)
			}
		}
	}
	return 0
}
