// Package messaging carries pharmacy and user events over RabbitMQ topic exchanges.
package messaging

import (
	"fmt"
	"sync"
	"time"

	"github.com/medflow/pharmacy-backend/pkg/config"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
)

// DeadLetterExchange receives messages rejected after the retry budget is spent
const DeadLetterExchange = "dlx.events"

// RabbitMQ owns one connection with separate channels for publishing and consuming,
// so a slow consumer never holds up publishes.
type RabbitMQ struct {
	mu        sync.RWMutex
	conn      *amqp.Connection
	publishCh *amqp.Channel
	consumeCh *amqp.Channel
	closed    bool

	config *config.RabbitMQConfig
	logger *logger.Logger
}

// New dials the broker, retrying up to MaxRetries times ReconnectDelay apart
func New(cfg *config.RabbitMQConfig, log *logger.Logger) (*RabbitMQ, error) {
	r := &RabbitMQ{config: cfg, logger: log}

	attempts := max(cfg.MaxRetries, 1)
	var err error
	for i := 1; i <= attempts; i++ {
		if err = r.dial(); err == nil {
			return r, nil
		}
		log.Warn().Err(err).Int("attempt", i).Int("max_attempts", attempts).Msg("RabbitMQ not reachable")
		if i < attempts {
			time.Sleep(cfg.ReconnectDelay)
		}
	}
	return nil, err
}

func (r *RabbitMQ) dial() error {
	conn, err := amqp.Dial(r.config.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	publishCh, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open publish channel: %w", err)
	}

	consumeCh, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open consume channel: %w", err)
	}
	if err := consumeCh.Qos(r.config.PrefetchCount, 0, false); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	r.conn, r.publishCh, r.consumeCh = conn, publishCh, consumeCh
	go r.watch(conn.NotifyClose(make(chan *amqp.Error, 1)))

	r.logger.Info().Int("prefetch", r.config.PrefetchCount).Msg("connected to RabbitMQ")
	return nil
}

// watch reports a connection the broker dropped; Health turns "down" from then on
func (r *RabbitMQ) watch(closed <-chan *amqp.Error) {
	err, ok := <-closed
	if !ok || err == nil {
		return
	}

	r.mu.RLock()
	shuttingDown := r.closed
	r.mu.RUnlock()
	if shuttingDown {
		return
	}

	r.logger.Error().
		Int("code", err.Code).
		Str("reason", err.Reason).
		Bool("server", err.Server).
		Msg("RabbitMQ connection lost")
}

// Channel is the channel publishers write to
func (r *RabbitMQ) Channel() *amqp.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.publishCh
}

func (r *RabbitMQ) consumeChannel() *amqp.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.consumeCh
}

// Close shuts both channels and the connection
func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true

	for _, ch := range []*amqp.Channel{r.consumeCh, r.publishCh} {
		if ch == nil {
			continue
		}
		if err := ch.Close(); err != nil && err != amqp.ErrClosed {
			r.logger.Warn().Err(err).Msg("failed to close channel")
		}
	}

	if r.conn != nil && !r.conn.IsClosed() {
		if err := r.conn.Close(); err != nil {
			return fmt.Errorf("failed to close connection: %w", err)
		}
	}

	r.logger.Info().Msg("RabbitMQ connection closed")
	return nil
}

func (r *RabbitMQ) Health() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.conn == nil || r.conn.IsClosed() {
		return map[string]string{"status": "down", "error": "connection closed"}
	}
	return map[string]string{"status": "up"}
}

// DeclareExchange declares a durable topic exchange
func (r *RabbitMQ) DeclareExchange(name string) error {
	return r.Channel().ExchangeDeclare(name, amqp.ExchangeTopic, true, false, false, false, nil)
}

// DeclareQueue declares a durable queue that dead-letters into DeadLetterExchange
func (r *RabbitMQ) DeclareQueue(name string) (amqp.Queue, error) {
	return r.Channel().QueueDeclare(name, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange": DeadLetterExchange,
	})
}

// BindQueue binds a queue to an exchange with a routing key pattern
func (r *RabbitMQ) BindQueue(queueName, exchange, routingKey string) error {
	return r.Channel().QueueBind(queueName, routingKey, exchange, false, nil)
}

// DeclareDeadLetterQueue creates dlq.<service> catching everything the service rejects
func (r *RabbitMQ) DeclareDeadLetterQueue(serviceName string) error {
	if err := r.DeclareExchange(DeadLetterExchange); err != nil {
		return fmt.Errorf("failed to declare DLX exchange: %w", err)
	}

	queueName := "dlq." + serviceName
	if _, err := r.Channel().QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare DLQ queue: %w", err)
	}

	if err := r.BindQueue(queueName, DeadLetterExchange, "#"); err != nil {
		return fmt.Errorf("failed to bind DLQ: %w", err)
	}
	return nil
}
