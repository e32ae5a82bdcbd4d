package ledger

import (
	"context"
	"time"

	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/medflow/pharmacy-backend/pkg/metrics"
	"github.com/sony/gobreaker"
)

// BreakerSettings tunes a sink's circuit breaker
type BreakerSettings struct {
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

// Breaker stops calling a failing sink until it has had time to recover.
// While open, Append fails fast with gobreaker.ErrOpenState.
type Breaker struct {
	name string
	sink Sink
	cb   *gobreaker.CircuitBreaker
}

// NewBreaker wraps sink. m may be nil.
func NewBreaker(name string, sink Sink, settings BreakerSettings, log *logger.Logger, m *metrics.Metrics) *Breaker {
	threshold := settings.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}

	if m != nil {
		m.LedgerBreakerState.WithLabelValues(name).Set(float64(gobreaker.StateClosed))
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("sink", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("ledger sink breaker state changed")
			if m != nil {
				m.LedgerBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})

	return &Breaker{name: name, sink: sink, cb: cb}
}

// Append forwards rec unless the breaker is open
func (b *Breaker) Append(ctx context.Context, rec Record) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.sink.Append(ctx, rec)
	})
	return err
}

// State reports the breaker's current state
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}
