package ledger

import (
	"github.com/medflow/pharmacy-backend/pkg/config"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/medflow/pharmacy-backend/pkg/metrics"
)

// Dependencies are the collaborators sinks may need
type Dependencies struct {
	Store     RecordAppender
	Publisher EventPublisher // nil when RabbitMQ is not connected
	Logger    *logger.Logger
	Metrics   *metrics.Metrics
}

// FromConfig builds the configured sinks, each behind its own breaker
func FromConfig(cfg *config.LedgerConfig, deps Dependencies) (*Multi, error) {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	settings := BreakerSettings{
		MaxRequests:         cfg.Breaker.MaxRequests,
		Interval:            cfg.Breaker.Interval,
		Timeout:             cfg.Breaker.Timeout,
		ConsecutiveFailures: cfg.Breaker.ConsecutiveFailures,
	}

	var sinks []NamedSink
	add := func(name string, s Sink) {
		sinks = append(sinks, NamedSink{Name: name, Sink: NewBreaker(name, s, settings, log, deps.Metrics)})
	}

	if cfg.HasSink(config.SinkFile) {
		fs, err := NewFileSink(cfg.FilePath)
		if err != nil {
			return nil, err
		}
		add(config.SinkFile, fs)
	}
	if cfg.HasSink(config.SinkStore) && deps.Store != nil {
		add(config.SinkStore, NewStoreSink(deps.Store))
	}
	if cfg.HasSink(config.SinkEvents) {
		if deps.Publisher != nil {
			add(config.SinkEvents, NewEventSink(deps.Publisher))
		} else {
			log.Info().Msg("events ledger sink disabled: no message broker")
		}
	}

	return NewMulti(sinks...), nil
}
