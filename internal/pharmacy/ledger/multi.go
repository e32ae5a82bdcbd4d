package ledger

import (
	"context"
	"fmt"

	"github.com/medflow/pharmacy-backend/pkg/errors"
)

// NamedSink pairs a sink with the name used in errors and metrics
type NamedSink struct {
	Name string
	Sink Sink
}

// Multi fans a record out to several sinks
type Multi struct {
	sinks []NamedSink
}

// NewMulti creates a fan-out sink
func NewMulti(sinks ...NamedSink) *Multi {
	return &Multi{sinks: sinks}
}

// Append tries every sink, even after one fails, and joins their errors
func (m *Multi) Append(ctx context.Context, rec Record) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Sink.Append(ctx, rec); err != nil {
			errs = append(errs, fmt.Errorf("%s sink: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Len returns how many sinks are configured
func (m *Multi) Len() int {
	return len(m.sinks)
}
