package ledger

import (
	"context"

	"github.com/medflow/pharmacy-backend/pkg/messaging"
)

// EventPublisher publishes a typed event
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// EventSink announces each record on the pharmacy events exchange
type EventSink struct {
	publisher EventPublisher
}

// NewEventSink creates an event sink
func NewEventSink(publisher EventPublisher) *EventSink {
	return &EventSink{publisher: publisher}
}

// Append publishes rec as pharmacy.medicine.missing
func (s *EventSink) Append(ctx context.Context, rec Record) error {
	return s.publisher.Publish(ctx, messaging.EventMedicineMissing, messaging.MedicineMissingEvent{
		PrescriptionID: rec.PrescriptionID,
		PatientID:      rec.PatientID,
		PatientName:    rec.PatientName,
		DoctorName:     rec.DoctorName,
		MedicineName:   rec.MedicineName,
		Quantity:       rec.Quantity,
		RecordedAt:     rec.RecordedAt,
	})
}
