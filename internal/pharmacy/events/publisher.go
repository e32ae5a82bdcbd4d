package events

import (
	"context"
	"time"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/medflow/pharmacy-backend/pkg/messaging"
)

// Source identifies this service on published events
const Source = "pharmacy-service"

// Publisher is satisfied by *messaging.Publisher
type Publisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// PharmacyEventPublisher publishes pharmacy events.
// A nil *PharmacyEventPublisher is valid and publishes nothing.
type PharmacyEventPublisher struct {
	publisher Publisher
	logger    *logger.Logger
}

// NewPharmacyEventPublisher declares the pharmacy exchange and returns a publisher for it
func NewPharmacyEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*PharmacyEventPublisher, *messaging.Publisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangePharmacyEvents, Source, log)
	if err != nil {
		return nil, nil, err
	}
	return New(publisher, log), publisher, nil
}

// New wraps an existing publisher
func New(publisher Publisher, log *logger.Logger) *PharmacyEventPublisher {
	return &PharmacyEventPublisher{
		publisher: publisher,
		logger:    log,
	}
}

// PublishInvoiceSettled announces a committed settlement
func (p *PharmacyEventPublisher) PublishInvoiceSettled(ctx context.Context, inv *domain.Invoice) {
	if p == nil {
		return
	}

	lines := make([]messaging.InvoiceSettledLine, len(inv.Lines))
	for i, l := range inv.Lines {
		lines[i] = messaging.InvoiceSettledLine{
			MedicineID: l.MedicineID,
			Quantity:   l.Quantity,
			UnitPrice:  l.UnitPrice,
			LineTotal:  l.LineTotal,
		}
	}

	settledAt := inv.CreatedAt
	if settledAt.IsZero() {
		settledAt = time.Now().UTC()
	}

	data := messaging.InvoiceSettledEvent{
		InvoiceID:      inv.ID,
		UserID:         inv.UserID,
		PrescriptionID: inv.PrescriptionID,
		TotalAmount:    inv.TotalAmount,
		Lines:          lines,
		SettledAt:      settledAt,
	}

	if err := p.publisher.Publish(ctx, messaging.EventInvoiceSettled, data); err != nil {
		p.logger.Error().Err(err).Str("invoice_id", inv.ID).Msg("failed to publish invoice settled event")
	}
}

// PublishPrescriptionReconciled announces a newly created prescription
func (p *PharmacyEventPublisher) PublishPrescriptionReconciled(ctx context.Context, rx *domain.Prescription, missing int) {
	if p == nil {
		return
	}

	data := messaging.PrescriptionReconciledEvent{
		PrescriptionID: rx.ID,
		Status:         string(rx.Status),
		ResolvedLines:  len(rx.Lines),
		MissingLines:   missing,
	}

	if err := p.publisher.Publish(ctx, messaging.EventPrescriptionReconciled, data); err != nil {
		p.logger.Error().Err(err).Str("prescription_id", rx.ID).Msg("failed to publish prescription reconciled event")
	}
}
