package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types
const (
	// User events (consumed from the identity service)
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"

	// Pharmacy events
	EventInvoiceSettled         = "pharmacy.invoice.settled"
	EventPrescriptionReconciled = "pharmacy.prescription.reconciled"
	EventMedicineMissing        = "pharmacy.medicine.missing"
)

// Exchange names
const (
	ExchangeUserEvents     = "user.events"
	ExchangePharmacyEvents = "pharmacy.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// User Events

// UserCreatedEvent is published when a user is created
type UserCreatedEvent struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	RoleName  string `json:"role_name"`
}

// UserUpdatedEvent is published when a user is updated.
// Fields maps a field name to {"from": old, "to": new}.
type UserUpdatedEvent struct {
	UserID string         `json:"user_id"`
	Fields map[string]any `json:"fields"`
}

// UserDeletedEvent is published when a user is deleted
type UserDeletedEvent struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// Pharmacy Events

// InvoiceSettledEvent is published after a settlement commits
type InvoiceSettledEvent struct {
	InvoiceID      string               `json:"invoice_id"`
	UserID         string               `json:"user_id"`
	PrescriptionID *string              `json:"prescription_id,omitempty"`
	TotalAmount    decimal.Decimal      `json:"total_amount"`
	Lines          []InvoiceSettledLine `json:"lines"`
	SettledAt      time.Time            `json:"settled_at"`
}

// InvoiceSettledLine is one stock movement caused by a settlement
type InvoiceSettledLine struct {
	MedicineID string          `json:"medicine_id"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	LineTotal  decimal.Decimal `json:"line_total"`
}

// PrescriptionReconciledEvent is published after a prescription is created
type PrescriptionReconciledEvent struct {
	PrescriptionID string `json:"prescription_id"`
	Status         string `json:"status"`
	ResolvedLines  int    `json:"resolved_lines"`
	MissingLines   int    `json:"missing_lines"`
}

// MedicineMissingEvent carries one missing-medicine ledger record
type MedicineMissingEvent struct {
	PrescriptionID string    `json:"prescription_id"`
	PatientID      string    `json:"patient_id"`
	PatientName    string    `json:"patient_name"`
	DoctorName     string    `json:"doctor_name"`
	MedicineName   string    `json:"medicine_name"`
	Quantity       int       `json:"quantity"`
	RecordedAt     time.Time `json:"recorded_at"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return uuid.New().String()
}
