package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/medflow/pharmacy-backend/pkg/errors"
	"github.com/medflow/pharmacy-backend/pkg/httputil"
)

// QueryService is the read side of prescriptions, invoices and the ledger
type QueryService struct {
	prescriptions PrescriptionStore
	invoices      InvoiceStore
	missing       MissingMedicineStore
}

// NewQueryService creates a new query service
func NewQueryService(prescriptions PrescriptionStore, invoices InvoiceStore, missing MissingMedicineStore) *QueryService {
	return &QueryService{
		prescriptions: prescriptions,
		invoices:      invoices,
		missing:       missing,
	}
}

// GetPrescription gets a prescription with its lines
func (s *QueryService) GetPrescription(ctx context.Context, id string) (*domain.Prescription, error) {
	if uuid.Validate(id) != nil {
		return nil, errors.NotFound("prescription " + id)
	}
	return s.prescriptions.GetWithLines(ctx, id)
}

// ListPrescriptions lists prescriptions, newest first
func (s *QueryService) ListPrescriptions(ctx context.Context, page, perPage int) ([]*domain.Prescription, int64, error) {
	return s.prescriptions.List(ctx, page, perPage)
}

// ListByPatient lists a patient's prescriptions
func (s *QueryService) ListByPatient(ctx context.Context, embg string) ([]*domain.Prescription, error) {
	if err := requireEMBG(embg); err != nil {
		return nil, err
	}
	return s.prescriptions.ListByPatient(ctx, embg)
}

// ListByDoctor lists prescriptions issued by a doctor
func (s *QueryService) ListByDoctor(ctx context.Context, doctor string) ([]*domain.Prescription, error) {
	doctor = strings.TrimSpace(doctor)
	if doctor == "" {
		return nil, errors.ValidationMessage("doctor name is required", map[string]string{"doctor": "this field is required"})
	}
	return s.prescriptions.ListByDoctor(ctx, doctor)
}

// SearchPrescriptions matches an exact EMBG or part of a patient or doctor name
func (s *QueryService) SearchPrescriptions(ctx context.Context, q string) ([]*domain.Prescription, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, errors.ValidationMessage("search term is required", map[string]string{"q": "this field is required"})
	}
	return s.prescriptions.Search(ctx, q)
}

// EmbgExists reports whether a prescription exists for the patient
func (s *QueryService) EmbgExists(ctx context.Context, embg string) (bool, error) {
	if err := requireEMBG(embg); err != nil {
		return false, err
	}
	return s.prescriptions.EmbgExists(ctx, embg)
}

// GetInvoice gets an invoice with its lines
func (s *QueryService) GetInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	if uuid.Validate(id) != nil {
		return nil, errors.NotFound("invoice " + id)
	}
	return s.invoices.GetByID(ctx, id)
}

// ListInvoices lists invoices, newest first
func (s *QueryService) ListInvoices(ctx context.Context, page, perPage int) ([]*domain.InvoiceSummary, int64, error) {
	return s.invoices.List(ctx, page, perPage)
}

// ListInvoicesByUser lists invoices issued by a user
func (s *QueryService) ListInvoicesByUser(ctx context.Context, userID string) ([]*domain.InvoiceSummary, error) {
	return s.invoices.ListByUser(ctx, userID)
}

// ListInvoicesByDateRange lists invoices created between start and end inclusive
func (s *QueryService) ListInvoicesByDateRange(ctx context.Context, start, end time.Time) ([]*domain.InvoiceSummary, error) {
	if start.After(end) {
		return nil, errors.ValidationMessage("start must not be after end", map[string]string{"start": "must not be after end"})
	}
	return s.invoices.ListByDateRange(ctx, start, end)
}

// ListMissingMedicines lists stored ledger records, newest first
func (s *QueryService) ListMissingMedicines(ctx context.Context, page, perPage int) ([]*domain.MissingMedicineRecord, int64, error) {
	return s.missing.List(ctx, page, perPage)
}

func requireEMBG(embg string) error {
	if !httputil.IsEMBG(embg) {
		return errors.ValidationMessage("patient id must be exactly 13 digits", map[string]string{"patient_id": "must be exactly 13 digits"})
	}
	return nil
}
