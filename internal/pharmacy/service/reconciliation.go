package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/events"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/ledger"
	"github.com/medflow/pharmacy-backend/pkg/errors"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/medflow/pharmacy-backend/pkg/metrics"
)

// PrescriptionMedicineInput is one requested medicine. It is looked up by id;
// the name is only kept when the id is not in the catalog.
type PrescriptionMedicineInput struct {
	MedicineID   string `json:"medicine_id" validate:"omitempty,uuid"`
	MedicineName string `json:"medicine_name" validate:"max=255"`
	Quantity     int    `json:"quantity"`
}

// CreatePrescriptionInput is the request to reconcile a new prescription
type CreatePrescriptionInput struct {
	PatientID   string                      `json:"patient_id" validate:"required,embg"`
	PatientName string                      `json:"patient_name" validate:"required,max=255"`
	DoctorName  string                      `json:"doctor_name" validate:"required,max=255"`
	DateIssued  *time.Time                  `json:"date_issued"`
	Medicines   []PrescriptionMedicineInput `json:"medicines" validate:"dive"`
}

// ReconciliationResult is the created prescription plus what could not be resolved
type ReconciliationResult struct {
	Prescription     *domain.Prescription `json:"prescription"`
	MissingMedicines []domain.MissingLine `json:"missing_medicines"`
}

// ReconciliationService turns prescription requests into stored prescriptions
type ReconciliationService struct {
	tx            Transactor
	medicines     MedicineStore
	prescriptions PrescriptionStore
	ledger        ledger.Sink
	events        *events.PharmacyEventPublisher
	metrics       *metrics.Metrics
	logger        *logger.Logger
	now           func() time.Time
}

// NewReconciliationService creates a new reconciliation service.
// sink, publisher and m may be nil.
func NewReconciliationService(
	tx Transactor,
	medicines MedicineStore,
	prescriptions PrescriptionStore,
	sink ledger.Sink,
	publisher *events.PharmacyEventPublisher,
	m *metrics.Metrics,
	log *logger.Logger,
) *ReconciliationService {
	return &ReconciliationService{
		tx:            tx,
		medicines:     medicines,
		prescriptions: prescriptions,
		ledger:        sink,
		events:        publisher,
		metrics:       m,
		logger:        log.WithComponent("reconciliation"),
		now:           time.Now,
	}
}

// requestedLine is a request line after duplicate ids were merged
type requestedLine struct {
	index      int
	medicineID string
	name       string
	quantity   int
}

// CreatePrescription resolves the requested medicines against the catalog and
// stores the prescription with its resolved lines. Unresolved lines are returned
// and appended to the missing-medicine ledger once the prescription is committed.
func (s *ReconciliationService) CreatePrescription(ctx context.Context, in CreatePrescriptionInput) (*ReconciliationResult, error) {
	if err := validateCreatePrescription(&in); err != nil {
		return nil, err
	}

	requested, err := mergeRequested(in.Medicines)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(requested))
	for _, r := range requested {
		if r.medicineID != "" {
			ids = append(ids, r.medicineID)
		}
	}

	found, err := s.medicines.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to look up medicines: %w", err)
	}
	catalog := make(map[string]*domain.Medicine, len(found))
	for _, m := range found {
		catalog[m.ID] = m
	}

	lines := make([]domain.PrescriptionLine, 0, len(requested))
	missing := make([]domain.MissingLine, 0)
	details := make(map[string]string)

	for _, r := range requested {
		if m, ok := catalog[r.medicineID]; ok {
			lines = append(lines, domain.PrescriptionLine{
				MedicineID:   m.ID,
				MedicineName: m.Name,
				Quantity:     r.quantity,
			})
			continue
		}

		if r.name == "" {
			details[fmt.Sprintf("medicines[%d].medicine_name", r.index)] =
				fmt.Sprintf("medicine name is required when medicine (ID: %s) is not in the catalog", r.medicineID)
			continue
		}

		line := domain.MissingLine{MedicineName: r.name, Quantity: r.quantity}
		if r.medicineID != "" {
			id := r.medicineID
			line.MedicineID = &id
		}
		missing = append(missing, line)
	}
	if err := validationError(details); err != nil {
		return nil, err
	}

	p := &domain.Prescription{
		PatientID:   in.PatientID,
		PatientName: in.PatientName,
		DoctorName:  in.DoctorName,
		Status:      domain.InitialStatus(len(missing)),
		Lines:       lines,
	}
	if in.DateIssued != nil {
		p.DateIssued = in.DateIssued.UTC()
	} else {
		p.DateIssued = s.now().UTC()
	}

	if err := s.tx.InTx(ctx, func(ctx context.Context) error {
		return s.prescriptions.Create(ctx, p)
	}); err != nil {
		var appErr *errors.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, errors.InternalWrap(err, "failed to create prescription")
	}

	s.logger.Info().
		Str("prescription_id", p.ID).
		Str("status", string(p.Status)).
		Int("resolved", len(lines)).
		Int("missing", len(missing)).
		Msg("prescription reconciled")

	if s.metrics != nil {
		s.metrics.PrescriptionsReconciled.WithLabelValues(string(p.Status)).Inc()
		s.metrics.MissingLinesTotal.Add(float64(len(missing)))
	}

	s.appendToLedger(ctx, p, missing)
	s.events.PublishPrescriptionReconciled(ctx, p, len(missing))

	return &ReconciliationResult{Prescription: p, MissingMedicines: missing}, nil
}

// appendToLedger never fails the caller: the prescription is already committed
func (s *ReconciliationService) appendToLedger(ctx context.Context, p *domain.Prescription, missing []domain.MissingLine) {
	if s.ledger == nil || len(missing) == 0 {
		return
	}

	for _, rec := range ledger.RecordsFor(p, missing, s.now()) {
		if err := s.ledger.Append(ctx, rec); err != nil {
			s.logger.Warn().
				Err(err).
				Str("prescription_id", p.ID).
				Str("medicine_name", rec.MedicineName).
				Msg("failed to append missing medicine to ledger")
			if s.metrics != nil {
				s.metrics.LedgerAppendFailures.Inc()
			}
		}
	}
}

// DeletePrescription removes a prescription that no invoice cites
func (s *ReconciliationService) DeletePrescription(ctx context.Context, id string) error {
	if uuid.Validate(id) != nil {
		return errors.NotFound("prescription " + id)
	}
	if err := s.prescriptions.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("prescription_id", id).Msg("prescription deleted")
	return nil
}

func validateCreatePrescription(in *CreatePrescriptionInput) error {
	in.PatientID = strings.TrimSpace(in.PatientID)
	in.PatientName = strings.TrimSpace(in.PatientName)
	in.DoctorName = strings.TrimSpace(in.DoctorName)
	for i := range in.Medicines {
		in.Medicines[i].MedicineID = strings.TrimSpace(in.Medicines[i].MedicineID)
		in.Medicines[i].MedicineName = strings.TrimSpace(in.Medicines[i].MedicineName)
	}

	details, err := collectValidation(in)
	if err != nil {
		return err
	}

	if len(in.Medicines) == 0 {
		details["medicines"] = "at least one medicine is required"
		return errors.ValidationMessage("at least one medicine is required", details)
	}

	for i, m := range in.Medicines {
		switch {
		case m.Quantity <= 0:
			details[fmt.Sprintf("medicines[%d].quantity", i)] = "quantity must be a positive integer"
		case m.Quantity > domain.MaxQuantity:
			details[fmt.Sprintf("medicines[%d].quantity", i)] = quantityTooLarge
		}
		if m.MedicineID == "" && m.MedicineName == "" {
			details[fmt.Sprintf("medicines[%d].medicine_id", i)] = "medicine id or name is required"
		}
	}

	return validationError(details)
}

// mergeRequested sums quantities of repeated ids into the first occurrence.
// Lines without an id are never merged. A sum past MaxQuantity is a validation error.
func mergeRequested(in []PrescriptionMedicineInput) ([]requestedLine, error) {
	out := make([]requestedLine, 0, len(in))
	byID := make(map[string]int, len(in))

	for i, m := range in {
		if m.MedicineID != "" {
			if at, ok := byID[m.MedicineID]; ok {
				if out[at].quantity > domain.MaxQuantity-m.Quantity {
					key := fmt.Sprintf("medicines[%d].quantity", i)
					return nil, validationError(map[string]string{key: quantityTooLarge})
				}
				out[at].quantity += m.Quantity
				if out[at].name == "" {
					out[at].name = m.MedicineName
				}
				continue
			}
			byID[m.MedicineID] = len(out)
		}
		out = append(out, requestedLine{
			index:      i,
			medicineID: m.MedicineID,
			name:       m.MedicineName,
			quantity:   m.Quantity,
		})
	}
	return out, nil
}
