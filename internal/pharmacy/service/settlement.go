package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/events"
	"github.com/medflow/pharmacy-backend/pkg/errors"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/medflow/pharmacy-backend/pkg/metrics"
)

// SettleItem is one medicine to sell
type SettleItem struct {
	MedicineID string `json:"medicine_id" validate:"required,uuid"`
	Quantity   int    `json:"quantity"`
}

// SettleInput is a request to sell medicines, optionally against a prescription
type SettleInput struct {
	UserID         string       `json:"-"`
	CustomerName   *string      `json:"customer_name" validate:"omitempty,max=255"`
	PrescriptionID *string      `json:"prescription_id" validate:"omitempty,uuid"`
	Items          []SettleItem `json:"items" validate:"dive"`
}

// SettlementService issues invoices. Each settlement either commits completely
// or changes nothing.
type SettlementService struct {
	tx            Transactor
	users         UserStore
	medicines     MedicineStore
	prescriptions PrescriptionStore
	invoices      InvoiceStore
	events        *events.PharmacyEventPublisher
	metrics       *metrics.Metrics
	logger        *logger.Logger
}

// NewSettlementService creates a new settlement service. publisher and m may be nil.
func NewSettlementService(
	tx Transactor,
	users UserStore,
	medicines MedicineStore,
	prescriptions PrescriptionStore,
	invoices InvoiceStore,
	publisher *events.PharmacyEventPublisher,
	m *metrics.Metrics,
	log *logger.Logger,
) *SettlementService {
	return &SettlementService{
		tx:            tx,
		users:         users,
		medicines:     medicines,
		prescriptions: prescriptions,
		invoices:      invoices,
		events:        publisher,
		metrics:       m,
		logger:        log.WithComponent("settlement"),
	}
}

// settleLine is an item after duplicate ids were merged
type settleLine struct {
	medicineID string
	quantity   int
}

// Settle validates the request, then in one transaction locks the cited
// prescription and the medicine rows, takes the stock, stores the invoice and
// marks the prescription Dispensed.
func (s *SettlementService) Settle(ctx context.Context, in SettleInput) (*domain.Invoice, error) {
	start := time.Now()
	attempt := domain.NewSettlementAttempt()

	inv, err := s.settle(ctx, attempt, in)
	s.observe(attempt, time.Since(start))

	log := s.logger.WithUserID(in.UserID)
	if err != nil {
		event := log.Info()
		if attempt.State() == domain.SettlementRolledBack {
			event = log.Warn()
		}
		event.Err(err).Str("outcome", string(attempt.State())).Msg("settlement failed")
		return nil, err
	}

	log.Info().
		Str("invoice_id", inv.ID).
		Str("total", inv.TotalAmount.StringFixed(2)).
		Int("lines", len(inv.Lines)).
		Msg("invoice settled")

	s.events.PublishInvoiceSettled(ctx, inv)
	return inv, nil
}

func (s *SettlementService) settle(ctx context.Context, attempt *domain.SettlementAttempt, in SettleInput) (*domain.Invoice, error) {
	requested, err := validateSettle(&in)
	if err != nil {
		return nil, s.reject(attempt, err)
	}

	user, err := s.users.Get(ctx, in.UserID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			err = errors.NotFoundWithMessage("authenticated user does not exist")
		}
		return nil, s.reject(attempt, err)
	}

	ids := make([]string, len(requested))
	for i, r := range requested {
		ids[i] = r.medicineID
	}

	found, err := s.medicines.GetByIDs(ctx, ids)
	if err != nil {
		return nil, s.reject(attempt, err)
	}
	if err := requireAll(ids, found); err != nil {
		return nil, s.reject(attempt, err)
	}

	if in.PrescriptionID != nil {
		p, err := s.prescriptions.GetWithLines(ctx, *in.PrescriptionID)
		if err != nil {
			return nil, s.reject(attempt, err)
		}
		if err := checkPrescription(p, requested); err != nil {
			return nil, s.reject(attempt, err)
		}
	}

	if err := attempt.Reserve(); err != nil {
		return nil, errors.InternalWrap(err, "failed to settle invoice")
	}

	inv := &domain.Invoice{
		UserID:         user.ID,
		CustomerName:   in.CustomerName,
		PrescriptionID: in.PrescriptionID,
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		var p *domain.Prescription
		if in.PrescriptionID != nil {
			// Holding the prescription row makes a concurrent settlement wait and then see Dispensed
			rx, err := s.prescriptions.GetForUpdate(ctx, *in.PrescriptionID)
			if err != nil {
				return err
			}
			if err := checkPrescription(rx, requested); err != nil {
				return err
			}
			p = rx
		}

		locked, err := s.medicines.LockByIDs(ctx, ids)
		if err != nil {
			return err
		}
		if err := requireAll(ids, locked); err != nil {
			return err
		}
		byID := make(map[string]*domain.Medicine, len(locked))
		for _, m := range locked {
			byID[m.ID] = m
		}

		for _, r := range requested {
			if m := byID[r.medicineID]; !m.HasStock(r.quantity) {
				return insufficientStock(m)
			}
		}

		inv.Lines = make([]domain.InvoiceLine, 0, len(requested))
		for _, r := range requested {
			m := byID[r.medicineID]
			if err := s.medicines.DecrementStock(ctx, m.ID, r.quantity); err != nil {
				if errors.Is(err, domain.ErrInsufficientStock) {
					return insufficientStock(m)
				}
				return err
			}
			inv.Lines = append(inv.Lines, domain.NewInvoiceLine(m, r.quantity))
		}

		inv.Recalculate()
		if err := inv.Verify(); err != nil {
			return err
		}

		if err := s.invoices.Create(ctx, inv); err != nil {
			return err
		}

		if p != nil {
			next, err := p.Status.Transition(domain.StatusDispensed)
			if err != nil {
				return errors.Conflict("prescription is already dispensed")
			}
			if err := s.prescriptions.SetStatus(ctx, p.ID, next); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = attempt.RollBack(err)
		var appErr *errors.AppError
		if errors.As(err, &appErr) && appErr.StatusCode < 500 {
			return nil, appErr
		}
		return nil, errors.InternalWrap(err, "failed to settle invoice")
	}

	if err := attempt.Commit(); err != nil {
		return nil, errors.InternalWrap(err, "failed to settle invoice")
	}

	inv.UserName = user.FullName()
	return inv, nil
}

func (s *SettlementService) reject(attempt *domain.SettlementAttempt, err error) error {
	_ = attempt.Reject(err)
	return err
}

func (s *SettlementService) observe(attempt *domain.SettlementAttempt, elapsed time.Duration) {
	if s.metrics == nil || !attempt.Done() {
		return
	}
	s.metrics.SettlementsTotal.WithLabelValues(string(attempt.State())).Inc()
	s.metrics.SettlementDuration.Observe(elapsed.Seconds())
}

func validateSettle(in *SettleInput) ([]settleLine, error) {
	if in.UserID == "" {
		return nil, errors.Unauthorized("authentication required")
	}
	if uuid.Validate(in.UserID) != nil {
		return nil, errors.NotFoundWithMessage("authenticated user does not exist")
	}
	if in.PrescriptionID != nil && strings.TrimSpace(*in.PrescriptionID) == "" {
		in.PrescriptionID = nil
	}
	if in.CustomerName != nil {
		name := strings.TrimSpace(*in.CustomerName)
		if name == "" {
			in.CustomerName = nil
		} else {
			in.CustomerName = &name
		}
	}

	details, err := collectValidation(in)
	if err != nil {
		return nil, err
	}

	if len(in.Items) == 0 {
		details["items"] = "at least one medicine is required"
		return nil, errors.ValidationMessage("at least one medicine is required", details)
	}

	for i, item := range in.Items {
		switch {
		case item.Quantity <= 0:
			details[fmt.Sprintf("items[%d].quantity", i)] = "quantity must be a positive integer"
		case item.Quantity > domain.MaxQuantity:
			details[fmt.Sprintf("items[%d].quantity", i)] = quantityTooLarge
		}
	}
	if err := validationError(details); err != nil {
		return nil, err
	}

	merged := make([]settleLine, 0, len(in.Items))
	byID := make(map[string]int, len(in.Items))
	for i, item := range in.Items {
		if at, ok := byID[item.MedicineID]; ok {
			if merged[at].quantity > domain.MaxQuantity-item.Quantity {
				key := fmt.Sprintf("items[%d].quantity", i)
				return nil, validationError(map[string]string{key: quantityTooLarge})
			}
			merged[at].quantity += item.Quantity
			continue
		}
		byID[item.MedicineID] = len(merged)
		merged = append(merged, settleLine{medicineID: item.MedicineID, quantity: item.Quantity})
	}
	return merged, nil
}

// requireAll fails when any of ids is absent from found
func requireAll(ids []string, found []*domain.Medicine) error {
	present := make(map[string]bool, len(found))
	for _, m := range found {
		present[m.ID] = true
	}

	var missing []string
	for _, id := range ids {
		if !present[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return errors.NotFoundWithMessage("one or more medicines do not exist").
		WithDetails(map[string]string{"medicine_ids": strings.Join(missing, ",")})
}

// checkPrescription verifies p is still open and allows every requested line
func checkPrescription(p *domain.Prescription, requested []settleLine) error {
	if p.Status.IsTerminal() {
		return errors.Conflict("prescription is already dispensed")
	}

	allowed := p.AllowedQuantities()
	for _, r := range requested {
		limit, ok := allowed[r.medicineID]
		if !ok {
			return errors.Conflict(fmt.Sprintf("medicine %s is not included in this prescription", r.medicineID))
		}
		if r.quantity > limit {
			return errors.Conflict(fmt.Sprintf("quantity for medicine %s exceeds prescription allowed amount", r.medicineID))
		}
	}
	return nil
}

func insufficientStock(m *domain.Medicine) error {
	return errors.Conflict(fmt.Sprintf("insufficient stock for %s, available: %d", m.Name, m.Quantity)).
		WithDetails(map[string]string{"medicine_id": m.ID})
}
