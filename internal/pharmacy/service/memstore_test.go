package service_test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/medflow/pharmacy-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

// memStore is an in-memory stand-in for the repositories and the database.
// InTx runs one unit of work at a time and restores the previous state when
// the unit fails, which gives the same all-or-nothing and serialization
// guarantees the row locks give in PostgreSQL.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	medicines     map[string]*domain.Medicine
	prescriptions map[string]*domain.Prescription
	invoices      map[string]*domain.Invoice
	users         map[string]*domain.User
	missing       []*domain.MissingMedicineRecord

	// failInvoiceCreate, when set, is returned by the next invoice insert
	failInvoiceCreate error
	commits           int
}

func newMemStore() *memStore {
	return &memStore{
		medicines:     make(map[string]*domain.Medicine),
		prescriptions: make(map[string]*domain.Prescription),
		invoices:      make(map[string]*domain.Invoice),
		users:         make(map[string]*domain.User),
	}
}

type snapshot struct {
	medicines     map[string]*domain.Medicine
	prescriptions map[string]*domain.Prescription
	invoices      map[string]*domain.Invoice
}

func (s *memStore) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snap := snapshot{
		medicines:     make(map[string]*domain.Medicine, len(s.medicines)),
		prescriptions: make(map[string]*domain.Prescription, len(s.prescriptions)),
		invoices:      make(map[string]*domain.Invoice, len(s.invoices)),
	}
	for k, m := range s.medicines {
		snap.medicines[k] = copyMedicine(m)
	}
	for k, p := range s.prescriptions {
		snap.prescriptions[k] = copyPrescription(p)
	}
	for k, inv := range s.invoices {
		snap.invoices[k] = inv
	}
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.medicines, s.prescriptions, s.invoices = snap.medicines, snap.prescriptions, snap.invoices
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.commits++
	s.mu.Unlock()
	return nil
}

// ---------------------------------------------------------------------------
// seeding and inspection
// ---------------------------------------------------------------------------

func (s *memStore) addMedicine(name, price string, stock int) *domain.Medicine {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := &domain.Medicine{
		ID:          uuid.New().String(),
		Name:        name,
		BatchNumber: "B-1",
		ExpiryDate:  time.Now().AddDate(1, 0, 0),
		Price:       decimal.RequireFromString(price),
		Quantity:    stock,
	}
	s.medicines[m.ID] = m
	return copyMedicine(m)
}

func (s *memStore) addUser(first, last string) *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &domain.User{ID: uuid.New().String(), FirstName: first, LastName: last, Email: strings.ToLower(first) + "@test.mk"}
	s.users[u.ID] = u
	return u
}

func (s *memStore) addPrescription(status domain.Status, lines ...domain.PrescriptionLine) *domain.Prescription {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &domain.Prescription{
		ID:          uuid.New().String(),
		PatientID:   "1234567890123",
		PatientName: "Marko Markovski",
		DoctorName:  "Dr. Stojanov",
		DateIssued:  time.Now().UTC(),
		Status:      status,
		Lines:       lines,
	}
	s.prescriptions[p.ID] = p
	return copyPrescription(p)
}

func (s *memStore) stock(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.medicines[id].Quantity
}

func (s *memStore) setPrice(id, price string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.medicines[id].Price = decimal.RequireFromString(price)
}

func (s *memStore) status(id string) domain.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prescriptions[id].Status
}

func (s *memStore) invoiceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.invoices)
}

// ---------------------------------------------------------------------------
// MedicineStore
// ---------------------------------------------------------------------------

func (s *memStore) GetByIDs(ctx context.Context, ids []string) ([]*domain.Medicine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Medicine
	for _, id := range ids {
		if m, ok := s.medicines[id]; ok {
			out = append(out, copyMedicine(m))
		}
	}
	return out, nil
}

func (s *memStore) LockByIDs(ctx context.Context, ids []string) ([]*domain.Medicine, error) {
	out, err := s.GetByIDs(ctx, ids)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (s *memStore) DecrementStock(ctx context.Context, id string, amount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.medicines[id]
	if !ok || m.Quantity < amount {
		return domain.ErrInsufficientStock
	}
	m.Quantity -= amount
	return nil
}

// ---------------------------------------------------------------------------
// PrescriptionStore
// ---------------------------------------------------------------------------

func (s *memStore) Create(ctx context.Context, p *domain.Prescription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.prescriptions {
		if existing.PatientID == p.PatientID {
			return errors.Conflict("a prescription for this patient already exists")
		}
	}
	p.ID = uuid.New().String()
	for i := range p.Lines {
		p.Lines[i].PrescriptionID = p.ID
		p.Lines[i].Position = i
	}
	s.prescriptions[p.ID] = copyPrescription(p)
	return nil
}

func (s *memStore) GetWithLines(ctx context.Context, id string) (*domain.Prescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prescriptions[id]
	if !ok {
		return nil, errors.NotFound("prescription " + id)
	}
	return copyPrescription(p), nil
}

func (s *memStore) GetForUpdate(ctx context.Context, id string) (*domain.Prescription, error) {
	return s.GetWithLines(ctx, id)
}

func (s *memStore) SetStatus(ctx context.Context, id string, status domain.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prescriptions[id]
	if !ok || p.Status == domain.StatusDispensed {
		return errors.Conflict("prescription is already dispensed")
	}
	p.Status = status
	return nil
}

func (s *memStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.prescriptions[id]; !ok {
		return errors.NotFound("prescription " + id)
	}
	for _, inv := range s.invoices {
		if inv.PrescriptionID != nil && *inv.PrescriptionID == id {
			return errors.Conflict("prescription is referenced by an invoice")
		}
	}
	delete(s.prescriptions, id)
	return nil
}

func (s *memStore) EmbgExists(ctx context.Context, embg string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.prescriptions {
		if p.PatientID == embg {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) List(ctx context.Context, page, perPage int) ([]*domain.Prescription, int64, error) {
	all, _ := s.filter(func(*domain.Prescription) bool { return true })
	return all, int64(len(all)), nil
}

func (s *memStore) ListByPatient(ctx context.Context, embg string) ([]*domain.Prescription, error) {
	return s.filter(func(p *domain.Prescription) bool { return p.PatientID == embg })
}

func (s *memStore) ListByDoctor(ctx context.Context, doctor string) ([]*domain.Prescription, error) {
	return s.filter(func(p *domain.Prescription) bool { return strings.EqualFold(p.DoctorName, doctor) })
}

func (s *memStore) Search(ctx context.Context, q string) ([]*domain.Prescription, error) {
	lq := strings.ToLower(q)
	return s.filter(func(p *domain.Prescription) bool {
		return p.PatientID == q ||
			strings.Contains(strings.ToLower(p.PatientName), lq) ||
			strings.Contains(strings.ToLower(p.DoctorName), lq)
	})
}

func (s *memStore) filter(keep func(*domain.Prescription) bool) ([]*domain.Prescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*domain.Prescription{}
	for _, p := range s.prescriptions {
		if keep(p) {
			out = append(out, copyPrescription(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DateIssued.After(out[j].DateIssued) })
	return out, nil
}

// ---------------------------------------------------------------------------
// InvoiceStore / UserStore / MissingMedicineStore
// ---------------------------------------------------------------------------

// invoiceStore adapts memStore to InvoiceStore; Create clashes with the prescription method
type invoiceStore struct{ s *memStore }

func (i invoiceStore) Create(ctx context.Context, inv *domain.Invoice) error {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()
	if err := i.s.failInvoiceCreate; err != nil {
		i.s.failInvoiceCreate = nil
		return err
	}
	inv.ID = uuid.New().String()
	inv.CreatedAt = time.Now().UTC()
	stored := *inv
	stored.Lines = append([]domain.InvoiceLine(nil), inv.Lines...)
	i.s.invoices[inv.ID] = &stored
	return nil
}

func (i invoiceStore) GetByID(ctx context.Context, id string) (*domain.Invoice, error) {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()
	inv, ok := i.s.invoices[id]
	if !ok {
		return nil, errors.NotFound("invoice " + id)
	}
	out := *inv
	return &out, nil
}

func (i invoiceStore) List(ctx context.Context, page, perPage int) ([]*domain.InvoiceSummary, int64, error) {
	out := i.summaries(func(*domain.Invoice) bool { return true })
	return out, int64(len(out)), nil
}

func (i invoiceStore) ListByUser(ctx context.Context, userID string) ([]*domain.InvoiceSummary, error) {
	return i.summaries(func(inv *domain.Invoice) bool { return inv.UserID == userID }), nil
}

func (i invoiceStore) ListByDateRange(ctx context.Context, start, end time.Time) ([]*domain.InvoiceSummary, error) {
	return i.summaries(func(inv *domain.Invoice) bool {
		return !inv.CreatedAt.Before(start) && !inv.CreatedAt.After(end)
	}), nil
}

func (i invoiceStore) summaries(keep func(*domain.Invoice) bool) []*domain.InvoiceSummary {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()
	out := []*domain.InvoiceSummary{}
	for _, inv := range i.s.invoices {
		if keep(inv) {
			sum := inv.Summary()
			out = append(out, &sum)
		}
	}
	return out
}

type userStore struct{ s *memStore }

func (u userStore) Get(ctx context.Context, userID string) (*domain.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	user, ok := u.s.users[userID]
	if !ok {
		return nil, errors.NotFound("user")
	}
	out := *user
	return &out, nil
}

type missingStore struct{ s *memStore }

func (m missingStore) List(ctx context.Context, page, perPage int) ([]*domain.MissingMedicineRecord, int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return append([]*domain.MissingMedicineRecord(nil), m.s.missing...), int64(len(m.s.missing)), nil
}

func copyMedicine(m *domain.Medicine) *domain.Medicine {
	out := *m
	return &out
}

func copyPrescription(p *domain.Prescription) *domain.Prescription {
	out := *p
	out.Lines = append([]domain.PrescriptionLine{}, p.Lines...)
	return &out
}
