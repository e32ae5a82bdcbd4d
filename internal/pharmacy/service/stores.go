// Package service implements prescription reconciliation, invoice settlement
// and the read side of the pharmacy.
package service

import (
	"context"
	"time"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
)

// Transactor runs fn as one unit of work. Stores called with the ctx passed
// to fn take part in it.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// MedicineStore reads the catalog and moves stock
type MedicineStore interface {
	GetByIDs(ctx context.Context, ids []string) ([]*domain.Medicine, error)
	LockByIDs(ctx context.Context, ids []string) ([]*domain.Medicine, error)
	DecrementStock(ctx context.Context, id string, amount int) error
}

// PrescriptionStore persists prescriptions
type PrescriptionStore interface {
	Create(ctx context.Context, p *domain.Prescription) error
	GetWithLines(ctx context.Context, id string) (*domain.Prescription, error)
	GetForUpdate(ctx context.Context, id string) (*domain.Prescription, error)
	SetStatus(ctx context.Context, id string, status domain.Status) error
	Delete(ctx context.Context, id string) error
	EmbgExists(ctx context.Context, embg string) (bool, error)
	List(ctx context.Context, page, perPage int) ([]*domain.Prescription, int64, error)
	ListByPatient(ctx context.Context, embg string) ([]*domain.Prescription, error)
	ListByDoctor(ctx context.Context, doctor string) ([]*domain.Prescription, error)
	Search(ctx context.Context, q string) ([]*domain.Prescription, error)
}

// InvoiceStore persists invoices
type InvoiceStore interface {
	Create(ctx context.Context, inv *domain.Invoice) error
	GetByID(ctx context.Context, id string) (*domain.Invoice, error)
	List(ctx context.Context, page, perPage int) ([]*domain.InvoiceSummary, int64, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.InvoiceSummary, error)
	ListByDateRange(ctx context.Context, start, end time.Time) ([]*domain.InvoiceSummary, error)
}

// UserStore looks up users of the local directory
type UserStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
}

// MissingMedicineStore reads the stored ledger
type MissingMedicineStore interface {
	List(ctx context.Context, page, perPage int) ([]*domain.MissingMedicineRecord, int64, error)
}
