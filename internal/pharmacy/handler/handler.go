// Package handler exposes the pharmacy services over HTTP.
package handler

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/service"
)

// Reconciler creates and removes prescriptions
type Reconciler interface {
	CreatePrescription(ctx context.Context, in service.CreatePrescriptionInput) (*service.ReconciliationResult, error)
	DeletePrescription(ctx context.Context, id string) error
}

// Settler issues invoices
type Settler interface {
	Settle(ctx context.Context, in service.SettleInput) (*domain.Invoice, error)
}

// Queries is the read side used by all handlers
type Queries interface {
	GetPrescription(ctx context.Context, id string) (*domain.Prescription, error)
	ListPrescriptions(ctx context.Context, page, perPage int) ([]*domain.Prescription, int64, error)
	ListByPatient(ctx context.Context, embg string) ([]*domain.Prescription, error)
	ListByDoctor(ctx context.Context, doctor string) ([]*domain.Prescription, error)
	SearchPrescriptions(ctx context.Context, q string) ([]*domain.Prescription, error)
	EmbgExists(ctx context.Context, embg string) (bool, error)
	GetInvoice(ctx context.Context, id string) (*domain.Invoice, error)
	ListInvoices(ctx context.Context, page, perPage int) ([]*domain.InvoiceSummary, int64, error)
	ListInvoicesByUser(ctx context.Context, userID string) ([]*domain.InvoiceSummary, error)
	ListInvoicesByDateRange(ctx context.Context, start, end time.Time) ([]*domain.InvoiceSummary, error)
	ListMissingMedicines(ctx context.Context, page, perPage int) ([]*domain.MissingMedicineRecord, int64, error)
}

// Mount registers the pharmacy routes on r
func Mount(r chi.Router, prescriptions *PrescriptionHandler, invoices *InvoiceHandler, missing *MissingMedicineHandler) {
	r.Route("/prescriptions", func(r chi.Router) {
		r.Get("/", prescriptions.List)
		r.Post("/", prescriptions.Create)
		r.Get("/patient/{embg}", prescriptions.ListByPatient)
		r.Get("/doctor/{doctor}", prescriptions.ListByDoctor)
		r.Get("/exists/{embg}", prescriptions.Exists)
		r.Get("/{id}", prescriptions.Get)
		r.Delete("/{id}", prescriptions.Delete)
	})

	r.Route("/invoices", func(r chi.Router) {
		r.Get("/", invoices.List)
		r.Post("/", invoices.Settle)
		r.Get("/mine", invoices.ListMine)
		r.Get("/user/{userID}", invoices.ListByUser)
		r.Get("/{id}", invoices.Get)
	})

	r.Get("/missing-medicines", missing.List)
}
