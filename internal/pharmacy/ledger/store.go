package ledger

import (
	"context"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
)

// RecordAppender is the insert-only side of the missing-medicine repository
type RecordAppender interface {
	Append(ctx context.Context, rec *domain.MissingMedicineRecord) error
}

// StoreSink persists records in the database
type StoreSink struct {
	repo RecordAppender
}

// NewStoreSink creates a store sink backed by repo
func NewStoreSink(repo RecordAppender) *StoreSink {
	return &StoreSink{repo: repo}
}

// Append inserts rec
func (s *StoreSink) Append(ctx context.Context, rec Record) error {
	return s.repo.Append(ctx, &domain.MissingMedicineRecord{
		PrescriptionID: rec.PrescriptionID,
		PatientID:      rec.PatientID,
		PatientName:    rec.PatientName,
		DoctorName:     rec.DoctorName,
		MedicineName:   rec.MedicineName,
		Quantity:       rec.Quantity,
		RecordedAt:     rec.RecordedAt,
	})
}
