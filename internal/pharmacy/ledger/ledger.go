// Package ledger records requested medicines that were not in the catalog.
//
// Records are only ever appended. A Sink never rewrites or removes what it
// already holds, and an append failure is reported to the caller but must not
// undo the prescription that produced the record.
package ledger

import (
	"context"
	"time"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
)

// Record is one missing-medicine entry
type Record struct {
	RecordedAt     time.Time
	PrescriptionID string
	PatientID      string
	PatientName    string
	DoctorName     string
	MedicineName   string
	Quantity       int
}

// Sink appends records somewhere durable
type Sink interface {
	Append(ctx context.Context, rec Record) error
}

// RecordsFor builds one record per missing line of p
func RecordsFor(p *domain.Prescription, missing []domain.MissingLine, at time.Time) []Record {
	records := make([]Record, 0, len(missing))
	for _, m := range missing {
		records = append(records, Record{
			RecordedAt:     at.UTC(),
			PrescriptionID: p.ID,
			PatientID:      p.PatientID,
			PatientName:    p.PatientName,
			DoctorName:     p.DoctorName,
			MedicineName:   m.MedicineName,
			Quantity:       m.Quantity,
		})
	}
	return records
}
