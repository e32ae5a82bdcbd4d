package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/medflow/pharmacy-backend/pkg/database"
)

// MissingMedicineRepository stores the missing-medicine ledger.
// Records are only ever inserted and read.
type MissingMedicineRepository struct {
	db *database.DB
}

// NewMissingMedicineRepository creates a new missing medicine repository
func NewMissingMedicineRepository(db *database.DB) *MissingMedicineRepository {
	return &MissingMedicineRepository{db: db}
}

// Append inserts one record
func (r *MissingMedicineRepository) Append(ctx context.Context, rec *domain.MissingMedicineRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	query := `
		INSERT INTO missing_medicine_records (
			id, prescription_id, embg, patient_name, doctor_name, medicine_name, quantity, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Conn(ctx).ExecContext(ctx, query,
		rec.ID, rec.PrescriptionID, rec.PatientID, rec.PatientName, rec.DoctorName,
		rec.MedicineName, rec.Quantity, rec.RecordedAt,
	)
	return err
}

// List lists records, newest first
func (r *MissingMedicineRepository) List(ctx context.Context, page, perPage int) ([]*domain.MissingMedicineRecord, int64, error) {
	conn := r.db.Conn(ctx)

	var total int64
	if err := conn.GetContext(ctx, &total, `SELECT COUNT(*) FROM missing_medicine_records`); err != nil {
		return nil, 0, err
	}

	var records []*domain.MissingMedicineRecord
	query := `
		SELECT id, prescription_id, embg, patient_name, doctor_name, medicine_name, quantity, recorded_at
		FROM missing_medicine_records
		ORDER BY recorded_at DESC, id
		LIMIT $1 OFFSET $2
	`
	if err := conn.SelectContext(ctx, &records, query, perPage, (page-1)*perPage); err != nil {
		return nil, 0, err
	}
	return records, total, nil
}
