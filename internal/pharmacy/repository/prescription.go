package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/medflow/pharmacy-backend/pkg/database"
	"github.com/medflow/pharmacy-backend/pkg/errors"
)

const prescriptionColumns = `id, embg, patient_name, doctor_name, date_issued, status, created_at, updated_at`

// PrescriptionRepository handles prescription persistence.
// Prescriptions are inserted once; afterwards only their status moves.
type PrescriptionRepository struct {
	db *database.DB
}

// NewPrescriptionRepository creates a new prescription repository
func NewPrescriptionRepository(db *database.DB) *PrescriptionRepository {
	return &PrescriptionRepository{db: db}
}

// Create inserts the prescription and its lines. Call it inside a transaction.
func (r *PrescriptionRepository) Create(ctx context.Context, p *domain.Prescription) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.DateIssued.IsZero() {
		p.DateIssued = time.Now().UTC()
	}
	conn := r.db.Conn(ctx)

	query := `
		INSERT INTO prescriptions (id, embg, patient_name, doctor_name, date_issued, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	if err := conn.QueryRowxContext(ctx, query,
		p.ID, p.PatientID, p.PatientName, p.DoctorName, p.DateIssued, p.Status,
	).Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		return database.MapError(err)
	}

	lineQuery := `
		INSERT INTO prescription_lines (id, prescription_id, medicine_id, quantity, position)
		VALUES ($1, $2, $3, $4, $5)
	`
	for i := range p.Lines {
		line := &p.Lines[i]
		if line.ID == "" {
			line.ID = uuid.New().String()
		}
		line.PrescriptionID = p.ID
		line.Position = i

		if _, err := conn.ExecContext(ctx, lineQuery,
			line.ID, line.PrescriptionID, line.MedicineID, line.Quantity, line.Position,
		); err != nil {
			return database.MapError(err)
		}
	}

	return nil
}

// GetWithLines gets a prescription and its surviving lines
func (r *PrescriptionRepository) GetWithLines(ctx context.Context, id string) (*domain.Prescription, error) {
	return r.get(ctx, `SELECT `+prescriptionColumns+` FROM prescriptions WHERE id = $1`, id)
}

// GetForUpdate is GetWithLines with the prescription row locked until the transaction ends
func (r *PrescriptionRepository) GetForUpdate(ctx context.Context, id string) (*domain.Prescription, error) {
	return r.get(ctx, `SELECT `+prescriptionColumns+` FROM prescriptions WHERE id = $1 FOR UPDATE`, id)
}

func (r *PrescriptionRepository) get(ctx context.Context, query, id string) (*domain.Prescription, error) {
	var p domain.Prescription
	if err := r.db.Conn(ctx).GetContext(ctx, &p, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("prescription " + id)
		}
		return nil, err
	}

	if err := r.attachLines(ctx, []*domain.Prescription{&p}); err != nil {
		return nil, err
	}
	return &p, nil
}

// SetStatus writes a new status unless the prescription is already Dispensed
func (r *PrescriptionRepository) SetStatus(ctx context.Context, id string, status domain.Status) error {
	query := `
		UPDATE prescriptions SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status <> 'Dispensed'
	`
	result, err := r.db.Conn(ctx).ExecContext(ctx, query, id, status)
	if err != nil {
		return database.MapError(err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.Conflict("prescription is already dispensed")
	}
	return nil
}

// Delete removes a prescription. Invoices citing it block the delete.
func (r *PrescriptionRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM prescriptions WHERE id = $1`
	result, err := r.db.Conn(ctx).ExecContext(ctx, query, id)
	if err != nil {
		return database.MapError(err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("prescription " + id)
	}
	return nil
}

// EmbgExists checks whether a prescription exists for the patient
func (r *PrescriptionRepository) EmbgExists(ctx context.Context, embg string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM prescriptions WHERE embg = $1)`
	if err := r.db.Conn(ctx).GetContext(ctx, &exists, query, embg); err != nil {
		return false, err
	}
	return exists, nil
}

// List lists prescriptions, newest first
func (r *PrescriptionRepository) List(ctx context.Context, page, perPage int) ([]*domain.Prescription, int64, error) {
	var total int64
	if err := r.db.Conn(ctx).GetContext(ctx, &total, `SELECT COUNT(*) FROM prescriptions`); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + prescriptionColumns + ` FROM prescriptions ORDER BY date_issued DESC, id LIMIT $1 OFFSET $2`
	prescriptions, err := r.selectWithLines(ctx, query, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	return prescriptions, total, nil
}

// ListByPatient lists prescriptions for an EMBG
func (r *PrescriptionRepository) ListByPatient(ctx context.Context, embg string) ([]*domain.Prescription, error) {
	query := `SELECT ` + prescriptionColumns + ` FROM prescriptions WHERE embg = $1 ORDER BY date_issued DESC`
	return r.selectWithLines(ctx, query, embg)
}

// ListByDoctor lists prescriptions issued by a doctor, matched case-insensitively
func (r *PrescriptionRepository) ListByDoctor(ctx context.Context, doctor string) ([]*domain.Prescription, error) {
	query := `SELECT ` + prescriptionColumns + ` FROM prescriptions WHERE LOWER(doctor_name) = LOWER($1) ORDER BY date_issued DESC`
	return r.selectWithLines(ctx, query, doctor)
}

// Search matches an exact EMBG or part of the patient or doctor name
func (r *PrescriptionRepository) Search(ctx context.Context, q string) ([]*domain.Prescription, error) {
	query := `
		SELECT ` + prescriptionColumns + ` FROM prescriptions
		WHERE embg = $1 OR patient_name ILIKE '%' || $1 || '%' OR doctor_name ILIKE '%' || $1 || '%'
		ORDER BY date_issued DESC
		LIMIT 100
	`
	return r.selectWithLines(ctx, query, q)
}

func (r *PrescriptionRepository) selectWithLines(ctx context.Context, query string, args ...interface{}) ([]*domain.Prescription, error) {
	var prescriptions []*domain.Prescription
	if err := r.db.Conn(ctx).SelectContext(ctx, &prescriptions, query, args...); err != nil {
		return nil, err
	}
	if err := r.attachLines(ctx, prescriptions); err != nil {
		return nil, err
	}
	return prescriptions, nil
}

// attachLines loads lines for all prescriptions in one query
func (r *PrescriptionRepository) attachLines(ctx context.Context, prescriptions []*domain.Prescription) error {
	if len(prescriptions) == 0 {
		return nil
	}

	ids := make([]string, len(prescriptions))
	byID := make(map[string]*domain.Prescription, len(prescriptions))
	for i, p := range prescriptions {
		ids[i] = p.ID
		byID[p.ID] = p
		p.Lines = []domain.PrescriptionLine{}
	}

	var lines []domain.PrescriptionLine
	query := `
		SELECT pl.id, pl.prescription_id, pl.medicine_id, m.name AS medicine_name, pl.quantity, pl.position
		FROM prescription_lines pl
		JOIN medicines m ON m.id = pl.medicine_id
		WHERE pl.prescription_id = ANY($1)
		ORDER BY pl.prescription_id, pl.position
	`
	if err := r.db.Conn(ctx).SelectContext(ctx, &lines, query, pq.Array(ids)); err != nil {
		return err
	}

	for _, l := range lines {
		if p, ok := byID[l.PrescriptionID]; ok {
			p.Lines = append(p.Lines, l)
		}
	}
	return nil
}
