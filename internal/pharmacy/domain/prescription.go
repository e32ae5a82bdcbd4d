package domain

import "time"

// Prescription is created once by reconciliation and only ever changes status afterwards
type Prescription struct {
	ID          string             `db:"id" json:"id"`
	PatientID   string             `db:"embg" json:"patient_id"`
	PatientName string             `db:"patient_name" json:"patient_name"`
	DoctorName  string             `db:"doctor_name" json:"doctor_name"`
	DateIssued  time.Time          `db:"date_issued" json:"date_issued"`
	Status      Status             `db:"status" json:"status"`
	CreatedAt   time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `db:"updated_at" json:"updated_at"`
	Lines       []PrescriptionLine `db:"-" json:"medicines"`
}

// PrescriptionLine is a catalog-present medicine with its allowed quantity
type PrescriptionLine struct {
	ID             string `db:"id" json:"-"`
	PrescriptionID string `db:"prescription_id" json:"-"`
	MedicineID     string `db:"medicine_id" json:"medicine_id"`
	MedicineName   string `db:"medicine_name" json:"medicine_name"`
	Quantity       int    `db:"quantity" json:"quantity"`
	Position       int    `db:"position" json:"-"`
}

// AllowedQuantities maps medicine id to the quantity the prescription allows
func (p *Prescription) AllowedQuantities() map[string]int {
	allowed := make(map[string]int, len(p.Lines))
	for _, l := range p.Lines {
		allowed[l.MedicineID] += l.Quantity
	}
	return allowed
}

// MissingLine is a requested medicine that was not found in the catalog
type MissingLine struct {
	MedicineID   *string `json:"medicine_id,omitempty"`
	MedicineName string  `json:"medicine_name"`
	Quantity     int     `json:"quantity"`
}
