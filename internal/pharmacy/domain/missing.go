package domain

import "time"

// MissingMedicineRecord is one append-only ledger entry
type MissingMedicineRecord struct {
	ID             string    `db:"id" json:"id"`
	PrescriptionID string    `db:"prescription_id" json:"prescription_id"`
	PatientID      string    `db:"embg" json:"patient_id"`
	PatientName    string    `db:"patient_name" json:"patient_name"`
	DoctorName     string    `db:"doctor_name" json:"doctor_name"`
	MedicineName   string    `db:"medicine_name" json:"medicine_name"`
	Quantity       int       `db:"quantity" json:"quantity"`
	RecordedAt     time.Time `db:"recorded_at" json:"recorded_at"`
}

// User is a local copy of an identity-service user
type User struct {
	ID           string    `db:"user_id" json:"id"`
	FirstName    string    `db:"first_name" json:"first_name"`
	LastName     string    `db:"last_name" json:"last_name"`
	Email        string    `db:"email" json:"email"`
	RoleName     string    `db:"role_name" json:"role_name"`
	PasswordHash *string   `db:"password_hash" json:"-"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// FullName joins first and last name, falling back to the email
func (u *User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "" || u.LastName != "":
		return u.FirstName + u.LastName
	default:
		return u.Email
	}
}
