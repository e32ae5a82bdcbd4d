package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// UserFixture represents a user-directory row
type UserFixture struct {
	ID           string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	RoleName     string
}

// MedicineFixture represents a catalog row
type MedicineFixture struct {
	ID          string
	Name        string
	Category    string
	BatchNumber string
	ExpiryDate  time.Time
	Price       decimal.Decimal
	Quantity    int
}

// PrescriptionFixture represents a prescription row with its lines
type PrescriptionFixture struct {
	ID          string
	EMBG        string
	PatientName string
	DoctorName  string
	DateIssued  time.Time
	Status      string
	Lines       []PrescriptionLineFixture
}

// PrescriptionLineFixture is one allowed medicine on a prescription
type PrescriptionLineFixture struct {
	MedicineID string
	Quantity   int
}

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{sequence: 0}
}

// nextSeq returns the next sequence number for unique values
func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// User creates a user fixture with defaults
func (f *FixtureFactory) User(opts ...func(*UserFixture)) UserFixture {
	seq := f.nextSeq()
	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)

	user := UserFixture{
		ID:           uuid.New().String(),
		Email:        fmt.Sprintf("pharmacist%d@test.pharmacy.mk", seq),
		PasswordHash: string(hash),
		FirstName:    fmt.Sprintf("Test%d", seq),
		LastName:     "Pharmacist",
		RoleName:     "pharmacist",
	}

	for _, opt := range opts {
		opt(&user)
	}

	return user
}

// WithEmail sets the user email
func WithEmail(email string) func(*UserFixture) {
	return func(u *UserFixture) {
		u.Email = email
	}
}

// WithName sets the user's first and last name
func WithName(first, last string) func(*UserFixture) {
	return func(u *UserFixture) {
		u.FirstName = first
		u.LastName = last
	}
}

// WithPassword sets the user password (hashed)
func WithPassword(password string) func(*UserFixture) {
	return func(u *UserFixture) {
		hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		u.PasswordHash = string(hash)
	}
}

// Medicine creates a medicine fixture with defaults
func (f *FixtureFactory) Medicine(opts ...func(*MedicineFixture)) MedicineFixture {
	seq := f.nextSeq()

	med := MedicineFixture{
		ID:          uuid.New().String(),
		Name:        fmt.Sprintf("Test Medicine %d", seq),
		Category:    "Analgesic",
		BatchNumber: fmt.Sprintf("BATCH-%04d", seq),
		ExpiryDate:  time.Now().AddDate(1, 0, 0).Truncate(24 * time.Hour),
		Price:       decimal.RequireFromString("5.00"),
		Quantity:    10,
	}

	for _, opt := range opts {
		opt(&med)
	}

	return med
}

// WithMedicineName sets the medicine name
func WithMedicineName(name string) func(*MedicineFixture) {
	return func(m *MedicineFixture) {
		m.Name = name
	}
}

// WithStock sets the medicine stock quantity
func WithStock(qty int) func(*MedicineFixture) {
	return func(m *MedicineFixture) {
		m.Quantity = qty
	}
}

// WithPrice sets the medicine price from a decimal string
func WithPrice(price string) func(*MedicineFixture) {
	return func(m *MedicineFixture) {
		m.Price = decimal.RequireFromString(price)
	}
}

// Prescription creates a prescription fixture with defaults
func (f *FixtureFactory) Prescription(opts ...func(*PrescriptionFixture)) PrescriptionFixture {
	seq := f.nextSeq()

	p := PrescriptionFixture{
		ID:          uuid.New().String(),
		EMBG:        fmt.Sprintf("%013d", 1000000000000+seq),
		PatientName: fmt.Sprintf("Patient %d", seq),
		DoctorName:  "Dr. Test",
		DateIssued:  time.Now().UTC(),
		Status:      "Ready",
	}

	for _, opt := range opts {
		opt(&p)
	}

	return p
}

// WithLine adds an allowed medicine to the prescription
func WithLine(medicineID string, qty int) func(*PrescriptionFixture) {
	return func(p *PrescriptionFixture) {
		p.Lines = append(p.Lines, PrescriptionLineFixture{MedicineID: medicineID, Quantity: qty})
	}
}

// WithPrescriptionStatus sets the prescription status
func WithPrescriptionStatus(status string) func(*PrescriptionFixture) {
	return func(p *PrescriptionFixture) {
		p.Status = status
	}
}

// WithEMBG sets the patient identifier
func WithEMBG(embg string) func(*PrescriptionFixture) {
	return func(p *PrescriptionFixture) {
		p.EMBG = embg
	}
}

// Seeder writes fixtures straight into the database
type Seeder struct {
	db *sqlx.DB
}

// NewSeeder creates a seeder for db
func NewSeeder(db *sqlx.DB) *Seeder {
	return &Seeder{db: db}
}

// User inserts a user-directory row
func (s *Seeder) User(t *testing.T, ctx context.Context, u UserFixture) UserFixture {
	t.Helper()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_directory (user_id, first_name, last_name, email, role_name, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, u.ID, u.FirstName, u.LastName, u.Email, u.RoleName, u.PasswordHash)
	if err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return u
}

// Medicine inserts a catalog row
func (s *Seeder) Medicine(t *testing.T, ctx context.Context, m MedicineFixture) MedicineFixture {
	t.Helper()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO medicines (id, name, category, batch_number, expiry_date, price, quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, m.ID, m.Name, m.Category, m.BatchNumber, m.ExpiryDate, m.Price, m.Quantity)
	if err != nil {
		t.Fatalf("failed to seed medicine: %v", err)
	}
	return m
}

// Prescription inserts a prescription and its lines
func (s *Seeder) Prescription(t *testing.T, ctx context.Context, p PrescriptionFixture) PrescriptionFixture {
	t.Helper()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO prescriptions (id, embg, patient_name, doctor_name, date_issued, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, p.ID, p.EMBG, p.PatientName, p.DoctorName, p.DateIssued, p.Status)
	if err != nil {
		t.Fatalf("failed to seed prescription: %v", err)
	}

	for i, l := range p.Lines {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO prescription_lines (prescription_id, medicine_id, quantity, position)
			VALUES ($1, $2, $3, $4)
		`, p.ID, l.MedicineID, l.Quantity, i)
		if err != nil {
			t.Fatalf("failed to seed prescription line: %v", err)
		}
	}
	return p
}

// StockOf reads a medicine's current stock
func (s *Seeder) StockOf(t *testing.T, ctx context.Context, medicineID string) int {
	t.Helper()
	var qty int
	if err := s.db.GetContext(ctx, &qty, `SELECT quantity FROM medicines WHERE id = $1`, medicineID); err != nil {
		t.Fatalf("failed to read stock: %v", err)
	}
	return qty
}

// StatusOf reads a prescription's current status
func (s *Seeder) StatusOf(t *testing.T, ctx context.Context, prescriptionID string) string {
	t.Helper()
	var status string
	if err := s.db.GetContext(ctx, &status, `SELECT status FROM prescriptions WHERE id = $1`, prescriptionID); err != nil {
		t.Fatalf("failed to read status: %v", err)
	}
	return status
}

// Count returns the number of rows in table
func (s *Seeder) Count(t *testing.T, ctx context.Context, table string) int {
	t.Helper()
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM `+table); err != nil {
		t.Fatalf("failed to count %s: %v", table, err)
	}
	return n
}
