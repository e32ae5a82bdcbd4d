package testutil

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// PharmacyTables lists every pharmacy table, children first
var PharmacyTables = []string{
	"invoice_lines",
	"invoices",
	"prescription_lines",
	"prescriptions",
	"missing_medicine_records",
	"medicines",
	"user_directory",
}

// PharmacyMigrations returns the statements that create the pharmacy schema
func PharmacyMigrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS medicines (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name VARCHAR(255) NOT NULL,
			category VARCHAR(100),
			batch_number VARCHAR(100) NOT NULL,
			expiry_date DATE NOT NULL,
			price NUMERIC(12,2) NOT NULL CONSTRAINT medicines_price_non_negative CHECK (price >= 0),
			quantity INTEGER NOT NULL DEFAULT 0 CONSTRAINT medicines_quantity_non_negative CHECK (quantity >= 0),
			supplier_id UUID,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS prescriptions (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			embg CHAR(13) NOT NULL CONSTRAINT prescriptions_embg_format CHECK (embg ~ '^[0-9]{13}$'),
			patient_name VARCHAR(255) NOT NULL,
			doctor_name VARCHAR(255) NOT NULL,
			date_issued TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			status VARCHAR(20) NOT NULL CONSTRAINT prescriptions_status_valid CHECK (status IN ('Pending', 'Ready', 'Dispensed')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT prescriptions_embg_unique UNIQUE (embg)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_prescriptions_date_issued ON prescriptions(date_issued DESC)`,
		`CREATE TABLE IF NOT EXISTS prescription_lines (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			prescription_id UUID NOT NULL REFERENCES prescriptions(id) ON DELETE CASCADE,
			medicine_id UUID NOT NULL REFERENCES medicines(id) ON DELETE CASCADE,
			quantity INTEGER NOT NULL CONSTRAINT prescription_lines_quantity_positive CHECK (quantity > 0),
			position INTEGER NOT NULL DEFAULT 0,
			CONSTRAINT prescription_lines_medicine_unique UNIQUE (prescription_id, medicine_id)
		)`,
		`CREATE TABLE IF NOT EXISTS user_directory (
			user_id UUID PRIMARY KEY,
			first_name VARCHAR(100) NOT NULL DEFAULT '',
			last_name VARCHAR(100) NOT NULL DEFAULT '',
			email VARCHAR(255) NOT NULL DEFAULT '',
			role_name VARCHAR(100) NOT NULL DEFAULT '',
			password_hash VARCHAR(255),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS invoices (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL,
			customer_name VARCHAR(255),
			prescription_id UUID,
			total_amount NUMERIC(12,2) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT invoices_prescription_id_fkey FOREIGN KEY (prescription_id)
				REFERENCES prescriptions(id) ON DELETE RESTRICT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_invoices_user_id ON invoices(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_invoices_created_at ON invoices(created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS invoice_lines (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			invoice_id UUID NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
			medicine_id UUID NOT NULL REFERENCES medicines(id) ON DELETE RESTRICT,
			quantity INTEGER NOT NULL CONSTRAINT invoice_lines_quantity_positive CHECK (quantity > 0),
			unit_price NUMERIC(12,2) NOT NULL,
			line_total NUMERIC(12,2) NOT NULL,
			position INTEGER NOT NULL DEFAULT 0,
			CONSTRAINT invoice_lines_total_consistent CHECK (line_total = unit_price * quantity)
		)`,
		`CREATE TABLE IF NOT EXISTS missing_medicine_records (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			prescription_id UUID NOT NULL,
			embg CHAR(13) NOT NULL,
			patient_name VARCHAR(255) NOT NULL,
			doctor_name VARCHAR(255) NOT NULL,
			medicine_name VARCHAR(255) NOT NULL,
			quantity INTEGER NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_missing_medicine_records_recorded_at ON missing_medicine_records(recorded_at DESC)`,
	}
}

// ApplyMigrations runs migrations against db in order
func ApplyMigrations(ctx context.Context, db *sqlx.DB, migrations []string) error {
	for _, migration := range migrations {
		if _, err := db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("failed to apply migration: %w", err)
		}
	}
	return nil
}

// TruncateAll empties every pharmacy table
func TruncateAll(ctx context.Context, db *sqlx.DB) error {
	query := "TRUNCATE "
	for i, table := range PharmacyTables {
		if i > 0 {
			query += ", "
		}
		query += table
	}
	_, err := db.ExecContext(ctx, query+" CASCADE")
	return err
}
