package database

import (
	"strings"

	"github.com/lib/pq"
	"github.com/medflow/pharmacy-backend/pkg/errors"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case "23505":
		return errors.Conflict(formatConstraintMessage(pqErr))

	// Foreign key violation (23503)
	case "23503":
		return mapForeignKey(pqErr)

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	// Invalid text representation (22P02)
	case "22P02":
		return errors.BadRequest("invalid identifier")

	// Numeric value out of range (22003)
	case "22003":
		return errors.BadRequest("value out of range")

	default:
		return nil
	}
}

// MapError returns the mapped AppError for PostgreSQL errors and err unchanged otherwise
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if appErr := MapPQError(err); appErr != nil {
		return appErr
	}
	return err
}

// mapCheckConstraint maps specific CHECK constraint names to user-friendly messages.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "quantity_non_negative"):
		return errors.Conflict("stock cannot go below zero")

	case strings.Contains(constraint, "embg_format"):
		return errors.Validation(map[string]string{
			"patient_id": "must be exactly 13 digits",
		})

	case strings.Contains(constraint, "status_valid"):
		return errors.Validation(map[string]string{
			"status": "must be one of: Pending, Ready, Dispensed",
		})

	case strings.Contains(constraint, "quantity_positive"):
		return errors.Validation(map[string]string{
			"quantity": "must be a positive integer",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

// mapForeignKey distinguishes a blocked delete from a dangling reference
func mapForeignKey(pqErr *pq.Error) *errors.AppError {
	if strings.Contains(pqErr.Constraint, "invoices_prescription_id_fkey") {
		if strings.Contains(pqErr.Message, "update or delete") {
			return errors.Conflict("prescription is referenced by an invoice")
		}
		return errors.BadRequest("referenced prescription does not exist")
	}
	return errors.BadRequest("referenced record does not exist")
}

// formatConstraintMessage creates a user-friendly message for unique constraint violations.
func formatConstraintMessage(pqErr *pq.Error) string {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "embg"):
		return "a prescription for this patient already exists"
	case strings.Contains(constraint, "prescription_lines"):
		return "medicine appears more than once on this prescription"
	default:
		return "a record with these values already exists"
	}
}
