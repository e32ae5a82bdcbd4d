package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/medflow/pharmacy-backend/pkg/database"
	"github.com/medflow/pharmacy-backend/pkg/errors"
)

const invoiceSummarySelect = `
	SELECT i.id, i.user_id,
		COALESCE(NULLIF(TRIM(u.first_name || ' ' || u.last_name), ''), u.email, '') AS user_name,
		i.customer_name, i.prescription_id, i.total_amount, i.created_at,
		(SELECT COUNT(*) FROM invoice_lines il WHERE il.invoice_id = i.id) AS items_count
	FROM invoices i
	LEFT JOIN user_directory u ON u.user_id = i.user_id
`

// InvoiceRepository handles invoice persistence. Invoices are write-once.
type InvoiceRepository struct {
	db *database.DB
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *database.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// Create inserts the invoice and its lines. Call it inside the settlement transaction.
func (r *InvoiceRepository) Create(ctx context.Context, inv *domain.Invoice) error {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	conn := r.db.Conn(ctx)

	query := `
		INSERT INTO invoices (id, user_id, customer_name, prescription_id, total_amount)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	if err := conn.QueryRowxContext(ctx, query,
		inv.ID, inv.UserID, inv.CustomerName, inv.PrescriptionID, inv.TotalAmount,
	).Scan(&inv.CreatedAt); err != nil {
		return database.MapError(err)
	}

	lineQuery := `
		INSERT INTO invoice_lines (id, invoice_id, medicine_id, quantity, unit_price, line_total, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for i := range inv.Lines {
		line := &inv.Lines[i]
		if line.ID == "" {
			line.ID = uuid.New().String()
		}
		line.InvoiceID = inv.ID
		line.Position = i

		if _, err := conn.ExecContext(ctx, lineQuery,
			line.ID, line.InvoiceID, line.MedicineID, line.Quantity, line.UnitPrice, line.LineTotal, line.Position,
		); err != nil {
			return database.MapError(err)
		}
	}

	return nil
}

// GetByID gets an invoice with its lines, medicine names and issuing user's name
func (r *InvoiceRepository) GetByID(ctx context.Context, id string) (*domain.Invoice, error) {
	conn := r.db.Conn(ctx)

	var inv domain.Invoice
	query := `
		SELECT i.id, i.user_id,
			COALESCE(NULLIF(TRIM(u.first_name || ' ' || u.last_name), ''), u.email, '') AS user_name,
			i.customer_name, i.prescription_id, i.total_amount, i.created_at
		FROM invoices i
		LEFT JOIN user_directory u ON u.user_id = i.user_id
		WHERE i.id = $1
	`
	if err := conn.GetContext(ctx, &inv, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("invoice " + id)
		}
		return nil, err
	}

	lineQuery := `
		SELECT il.id, il.invoice_id, il.medicine_id, m.name AS medicine_name,
			il.quantity, il.unit_price, il.line_total, il.position
		FROM invoice_lines il
		JOIN medicines m ON m.id = il.medicine_id
		WHERE il.invoice_id = $1
		ORDER BY il.position
	`
	inv.Lines = []domain.InvoiceLine{}
	if err := conn.SelectContext(ctx, &inv.Lines, lineQuery, id); err != nil {
		return nil, err
	}

	return &inv, nil
}

// List lists invoice summaries, newest first
func (r *InvoiceRepository) List(ctx context.Context, page, perPage int) ([]*domain.InvoiceSummary, int64, error) {
	conn := r.db.Conn(ctx)

	var total int64
	if err := conn.GetContext(ctx, &total, `SELECT COUNT(*) FROM invoices`); err != nil {
		return nil, 0, err
	}

	var invoices []*domain.InvoiceSummary
	query := invoiceSummarySelect + ` ORDER BY i.created_at DESC, i.id LIMIT $1 OFFSET $2`
	if err := conn.SelectContext(ctx, &invoices, query, perPage, (page-1)*perPage); err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}

// ListByUser lists invoices issued by a user
func (r *InvoiceRepository) ListByUser(ctx context.Context, userID string) ([]*domain.InvoiceSummary, error) {
	var invoices []*domain.InvoiceSummary
	query := invoiceSummarySelect + ` WHERE i.user_id = $1 ORDER BY i.created_at DESC`
	if err := r.db.Conn(ctx).SelectContext(ctx, &invoices, query, userID); err != nil {
		return nil, err
	}
	return invoices, nil
}

// ListByDateRange lists invoices created in [start, end]
func (r *InvoiceRepository) ListByDateRange(ctx context.Context, start, end time.Time) ([]*domain.InvoiceSummary, error) {
	var invoices []*domain.InvoiceSummary
	query := invoiceSummarySelect + ` WHERE i.created_at >= $1 AND i.created_at <= $2 ORDER BY i.created_at DESC`
	if err := r.db.Conn(ctx).SelectContext(ctx, &invoices, query, start, end); err != nil {
		return nil, err
	}
	return invoices, nil
}
