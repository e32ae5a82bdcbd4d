package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Invoice is the single persisted result of a settlement. It is never updated.
type Invoice struct {
	ID             string          `db:"id" json:"id"`
	UserID         string          `db:"user_id" json:"user_id"`
	UserName       string          `db:"user_name" json:"user_name"`
	CustomerName   *string         `db:"customer_name" json:"customer_name,omitempty"`
	PrescriptionID *string         `db:"prescription_id" json:"prescription_id,omitempty"`
	TotalAmount    decimal.Decimal `db:"total_amount" json:"total_amount"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	Lines          []InvoiceLine   `db:"-" json:"items"`
}

// InvoiceLine carries the unit price as it was at settlement time
type InvoiceLine struct {
	ID           string          `db:"id" json:"id"`
	InvoiceID    string          `db:"invoice_id" json:"-"`
	MedicineID   string          `db:"medicine_id" json:"medicine_id"`
	MedicineName string          `db:"medicine_name" json:"medicine_name"`
	Quantity     int             `db:"quantity" json:"quantity"`
	UnitPrice    decimal.Decimal `db:"unit_price" json:"unit_price"`
	LineTotal    decimal.Decimal `db:"line_total" json:"line_total"`
	Position     int             `db:"position" json:"-"`
}

// InvoiceSummary is the list view of an invoice
type InvoiceSummary struct {
	ID             string          `db:"id" json:"id"`
	UserID         string          `db:"user_id" json:"user_id"`
	UserName       string          `db:"user_name" json:"user_name"`
	CustomerName   *string         `db:"customer_name" json:"customer_name,omitempty"`
	PrescriptionID *string         `db:"prescription_id" json:"prescription_id,omitempty"`
	TotalAmount    decimal.Decimal `db:"total_amount" json:"total_amount"`
	ItemsCount     int             `db:"items_count" json:"items_count"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// NewInvoiceLine snapshots the medicine's current price
func NewInvoiceLine(m *Medicine, qty int) InvoiceLine {
	return InvoiceLine{
		MedicineID:   m.ID,
		MedicineName: m.Name,
		Quantity:     qty,
		UnitPrice:    m.Price,
		LineTotal:    m.Price.Mul(decimal.NewFromInt(int64(qty))),
	}
}

// Recalculate derives TotalAmount from the lines
func (inv *Invoice) Recalculate() {
	total := decimal.Zero
	for i := range inv.Lines {
		inv.Lines[i].LineTotal = inv.Lines[i].UnitPrice.Mul(decimal.NewFromInt(int64(inv.Lines[i].Quantity)))
		total = total.Add(inv.Lines[i].LineTotal)
	}
	inv.TotalAmount = total
}

// Verify checks that every line total and the invoice total are consistent
func (inv *Invoice) Verify() error {
	total := decimal.Zero
	for _, l := range inv.Lines {
		if l.Quantity <= 0 {
			return fmt.Errorf("line for medicine %s has non-positive quantity %d", l.MedicineID, l.Quantity)
		}
		want := l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
		if !l.LineTotal.Equal(want) {
			return fmt.Errorf("line for medicine %s totals %s, want %s", l.MedicineID, l.LineTotal, want)
		}
		total = total.Add(l.LineTotal)
	}
	if !inv.TotalAmount.Equal(total) {
		return fmt.Errorf("invoice totals %s, lines sum to %s", inv.TotalAmount, total)
	}
	return nil
}

// Summary returns the list view of the invoice
func (inv *Invoice) Summary() InvoiceSummary {
	return InvoiceSummary{
		ID:             inv.ID,
		UserID:         inv.UserID,
		UserName:       inv.UserName,
		CustomerName:   inv.CustomerName,
		PrescriptionID: inv.PrescriptionID,
		TotalAmount:    inv.TotalAmount,
		ItemsCount:     len(inv.Lines),
		CreatedAt:      inv.CreatedAt,
	}
}
