package domain

import (
	stderrors "errors"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// MaxQuantity is the largest quantity a stock or line column can hold
const MaxQuantity = math.MaxInt32

// Medicine is a catalog entry. Quantity is the live stock and never goes below zero.
type Medicine struct {
	ID          string          `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Category    *string         `db:"category" json:"category,omitempty"`
	BatchNumber string          `db:"batch_number" json:"batch_number"`
	ExpiryDate  time.Time       `db:"expiry_date" json:"expiry_date"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Quantity    int             `db:"quantity" json:"quantity"`
	SupplierID  *string         `db:"supplier_id" json:"supplier_id,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// HasStock reports whether qty units can be taken from the medicine
func (m *Medicine) HasStock(qty int) bool {
	return qty > 0 && m.Quantity >= qty
}

// ErrInsufficientStock is returned by a conditional decrement that found too little stock
var ErrInsufficientStock = stderrors.New("insufficient stock")
