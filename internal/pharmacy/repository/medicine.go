package repository

import (
	"context"

	"github.com/lib/pq"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/medflow/pharmacy-backend/pkg/database"
)

const medicineColumns = `id, name, category, batch_number, expiry_date, price, quantity, supplier_id, created_at, updated_at`

// MedicineRepository reads the catalog and applies stock decrements.
// Catalog maintenance lives elsewhere.
type MedicineRepository struct {
	db *database.DB
}

// NewMedicineRepository creates a new medicine repository
func NewMedicineRepository(db *database.DB) *MedicineRepository {
	return &MedicineRepository{db: db}
}

// GetByIDs loads all medicines matching ids in one query. Unknown ids are simply absent.
func (r *MedicineRepository) GetByIDs(ctx context.Context, ids []string) ([]*domain.Medicine, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var medicines []*domain.Medicine
	query := `SELECT ` + medicineColumns + ` FROM medicines WHERE id = ANY($1)`
	if err := r.db.Conn(ctx).SelectContext(ctx, &medicines, query, pq.Array(ids)); err != nil {
		return nil, err
	}
	return medicines, nil
}

// LockByIDs loads and row-locks medicines for the rest of the current transaction.
// Rows are locked in id order so concurrent multi-line settlements cannot deadlock.
func (r *MedicineRepository) LockByIDs(ctx context.Context, ids []string) ([]*domain.Medicine, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var medicines []*domain.Medicine
	query := `SELECT ` + medicineColumns + ` FROM medicines WHERE id = ANY($1) ORDER BY id FOR UPDATE`
	if err := r.db.Conn(ctx).SelectContext(ctx, &medicines, query, pq.Array(ids)); err != nil {
		return nil, err
	}
	return medicines, nil
}

// DecrementStock takes amount units from a medicine.
// It returns domain.ErrInsufficientStock when the row holds less than amount.
func (r *MedicineRepository) DecrementStock(ctx context.Context, id string, amount int) error {
	query := `
		UPDATE medicines SET quantity = quantity - $2, updated_at = NOW()
		WHERE id = $1 AND quantity >= $2
	`
	result, err := r.db.Conn(ctx).ExecContext(ctx, query, id, amount)
	if err != nil {
		return database.MapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrInsufficientStock
	}
	return nil
}
