package repository

import (
	"context"
	"database/sql"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/medflow/pharmacy-backend/pkg/database"
	"github.com/medflow/pharmacy-backend/pkg/errors"
)

// UserDirectoryRepository is the local copy of identity-service users, kept current by user events
type UserDirectoryRepository struct {
	db *database.DB
}

// NewUserDirectoryRepository creates a new user directory repository
func NewUserDirectoryRepository(db *database.DB) *UserDirectoryRepository {
	return &UserDirectoryRepository{db: db}
}

// Get gets a user by ID
func (r *UserDirectoryRepository) Get(ctx context.Context, userID string) (*domain.User, error) {
	var user domain.User
	query := `
		SELECT user_id, first_name, last_name, email, role_name, password_hash, updated_at
		FROM user_directory WHERE user_id = $1
	`
	if err := r.db.Conn(ctx).GetContext(ctx, &user, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("user")
		}
		return nil, err
	}
	return &user, nil
}

// Upsert inserts or replaces a user
func (r *UserDirectoryRepository) Upsert(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO user_directory (user_id, first_name, last_name, email, role_name, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			email = EXCLUDED.email,
			role_name = EXCLUDED.role_name,
			updated_at = NOW()
	`
	_, err := r.db.Conn(ctx).ExecContext(ctx, query,
		user.ID, user.FirstName, user.LastName, user.Email, user.RoleName,
	)
	return err
}

// UpdateProfile changes the fields that are non-nil
func (r *UserDirectoryRepository) UpdateProfile(ctx context.Context, userID string, firstName, lastName, email *string) error {
	query := `
		UPDATE user_directory SET
			first_name = COALESCE($2, first_name),
			last_name = COALESCE($3, last_name),
			email = COALESCE($4, email),
			updated_at = NOW()
		WHERE user_id = $1
	`
	result, err := r.db.Conn(ctx).ExecContext(ctx, query, userID, firstName, lastName, email)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("user")
	}
	return nil
}

// Delete removes a user. Deleting an unknown user is not an error.
func (r *UserDirectoryRepository) Delete(ctx context.Context, userID string) error {
	_, err := r.db.Conn(ctx).ExecContext(ctx, `DELETE FROM user_directory WHERE user_id = $1`, userID)
	return err
}
