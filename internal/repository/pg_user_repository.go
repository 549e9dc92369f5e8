package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/readshelf/catalog-service/internal/domain"
)

// Compile-time interface verification.
var _ UserRepository = (*PgUserRepository)(nil)

// PgUserRepository is a PostgreSQL implementation of UserRepository.
type PgUserRepository struct {
	db DBTX
}

// NewPgUserRepository creates a new PostgreSQL user repository.
func NewPgUserRepository(db DBTX) *PgUserRepository {
	return &PgUserRepository{db: db}
}

const userSelect = `
	SELECT u.id, u.username, u.last_name, u.first_name, u.middle_name, r.name
	FROM users u
	JOIN roles r ON r.id = u.role_id`

// GetByID retrieves a user with their role name.
func (r *PgUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRow(ctx, userSelect+" WHERE u.id = $1", id).Scan(
		&u.ID, &u.Username, &u.LastName, &u.FirstName, &u.MiddleName, &u.Role,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("user", id.String())
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &u, nil
}

// GetByUsername retrieves a user with their role name.
func (r *PgUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRow(ctx, userSelect+" WHERE u.username = $1", username).Scan(
		&u.ID, &u.Username, &u.LastName, &u.FirstName, &u.MiddleName, &u.Role,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("user", username)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &u, nil
}
