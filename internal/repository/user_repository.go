package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/readshelf/catalog-service/internal/domain"
)

// UserRepository resolves user identity for authentication and request
// attribution.
type UserRepository interface {
	// GetByID retrieves a user with their role name.
	// Returns domain.ErrNotFound if no such user exists.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// GetByUsername retrieves a user with their role name.
	// Returns domain.ErrNotFound if no such user exists.
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}
