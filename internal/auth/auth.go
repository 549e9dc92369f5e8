// Package auth verifies user credentials and resolves request identity.
//
// Authentication is deliberately thin: the catalog core consumes a user ID
// and role, and this package is the seam where a production deployment plugs
// in its own identity provider. The bundled StaticVerifier checks a
// configured username-to-bcrypt-hash map and resolves the user row from
// storage.
package auth

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/readshelf/catalog-service/internal/domain"
	"github.com/readshelf/catalog-service/internal/repository"
)

// Verifier checks a username/password pair and returns the authenticated user.
type Verifier interface {
	// Verify returns the user on success and domain.ErrUnauthorized when the
	// credentials do not match. Lookup failures other than a missing user
	// are returned as-is.
	Verify(ctx context.Context, username, password string) (*domain.User, error)
}

// StaticVerifier verifies credentials against a fixed map of bcrypt hashes.
type StaticVerifier struct {
	hashes map[string]string
	users  repository.UserRepository
}

// NewStaticVerifier creates a verifier over a username-to-bcrypt-hash map.
func NewStaticVerifier(hashes map[string]string, users repository.UserRepository) *StaticVerifier {
	return &StaticVerifier{hashes: hashes, users: users}
}

// Verify compares the password against the configured hash and resolves the
// user row. A missing username and a wrong password are indistinguishable to
// the caller.
func (v *StaticVerifier) Verify(ctx context.Context, username, password string) (*domain.User, error) {
	hash, ok := v.hashes[username]
	if !ok {
		// Burn a comparison anyway so a missing username costs the same as
		// a wrong password.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$0000000000000000000000000000000000000000000000000000"), []byte(password))
		return nil, domain.ErrUnauthorized
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, domain.ErrUnauthorized
	}

	user, err := v.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}

	return user, nil
}
