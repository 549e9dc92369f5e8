package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/readshelf/catalog-service/internal/domain"
	"github.com/readshelf/catalog-service/internal/search"
)

// BookRepository handles book persistence, search execution, and the
// derived aggregates shown in search results.
type BookRepository interface {
	// Search executes a query plan twice against the same filtered row set:
	// a count query and a page query with genre/rating/cover aggregates.
	// The returned total reflects all matching books regardless of limit
	// and offset. Read-only.
	Search(ctx context.Context, plan search.Plan, limit, offset int) ([]domain.BookSummary, int64, error)

	// GetDetail retrieves a book with its genres and cover filename.
	// Returns domain.ErrNotFound if no such book exists.
	GetDetail(ctx context.Context, id uuid.UUID) (*domain.BookDetail, error)

	// Exists reports whether a book row exists.
	Exists(ctx context.Context, id uuid.UUID) (bool, error)

	// Create inserts a book with its genre links and optional cover row
	// in a single transaction.
	Create(ctx context.Context, book *domain.Book, genreIDs []uuid.UUID, cover *domain.Cover) error

	// Update replaces a book's scalar fields and genre set. When newCover
	// is non-nil the existing cover rows are deleted and the new one
	// inserted in the same transaction; the old filenames are returned so
	// the caller can remove the files best-effort after commit.
	// Returns domain.ErrNotFound if no such book exists.
	Update(ctx context.Context, book *domain.Book, genreIDs []uuid.UUID, newCover *domain.Cover) ([]string, error)

	// Delete removes a book row; genre links, cover rows and reviews go
	// with it via ON DELETE CASCADE. The cover filenames that were on
	// record are returned for best-effort file removal after commit.
	// Returns domain.ErrNotFound if no such book exists.
	Delete(ctx context.Context, id uuid.UUID) ([]string, error)

	// ListYears returns the distinct publication years, newest first,
	// for the search form.
	ListYears(ctx context.Context) ([]int, error)

	// ListGenres returns all genres ordered by name.
	ListGenres(ctx context.Context) ([]domain.Genre, error)
}
