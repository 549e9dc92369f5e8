package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/readshelf/catalog-service/internal/domain"
)

// ReviewRepository handles review persistence and moderation state changes.
type ReviewRepository interface {
	// Create inserts a review in pending status. The reviews table carries a
	// unique constraint on (book_id, user_id); a violation surfaces as
	// domain.ErrDuplicateReview.
	Create(ctx context.Context, review *domain.Review) error

	// GetByID retrieves a review with its author and book identity.
	// Returns domain.ErrNotFound if no such review exists.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ReviewWithBook, error)

	// GetOwn retrieves the review a user left on a book regardless of its
	// status. Returns domain.ErrNotFound if the user has not reviewed the book.
	GetOwn(ctx context.Context, bookID, userID uuid.UUID) (*domain.Review, error)

	// ListApprovedExcluding returns the approved reviews for a book, newest
	// first, skipping the one authored by excludeUserID. Pass uuid.Nil to
	// exclude nobody.
	ListApprovedExcluding(ctx context.Context, bookID, excludeUserID uuid.UUID) ([]domain.ReviewWithAuthor, error)

	// ListByUser returns all reviews authored by a user, newest first,
	// with the book identity attached.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.ReviewWithBook, error)

	// ListPending returns the pending reviews oldest-first for the
	// moderation queue, plus the total pending count.
	ListPending(ctx context.Context, limit, offset int) ([]domain.ReviewWithBook, int64, error)

	// UpdateStatus sets a review's status. Returns domain.ErrNotFound if no
	// such review exists. Transitions are not gated here; the service layer
	// owns the lifecycle rules.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ReviewStatus) error
}
