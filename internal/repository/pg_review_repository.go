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
var _ ReviewRepository = (*PgReviewRepository)(nil)

// PgReviewRepository is a PostgreSQL implementation of ReviewRepository.
type PgReviewRepository struct {
	db DBTX
}

// NewPgReviewRepository creates a new PostgreSQL review repository.
func NewPgReviewRepository(db DBTX) *PgReviewRepository {
	return &PgReviewRepository{db: db}
}

// reviewWithBookSelect joins a review with its author and book identity.
const reviewWithBookSelect = `
	SELECT r.id, r.book_id, r.user_id, r.rating, r.text, r.status, r.created_at,
		u.username,
		TRIM(CONCAT_WS(' ', u.last_name, u.first_name, u.middle_name)) AS author_name,
		b.title
	FROM reviews r
	JOIN users u ON u.id = r.user_id
	JOIN books b ON b.id = r.book_id`

// Create inserts a review in pending status.
func (r *PgReviewRepository) Create(ctx context.Context, review *domain.Review) error {
	if review == nil {
		return domain.NewValidationError("review", "review cannot be nil")
	}
	if review.ID == uuid.Nil {
		return domain.NewValidationError("id", "review ID is required")
	}

	query := `
		INSERT INTO reviews (id, book_id, user_id, rating, text, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		review.ID, review.BookID, review.UserID,
		review.Rating, review.Text, review.Status, review.CreatedAt,
	)
	if err != nil {
		if isPgUniqueViolation(err) {
			return domain.NewDuplicateReviewError(review.BookID.String(), review.UserID.String())
		}
		if isPgForeignKeyViolation(err) {
			return domain.NewNotFoundError("book", review.BookID.String())
		}
		return fmt.Errorf("failed to create review: %w", err)
	}

	return nil
}

// GetByID retrieves a review with author and book identity.
func (r *PgReviewRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.ReviewWithBook, error) {
	query := reviewWithBookSelect + " WHERE r.id = $1"

	var rv domain.ReviewWithBook
	err := r.db.QueryRow(ctx, query, id).Scan(
		&rv.ID, &rv.BookID, &rv.UserID, &rv.Rating, &rv.Text, &rv.Status, &rv.CreatedAt,
		&rv.Username, &rv.AuthorName, &rv.BookTitle,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("review", id.String())
		}
		return nil, fmt.Errorf("failed to get review: %w", err)
	}

	return &rv, nil
}

// GetOwn retrieves the review a user left on a book regardless of status.
func (r *PgReviewRepository) GetOwn(ctx context.Context, bookID, userID uuid.UUID) (*domain.Review, error) {
	query := `
		SELECT id, book_id, user_id, rating, text, status, created_at
		FROM reviews
		WHERE book_id = $1 AND user_id = $2`

	var rv domain.Review
	err := r.db.QueryRow(ctx, query, bookID, userID).Scan(
		&rv.ID, &rv.BookID, &rv.UserID, &rv.Rating, &rv.Text, &rv.Status, &rv.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("review", bookID.String())
		}
		return nil, fmt.Errorf("failed to get own review: %w", err)
	}

	return &rv, nil
}

// ListApprovedExcluding returns the approved reviews for a book, newest
// first, skipping the one authored by excludeUserID.
func (r *PgReviewRepository) ListApprovedExcluding(ctx context.Context, bookID, excludeUserID uuid.UUID) ([]domain.ReviewWithAuthor, error) {
	query := `
		SELECT r.id, r.book_id, r.user_id, r.rating, r.text, r.status, r.created_at,
			u.username,
			TRIM(CONCAT_WS(' ', u.last_name, u.first_name, u.middle_name)) AS author_name
		FROM reviews r
		JOIN users u ON u.id = r.user_id
		WHERE r.book_id = $1 AND r.status = $2 AND r.user_id <> $3
		ORDER BY r.created_at DESC, r.id DESC`

	rows, err := r.db.Query(ctx, query, bookID, domain.ReviewStatusApproved, excludeUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list approved reviews: %w", err)
	}
	defer rows.Close()

	var reviews []domain.ReviewWithAuthor
	for rows.Next() {
		var rv domain.ReviewWithAuthor
		if err := rows.Scan(
			&rv.ID, &rv.BookID, &rv.UserID, &rv.Rating, &rv.Text, &rv.Status, &rv.CreatedAt,
			&rv.Username, &rv.AuthorName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reviews: %w", err)
	}

	return reviews, nil
}

// ListByUser returns all reviews authored by a user, newest first.
func (r *PgReviewRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.ReviewWithBook, error) {
	query := reviewWithBookSelect + `
	WHERE r.user_id = $1
	ORDER BY r.created_at DESC, r.id DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user reviews: %w", err)
	}
	defer rows.Close()

	reviews, err := scanReviewsWithBook(rows)
	if err != nil {
		return nil, err
	}

	return reviews, nil
}

// ListPending returns the pending reviews oldest-first plus the total count.
func (r *PgReviewRepository) ListPending(ctx context.Context, limit, offset int) ([]domain.ReviewWithBook, int64, error) {
	if limit <= 0 {
		return nil, 0, domain.NewValidationError("limit", "limit must be positive")
	}
	if offset < 0 {
		return nil, 0, domain.NewValidationError("offset", "offset must not be negative")
	}

	var total int64
	err := r.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM reviews WHERE status = $1",
		domain.ReviewStatusPending,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count pending reviews: %w", err)
	}

	query := reviewWithBookSelect + `
	WHERE r.status = $1
	ORDER BY r.created_at ASC, r.id ASC
	LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, domain.ReviewStatusPending, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list pending reviews: %w", err)
	}
	defer rows.Close()

	reviews, err := scanReviewsWithBook(rows)
	if err != nil {
		return nil, 0, err
	}

	return reviews, total, nil
}

// UpdateStatus sets a review's status.
func (r *PgReviewRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ReviewStatus) error {
	if !domain.IsValidReviewStatus(status) {
		return domain.NewValidationError("status", fmt.Sprintf("invalid review status: %s", status))
	}

	tag, err := r.db.Exec(ctx, "UPDATE reviews SET status = $1 WHERE id = $2", status, id)
	if err != nil {
		return fmt.Errorf("failed to update review status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("review", id.String())
	}

	return nil
}

// scanReviewsWithBook drains a rows set produced by reviewWithBookSelect.
func scanReviewsWithBook(rows pgx.Rows) ([]domain.ReviewWithBook, error) {
	var reviews []domain.ReviewWithBook
	for rows.Next() {
		var rv domain.ReviewWithBook
		if err := rows.Scan(
			&rv.ID, &rv.BookID, &rv.UserID, &rv.Rating, &rv.Text, &rv.Status, &rv.CreatedAt,
			&rv.Username, &rv.AuthorName, &rv.BookTitle,
		); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reviews: %w", err)
	}
	return reviews, nil
}
