// Package reviews implements the review lifecycle: submission, display,
// and moderation.
//
// Every review enters in pending status and becomes visible to other readers
// only after a moderator approves it. The author always sees their own review
// regardless of status. One review per (book, user) pair is enforced by the
// storage layer's unique constraint, which closes the check-then-insert race.
package reviews

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/readshelf/catalog-service/internal/domain"
	"github.com/readshelf/catalog-service/internal/observability"
	"github.com/readshelf/catalog-service/internal/repository"
)

// Renderer converts raw review markup into sanitized HTML for display.
type Renderer interface {
	Render(raw string) (string, error)
}

// RenderedReview is an approved review prepared for display.
type RenderedReview struct {
	domain.ReviewWithAuthor
	HTML string
}

// RenderedOwnReview is the viewer's own review, any status, prepared for display.
type RenderedOwnReview struct {
	domain.Review
	HTML string
}

// RenderedUserReview is one entry of the "my reviews" listing.
type RenderedUserReview struct {
	domain.ReviewWithBook
	HTML string
}

// BookReviews is the review block of a book page: the approved reviews by
// other readers plus the viewer's own review when one exists.
type BookReviews struct {
	Approved []RenderedReview
	Own      *RenderedOwnReview
}

// ModerationPage is one page of the pending-review moderation queue.
type ModerationPage struct {
	Items      []RenderedUserReview
	Page       int
	PageSize   int
	Total      int64
	TotalPages int
}

// Service provides review submission, listing, and moderation.
type Service struct {
	reviews  repository.ReviewRepository
	books    repository.BookRepository
	renderer Renderer
	pageSize int
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

// NewService creates a review service.
func NewService(
	reviews repository.ReviewRepository,
	books repository.BookRepository,
	renderer Renderer,
	moderationPageSize int,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Service {
	return &Service{
		reviews:  reviews,
		books:    books,
		renderer: renderer,
		pageSize: moderationPageSize,
		logger:   logger.With().Str("component", "reviews").Logger(),
		metrics:  metrics,
	}
}

// Submit creates a pending review for a book.
//
// The book must exist, the rating must be within bounds, and the text must be
// non-empty after trimming. A second review by the same user for the same
// book fails with domain.ErrDuplicateReview, including the race where two
// submissions pass the checks concurrently.
func (s *Service) Submit(ctx context.Context, bookID, userID uuid.UUID, rating int, text string) (*domain.Review, error) {
	exists, err := s.books.Exists(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to check book: %w", err)
	}
	if !exists {
		return nil, domain.NewNotFoundError("book", bookID.String())
	}

	review := &domain.Review{
		ID:        uuid.New(),
		BookID:    bookID,
		UserID:    userID,
		Rating:    rating,
		Text:      text,
		Status:    domain.ReviewStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := review.Validate(); err != nil {
		return nil, err
	}

	// Friendly pre-check; the unique constraint below remains the arbiter
	// when two submissions race past it.
	if _, err := s.reviews.GetOwn(ctx, bookID, userID); err == nil {
		s.metrics.ReviewsRejectedDuplicate.Inc()
		return nil, domain.NewDuplicateReviewError(bookID.String(), userID.String())
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing review: %w", err)
	}

	if err := s.reviews.Create(ctx, review); err != nil {
		if errors.Is(err, domain.ErrDuplicateReview) {
			s.metrics.ReviewsRejectedDuplicate.Inc()
		}
		return nil, err
	}

	s.metrics.ReviewsSubmitted.Inc()

	log := observability.WithReviewContext(s.logger, review.ID.String(), bookID.String(), userID.String())
	log.Info().Int("rating", rating).Msg("review submitted")

	return review, nil
}

// ListForBook returns the review block of a book page for a viewer: approved
// reviews by other readers, newest first, plus the viewer's own review in any
// status. Pass uuid.Nil as viewerID for an anonymous visitor.
func (s *Service) ListForBook(ctx context.Context, bookID, viewerID uuid.UUID) (*BookReviews, error) {
	approved, err := s.reviews.ListApprovedExcluding(ctx, bookID, viewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list approved reviews: %w", err)
	}

	result := &BookReviews{
		Approved: make([]RenderedReview, 0, len(approved)),
	}
	for _, rv := range approved {
		html, err := s.renderer.Render(rv.Text)
		if err != nil {
			return nil, fmt.Errorf("failed to render review %s: %w", rv.ID, err)
		}
		result.Approved = append(result.Approved, RenderedReview{ReviewWithAuthor: rv, HTML: html})
	}

	if viewerID != uuid.Nil {
		own, err := s.reviews.GetOwn(ctx, bookID, viewerID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("failed to get own review: %w", err)
		}
		if own != nil {
			html, err := s.renderer.Render(own.Text)
			if err != nil {
				return nil, fmt.Errorf("failed to render own review: %w", err)
			}
			result.Own = &RenderedOwnReview{Review: *own, HTML: html}
		}
	}

	return result, nil
}

// ListOwn returns all reviews authored by a user, newest first.
func (s *Service) ListOwn(ctx context.Context, userID uuid.UUID) ([]RenderedUserReview, error) {
	rows, err := s.reviews.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user reviews: %w", err)
	}

	rendered := make([]RenderedUserReview, 0, len(rows))
	for _, rv := range rows {
		html, err := s.renderer.Render(rv.Text)
		if err != nil {
			return nil, fmt.Errorf("failed to render review %s: %w", rv.ID, err)
		}
		rendered = append(rendered, RenderedUserReview{ReviewWithBook: rv, HTML: html})
	}

	return rendered, nil
}

// ListPendingForModeration returns one page of the moderation queue, oldest
// submissions first so no review waits forever.
func (s *Service) ListPendingForModeration(ctx context.Context, page int) (*ModerationPage, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * s.pageSize

	rows, total, err := s.reviews.ListPending(ctx, s.pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending reviews: %w", err)
	}

	items := make([]RenderedUserReview, 0, len(rows))
	for _, rv := range rows {
		html, err := s.renderer.Render(rv.Text)
		if err != nil {
			return nil, fmt.Errorf("failed to render review %s: %w", rv.ID, err)
		}
		items = append(items, RenderedUserReview{ReviewWithBook: rv, HTML: html})
	}

	totalPages := int((total + int64(s.pageSize) - 1) / int64(s.pageSize))
	if totalPages < 1 {
		totalPages = 1
	}

	return &ModerationPage{
		Items:      items,
		Page:       page,
		PageSize:   s.pageSize,
		Total:      total,
		TotalPages: totalPages,
	}, nil
}

// Moderate applies a moderator's decision to a review.
//
// An action outside the closed verb set fails with domain.ErrUnknownAction
// before any read or write. Re-moderating an already decided review is
// allowed; the decision simply overwrites the previous status.
func (s *Service) Moderate(ctx context.Context, reviewID uuid.UUID, action domain.ModerationAction, moderatorID uuid.UUID) (*domain.ReviewWithBook, error) {
	status, err := action.StatusFor()
	if err != nil {
		return nil, err
	}

	review, err := s.reviews.GetByID(ctx, reviewID)
	if err != nil {
		return nil, err
	}

	if review.Status.IsTerminal() {
		s.logger.Info().
			Str("review_id", reviewID.String()).
			Str("previous_status", string(review.Status)).
			Str("action", string(action)).
			Msg("re-moderating a decided review")
	}

	if err := s.reviews.UpdateStatus(ctx, reviewID, status); err != nil {
		return nil, err
	}
	review.Status = status

	s.metrics.ModerationDecisions.WithLabelValues(string(action)).Inc()

	s.logger.Info().
		Str("review_id", reviewID.String()).
		Str("moderator_id", moderatorID.String()).
		Str("action", string(action)).
		Msg("moderation decision applied")

	return review, nil
}
