// Package catalog implements book search, detail, and administration.
package catalog

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/readshelf/catalog-service/internal/covers"
	"github.com/readshelf/catalog-service/internal/domain"
	"github.com/readshelf/catalog-service/internal/observability"
	"github.com/readshelf/catalog-service/internal/repository"
	"github.com/readshelf/catalog-service/internal/search"
)

// SearchResult is one page of catalog search results with pagination metadata.
type SearchResult struct {
	Items      []domain.BookSummary
	Page       int
	PageSize   int
	Total      int64
	TotalPages int
}

// BookInput carries the writable book fields for create and update.
type BookInput struct {
	Title            string
	ShortDescription string
	Year             int
	Publisher        string
	Author           string
	Pages            int
	GenreIDs         []uuid.UUID
}

// Validate checks the administrative write invariants.
func (in *BookInput) Validate() error {
	if in.Title == "" {
		return domain.NewValidationError("title", "title is required")
	}
	if in.ShortDescription == "" {
		return domain.NewValidationError("short_description", "short description is required")
	}
	if in.Publisher == "" {
		return domain.NewValidationError("publisher", "publisher is required")
	}
	if in.Author == "" {
		return domain.NewValidationError("author", "author is required")
	}
	if in.Year <= 0 {
		return domain.NewValidationError("year", "year must be positive")
	}
	if in.Pages <= 0 {
		return domain.NewValidationError("pages", "pages must be positive")
	}
	return nil
}

// CoverUpload is an optional cover image accompanying a book write.
type CoverUpload struct {
	Filename string
	Data     io.Reader
}

// Service provides catalog operations: paginated search, book detail, and
// administrative writes with cover file bookkeeping.
type Service struct {
	books    repository.BookRepository
	covers   *covers.Store
	pageSize int
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

// NewService creates a catalog service.
func NewService(
	books repository.BookRepository,
	coverStore *covers.Store,
	pageSize int,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Service {
	return &Service{
		books:    books,
		covers:   coverStore,
		pageSize: pageSize,
		logger:   logger.With().Str("component", "catalog").Logger(),
		metrics:  metrics,
	}
}

// Search runs a catalog search for one result page.
//
// Pages are 1-based; page values below 1 are normalized to 1, and a page past
// the end yields an empty item list with the true totals, not an error.
// TotalPages is never below 1 so "page 1 of 1" holds even for zero matches.
func (s *Service) Search(ctx context.Context, criteria search.Criteria, page int) (*SearchResult, error) {
	if page < 1 {
		page = 1
	}

	plan := search.BuildPlan(criteria)
	offset := (page - 1) * s.pageSize

	start := time.Now()
	items, total, err := s.books.Search(ctx, plan, s.pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	s.metrics.SearchesTotal.WithLabelValues(strconv.FormatBool(!criteria.IsZero())).Inc()
	s.metrics.SearchDuration.Observe(time.Since(start).Seconds())
	s.metrics.SearchResults.Observe(float64(total))

	totalPages := int((total + int64(s.pageSize) - 1) / int64(s.pageSize))
	if totalPages < 1 {
		totalPages = 1
	}

	s.logger.Debug().
		Int("page", page).
		Int64("total", total).
		Int("returned", len(items)).
		Bool("filtered", !criteria.IsZero()).
		Msg("catalog search executed")

	return &SearchResult{
		Items:      items,
		Page:       page,
		PageSize:   s.pageSize,
		Total:      total,
		TotalPages: totalPages,
	}, nil
}

// GetBook retrieves one book with genres and cover filename.
func (s *Service) GetBook(ctx context.Context, id uuid.UUID) (*domain.BookDetail, error) {
	return s.books.GetDetail(ctx, id)
}

// ListYears returns the distinct publication years for the search form.
func (s *Service) ListYears(ctx context.Context) ([]int, error) {
	return s.books.ListYears(ctx)
}

// ListGenres returns all genres ordered by name.
func (s *Service) ListGenres(ctx context.Context) ([]domain.Genre, error) {
	return s.books.ListGenres(ctx)
}

// CreateBook inserts a new book with its genres and optional cover.
// The cover file is written to disk first; if the database write then fails
// the orphaned file is removed best-effort.
func (s *Service) CreateBook(ctx context.Context, in BookInput, upload *CoverUpload) (*domain.BookDetail, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	book := &domain.Book{
		ID:               uuid.New(),
		Title:            in.Title,
		ShortDescription: in.ShortDescription,
		Year:             in.Year,
		Publisher:        in.Publisher,
		Author:           in.Author,
		Pages:            in.Pages,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	cover, err := s.storeUpload(book.ID, upload)
	if err != nil {
		return nil, err
	}

	if err := s.books.Create(ctx, book, in.GenreIDs, cover); err != nil {
		if cover != nil {
			s.covers.Remove(cover.Filename)
		}
		return nil, err
	}

	log := observability.WithBookContext(s.logger, book.ID.String(), book.Title)
	log.Info().Msg("book created")

	return s.books.GetDetail(ctx, book.ID)
}

// UpdateBook replaces a book's fields and genre set, and optionally its
// cover. Old cover files are removed best-effort only after the transaction
// commits; a failed commit removes the newly written file instead.
func (s *Service) UpdateBook(ctx context.Context, id uuid.UUID, in BookInput, upload *CoverUpload) (*domain.BookDetail, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	book := &domain.Book{
		ID:               id,
		Title:            in.Title,
		ShortDescription: in.ShortDescription,
		Year:             in.Year,
		Publisher:        in.Publisher,
		Author:           in.Author,
		Pages:            in.Pages,
	}

	cover, err := s.storeUpload(id, upload)
	if err != nil {
		return nil, err
	}

	oldFilenames, err := s.books.Update(ctx, book, in.GenreIDs, cover)
	if err != nil {
		if cover != nil {
			s.covers.Remove(cover.Filename)
		}
		return nil, err
	}

	s.covers.RemoveAll(oldFilenames)

	log := observability.WithBookContext(s.logger, id.String(), in.Title)
	log.Info().Msg("book updated")

	return s.books.GetDetail(ctx, id)
}

// DeleteBook removes a book; its genre links, cover rows and reviews cascade
// in the database. Cover files are removed best-effort after the commit.
func (s *Service) DeleteBook(ctx context.Context, id uuid.UUID) error {
	filenames, err := s.books.Delete(ctx, id)
	if err != nil {
		return err
	}

	s.covers.RemoveAll(filenames)

	s.logger.Info().Str("book_id", id.String()).Msg("book deleted")
	return nil
}

// storeUpload writes an optional cover upload to disk and returns its row.
func (s *Service) storeUpload(bookID uuid.UUID, upload *CoverUpload) (*domain.Cover, error) {
	if upload == nil {
		return nil, nil
	}

	filename, mimeType, md5Hash, err := s.covers.Save(upload.Filename, upload.Data)
	if err != nil {
		return nil, err
	}

	return &domain.Cover{
		ID:       uuid.New(),
		BookID:   bookID,
		Filename: filename,
		MimeType: mimeType,
		MD5Hash:  md5Hash,
	}, nil
}
