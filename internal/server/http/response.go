package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/readshelf/catalog-service/internal/catalog"
	"github.com/readshelf/catalog-service/internal/domain"
	"github.com/readshelf/catalog-service/internal/reviews"
)

// Response types for JSON serialization.

type bookSummaryResponse struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Year        int     `json:"year"`
	Author      string  `json:"author"`
	Pages       int     `json:"pages"`
	Genres      string  `json:"genres"`
	AvgRating   float64 `json:"avg_rating"`
	ReviewCount int     `json:"review_count"`
	CoverURL    string  `json:"cover_url,omitempty"`
}

type searchBooksResponse struct {
	Books      []bookSummaryResponse `json:"books"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	Total      int64                 `json:"total"`
	TotalPages int                   `json:"total_pages"`
}

type genreResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type bookDetailResponse struct {
	ID               string          `json:"id"`
	Title            string          `json:"title"`
	ShortDescription string          `json:"short_description,omitempty"`
	Year             int             `json:"year"`
	Publisher        string          `json:"publisher,omitempty"`
	Author           string          `json:"author"`
	Pages            int             `json:"pages"`
	Genres           []genreResponse `json:"genres"`
	CoverURL         string          `json:"cover_url,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

type reviewResponse struct {
	ID         string    `json:"id"`
	BookID     string    `json:"book_id"`
	Rating     int       `json:"rating"`
	Text       string    `json:"text"`
	HTML       string    `json:"html"`
	Status     string    `json:"status,omitempty"`
	Username   string    `json:"username,omitempty"`
	AuthorName string    `json:"author_name,omitempty"`
	BookTitle  string    `json:"book_title,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type bookReviewsResponse struct {
	Reviews []reviewResponse `json:"reviews"`
	Own     *reviewResponse  `json:"own,omitempty"`
}

type myReviewsResponse struct {
	Reviews []reviewResponse `json:"reviews"`
}

type submitReviewResponse struct {
	ID        string    `json:"id"`
	BookID    string    `json:"book_id"`
	Rating    int       `json:"rating"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	Message   string    `json:"message"`
}

type moderationQueueResponse struct {
	Reviews    []reviewResponse `json:"reviews"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
	Total      int64            `json:"total"`
	TotalPages int              `json:"total_pages"`
}

type moderationDecisionResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Converter functions

func coverURL(filename string) string {
	if filename == "" {
		return ""
	}
	return "/covers/" + filename
}

func domainSummaryToResponse(b domain.BookSummary) bookSummaryResponse {
	return bookSummaryResponse{
		ID:          b.ID.String(),
		Title:       b.Title,
		Year:        b.Year,
		Author:      b.Author,
		Pages:       b.Pages,
		Genres:      b.Genres,
		AvgRating:   b.AvgRating,
		ReviewCount: b.ReviewCount,
		CoverURL:    coverURL(b.CoverFilename),
	}
}

func searchResultToResponse(res *catalog.SearchResult) searchBooksResponse {
	books := make([]bookSummaryResponse, len(res.Items))
	for i, b := range res.Items {
		books[i] = domainSummaryToResponse(b)
	}
	return searchBooksResponse{
		Books:      books,
		Page:       res.Page,
		PageSize:   res.PageSize,
		Total:      res.Total,
		TotalPages: res.TotalPages,
	}
}

func domainDetailToResponse(d *domain.BookDetail) bookDetailResponse {
	genres := make([]genreResponse, len(d.Genres))
	for i, g := range d.Genres {
		genres[i] = genreResponse{ID: g.ID.String(), Name: g.Name}
	}
	return bookDetailResponse{
		ID:               d.ID.String(),
		Title:            d.Title,
		ShortDescription: d.ShortDescription,
		Year:             d.Year,
		Publisher:        d.Publisher,
		Author:           d.Author,
		Pages:            d.Pages,
		Genres:           genres,
		CoverURL:         coverURL(d.CoverFilename),
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

func renderedReviewToResponse(rv reviews.RenderedReview) reviewResponse {
	return reviewResponse{
		ID:         rv.ID.String(),
		BookID:     rv.BookID.String(),
		Rating:     rv.Rating,
		Text:       rv.Text,
		HTML:       rv.HTML,
		Username:   rv.Username,
		AuthorName: rv.AuthorName,
		CreatedAt:  rv.CreatedAt,
	}
}

func ownReviewToResponse(rv *reviews.RenderedOwnReview) *reviewResponse {
	if rv == nil {
		return nil
	}
	return &reviewResponse{
		ID:        rv.ID.String(),
		BookID:    rv.BookID.String(),
		Rating:    rv.Rating,
		Text:      rv.Text,
		HTML:      rv.HTML,
		Status:    string(rv.Status),
		CreatedAt: rv.CreatedAt,
	}
}

func userReviewToResponse(rv reviews.RenderedUserReview) reviewResponse {
	return reviewResponse{
		ID:         rv.ID.String(),
		BookID:     rv.BookID.String(),
		Rating:     rv.Rating,
		Text:       rv.Text,
		HTML:       rv.HTML,
		Status:     string(rv.Status),
		Username:   rv.Username,
		AuthorName: rv.AuthorName,
		BookTitle:  rv.BookTitle,
		CreatedAt:  rv.CreatedAt,
	}
}

// writeDomainError maps domain errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrDuplicateReview):
		writeError(w, http.StatusConflict, "you have already reviewed this book")
	case errors.Is(err, domain.ErrUnknownAction):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "resource already exists")
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// parseUUID parses a UUID from a string, writing a 400 error response if invalid.
// The parse error details are not included to avoid echoing potentially malicious input.
func parseUUID(w http.ResponseWriter, s, fieldName string) (uuid.UUID, bool) {
	id, err := uuid.Parse(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a valid UUID", fieldName))
		return uuid.Nil, false
	}
	return id, true
}
