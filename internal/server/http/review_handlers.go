package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/readshelf/catalog-service/internal/domain"
)

type submitReviewRequest struct {
	Rating int    `json:"rating"`
	Text   string `json:"text"`
}

type moderateReviewRequest struct {
	Action string `json:"action"`
}

// listBookReviews handles GET /api/v1/books/{bookID}/reviews.
//
// Anonymous visitors see the approved reviews. An authenticated viewer
// additionally gets their own review in any status, and their review is
// excluded from the shared list so it never appears twice.
func (s *Server) listBookReviews(w http.ResponseWriter, r *http.Request) {
	bookID, ok := parseUUID(w, chi.URLParam(r, "bookID"), "book_id")
	if !ok {
		return
	}

	viewerID := uuid.Nil
	if user := userFromContext(r.Context()); user != nil {
		viewerID = user.ID
	}

	block, err := s.reviews.ListForBook(r.Context(), bookID, viewerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	responses := make([]reviewResponse, len(block.Approved))
	for i, rv := range block.Approved {
		responses[i] = renderedReviewToResponse(rv)
	}

	writeJSON(w, http.StatusOK, bookReviewsResponse{
		Reviews: responses,
		Own:     ownReviewToResponse(block.Own),
	})
}

// submitReview handles POST /api/v1/books/{bookID}/reviews.
func (s *Server) submitReview(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	bookID, ok := parseUUID(w, chi.URLParam(r, "bookID"), "book_id")
	if !ok {
		return
	}

	var req submitReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	review, err := s.reviews.Submit(r.Context(), bookID, user.ID, req.Rating, req.Text)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, submitReviewResponse{
		ID:        review.ID.String(),
		BookID:    review.BookID.String(),
		Rating:    review.Rating,
		Status:    string(review.Status),
		CreatedAt: review.CreatedAt,
		Message:   "review submitted and awaiting moderation",
	})
}

// listMyReviews handles GET /api/v1/reviews/my.
func (s *Server) listMyReviews(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	rendered, err := s.reviews.ListOwn(r.Context(), user.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	responses := make([]reviewResponse, len(rendered))
	for i, rv := range rendered {
		responses[i] = userReviewToResponse(rv)
	}

	writeJSON(w, http.StatusOK, myReviewsResponse{Reviews: responses})
}

// listPendingReviews handles GET /api/v1/moderation/reviews.
// The queue is oldest-first so no submission waits forever.
func (s *Server) listPendingReviews(w http.ResponseWriter, r *http.Request) {
	page := 1
	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		if parsed, err := strconv.Atoi(pageStr); err == nil {
			page = parsed
		}
	}

	queue, err := s.reviews.ListPendingForModeration(r.Context(), page)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	responses := make([]reviewResponse, len(queue.Items))
	for i, rv := range queue.Items {
		responses[i] = userReviewToResponse(rv)
	}

	writeJSON(w, http.StatusOK, moderationQueueResponse{
		Reviews:    responses,
		Page:       queue.Page,
		PageSize:   queue.PageSize,
		Total:      queue.Total,
		TotalPages: queue.TotalPages,
	})
}

// moderateReview handles POST /api/v1/moderation/reviews/{reviewID}.
func (s *Server) moderateReview(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	reviewID, ok := parseUUID(w, chi.URLParam(r, "reviewID"), "review_id")
	if !ok {
		return
	}

	var req moderateReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	review, err := s.reviews.Moderate(r.Context(), reviewID, domain.ModerationAction(req.Action), user.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, moderationDecisionResponse{
		ID:     review.ID.String(),
		Status: string(review.Status),
	})
}
