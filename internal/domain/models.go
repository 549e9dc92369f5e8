// Package domain provides domain models and business rules for the Book Catalog Service.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ReviewStatus represents the lifecycle states of a reader review.
// These values must match the database enum review_status.
type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "pending"
	ReviewStatusApproved ReviewStatus = "approved"
	ReviewStatusRejected ReviewStatus = "rejected"
)

// IsTerminal returns true if the status represents a final moderation decision.
func (s ReviewStatus) IsTerminal() bool {
	switch s {
	case ReviewStatusApproved, ReviewStatusRejected:
		return true
	default:
		return false
	}
}

// IsValidReviewStatus reports whether s is a member of the closed status set.
func IsValidReviewStatus(s ReviewStatus) bool {
	switch s {
	case ReviewStatusPending, ReviewStatusApproved, ReviewStatusRejected:
		return true
	default:
		return false
	}
}

// ModerationAction is a moderator's verb on a pending review.
type ModerationAction string

const (
	ModerationActionApprove ModerationAction = "approve"
	ModerationActionReject  ModerationAction = "reject"
)

// StatusFor maps a moderation action to the status it produces.
// Returns an UnknownActionError for anything outside the closed verb set.
func (a ModerationAction) StatusFor() (ReviewStatus, error) {
	switch a {
	case ModerationActionApprove:
		return ReviewStatusApproved, nil
	case ModerationActionReject:
		return ReviewStatusRejected, nil
	default:
		return "", &UnknownActionError{Action: string(a)}
	}
}

// Role is a user's fixed access role.
// These values must match the seeded rows in the roles table.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// User is an authenticated catalog visitor. Authentication itself is
// performed by an external collaborator; the core consumes id and role.
type User struct {
	ID         uuid.UUID
	Username   string
	LastName   string
	FirstName  string
	MiddleName string
	Role       Role
}

// FullName joins the non-empty name parts in display order.
func (u *User) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{u.LastName, u.FirstName, u.MiddleName} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// Genre is immutable reference data associated many-to-many with books.
type Genre struct {
	ID   uuid.UUID
	Name string
}

// Cover is a book's optional cover image record. The file itself lives in
// the cover store; the row keeps the filename, mime type, and content hash.
type Cover struct {
	ID       uuid.UUID
	BookID   uuid.UUID
	Filename string
	MimeType string
	MD5Hash  string
}

// Book is a catalog entry.
type Book struct {
	ID               uuid.UUID
	Title            string
	ShortDescription string
	Year             int
	Publisher        string
	Author           string
	Pages            int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// BookDetail is a book joined with its genres and cover for display.
type BookDetail struct {
	Book
	Genres        []Genre
	CoverFilename string
}

// BookSummary is one row of a paginated search result: scalar book fields
// plus derived aggregates. AvgRating and ReviewCount are computed over all
// reviews regardless of status; this is a deliberate aggregation policy.
type BookSummary struct {
	ID            uuid.UUID
	Title         string
	Year          int
	Author        string
	Pages         int
	Genres        string // comma-joined genre names, sorted by name
	AvgRating     float64
	ReviewCount   int
	CoverFilename string // empty when the book has no cover
}

// Rating bounds for reviews, inclusive.
const (
	MinRating = 0
	MaxRating = 5
)

// Review is a reader's review of a book. At most one review exists per
// (book, user) pair; the reviews table enforces this with a unique constraint.
type Review struct {
	ID        uuid.UUID
	BookID    uuid.UUID
	UserID    uuid.UUID
	Rating    int
	Text      string // raw author-supplied markup, rendered at read time
	Status    ReviewStatus
	CreatedAt time.Time
}

// Validate checks the submission invariants: rating within bounds and
// non-empty text after trimming.
func (r *Review) Validate() error {
	if r.Rating < MinRating || r.Rating > MaxRating {
		return NewValidationError("rating", "rating must be between 0 and 5")
	}
	if strings.TrimSpace(r.Text) == "" {
		return NewValidationError("text", "review text must not be empty")
	}
	return nil
}

// ReviewWithAuthor is a review joined with its submitter's identity for display.
type ReviewWithAuthor struct {
	Review
	Username   string
	AuthorName string
}

// ReviewWithBook is a review joined with book identity, used for the
// "my reviews" listing and the moderation queue.
type ReviewWithBook struct {
	Review
	Username   string
	AuthorName string
	BookTitle  string
}
