package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrNotFound indicates that a requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates that an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates that the input data is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates that the request lacks valid authentication.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates that the request is not allowed for the authenticated user.
	ErrForbidden = errors.New("forbidden")

	// ErrDuplicateReview indicates a second review for the same (book, user) pair.
	// The storage layer is the final arbiter: the reviews unique constraint
	// surfaces through this error even when two submissions race past the
	// engine's pre-check.
	ErrDuplicateReview = errors.New("duplicate review")

	// ErrUnknownAction indicates an unrecognized moderation verb.
	ErrUnknownAction = errors.New("unknown action")
)

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NotFoundError provides details about a not found entity.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// DuplicateReviewError reports which (book, user) pair already has a review.
type DuplicateReviewError struct {
	BookID string
	UserID string
}

// Error implements the error interface.
func (e *DuplicateReviewError) Error() string {
	return fmt.Sprintf("review already exists for book %s by user %s", e.BookID, e.UserID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *DuplicateReviewError) Unwrap() error {
	return ErrDuplicateReview
}

// UnknownActionError reports an unrecognized moderation verb.
type UnknownActionError struct {
	Action string
}

// Error implements the error interface.
func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("unknown moderation action: %q", e.Action)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *UnknownActionError) Unwrap() error {
	return ErrUnknownAction
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{
		Entity: entity,
		ID:     id,
	}
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewDuplicateReviewError creates a new DuplicateReviewError.
func NewDuplicateReviewError(bookID, userID string) *DuplicateReviewError {
	return &DuplicateReviewError{
		BookID: bookID,
		UserID: userID,
	}
}
