// Package repository provides data access interfaces and PostgreSQL
// implementations for the Book Catalog Service.
//
// Repositories follow the repository pattern to abstract persistence from
// the catalog and review services. All implementations are safe for
// concurrent use; the underlying pgxpool handles connection pooling.
//
// All methods return domain-specific errors from the domain package:
//
//   - domain.ErrNotFound: entity does not exist
//   - domain.ErrDuplicateReview: reviews unique constraint violation
//   - domain.ErrInvalidInput: invalid parameters provided
//
// Use the DBTX interface to support both pool and transaction contexts;
// pass a transaction from database.DB.WithTransaction for atomic
// multi-statement writes.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/readshelf/catalog-service/internal/database"
)

// DBTX is the database interface supporting both pool and transaction contexts.
type DBTX = database.DBTX

// txBeginner is an interface for types that can begin a transaction
// (e.g. *pgxpool.Pool). Repositories use it to wrap multi-statement writes
// in a transaction when the underlying DBTX is a pool rather than an
// existing transaction.
type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// The production pool wrapper must be able to begin transactions, or the
// book repository's multi-statement writes would silently run one statement
// at a time.
var _ txBeginner = (*database.DB)(nil)

// PostgreSQL error codes used for constraint violation detection.
const (
	pgUniqueViolation     = "23505" // unique_violation
	pgForeignKeyViolation = "23503" // foreign_key_violation
)

// isPgUniqueViolation checks if the error is a PostgreSQL unique constraint violation.
func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

// isPgForeignKeyViolation checks if the error is a PostgreSQL foreign key violation.
func isPgForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgForeignKeyViolation
	}
	return false
}
