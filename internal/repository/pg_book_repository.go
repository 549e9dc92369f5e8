package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/readshelf/catalog-service/internal/domain"
	"github.com/readshelf/catalog-service/internal/search"
)

// Compile-time interface verification.
var _ BookRepository = (*PgBookRepository)(nil)

// PgBookRepository is a PostgreSQL implementation of BookRepository.
type PgBookRepository struct {
	db DBTX
}

// NewPgBookRepository creates a new PostgreSQL book repository.
func NewPgBookRepository(db DBTX) *PgBookRepository {
	return &PgBookRepository{db: db}
}

// searchSelect is the page query body shared by Search. The aggregates are
// computed in subqueries so the outer row set stays one-row-per-book and the
// plan's predicates apply identically to the count query.
const searchSelect = `
	SELECT b.id, b.title, b.year, b.author, b.pages,
		COALESCE(gn.names, '') AS genres,
		COALESCE(ar.avg_rating, 0)::float8 AS avg_rating,
		COALESCE(rc.review_count, 0) AS review_count,
		c.filename AS cover
	FROM books b
	LEFT JOIN (
		SELECT bg.book_id, string_agg(g.name, ', ' ORDER BY g.name) AS names
		FROM book_genres bg
		JOIN genres g ON g.id = bg.genre_id
		GROUP BY bg.book_id
	) gn ON gn.book_id = b.id
	LEFT JOIN (
		SELECT book_id, ROUND(AVG(rating)::numeric, 2) AS avg_rating
		FROM reviews
		GROUP BY book_id
	) ar ON ar.book_id = b.id
	LEFT JOIN (
		SELECT book_id, COUNT(*) AS review_count
		FROM reviews
		GROUP BY book_id
	) rc ON rc.book_id = b.id
	LEFT JOIN covers c ON c.book_id = b.id`

// Search executes the count and page queries for a plan.
func (r *PgBookRepository) Search(ctx context.Context, plan search.Plan, limit, offset int) ([]domain.BookSummary, int64, error) {
	if limit <= 0 {
		return nil, 0, domain.NewValidationError("limit", "limit must be positive")
	}
	if offset < 0 {
		return nil, 0, domain.NewValidationError("offset", "offset must not be negative")
	}

	countQuery := "SELECT COUNT(*) FROM books b" + plan.WhereClause()

	var total int64
	if err := r.db.QueryRow(ctx, countQuery, plan.Args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count books: %w", err)
	}

	pageQuery := fmt.Sprintf("%s%s ORDER BY b.year DESC, b.id DESC LIMIT $%d OFFSET $%d",
		searchSelect, plan.WhereClause(), plan.NextArg(), plan.NextArg()+1)

	args := append(append([]interface{}{}, plan.Args...), limit, offset)

	rows, err := r.db.Query(ctx, pageQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search books: %w", err)
	}
	defer rows.Close()

	summaries := make([]domain.BookSummary, 0, limit)
	for rows.Next() {
		var (
			s     domain.BookSummary
			cover *string
		)
		if err := rows.Scan(&s.ID, &s.Title, &s.Year, &s.Author, &s.Pages,
			&s.Genres, &s.AvgRating, &s.ReviewCount, &cover); err != nil {
			return nil, 0, fmt.Errorf("failed to scan book summary: %w", err)
		}
		if cover != nil {
			s.CoverFilename = *cover
		}
		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating books: %w", err)
	}

	return summaries, total, nil
}

// GetDetail retrieves a book with its genres and cover filename.
func (r *PgBookRepository) GetDetail(ctx context.Context, id uuid.UUID) (*domain.BookDetail, error) {
	query := `
		SELECT b.id, b.title, b.short_description, b.year, b.publisher,
			b.author, b.pages, b.created_at, b.updated_at, c.filename
		FROM books b
		LEFT JOIN covers c ON c.book_id = b.id
		WHERE b.id = $1`

	var (
		detail domain.BookDetail
		cover  *string
	)
	err := r.db.QueryRow(ctx, query, id).Scan(
		&detail.ID, &detail.Title, &detail.ShortDescription, &detail.Year,
		&detail.Publisher, &detail.Author, &detail.Pages,
		&detail.CreatedAt, &detail.UpdatedAt, &cover,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("book", id.String())
		}
		return nil, fmt.Errorf("failed to get book: %w", err)
	}
	if cover != nil {
		detail.CoverFilename = *cover
	}

	genreQuery := `
		SELECT g.id, g.name
		FROM genres g
		JOIN book_genres bg ON bg.genre_id = g.id
		WHERE bg.book_id = $1
		ORDER BY g.name`

	rows, err := r.db.Query(ctx, genreQuery, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query book genres: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var g domain.Genre
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, fmt.Errorf("failed to scan genre: %w", err)
		}
		detail.Genres = append(detail.Genres, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating genres: %w", err)
	}

	return &detail, nil
}

// Exists reports whether a book row exists.
func (r *PgBookRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM books WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check book existence: %w", err)
	}
	return exists, nil
}

// Create inserts a book with its genre links and optional cover row.
func (r *PgBookRepository) Create(ctx context.Context, book *domain.Book, genreIDs []uuid.UUID, cover *domain.Cover) error {
	if book == nil {
		return domain.NewValidationError("book", "book cannot be nil")
	}
	if book.ID == uuid.Nil {
		return domain.NewValidationError("id", "book ID is required")
	}

	return r.inTx(ctx, func(txRepo *PgBookRepository) error {
		query := `
			INSERT INTO books (id, title, short_description, year, publisher, author, pages, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

		_, err := txRepo.db.Exec(ctx, query,
			book.ID, book.Title, book.ShortDescription, book.Year,
			book.Publisher, book.Author, book.Pages, book.CreatedAt, book.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create book: %w", err)
		}

		if err := txRepo.replaceGenres(ctx, book.ID, genreIDs); err != nil {
			return err
		}

		if cover != nil {
			if err := txRepo.insertCover(ctx, cover); err != nil {
				return err
			}
		}

		return nil
	})
}

// Update replaces a book's scalar fields, genre set and optionally its cover.
func (r *PgBookRepository) Update(ctx context.Context, book *domain.Book, genreIDs []uuid.UUID, newCover *domain.Cover) ([]string, error) {
	if book == nil {
		return nil, domain.NewValidationError("book", "book cannot be nil")
	}

	var oldFilenames []string
	err := r.inTx(ctx, func(txRepo *PgBookRepository) error {
		query := `
			UPDATE books
			SET title = $1, short_description = $2, year = $3,
				publisher = $4, author = $5, pages = $6, updated_at = $7
			WHERE id = $8`

		tag, err := txRepo.db.Exec(ctx, query,
			book.Title, book.ShortDescription, book.Year,
			book.Publisher, book.Author, book.Pages, time.Now().UTC(),
			book.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update book: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.NewNotFoundError("book", book.ID.String())
		}

		if _, err := txRepo.db.Exec(ctx, "DELETE FROM book_genres WHERE book_id = $1", book.ID); err != nil {
			return fmt.Errorf("failed to clear book genres: %w", err)
		}
		if err := txRepo.replaceGenres(ctx, book.ID, genreIDs); err != nil {
			return err
		}

		if newCover != nil {
			filenames, err := txRepo.coverFilenames(ctx, book.ID)
			if err != nil {
				return err
			}
			oldFilenames = filenames

			if _, err := txRepo.db.Exec(ctx, "DELETE FROM covers WHERE book_id = $1", book.ID); err != nil {
				return fmt.Errorf("failed to delete old cover: %w", err)
			}
			if err := txRepo.insertCover(ctx, newCover); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return oldFilenames, nil
}

// Delete removes a book row and returns its cover filenames.
func (r *PgBookRepository) Delete(ctx context.Context, id uuid.UUID) ([]string, error) {
	var filenames []string
	err := r.inTx(ctx, func(txRepo *PgBookRepository) error {
		names, err := txRepo.coverFilenames(ctx, id)
		if err != nil {
			return err
		}
		filenames = names

		tag, err := txRepo.db.Exec(ctx, "DELETE FROM books WHERE id = $1", id)
		if err != nil {
			return fmt.Errorf("failed to delete book: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.NewNotFoundError("book", id.String())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return filenames, nil
}

// ListYears returns the distinct publication years, newest first.
func (r *PgBookRepository) ListYears(ctx context.Context) ([]int, error) {
	rows, err := r.db.Query(ctx, "SELECT DISTINCT year FROM books ORDER BY year DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list years: %w", err)
	}
	defer rows.Close()

	var years []int
	for rows.Next() {
		var y int
		if err := rows.Scan(&y); err != nil {
			return nil, fmt.Errorf("failed to scan year: %w", err)
		}
		years = append(years, y)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating years: %w", err)
	}

	return years, nil
}

// ListGenres returns all genres ordered by name.
func (r *PgBookRepository) ListGenres(ctx context.Context) ([]domain.Genre, error) {
	rows, err := r.db.Query(ctx, "SELECT id, name FROM genres ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list genres: %w", err)
	}
	defer rows.Close()

	var genres []domain.Genre
	for rows.Next() {
		var g domain.Genre
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, fmt.Errorf("failed to scan genre: %w", err)
		}
		genres = append(genres, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating genres: %w", err)
	}

	return genres, nil
}

// inTx runs fn against a transactional repository. When the underlying DBTX
// supports Begin (i.e. it is a pool), a transaction is opened and committed
// around fn; when it is already a transaction, fn runs directly in it.
func (r *PgBookRepository) inTx(ctx context.Context, fn func(*PgBookRepository) error) error {
	if beginner, ok := r.db.(txBeginner); ok {
		tx, err := beginner.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		if err := fn(&PgBookRepository{db: tx}); err != nil {
			return err
		}
		return tx.Commit(ctx)
	}

	return fn(r)
}

// replaceGenres inserts the genre links for a book.
func (r *PgBookRepository) replaceGenres(ctx context.Context, bookID uuid.UUID, genreIDs []uuid.UUID) error {
	for _, genreID := range genreIDs {
		_, err := r.db.Exec(ctx,
			"INSERT INTO book_genres (book_id, genre_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
			bookID, genreID,
		)
		if err != nil {
			if isPgForeignKeyViolation(err) {
				return domain.NewNotFoundError("genre", genreID.String())
			}
			return fmt.Errorf("failed to link genre: %w", err)
		}
	}
	return nil
}

// insertCover inserts a cover row.
func (r *PgBookRepository) insertCover(ctx context.Context, cover *domain.Cover) error {
	_, err := r.db.Exec(ctx,
		"INSERT INTO covers (id, book_id, filename, mime_type, md5_hash) VALUES ($1, $2, $3, $4, $5)",
		cover.ID, cover.BookID, cover.Filename, cover.MimeType, cover.MD5Hash,
	)
	if err != nil {
		return fmt.Errorf("failed to insert cover: %w", err)
	}
	return nil
}

// coverFilenames returns the cover filenames on record for a book.
func (r *PgBookRepository) coverFilenames(ctx context.Context, bookID uuid.UUID) ([]string, error) {
	rows, err := r.db.Query(ctx, "SELECT filename FROM covers WHERE book_id = $1", bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cover filenames: %w", err)
	}
	defer rows.Close()

	var filenames []string
	for rows.Next() {
		var fn string
		if err := rows.Scan(&fn); err != nil {
			return nil, fmt.Errorf("failed to scan cover filename: %w", err)
		}
		filenames = append(filenames, fn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cover filenames: %w", err)
	}

	return filenames, nil
}
