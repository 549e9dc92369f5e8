//go:build integration

package integration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readshelf/catalog-service/internal/domain"
	"github.com/readshelf/catalog-service/internal/repository"
	"github.com/readshelf/catalog-service/internal/search"
)

func seedUser(t *testing.T, username string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := testPool.Exec(context.Background(), `
		INSERT INTO users (id, username, last_name, first_name, role_id)
		VALUES ($1, $2, 'Reader', 'Test', (SELECT id FROM roles WHERE name = 'user'))`,
		id, username)
	require.NoError(t, err)
	return id
}

func seedGenre(t *testing.T, name string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := testPool.Exec(context.Background(),
		"INSERT INTO genres (id, name) VALUES ($1, $2)", id, name)
	require.NoError(t, err)
	return id
}

func newBook(title string, year int) *domain.Book {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Book{
		ID:               uuid.New(),
		Title:            title,
		ShortDescription: "short description",
		Year:             year,
		Publisher:        "Test House",
		Author:           "Test Author",
		Pages:            240,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func newCover(bookID uuid.UUID, filename string) *domain.Cover {
	return &domain.Cover{
		ID:       uuid.New(),
		BookID:   bookID,
		Filename: filename,
		MimeType: "image/png",
		MD5Hash:  "d41d8cd98f00b204e9800998ecf8427e",
	}
}

func TestPgBookRepository_SearchIntegration(t *testing.T) {
	cleanTables(t, "books", "genres", "users")
	repo := repository.NewPgBookRepository(testPool)
	ctx := context.Background()

	fantasy := seedGenre(t, "fantasy")
	satire := seedGenre(t, "satire")

	rated := newBook("The Rated One", 2001)
	middle := newBook("The Middle One", 1999)
	old := newBook("The Old One", 1980)
	require.NoError(t, repo.Create(ctx, rated, []uuid.UUID{fantasy}, nil))
	require.NoError(t, repo.Create(ctx, middle, []uuid.UUID{fantasy, satire}, nil))
	require.NoError(t, repo.Create(ctx, old, []uuid.UUID{satire}, nil))

	reviewRepo := repository.NewPgReviewRepository(testPool)
	approver := seedUser(t, "approver")
	pender := seedUser(t, "pender")
	approved := &domain.Review{
		ID: uuid.New(), BookID: rated.ID, UserID: approver,
		Rating: 4, Text: "good", Status: domain.ReviewStatusApproved,
		CreatedAt: time.Now().UTC(),
	}
	pending := &domain.Review{
		ID: uuid.New(), BookID: rated.ID, UserID: pender,
		Rating: 2, Text: "meh", Status: domain.ReviewStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, reviewRepo.Create(ctx, approved))
	require.NoError(t, reviewRepo.Create(ctx, pending))

	t.Run("count and page queries agree under a genre filter", func(t *testing.T) {
		plan := search.BuildPlan(search.Criteria{GenreIDs: []uuid.UUID{fantasy}})

		items, total, err := repo.Search(ctx, plan, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, items, 2)
		// Newest year first.
		assert.Equal(t, "The Rated One", items[0].Title)
		assert.Equal(t, "The Middle One", items[1].Title)
	})

	t.Run("count and page queries agree across pages", func(t *testing.T) {
		plan := search.BuildPlan(search.Criteria{GenreIDs: []uuid.UUID{fantasy}})

		first, total, err := repo.Search(ctx, plan, 1, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, first, 1)

		second, total, err := repo.Search(ctx, plan, 1, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, second, 1)
		assert.NotEqual(t, first[0].ID, second[0].ID)
	})

	t.Run("aggregates include reviews of every status", func(t *testing.T) {
		items, _, err := repo.Search(ctx, search.BuildPlan(search.Criteria{}), 10, 0)
		require.NoError(t, err)

		var got *domain.BookSummary
		for i := range items {
			if items[i].ID == rated.ID {
				got = &items[i]
			}
		}
		require.NotNil(t, got)
		// (4 + 2) / 2, the pending review counts too.
		assert.Equal(t, 3.0, got.AvgRating)
		assert.Equal(t, 2, got.ReviewCount)
		assert.Equal(t, "fantasy", got.Genres)
	})
}

func TestPgBookRepository_WriteAtomicity(t *testing.T) {
	cleanTables(t, "books", "genres")
	repo := repository.NewPgBookRepository(testPool)
	ctx := context.Background()

	t.Run("create rolls back the book row when a genre link fails", func(t *testing.T) {
		book := newBook("Half Written", 2010)

		err := repo.Create(ctx, book, []uuid.UUID{uuid.New()}, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		assert.Equal(t, 0, countRows(t, "SELECT COUNT(*) FROM books WHERE id = $1", book.ID),
			"a failed create must not leave a book row behind")
	})

	t.Run("update keeps the old cover when the new one cannot be written", func(t *testing.T) {
		genre := seedGenre(t, "history")
		book := newBook("Stable", 2005)
		require.NoError(t, repo.Create(ctx, book, []uuid.UUID{genre}, newCover(book.ID, "stable.png")))

		// A second book already owns this cover row ID, forcing the insert
		// inside the update transaction to fail.
		other := newBook("Other", 2006)
		cover := newCover(other.ID, "other.png")
		require.NoError(t, repo.Create(ctx, other, nil, cover))

		clash := newCover(book.ID, "clash.png")
		clash.ID = cover.ID
		_, err := repo.Update(ctx, book, []uuid.UUID{genre}, clash)
		require.Error(t, err)

		var filename string
		require.NoError(t, testPool.QueryRow(ctx,
			"SELECT filename FROM covers WHERE book_id = $1", book.ID).Scan(&filename))
		assert.Equal(t, "stable.png", filename, "a failed update must keep the previous cover row")
	})
}

func TestPgBookRepository_SingleCoverPerBook(t *testing.T) {
	cleanTables(t, "books")
	repo := repository.NewPgBookRepository(testPool)
	ctx := context.Background()

	book := newBook("Covered", 2015)
	require.NoError(t, repo.Create(ctx, book, nil, newCover(book.ID, "first.png")))

	second := newCover(book.ID, "second.png")
	_, err := testPool.Exec(ctx,
		"INSERT INTO covers (id, book_id, filename, mime_type, md5_hash) VALUES ($1, $2, $3, $4, $5)",
		second.ID, second.BookID, second.Filename, second.MimeType, second.MD5Hash)
	require.Error(t, err, "a book must own at most one cover row")

	var pgErr *pgconn.PgError
	require.True(t, errors.As(err, &pgErr))
	assert.Equal(t, "23505", pgErr.Code)
	assert.Equal(t, "uq_covers_book", pgErr.ConstraintName)
}

func TestPgBookRepository_DeleteCascades(t *testing.T) {
	cleanTables(t, "books", "genres", "users")
	repo := repository.NewPgBookRepository(testPool)
	reviewRepo := repository.NewPgReviewRepository(testPool)
	ctx := context.Background()

	genre := seedGenre(t, "poetry")
	reader := seedUser(t, "cascade-reader")
	book := newBook("Doomed", 1995)
	require.NoError(t, repo.Create(ctx, book, []uuid.UUID{genre}, newCover(book.ID, "doomed.png")))
	require.NoError(t, reviewRepo.Create(ctx, &domain.Review{
		ID: uuid.New(), BookID: book.ID, UserID: reader,
		Rating: 5, Text: "will be gone", Status: domain.ReviewStatusApproved,
		CreatedAt: time.Now().UTC(),
	}))

	filenames, err := repo.Delete(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"doomed.png"}, filenames)

	assert.Equal(t, 0, countRows(t, "SELECT COUNT(*) FROM book_genres WHERE book_id = $1", book.ID))
	assert.Equal(t, 0, countRows(t, "SELECT COUNT(*) FROM covers WHERE book_id = $1", book.ID))
	assert.Equal(t, 0, countRows(t, "SELECT COUNT(*) FROM reviews WHERE book_id = $1", book.ID))
	assert.Equal(t, 1, countRows(t, "SELECT COUNT(*) FROM genres WHERE id = $1", genre),
		"deleting a book must not delete the genre itself")
}

func TestPgReviewRepository_Integration(t *testing.T) {
	cleanTables(t, "books", "users")
	bookRepo := repository.NewPgBookRepository(testPool)
	repo := repository.NewPgReviewRepository(testPool)
	ctx := context.Background()

	book := newBook("Contested", 2020)
	require.NoError(t, bookRepo.Create(ctx, book, nil, nil))

	t.Run("concurrent submissions by one user yield a single review", func(t *testing.T) {
		racer := seedUser(t, "racer")

		var (
			wg   sync.WaitGroup
			errs [2]error
		)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = repo.Create(ctx, &domain.Review{
					ID: uuid.New(), BookID: book.ID, UserID: racer,
					Rating: i, Text: "raced", Status: domain.ReviewStatusPending,
					CreatedAt: time.Now().UTC(),
				})
			}(i)
		}
		wg.Wait()

		var duplicates int
		for _, err := range errs {
			if err != nil {
				assert.ErrorIs(t, err, domain.ErrDuplicateReview)
				duplicates++
			}
		}
		assert.Equal(t, 1, duplicates, "exactly one of the two submissions must lose the race")
		assert.Equal(t, 1, countRows(t,
			"SELECT COUNT(*) FROM reviews WHERE book_id = $1 AND user_id = $2", book.ID, racer))
	})

	t.Run("moderation queue is oldest first", func(t *testing.T) {
		early := seedUser(t, "early-bird")
		late := seedUser(t, "late-comer")
		now := time.Now().UTC().Truncate(time.Microsecond)

		first := &domain.Review{
			ID: uuid.New(), BookID: book.ID, UserID: early,
			Rating: 3, Text: "waited longest", Status: domain.ReviewStatusPending,
			CreatedAt: now.Add(-time.Hour),
		}
		second := &domain.Review{
			ID: uuid.New(), BookID: book.ID, UserID: late,
			Rating: 3, Text: "just arrived", Status: domain.ReviewStatusPending,
			CreatedAt: now,
		}
		// Insert newest first to rule out insertion-order luck.
		require.NoError(t, repo.Create(ctx, second))
		require.NoError(t, repo.Create(ctx, first))

		rows, total, err := repo.ListPending(ctx, 10, 0)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, int(total), 2)
		require.NotEmpty(t, rows)
		assert.Equal(t, first.ID, rows[0].ID)
	})
}
