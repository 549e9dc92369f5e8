package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readshelf/catalog-service/internal/domain"
	"github.com/readshelf/catalog-service/internal/search"
)

var summaryColumns = []string{
	"id", "title", "year", "author", "pages",
	"genres", "avg_rating", "review_count", "cover",
}

func TestPgBookRepository_Search(t *testing.T) {
	t.Run("runs count and page queries over the same predicates", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgBookRepository(mock)
		bookID := uuid.New()
		plan := search.BuildPlan(search.Criteria{Title: "dune"})

		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM books b WHERE`).
			WithArgs("dune").
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(23)))

		cover := "dune_1a2b.png"
		mock.ExpectQuery(`SELECT b.id, b.title, b.year, b.author, b.pages`).
			WithArgs("dune", 10, 0).
			WillReturnRows(pgxmock.NewRows(summaryColumns).
				AddRow(bookID, "Dune", 1965, "Frank Herbert", 412,
					"Science Fiction", 4.52, 17, &cover))

		books, total, err := repo.Search(context.Background(), plan, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(23), total)
		require.Len(t, books, 1)
		assert.Equal(t, "Dune", books[0].Title)
		assert.Equal(t, "Science Fiction", books[0].Genres)
		assert.InDelta(t, 4.52, books[0].AvgRating, 0.001)
		assert.Equal(t, 17, books[0].ReviewCount)
		assert.Equal(t, "dune_1a2b.png", books[0].CoverFilename)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty plan searches the whole catalog", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgBookRepository(mock)

		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM books b`).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))

		mock.ExpectQuery(`SELECT b.id, b.title, b.year, b.author, b.pages`).
			WithArgs(10, 0).
			WillReturnRows(pgxmock.NewRows(summaryColumns))

		books, total, err := repo.Search(context.Background(), search.Plan{}, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(0), total)
		assert.Empty(t, books)
	})

	t.Run("missing cover scans as empty filename", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgBookRepository(mock)

		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM books b`).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))

		mock.ExpectQuery(`SELECT b.id, b.title, b.year, b.author, b.pages`).
			WithArgs(10, 0).
			WillReturnRows(pgxmock.NewRows(summaryColumns).
				AddRow(uuid.New(), "Solaris", 1961, "Stanislaw Lem", 204,
					"", 0.0, 0, nil))

		books, _, err := repo.Search(context.Background(), search.Plan{}, 10, 0)
		require.NoError(t, err)
		require.Len(t, books, 1)
		assert.Equal(t, "", books[0].CoverFilename)
	})

	t.Run("rejects invalid limit and offset", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgBookRepository(mock)

		_, _, err = repo.Search(context.Background(), search.Plan{}, 0, 0)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))

		_, _, err = repo.Search(context.Background(), search.Plan{}, 10, -1)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})
}

func TestPgBookRepository_GetDetail(t *testing.T) {
	t.Run("returns book with genres", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgBookRepository(mock)
		bookID := uuid.New()
		genreID := uuid.New()
		now := time.Now().UTC()
		cover := "solaris_9f.jpg"

		mock.ExpectQuery(`SELECT b.id, b.title, b.short_description, b.year, b.publisher`).
			WithArgs(bookID).
			WillReturnRows(pgxmock.NewRows([]string{
				"id", "title", "short_description", "year", "publisher",
				"author", "pages", "created_at", "updated_at", "filename",
			}).AddRow(bookID, "Solaris", "an ocean that thinks", 1961, "MON",
				"Stanislaw Lem", 204, now, now, &cover))

		mock.ExpectQuery(`SELECT g.id, g.name`).
			WithArgs(bookID).
			WillReturnRows(pgxmock.NewRows([]string{"id", "name"}).
				AddRow(genreID, "Science Fiction"))

		detail, err := repo.GetDetail(context.Background(), bookID)
		require.NoError(t, err)
		assert.Equal(t, "Solaris", detail.Title)
		assert.Equal(t, "solaris_9f.jpg", detail.CoverFilename)
		require.Len(t, detail.Genres, 1)
		assert.Equal(t, "Science Fiction", detail.Genres[0].Name)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found for a missing book", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgBookRepository(mock)

		mock.ExpectQuery(`SELECT b.id, b.title, b.short_description, b.year, b.publisher`).
			WithArgs(pgxmock.AnyArg()).
			WillReturnError(pgx.ErrNoRows)

		_, err = repo.GetDetail(context.Background(), uuid.New())
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})
}

func TestPgBookRepository_Exists(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgBookRepository(mock)
	bookID := uuid.New()

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(bookID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.Exists(context.Background(), bookID)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgBookRepository_Create(t *testing.T) {
	t.Run("inserts book, genre links and cover in one transaction", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgBookRepository(mock)
		now := time.Now().UTC()
		book := &domain.Book{
			ID:        uuid.New(),
			Title:     "Dune",
			Year:      1965,
			Author:    "Frank Herbert",
			Pages:     412,
			CreatedAt: now,
			UpdatedAt: now,
		}
		genreID := uuid.New()
		cover := &domain.Cover{
			ID:       uuid.New(),
			BookID:   book.ID,
			Filename: "dune_ab12.png",
			MimeType: "image/png",
			MD5Hash:  "d41d8cd98f00b204e9800998ecf8427e",
		}

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO books`).
			WithArgs(book.ID, book.Title, book.ShortDescription, book.Year,
				book.Publisher, book.Author, book.Pages, book.CreatedAt, book.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(`INSERT INTO book_genres`).
			WithArgs(book.ID, genreID).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(`INSERT INTO covers`).
			WithArgs(cover.ID, cover.BookID, cover.Filename, cover.MimeType, cover.MD5Hash).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()

		require.NoError(t, repo.Create(context.Background(), book, []uuid.UUID{genreID}, cover))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects a book without an ID", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgBookRepository(mock)
		err = repo.Create(context.Background(), &domain.Book{}, nil, nil)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})
}

func TestPgBookRepository_Delete(t *testing.T) {
	t.Run("deletes and returns cover filenames", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgBookRepository(mock)
		bookID := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT filename FROM covers WHERE book_id = \$1`).
			WithArgs(bookID).
			WillReturnRows(pgxmock.NewRows([]string{"filename"}).AddRow("old_cover.png"))
		mock.ExpectExec(`DELETE FROM books WHERE id = \$1`).
			WithArgs(bookID).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
		mock.ExpectCommit()

		filenames, err := repo.Delete(context.Background(), bookID)
		require.NoError(t, err)
		assert.Equal(t, []string{"old_cover.png"}, filenames)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing book rolls back with not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgBookRepository(mock)
		bookID := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT filename FROM covers WHERE book_id = \$1`).
			WithArgs(bookID).
			WillReturnRows(pgxmock.NewRows([]string{"filename"}))
		mock.ExpectExec(`DELETE FROM books WHERE id = \$1`).
			WithArgs(bookID).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		mock.ExpectRollback()

		_, err = repo.Delete(context.Background(), bookID)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgBookRepository_ListYears(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgBookRepository(mock)

	mock.ExpectQuery(`SELECT DISTINCT year FROM books ORDER BY year DESC`).
		WillReturnRows(pgxmock.NewRows([]string{"year"}).AddRow(2007).AddRow(1965).AddRow(1961))

	years, err := repo.ListYears(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{2007, 1965, 1961}, years)
}

func TestPgBookRepository_ListGenres(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgBookRepository(mock)

	mock.ExpectQuery(`SELECT id, name FROM genres ORDER BY name`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name"}).
			AddRow(uuid.New(), "Fantasy").
			AddRow(uuid.New(), "Science Fiction"))

	genres, err := repo.ListGenres(context.Background())
	require.NoError(t, err)
	require.Len(t, genres, 2)
	assert.Equal(t, "Fantasy", genres[0].Name)
}
