package search

import (
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCriteria(t *testing.T) {
	t.Run("empty query yields zero criteria", func(t *testing.T) {
		c := ParseCriteria(url.Values{})
		assert.True(t, c.IsZero())
	})

	t.Run("trims whitespace from text filters", func(t *testing.T) {
		c := ParseCriteria(url.Values{
			"title":     {"  dune "},
			"author":    {" herbert"},
			"pages_min": {" 100 "},
		})
		assert.Equal(t, "dune", c.Title)
		assert.Equal(t, "herbert", c.Author)
		assert.Equal(t, "100", c.PagesMin)
	})

	t.Run("drops malformed genre and year values silently", func(t *testing.T) {
		genreID := uuid.New()
		c := ParseCriteria(url.Values{
			"genres": {genreID.String(), "not-a-uuid", ""},
			"years":  {"1999", "abc", "2005"},
		})
		require.Len(t, c.GenreIDs, 1)
		assert.Equal(t, genreID, c.GenreIDs[0])
		assert.Equal(t, []int32{1999, 2005}, c.Years)
	})
}

func TestBuildPlan(t *testing.T) {
	t.Run("empty criteria builds empty plan", func(t *testing.T) {
		p := BuildPlan(Criteria{})
		assert.True(t, p.IsEmpty())
		assert.Equal(t, "", p.WhereClause())
		assert.Equal(t, 1, p.NextArg())
	})

	t.Run("clause order mirrors argument order", func(t *testing.T) {
		genreID := uuid.New()
		p := BuildPlan(Criteria{
			Title:    "dune",
			Author:   "herbert",
			GenreIDs: []uuid.UUID{genreID},
			Years:    []int32{1965},
			PagesMin: "100",
			PagesMax: "900",
		})

		require.Len(t, p.Clauses, 6)
		require.Len(t, p.Args, 6)
		assert.Equal(t, "b.title ILIKE '%' || $1 || '%'", p.Clauses[0])
		assert.Equal(t, "b.author ILIKE '%' || $2 || '%'", p.Clauses[1])
		assert.Equal(t, "b.id IN (SELECT bg.book_id FROM book_genres bg WHERE bg.genre_id = ANY($3))", p.Clauses[2])
		assert.Equal(t, "b.year = ANY($4)", p.Clauses[3])
		assert.Equal(t, "b.pages >= $5", p.Clauses[4])
		assert.Equal(t, "b.pages <= $6", p.Clauses[5])
		assert.Equal(t, "dune", p.Args[0])
		assert.Equal(t, 100, p.Args[4])
		assert.Equal(t, 900, p.Args[5])
		assert.Equal(t, 7, p.NextArg())
	})

	t.Run("malformed page bounds are dropped without shifting placeholders", func(t *testing.T) {
		p := BuildPlan(Criteria{
			Title:    "dune",
			PagesMin: "abc",
			PagesMax: "300",
		})

		require.Len(t, p.Clauses, 2)
		assert.Equal(t, "b.title ILIKE '%' || $1 || '%'", p.Clauses[0])
		assert.Equal(t, "b.pages <= $2", p.Clauses[1])
		assert.Equal(t, []interface{}{"dune", 300}, p.Args)
	})

	t.Run("single filter renders a WHERE fragment", func(t *testing.T) {
		p := BuildPlan(Criteria{Years: []int32{2001, 2002}})
		assert.Equal(t, " WHERE b.year = ANY($1)", p.WhereClause())
	})
}
