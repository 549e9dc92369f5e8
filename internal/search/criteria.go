// Package search translates optional catalog filter criteria into a
// structured, parameterized query plan. Building a plan is pure and
// side-effect free; executing it belongs to the repository layer.
package search

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Criteria is the set of optional search filters. Zero values mean
// "no filter"; an empty Criteria matches the whole catalog.
type Criteria struct {
	// Title filters by unanchored, case-insensitive substring match.
	Title string

	// Author filters by unanchored, case-insensitive substring match.
	Author string

	// GenreIDs filters to books carrying at least one of these genres.
	GenreIDs []uuid.UUID

	// Years filters to books published in any of these years.
	Years []int32

	// PagesMin and PagesMax are kept as raw strings: a malformed value is
	// silently dropped at plan-build time so a mistyped filter degrades
	// gracefully instead of failing the whole search.
	PagesMin string
	PagesMax string
}

// IsZero reports whether no filter is set.
func (c Criteria) IsZero() bool {
	return c.Title == "" && c.Author == "" &&
		len(c.GenreIDs) == 0 && len(c.Years) == 0 &&
		c.PagesMin == "" && c.PagesMax == ""
}

// ParseCriteria extracts search filters from request query parameters.
// Malformed genre and year values are dropped rather than rejected,
// matching the leniency policy for page bounds.
func ParseCriteria(values url.Values) Criteria {
	c := Criteria{
		Title:    strings.TrimSpace(values.Get("title")),
		Author:   strings.TrimSpace(values.Get("author")),
		PagesMin: strings.TrimSpace(values.Get("pages_min")),
		PagesMax: strings.TrimSpace(values.Get("pages_max")),
	}

	for _, raw := range values["genres"] {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			continue
		}
		c.GenreIDs = append(c.GenreIDs, id)
	}

	for _, raw := range values["years"] {
		year, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			continue
		}
		c.Years = append(c.Years, int32(year))
	}

	return c
}
