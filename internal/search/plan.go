package search

import (
	"fmt"
	"strconv"
	"strings"
)

// Plan is an ordered set of independent predicate clauses combined by AND,
// plus the bound argument values in exactly matching order. Placeholders are
// numbered from $1; the storage adapter appends its own LIMIT/OFFSET
// parameters starting at NextArg.
type Plan struct {
	Clauses []string
	Args    []interface{}
}

// IsEmpty reports whether the plan carries no predicate (match everything).
func (p Plan) IsEmpty() bool {
	return len(p.Clauses) == 0
}

// WhereClause renders the plan as a SQL WHERE fragment with a leading space,
// or the empty string for an unconditional plan.
func (p Plan) WhereClause() string {
	if p.IsEmpty() {
		return ""
	}
	return " WHERE " + strings.Join(p.Clauses, " AND ")
}

// NextArg returns the next free positional placeholder index.
func (p Plan) NextArg() int {
	return len(p.Args) + 1
}

// BuildPlan translates criteria into a query plan over the books table
// (aliased b). Each filter contributes at most one clause; clause emission
// order and argument binding order always mirror each other.
func BuildPlan(c Criteria) Plan {
	var p Plan

	add := func(format string, arg interface{}) {
		p.Args = append(p.Args, arg)
		p.Clauses = append(p.Clauses, fmt.Sprintf(format, len(p.Args)))
	}

	if c.Title != "" {
		add("b.title ILIKE '%%' || $%d || '%%'", c.Title)
	}

	if c.Author != "" {
		add("b.author ILIKE '%%' || $%d || '%%'", c.Author)
	}

	if len(c.GenreIDs) > 0 {
		// Membership via subquery keeps the clause independent of the
		// outer query's join shape, so count and page queries cannot drift.
		add("b.id IN (SELECT bg.book_id FROM book_genres bg WHERE bg.genre_id = ANY($%d))", c.GenreIDs)
	}

	if len(c.Years) > 0 {
		add("b.year = ANY($%d)", c.Years)
	}

	if c.PagesMin != "" {
		if n, err := strconv.Atoi(c.PagesMin); err == nil {
			add("b.pages >= $%d", n)
		}
	}

	if c.PagesMax != "" {
		if n, err := strconv.Atoi(c.PagesMax); err == nil {
			add("b.pages <= $%d", n)
		}
	}

	return p
}
