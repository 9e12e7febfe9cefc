package store

import (
	"strings"

	"github.com/uptrace/bun"
)

// Filter is a structured boolean predicate over a collection. Filters compose
// with And/Or and compile to a single bun where expression, which lets callers
// splice externally supplied constraints (e.g. policy-scoped clauses) into a
// read without string surgery.
type Filter interface {
	Expr() (string, []any)
}

type eq struct {
	field string
	value any
}

// Eq matches records whose column equals value.
func Eq(field string, value any) Filter {
	return eq{field: field, value: value}
}

func (e eq) Expr() (string, []any) {
	return "? = ?", []any{bun.Ident(e.field), e.value}
}

type group struct {
	sep     string
	filters []Filter
}

// And combines filters conjunctively. Nil members are skipped.
func And(filters ...Filter) Filter {
	return group{sep: " AND ", filters: filters}
}

// Or combines filters disjunctively. Nil members are skipped.
func Or(filters ...Filter) Filter {
	return group{sep: " OR ", filters: filters}
}

func (g group) Expr() (string, []any) {
	parts := make([]string, 0, len(g.filters))
	args := make([]any, 0, len(g.filters)*2)

	for _, f := range g.filters {
		if f == nil {
			continue
		}
		expr, fargs := f.Expr()
		if expr == "" {
			continue
		}
		parts = append(parts, "("+expr+")")
		args = append(args, fargs...)
	}

	if len(parts) == 0 {
		return "", nil
	}

	return strings.Join(parts, g.sep), args
}

// Apply attaches the filter to a select query; nil or empty filters leave the
// query untouched.
func Apply(q *bun.SelectQuery, f Filter) *bun.SelectQuery {
	if f == nil {
		return q
	}
	expr, args := f.Expr()
	if expr == "" {
		return q
	}
	return q.Where(expr, args...)
}
