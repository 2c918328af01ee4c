// Package query defines the canonical, immutable representation of an
// analytical query: select list, conjunctive filters, grouping keys, and
// pass-through ordering/limit. Construction happens through Parse; a parsed
// Query carries no behavior and can be matched and executed any number of
// times.
package query

import (
	"errors"
	"strings"
)

// ErrMalformed marks structural validation failures in Parse.
// Callers should map it to a client error (HTTP 400), never retry it.
var ErrMalformed = errors.New("malformed query")

// Func is an aggregate function name. The set is closed: the matcher and the
// executor switch exhaustively over these values.
type Func string

const (
	FuncSum   Func = "sum"
	FuncCount Func = "count"
	FuncAvg   Func = "avg"
	FuncMin   Func = "min"
	FuncMax   Func = "max"
)

// KnownFunc reports whether f is a supported aggregate function.
func KnownFunc(f Func) bool {
	switch f {
	case FuncSum, FuncCount, FuncAvg, FuncMin, FuncMax:
		return true
	}
	return false
}

// Op is a filter operator. Conjunction only; no OR, no negated groups.
type Op string

const (
	OpEq      Op = "eq"
	OpNe      Op = "ne"
	OpLt      Op = "lt"
	OpLte     Op = "lte"
	OpGt      Op = "gt"
	OpGte     Op = "gte"
	OpBetween Op = "between" // inclusive on both ends; Value is a 2-element slice
)

// KnownOp reports whether op is a supported filter operator.
func KnownOp(op Op) bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLte, OpGt, OpGte, OpBetween:
		return true
	}
	return false
}

// Aggregate is one aggregate expression in a select list.
// Column is "*" only for COUNT(*).
type Aggregate struct {
	Func   Func
	Column string
}

// Alias is the canonical output column name for an aggregate,
// e.g. "sum(bid_price)" or "count(*)". Both execution paths emit this
// alias so summary-backed and full-scan results are column-identical.
func (a Aggregate) Alias() string {
	return string(a.Func) + "(" + a.Column + ")"
}

// SelectItem is either a bare grouping column (Aggregate == nil) or an
// aggregate expression.
type SelectItem struct {
	Column    string
	Aggregate *Aggregate
}

// IsAggregate reports whether the item is an aggregate expression.
func (s SelectItem) IsAggregate() bool { return s.Aggregate != nil }

// OutputName is the column name this item produces in result rows.
func (s SelectItem) OutputName() string {
	if s.Aggregate != nil {
		return s.Aggregate.Alias()
	}
	return s.Column
}

// Filter is one conjunct of the WHERE clause.
// For OpBetween, Value is a []any of exactly two elements (low, high).
type Filter struct {
	Column string
	Op     Op
	Value  any
}

// OrderTerm orders the result by a grouping column or an aggregate alias.
type OrderTerm struct {
	Column     string
	Descending bool
}

// Query is the canonical form of an analytical query. Immutable after Parse.
type Query struct {
	Select  []SelectItem
	Where   []Filter
	GroupBy []string
	OrderBy []OrderTerm // pass-through: never matched against summaries
	Limit   int         // 0 means no limit
}

// Aggregates returns the aggregate select items in select-list order.
func (q Query) Aggregates() []Aggregate {
	var out []Aggregate
	for _, s := range q.Select {
		if s.Aggregate != nil {
			out = append(out, *s.Aggregate)
		}
	}
	return out
}

// OutputColumns returns the result column names in select-list order.
func (q Query) OutputColumns() []string {
	cols := make([]string, 0, len(q.Select))
	for _, s := range q.Select {
		cols = append(cols, s.OutputName())
	}
	return cols
}

// HasGroupColumn reports whether col is one of the grouping keys.
func (q Query) HasGroupColumn(col string) bool {
	for _, g := range q.GroupBy {
		if g == col {
			return true
		}
	}
	return false
}

// ResolveOrderColumn maps an ORDER BY reference to a result column name.
// Accepts a grouping column verbatim or an aggregate spelled in any case,
// e.g. "SUM(bid_price)" resolves to "sum(bid_price)".
func (q Query) ResolveOrderColumn(ref string) (string, bool) {
	for _, s := range q.Select {
		if s.Aggregate == nil && s.Column == ref {
			return s.Column, true
		}
	}
	lowered := strings.ToLower(ref)
	for _, s := range q.Select {
		if s.Aggregate != nil && s.Aggregate.Alias() == lowered {
			return s.Aggregate.Alias(), true
		}
	}
	return "", false
}
