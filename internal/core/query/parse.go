package query

import (
	"fmt"
	"strings"
)

// RawQuery is the wire shape of a query: the JSON object accepted by the
// batch runner's queries file and the HTTP query endpoint.
//
// select entries are either plain column names ("day") or single-key
// aggregate descriptors ({"SUM": "bid_price"}). where entries are
// {col, op, val} triples, combined conjunctively.
type RawQuery struct {
	Select  []any        `json:"select"`
	Where   []RawFilter  `json:"where"`
	GroupBy []string     `json:"group_by"`
	OrderBy []RawOrderBy `json:"order_by"`
	Limit   int          `json:"limit"`
}

// RawFilter is one {col, op, val} conjunct.
type RawFilter struct {
	Col string `json:"col"`
	Op  string `json:"op"`
	Val any    `json:"val"`
}

// RawOrderBy is one ORDER BY term; Dir is "asc" (default) or "desc".
type RawOrderBy struct {
	Col string `json:"col"`
	Dir string `json:"dir"`
}

// Parse validates a raw query and produces its canonical form.
// It is pure and total: any failure wraps ErrMalformed, and a successful
// result is immutable.
func Parse(raw RawQuery) (Query, error) {
	if len(raw.Select) == 0 {
		return Query{}, fmt.Errorf("%w: select list is empty", ErrMalformed)
	}

	q := Query{
		GroupBy: append([]string(nil), raw.GroupBy...),
		Limit:   raw.Limit,
	}
	if raw.Limit < 0 {
		return Query{}, fmt.Errorf("%w: limit must be >= 0, got %d", ErrMalformed, raw.Limit)
	}

	for i, entry := range raw.Select {
		item, err := parseSelectItem(entry)
		if err != nil {
			return Query{}, fmt.Errorf("%w: select[%d]: %v", ErrMalformed, i, err)
		}
		if !item.IsAggregate() && !q.HasGroupColumn(item.Column) {
			return Query{}, fmt.Errorf("%w: select column %q is not in group_by", ErrMalformed, item.Column)
		}
		q.Select = append(q.Select, item)
	}

	for i, w := range raw.Where {
		f, err := parseFilter(w)
		if err != nil {
			return Query{}, fmt.Errorf("%w: where[%d]: %v", ErrMalformed, i, err)
		}
		q.Where = append(q.Where, f)
	}

	for i, o := range raw.OrderBy {
		term, err := parseOrderTerm(q, o)
		if err != nil {
			return Query{}, fmt.Errorf("%w: order_by[%d]: %v", ErrMalformed, i, err)
		}
		q.OrderBy = append(q.OrderBy, term)
	}

	return q, nil
}

func parseSelectItem(entry any) (SelectItem, error) {
	switch v := entry.(type) {
	case string:
		if v == "" {
			return SelectItem{}, fmt.Errorf("empty column name")
		}
		return SelectItem{Column: v}, nil
	case map[string]any:
		if len(v) != 1 {
			return SelectItem{}, fmt.Errorf("aggregate descriptor must have exactly one key, got %d", len(v))
		}
		for fn, col := range v {
			agg, err := parseAggregate(fn, col)
			if err != nil {
				return SelectItem{}, err
			}
			return SelectItem{Aggregate: &agg}, nil
		}
	case map[string]string:
		// Convenience for hand-built raw queries in tests and tools.
		if len(v) != 1 {
			return SelectItem{}, fmt.Errorf("aggregate descriptor must have exactly one key, got %d", len(v))
		}
		for fn, col := range v {
			agg, err := parseAggregate(fn, col)
			if err != nil {
				return SelectItem{}, err
			}
			return SelectItem{Aggregate: &agg}, nil
		}
	}
	return SelectItem{}, fmt.Errorf("unsupported select entry %T", entry)
}

func parseAggregate(fn string, col any) (Aggregate, error) {
	column, ok := col.(string)
	if !ok || column == "" {
		return Aggregate{}, fmt.Errorf("aggregate %s: column must be a non-empty string", fn)
	}

	f := Func(strings.ToLower(fn))
	if !KnownFunc(f) {
		return Aggregate{}, fmt.Errorf("unknown aggregate function %q", fn)
	}

	if column == "*" {
		if f != FuncCount {
			return Aggregate{}, fmt.Errorf("%s(*) is not supported", fn)
		}
		return Aggregate{Func: f, Column: "*"}, nil
	}

	// COUNT accepts any column (it counts non-null values); the numeric
	// aggregates require numeric input.
	if f != FuncCount && !NumericColumn(column) {
		return Aggregate{}, fmt.Errorf("%s over non-numeric column %q", fn, column)
	}

	return Aggregate{Func: f, Column: column}, nil
}

func parseFilter(w RawFilter) (Filter, error) {
	if w.Col == "" {
		return Filter{}, fmt.Errorf("filter column is empty")
	}

	op := Op(strings.ToLower(w.Op))
	if !KnownOp(op) {
		return Filter{}, fmt.Errorf("unsupported operator %q", w.Op)
	}

	if op == OpBetween {
		bounds, ok := w.Val.([]any)
		if !ok || len(bounds) != 2 {
			return Filter{}, fmt.Errorf("between requires a two-element value, got %v", w.Val)
		}
	} else if w.Val == nil {
		return Filter{}, fmt.Errorf("filter on %q has no value", w.Col)
	}

	return Filter{Column: w.Col, Op: op, Value: w.Val}, nil
}

func parseOrderTerm(q Query, o RawOrderBy) (OrderTerm, error) {
	col, ok := q.ResolveOrderColumn(o.Col)
	if !ok {
		return OrderTerm{}, fmt.Errorf("order column %q is not in the select list", o.Col)
	}

	switch strings.ToLower(o.Dir) {
	case "", "asc":
		return OrderTerm{Column: col}, nil
	case "desc":
		return OrderTerm{Column: col, Descending: true}, nil
	}
	return OrderTerm{}, fmt.Errorf("invalid direction %q (want asc or desc)", o.Dir)
}
