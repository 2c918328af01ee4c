package exec

import (
	"fmt"

	"github.com/lakeview-lab/eventlake/internal/core/query"
)

// ApplyFilters keeps the rows satisfying every filter (conjunction).
func ApplyFilters(rows []Row, filters []query.Filter) ([]Row, error) {
	if len(filters) == 0 {
		return rows, nil
	}

	kept := make([]Row, 0, len(rows))
	for _, row := range rows {
		match, err := matchesAll(row, filters)
		if err != nil {
			return nil, err
		}
		if match {
			kept = append(kept, row)
		}
	}
	return kept, nil
}

func matchesAll(row Row, filters []query.Filter) (bool, error) {
	for _, f := range filters {
		ok, err := matches(row[f.Column], f)
		if err != nil {
			return false, fmt.Errorf("filter on %q: %w", f.Column, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func matches(v any, f query.Filter) (bool, error) {
	// SQL three-valued logic: comparing NULL yields UNKNOWN, so a NULL value
	// never satisfies a filter, ne included.
	if v == nil {
		return false, nil
	}

	if f.Op == query.OpBetween {
		bounds, ok := f.Value.([]any)
		if !ok || len(bounds) != 2 {
			return false, fmt.Errorf("between requires a two-element value")
		}
		lo, err := compare(v, bounds[0])
		if err != nil {
			return false, err
		}
		hi, err := compare(v, bounds[1])
		if err != nil {
			return false, err
		}
		return lo >= 0 && hi <= 0, nil
	}

	c, err := compare(v, f.Value)
	if err != nil {
		return false, err
	}
	switch f.Op {
	case query.OpEq:
		return c == 0, nil
	case query.OpNe:
		return c != 0, nil
	case query.OpLt:
		return c < 0, nil
	case query.OpLte:
		return c <= 0, nil
	case query.OpGt:
		return c > 0, nil
	case query.OpGte:
		return c >= 0, nil
	}
	return false, fmt.Errorf("unsupported operator %q", f.Op)
}

// compare orders two values: numerically when both sides are numeric,
// lexicographically otherwise. Day/minute/week values are ISO-formatted
// strings, so string order is time order for them.
func compare(left, right any) (int, error) {
	ln, lok := toFloat64(left)
	rn, rok := toFloat64(right)
	if lok && rok {
		switch {
		case ln < rn:
			return -1, nil
		case ln > rn:
			return 1, nil
		}
		return 0, nil
	}

	ls, rs := toString(left), toString(right)
	switch {
	case ls < rs:
		return -1, nil
	case ls > rs:
		return 1, nil
	}
	return 0, nil
}
