package exec

import (
	"fmt"
	"sort"

	"github.com/lakeview-lab/eventlake/internal/core/query"
	"github.com/lakeview-lab/eventlake/internal/core/router"
)

// Run evaluates a query against raw event rows: filter, group, aggregate,
// order, limit. This is the fallback path's engine and also what the prepare
// phase uses to build summaries.
func Run(q query.Query, rows []Row) ([]Row, error) {
	filtered, err := ApplyFilters(rows, q.Where)
	if err != nil {
		return nil, fmt.Errorf("apply filters: %w", err)
	}

	result, err := Aggregate(filtered, q.GroupBy, q.Select)
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}

	orderRows(result, q.OrderBy)
	return limitRows(result, q.Limit), nil
}

// RunRewritten evaluates a rewritten query against the rows of its summary
// table: residual filter, re-group over the query's grouping columns, fold
// the stored partial aggregates, order, limit.
func RunRewritten(rq router.RewrittenQuery, rows []Row) ([]Row, error) {
	filtered, err := ApplyFilters(rows, rq.Where)
	if err != nil {
		return nil, fmt.Errorf("apply residual filters: %w", err)
	}

	result, err := AggregateRecombined(filtered, rq.GroupBy, rq.Select)
	if err != nil {
		return nil, fmt.Errorf("recombine: %w", err)
	}

	orderRows(result, rq.OrderBy)
	return limitRows(result, rq.Limit), nil
}

// orderRows sorts rows by the given terms. NULL sorts before everything
// ascending. The sort is stable so ties keep their deterministic group order.
func orderRows(rows []Row, terms []query.OrderTerm) {
	if len(terms) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, t := range terms {
			c := compareForSort(rows[i][t.Column], rows[j][t.Column])
			if c == 0 {
				continue
			}
			if t.Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func compareForSort(left, right any) int {
	switch {
	case left == nil && right == nil:
		return 0
	case left == nil:
		return -1
	case right == nil:
		return 1
	}
	c, err := compare(left, right)
	if err != nil {
		return 0
	}
	return c
}

func limitRows(rows []Row, limit int) []Row {
	if limit > 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}
