package router

import (
	"github.com/lakeview-lab/eventlake/internal/core/query"
)

// RewrittenItem is one output column of a rewritten query: either a grouping
// column read straight from the summary, or a recombined aggregate.
type RewrittenItem struct {
	Column string
	// Alias is the output name, identical to the original query's output
	// name so both execution paths produce the same columns.
	Alias string
	// Recomb is set for aggregates.
	Recomb *Recombination
}

// RewrittenQuery is an executable query against one named summary table. It
// keeps the original query's grouping, ordering and limit; its select list
// folds stored partial aggregates instead of raw event columns.
type RewrittenQuery struct {
	SummaryName     string
	SummaryLocation string
	Select          []RewrittenItem
	Where           []query.Filter // residual only; subsumed filters are gone
	GroupBy         []string
	OrderBy         []query.OrderTerm
	Limit           int
}

// OutputColumns returns the result column names in select-list order.
func (rq RewrittenQuery) OutputColumns() []string {
	cols := make([]string, 0, len(rq.Select))
	for _, item := range rq.Select {
		cols = append(cols, item.Alias)
	}
	return cols
}

// Rewrite produces a query equivalent in result to q but targeting the
// matched summary. Aggregates are replaced by their recombinations; filters
// subsumed by the summary's baked-in predicate are dropped; the query's own
// grouping is always re-applied, which re-aggregates any extra granularity
// the summary carries (a no-op when the summary is exactly as coarse as the
// query). Ordering and limit pass through unchanged.
func Rewrite(q query.Query, m Matched) RewrittenQuery {
	rq := RewrittenQuery{
		SummaryName:     m.Summary.Name,
		SummaryLocation: m.Summary.Location,
		Where:           m.Residual,
		GroupBy:         q.GroupBy,
		OrderBy:         q.OrderBy,
		Limit:           q.Limit,
	}

	for _, s := range q.Select {
		if s.Aggregate == nil {
			rq.Select = append(rq.Select, RewrittenItem{
				Column: s.Column,
				Alias:  s.Column,
			})
			continue
		}
		rec := m.Plan[s.Aggregate.Alias()]
		rq.Select = append(rq.Select, RewrittenItem{
			Alias:  s.Aggregate.Alias(),
			Recomb: &rec,
		})
	}

	return rq
}
