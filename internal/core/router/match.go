// Package router decides, per query, whether a registered summary table can
// answer it exactly and rewrites it accordingly. Matching and rewriting are
// pure functions over immutable inputs; a batch of queries can be routed
// fully in parallel against one shared catalog.
package router

import (
	"github.com/lakeview-lab/eventlake/internal/core/catalog"
	"github.com/lakeview-lab/eventlake/internal/core/query"
)

// RecombKind is the closed set of rules for reconstructing a requested
// aggregate from a summary's stored partial aggregates.
type RecombKind int

const (
	// ReSum: SUM(x) from a stored sum(x), summed again over summary rows.
	ReSum RecombKind = iota
	// ReCount: COUNT from a stored count column. Counts are re-SUMMED,
	// never re-counted — each summary row already stands for many events.
	ReCount
	// AvgPair: AVG(x) from stored sum(x) and count(x), divided after the
	// re-grouping step. A stored avg is never a valid source: averages of
	// averages are not the true average.
	AvgPair
	// ReMin: MIN(x) from a stored min(x), minimized again.
	ReMin
	// ReMax: MAX(x) from a stored max(x), maximized again.
	ReMax
)

// Recombination binds a requested aggregate to the stored column(s) that
// reconstruct it.
type Recombination struct {
	Kind RecombKind
	// StoredColumn is the summary column to fold (ReSum/ReCount/ReMin/ReMax).
	StoredColumn string
	// SumColumn and CountColumn are set for AvgPair.
	SumColumn   string
	CountColumn string
}

// Matched describes a successful match: the chosen summary, the query
// filters that remain to be applied against it, and the recombination for
// every requested aggregate, keyed by the aggregate's canonical alias.
type Matched struct {
	Summary  catalog.SummarySpec
	Residual []query.Filter
	Plan     map[string]Recombination
}

// MatchResult is either a Matched summary or nothing. Absence of a match is
// the normal fallback path, not an error.
type MatchResult struct {
	Matched *Matched
}

// Match iterates summaries in catalog order and returns the first one that
// subsumes the query's filters, covers its grouping keys, and can exactly
// reconstruct every requested aggregate. Catalog order is the deterministic
// priority; matching the same query against the same catalog always yields
// the same result.
func Match(q query.Query, cat *catalog.Catalog) MatchResult {
	for _, spec := range cat.Summaries() {
		if m, ok := matchOne(q, spec); ok {
			return MatchResult{Matched: &m}
		}
	}
	return MatchResult{}
}

// matchOne checks one candidate. All three conditions must hold; a partial
// fit rejects the candidate as a whole so a query never mixes summary rows
// with full-scan rows.
func matchOne(q query.Query, spec catalog.SummarySpec) (Matched, bool) {
	residual, ok := subsumeFilters(q, spec)
	if !ok {
		return Matched{}, false
	}

	for _, g := range q.GroupBy {
		if !spec.HasGroupColumn(g) {
			return Matched{}, false
		}
	}

	plan := make(map[string]Recombination)
	for _, agg := range q.Aggregates() {
		rec, ok := recombine(agg, spec)
		if !ok {
			return Matched{}, false
		}
		plan[agg.Alias()] = rec
	}

	return Matched{Summary: spec, Residual: residual, Plan: plan}, true
}

// subsumeFilters checks that the summary's rows are exactly the rows the
// query wants, in both directions:
//
//   - every baked-in equality of the summary must appear verbatim as an eq
//     filter in the query, otherwise the summary is missing rows the query
//     needs;
//   - every remaining query filter must be answerable against the summary,
//     which requires its column to be one of the summary's grouping keys.
//
// Filters discharged by a baked-in equality are dropped; the rest are
// returned as the residual to apply against the summary.
func subsumeFilters(q query.Query, spec catalog.SummarySpec) ([]query.Filter, bool) {
	for _, baked := range spec.Filter {
		if !hasEqualityFilter(q, baked) {
			return nil, false
		}
	}

	var residual []query.Filter
	for _, f := range q.Where {
		if dischargedBy(f, spec.Filter) {
			continue
		}
		if !spec.HasGroupColumn(f.Column) {
			return nil, false
		}
		residual = append(residual, f)
	}
	return residual, true
}

func hasEqualityFilter(q query.Query, baked catalog.Equality) bool {
	for _, f := range q.Where {
		if f.Op == query.OpEq && f.Column == baked.Column && equalValue(f.Value, baked.Value) {
			return true
		}
	}
	return false
}

func dischargedBy(f query.Filter, baked []catalog.Equality) bool {
	if f.Op != query.OpEq {
		return false
	}
	for _, eq := range baked {
		if f.Column == eq.Column && equalValue(f.Value, eq.Value) {
			return true
		}
	}
	return false
}

// equalValue compares a query filter value against a baked-in equality value.
// Baked values are stored as strings; query values arrive as JSON strings.
// Anything else (numbers, slices) never equals a baked value — conservative
// by construction.
func equalValue(queryVal any, bakedVal string) bool {
	s, ok := queryVal.(string)
	return ok && s == bakedVal
}

// recombine finds the stored column(s) that exactly reconstruct agg, if any.
func recombine(agg query.Aggregate, spec catalog.SummarySpec) (Recombination, bool) {
	switch agg.Func {
	case query.FuncSum:
		if col, ok := spec.StoredColumn(query.FuncSum, agg.Column); ok {
			return Recombination{Kind: ReSum, StoredColumn: col}, true
		}
	case query.FuncCount:
		if col, ok := spec.StoredColumn(query.FuncCount, agg.Column); ok {
			return Recombination{Kind: ReCount, StoredColumn: col}, true
		}
	case query.FuncAvg:
		sumCol, haveSum := spec.StoredColumn(query.FuncSum, agg.Column)
		countCol, haveCount := spec.StoredColumn(query.FuncCount, agg.Column)
		if haveSum && haveCount {
			return Recombination{Kind: AvgPair, SumColumn: sumCol, CountColumn: countCol}, true
		}
	case query.FuncMin:
		if col, ok := spec.StoredColumn(query.FuncMin, agg.Column); ok {
			return Recombination{Kind: ReMin, StoredColumn: col}, true
		}
	case query.FuncMax:
		if col, ok := spec.StoredColumn(query.FuncMax, agg.Column); ok {
			return Recombination{Kind: ReMax, StoredColumn: col}, true
		}
	}
	return Recombination{}, false
}
