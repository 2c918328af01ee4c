package router

import (
	"github.com/lakeview-lab/eventlake/internal/core/catalog"
	"github.com/lakeview-lab/eventlake/internal/core/query"
)

// Plan is the routing decision for one query: exactly one of Summary or
// Fallback is set. The execution adapter runs whichever is present.
type Plan struct {
	// Summary is the rewritten query against the chosen summary table.
	Summary *RewrittenQuery
	// Fallback is the original query, to be executed against the full
	// partitioned dataset with partition pruning.
	Fallback *query.Query
	// Original is always the untouched input query. The adapter's
	// retry-on-summary-failure policy re-executes it via the fallback path.
	Original query.Query
}

// Target names the table a plan executes against, for logs and run reports.
func (p Plan) Target() string {
	if p.Summary != nil {
		return p.Summary.SummaryName
	}
	return "full-scan"
}

// Route matches q against the catalog and rewrites it on success. Routing
// never fails: when no summary subsumes the query, the plan simply carries
// the original query for the full-dataset path.
func Route(q query.Query, cat *catalog.Catalog) Plan {
	res := Match(q, cat)
	if res.Matched == nil {
		fallback := q
		return Plan{Fallback: &fallback, Original: q}
	}
	rq := Rewrite(q, *res.Matched)
	return Plan{Summary: &rq, Original: q}
}
