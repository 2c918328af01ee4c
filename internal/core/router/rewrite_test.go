package router

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lakeview-lab/eventlake/internal/core/query"
)

func TestRewrite_DailyRevenue(t *testing.T) {
	// SELECT day, SUM(bid_price) WHERE type=impression GROUP BY day becomes
	// SELECT day, re-sum(sum_bid_price) over the summary, grouped by day,
	// with the subsumed type filter gone.
	q := mustParse(t, query.RawQuery{
		Select:  []any{"day", map[string]any{"SUM": "bid_price"}},
		Where:   []query.RawFilter{{Col: "type", Op: "eq", Val: "impression"}},
		GroupBy: []string{"day"},
	})

	res := Match(q, testCatalog())
	require.NotNil(t, res.Matched)

	rq := Rewrite(q, *res.Matched)
	require.Equal(t, "revenue_by_minute_publisher_country", rq.SummaryName)
	require.Equal(t, "summaries/revenue_by_minute_publisher_country.parquet", rq.SummaryLocation)
	require.Empty(t, rq.Where)
	require.Equal(t, []string{"day"}, rq.GroupBy)

	require.Len(t, rq.Select, 2)
	require.Equal(t, "day", rq.Select[0].Column)
	require.Equal(t, "day", rq.Select[0].Alias)
	require.Nil(t, rq.Select[0].Recomb)

	require.Equal(t, "sum(bid_price)", rq.Select[1].Alias)
	require.NotNil(t, rq.Select[1].Recomb)
	require.Equal(t, ReSum, rq.Select[1].Recomb.Kind)
	require.Equal(t, "sum_bid_price", rq.Select[1].Recomb.StoredColumn)
}

func TestRewrite_OutputColumnsMatchOriginal(t *testing.T) {
	// Both execution paths must produce identical column headers.
	q := mustParse(t, query.RawQuery{
		Select:  []any{"country", map[string]any{"AVG": "total_price"}, map[string]any{"COUNT": "total_price"}},
		Where:   []query.RawFilter{{Col: "type", Op: "eq", Val: "purchase"}},
		GroupBy: []string{"country"},
	})

	res := Match(q, testCatalog())
	require.NotNil(t, res.Matched)

	rq := Rewrite(q, *res.Matched)
	require.Equal(t, q.OutputColumns(), rq.OutputColumns())
	require.Equal(t, []string{"country", "avg(total_price)", "count(total_price)"}, rq.OutputColumns())
}

func TestRewrite_AvgPair(t *testing.T) {
	q := mustParse(t, query.RawQuery{
		Select:  []any{"country", map[string]any{"AVG": "total_price"}},
		Where:   []query.RawFilter{{Col: "type", Op: "eq", Val: "purchase"}},
		GroupBy: []string{"country"},
	})

	res := Match(q, testCatalog())
	require.NotNil(t, res.Matched)

	rq := Rewrite(q, *res.Matched)
	rec := rq.Select[1].Recomb
	require.NotNil(t, rec)
	require.Equal(t, AvgPair, rec.Kind)
	require.Equal(t, "sum_total_price", rec.SumColumn)
	require.Equal(t, "count_total_price", rec.CountColumn)
}

func TestRewrite_CarriesResidualOrderingAndLimit(t *testing.T) {
	q := mustParse(t, query.RawQuery{
		Select: []any{"publisher_id", map[string]any{"SUM": "bid_price"}},
		Where: []query.RawFilter{
			{Col: "type", Op: "eq", Val: "impression"},
			{Col: "country", Op: "eq", Val: "JP"},
		},
		GroupBy: []string{"publisher_id"},
		OrderBy: []query.RawOrderBy{{Col: "SUM(bid_price)", Dir: "desc"}},
		Limit:   5,
	})

	res := Match(q, testCatalog())
	require.NotNil(t, res.Matched)

	rq := Rewrite(q, *res.Matched)
	require.Equal(t, []query.Filter{{Column: "country", Op: query.OpEq, Value: "JP"}}, rq.Where)
	require.Equal(t, []query.OrderTerm{{Column: "sum(bid_price)", Descending: true}}, rq.OrderBy)
	require.Equal(t, 5, rq.Limit)
}

func TestRoute_TargetNames(t *testing.T) {
	cat := testCatalog()

	hit := mustParse(t, query.RawQuery{
		Select:  []any{"day", map[string]any{"SUM": "bid_price"}},
		Where:   []query.RawFilter{{Col: "type", Op: "eq", Val: "impression"}},
		GroupBy: []string{"day"},
	})
	plan := Route(hit, cat)
	require.NotNil(t, plan.Summary)
	require.Nil(t, plan.Fallback)
	require.Equal(t, "revenue_by_minute_publisher_country", plan.Target())

	miss := mustParse(t, query.RawQuery{
		Select:  []any{"day", map[string]any{"SUM": "bid_price"}},
		Where:   []query.RawFilter{{Col: "type", Op: "eq", Val: "click"}},
		GroupBy: []string{"day"},
	})
	plan = Route(miss, cat)
	require.Nil(t, plan.Summary)
	require.NotNil(t, plan.Fallback)
	require.Equal(t, "full-scan", plan.Target())
}
