package router

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lakeview-lab/eventlake/internal/core/catalog"
	"github.com/lakeview-lab/eventlake/internal/core/query"
)

func revenueSummary() catalog.SummarySpec {
	return catalog.SummarySpec{
		Name:     "revenue_by_minute_publisher_country",
		Location: "summaries/revenue_by_minute_publisher_country.parquet",
		Priority: 10,
		GroupBy:  []string{"minute", "day", "publisher_id", "country"},
		Columns: map[string]catalog.StoredAggregate{
			"sum_bid_price":   {Func: query.FuncSum, SourceColumn: "bid_price"},
			"count_bid_price": {Func: query.FuncCount, SourceColumn: "bid_price"},
		},
		Filter: []catalog.Equality{{Column: "type", Value: "impression"}},
	}
}

func purchaseSummary() catalog.SummarySpec {
	return catalog.SummarySpec{
		Name:     "purchase_by_country",
		Location: "summaries/purchase_by_country.parquet",
		Priority: 20,
		GroupBy:  []string{"country"},
		Columns: map[string]catalog.StoredAggregate{
			"sum_total_price":   {Func: query.FuncSum, SourceColumn: "total_price"},
			"count_total_price": {Func: query.FuncCount, SourceColumn: "total_price"},
		},
		Filter: []catalog.Equality{{Column: "type", Value: "purchase"}},
	}
}

func countsSummary() catalog.SummarySpec {
	return catalog.SummarySpec{
		Name:     "counts_by_advertiser_type",
		Location: "summaries/counts_by_advertiser_type.parquet",
		Priority: 30,
		GroupBy:  []string{"advertiser_id", "type"},
		Columns: map[string]catalog.StoredAggregate{
			"event_count": {Func: query.FuncCount, SourceColumn: "*"},
		},
	}
}

func testCatalog() *catalog.Catalog {
	return catalog.New([]catalog.SummarySpec{
		revenueSummary(),
		purchaseSummary(),
		countsSummary(),
	})
}

func mustParse(t *testing.T, raw query.RawQuery) query.Query {
	t.Helper()
	q, err := query.Parse(raw)
	require.NoError(t, err)
	return q
}

func TestMatch_DailyRevenueHitsRevenueSummary(t *testing.T) {
	q := mustParse(t, query.RawQuery{
		Select:  []any{"day", map[string]any{"SUM": "bid_price"}},
		Where:   []query.RawFilter{{Col: "type", Op: "eq", Val: "impression"}},
		GroupBy: []string{"day"},
	})

	res := Match(q, testCatalog())
	require.NotNil(t, res.Matched)
	require.Equal(t, "revenue_by_minute_publisher_country", res.Matched.Summary.Name)
	require.Empty(t, res.Matched.Residual, "type filter is subsumed, nothing remains")

	rec := res.Matched.Plan["sum(bid_price)"]
	require.Equal(t, ReSum, rec.Kind)
	require.Equal(t, "sum_bid_price", rec.StoredColumn)
}

func TestMatch_ClickFilterFallsThrough(t *testing.T) {
	// No summary is built over clicks: the revenue summary's baked-in filter
	// is type=impression and "type" is not a grouping key of any candidate
	// that stores sum(bid_price).
	q := mustParse(t, query.RawQuery{
		Select:  []any{"day", map[string]any{"SUM": "bid_price"}},
		Where:   []query.RawFilter{{Col: "type", Op: "eq", Val: "click"}},
		GroupBy: []string{"day"},
	})

	res := Match(q, testCatalog())
	require.Nil(t, res.Matched)
}

func TestMatch_ResidualFilterOnGroupingColumn(t *testing.T) {
	// country=JP and the day range are not part of the baked-in filter, but
	// both columns are grouping keys of the summary, so they stay as the
	// residual to apply against the summary's rows.
	q := mustParse(t, query.RawQuery{
		Select: []any{"publisher_id", map[string]any{"SUM": "bid_price"}},
		Where: []query.RawFilter{
			{Col: "type", Op: "eq", Val: "impression"},
			{Col: "country", Op: "eq", Val: "JP"},
			{Col: "day", Op: "between", Val: []any{"2024-10-20", "2024-10-23"}},
		},
		GroupBy: []string{"publisher_id"},
	})

	res := Match(q, testCatalog())
	require.NotNil(t, res.Matched)
	require.Equal(t, "revenue_by_minute_publisher_country", res.Matched.Summary.Name)
	require.Len(t, res.Matched.Residual, 2)
	require.Equal(t, "country", res.Matched.Residual[0].Column)
	require.Equal(t, "day", res.Matched.Residual[1].Column)
}

func TestMatch_ResidualFilterOutsideGroupingRejects(t *testing.T) {
	// user_id is not a grouping key of the revenue summary; the filter cannot
	// be answered against it, so the candidate must be rejected even though
	// everything else fits.
	q := mustParse(t, query.RawQuery{
		Select: []any{"day", map[string]any{"SUM": "bid_price"}},
		Where: []query.RawFilter{
			{Col: "type", Op: "eq", Val: "impression"},
			{Col: "user_id", Op: "eq", Val: float64(42)},
		},
		GroupBy: []string{"day"},
	})

	res := Match(q, testCatalog())
	require.Nil(t, res.Matched)
}

func TestMatch_MissingBakedFilterRejects(t *testing.T) {
	// A query without type=impression wants rows the impression-only summary
	// does not have.
	q := mustParse(t, query.RawQuery{
		Select:  []any{"day", map[string]any{"SUM": "bid_price"}},
		GroupBy: []string{"day"},
	})

	res := Match(q, testCatalog())
	require.Nil(t, res.Matched)
}

func TestMatch_AvgFromSumCountPair(t *testing.T) {
	q := mustParse(t, query.RawQuery{
		Select:  []any{"country", map[string]any{"AVG": "total_price"}},
		Where:   []query.RawFilter{{Col: "type", Op: "eq", Val: "purchase"}},
		GroupBy: []string{"country"},
	})

	res := Match(q, testCatalog())
	require.NotNil(t, res.Matched)
	require.Equal(t, "purchase_by_country", res.Matched.Summary.Name)

	rec := res.Matched.Plan["avg(total_price)"]
	require.Equal(t, AvgPair, rec.Kind)
	require.Equal(t, "sum_total_price", rec.SumColumn)
	require.Equal(t, "count_total_price", rec.CountColumn)
}

func TestMatch_AvgOnlySummaryNeverMatches(t *testing.T) {
	// Averages of averages are not the true average: a summary storing only
	// avg(x) must never satisfy AVG(x), SUM(x), or COUNT(x).
	avgOnly := catalog.New([]catalog.SummarySpec{{
		Name:     "avg_only",
		Location: "summaries/avg_only.parquet",
		GroupBy:  []string{"country", "type"},
		Columns: map[string]catalog.StoredAggregate{
			"avg_total_price": {Func: query.FuncAvg, SourceColumn: "total_price"},
		},
	}})

	for _, fn := range []string{"AVG", "SUM", "COUNT"} {
		q := mustParse(t, query.RawQuery{
			Select:  []any{"country", map[string]any{fn: "total_price"}},
			GroupBy: []string{"country"},
		})
		res := Match(q, avgOnly)
		require.Nilf(t, res.Matched, "%s(total_price) matched an avg-only summary", fn)
	}
}

func TestMatch_AllOrNothing(t *testing.T) {
	// The counts summary can answer count(*) but not sum(bid_price); a query
	// asking for both must reject it entirely rather than mix sources.
	q := mustParse(t, query.RawQuery{
		Select: []any{
			"advertiser_id",
			map[string]any{"COUNT": "*"},
			map[string]any{"SUM": "bid_price"},
		},
		GroupBy: []string{"advertiser_id"},
	})

	res := Match(q, testCatalog())
	require.Nil(t, res.Matched)
}

func TestMatch_CountStarOnCountsSummary(t *testing.T) {
	q := mustParse(t, query.RawQuery{
		Select:  []any{"advertiser_id", "type", map[string]any{"COUNT": "*"}},
		GroupBy: []string{"advertiser_id", "type"},
		OrderBy: []query.RawOrderBy{{Col: "COUNT(*)", Dir: "desc"}},
	})

	res := Match(q, testCatalog())
	require.NotNil(t, res.Matched)
	require.Equal(t, "counts_by_advertiser_type", res.Matched.Summary.Name)

	rec := res.Matched.Plan["count(*)"]
	require.Equal(t, ReCount, rec.Kind)
	require.Equal(t, "event_count", rec.StoredColumn)
}

func TestMatch_TypeFilterAsResidualOnCountsSummary(t *testing.T) {
	// type is a grouping key of the counts summary, so a type filter the
	// summary did not bake in is simply applied as a residual.
	q := mustParse(t, query.RawQuery{
		Select:  []any{"advertiser_id", map[string]any{"COUNT": "*"}},
		Where:   []query.RawFilter{{Col: "type", Op: "eq", Val: "click"}},
		GroupBy: []string{"advertiser_id"},
	})

	res := Match(q, testCatalog())
	require.NotNil(t, res.Matched)
	require.Equal(t, "counts_by_advertiser_type", res.Matched.Summary.Name)
	require.Equal(t, []query.Filter{{Column: "type", Op: query.OpEq, Value: "click"}}, res.Matched.Residual)
}

func TestMatch_GroupingNotSubsetRejects(t *testing.T) {
	// Grouping by hour is finer than anything the purchase summary stores.
	q := mustParse(t, query.RawQuery{
		Select:  []any{"hour", map[string]any{"SUM": "total_price"}},
		Where:   []query.RawFilter{{Col: "type", Op: "eq", Val: "purchase"}},
		GroupBy: []string{"hour"},
	})

	res := Match(q, testCatalog())
	require.Nil(t, res.Matched)
}

func TestMatch_FirstMatchWins(t *testing.T) {
	// Two candidates can answer the same query; catalog order decides.
	a := revenueSummary()
	b := revenueSummary()
	b.Name = "revenue_copy"

	cat := catalog.New([]catalog.SummarySpec{a, b})
	q := mustParse(t, query.RawQuery{
		Select:  []any{"day", map[string]any{"SUM": "bid_price"}},
		Where:   []query.RawFilter{{Col: "type", Op: "eq", Val: "impression"}},
		GroupBy: []string{"day"},
	})

	res := Match(q, cat)
	require.NotNil(t, res.Matched)
	require.Equal(t, a.Name, res.Matched.Summary.Name)
}

func TestMatch_Deterministic(t *testing.T) {
	cat := testCatalog()
	q := mustParse(t, query.RawQuery{
		Select:  []any{"country", map[string]any{"AVG": "total_price"}},
		Where:   []query.RawFilter{{Col: "type", Op: "eq", Val: "purchase"}},
		GroupBy: []string{"country"},
	})

	first := Match(q, cat)
	require.NotNil(t, first.Matched)
	for i := 0; i < 50; i++ {
		res := Match(q, cat)
		require.NotNil(t, res.Matched)
		require.Equal(t, first.Matched.Summary.Name, res.Matched.Summary.Name)
	}
}

func TestMatch_EmptyCatalogIsNoMatch(t *testing.T) {
	q := mustParse(t, query.RawQuery{
		Select:  []any{"day", map[string]any{"SUM": "bid_price"}},
		Where:   []query.RawFilter{{Col: "type", Op: "eq", Val: "impression"}},
		GroupBy: []string{"day"},
	})
	res := Match(q, catalog.New(nil))
	require.Nil(t, res.Matched)
}
