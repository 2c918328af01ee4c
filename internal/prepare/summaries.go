package prepare

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/lakeview-lab/eventlake/internal/core/catalog"
	"github.com/lakeview-lab/eventlake/internal/core/query"
	"github.com/lakeview-lab/eventlake/internal/exec"
)

// summaryDef declares one summary to materialize: the query that builds it
// and the storage names of its aggregate columns. Priorities order the
// catalog; smaller, more specific summaries get lower numbers so the matcher
// tries them first.
type summaryDef struct {
	name     string
	priority int
	groupBy  []string
	// aggregates maps the stored column name to the aggregate it holds.
	aggregates map[string]catalog.StoredAggregate
	filter     []catalog.Equality
}

// stockSummaries are the summaries the prepare phase always builds. They
// cover the lake's routine reporting shapes: per-minute revenue (re-groupable
// to day), purchase value by country (sum+count so averages recombine), and
// event counts by advertiser and type.
var stockSummaries = []summaryDef{
	{
		name:     "revenue_by_minute_publisher_country",
		priority: 10,
		groupBy:  []string{"minute", "day", "publisher_id", "country"},
		aggregates: map[string]catalog.StoredAggregate{
			"sum_bid_price":   {Func: query.FuncSum, SourceColumn: "bid_price"},
			"count_bid_price": {Func: query.FuncCount, SourceColumn: "bid_price"},
		},
		filter: []catalog.Equality{{Column: "type", Value: "impression"}},
	},
	{
		name:     "purchase_by_country",
		priority: 20,
		groupBy:  []string{"country"},
		aggregates: map[string]catalog.StoredAggregate{
			"sum_total_price":   {Func: query.FuncSum, SourceColumn: "total_price"},
			"count_total_price": {Func: query.FuncCount, SourceColumn: "total_price"},
		},
		filter: []catalog.Equality{{Column: "type", Value: "purchase"}},
	},
	{
		name:     "counts_by_advertiser_type",
		priority: 30,
		groupBy:  []string{"advertiser_id", "type"},
		aggregates: map[string]catalog.StoredAggregate{
			"event_count": {Func: query.FuncCount, SourceColumn: "*"},
		},
	},
}

// location is the summary's parquet path relative to the data-store root.
func (d summaryDef) location() string {
	return path.Join("summaries", d.name+".parquet")
}

// buildQuery expresses the summary as a plain aggregation query over the
// typed events, so materialization reuses the same executor as every other
// query.
func (d summaryDef) buildQuery() query.Query {
	q := query.Query{GroupBy: d.groupBy}
	for _, col := range d.groupBy {
		q.Select = append(q.Select, query.SelectItem{Column: col})
	}
	for _, agg := range d.aggregates {
		a := query.Aggregate{Func: agg.Func, Column: agg.SourceColumn}
		q.Select = append(q.Select, query.SelectItem{Aggregate: &a})
	}
	for _, eq := range d.filter {
		q.Where = append(q.Where, query.Filter{Column: eq.Column, Op: query.OpEq, Value: eq.Value})
	}
	return q
}

// materialize computes the summary's rows from the full event set and renames
// the executor's canonical aliases to the stored column names.
func (d summaryDef) materialize(rows []exec.Row) (columns []string, out []exec.Row, err error) {
	q := d.buildQuery()
	result, err := exec.Run(q, rows)
	if err != nil {
		return nil, nil, fmt.Errorf("building summary %s: %w", d.name, err)
	}

	alias := make(map[string]string, len(d.aggregates))
	for stored, agg := range d.aggregates {
		a := query.Aggregate{Func: agg.Func, Column: agg.SourceColumn}
		alias[a.Alias()] = stored
	}

	// Sorted stored names keep the column order, and with it the written
	// file, stable across runs.
	columns = append(columns, d.groupBy...)
	stored := make([]string, 0, len(d.aggregates))
	for name := range d.aggregates {
		stored = append(stored, name)
	}
	sort.Strings(stored)
	columns = append(columns, stored...)

	out = make([]exec.Row, 0, len(result))
	for _, row := range result {
		renamed := make(exec.Row, len(row))
		for k, v := range row {
			if stored, ok := alias[k]; ok {
				renamed[stored] = v
			} else {
				renamed[k] = v
			}
		}
		out = append(out, renamed)
	}
	return columns, out, nil
}

// specFile is the YAML shape consumed by catalog.Load.
type specFile struct {
	Name     string                             `yaml:"name"`
	Location string                             `yaml:"location"`
	Priority int                                `yaml:"priority"`
	GroupBy  []string                           `yaml:"group_by"`
	Columns  map[string]catalog.StoredAggregate `yaml:"columns"`
	Filter   []catalog.Equality                 `yaml:"filter,omitempty"`
}

// writeSpec writes the summary's catalog spec into the catalog directory.
func (d summaryDef) writeSpec(catalogDir string) error {
	if err := os.MkdirAll(catalogDir, 0o755); err != nil {
		return fmt.Errorf("creating catalog dir: %w", err)
	}

	data, err := yaml.Marshal(specFile{
		Name:     d.name,
		Location: d.location(),
		Priority: d.priority,
		GroupBy:  d.groupBy,
		Columns:  d.aggregates,
		Filter:   d.filter,
	})
	if err != nil {
		return fmt.Errorf("marshaling spec for %s: %w", d.name, err)
	}

	path := filepath.Join(catalogDir, d.name+".yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing spec %s: %w", path, err)
	}
	return nil
}
