// Package catalog holds the read-only registry of pre-aggregated summary
// tables. The catalog is built once after data preparation and then shared by
// every matching operation without synchronization: nothing mutates it after
// Load returns.
package catalog

import (
	"errors"

	"github.com/lakeview-lab/eventlake/internal/core/query"
)

// ErrUnrecombinable marks a summary that declares a stored aggregate function
// the engine does not know at all. Such a summary could never be matched
// correctly, so it is rejected at load time rather than silently admitted.
var ErrUnrecombinable = errors.New("unrecombinable stored aggregate")

// StoredAggregate describes one pre-computed column of a summary: the
// function that produced it and the event column it was computed from.
// SourceColumn is "*" for count(*).
type StoredAggregate struct {
	Func         query.Func `yaml:"func"`
	SourceColumn string     `yaml:"source"`
}

// Equality is one conjunct of a summary's baked-in filter. Summaries are only
// ever built with equality predicates; ranges never appear here.
type Equality struct {
	Column string `yaml:"col"`
	Value  string `yaml:"val"`
}

// SummarySpec describes one registered summary table. Immutable after Load.
type SummarySpec struct {
	// Name identifies the summary in logs, routing output, and spec files.
	Name string
	// Location is the path of the summary's self-describing parquet file.
	Location string
	// Priority orders candidates during matching; lower values are tried
	// first. The data-preparation side registers smaller, more specific
	// summaries with lower priorities.
	Priority int
	// GroupBy are the grouping keys the summary is keyed by.
	GroupBy []string
	// Columns maps each stored output column to the aggregate it holds.
	Columns map[string]StoredAggregate
	// Filter is the equality conjunction baked into the summary's
	// construction, e.g. type=impression. Empty means the summary covers
	// all rows.
	Filter []Equality
}

// HasGroupColumn reports whether col is one of the summary's grouping keys.
func (s SummarySpec) HasGroupColumn(col string) bool {
	for _, g := range s.GroupBy {
		if g == col {
			return true
		}
	}
	return false
}

// StoredColumn returns the name of the stored column holding fn(source),
// if the summary has one.
func (s SummarySpec) StoredColumn(fn query.Func, source string) (string, bool) {
	for name, agg := range s.Columns {
		if agg.Func == fn && agg.SourceColumn == source {
			return name, true
		}
	}
	return "", false
}

// Catalog is the ordered set of registered summaries.
type Catalog struct {
	summaries []SummarySpec
}

// New builds a catalog from already-validated specs, preserving their order.
// Load is the normal constructor; New exists for tests and for callers that
// assemble specs programmatically.
func New(specs []SummarySpec) *Catalog {
	return &Catalog{summaries: append([]SummarySpec(nil), specs...)}
}

// Summaries returns the registered summaries in priority order. The returned
// slice is shared; callers must not modify it.
func (c *Catalog) Summaries() []SummarySpec {
	if c == nil {
		return nil
	}
	return c.summaries
}

// Len returns the number of registered summaries.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.summaries)
}
