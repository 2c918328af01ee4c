package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lakeview-lab/eventlake/internal/core/query"
)

// rawSpec is the on-disk YAML shape of one summary spec file, written by the
// prepare phase alongside the summary's parquet file.
type rawSpec struct {
	Name     string                     `yaml:"name"`
	Location string                     `yaml:"location"`
	Priority int                        `yaml:"priority"`
	GroupBy  []string                   `yaml:"group_by"`
	Columns  map[string]StoredAggregate `yaml:"columns"`
	Filter   []Equality                 `yaml:"filter"`
}

// Load reads every *.yaml summary spec in dir and returns the catalog,
// ordered by priority (ties broken by name) so matching is deterministic.
//
// A summary declaring a stored aggregate the engine cannot recombine is
// excluded with a logged diagnostic; loading continues with the rest. A
// missing directory yields an empty catalog: running with no summaries is
// valid, every query just takes the fallback path.
func Load(dir string) (*Catalog, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return New(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("summary catalog dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("summary catalog path %q is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading summary catalog dir: %w", err)
	}

	var specs []SummarySpec
	seen := make(map[string]bool)

	for _, e := range entries {
		if e.IsDir() || (!strings.HasSuffix(e.Name(), ".yaml") && !strings.HasSuffix(e.Name(), ".yml")) {
			continue
		}

		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading summary spec %s: %w", path, err)
		}

		var raw rawSpec
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing summary spec %s: %w", path, err)
		}
		if raw.Name == "" {
			continue // empty / comment-only file
		}

		spec, err := validate(raw)
		if err != nil {
			return nil, fmt.Errorf("summary spec %s: %w", path, err)
		}
		if seen[spec.Name] {
			return nil, fmt.Errorf("summary spec %s: duplicate summary name %q", path, spec.Name)
		}

		if bad, ok := unrecombinableColumn(spec); ok {
			// Diagnostic, not fatal: the rest of the catalog stays usable.
			slog.Warn("Excluding summary with unrecombinable stored aggregate",
				"summary", spec.Name,
				"column", bad,
				"func", spec.Columns[bad].Func,
				"error", ErrUnrecombinable,
			)
			continue
		}

		seen[spec.Name] = true
		specs = append(specs, spec)
	}

	sort.SliceStable(specs, func(i, j int) bool {
		if specs[i].Priority != specs[j].Priority {
			return specs[i].Priority < specs[j].Priority
		}
		return specs[i].Name < specs[j].Name
	})

	return New(specs), nil
}

func validate(raw rawSpec) (SummarySpec, error) {
	if raw.Location == "" {
		return SummarySpec{}, fmt.Errorf("summary %q: location is required", raw.Name)
	}
	if len(raw.GroupBy) == 0 {
		return SummarySpec{}, fmt.Errorf("summary %q: group_by must not be empty", raw.Name)
	}
	if len(raw.Columns) == 0 {
		return SummarySpec{}, fmt.Errorf("summary %q: columns must not be empty", raw.Name)
	}
	for name, agg := range raw.Columns {
		if agg.SourceColumn == "" {
			return SummarySpec{}, fmt.Errorf("summary %q: column %q has no source", raw.Name, name)
		}
	}
	for _, eq := range raw.Filter {
		if eq.Column == "" {
			return SummarySpec{}, fmt.Errorf("summary %q: baked-in filter with empty column", raw.Name)
		}
	}

	return SummarySpec{
		Name:     raw.Name,
		Location: raw.Location,
		Priority: raw.Priority,
		GroupBy:  append([]string(nil), raw.GroupBy...),
		Columns:  raw.Columns,
		Filter:   append([]Equality(nil), raw.Filter...),
	}, nil
}

// unrecombinableColumn returns a stored column whose declared function the
// engine does not know, if any. A stored avg is admitted here — it is a known
// function — but the matcher never accepts it as a source for anything, so it
// can only make a summary useless, not incorrect.
func unrecombinableColumn(spec SummarySpec) (string, bool) {
	for name, agg := range spec.Columns {
		if !query.KnownFunc(agg.Func) {
			return name, true
		}
	}
	return "", false
}
