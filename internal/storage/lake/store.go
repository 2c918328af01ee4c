package lake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/lakeview-lab/eventlake/internal/core/catalog"
	"github.com/lakeview-lab/eventlake/internal/core/partition"
	"github.com/lakeview-lab/eventlake/internal/core/query"
	"github.com/lakeview-lab/eventlake/internal/core/router"
	"github.com/lakeview-lab/eventlake/internal/exec"
)

// ErrExecution marks storage-side failures: missing files, unreadable
// parquet, schema mismatches. The store never retries on its own; per-query
// failures propagate so one bad query cannot abort a batch.
var ErrExecution = errors.New("execution failed")

// Store reads the partitioned event dataset and summary tables.
type Store struct {
	root string
	// retryFallback re-executes the original query on the full dataset
	// when the summary path fails. Correctness-preserving (the fallback
	// answers every query) and off by default.
	retryFallback bool
}

// Options configures a Store.
type Options struct {
	RetryFallback bool
}

// NewStore opens a store rooted at the data-store directory produced by the
// prepare phase.
func NewStore(root string, opts Options) *Store {
	return &Store{root: root, retryFallback: opts.RetryFallback}
}

// Root returns the data-store directory.
func (s *Store) Root() string { return s.root }

// EventsDir returns the partitioned dataset directory.
func (s *Store) EventsDir() string { return filepath.Join(s.root, "events") }

// Result is the outcome of executing one plan.
type Result struct {
	Rows    []exec.Row
	Columns []string // output column names in select-list order
	Target  string   // summary name, or "full-scan"
}

// Execute runs a routed plan: the rewritten query against its summary table,
// or the original query against the pruned full dataset. With retryFallback
// enabled, a summary-side execution failure falls back to the full dataset
// before giving up.
func (s *Store) Execute(ctx context.Context, plan router.Plan) (Result, error) {
	if plan.Summary != nil {
		rows, err := s.executeSummary(ctx, *plan.Summary)
		if err == nil {
			return Result{Rows: rows, Columns: plan.Summary.OutputColumns(), Target: plan.Summary.SummaryName}, nil
		}
		if !s.retryFallback || !errors.Is(err, ErrExecution) {
			return Result{}, err
		}
		slog.Warn("Summary execution failed, retrying against full dataset",
			"summary", plan.Summary.SummaryName,
			"error", err,
		)
	}

	rows, err := s.executeFull(ctx, plan.Original)
	if err != nil {
		return Result{}, err
	}
	return Result{Rows: rows, Columns: plan.Original.OutputColumns(), Target: "full-scan"}, nil
}

func (s *Store) executeSummary(ctx context.Context, rq router.RewrittenQuery) ([]exec.Row, error) {
	rows, err := s.ReadSummary(ctx, rq.SummaryLocation)
	if err != nil {
		return nil, err
	}
	return exec.RunRewritten(rq, rows)
}

func (s *Store) executeFull(ctx context.Context, q query.Query) ([]exec.Row, error) {
	rows, err := s.ScanEvents(ctx, q.Where)
	if err != nil {
		return nil, err
	}
	return exec.Run(q, rows)
}

// ScanEvents reads the full dataset, pruning (type, day) partitions that
// cannot satisfy the filters before opening any file. Pruning is only an
// optimization: the caller still evaluates the complete filter set against
// every returned row.
func (s *Store) ScanEvents(ctx context.Context, filters []query.Filter) ([]exec.Row, error) {
	keys, err := s.ListPartitions()
	if err != nil {
		return nil, err
	}
	keys = partition.Prune(keys, filters)

	var rows []exec.Row
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		files, err := filepath.Glob(filepath.Join(s.EventsDir(), key.Dir(), "*.parquet"))
		if err != nil {
			return nil, fmt.Errorf("%w: listing partition %s: %v", ErrExecution, key.Dir(), err)
		}
		sort.Strings(files)
		for _, f := range files {
			fileRows, err := readRows(f)
			if err != nil {
				return nil, err
			}
			// Re-attach partition values; older files written before the
			// columns were duplicated into the file may lack them.
			for _, row := range fileRows {
				row["type"] = key.Type
				row["day"] = key.Day
			}
			rows = append(rows, fileRows...)
		}
	}
	return rows, nil
}

// ListPartitions enumerates the (type, day) partition keys present on disk,
// in deterministic lexicographic order. An absent events directory is an
// empty dataset, not an error.
func (s *Store) ListPartitions() ([]partition.Key, error) {
	dirs, err := filepath.Glob(filepath.Join(s.EventsDir(), "type=*", "day=*"))
	if err != nil {
		return nil, fmt.Errorf("%w: listing partitions: %v", ErrExecution, err)
	}
	sort.Strings(dirs)

	keys := make([]partition.Key, 0, len(dirs))
	for _, dir := range dirs {
		rel, err := filepath.Rel(s.EventsDir(), dir)
		if err != nil {
			return nil, fmt.Errorf("%w: partition path %s: %v", ErrExecution, dir, err)
		}
		key, err := partition.ParseDir(filepath.ToSlash(rel))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrExecution, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// ReadSummary reads one summary parquet file into rows. Relative locations
// resolve against the store root, which is how the prepare phase writes them.
func (s *Store) ReadSummary(ctx context.Context, location string) ([]exec.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := location
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.root, location)
	}
	return readRows(path)
}

// ResolveLocation returns the absolute path of a summary location.
func (s *Store) ResolveLocation(spec catalog.SummarySpec) string {
	if filepath.IsAbs(spec.Location) {
		return spec.Location
	}
	return filepath.Join(s.root, spec.Location)
}

// readRows loads every row of a parquet file as a column-keyed map.
func readRows(path string) ([]exec.Row, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrExecution, path, err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", ErrExecution, path, err)
	}

	pf, err := parquet.OpenFile(file, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("%w: open parquet %s: %v", ErrExecution, path, err)
	}

	reader := parquet.NewReader(pf)
	defer reader.Close()

	var rows []exec.Row
	for {
		row := make(map[string]any)
		if err := reader.Read(&row); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%w: read %s: %v", ErrExecution, path, err)
		}
		rows = append(rows, normalizeRow(row))
	}
	return rows, nil
}

// normalizeRow maps parquet null markers to nil and trims any leading dot
// the reader puts on root-level column paths.
func normalizeRow(raw map[string]any) exec.Row {
	row := make(exec.Row, len(raw))
	for k, v := range raw {
		row[strings.TrimPrefix(k, ".")] = v
	}
	return row
}
