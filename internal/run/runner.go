// Package run executes a batch of queries from a JSON file: each query is
// routed, executed, and rendered in the configured output format. Queries run
// in parallel; one query's failure never aborts the others.
package run

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lakeview-lab/eventlake/internal/core/catalog"
	"github.com/lakeview-lab/eventlake/internal/core/query"
	"github.com/lakeview-lab/eventlake/internal/core/router"
	"github.com/lakeview-lab/eventlake/internal/output"
	"github.com/lakeview-lab/eventlake/internal/storage/lake"
)

// Batch output formats. csv and jsonl write one file per query under the
// output directory; table renders each result to the console.
const (
	FormatCSV   = "csv"
	FormatJSONL = "jsonl"
	FormatTable = "table"
)

// Report is the outcome of one query in a batch.
type Report struct {
	Index    int           `json:"query"`
	RunID    string        `json:"run_id"`
	Target   string        `json:"target"` // summary name or "full-scan"
	Rows     int           `json:"rows"`
	Duration time.Duration `json:"duration"`
	Output   string        `json:"output,omitempty"` // empty for table format
	Err      error         `json:"-"`
}

// Runner routes and executes query batches against one store and catalog.
type Runner struct {
	store       *lake.Store
	catalog     *catalog.Catalog
	outDir      string
	format      string
	parallelism int

	mu      sync.Mutex // serializes table rendering
	console io.Writer
}

// NewRunner creates a batch runner. format is one of FormatCSV, FormatJSONL,
// FormatTable (empty means CSV); parallelism bounds concurrent queries.
func NewRunner(store *lake.Store, cat *catalog.Catalog, outDir, format string, parallelism int) *Runner {
	if format == "" {
		format = FormatCSV
	}
	if parallelism <= 0 {
		parallelism = 4
	}
	return &Runner{
		store:       store,
		catalog:     cat,
		outDir:      outDir,
		format:      format,
		parallelism: parallelism,
		console:     os.Stdout,
	}
}

// RunFile loads raw queries from a JSON array file and executes them.
func (r *Runner) RunFile(ctx context.Context, path string) ([]Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading queries file: %w", err)
	}
	var raws []query.RawQuery
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("parsing queries file %s: %w", path, err)
	}
	return r.Run(ctx, raws)
}

// Run executes the batch. Reports come back in input order; a report with a
// non-nil Err had no output written.
func (r *Runner) Run(ctx context.Context, raws []query.RawQuery) ([]Report, error) {
	if r.format != FormatTable {
		if err := os.MkdirAll(r.outDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating output dir: %w", err)
		}
	}

	reports := make([]Report, len(raws))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)
	for i, raw := range raws {
		g.Go(func() error {
			reports[i] = r.runOne(gctx, i+1, raw)
			// Per-query errors are recorded, not returned: the batch
			// continues. Only context cancellation stops the group.
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return reports, err
	}
	return reports, nil
}

func (r *Runner) runOne(ctx context.Context, index int, raw query.RawQuery) Report {
	report := Report{Index: index, RunID: uuid.NewString()}
	start := time.Now()

	q, err := query.Parse(raw)
	if err != nil {
		report.Err = err
		slog.Error("Query rejected", "query", index, "run_id", report.RunID, "error", err)
		return report
	}

	plan := router.Route(q, r.catalog)
	slog.Info("Query routed", "query", index, "run_id", report.RunID, "target", plan.Target())

	result, err := r.store.Execute(ctx, plan)
	report.Duration = time.Since(start)
	if err != nil {
		report.Err = err
		report.Target = plan.Target()
		slog.Error("Query failed", "query", index, "run_id", report.RunID, "error", err)
		return report
	}

	report.Target = result.Target
	report.Rows = len(result.Rows)

	if err := r.render(index, result); err != nil {
		report.Err = err
		return report
	}
	if r.format != FormatTable {
		report.Output = r.outputPath(index)
	}

	slog.Info("Query complete",
		"query", index,
		"run_id", report.RunID,
		"target", report.Target,
		"rows", report.Rows,
		"duration", report.Duration.Round(time.Millisecond),
	)
	return report
}

func (r *Runner) outputPath(index int) string {
	ext := "csv"
	if r.format == FormatJSONL {
		ext = "jsonl"
	}
	return filepath.Join(r.outDir, fmt.Sprintf("q%d.%s", index, ext))
}

func (r *Runner) render(index int, result lake.Result) error {
	if r.format == FormatTable {
		r.mu.Lock()
		defer r.mu.Unlock()
		fmt.Fprintf(r.console, "query %d  %s  %d rows\n", index, result.Target, len(result.Rows))
		output.RenderTable(r.console, result.Columns, result.Rows)
		fmt.Fprintln(r.console)
		return nil
	}

	path := r.outputPath(index)
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer file.Close()

	if r.format == FormatJSONL {
		return output.WriteJSONLines(file, result.Columns, result.Rows)
	}
	return output.WriteCSV(file, result.Columns, result.Rows)
}
