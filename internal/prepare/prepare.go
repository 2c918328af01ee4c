package prepare

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lakeview-lab/eventlake/internal/core/partition"
	"github.com/lakeview-lab/eventlake/internal/exec"
	"github.com/lakeview-lab/eventlake/internal/storage/lake"
)

// Options configures a prepare run.
type Options struct {
	// DataPath is the directory holding raw events_part_*.csv files.
	DataPath string
	// CatalogDir receives the summary spec YAML files.
	CatalogDir string
	// Compression is the parquet codec name (zstd, snappy, uncompressed).
	Compression string
	// Parallelism bounds concurrent CSV parsing and partition writes.
	Parallelism int
}

// Run executes the full prepare phase: parse raw CSVs in parallel, write the
// (type, day)-partitioned dataset, then materialize the stock summaries and
// their catalog specs. The data store is rebuilt from scratch on every run.
func Run(ctx context.Context, store *lake.Store, opts Options) error {
	start := time.Now()

	codec, err := lake.Codec(opts.Compression)
	if err != nil {
		return err
	}
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = 4
	}

	files, err := filepath.Glob(filepath.Join(opts.DataPath, "events_part_*.csv"))
	if err != nil {
		return fmt.Errorf("listing raw files: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no events_part_*.csv files found in %s", opts.DataPath)
	}
	sort.Strings(files)
	slog.Info("Prepare starting", "files", len(files), "data_path", opts.DataPath)

	if err := os.RemoveAll(store.EventsDir()); err != nil {
		return fmt.Errorf("removing old dataset: %w", err)
	}

	// Parse CSVs in parallel; partition assignment is deterministic per row
	// so the merge order does not affect the output.
	var (
		mu         sync.Mutex
		partitions = make(map[partition.Key][]lake.Event)
		total      int
		dropped    int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for _, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			events, skipped, err := ReadEventsCSV(file)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			for _, ev := range events {
				key := partition.Key{Type: ev.Type, Day: ev.Day}
				partitions[key] = append(partitions[key], ev)
			}
			total += len(events)
			dropped += skipped
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("parsing raw files: %w", err)
	}
	if dropped > 0 {
		slog.Warn("Dropped rows with unparseable timestamps", "count", dropped)
	}
	slog.Info("Raw files parsed", "rows", total, "partitions", len(partitions))

	// Write partitions in parallel.
	keys := make([]partition.Key, 0, len(partitions))
	for key := range partitions {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Dir() < keys[j].Dir() })

	wg, wctx := errgroup.WithContext(ctx)
	wg.SetLimit(parallelism)
	for _, key := range keys {
		wg.Go(func() error {
			if err := wctx.Err(); err != nil {
				return err
			}
			_, err := store.WritePartition(key, partitions[key], codec)
			return err
		})
	}
	if err := wg.Wait(); err != nil {
		return fmt.Errorf("writing partitions: %w", err)
	}
	slog.Info("Partitioned dataset written", "partitions", len(keys))

	// Materialize summaries from the typed rows.
	rows := make([]exec.Row, 0, total)
	for _, key := range keys {
		for _, ev := range partitions[key] {
			rows = append(rows, ev.Row())
		}
	}

	for _, def := range stockSummaries {
		columns, summaryRows, err := def.materialize(rows)
		if err != nil {
			return err
		}
		if err := store.WriteSummary(def.location(), columns, summaryRows, codec); err != nil {
			return err
		}
		if err := def.writeSpec(opts.CatalogDir); err != nil {
			return err
		}
		slog.Info("Summary materialized", "summary", def.name, "rows", len(summaryRows))
	}

	slog.Info("Prepare complete",
		"rows", total,
		"partitions", len(keys),
		"summaries", len(stockSummaries),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return nil
}
