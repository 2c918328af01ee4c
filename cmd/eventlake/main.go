package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	v1 "github.com/lakeview-lab/eventlake/internal/api/v1"
	"github.com/lakeview-lab/eventlake/internal/config"
	"github.com/lakeview-lab/eventlake/internal/core/catalog"
	"github.com/lakeview-lab/eventlake/internal/prepare"
	"github.com/lakeview-lab/eventlake/internal/run"
	"github.com/lakeview-lab/eventlake/internal/server"
	"github.com/lakeview-lab/eventlake/internal/storage/lake"
)

const usage = `Usage: eventlake <command> [flags]

Commands:
  prepare   ingest raw CSVs, write the partitioned dataset and summaries
  run       execute a batch of queries from a JSON file
  serve     start the HTTP query API
`

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "prepare":
		err = runPrepare(os.Args[2:])
	case "run":
		err = runBatch(os.Args[2:])
	case "serve":
		err = runServe(os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		slog.Error("Command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func runPrepare(args []string) error {
	fs := flag.NewFlagSet("prepare", flag.ExitOnError)
	dataPath := fs.String("data-path", "", "Directory holding raw events_part_*.csv files")
	configPath := fs.String("config", "", "Path to configuration file")
	fs.Parse(args)

	if *dataPath == "" {
		return fmt.Errorf("--data-path is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	store := lake.NewStore(cfg.Store.DataDir, lake.Options{})
	return prepare.Run(context.Background(), store, prepare.Options{
		DataPath:    *dataPath,
		CatalogDir:  cfg.Store.CatalogDir,
		Compression: cfg.Prepare.Compression,
		Parallelism: cfg.Prepare.Parallelism,
	})
}

func runBatch(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	queriesPath := fs.String("queries", "", "Path to JSON file with the query batch")
	outDir := fs.String("out-dir", "", "Output directory (overrides config)")
	format := fs.String("format", "", "Output format: csv, jsonl, or table (overrides config)")
	configPath := fs.String("config", "", "Path to configuration file")
	fs.Parse(args)

	if *queriesPath == "" {
		return fmt.Errorf("--queries is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *outDir != "" {
		cfg.Run.OutDir = *outDir
	}
	if *format != "" {
		cfg.Run.Format = *format
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	cat, err := catalog.Load(cfg.Store.CatalogDir)
	if err != nil {
		return err
	}
	slog.Info("Catalog loaded", "summaries", cat.Len())

	store := lake.NewStore(cfg.Store.DataDir, lake.Options{RetryFallback: cfg.Run.RetryFallback})
	runner := run.NewRunner(store, cat, cfg.Run.OutDir, cfg.Run.Format, cfg.Run.Parallelism)

	reports, err := runner.RunFile(context.Background(), *queriesPath)
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range reports {
		if r.Err != nil {
			failed++
		}
	}
	slog.Info("Batch complete", "queries", len(reports), "failed", failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d queries failed", failed, len(reports))
	}
	return nil
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	cat, err := catalog.Load(cfg.Store.CatalogDir)
	if err != nil {
		return err
	}
	slog.Info("Catalog loaded", "summaries", cat.Len())

	store := lake.NewStore(cfg.Store.DataDir, lake.Options{RetryFallback: cfg.Run.RetryFallback})

	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), cfg.Store.DataDir, cfg.Server.Mode)
	v1.NewService(store, cat).RegisterRoutes(srv.Engine)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	if err := srv.Run(ctx); err != nil {
		return err
	}
	slog.Info("Shutdown complete")
	return nil
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
