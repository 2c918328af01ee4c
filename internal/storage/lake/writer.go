package lake

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"github.com/lakeview-lab/eventlake/internal/core/partition"
	"github.com/lakeview-lab/eventlake/internal/exec"
)

// Codec selects the parquet compression used for newly written files.
func Codec(name string) (compress.Codec, error) {
	switch name {
	case "", "zstd":
		return &parquet.Zstd, nil
	case "snappy":
		return &parquet.Snappy, nil
	case "uncompressed":
		return &parquet.Uncompressed, nil
	}
	return nil, fmt.Errorf("unsupported compression %q", name)
}

// WritePartition writes one partition's events to a fresh parquet file under
// the hive-style partition directory and returns the file path. File names
// carry a UUID so re-preparing never clobbers a file mid-read.
func (s *Store) WritePartition(key partition.Key, events []Event, codec compress.Codec) (string, error) {
	dir := filepath.Join(s.EventsDir(), filepath.FromSlash(key.Dir()))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating partition dir %s: %w", dir, err)
	}

	path := filepath.Join(dir, "part-"+uuid.NewString()+".parquet")
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating partition file %s: %w", path, err)
	}
	defer file.Close()

	writer := parquet.NewGenericWriter[Event](file, parquet.Compression(codec))
	if _, err := writer.Write(events); err != nil {
		return "", fmt.Errorf("writing partition %s: %w", key.Dir(), err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("closing partition file %s: %w", path, err)
	}
	return path, nil
}

// WriteSummary writes aggregated rows to a self-describing summary parquet
// file at location (relative to the store root). The schema is inferred from
// the row values; every field is optional so NULL aggregates round-trip.
func (s *Store) WriteSummary(location string, columns []string, rows []exec.Row, codec compress.Codec) error {
	path := location
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.root, location)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating summary dir: %w", err)
	}

	schema, err := summarySchema(columns, rows)
	if err != nil {
		return fmt.Errorf("summary schema for %s: %w", location, err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating summary file %s: %w", path, err)
	}
	defer file.Close()

	writer := parquet.NewGenericWriter[map[string]any](file, schema, parquet.Compression(codec))

	records := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		record := make(map[string]any, len(columns))
		for _, col := range columns {
			if v := row[col]; v != nil {
				record[col] = v
			}
		}
		records = append(records, record)
	}
	if _, err := writer.Write(records); err != nil {
		return fmt.Errorf("writing summary %s: %w", location, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing summary file %s: %w", path, err)
	}
	return nil
}

// summarySchema infers a parquet schema from the first non-null value seen in
// each column. A column that is null in every row falls back to optional
// double — aggregate outputs are numeric.
func summarySchema(columns []string, rows []exec.Row) (*parquet.Schema, error) {
	group := make(parquet.Group, len(columns))
	for _, col := range columns {
		var sample any
		for _, row := range rows {
			if v := row[col]; v != nil {
				sample = v
				break
			}
		}
		node, err := fieldFor(sample)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col, err)
		}
		group[col] = node
	}
	return parquet.NewSchema("summary", group), nil
}

func fieldFor(sample any) (parquet.Node, error) {
	switch sample.(type) {
	case nil:
		return parquet.Optional(parquet.Leaf(parquet.DoubleType)), nil
	case string:
		return parquet.Optional(parquet.String()), nil
	case int32:
		return parquet.Optional(parquet.Leaf(parquet.Int32Type)), nil
	case int, int64:
		return parquet.Optional(parquet.Leaf(parquet.Int64Type)), nil
	case float32, float64:
		return parquet.Optional(parquet.Leaf(parquet.DoubleType)), nil
	}
	return nil, fmt.Errorf("unsupported value type %T", sample)
}
