// Package prepare is the data-preparation phase: it ingests raw event CSVs,
// casts and enriches them, writes the partitioned parquet dataset, and builds
// the summary tables plus their catalog specs.
package prepare

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/lakeview-lab/eventlake/internal/storage/lake"
)

// csvColumns is the expected raw header. Files may order columns differently;
// the reader maps by header name.
var csvColumns = []string{
	"ts", "type", "auction_id", "advertiser_id",
	"publisher_id", "bid_price", "user_id", "total_price", "country",
}

// ReadEventsCSV parses one raw CSV file into storage records. Rows without a
// parseable timestamp are dropped (the derived time columns would be
// meaningless); the dropped count is returned so the caller can log it.
// Empty numeric fields become NULLs, matching the source data's sparse
// columns (bid_price only on impressions/clicks, total_price on purchases).
func ReadEventsCSV(path string) (events []lake.Event, dropped int, err error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("reading header of %s: %w", path, err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, name := range csvColumns {
		if _, ok := col[name]; !ok {
			return nil, 0, fmt.Errorf("%s: missing column %q", path, name)
		}
	}

	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("reading %s: %w", path, err)
		}

		field := func(name string) string {
			i := col[name]
			if i >= len(record) {
				return ""
			}
			return record[i]
		}

		ev, ok := castEvent(field)
		if !ok {
			dropped++
			continue
		}
		events = append(events, ev)
	}
	return events, dropped, nil
}

// castEvent converts one raw record into a typed storage record, deriving
// week/day/hour/minute from the millisecond timestamp.
func castEvent(field func(string) string) (lake.Event, bool) {
	ms, err := strconv.ParseFloat(field("ts"), 64)
	if err != nil {
		return lake.Event{}, false
	}
	t := time.UnixMilli(int64(ms)).UTC()

	ev := lake.Event{
		TS:           t.UnixMilli(),
		Week:         mondayOf(t).Format("2006-01-02"),
		Day:          t.Format("2006-01-02"),
		Hour:         t.Format("2006-01-02 15:00"),
		Minute:       t.Format("2006-01-02 15:04"),
		Type:         field("type"),
		AuctionID:    field("auction_id"),
		Country:      field("country"),
		AdvertiserID: parseInt32(field("advertiser_id")),
		PublisherID:  parseInt32(field("publisher_id")),
		BidPrice:     parseFloat(field("bid_price")),
		UserID:       parseInt64(field("user_id")),
		TotalPrice:   parseFloat(field("total_price")),
	}
	return ev, true
}

// mondayOf truncates t to the Monday of its week, midnight UTC.
func mondayOf(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	year, month, day := t.AddDate(0, 0, -offset).Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func parseInt32(s string) *int32 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return nil
	}
	out := int32(v)
	return &out
}

func parseInt64(s string) *int64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
