// Package lake is the execution adapter over the on-disk columnar store: the
// full event dataset partitioned by (type, day) under <root>/events, and one
// self-describing parquet file per summary under <root>/summaries. It prunes
// partitions before opening files and runs routed plans end to end.
package lake

import (
	"github.com/lakeview-lab/eventlake/internal/exec"
)

// Event is the storage record of one event row, as written during prepare.
// week/day/hour/minute are derived, UTC, string-formatted so range filters
// compare chronologically. type and day also name the row's partition; they
// are kept in the file as well so every file is self-describing.
type Event struct {
	TS           int64    `parquet:"ts,timestamp(millisecond)"`
	Week         string   `parquet:"week"`
	Day          string   `parquet:"day"`
	Hour         string   `parquet:"hour"`
	Minute       string   `parquet:"minute"`
	Type         string   `parquet:"type"`
	AuctionID    string   `parquet:"auction_id"`
	AdvertiserID *int32   `parquet:"advertiser_id,optional"`
	PublisherID  *int32   `parquet:"publisher_id,optional"`
	BidPrice     *float64 `parquet:"bid_price,optional"`
	UserID       *int64   `parquet:"user_id,optional"`
	TotalPrice   *float64 `parquet:"total_price,optional"`
	Country      string   `parquet:"country"`
}

// Row converts the event to the executor's row form. Nil pointers become
// SQL-style NULLs.
func (e Event) Row() exec.Row {
	row := exec.Row{
		"ts":         e.TS,
		"week":       e.Week,
		"day":        e.Day,
		"hour":       e.Hour,
		"minute":     e.Minute,
		"type":       e.Type,
		"auction_id": e.AuctionID,
		"country":    e.Country,
	}
	if e.AdvertiserID != nil {
		row["advertiser_id"] = *e.AdvertiserID
	} else {
		row["advertiser_id"] = nil
	}
	if e.PublisherID != nil {
		row["publisher_id"] = *e.PublisherID
	} else {
		row["publisher_id"] = nil
	}
	if e.BidPrice != nil {
		row["bid_price"] = *e.BidPrice
	} else {
		row["bid_price"] = nil
	}
	if e.UserID != nil {
		row["user_id"] = *e.UserID
	} else {
		row["user_id"] = nil
	}
	if e.TotalPrice != nil {
		row["total_price"] = *e.TotalPrice
	} else {
		row["total_price"] = nil
	}
	return row
}
