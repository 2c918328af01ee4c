package query

// The event schema is fixed by the lake's storage contract. The query model
// only needs to know which columns are numeric: SUM/AVG/MIN/MAX over a
// non-numeric column is rejected at parse time, before any matching happens.

var numericColumns = map[string]bool{
	"ts":            true,
	"advertiser_id": true,
	"publisher_id":  true,
	"bid_price":     true,
	"user_id":       true,
	"total_price":   true,
}

// NumericColumn reports whether col holds numeric event data.
func NumericColumn(col string) bool {
	return numericColumns[col]
}
