// Package exec evaluates queries over in-memory row sets: conjunctive
// filtering, hash group-by with exact decimal accumulation, aggregate
// recombination for summary-backed queries, ordering, and limits. Everything
// here is pure and stateless; callers may evaluate any number of queries
// concurrently.
package exec

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Row is one record, keyed by column name. Values come straight out of the
// parquet reader (strings, integers, floats) or out of an aggregation step
// (float64, int64, nil for SQL NULL).
type Row map[string]any

func toFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	}
	return 0, false
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch val := v.(type) {
	case float64:
		return decimal.NewFromFloat(val), true
	case float32:
		return decimal.NewFromFloat32(val), true
	case int:
		return decimal.NewFromInt(int64(val)), true
	case int32:
		return decimal.NewFromInt32(val), true
	case int64:
		return decimal.NewFromInt(val), true
	case uint32:
		return decimal.NewFromInt(int64(val)), true
	case uint64:
		return decimal.NewFromUint64(val), true
	}
	return decimal.Decimal{}, false
}

func toString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
