package exec

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/lakeview-lab/eventlake/internal/core/query"
	"github.com/lakeview-lab/eventlake/internal/core/router"
)

// accumulator folds one aggregate over the values of one group. Sums and
// counts use exact decimal arithmetic so results do not depend on row order.
type accumulator struct {
	sum   decimal.Decimal
	min   decimal.Decimal
	max   decimal.Decimal
	count int64
}

func (a *accumulator) add(v decimal.Decimal) {
	if a.count == 0 {
		a.min, a.max = v, v
	} else {
		if v.LessThan(a.min) {
			a.min = v
		}
		if v.GreaterThan(a.max) {
			a.max = v
		}
	}
	a.sum = a.sum.Add(v)
	a.count++
}

type group struct {
	values Row   // grouping column values
	rows   []Row // member rows
}

// groupRows hash-partitions rows by the grouping columns, preserving first-seen
// group order so repeated runs produce identical row order before sorting.
// With no grouping columns, all rows form one global group (and an empty input
// still yields that one group, so COUNT over nothing returns 0, not no rows).
func groupRows(rows []Row, groupBy []string) []*group {
	if len(groupBy) == 0 {
		return []*group{{values: Row{}, rows: rows}}
	}

	index := make(map[string]*group)
	var ordered []*group

	for _, row := range rows {
		var key strings.Builder
		values := make(Row, len(groupBy))
		for i, col := range groupBy {
			if i > 0 {
				key.WriteByte(0)
			}
			key.WriteString(toString(row[col]))
			values[col] = row[col]
		}
		g, ok := index[key.String()]
		if !ok {
			g = &group{values: values}
			index[key.String()] = g
			ordered = append(ordered, g)
		}
		g.rows = append(g.rows, row)
	}
	return ordered
}

// Aggregate evaluates a query's select list over pre-filtered event rows:
// hash group-by, then one accumulator per aggregate per group. Bare select
// columns are grouping keys and read from the group directly.
func Aggregate(rows []Row, groupBy []string, sel []query.SelectItem) ([]Row, error) {
	groups := groupRows(rows, groupBy)
	if len(groupBy) > 0 && len(rows) == 0 {
		return []Row{}, nil
	}

	out := make([]Row, 0, len(groups))
	for _, g := range groups {
		row := make(Row, len(sel))
		for _, item := range sel {
			if item.Aggregate == nil {
				row[item.Column] = g.values[item.Column]
				continue
			}
			v, err := foldRaw(g.rows, *item.Aggregate)
			if err != nil {
				return nil, err
			}
			row[item.Aggregate.Alias()] = v
		}
		out = append(out, row)
	}
	return out, nil
}

// foldRaw computes one aggregate over raw event rows. NULL inputs are skipped;
// an aggregate with no inputs is NULL (except COUNT, which is 0).
func foldRaw(rows []Row, agg query.Aggregate) (any, error) {
	if agg.Func == query.FuncCount && agg.Column == "*" {
		return int64(len(rows)), nil
	}

	var acc accumulator
	for _, row := range rows {
		v := row[agg.Column]
		if v == nil {
			continue
		}
		if agg.Func == query.FuncCount {
			acc.count++
			continue
		}
		d, ok := toDecimal(v)
		if !ok {
			return nil, fmt.Errorf("%s: non-numeric value %T in column %q", agg.Alias(), v, agg.Column)
		}
		acc.add(d)
	}

	switch agg.Func {
	case query.FuncCount:
		return acc.count, nil
	case query.FuncSum:
		if acc.count == 0 {
			return nil, nil
		}
		return acc.sum.InexactFloat64(), nil
	case query.FuncAvg:
		if acc.count == 0 {
			return nil, nil
		}
		return acc.sum.Div(decimal.NewFromInt(acc.count)).InexactFloat64(), nil
	case query.FuncMin:
		if acc.count == 0 {
			return nil, nil
		}
		return acc.min.InexactFloat64(), nil
	case query.FuncMax:
		if acc.count == 0 {
			return nil, nil
		}
		return acc.max.InexactFloat64(), nil
	}
	return nil, fmt.Errorf("unsupported aggregate %q", agg.Func)
}

// AggregateRecombined evaluates a rewritten select list over summary rows,
// folding stored partial aggregates instead of raw values: sums are re-summed,
// counts are re-summed (never re-counted), mins re-minimized, maxes
// re-maximized, and averages divided from the re-summed sum/count pair after
// grouping.
func AggregateRecombined(rows []Row, groupBy []string, sel []router.RewrittenItem) ([]Row, error) {
	groups := groupRows(rows, groupBy)
	if len(groupBy) > 0 && len(rows) == 0 {
		return []Row{}, nil
	}

	out := make([]Row, 0, len(groups))
	for _, g := range groups {
		row := make(Row, len(sel))
		for _, item := range sel {
			if item.Recomb == nil {
				row[item.Alias] = g.values[item.Column]
				continue
			}
			v, err := foldRecombined(g.rows, *item.Recomb)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", item.Alias, err)
			}
			row[item.Alias] = v
		}
		out = append(out, row)
	}
	return out, nil
}

func foldRecombined(rows []Row, rec router.Recombination) (any, error) {
	switch rec.Kind {
	case router.ReSum:
		sum, n, err := sumColumn(rows, rec.StoredColumn)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, nil
		}
		return sum.InexactFloat64(), nil

	case router.ReCount:
		sum, _, err := sumColumn(rows, rec.StoredColumn)
		if err != nil {
			return nil, err
		}
		return sum.IntPart(), nil

	case router.AvgPair:
		sum, _, err := sumColumn(rows, rec.SumColumn)
		if err != nil {
			return nil, err
		}
		count, _, err := sumColumn(rows, rec.CountColumn)
		if err != nil {
			return nil, err
		}
		if count.IsZero() {
			return nil, nil
		}
		return sum.Div(count).InexactFloat64(), nil

	case router.ReMin, router.ReMax:
		var acc accumulator
		for _, row := range rows {
			v := row[rec.StoredColumn]
			if v == nil {
				continue
			}
			d, ok := toDecimal(v)
			if !ok {
				return nil, fmt.Errorf("non-numeric stored value %T in %q", v, rec.StoredColumn)
			}
			acc.add(d)
		}
		if acc.count == 0 {
			return nil, nil
		}
		if rec.Kind == router.ReMin {
			return acc.min.InexactFloat64(), nil
		}
		return acc.max.InexactFloat64(), nil
	}
	return nil, fmt.Errorf("unsupported recombination kind %d", rec.Kind)
}

func sumColumn(rows []Row, col string) (decimal.Decimal, int, error) {
	sum := decimal.Zero
	n := 0
	for _, row := range rows {
		v := row[col]
		if v == nil {
			continue
		}
		d, ok := toDecimal(v)
		if !ok {
			return decimal.Decimal{}, 0, fmt.Errorf("non-numeric stored value %T in %q", v, col)
		}
		sum = sum.Add(d)
		n++
	}
	return sum, n, nil
}
