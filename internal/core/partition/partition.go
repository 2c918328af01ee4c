// Package partition models the lake's physical partition key. Every stored
// event row belongs to exactly one (type, day) partition; the key is derived
// deterministically during preparation and never changes after write.
package partition

import (
	"fmt"
	"path"
	"strings"

	"github.com/lakeview-lab/eventlake/internal/core/query"
)

// Key identifies one partition of the full dataset.
type Key struct {
	Type string // event type, e.g. "impression"
	Day  string // calendar day, "2006-01-02"
}

// Dir returns the hive-style relative directory for the partition,
// e.g. "type=impression/day=2024-06-01".
func (k Key) Dir() string {
	return path.Join("type="+k.Type, "day="+k.Day)
}

// ParseDir parses a hive-style partition path back into a Key.
func ParseDir(dir string) (Key, error) {
	parts := strings.Split(path.Clean(dir), "/")
	if len(parts) != 2 {
		return Key{}, fmt.Errorf("partition dir %q: want type=<v>/day=<v>", dir)
	}
	typ, ok := strings.CutPrefix(parts[0], "type=")
	if !ok || typ == "" {
		return Key{}, fmt.Errorf("partition dir %q: missing type segment", dir)
	}
	day, ok := strings.CutPrefix(parts[1], "day=")
	if !ok || day == "" {
		return Key{}, fmt.Errorf("partition dir %q: missing day segment", dir)
	}
	return Key{Type: typ, Day: day}, nil
}

// Match reports whether the partition could contain rows satisfying every
// filter that constrains a partition column. Filters on other columns are
// ignored here — pruning is an optimization, the scan still applies the full
// filter set to every surviving row. Unrecognized value shapes keep the
// partition (never prune on uncertainty).
func (k Key) Match(filters []query.Filter) bool {
	for _, f := range filters {
		var v string
		switch f.Column {
		case "type":
			v = k.Type
		case "day":
			v = k.Day
		default:
			continue
		}
		if !satisfies(v, f) {
			return false
		}
	}
	return true
}

func satisfies(v string, f query.Filter) bool {
	if f.Op == query.OpBetween {
		bounds, ok := f.Value.([]any)
		if !ok || len(bounds) != 2 {
			return true
		}
		lo, okLo := bounds[0].(string)
		hi, okHi := bounds[1].(string)
		if !okLo || !okHi {
			return true
		}
		return v >= lo && v <= hi
	}

	want, ok := f.Value.(string)
	if !ok {
		return true
	}
	switch f.Op {
	case query.OpEq:
		return v == want
	case query.OpNe:
		return v != want
	case query.OpLt:
		return v < want
	case query.OpLte:
		return v <= want
	case query.OpGt:
		return v > want
	case query.OpGte:
		return v >= want
	}
	return true
}

// Prune filters a set of partition keys down to those that can contain
// matching rows. Day values are ISO dates, so lexicographic comparison is
// chronological comparison.
func Prune(keys []Key, filters []query.Filter) []Key {
	kept := make([]Key, 0, len(keys))
	for _, k := range keys {
		if k.Match(filters) {
			kept = append(kept, k)
		}
	}
	return kept
}
