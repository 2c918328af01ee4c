package partition

import (
	"testing"

	"github.com/lakeview-lab/eventlake/internal/core/query"
)

func TestDirRoundTrip(t *testing.T) {
	key := Key{Type: "impression", Day: "2024-06-01"}
	if got := key.Dir(); got != "type=impression/day=2024-06-01" {
		t.Fatalf("Dir() = %q", got)
	}

	parsed, err := ParseDir(key.Dir())
	if err != nil {
		t.Fatalf("ParseDir: %v", err)
	}
	if parsed != key {
		t.Fatalf("ParseDir round trip = %+v, want %+v", parsed, key)
	}
}

func TestParseDir_Invalid(t *testing.T) {
	for _, dir := range []string{"", "impression/2024-06-01", "type=/day=2024-06-01", "type=impression", "day=2024-06-01/type=impression"} {
		if _, err := ParseDir(dir); err == nil {
			t.Errorf("ParseDir(%q) succeeded, want error", dir)
		}
	}
}

func TestPrune(t *testing.T) {
	keys := []Key{
		{Type: "impression", Day: "2024-06-01"},
		{Type: "impression", Day: "2024-06-02"},
		{Type: "click", Day: "2024-06-01"},
		{Type: "purchase", Day: "2024-06-03"},
	}

	tests := []struct {
		name    string
		filters []query.Filter
		want    int
	}{
		{"no filters keeps all", nil, 4},
		{"type equality", []query.Filter{{Column: "type", Op: query.OpEq, Value: "impression"}}, 2},
		{"type and day", []query.Filter{
			{Column: "type", Op: query.OpEq, Value: "impression"},
			{Column: "day", Op: query.OpEq, Value: "2024-06-01"},
		}, 1},
		{"day range", []query.Filter{
			{Column: "day", Op: query.OpBetween, Value: []any{"2024-06-01", "2024-06-02"}},
		}, 3},
		{"day lower bound", []query.Filter{{Column: "day", Op: query.OpGte, Value: "2024-06-02"}}, 2},
		{"non-partition column ignored", []query.Filter{{Column: "country", Op: query.OpEq, Value: "US"}}, 4},
		{"no partition can match", []query.Filter{{Column: "type", Op: query.OpEq, Value: "install"}}, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Prune(keys, tc.filters)
			if len(got) != tc.want {
				t.Fatalf("Prune kept %d partitions, want %d", len(got), tc.want)
			}
		})
	}
}

func TestMatch_KeepsPartitionOnUnrecognizedValueShape(t *testing.T) {
	// Pruning must never drop a partition it cannot reason about.
	key := Key{Type: "impression", Day: "2024-06-01"}
	if !key.Match([]query.Filter{{Column: "day", Op: query.OpEq, Value: 20240601}}) {
		t.Fatal("numeric day filter pruned a partition; pruning must be conservative")
	}
}
