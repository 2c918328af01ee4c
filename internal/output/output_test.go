package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lakeview-lab/eventlake/internal/exec"
)

var testColumns = []string{"day", "sum(bid_price)", "count(*)"}

var testRows = []exec.Row{
	{"day": "2024-10-20", "sum(bid_price)": 4.0, "count(*)": int64(3)},
	{"day": "2024-10-21", "sum(bid_price)": nil, "count(*)": int64(0)},
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, testColumns, testRows))

	want := "day,sum(bid_price),count(*)\n" +
		"2024-10-20,4,3\n" +
		"2024-10-21,,0\n"
	require.Equal(t, want, buf.String())
}

func TestWriteCSV_FloatKeepsShortestForm(t *testing.T) {
	var buf bytes.Buffer
	rows := []exec.Row{{"v": 2.6666666666666665}}
	require.NoError(t, WriteCSV(&buf, []string{"v"}, rows))
	require.Equal(t, "v\n2.6666666666666665\n", buf.String())
}

func TestWriteJSONLines(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSONLines(&buf, testColumns, testRows))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.JSONEq(t, `{"day":"2024-10-20","sum(bid_price)":4,"count(*)":3}`, lines[0])
	require.JSONEq(t, `{"day":"2024-10-21","sum(bid_price)":null,"count(*)":0}`, lines[1])
}

func TestWriteJSONLines_IgnoresExtraRowKeys(t *testing.T) {
	var buf bytes.Buffer
	rows := []exec.Row{{"day": "2024-10-20", "stray": 1}}
	require.NoError(t, WriteJSONLines(&buf, []string{"day"}, rows))
	require.JSONEq(t, `{"day":"2024-10-20"}`, strings.TrimSpace(buf.String()))
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	RenderTable(&buf, testColumns, testRows)

	out := buf.String()
	require.Contains(t, out, "sum(bid_price)")
	require.Contains(t, out, "2024-10-20")
	require.Contains(t, out, "4")
}
