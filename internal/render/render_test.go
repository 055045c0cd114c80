package render

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"testing"

	"ecosnap/internal/analytics"
	"ecosnap/internal/query"
	"ecosnap/internal/record"
	"ecosnap/internal/zone"
)

func sampleTable(t *testing.T) query.Table {
	t.Helper()
	docs := []string{
		`{"identity": {"id": 1, "tag": "A", "speciesId": 1, "generation": 0},
		  "genetics": {"SizeRatio": 0.5},
		  "brain": {"nodes": [], "synapses": []},
		  "physiology": {"age": 0, "energy": 12.5, "health": 1, "position": {"x": 0, "y": 0}}}`,
		`{"identity": {"id": 2, "tag": "B", "speciesId": 1, "generation": 0},
		  "genetics": {},
		  "brain": {"nodes": [], "synapses": []},
		  "physiology": {"age": 0, "energy": 20, "health": 1, "position": {"x": 0, "y": 0}}}`,
	}
	var organisms []*record.Organism
	for i, d := range docs {
		o, err := record.DecodeOrganism(fmt.Sprintf("organism_%d.json", i+1), []byte(d))
		if err != nil {
			t.Fatalf("fixture: %v", err)
		}
		organisms = append(organisms, o)
	}
	return query.Extract(organisms, []string{"physiology.energy", "genetics.SizeRatio"}, 1)
}

func TestQueryTable_CSVLeavesMissesEmpty(t *testing.T) {
	var buf strings.Builder
	if err := QueryTable(&buf, sampleTable(t), FormatCSV); err != nil {
		t.Fatalf("render: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines=%q", lines)
	}
	if lines[0] != "id,file,physiology.energy,genetics.SizeRatio" {
		t.Fatalf("header=%q", lines[0])
	}
	if lines[1] != "1,organism_1.json,12.5,0.5" {
		t.Fatalf("row=%q", lines[1])
	}
	// The second record has no SizeRatio; the cell is empty, not an
	// error.
	if lines[2] != "2,organism_2.json,20," {
		t.Fatalf("row=%q", lines[2])
	}
}

func TestQueryTable_JSONUsesNullForMisses(t *testing.T) {
	var buf strings.Builder
	if err := QueryTable(&buf, sampleTable(t), FormatJSON); err != nil {
		t.Fatalf("render: %v", err)
	}
	var rows []map[string]any
	if err := json.Unmarshal([]byte(buf.String()), &rows); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows=%d", len(rows))
	}
	values := rows[1]["values"].(map[string]any)
	if v, present := values["genetics.SizeRatio"]; !present || v != nil {
		t.Fatalf("miss should be an explicit null, got %v", v)
	}
	if values["physiology.energy"] != 20.0 {
		t.Fatalf("energy=%v", values["physiology.energy"])
	}
}

func TestQueryTable_TableMarksMisses(t *testing.T) {
	var buf strings.Builder
	if err := QueryTable(&buf, sampleTable(t), FormatTable); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "physiology.energy") {
		t.Fatalf("missing header: %q", out)
	}
	if !strings.Contains(out, "-") {
		t.Fatalf("miss marker not rendered: %q", out)
	}
}

func TestSummary_CSVHasTaggedColumns(t *testing.T) {
	s := analytics.Summary{
		GroupBy: analytics.GroupByTag,
		Total:   3,
		Groups: []analytics.GroupStat{
			{Group: "A", Count: 2, SharePct: 66.7},
			{Group: "B", Count: 1, SharePct: 33.3, AtRisk: true},
		},
	}
	var buf strings.Builder
	if err := Summary(&buf, s, FormatCSV); err != nil {
		t.Fatalf("render: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if lines[0] != "group,count,share_pct,at_risk" {
		t.Fatalf("header=%q", lines[0])
	}
	if !strings.HasPrefix(lines[2], "B,1,") || !strings.HasSuffix(lines[2], "true") {
		t.Fatalf("risk row=%q", lines[2])
	}
}

func TestDiff_TableShowsEmergedAsNew(t *testing.T) {
	var buf strings.Builder
	err := Diff(&buf, []analytics.DiffRow{
		{Group: "E", Before: 0, After: 4, Delta: 4, Status: analytics.StatusEmerged, PercentChange: math.Inf(1)},
	}, FormatTable)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(buf.String(), "new") || !strings.Contains(buf.String(), "emerged") {
		t.Fatalf("output=%q", buf.String())
	}
}

func TestDiff_JSONEncodesEmergedGroups(t *testing.T) {
	rows := []analytics.DiffRow{
		{Group: "A", Before: 50, After: 70, Delta: 20, Status: analytics.StatusGrown, PercentChange: 40},
		{Group: "E", Before: 0, After: 4, Delta: 4, Status: analytics.StatusEmerged, PercentChange: math.Inf(1)},
	}

	var buf strings.Builder
	if err := Diff(&buf, rows, FormatJSON); err != nil {
		t.Fatalf("render: %v", err)
	}
	var decoded []map[string]any
	if err := json.Unmarshal([]byte(buf.String()), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("rows=%d", len(decoded))
	}
	if decoded[0]["percentChange"] != 40.0 || decoded[0]["status"] != "grown" {
		t.Fatalf("finite row=%v", decoded[0])
	}
	emerged := decoded[1]
	if emerged["status"] != "emerged" || emerged["after"] != 4.0 {
		t.Fatalf("emerged row=%v", emerged)
	}
	if v, present := emerged["percentChange"]; !present || v != nil {
		t.Fatalf("emerged percent change should be an explicit null, got %v", v)
	}
}

func TestZones_FlattensTagBreakdown(t *testing.T) {
	counts := []zone.Count{
		{Zone: "Core", Total: 3, ByTag: map[string]int{"B": 1, "A": 2}, Share: 0.75, MeanR: 12.5},
		{Zone: zone.Unclassified, Total: 1, ByTag: map[string]int{"": 1}, Share: 0.25},
	}
	var buf strings.Builder
	if err := Zones(&buf, counts, FormatCSV); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "A=2;B=1") {
		t.Fatalf("tag breakdown not sorted/flattened: %q", out)
	}
	if !strings.Contains(out, "untagged=1") {
		t.Fatalf("empty tag not labeled: %q", out)
	}
}

func TestParseFormat(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want Format
		ok   bool
	}{
		{"json", FormatJSON, true},
		{"table", FormatTable, true},
		{"csv", FormatCSV, true},
		{"", FormatTable, true},
		{"yaml", "", false},
	} {
		got, err := ParseFormat(tt.in)
		if tt.ok != (err == nil) || got != tt.want {
			t.Fatalf("ParseFormat(%q)=%v,%v", tt.in, got, err)
		}
	}
}
