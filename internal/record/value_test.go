package record

import (
	"encoding/json"
	"testing"
)

func parseDoc(t *testing.T, src string) map[string]any {
	t.Helper()
	var doc map[string]any
	if err := json.Unmarshal([]byte(src), &doc); err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return doc
}

func TestResolve(t *testing.T) {
	doc := parseDoc(t, `{
	  "identity": {"id": 7, "tag": "A"},
	  "genetics": {"SizeRatio": 0.8},
	  "brain": {"nodes": [{"type": "input", "index": 0}, {"type": "output", "index": 1}]}
	}`)

	tests := []struct {
		path string
		want any
	}{
		{"identity.id", float64(7)},
		{"identity.tag", "A"},
		{"genetics.SizeRatio", 0.8},
		{"brain.nodes.1.type", "output"},
		{"brain.nodes.2.type", Absent},
		{"brain.nodes.x", Absent},
		{"identity.missing", Absent},
		{"missing.deeper.path", Absent},
		{"identity.tag.beyond", Absent},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := Resolve(doc, tt.path)
			if got != tt.want {
				t.Fatalf("Resolve(%q)=%v want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestResolveAll_MissDoesNotPoisonOthers(t *testing.T) {
	doc := parseDoc(t, `{"identity": {"tag": "B"}}`)
	got := ResolveAll(doc, []string{"identity.tag", "physiology.energy"})

	if got["identity.tag"] != "B" {
		t.Fatalf("tag=%v", got["identity.tag"])
	}
	if !IsAbsent(got["physiology.energy"]) {
		t.Fatalf("expected absent sentinel, got %v", got["physiology.energy"])
	}
}

func TestNumberAndInt(t *testing.T) {
	if _, ok := Number("5"); ok {
		t.Fatalf("string should not coerce to number")
	}
	if n, ok := Int(float64(42)); !ok || n != 42 {
		t.Fatalf("Int(42.0)=%d,%v", n, ok)
	}
	if _, ok := Int(42.5); ok {
		t.Fatalf("fractional value should not be integral")
	}
}
