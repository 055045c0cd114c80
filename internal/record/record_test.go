package record

import (
	"bytes"
	"strings"
	"testing"

	"ecosnap/internal/status"
)

const organismFixture = `{
  "identity": {"id": 12, "tag": "A", "speciesId": 3, "generation": 40},
  "genetics": {"SizeRatio": 0.9, "SpeedRatio": 1.1},
  "brain": {
    "nodes": [
      {"type": "input", "index": 0, "innovation": 1, "baseActivation": 0},
      {"type": "output", "index": 1, "innovation": 2, "baseActivation": 0.5}
    ],
    "synapses": [
      {"innovation": 10, "from": 0, "to": 1, "weight": 0.7, "enabled": true}
    ]
  },
  "physiology": {"age": 103.2, "energy": 54.1, "health": 1.0, "position": {"x": 120.5, "y": -44.0}},
  "description": "ambush hunter line"
}`

func TestDecodeOrganism_ToleratesBOM(t *testing.T) {
	raw := append([]byte{0xEF, 0xBB, 0xBF}, []byte(organismFixture)...)
	o, err := DecodeOrganism("organism_12.json", raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	id, ok := o.ID()
	if !ok || id != 12 {
		t.Fatalf("id=%d,%v want 12", id, ok)
	}
	if o.Tag() != "A" {
		t.Fatalf("tag=%q", o.Tag())
	}
	x, y, ok := o.Position()
	if !ok || x != 120.5 || y != -44.0 {
		t.Fatalf("position=(%v,%v,%v)", x, y, ok)
	}

	out, err := o.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if bytes.HasPrefix(out, []byte{0xEF, 0xBB, 0xBF}) {
		t.Fatalf("encoded document must not carry a BOM")
	}
}

func TestValidate_AcceptsFixture(t *testing.T) {
	o, err := DecodeOrganism("organism_12.json", []byte(organismFixture))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := o.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidate_DuplicateNodeIndex(t *testing.T) {
	bad := strings.Replace(organismFixture, `"index": 1, "innovation": 2`, `"index": 0, "innovation": 2`, 1)
	o, err := DecodeOrganism("organism_12.json", []byte(bad))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	err = o.Validate()
	if status.KindOf(err) != status.SchemaViolation {
		t.Fatalf("expected SchemaViolation, got %v", err)
	}
	if !strings.Contains(err.Error(), "organism_12.json") {
		t.Fatalf("violation must name the source entry: %v", err)
	}
}

func TestValidate_DanglingSynapse(t *testing.T) {
	bad := strings.Replace(organismFixture, `"from": 0, "to": 1`, `"from": 0, "to": 9`, 1)
	o, err := DecodeOrganism("organism_12.json", []byte(bad))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.KindOf(o.Validate()) != status.SchemaViolation {
		t.Fatalf("dangling synapse endpoint must violate schema")
	}
}

func TestValidate_DuplicateInnovation(t *testing.T) {
	extra := strings.Replace(organismFixture,
		`{"innovation": 10, "from": 0, "to": 1, "weight": 0.7, "enabled": true}`,
		`{"innovation": 10, "from": 0, "to": 1, "weight": 0.7, "enabled": true},
		 {"innovation": 10, "from": 1, "to": 0, "weight": -0.2, "enabled": false}`, 1)
	o, err := DecodeOrganism("organism_12.json", []byte(extra))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.KindOf(o.Validate()) != status.SchemaViolation {
		t.Fatalf("duplicate innovation must violate schema")
	}
}

func TestValidate_MissingSubstructure(t *testing.T) {
	o, err := DecodeOrganism("organism_0.json", []byte(`{"identity": {"id": 1, "tag": "x", "speciesId": 0, "generation": 0}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.KindOf(o.Validate()) != status.SchemaViolation {
		t.Fatalf("document without brain/physiology must violate schema")
	}
}

func TestClone_Isolated(t *testing.T) {
	o, err := DecodeOrganism("organism_12.json", []byte(organismFixture))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	cp, err := o.Clone()
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	cp.SetID(999)
	cp.SetPosition(1, 2)

	if id, _ := o.ID(); id != 12 {
		t.Fatalf("clone mutated source id: %d", id)
	}
	if x, _, _ := o.Position(); x != 120.5 {
		t.Fatalf("clone mutated source position: %v", x)
	}
	if id, _ := cp.ID(); id != 999 {
		t.Fatalf("clone id=%d want 999", id)
	}
}

func TestDecodeMetadata(t *testing.T) {
	raw := []byte(`{
	  "worldRadius": 1000,
	  "zones": [
	    {"name": "Center", "posX": 0, "posY": 0, "radius": 0.24, "resource": {"kind": "plant", "fertility": 1.2, "biomass": 400, "pelletSize": 0.5}},
	    {"name": "East", "posX": 0.252, "posY": -0.252, "radius": 0.226, "resource": {"kind": "plant", "fertility": 0.8, "biomass": 250, "pelletSize": 0.7}}
	  ]
	}`)
	meta, err := DecodeMetadata(raw)
	if err != nil {
		t.Fatalf("decode metadata: %v", err)
	}
	if len(meta.Zones) != 2 || meta.Zones[1].Name != "East" {
		t.Fatalf("zones=%+v", meta.Zones)
	}
	if meta.Zones[1].PosX != 0.252 {
		t.Fatalf("posX=%v", meta.Zones[1].PosX)
	}

	if _, err := DecodeMetadata([]byte(`{"zones": []}`)); err == nil {
		t.Fatalf("metadata without worldRadius must fail")
	}
}
