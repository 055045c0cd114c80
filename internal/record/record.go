package record

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// utf8BOM may lead documents written by the simulation. Reads tolerate
// it; writes never emit it.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Organism is one organism document plus the entry name it came from.
// The document stays a generic value tree so the query engine can walk
// arbitrary nested fields; the typed accessors below cover the handful
// of fields the engine itself depends on.
type Organism struct {
	File string
	Doc  map[string]any
}

func DecodeOrganism(file string, raw []byte) (*Organism, error) {
	doc, err := DecodeDocument(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return &Organism{File: file, Doc: doc}, nil
}

// DecodeDocument parses a JSON document, tolerating a leading UTF-8
// byte-order marker.
func DecodeDocument(raw []byte) (map[string]any, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Encode renders the document compactly, without a BOM.
func (o *Organism) Encode() ([]byte, error) {
	return json.Marshal(o.Doc)
}

func (o *Organism) ID() (int64, bool) {
	return Int(Resolve(o.Doc, "identity.id"))
}

func (o *Organism) SetID(id int64) {
	if ident, ok := o.Doc["identity"].(map[string]any); ok {
		ident["id"] = float64(id)
	}
}

func (o *Organism) Tag() string {
	s, _ := String(Resolve(o.Doc, "identity.tag"))
	return s
}

func (o *Organism) SpeciesID() (int64, bool) {
	return Int(Resolve(o.Doc, "identity.speciesId"))
}

func (o *Organism) Generation() (int64, bool) {
	return Int(Resolve(o.Doc, "identity.generation"))
}

func (o *Organism) Position() (x, y float64, ok bool) {
	x, xok := Number(Resolve(o.Doc, "physiology.position.x"))
	y, yok := Number(Resolve(o.Doc, "physiology.position.y"))
	return x, y, xok && yok
}

func (o *Organism) SetPosition(x, y float64) {
	phys, ok := o.Doc["physiology"].(map[string]any)
	if !ok {
		return
	}
	pos, ok := phys["position"].(map[string]any)
	if !ok {
		pos = map[string]any{}
		phys["position"] = pos
	}
	pos["x"] = x
	pos["y"] = y
}

func (o *Organism) SetVitals(energy, health float64) {
	if phys, ok := o.Doc["physiology"].(map[string]any); ok {
		phys["energy"] = energy
		phys["health"] = health
	}
}

// Clone deep-copies the organism so cross-pollination never mutates a
// source snapshot.
func (o *Organism) Clone() (*Organism, error) {
	raw, err := json.Marshal(o.Doc)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return &Organism{File: o.File, Doc: doc}, nil
}

// Metadata is the per-archive world document: geometry of the resource
// zones plus world-level parameters.
type Metadata struct {
	WorldRadius float64    `json:"worldRadius"`
	Zones       []ZoneSpec `json:"zones"`
	Vitals      *Vitals    `json:"vitals,omitempty"`
}

// ZoneSpec positions a circular zone (or a ring, when InnerRadius is
// set) in coordinates relative to the world radius.
type ZoneSpec struct {
	Name        string   `json:"name"`
	Shape       string   `json:"shape,omitempty"`
	PosX        float64  `json:"posX"`
	PosY        float64  `json:"posY"`
	Radius      float64  `json:"radius"`
	InnerRadius float64  `json:"innerRadius,omitempty"`
	Resource    Resource `json:"resource"`
}

type Resource struct {
	Kind       string  `json:"kind"`
	Fertility  float64 `json:"fertility"`
	Biomass    float64 `json:"biomass"`
	PelletSize float64 `json:"pelletSize"`
}

// Vitals are the world's starting energy/health defaults, used only
// when cross-pollination is asked to adopt them.
type Vitals struct {
	Energy float64 `json:"energy"`
	Health float64 `json:"health"`
}

func DecodeMetadata(raw []byte) (Metadata, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return meta, err
	}
	if meta.WorldRadius <= 0 {
		return meta, fmt.Errorf("metadata: worldRadius must be positive, got %v", meta.WorldRadius)
	}
	return meta, nil
}

func (m Metadata) Encode() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}
