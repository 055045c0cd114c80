// Package zone assigns organism positions to the geometric resource
// zones declared in a snapshot's metadata.
//
// Every zone carries its own center: an off-center zone is classified
// by distance from that center, never by distance from the world
// origin. Concentric rings are just the degenerate case where every
// zone's center is (0,0).
package zone

import (
	"math"
	"sort"

	"ecosnap/internal/record"
)

// Unclassified labels positions no zone claims. It is always surfaced;
// organisms outside every zone are never dropped from a spatial
// summary.
const Unclassified = "unclassified"

type zone struct {
	name string
	// Center and radii in world units.
	cx, cy   float64
	outer    float64
	inner    float64
	area     float64
	declared int
}

type Classifier struct {
	zones []zone
}

// NewClassifier resolves the metadata's relative zone geometry against
// the world radius. Zones with a non-positive radius or an inner
// radius at or beyond the outer are ignored (they cannot contain any
// position).
func NewClassifier(meta record.Metadata) *Classifier {
	c := &Classifier{}
	for i, zs := range meta.Zones {
		if zs.Radius <= 0 || zs.InnerRadius < 0 || zs.InnerRadius >= zs.Radius {
			continue
		}
		outer := zs.Radius * meta.WorldRadius
		inner := zs.InnerRadius * meta.WorldRadius
		c.zones = append(c.zones, zone{
			name:     zs.Name,
			cx:       zs.PosX * meta.WorldRadius,
			cy:       zs.PosY * meta.WorldRadius,
			outer:    outer,
			inner:    inner,
			area:     math.Pi * (outer*outer - inner*inner),
			declared: i,
		})
	}
	// Precedence order: smallest enclosed area first; equal areas put
	// the later declaration first, treating it as an override.
	sort.SliceStable(c.zones, func(i, j int) bool {
		if c.zones[i].area != c.zones[j].area {
			return c.zones[i].area < c.zones[j].area
		}
		return c.zones[i].declared > c.zones[j].declared
	})
	return c
}

// Classify labels an absolute world position with the name of the
// most specific zone containing it, or Unclassified.
func (c *Classifier) Classify(x, y float64) string {
	for _, z := range c.zones {
		dx := x - z.cx
		dy := y - z.cy
		d := math.Hypot(dx, dy)
		if d >= z.inner && d <= z.outer {
			return z.name
		}
	}
	return Unclassified
}

// Labels lists zone names in declaration order, with Unclassified
// last, for stable summary output.
func (c *Classifier) Labels() []string {
	ordered := append([]zone(nil), c.zones...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].declared < ordered[j].declared })
	labels := make([]string, 0, len(ordered)+1)
	for _, z := range ordered {
		labels = append(labels, z.name)
	}
	return append(labels, Unclassified)
}

// Center reports a zone's center in world units for placement.
func (c *Classifier) Center(name string) (x, y float64, ok bool) {
	for _, z := range c.zones {
		if z.name == name {
			return z.cx, z.cy, true
		}
	}
	return 0, 0, false
}

// Count is one row of a spatial distribution: how many organisms of
// each hereditary tag sit in a zone.
type Count struct {
	Zone   string
	Total  int
	ByTag  map[string]int
	Share  float64 // fraction of the classified population
	MeanR  float64 // mean distance from world origin, world units
	organR []float64
}

// Distribution classifies a whole population and aggregates counts per
// zone. Organisms without a position are counted as Unclassified.
func Distribution(c *Classifier, organisms []*record.Organism) []Count {
	byZone := map[string]*Count{}
	total := 0
	for _, o := range organisms {
		label := Unclassified
		var r float64
		if x, y, ok := o.Position(); ok {
			label = c.Classify(x, y)
			r = math.Hypot(x, y)
		}
		cnt := byZone[label]
		if cnt == nil {
			cnt = &Count{Zone: label, ByTag: map[string]int{}}
			byZone[label] = cnt
		}
		cnt.Total++
		cnt.ByTag[o.Tag()]++
		cnt.organR = append(cnt.organR, r)
		total++
	}

	var rows []Count
	for _, label := range c.Labels() {
		cnt := byZone[label]
		if cnt == nil {
			continue
		}
		if total > 0 {
			cnt.Share = float64(cnt.Total) / float64(total)
		}
		var sum float64
		for _, r := range cnt.organR {
			sum += r
		}
		if len(cnt.organR) > 0 {
			cnt.MeanR = sum / float64(len(cnt.organR))
		}
		rows = append(rows, *cnt)
	}
	return rows
}
