package analytics

import (
	"encoding/json"
	"math"
	"sort"

	"ecosnap/internal/record"
)

type DiffStatus string

const (
	StatusEmerged  DiffStatus = "emerged"
	StatusVanished DiffStatus = "vanished"
	StatusGrown    DiffStatus = "grown"
	StatusShrunk   DiffStatus = "shrunk"
	StatusStable   DiffStatus = "stable"
)

// DiffRow compares one group's population across two snapshots.
type DiffRow struct {
	Group  string     `csv:"group"`
	Before int        `csv:"before"`
	After  int        `csv:"after"`
	Delta  int        `csv:"delta"`
	Status DiffStatus `csv:"status"`
	// PercentChange is relative to the before count; +Inf for emerged
	// groups.
	PercentChange float64 `csv:"percent_change"`
}

// MarshalJSON renders an emerged group's percent change as null;
// encoding/json rejects infinities.
func (r DiffRow) MarshalJSON() ([]byte, error) {
	type row struct {
		Group         string     `json:"group"`
		Before        int        `json:"before"`
		After         int        `json:"after"`
		Delta         int        `json:"delta"`
		Status        DiffStatus `json:"status"`
		PercentChange *float64   `json:"percentChange"`
	}
	out := row{Group: r.Group, Before: r.Before, After: r.After, Delta: r.Delta, Status: r.Status}
	if !math.IsInf(r.PercentChange, 0) {
		out.PercentChange = &r.PercentChange
	}
	return json.Marshal(out)
}

// Diff aligns the groups of two populations and labels each with a
// growth status. tolerancePct is the stable band in percent; the band
// is measured against the larger of the two counts so that a pair of
// snapshots gets mirrored statuses regardless of diff direction.
func Diff(before, after []*record.Organism, groupBy string, tolerancePct float64) []DiffRow {
	if groupBy == "" {
		groupBy = GroupByTag
	}
	countA := map[string]int{}
	for _, o := range before {
		countA[groupKey(o, groupBy)]++
	}
	countB := map[string]int{}
	for _, o := range after {
		countB[groupKey(o, groupBy)]++
	}

	keys := map[string]struct{}{}
	for k := range countA {
		keys[k] = struct{}{}
	}
	for k := range countB {
		keys[k] = struct{}{}
	}

	rows := make([]DiffRow, 0, len(keys))
	for k := range keys {
		a, b := countA[k], countB[k]
		row := DiffRow{Group: k, Before: a, After: b, Delta: b - a}
		switch {
		case a == 0 && b > 0:
			row.Status = StatusEmerged
			row.PercentChange = math.Inf(1)
		case a > 0 && b == 0:
			row.Status = StatusVanished
			row.PercentChange = -100
		default:
			row.PercentChange = float64(b-a) / float64(a) * 100
			base := a
			if b > base {
				base = b
			}
			switch {
			case math.Abs(float64(b-a)) <= tolerancePct/100*float64(base):
				row.Status = StatusStable
			case b > a:
				row.Status = StatusGrown
			default:
				row.Status = StatusShrunk
			}
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Group < rows[j].Group })
	return rows
}
