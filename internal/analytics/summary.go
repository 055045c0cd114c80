// Package analytics aggregates snapshot populations into per-group
// statistics and diffs populations across snapshots.
package analytics

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"ecosnap/internal/record"
)

const (
	GroupByTag     = "tag"
	GroupBySpecies = "species"
)

type SummaryOptions struct {
	// GroupBy is GroupByTag (default) or GroupBySpecies.
	GroupBy string
	// Fields names numeric paths to compute mean/variance for.
	Fields []string
	// ExtinctionThreshold flags groups with strictly fewer organisms.
	ExtinctionThreshold int
}

type FieldStat struct {
	Mean     float64
	Variance float64
	// Count is how many records in the group had a numeric value.
	Count int
}

type GroupStat struct {
	Group string `csv:"group"`
	Count int    `csv:"count"`
	// SharePct is the group's population share in percent.
	SharePct float64 `csv:"share_pct"`
	// AtRisk marks groups under the extinction threshold.
	AtRisk bool `csv:"at_risk"`

	Fields map[string]FieldStat `csv:"-"`
}

type Summary struct {
	GroupBy string
	Total   int
	Groups  []GroupStat
}

// groupKey resolves the grouping label for one organism. Records
// missing the key group under "unknown" rather than vanishing.
func groupKey(o *record.Organism, groupBy string) string {
	switch groupBy {
	case GroupBySpecies:
		if id, ok := o.SpeciesID(); ok {
			return fmt.Sprintf("species_%d", id)
		}
		return "unknown"
	default:
		if tag := o.Tag(); tag != "" {
			return tag
		}
		return "unknown"
	}
}

// Summarize groups a population and computes counts, shares and any
// requested per-field statistics. Groups come out largest first, ties
// by name.
func Summarize(organisms []*record.Organism, opts SummaryOptions) Summary {
	if opts.GroupBy == "" {
		opts.GroupBy = GroupByTag
	}

	counts := map[string]int{}
	samples := map[string]map[string][]float64{}
	for _, o := range organisms {
		key := groupKey(o, opts.GroupBy)
		counts[key]++
		for _, path := range opts.Fields {
			if v, ok := record.Number(record.Resolve(o.Doc, path)); ok {
				if samples[key] == nil {
					samples[key] = map[string][]float64{}
				}
				samples[key][path] = append(samples[key][path], v)
			}
		}
	}

	total := len(organisms)
	summary := Summary{GroupBy: opts.GroupBy, Total: total}
	for key, n := range counts {
		gs := GroupStat{
			Group:  key,
			Count:  n,
			AtRisk: opts.ExtinctionThreshold > 0 && n < opts.ExtinctionThreshold,
		}
		if total > 0 {
			gs.SharePct = float64(n) / float64(total) * 100
		}
		if fields := samples[key]; fields != nil {
			gs.Fields = make(map[string]FieldStat, len(fields))
			for path, vals := range fields {
				fs := FieldStat{Mean: stat.Mean(vals, nil), Count: len(vals)}
				if len(vals) > 1 {
					fs.Variance = stat.Variance(vals, nil)
				}
				gs.Fields[path] = fs
			}
		}
		summary.Groups = append(summary.Groups, gs)
	}

	sort.Slice(summary.Groups, func(i, j int) bool {
		if summary.Groups[i].Count != summary.Groups[j].Count {
			return summary.Groups[i].Count > summary.Groups[j].Count
		}
		return summary.Groups[i].Group < summary.Groups[j].Group
	})
	return summary
}

// AtRisk lists the groups flagged under the extinction threshold.
func (s Summary) AtRisk() []string {
	var out []string
	for _, g := range s.Groups {
		if g.AtRisk {
			out = append(out, g.Group)
		}
	}
	return out
}
