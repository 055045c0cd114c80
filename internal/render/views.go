package render

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"ecosnap/internal/analytics"
	"ecosnap/internal/cache"
	"ecosnap/internal/zone"
)

func formatPct(v float64) string {
	if math.IsInf(v, 1) {
		return "new"
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Summary renders a population summary in the requested format.
func Summary(w io.Writer, s analytics.Summary, format Format) error {
	switch format {
	case FormatJSON:
		return JSON(w, s)
	case FormatCSV:
		return CSVRecords(w, s.Groups)
	default:
		headers := []string{"GROUP", "COUNT", "SHARE%", "AT-RISK"}
		rows := make([][]string, len(s.Groups))
		for i, g := range s.Groups {
			risk := ""
			if g.AtRisk {
				risk = "yes"
			}
			rows[i] = []string{g.Group, strconv.Itoa(g.Count), formatPct(g.SharePct), risk}
		}
		if err := Table(w, headers, rows); err != nil {
			return err
		}
		_, err := fmt.Fprintf(w, "total: %d organisms in %d groups\n", s.Total, len(s.Groups))
		return err
	}
}

// Diff renders a two-snapshot comparison.
func Diff(w io.Writer, rows []analytics.DiffRow, format Format) error {
	switch format {
	case FormatJSON:
		return JSON(w, rows)
	case FormatCSV:
		return CSVRecords(w, rows)
	default:
		headers := []string{"GROUP", "BEFORE", "AFTER", "DELTA", "CHANGE%", "STATUS"}
		out := make([][]string, len(rows))
		for i, r := range rows {
			out[i] = []string{
				r.Group,
				strconv.Itoa(r.Before),
				strconv.Itoa(r.After),
				strconv.Itoa(r.Delta),
				formatPct(r.PercentChange),
				string(r.Status),
			}
		}
		return Table(w, headers, out)
	}
}

// zoneRow flattens a spatial count for output; the per-tag breakdown
// becomes a stable "tag=count" list.
type zoneRow struct {
	Zone  string  `csv:"zone" json:"zone"`
	Total int     `csv:"total" json:"total"`
	Share float64 `csv:"share" json:"share"`
	MeanR float64 `csv:"mean_r" json:"meanR"`
	Tags  string  `csv:"tags" json:"tags"`
}

func flattenTags(byTag map[string]int) string {
	keys := make([]string, 0, len(byTag))
	for k := range byTag {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		name := k
		if name == "" {
			name = "untagged"
		}
		parts[i] = fmt.Sprintf("%s=%d", name, byTag[k])
	}
	return strings.Join(parts, ";")
}

// Zones renders a spatial distribution.
func Zones(w io.Writer, counts []zone.Count, format Format) error {
	rows := make([]zoneRow, len(counts))
	for i, c := range counts {
		rows[i] = zoneRow{Zone: c.Zone, Total: c.Total, Share: c.Share, MeanR: c.MeanR, Tags: flattenTags(c.ByTag)}
	}
	switch format {
	case FormatJSON:
		return JSON(w, rows)
	case FormatCSV:
		return CSVRecords(w, rows)
	default:
		headers := []string{"ZONE", "TOTAL", "SHARE", "MEAN-R", "TAGS"}
		out := make([][]string, len(rows))
		for i, r := range rows {
			out[i] = []string{
				r.Zone,
				strconv.Itoa(r.Total),
				strconv.FormatFloat(r.Share, 'f', 3, 64),
				strconv.FormatFloat(r.MeanR, 'f', 1, 64),
				r.Tags,
			}
		}
		return Table(w, headers, out)
	}
}

// Saves renders the archive listing.
func Saves(w io.Writer, infos []cache.SaveInfo, format Format) error {
	switch format {
	case FormatJSON:
		return JSON(w, infos)
	case FormatCSV:
		return CSVRecords(w, infos)
	default:
		headers := []string{"NAME", "TYPE", "SIZE", "MODIFIED", "ORGANISMS", "CACHED"}
		rows := make([][]string, len(infos))
		for i, s := range infos {
			organisms := ""
			if s.Organisms >= 0 {
				organisms = strconv.Itoa(s.Organisms)
			}
			cached := ""
			if s.Cached {
				cached = "yes"
			}
			rows[i] = []string{
				s.Name,
				s.Type,
				strconv.FormatInt(s.SizeBytes, 10),
				s.Modified.Format("2006-01-02 15:04:05"),
				organisms,
				cached,
			}
		}
		return Table(w, headers, rows)
	}
}
