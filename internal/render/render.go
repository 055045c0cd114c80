// Package render writes analysis results in the CLI's three output
// shapes: structured JSON, aligned plain-text tables and CSV.
package render

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/gocarina/gocsv"

	"ecosnap/internal/query"
	"ecosnap/internal/record"
)

type Format string

const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatTable, FormatCSV:
		return Format(s), nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("render: unknown format %q", s)
	}
}

// JSON writes any value indented, one document per call.
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// CSVRecords marshals a slice of struct rows using their csv tags.
func CSVRecords(w io.Writer, rows any) error {
	return gocsv.Marshal(rows, w)
}

// Table writes an aligned header + rows block.
func Table(w io.Writer, headers []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	writeRow := func(cells []string) {
		for i, c := range cells {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprint(tw, c)
		}
		fmt.Fprintln(tw)
	}
	writeRow(headers)
	for _, r := range rows {
		writeRow(r)
	}
	return tw.Flush()
}

// Cell formats one extracted value for tabular output. Absent fields
// show as "-" so a miss is visible without breaking the row.
func Cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		if record.IsAbsent(v) {
			return "-"
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(raw)
	}
}

// queryRow is the JSON shape of one extraction row; absent values
// render as nulls.
type queryRow struct {
	ID     int64          `json:"id"`
	File   string         `json:"file"`
	Tag    string         `json:"tag,omitempty"`
	Values map[string]any `json:"values"`
}

// QueryTable renders a field-query result. The column set is dynamic,
// so CSV goes through encoding/csv directly rather than struct tags.
func QueryTable(w io.Writer, t query.Table, format Format) error {
	switch format {
	case FormatJSON:
		rows := make([]queryRow, len(t.Rows))
		for i, r := range t.Rows {
			values := make(map[string]any, len(r.Values))
			for p, v := range r.Values {
				if record.IsAbsent(v) {
					v = nil
				}
				values[p] = v
			}
			rows[i] = queryRow{ID: r.ID, File: r.File, Tag: r.Tag, Values: values}
		}
		return JSON(w, rows)

	case FormatCSV:
		cw := csv.NewWriter(w)
		header := append([]string{"id", "file"}, t.Paths...)
		if err := cw.Write(header); err != nil {
			return err
		}
		for _, r := range t.Rows {
			cells := []string{strconv.FormatInt(r.ID, 10), r.File}
			for _, p := range t.Paths {
				v := r.Values[p]
				if record.IsAbsent(v) {
					cells = append(cells, "")
					continue
				}
				cells = append(cells, Cell(v))
			}
			if err := cw.Write(cells); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()

	default:
		headers := append([]string{"ID", "FILE"}, t.Paths...)
		rows := make([][]string, len(t.Rows))
		for i, r := range t.Rows {
			cells := []string{strconv.FormatInt(r.ID, 10), r.File}
			for _, p := range t.Paths {
				cells = append(cells, Cell(r.Values[p]))
			}
			rows[i] = cells
		}
		return Table(w, headers, rows)
	}
}
