// Package query resolves dot-delimited field path expressions against
// organism records, across a whole snapshot at a time.
package query

import (
	"runtime"
	"sync"

	"ecosnap/internal/record"
)

// parallelThreshold is the minimum record count worth fanning out to
// workers; below it the goroutine overhead dominates.
const parallelThreshold = 64

// Row is one record's extraction result, keyed by the organism's
// identity. Values[path] is record.Absent when the path does not
// resolve for this record; that is the whole failure surface of a
// field query. A miss never aborts the batch.
type Row struct {
	ID   int64
	File string
	Tag  string

	Values map[string]any
}

// Table is the batch result: one row per record, in snapshot order,
// with the requested paths as columns.
type Table struct {
	Paths []string
	Rows  []Row
}

// Extract runs every path against every record. workers <= 0 means
// GOMAXPROCS. Single-record extraction is the one-element batch.
func Extract(organisms []*record.Organism, paths []string, workers int) Table {
	table := Table{
		Paths: append([]string(nil), paths...),
		Rows:  make([]Row, len(organisms)),
	}

	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if len(organisms) < parallelThreshold || workers == 1 {
		for i, o := range organisms {
			table.Rows[i] = extractOne(o, table.Paths)
		}
		return table
	}

	// Each record's extraction is independent and read-only, so chunks
	// can run in any order.
	chunk := (len(organisms) + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < len(organisms); start += chunk {
		end := start + chunk
		if end > len(organisms) {
			end = len(organisms)
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				table.Rows[i] = extractOne(organisms[i], table.Paths)
			}
		}(start, end)
	}
	wg.Wait()

	return table
}

func extractOne(o *record.Organism, paths []string) Row {
	id, _ := o.ID()
	return Row{
		ID:     id,
		File:   o.File,
		Tag:    o.Tag(),
		Values: record.ResolveAll(o.Doc, paths),
	}
}

// Misses counts, per path, how many records lacked the field. The CLI
// surfaces this so silent typos in path expressions are visible.
func (t Table) Misses() map[string]int {
	misses := make(map[string]int, len(t.Paths))
	for _, row := range t.Rows {
		for _, p := range t.Paths {
			if record.IsAbsent(row.Values[p]) {
				misses[p]++
			}
		}
	}
	return misses
}
