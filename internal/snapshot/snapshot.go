// Package snapshot assembles the in-memory population extracted from
// one archive: organism records, the metadata document and the egg
// files carried alongside. A snapshot is read-only after Load.
package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"ecosnap/internal/archive"
	"ecosnap/internal/record"
	"ecosnap/internal/status"
)

type Snapshot struct {
	// Dir is the extraction-cache working directory this snapshot was
	// loaded from.
	Dir  string
	Meta record.Metadata

	// Organisms are ordered by their entry number.
	Organisms []*record.Organism

	// EggFiles and ImageFiles are carried through merges unparsed.
	EggFiles   []string
	ImageFiles []string

	// Issues holds per-record failures (unparsable or
	// schema-violating documents). They are reported, not fatal.
	Issues []error
}

var entryNum = regexp.MustCompile(`_(\d+)\.json$`)

// Load reads an extracted working directory. Per-record decode and
// validation failures are collected into Issues so one bad organism
// never hides the rest of the population.
func Load(dir string) (*Snapshot, error) {
	metaRaw, err := os.ReadFile(filepath.Join(dir, archive.MetadataName))
	if err != nil {
		return nil, status.E(status.CorruptArchive, dir, fmt.Errorf("read metadata: %w", err))
	}
	meta, err := record.DecodeMetadata(metaRaw)
	if err != nil {
		return nil, status.E(status.CorruptArchive, dir, err)
	}

	snap := &Snapshot{Dir: dir, Meta: meta}

	organismPaths, err := numberedDocs(filepath.Join(dir, archive.OrganismDir))
	if err != nil {
		return nil, status.E(status.StorageError, dir, err)
	}
	for _, p := range organismPaths {
		raw, err := os.ReadFile(p)
		if err != nil {
			snap.Issues = append(snap.Issues, status.E(status.StorageError, filepath.Base(p), err))
			continue
		}
		o, err := record.DecodeOrganism(filepath.Base(p), raw)
		if err != nil {
			snap.Issues = append(snap.Issues, status.E(status.SchemaViolation, filepath.Base(p), err))
			continue
		}
		if err := o.Validate(); err != nil {
			snap.Issues = append(snap.Issues, err)
			continue
		}
		snap.Organisms = append(snap.Organisms, o)
	}

	snap.EggFiles, err = numberedDocs(filepath.Join(dir, archive.EggDir))
	if err != nil {
		return nil, status.E(status.StorageError, dir, err)
	}
	snap.ImageFiles, err = plainFiles(filepath.Join(dir, archive.ImageDir))
	if err != nil {
		return nil, status.E(status.StorageError, dir, err)
	}

	return snap, nil
}

// MaxID reports the highest organism id in the snapshot, 0 when empty.
func (s *Snapshot) MaxID() int64 {
	var max int64
	for _, o := range s.Organisms {
		if id, ok := o.ID(); ok && id > max {
			max = id
		}
	}
	return max
}

// IDs collects every organism id present.
func (s *Snapshot) IDs() map[int64]struct{} {
	ids := make(map[int64]struct{}, len(s.Organisms))
	for _, o := range s.Organisms {
		if id, ok := o.ID(); ok {
			ids[id] = struct{}{}
		}
	}
	return ids
}

func numberedDocs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	type numbered struct {
		n    int
		path string
	}
	docs := make([]numbered, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := entryNum.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		docs = append(docs, numbered{n: n, path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].n < docs[j].n })

	paths := make([]string, len(docs))
	for i, d := range docs {
		paths[i] = d.path
	}
	return paths, nil
}

func plainFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
