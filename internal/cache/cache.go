// Package cache turns archive selectors into ready-to-query working
// directories, extracting at most once per archive fingerprint.
//
// The extracted directory is named after the archive and its
// fingerprint, so the directory's existence is the cache hit test and
// concurrent invocations cannot disagree about what a directory
// contains. Population is atomic: extraction lands in a temp directory
// that is renamed into place, so a concurrent invocation either sees
// the complete directory or none at all.
package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"ecosnap/internal/archive"
	"ecosnap/internal/config"
	"ecosnap/internal/status"
)

// Selector denotes which archive(s) an invocation wants. Exactly one
// field may be set.
type Selector struct {
	Latest bool
	LastN  int
	Name   string
	Path   string
}

func (sel Selector) validate() error {
	n := 0
	if sel.Latest {
		n++
	}
	if sel.LastN > 0 {
		n++
	}
	if sel.Name != "" {
		n++
	}
	if sel.Path != "" {
		n++
	}
	if n != 1 {
		return fmt.Errorf("selector must set exactly one of latest/last/name/path")
	}
	return nil
}

type Store struct {
	cfg config.Config
	ix  *index
}

func Open(cfg config.Config) (*Store, error) {
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return nil, status.E(status.StorageError, cfg.CacheDir, err)
	}
	ix, err := openIndex(filepath.Join(cfg.CacheDir, "index.db"))
	if err != nil {
		return nil, status.E(status.StorageError, cfg.CacheDir, err)
	}
	return &Store{cfg: cfg, ix: ix}, nil
}

func (s *Store) Close() error { return s.ix.Close() }

// Resolve maps a selector to one or more extracted working
// directories, extracting any archive whose fingerprint has no cache
// entry. overwrite forces re-extraction even on a fingerprint match.
func (s *Store) Resolve(sel Selector, overwrite bool) ([]string, error) {
	if err := sel.validate(); err != nil {
		return nil, status.E(status.NotFound, "", err)
	}
	archives, err := s.selectArchives(sel)
	if err != nil {
		return nil, err
	}

	dirs := make([]string, 0, len(archives))
	for _, a := range archives {
		dir, err := s.ensureExtracted(a, overwrite)
		if err != nil {
			return nil, err
		}
		dirs = append(dirs, dir)
	}
	return dirs, nil
}

// ExtractedAt reports when the cache entry for an archive was
// populated, so callers can tell a cache hit from a re-extraction.
func (s *Store) ExtractedAt(archivePath string) (time.Time, bool, error) {
	fp, err := archive.Fingerprint(archivePath)
	if err != nil {
		return time.Time{}, false, err
	}
	e, ok, err := s.ix.lookup(fp)
	if err != nil {
		return time.Time{}, false, status.E(status.StorageError, archivePath, err)
	}
	return e.ExtractedAt, ok, nil
}

func (s *Store) ensureExtracted(archivePath string, overwrite bool) (string, error) {
	fp, err := archive.Fingerprint(archivePath)
	if err != nil {
		return "", err
	}

	stem := strings.TrimSuffix(filepath.Base(archivePath), filepath.Ext(archivePath))
	dest := filepath.Join(s.cfg.CacheDir, fmt.Sprintf("%s_%s", stem, fp))

	if !overwrite {
		if fi, err := os.Stat(dest); err == nil && fi.IsDir() {
			return dest, nil
		}
	}

	tmp, err := os.MkdirTemp(s.cfg.CacheDir, ".extract-*")
	if err != nil {
		return "", status.E(status.StorageError, archivePath, err)
	}
	defer func() { _ = os.RemoveAll(tmp) }()

	stats, err := archive.Extract(archivePath, tmp)
	if err != nil {
		// No cache entry is left behind for a failed extraction.
		return "", err
	}

	if overwrite {
		if err := os.RemoveAll(dest); err != nil {
			return "", status.E(status.StorageError, dest, err)
		}
	}
	if err := os.Rename(tmp, dest); err != nil {
		// A concurrent invocation extracted the same fingerprint
		// first; its directory is equally valid.
		if _, statErr := os.Stat(dest); statErr == nil {
			return dest, nil
		}
		return "", status.E(status.StorageError, dest, err)
	}

	// Replace any stale entries for this archive name.
	staleDirs, err := s.ix.dropStale(filepath.Base(archivePath), fp)
	if err != nil {
		return "", status.E(status.StorageError, archivePath, err)
	}
	for _, d := range staleDirs {
		if d != dest && strings.HasPrefix(d, s.cfg.CacheDir) {
			_ = os.RemoveAll(d)
		}
	}

	err = s.ix.record(indexEntry{
		Fingerprint: fp,
		ArchiveName: filepath.Base(archivePath),
		Dir:         dest,
		ExtractedAt: time.Now(),
		Organisms:   stats.Organisms,
		Eggs:        stats.Eggs,
		Images:      stats.Images,
	})
	if err != nil {
		return "", status.E(status.StorageError, archivePath, err)
	}
	return dest, nil
}

func (s *Store) selectArchives(sel Selector) ([]string, error) {
	switch {
	case sel.Path != "":
		if _, err := os.Stat(sel.Path); err != nil {
			return nil, status.E(status.NotFound, sel.Path, err)
		}
		return []string{sel.Path}, nil

	case sel.Latest:
		autos, err := s.autosaves()
		if err != nil {
			return nil, err
		}
		if len(autos) == 0 {
			return nil, status.Ef(status.NotFound, s.cfg.AutosavesDir(), "no autosaves found")
		}
		return autos[len(autos)-1:], nil

	case sel.LastN > 0:
		autos, err := s.autosaves()
		if err != nil {
			return nil, err
		}
		if len(autos) == 0 {
			return nil, status.Ef(status.NotFound, s.cfg.AutosavesDir(), "no autosaves found")
		}
		if sel.LastN < len(autos) {
			autos = autos[len(autos)-sel.LastN:]
		}
		return autos, nil

	default:
		return s.findByName(sel.Name)
	}
}

// autosaves lists autosave archives sorted by filename; the embedded
// timestamp makes that chronological order.
func (s *Store) autosaves() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.cfg.AutosavesDir(), "autosave_*.zip"))
	if err != nil {
		return nil, status.E(status.StorageError, s.cfg.AutosavesDir(), err)
	}
	sort.Strings(matches)
	return matches, nil
}

// findByName searches autosaves first, then manual saves, for a
// filename containing the pattern. An exact stem match wins over a
// substring match.
func (s *Store) findByName(pattern string) ([]string, error) {
	autos, err := s.autosaves()
	if err != nil {
		return nil, err
	}
	manual, err := filepath.Glob(filepath.Join(s.cfg.SavesDir, "*.zip"))
	if err != nil {
		return nil, status.E(status.StorageError, s.cfg.SavesDir, err)
	}
	sort.Strings(manual)

	var substring []string
	for _, p := range append(autos, manual...) {
		base := filepath.Base(p)
		if strings.TrimSuffix(base, ".zip") == pattern {
			return []string{p}, nil
		}
		if strings.Contains(base, pattern) {
			substring = append(substring, p)
		}
	}
	if len(substring) == 0 {
		return nil, status.Ef(status.NotFound, pattern, "no archive matches name pattern")
	}
	// Newest match by filename order.
	return substring[len(substring)-1:], nil
}

// SaveInfo is one row of the save listing. Organisms is the count
// recorded at extraction time, -1 when the archive was never
// extracted; an archive modified since its last extraction keeps the
// stale count with Cached false.
type SaveInfo struct {
	Name      string    `csv:"name"`
	Type      string    `csv:"type"`
	SizeBytes int64     `csv:"size_bytes"`
	Modified  time.Time `csv:"-"`
	Organisms int       `csv:"organisms"`
	Cached    bool      `csv:"cached"`
}

// ListSaves enumerates every known archive with its cached status.
func (s *Store) ListSaves() ([]SaveInfo, error) {
	autos, err := s.autosaves()
	if err != nil {
		return nil, err
	}
	manual, err := filepath.Glob(filepath.Join(s.cfg.SavesDir, "*.zip"))
	if err != nil {
		return nil, status.E(status.StorageError, s.cfg.SavesDir, err)
	}
	sort.Strings(manual)

	var infos []SaveInfo
	appendInfo := func(p, typ string) error {
		fi, err := os.Stat(p)
		if err != nil {
			return nil // races with deletion are not fatal to a listing
		}
		info := SaveInfo{
			Name:      filepath.Base(p),
			Type:      typ,
			SizeBytes: fi.Size(),
			Modified:  fi.ModTime(),
			Organisms: -1,
		}
		if fp, err := archive.Fingerprint(p); err == nil {
			if e, ok, err := s.ix.lookup(fp); err == nil && ok {
				info.Cached = true
				info.Organisms = e.Organisms
			} else if e, ok, err := s.ix.byName(info.Name); err == nil && ok {
				// The archive changed since its last extraction; the
				// stale count is still worth listing.
				info.Organisms = e.Organisms
			}
		}
		infos = append(infos, info)
		return nil
	}
	for _, p := range autos {
		if err := appendInfo(p, "auto"); err != nil {
			return nil, err
		}
	}
	for _, p := range manual {
		if err := appendInfo(p, "manual"); err != nil {
			return nil, err
		}
	}
	return infos, nil
}
