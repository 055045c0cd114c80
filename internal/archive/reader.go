// Package archive reads and writes ecosystem snapshot containers.
// A container is a zip file holding per-organism documents, optional
// per-egg documents, one metadata document and optional images.
package archive

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zip"

	"ecosnap/internal/status"
)

const (
	OrganismDir  = "organisms"
	EggDir       = "eggs"
	ImageDir     = "images"
	MetadataName = "metadata.json"
)

var (
	organismEntry = regexp.MustCompile(`^organism_(\d+)\.json$`)
	eggEntry      = regexp.MustCompile(`^egg_(\d+)\.json$`)
)

type EntryKind int

const (
	KindUnknown EntryKind = iota
	KindOrganism
	KindEgg
	KindMetadata
	KindImage
)

// Classify maps an archive entry name to its kind and, for organism and
// egg documents, the number embedded in the filename. Entry names may
// use either path separator.
func Classify(name string) (EntryKind, int) {
	name = strings.ReplaceAll(name, `\`, "/")
	base := path.Base(name)

	if base == MetadataName {
		return KindMetadata, 0
	}
	if m := organismEntry.FindStringSubmatch(base); m != nil {
		n, _ := strconv.Atoi(m[1])
		return KindOrganism, n
	}
	if m := eggEntry.FindStringSubmatch(base); m != nil {
		n, _ := strconv.Atoi(m[1])
		return KindEgg, n
	}
	switch strings.ToLower(path.Ext(base)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp":
		return KindImage, 0
	}
	return KindUnknown, 0
}

// Stats summarizes one extraction. Per-entry failures are recorded and
// do not abort the remaining entries.
type Stats struct {
	Organisms int
	Eggs      int
	Images    int
	Skipped   int
	Errors    []string
}

// Extract unpacks a container into destDir, laying entries out as
// organisms/, eggs/, images/ and metadata.json. It fails with NotFound
// when the archive is missing and CorruptArchive when the container
// cannot be opened or holds no metadata document.
func Extract(archivePath, destDir string) (Stats, error) {
	var stats Stats

	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		if os.IsNotExist(err) {
			return stats, status.E(status.NotFound, archivePath, err)
		}
		return stats, status.E(status.CorruptArchive, archivePath, err)
	}
	defer zr.Close()

	for _, sub := range []string{OrganismDir, EggDir, ImageDir} {
		if err := os.MkdirAll(filepath.Join(destDir, sub), 0o755); err != nil {
			return stats, status.E(status.StorageError, destDir, err)
		}
	}

	sawMetadata := false
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		kind, n := Classify(f.Name)

		var target string
		switch kind {
		case KindOrganism:
			target = filepath.Join(destDir, OrganismDir, fmt.Sprintf("organism_%d.json", n))
		case KindEgg:
			target = filepath.Join(destDir, EggDir, fmt.Sprintf("egg_%d.json", n))
		case KindMetadata:
			target = filepath.Join(destDir, MetadataName)
		case KindImage:
			target = filepath.Join(destDir, ImageDir, path.Base(strings.ReplaceAll(f.Name, `\`, "/")))
		default:
			stats.Skipped++
			continue
		}

		if err := extractEntry(f, target); err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", f.Name, err))
			continue
		}

		switch kind {
		case KindOrganism:
			stats.Organisms++
		case KindEgg:
			stats.Eggs++
		case KindImage:
			stats.Images++
		case KindMetadata:
			sawMetadata = true
		}
	}

	if !sawMetadata {
		return stats, status.Ef(status.CorruptArchive, archivePath, "no %s entry", MetadataName)
	}
	return stats, nil
}

func extractEntry(f *zip.File, target string) error {
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return err
	}
	defer func() { _ = dst.Close() }()

	if _, err := io.Copy(dst, src); err != nil {
		return err
	}
	return dst.Close()
}

// MemberCount reports how many recognized entries a container holds,
// used by the writer's post-write verification.
func MemberCount(archivePath string) (int, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return 0, err
	}
	defer zr.Close()

	count := 0
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if kind, _ := Classify(f.Name); kind != KindUnknown {
			count++
		}
	}
	return count, nil
}
