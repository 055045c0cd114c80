package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zip"

	"ecosnap/internal/status"
)

// Write reconstructs a container from a working directory laid out the
// way Extract produces it. The zip is built at a temporary path next to
// outputPath, verified by re-opening and counting members, then renamed
// into place. On any failure the temporary file is removed and an
// existing file at outputPath is left untouched.
func Write(workingDir, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return status.E(status.StorageError, outputPath, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(outputPath), ".ecosnap-*.zip.tmp")
	if err != nil {
		return status.E(status.StorageError, outputPath, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	written, err := writeZip(tmp, workingDir)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		cleanup()
		return status.E(status.StorageError, outputPath, err)
	}
	if written == 0 {
		cleanup()
		return status.Ef(status.StorageError, outputPath, "working directory %s holds no archive members", workingDir)
	}

	// Verify the container is re-openable and complete before it
	// becomes visible under the final name.
	got, err := MemberCount(tmpPath)
	if err != nil {
		cleanup()
		return status.E(status.CorruptArchive, outputPath, err)
	}
	if got != written {
		cleanup()
		return status.Ef(status.CorruptArchive, outputPath, "verification: wrote %d members, re-read %d", written, got)
	}

	if err := os.Rename(tmpPath, outputPath); err != nil {
		cleanup()
		return status.E(status.StorageError, outputPath, err)
	}
	return nil
}

func writeZip(w io.Writer, workingDir string) (int, error) {
	zw := zip.NewWriter(w)
	written := 0

	add := func(diskPath, entryName string) error {
		src, err := os.Open(diskPath)
		if err != nil {
			return err
		}
		defer src.Close()

		dst, err := zw.Create(entryName)
		if err != nil {
			return err
		}
		if _, err := io.Copy(dst, src); err != nil {
			return err
		}
		written++
		return nil
	}

	if _, err := os.Stat(filepath.Join(workingDir, MetadataName)); err == nil {
		if err := add(filepath.Join(workingDir, MetadataName), MetadataName); err != nil {
			return written, err
		}
	}

	for _, sub := range []string{OrganismDir, EggDir, ImageDir} {
		names, err := sortedDirEntries(filepath.Join(workingDir, sub))
		if err != nil {
			return written, err
		}
		for _, name := range names {
			entry := sub + "/" + name
			if err := add(filepath.Join(workingDir, sub, name), entry); err != nil {
				return written, fmt.Errorf("%s: %w", entry, err)
			}
		}
	}

	return written, zw.Close()
}

func sortedDirEntries(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
