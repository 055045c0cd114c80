// Package export dumps a loaded snapshot as zstd-compressed JSONL for
// downstream analysis outside this tool.
package export

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"ecosnap/internal/snapshot"
	"ecosnap/internal/status"
)

// line is one JSONL record. The first line of every export is the
// metadata record; organism lines follow in snapshot order.
type line struct {
	Kind string `json:"kind"`
	File string `json:"file,omitempty"`
	Doc  any    `json:"doc"`
}

// Snapshot writes the export and reports how many organism lines it
// contains. The file is written via a temp name and renamed into place
// so a failed export never leaves a truncated file behind.
func Snapshot(snap *snapshot.Snapshot, path string) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, status.E(status.StorageError, path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*.jsonl.zst.tmp")
	if err != nil {
		return 0, status.E(status.StorageError, path, err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	enc, err := zstd.NewWriter(tmp, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return 0, status.E(status.StorageError, path, err)
	}
	w := bufio.NewWriterSize(enc, 128*1024)

	writeLine := func(l line) error {
		b, err := json.Marshal(l)
		if err != nil {
			return err
		}
		if _, err := w.Write(b); err != nil {
			return err
		}
		return w.WriteByte('\n')
	}

	if err := writeLine(line{Kind: "metadata", Doc: snap.Meta}); err != nil {
		return 0, status.E(status.StorageError, path, err)
	}
	n := 0
	for _, o := range snap.Organisms {
		if err := writeLine(line{Kind: "organism", File: o.File, Doc: o.Doc}); err != nil {
			return 0, status.E(status.StorageError, path, err)
		}
		n++
	}

	if err := w.Flush(); err != nil {
		return 0, status.E(status.StorageError, path, err)
	}
	if err := enc.Close(); err != nil {
		return 0, status.E(status.StorageError, path, err)
	}
	if err := tmp.Close(); err != nil {
		return 0, status.E(status.StorageError, path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, status.E(status.StorageError, path, err)
	}
	return n, nil
}
