package archive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"

	"ecosnap/internal/status"
)

func writeTestArchive(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, body := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		kind EntryKind
		n    int
	}{
		{"organisms/organism_5.json", KindOrganism, 5},
		{`organisms\organism_17.json`, KindOrganism, 17},
		{"eggs/egg_2.json", KindEgg, 2},
		{"metadata.json", KindMetadata, 0},
		{"images/world.png", KindImage, 0},
		{"notes.txt", KindUnknown, 0},
		{"organisms/organism_x.json", KindUnknown, 0},
	}
	for _, tt := range tests {
		kind, n := Classify(tt.name)
		if kind != tt.kind || n != tt.n {
			t.Errorf("Classify(%q)=(%v,%d) want (%v,%d)", tt.name, kind, n, tt.kind, tt.n)
		}
	}
}

func TestExtract_LaysOutWorkingDir(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "save.zip")
	writeTestArchive(t, zipPath, map[string]string{
		"organisms/organism_0.json": `{"identity":{"id":0}}`,
		"organisms/organism_1.json": `{"identity":{"id":1}}`,
		"eggs/egg_0.json":           `{"parent":0}`,
		"metadata.json":             `{"worldRadius":100,"zones":[]}`,
		"images/shot.png":           "PNGDATA",
		"junk/readme.txt":           "ignore me",
	})

	dest := filepath.Join(dir, "out")
	stats, err := Extract(zipPath, dest)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if stats.Organisms != 2 || stats.Eggs != 1 || stats.Images != 1 || stats.Skipped != 1 {
		t.Fatalf("stats=%+v", stats)
	}
	if len(stats.Errors) != 0 {
		t.Fatalf("errors=%v", stats.Errors)
	}

	for _, rel := range []string{
		"organisms/organism_0.json",
		"organisms/organism_1.json",
		"eggs/egg_0.json",
		"metadata.json",
		"images/shot.png",
	} {
		if _, err := os.Stat(filepath.Join(dest, rel)); err != nil {
			t.Errorf("missing %s: %v", rel, err)
		}
	}
}

func TestExtract_MissingArchive(t *testing.T) {
	_, err := Extract(filepath.Join(t.TempDir(), "nope.zip"), t.TempDir())
	if status.KindOf(err) != status.NotFound {
		t.Fatalf("want NotFound, got %v", err)
	}
}

func TestExtract_CorruptContainer(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.zip")
	if err := os.WriteFile(bad, []byte("this is not a zip"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := Extract(bad, filepath.Join(dir, "out"))
	if status.KindOf(err) != status.CorruptArchive {
		t.Fatalf("want CorruptArchive, got %v", err)
	}
}

func TestExtract_RequiresMetadata(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "nometa.zip")
	writeTestArchive(t, zipPath, map[string]string{
		"organisms/organism_0.json": `{}`,
	})
	_, err := Extract(zipPath, filepath.Join(dir, "out"))
	if status.KindOf(err) != status.CorruptArchive {
		t.Fatalf("want CorruptArchive for missing metadata, got %v", err)
	}
}

func TestWrite_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.zip")
	writeTestArchive(t, src, map[string]string{
		"organisms/organism_3.json": `{"identity":{"id":3,"tag":"A"}}`,
		"eggs/egg_1.json":           `{"parent":3}`,
		"metadata.json":             `{"worldRadius":500,"zones":[]}`,
	})

	work := filepath.Join(dir, "work")
	if _, err := Extract(src, work); err != nil {
		t.Fatalf("extract: %v", err)
	}

	out := filepath.Join(dir, "rebuilt.zip")
	if err := Write(work, out); err != nil {
		t.Fatalf("write: %v", err)
	}

	rework := filepath.Join(dir, "rework")
	stats, err := Extract(out, rework)
	if err != nil {
		t.Fatalf("re-extract: %v", err)
	}
	if stats.Organisms != 1 || stats.Eggs != 1 {
		t.Fatalf("round-trip stats=%+v", stats)
	}

	before, _ := os.ReadFile(filepath.Join(work, "organisms", "organism_3.json"))
	after, _ := os.ReadFile(filepath.Join(rework, "organisms", "organism_3.json"))
	if string(before) != string(after) {
		t.Fatalf("organism document changed across round trip:\n%s\n%s", before, after)
	}
}

func TestWrite_FailureLeavesDestinationUntouched(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "existing.zip")
	if err := os.WriteFile(out, []byte("precious"), 0o644); err != nil {
		t.Fatalf("seed destination: %v", err)
	}

	empty := filepath.Join(dir, "emptywork")
	if err := os.MkdirAll(empty, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	err := Write(empty, out)
	if err == nil {
		t.Fatalf("writing an empty working dir must fail")
	}

	got, rerr := os.ReadFile(out)
	if rerr != nil || string(got) != "precious" {
		t.Fatalf("destination was touched: %q %v", got, rerr)
	}

	leftovers, _ := filepath.Glob(filepath.Join(dir, ".ecosnap-*"))
	if len(leftovers) != 0 {
		t.Fatalf("temp files not cleaned up: %v", leftovers)
	}
}

func TestFingerprint_ChangesWithContent(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.zip")
	if err := os.WriteFile(p, []byte("one"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	fp1, err := Fingerprint(p)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	fp2, err := Fingerprint(p)
	if err != nil || fp1 != fp2 {
		t.Fatalf("fingerprint unstable without modification: %q vs %q (%v)", fp1, fp2, err)
	}

	if err := os.WriteFile(p, []byte("different content"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	fp3, err := Fingerprint(p)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	if fp3 == fp1 {
		t.Fatalf("fingerprint did not change with content")
	}

	if _, err := Fingerprint(filepath.Join(dir, "missing.zip")); status.KindOf(err) != status.NotFound {
		t.Fatalf("want NotFound for missing archive, got %v", err)
	}
}
