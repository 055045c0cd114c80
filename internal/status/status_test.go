package status

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf_Wrapped(t *testing.T) {
	base := E(CorruptArchive, "autosave_1.zip", errors.New("bad central directory"))
	wrapped := fmt.Errorf("resolve: %w", base)

	if got := KindOf(wrapped); got != CorruptArchive {
		t.Fatalf("KindOf=%q want %q", got, CorruptArchive)
	}
	if !IsKind(wrapped, CorruptArchive) {
		t.Fatalf("IsKind should see through wrapping")
	}
}

func TestKindOf_Plain(t *testing.T) {
	if got := KindOf(errors.New("plain")); got != "" {
		t.Fatalf("plain error should have no kind, got %q", got)
	}
}

func TestExitCode_Distinct(t *testing.T) {
	kinds := []Kind{NotFound, CorruptArchive, SchemaViolation, EmptySelection, IdSpaceExhausted, PlacementFailed, StorageError}
	seen := map[int]Kind{}
	for _, k := range kinds {
		code := ExitCode(E(k, "", nil))
		if code == 0 {
			t.Fatalf("kind %s mapped to success exit code", k)
		}
		if prev, dup := seen[code]; dup {
			t.Fatalf("exit code %d shared by %s and %s", code, prev, k)
		}
		seen[code] = k
	}
	if ExitCode(nil) != 0 {
		t.Fatalf("nil error should exit 0")
	}
	// Field misses never abort, so the kind has no dedicated code.
	if got := ExitCode(E(PathMiss, "genetics.NoSuchGene", nil)); got != 1 {
		t.Fatalf("PathMiss should map to the generic failure code, got %d", got)
	}
}

func TestError_MessageNamesSubject(t *testing.T) {
	err := E(NotFound, "predator-run-3", nil)
	if got := err.Error(); got != "E_NOT_FOUND: predator-run-3" {
		t.Fatalf("message=%q", got)
	}
}
