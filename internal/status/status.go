// Package status defines the failure kinds the engine reports across
// its command surface. Archive-level kinds abort an operation; the
// per-field PathMiss kind is recovered locally and only appears inside
// result sets.
package status

import (
	"errors"
	"fmt"
)

type Kind string

const (
	// Archive access.
	NotFound       Kind = "E_NOT_FOUND"
	CorruptArchive Kind = "E_CORRUPT_ARCHIVE"
	StorageError   Kind = "E_STORAGE"

	// Record-level, recovered per record.
	SchemaViolation Kind = "E_SCHEMA_VIOLATION"

	// Field-level, recovered per field. PathMiss is reserved for
	// annotating query result sets; resolution itself reports misses
	// through the record package's absent sentinel, so this kind never
	// aborts an operation and has no dedicated exit code.
	PathMiss Kind = "E_PATH_MISS"

	// Cross-pollination.
	EmptySelection   Kind = "E_EMPTY_SELECTION"
	IdSpaceExhausted Kind = "E_ID_SPACE_EXHAUSTED"
	PlacementFailed  Kind = "E_PLACEMENT_FAILED"
)

// Error carries a failure kind plus the archive/record/field that
// triggered it.
type Error struct {
	Kind    Kind
	Subject string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Subject != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Subject, e.Err)
	case e.Subject != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Subject)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a coded error. subject names the archive, record or field
// involved; err may be nil.
func E(kind Kind, subject string, err error) error {
	return &Error{Kind: kind, Subject: subject, Err: err}
}

func Ef(kind Kind, subject, format string, args ...any) error {
	return &Error{Kind: kind, Subject: subject, Err: fmt.Errorf(format, args...)}
}

// KindOf reports the failure kind of err, or "" when err carries none.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// IsKind reports whether err carries the given failure kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// ExitCode maps a failure kind to a distinct process exit status for
// the CLI layer.
func ExitCode(err error) int {
	switch KindOf(err) {
	case "":
		if err == nil {
			return 0
		}
		return 1
	case NotFound:
		return 2
	case CorruptArchive:
		return 3
	case SchemaViolation:
		return 4
	case EmptySelection:
		return 5
	case IdSpaceExhausted:
		return 6
	case PlacementFailed:
		return 7
	case StorageError:
		return 8
	default:
		return 1
	}
}
