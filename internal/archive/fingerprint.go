package archive

import (
	"fmt"
	"os"

	"ecosnap/internal/status"
)

// Fingerprint identifies an archive's content by size and modification
// time. Archives are only ever replaced via the atomic writer, which
// always produces a fresh mtime, so the pair changes whenever content
// does.
func Fingerprint(archivePath string) (string, error) {
	fi, err := os.Stat(archivePath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", status.E(status.NotFound, archivePath, err)
		}
		return "", status.E(status.StorageError, archivePath, err)
	}
	return fmt.Sprintf("%x-%x", fi.Size(), fi.ModTime().UnixNano()), nil
}
