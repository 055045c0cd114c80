package cache

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// index is the on-disk bookkeeping for extractions: one row per
// archive fingerprint. The extracted directory itself is the cache;
// the index carries timestamps and member counts for the save listing.
type index struct {
	db *sql.DB
}

type indexEntry struct {
	Fingerprint string
	ArchiveName string
	Dir         string
	ExtractedAt time.Time
	Organisms   int
	Eggs        int
	Images      int
}

func openIndex(path string) (*index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS extractions (
			fingerprint  TEXT PRIMARY KEY,
			archive_name TEXT NOT NULL,
			dir          TEXT NOT NULL,
			extracted_at TEXT NOT NULL,
			organisms    INTEGER NOT NULL,
			eggs         INTEGER NOT NULL,
			images       INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_extractions_name ON extractions(archive_name);
	`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init extraction index: %w", err)
	}
	return &index{db: db}, nil
}

func (ix *index) Close() error { return ix.db.Close() }

func (ix *index) record(e indexEntry) error {
	_, err := ix.db.Exec(`
		INSERT INTO extractions (fingerprint, archive_name, dir, extracted_at, organisms, eggs, images)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			archive_name = excluded.archive_name,
			dir          = excluded.dir,
			extracted_at = excluded.extracted_at,
			organisms    = excluded.organisms,
			eggs         = excluded.eggs,
			images       = excluded.images
	`, e.Fingerprint, e.ArchiveName, e.Dir, e.ExtractedAt.UTC().Format(time.RFC3339Nano), e.Organisms, e.Eggs, e.Images)
	return err
}

func (ix *index) lookup(fingerprint string) (indexEntry, bool, error) {
	var e indexEntry
	var at string
	err := ix.db.QueryRow(`
		SELECT fingerprint, archive_name, dir, extracted_at, organisms, eggs, images
		FROM extractions WHERE fingerprint = ?
	`, fingerprint).Scan(&e.Fingerprint, &e.ArchiveName, &e.Dir, &at, &e.Organisms, &e.Eggs, &e.Images)
	if err == sql.ErrNoRows {
		return e, false, nil
	}
	if err != nil {
		return e, false, err
	}
	e.ExtractedAt, err = time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return e, false, fmt.Errorf("extraction index: bad timestamp %q: %w", at, err)
	}
	return e, true, nil
}

// dropStale removes index rows for an archive name whose fingerprint
// no longer matches, returning the directories those rows pointed at.
func (ix *index) dropStale(archiveName, keepFingerprint string) ([]string, error) {
	rows, err := ix.db.Query(`
		SELECT fingerprint, dir FROM extractions
		WHERE archive_name = ? AND fingerprint != ?
	`, archiveName, keepFingerprint)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fps, dirs []string
	for rows.Next() {
		var fp, dir string
		if err := rows.Scan(&fp, &dir); err != nil {
			return nil, err
		}
		fps = append(fps, fp)
		dirs = append(dirs, dir)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, fp := range fps {
		if _, err := ix.db.Exec(`DELETE FROM extractions WHERE fingerprint = ?`, fp); err != nil {
			return nil, err
		}
	}
	return dirs, nil
}

func (ix *index) byName(archiveName string) (indexEntry, bool, error) {
	var e indexEntry
	var at string
	err := ix.db.QueryRow(`
		SELECT fingerprint, archive_name, dir, extracted_at, organisms, eggs, images
		FROM extractions WHERE archive_name = ?
		ORDER BY extracted_at DESC LIMIT 1
	`, archiveName).Scan(&e.Fingerprint, &e.ArchiveName, &e.Dir, &at, &e.Organisms, &e.Eggs, &e.Images)
	if err == sql.ErrNoRows {
		return e, false, nil
	}
	if err != nil {
		return e, false, err
	}
	e.ExtractedAt, _ = time.Parse(time.RFC3339Nano, at)
	return e, true, nil
}
