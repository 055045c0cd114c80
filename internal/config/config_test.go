package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Analytics.StableTolerance != 2.0 {
		t.Fatalf("stable tolerance=%v want 2.0", cfg.Analytics.StableTolerance)
	}
	if cfg.Pollinate.PlacementRetries != 32 {
		t.Fatalf("placement retries=%d want 32", cfg.Pollinate.PlacementRetries)
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ecosnap.yaml")
	body := `
saves_dir: /srv/saves
analytics:
  stable_tolerance_pct: 5
  extinction_threshold: 4
pollinate:
  min_separation: 2.5
  adopt_target_vitals: true
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SavesDir != "/srv/saves" {
		t.Fatalf("saves_dir=%q", cfg.SavesDir)
	}
	if cfg.AutosavesDir() != filepath.Join("/srv/saves", "autosaves") {
		t.Fatalf("autosaves dir=%q", cfg.AutosavesDir())
	}
	if cfg.Analytics.StableTolerance != 5 || cfg.Analytics.ExtinctionThreshold != 4 {
		t.Fatalf("analytics not applied: %+v", cfg.Analytics)
	}
	if !cfg.Pollinate.AdoptTargetVitals || cfg.Pollinate.MinSeparation != 2.5 {
		t.Fatalf("pollinate not applied: %+v", cfg.Pollinate)
	}
}

func TestLoad_RejectsNegativeTolerance(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("analytics:\n  stable_tolerance_pct: -1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for negative tolerance")
	}
}
