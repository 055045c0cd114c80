package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// SavesDir holds manual save archives; autosaves live in
	// SavesDir/autosaves.
	SavesDir string `yaml:"saves_dir"`
	CacheDir string `yaml:"cache_dir"`

	Analytics Analytics `yaml:"analytics"`
	Pollinate Pollinate `yaml:"pollinate"`

	// Workers bounds the batch field-extraction pool. 0 means
	// GOMAXPROCS.
	Workers int `yaml:"workers"`
}

type Analytics struct {
	// StableTolerance is the diff percent-change band treated as
	// "stable", e.g. 2.0 for ±2%.
	StableTolerance float64 `yaml:"stable_tolerance_pct"`
	// ExtinctionThreshold flags groups with strictly fewer organisms.
	ExtinctionThreshold int `yaml:"extinction_threshold"`
}

type Pollinate struct {
	// MinSeparation is the smallest allowed distance between a placed
	// organism and any existing one, in world units.
	MinSeparation float64 `yaml:"min_separation"`
	// PlacementRetries bounds the rejection-sampling attempts per
	// organism before failing.
	PlacementRetries int `yaml:"placement_retries"`
	// AdoptTargetVitals replaces injected organisms' energy/health
	// with the target metadata defaults instead of copying source
	// values verbatim.
	AdoptTargetVitals bool `yaml:"adopt_target_vitals"`
}

func Default() Config {
	return Config{
		SavesDir: "./savefiles",
		CacheDir: "./data/cache",
		Analytics: Analytics{
			StableTolerance:     2.0,
			ExtinctionThreshold: 10,
		},
		Pollinate: Pollinate{
			MinSeparation:    1.0,
			PlacementRetries: 32,
		},
	}
}

// Load reads a YAML config; missing file yields defaults so the tool
// runs without any setup.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if cfg.Analytics.StableTolerance < 0 {
		return cfg, fmt.Errorf("%s: stable_tolerance_pct must be >= 0", filepath.Base(path))
	}
	if cfg.Pollinate.PlacementRetries <= 0 {
		cfg.Pollinate.PlacementRetries = Default().Pollinate.PlacementRetries
	}
	return cfg, nil
}

func (c Config) AutosavesDir() string {
	return filepath.Join(c.SavesDir, "autosaves")
}
