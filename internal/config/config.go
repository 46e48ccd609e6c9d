// Package config assembles process configuration from, in increasing precedence:
// built-in defaults, an optional YAML file, and CONJSCREEN_* environment variables.
// Command-line flags are applied on top by the CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/star/conjscreen/internal/report"
	"github.com/star/conjscreen/internal/screening"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "CONJSCREEN_"

// Config is the full process configuration.
type Config struct {
	LogLevel  string `env:"LOG_LEVEL" yaml:"log_level"`
	LogFormat string `env:"LOG_FORMAT" yaml:"log_format"`

	Catalog   Catalog   `envPrefix:"CATALOG_" yaml:"catalog"`
	Screening Screening `envPrefix:"SCREEN_" yaml:"screening"`
	Server    Server    `envPrefix:"HTTP_" yaml:"server"`
	RunCache  RunCache  `envPrefix:"RUN_CACHE_" yaml:"run_cache"`
}

// Catalog selects where orbital elements come from.
type Catalog struct {
	File      string        `env:"FILE" yaml:"file"`
	Fetch     bool          `env:"FETCH" yaml:"fetch"`
	SourceURL string        `env:"SOURCE_URL" yaml:"source_url"`
	ExtraURLs []string      `env:"EXTRA_URLS" envSeparator:"," yaml:"extra_urls"`
	CacheDir  string        `env:"CACHE_DIR" yaml:"cache_dir"`
	MaxFiles  int           `env:"MAX_FILES" yaml:"max_files"`
	MaxAge    time.Duration `env:"MAX_AGE" yaml:"max_age"`
}

// Screening holds run parameters and engine tuning.
type Screening struct {
	TargetID    int           `env:"TARGET_ID" yaml:"target_id"`
	ThresholdKm float64       `env:"THRESHOLD_KM" yaml:"threshold_km"`
	FloorKm     float64       `env:"FLOOR_KM" yaml:"floor_km"`
	Horizon     time.Duration `env:"HORIZON" yaml:"horizon"`
	Step        time.Duration `env:"STEP" yaml:"step"`
	Epoch       time.Time     `env:"EPOCH" yaml:"epoch"`
	Workers     int           `env:"WORKERS" yaml:"workers"`
	BatchSize   int           `env:"BATCH_SIZE" yaml:"batch_size"`
	Tiers       report.Tiers  `envPrefix:"TIER_" yaml:"tiers"`
}

// Server configures the HTTP surface.
type Server struct {
	Addr            string        `env:"ADDR" yaml:"addr"`
	AuthEnabled     bool          `env:"AUTH_ENABLED" yaml:"auth_enabled"`
	AuthToken       string        `env:"AUTH_TOKEN" yaml:"-"`
	TrustProxy      bool          `env:"TRUST_PROXY" yaml:"trust_proxy"`
	RefreshInterval time.Duration `env:"REFRESH_INTERVAL" yaml:"refresh_interval"`
}

// RunCache bounds memoized screening reports.
type RunCache struct {
	TTL        time.Duration `env:"TTL" yaml:"ttl"`
	MaxEntries int           `env:"MAX_ENTRIES" yaml:"max_entries"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "json",
		Catalog: Catalog{
			CacheDir: "/tmp/conjscreen/catalog",
			MaxFiles: 5,
			MaxAge:   24 * time.Hour,
		},
		Screening: Screening{
			ThresholdKm: screening.DefaultThresholdKm,
			FloorKm:     screening.DefaultFloorKm,
			Horizon:     screening.DefaultHorizon,
			Step:        screening.DefaultStep,
			Workers:     runtime.NumCPU(),
			BatchSize:   256,
			Tiers:       report.DefaultTiers,
		},
		Server: Server{
			Addr:            ":8080",
			RefreshInterval: 6 * time.Hour,
		},
		RunCache: RunCache{
			TTL:        15 * time.Minute,
			MaxEntries: 256,
		},
	}
}

// Load applies the YAML file at path (if non-empty) and then the environment on top of
// the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate checks settings that the screening engine does not check itself.
func (c Config) Validate() error {
	var errs []error
	if c.Server.AuthEnabled && c.Server.AuthToken == "" {
		errs = append(errs, errors.New(EnvPrefix+"HTTP_AUTH_TOKEN is required when auth is enabled"))
	}
	if c.Screening.Tiers.HighKm > c.Screening.Tiers.MediumKm {
		errs = append(errs, fmt.Errorf("risk tier high_km %v exceeds medium_km %v", c.Screening.Tiers.HighKm, c.Screening.Tiers.MediumKm))
	}
	if c.RunCache.MaxEntries < 0 {
		errs = append(errs, fmt.Errorf("run cache max_entries must be >= 0, got %d", c.RunCache.MaxEntries))
	}
	return errors.Join(errs...)
}

// RunConfig converts the screening section into an engine run configuration.
// A zero epoch resolves to now, truncated to the step.
func (s Screening) RunConfig(now time.Time) screening.Config {
	epoch := s.Epoch
	if epoch.IsZero() && s.Step > 0 {
		epoch = now.UTC().Truncate(s.Step)
	}
	return screening.Config{
		TargetID: s.TargetID,
		Thresholds: screening.Thresholds{
			ThresholdKm: s.ThresholdKm,
			FloorKm:     s.FloorKm,
		},
		Epoch:   epoch,
		Horizon: s.Horizon,
		Step:    s.Step,
	}
}

// EngineOptions returns the engine tuning knobs.
func (s Screening) EngineOptions() screening.Options {
	return screening.Options{Workers: s.Workers, BatchSize: s.BatchSize}
}
