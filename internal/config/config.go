// Package config holds the host-facing configuration surface: scene scale,
// render limits, particle and star budgets, the epoch cache, overlay
// toggles and the ambient logging/metrics/tracing settings. Files are YAML
// (.yaml, .yml) or INI-style gcfg (.gcfg, .ini, .conf).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/gcfg.v1"
	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/heliosphere-sim/dataset"
	"github.com/signalsfoundry/heliosphere-sim/internal/observability"
	"github.com/signalsfoundry/heliosphere-sim/overlays"
)

// ErrInvalid reports a configuration value out of range.
var ErrInvalid = errors.New("invalid configuration")

// Config is the full configuration. Every section maps to a YAML mapping
// and to a gcfg [section].
type Config struct {
	Scene      SceneConfig                 `yaml:"scene"`
	Simulation SimulationConfig            `yaml:"simulation"`
	Particles  ParticleConfig              `yaml:"particles"`
	Stars      StarConfig                  `yaml:"stars"`
	Dataset    DatasetConfig               `yaml:"dataset"`
	Overlays   overlays.Toggles            `yaml:"overlays"`
	Log        LogConfig                   `yaml:"log"`
	Metrics    MetricsConfig               `yaml:"metrics"`
	Tracing    observability.TracingConfig `yaml:"tracing"`
}

// SceneConfig controls the AU-to-scene mapping.
type SceneConfig struct {
	// Scale is scene units per AU.
	Scale               float64 `yaml:"scale"`
	MaxRenderDistanceAU float64 `yaml:"max_render_distance_au"`
}

// SimulationConfig maps host seconds to simulated time.
type SimulationConfig struct {
	DaysPerSecond      float64 `yaml:"days_per_second"`
	MegayearsPerSecond float64 `yaml:"megayears_per_second"`
	// StellarTime is the starting time since ZAMS in Myr.
	StellarTime float64 `yaml:"stellar_time"`
}

type ParticleConfig struct {
	TextureSize int     `yaml:"texture_size"`
	Lifetime    float64 `yaml:"lifetime"`
}

type StarConfig struct {
	Count          int     `yaml:"count"`
	MagnitudeLimit float64 `yaml:"magnitude_limit"`
	// Catalog is an optional JSON catalog; empty means synthetic plus the
	// built-in bright stars.
	Catalog string `yaml:"catalog"`
}

type DatasetConfig struct {
	URL           string `yaml:"url"`
	Dir           string `yaml:"dir"`
	CacheCapacity int    `yaml:"cache_capacity"`
	Prefetch      int    `yaml:"prefetch"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	c := defaults()
	c.Overlays = overlays.AllOn()
	return c
}

// defaults is Default with every overlay off. Files are decoded onto it, so
// a value written explicitly, zero included, replaces the default.
func defaults() Config {
	return Config{
		Scene: SceneConfig{Scale: 0.01, MaxRenderDistanceAU: 1e6},
		Simulation: SimulationConfig{
			DaysPerSecond: 365.25,
			StellarTime:   4600,
		},
		Particles: ParticleConfig{TextureSize: 64, Lifetime: 10},
		Stars:     StarConfig{Count: 5000, MagnitudeLimit: 6.5},
		Dataset:   DatasetConfig{CacheCapacity: dataset.DefaultCacheCapacity, Prefetch: 2},
		Log:       LogConfig{Level: "info", Format: "text"},
		Metrics:   MetricsConfig{Addr: ":9090"},
		Tracing:   observability.TracingConfig{}.WithDefaults(),
	}
}

// fillEmpty restores defaults for string settings a file left blank. An
// empty level, format or address has no meaning of its own.
func (c *Config) fillEmpty() {
	d := defaults()
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = d.Metrics.Addr
	}
	c.Tracing = c.Tracing.WithDefaults()
}

// Validate reports the first out-of-range value.
func (c Config) Validate() error {
	switch {
	case c.Scene.Scale <= 0:
		return fmt.Errorf("%w: scene scale %v must be positive", ErrInvalid, c.Scene.Scale)
	case c.Scene.MaxRenderDistanceAU <= 0:
		return fmt.Errorf("%w: max render distance %v must be positive", ErrInvalid, c.Scene.MaxRenderDistanceAU)
	case c.Particles.TextureSize <= 0:
		return fmt.Errorf("%w: particle texture size %d must be positive", ErrInvalid, c.Particles.TextureSize)
	case c.Particles.Lifetime <= 0:
		return fmt.Errorf("%w: particle lifetime %v must be positive", ErrInvalid, c.Particles.Lifetime)
	case c.Stars.Count < 0:
		return fmt.Errorf("%w: star count %d must not be negative", ErrInvalid, c.Stars.Count)
	case c.Dataset.CacheCapacity < 2:
		return fmt.Errorf("%w: epoch cache capacity %d must hold an interpolation bracket", ErrInvalid, c.Dataset.CacheCapacity)
	case c.Dataset.Prefetch < 0:
		return fmt.Errorf("%w: prefetch %d must not be negative", ErrInvalid, c.Dataset.Prefetch)
	}
	return nil
}

// Load reads path, picking the decoder by extension, over the defaults.
// Settings absent from the file keep their default; explicit zeros such as
// stellar_time: 0 or prefetch: 0 are kept. Overlay toggles absent from the
// file stay off.
func Load(path string) (Config, error) {
	c := defaults()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &c); err != nil {
			return Config{}, fmt.Errorf("parsing config YAML: %w", err)
		}
	case ".gcfg", ".ini", ".conf":
		if err := gcfg.ReadFileInto(&c, path); err != nil {
			return Config{}, fmt.Errorf("parsing config file: %w", err)
		}
	default:
		return Config{}, fmt.Errorf("unsupported config extension %q", ext)
	}
	c.fillEmpty()
	return c, nil
}

// ApplyEnv overrides fields from HELIO_* variables and the logging
// package's LOG_LEVEL and LOG_FORMAT. Malformed numbers are reported.
func (c *Config) ApplyEnv() error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *float64) {
		if v, ok := os.LookupEnv(key); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	num("HELIO_SCENE_SCALE", &c.Scene.Scale)
	num("HELIO_MAX_RENDER_DISTANCE_AU", &c.Scene.MaxRenderDistanceAU)
	num("HELIO_DAYS_PER_SECOND", &c.Simulation.DaysPerSecond)
	num("HELIO_MYR_PER_SECOND", &c.Simulation.MegayearsPerSecond)
	integer("HELIO_PARTICLE_TEXTURE_SIZE", &c.Particles.TextureSize)
	integer("HELIO_STAR_COUNT", &c.Stars.Count)
	str("HELIO_STAR_CATALOG", &c.Stars.Catalog)
	str("HELIO_DATASET_URL", &c.Dataset.URL)
	str("HELIO_DATASET_DIR", &c.Dataset.Dir)
	integer("HELIO_CACHE_CAPACITY", &c.Dataset.CacheCapacity)
	integer("HELIO_PREFETCH", &c.Dataset.Prefetch)
	str("HELIO_METRICS_ADDR", &c.Metrics.Addr)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	if _, ok := os.LookupEnv("HELIO_TRACING_ENABLED"); ok {
		c.Tracing = observability.TracingConfigFromEnv()
	}
	return errors.Join(errs...)
}
