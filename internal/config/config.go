// Package config loads service configuration from an optional YAML file with
// environment variable overrides. Palette and map defaults are injected here
// rather than embedded at use sites so tests and regional deployments can
// swap them.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	yaml "gopkg.in/yaml.v3"

	"ecomap/internal/model"
)

type Config struct {
	Port        string `yaml:"port"`
	DatabaseURL string `yaml:"databaseURL"`
	RedisURL    string `yaml:"redisURL"`

	Routing RoutingConfig `yaml:"routing"`
	Map     MapConfig     `yaml:"map"`
}

type RoutingConfig struct {
	// BaseURL of the OSRM-compatible routing service, without trailing slash.
	BaseURL string `yaml:"baseURL"`
	Profile string `yaml:"profile"`
	// Timeout bounds a single resolution call; expiry resolves to the
	// degraded fallback, same as a network failure.
	Timeout time.Duration `yaml:"timeout"`
	// RateRPS caps outbound calls to the routing service (0 = unlimited).
	RateRPS   float64 `yaml:"rateRPS"`
	RateBurst int     `yaml:"rateBurst"`
}

type MapConfig struct {
	// DefaultCenter is the home-region viewport used when no optimization
	// result is loaded.
	DefaultCenter model.GeoPoint `yaml:"defaultCenter"`
	DefaultZoom   int            `yaml:"defaultZoom"`
	// CoverageRadiusM is the illustrative circle drawn around depots that
	// anchor at least one route.
	CoverageRadiusM float64  `yaml:"coverageRadiusM"`
	Palette         []string `yaml:"palette"`
}

// DefaultPalette is the fixed route color cycle: blue, red, green, orange, violet.
var DefaultPalette = []string{"#2f6fdb", "#d43d3d", "#2e9e5b", "#e08a2e", "#7c4fd0"}

func defaults() Config {
	return Config{
		Port: "8080",
		Routing: RoutingConfig{
			BaseURL:   "https://router.project-osrm.org",
			Profile:   "driving",
			Timeout:   10 * time.Second,
			RateRPS:   5,
			RateBurst: 10,
		},
		Map: MapConfig{
			// Tunis city center.
			DefaultCenter:   model.GeoPoint{Lat: 36.8065, Lng: 10.1815},
			DefaultZoom:     12,
			CoverageRadiusM: 5000,
			Palette:         DefaultPalette,
		},
	}
}

// Load reads the YAML file at path (skipped when path is empty or missing)
// and applies environment overrides on top of built-in defaults.
func Load(path string) (Config, error) {
	cfg := defaults()
	if path != "" {
		b, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if len(cfg.Map.Palette) == 0 {
		cfg.Map.Palette = DefaultPalette
	}
	if cfg.Routing.Timeout <= 0 {
		cfg.Routing.Timeout = 10 * time.Second
	}
	return cfg, nil
}

// FromEnv loads configuration using the ECOMAP_CONFIG file if set.
func FromEnv() (Config, error) {
	return Load(os.Getenv("ECOMAP_CONFIG"))
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := os.Getenv("OSRM_BASE_URL"); v != "" {
		cfg.Routing.BaseURL = v
	}
	if v := os.Getenv("OSRM_PROFILE"); v != "" {
		cfg.Routing.Profile = v
	}
	if v := os.Getenv("OSRM_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Routing.Timeout = time.Duration(n) * time.Millisecond
		}
	}
	if v := os.Getenv("OSRM_RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			cfg.Routing.RateRPS = f
		}
	}
	if v := os.Getenv("OSRM_RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Routing.RateBurst = n
		}
	}
	if v := os.Getenv("MAP_DEFAULT_CENTER"); v != "" {
		var lat, lng float64
		if _, err := fmt.Sscanf(v, "%f,%f", &lat, &lng); err == nil {
			cfg.Map.DefaultCenter = model.GeoPoint{Lat: lat, Lng: lng}
		}
	}
	if v := os.Getenv("MAP_DEFAULT_ZOOM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Map.DefaultZoom = n
		}
	}
	if v := os.Getenv("MAP_COVERAGE_RADIUS_M"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Map.CoverageRadiusM = f
		}
	}
}
