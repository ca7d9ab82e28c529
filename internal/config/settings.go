// Package config loads the gateway's runtime settings from the
// environment, with an optional YAML file for the pieces that are
// awkward as single variables.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"tollgate/internal/domain/entity"
	pkgconfig "tollgate/pkg/config"
)

// Settings is the resolved runtime configuration of the gateway process.
type Settings struct {
	Host string
	Port int

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// AdminToken guards every /admin route. The process refuses to start
	// without one.
	AdminToken string

	// Default per-key rate limit, applied when a key carries none.
	RateLimitRequests      int
	RateLimitWindowSeconds int

	EnableAutoBlock     bool
	AllowBlockLocalhost bool

	// UsageExcludePrefixes overrides the usage capture exclusion list.
	// Empty means the built-in defaults.
	UsageExcludePrefixes []string

	// SweepSpec is the cron expression of the auto-block sweep. Empty
	// disables the sweep.
	SweepSpec          string
	SweepWindowMinutes int
	SweepMinUnauth401  int
	SweepTTLSeconds    int
	SweepLimit         int
}

// fileConfig is the optional YAML companion file pointed to by
// GATEWAY_CONFIG_FILE.
type fileConfig struct {
	Gateway struct {
		UsageExcludePrefixes []string `yaml:"usage_exclude_prefixes"`
		Sweep                struct {
			Spec          string `yaml:"spec"`
			WindowMinutes int    `yaml:"window_minutes"`
			MinUnauth401  int    `yaml:"min_unauth_401"`
			TTLSeconds    int    `yaml:"ttl_seconds"`
			Limit         int    `yaml:"limit"`
		} `yaml:"sweep"`
	} `yaml:"gateway"`
}

// Load reads the settings from the environment and, when
// GATEWAY_CONFIG_FILE is set, merges the YAML file on top.
func Load() (*Settings, error) {
	s := &Settings{
		Host:                   pkgconfig.GetEnvString("APP_HOST", "0.0.0.0"),
		Port:                   pkgconfig.GetEnvInt("APP_PORT", 8080),
		DatabaseURL:            pkgconfig.GetEnvString("DATABASE_URL", ""),
		RedisAddr:              pkgconfig.GetEnvString("REDIS_ADDR", "localhost:6379"),
		RedisPassword:          pkgconfig.GetEnvString("REDIS_PASSWORD", ""),
		RedisDB:                pkgconfig.GetEnvInt("REDIS_DB", 0),
		AdminToken:             os.Getenv("ADMIN_TOKEN"),
		RateLimitRequests:      pkgconfig.GetEnvInt("RATE_LIMIT_REQUESTS", entity.DefaultRateLimit),
		RateLimitWindowSeconds: pkgconfig.GetEnvInt("RATE_LIMIT_WINDOW_SECONDS", entity.DefaultRateWindow),
		EnableAutoBlock:        pkgconfig.GetEnvBool("ENABLE_AUTO_BLOCK", false),
		AllowBlockLocalhost:    pkgconfig.GetEnvBool("ALLOW_BLOCK_LOCALHOST", false),
		UsageExcludePrefixes:   pkgconfig.GetEnvStringList("USAGE_EXCLUDE_PREFIXES", nil),
		SweepSpec:              pkgconfig.GetEnvString("AUTO_BLOCK_SWEEP_SPEC", ""),
		SweepWindowMinutes:     pkgconfig.GetEnvInt("AUTO_BLOCK_SWEEP_WINDOW_MINUTES", 0),
		SweepMinUnauth401:      pkgconfig.GetEnvInt("AUTO_BLOCK_SWEEP_MIN_UNAUTH_401", 0),
		SweepTTLSeconds:        pkgconfig.GetEnvInt("AUTO_BLOCK_SWEEP_TTL_SECONDS", 0),
		SweepLimit:             pkgconfig.GetEnvInt("AUTO_BLOCK_SWEEP_LIMIT", 0),
	}

	if path := os.Getenv("GATEWAY_CONFIG_FILE"); path != "" {
		if err := s.mergeFile(path); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Settings) mergeFile(path string) error {
	// #nosec G304 -- path comes from the operator's environment, not user input
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if len(fc.Gateway.UsageExcludePrefixes) > 0 {
		s.UsageExcludePrefixes = fc.Gateway.UsageExcludePrefixes
	}
	if fc.Gateway.Sweep.Spec != "" {
		s.SweepSpec = fc.Gateway.Sweep.Spec
	}
	if fc.Gateway.Sweep.WindowMinutes > 0 {
		s.SweepWindowMinutes = fc.Gateway.Sweep.WindowMinutes
	}
	if fc.Gateway.Sweep.MinUnauth401 > 0 {
		s.SweepMinUnauth401 = fc.Gateway.Sweep.MinUnauth401
	}
	if fc.Gateway.Sweep.TTLSeconds > 0 {
		s.SweepTTLSeconds = fc.Gateway.Sweep.TTLSeconds
	}
	if fc.Gateway.Sweep.Limit > 0 {
		s.SweepLimit = fc.Gateway.Sweep.Limit
	}
	return nil
}

// Addr returns the host:port the HTTP server listens on.
func (s *Settings) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Validate checks the settings the process cannot run without.
func (s *Settings) Validate() error {
	if s.AdminToken == "" {
		return fmt.Errorf("ADMIN_TOKEN is required")
	}
	if s.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if s.RateLimitRequests < 1 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be positive")
	}
	if s.RateLimitWindowSeconds < 1 {
		return fmt.Errorf("RATE_LIMIT_WINDOW_SECONDS must be positive")
	}
	return nil
}
