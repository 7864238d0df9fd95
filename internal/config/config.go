package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds runtime settings for the sos-server binary.
type Config struct {
	// ListenAddress is the HTTP listen address, e.g. ":8080".
	ListenAddress string `yaml:"listen_addr"`
	// LogLevel is the minimum log level (debug, info, warn, error, fatal).
	LogLevel string `yaml:"log_level"`
	// Store configures the record store backend.
	Store StoreConfig `yaml:"store"`
	// Location configures the location acquisition coordinator.
	Location LocationConfig `yaml:"location"`
	// Watchdog configures the stale-alert watchdog.
	Watchdog WatchdogConfig `yaml:"watchdog"`
}

// StoreConfig selects and configures the record store backend.
type StoreConfig struct {
	// Backend is either "memory" or "redis".
	Backend string `yaml:"backend"`
	// RedisURL is the redis connection URL, e.g. redis://localhost:6379/0.
	// Required when Backend is "redis".
	RedisURL string `yaml:"redis_url"`
	// KeyPrefix namespaces every redis key and channel written by this service.
	KeyPrefix string `yaml:"key_prefix"`
}

// LocationConfig holds tuning knobs for position acquisition.
type LocationConfig struct {
	// OneShotTimeout bounds the single latency-shaving position fetch.
	OneShotTimeout time.Duration `yaml:"one_shot_timeout"`
	// MinMovementMeters is the minimum movement between reported stream fixes.
	MinMovementMeters float64 `yaml:"min_movement_meters"`
}

// WatchdogConfig holds the stale-alert sweep settings.
type WatchdogConfig struct {
	// Schedule is a cron spec understood by robfig/cron, e.g. "@every 1m".
	Schedule string `yaml:"schedule"`
	// StaleAfter is the age at which an unanswered PENDING alert is flagged.
	StaleAfter time.Duration `yaml:"stale_after"`
}

const (
	// DefaultConfigFilename is the default filename for server settings.
	DefaultConfigFilename = "sos-server.yaml"

	// DefaultListenAddress is used when no listen address is configured.
	DefaultListenAddress = ":8080"

	// DefaultOneShotTimeout bounds the one-shot position fetch.
	DefaultOneShotTimeout = 8 * time.Second

	// DefaultMinMovementMeters is the continuous stream movement threshold.
	DefaultMinMovementMeters float64 = 10

	// DefaultWatchdogSchedule runs the stale-alert sweep once a minute.
	DefaultWatchdogSchedule = "@every 1m"

	// DefaultStaleAfter flags PENDING alerts unanswered for this long.
	DefaultStaleAfter = 5 * time.Minute

	// DefaultKeyPrefix namespaces redis keys written by this service.
	DefaultKeyPrefix = "sos"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errUnknownStoreBackend is returned for a backend other than memory or redis.
	errUnknownStoreBackend = errors.New("store backend must be \"memory\" or \"redis\"")
	// errRedisURLRequired is returned when the redis backend has no URL.
	errRedisURLRequired = errors.New("redis backend requires a redis URL")
)

// Default returns a configuration with every field set to its default.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)

	return cfg
}

// Load reads configuration from the provided path, applies environment
// overrides and validates essential fields. A missing path loads pure
// defaults so the binary can run without a settings file.
func Load(path string) (*Config, error) {
	var cfg Config

	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(contents, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		// Defaults plus environment are enough to start.
	default:
		return nil, fmt.Errorf("read settings: %w", err)
	}

	applyEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks required fields and fills in defaults for omitted ones.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	applyDefaults(cfg)

	if _, err := net.ResolveTCPAddr("tcp", cfg.ListenAddress); err != nil {
		return fmt.Errorf("invalid listen address: %w", err)
	}

	switch cfg.Store.Backend {
	case "memory":
	case "redis":
		if cfg.Store.RedisURL == "" {
			return errRedisURLRequired
		}
	default:
		return errUnknownStoreBackend
	}

	if _, ok := parseLogLevel(cfg.LogLevel); !ok {
		return fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}

	return nil
}

// applyDefaults fills zero-valued fields with defaults.
func applyDefaults(cfg *Config) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "memory"
	}

	if cfg.Store.KeyPrefix == "" {
		cfg.Store.KeyPrefix = DefaultKeyPrefix
	}

	if cfg.Location.OneShotTimeout <= 0 {
		cfg.Location.OneShotTimeout = DefaultOneShotTimeout
	}

	if cfg.Location.MinMovementMeters <= 0 {
		cfg.Location.MinMovementMeters = DefaultMinMovementMeters
	}

	if cfg.Watchdog.Schedule == "" {
		cfg.Watchdog.Schedule = DefaultWatchdogSchedule
	}

	if cfg.Watchdog.StaleAfter <= 0 {
		cfg.Watchdog.StaleAfter = DefaultStaleAfter
	}
}

// applyEnvOverrides lets deployment environments override file settings.
// The .env file, if any, is loaded by the binary entrypoint before this runs.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SOS_LISTEN_ADDR"); v != "" {
		cfg.ListenAddress = v
	}

	if v := os.Getenv("SOS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	if v := os.Getenv("SOS_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}

	if v := os.Getenv("SOS_REDIS_URL"); v != "" {
		cfg.Store.RedisURL = v
	}
}

// parseLogLevel mirrors logger.ParseLogLevel without importing it,
// keeping config free of logging dependencies.
func parseLogLevel(s string) (string, bool) {
	switch s {
	case "debug", "info", "warn", "error", "fatal":
		return s, true
	default:
		return "", false
	}
}
