package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fwojciec/comics/catalog"
	comicshttp "github.com/fwojciec/comics/http"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverFS     = "fs"
	DriverSQLite = "sqlite"
	DriverBolt   = "bolt"
)

// ConfigName is the config file looked up in the data directory.
const ConfigName = "config.yaml"

// Config is the program configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store"`
	Remote  RemoteConfig  `yaml:"remote"`
	Sync    SyncConfig    `yaml:"sync"`
	Serve   ServeConfig   `yaml:"serve"`
	Logging LoggingConfig `yaml:"logging"`
}

// StoreConfig selects where the catalog is persisted.
type StoreConfig struct {
	Driver string `yaml:"driver"`

	// Path is a directory for fs and a database file for sqlite and bolt.
	// Defaults to a location inside the data directory.
	Path string `yaml:"path"`
}

// RemoteConfig configures the archive client.
type RemoteConfig struct {
	BaseURL   string        `yaml:"baseURL"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rateLimit"`
}

// SyncConfig configures sync passes.
type SyncConfig struct {
	Concurrency int  `yaml:"concurrency"`
	SkipMissing bool `yaml:"skipMissing"`

	// Interval between background passes in serve mode. Zero disables them.
	Interval time.Duration `yaml:"interval"`
}

// ServeConfig configures the HTTP server.
type ServeConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the configuration used when no file is present.
// The archive is known to skip comic #404, so missing comics are skipped.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Driver: DriverFS,
		},
		Remote: RemoteConfig{
			BaseURL:   comicshttp.DefaultBaseURL,
			Timeout:   comicshttp.DefaultFetchTimeout,
			RateLimit: 10,
		},
		Sync: SyncConfig{
			Concurrency: catalog.DefaultConcurrency,
			SkipMissing: true,
		},
		Serve: ServeConfig{
			Addr: "localhost:8080",
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// LoadConfig reads a YAML config file and applies COMICS_* environment
// overrides from getenv. A missing file is not an error when optional is set.
func LoadConfig(path string, optional bool, getenv func(string) string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist) && optional:
		case err != nil:
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", path, err)
			}
		}
	}
	if err := applyEnvOverrides(cfg, getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides reads COMICS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config, getenv func(string) string) error {
	if v := getenv("COMICS_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := getenv("COMICS_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := getenv("COMICS_REMOTE_BASE_URL"); v != "" {
		cfg.Remote.BaseURL = v
	}
	if v := getenv("COMICS_REMOTE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid COMICS_REMOTE_TIMEOUT: %w", err)
		}
		cfg.Remote.Timeout = d
	}
	if v := getenv("COMICS_REMOTE_RATE_LIMIT"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid COMICS_REMOTE_RATE_LIMIT: %w", err)
		}
		cfg.Remote.RateLimit = rps
	}
	if v := getenv("COMICS_SYNC_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid COMICS_SYNC_CONCURRENCY: %w", err)
		}
		cfg.Sync.Concurrency = n
	}
	if v := getenv("COMICS_SYNC_SKIP_MISSING"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid COMICS_SYNC_SKIP_MISSING: %w", err)
		}
		cfg.Sync.SkipMissing = b
	}
	if v := getenv("COMICS_SYNC_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid COMICS_SYNC_INTERVAL: %w", err)
		}
		cfg.Sync.Interval = d
	}
	if v := getenv("COMICS_SERVE_ADDR"); v != "" {
		cfg.Serve.Addr = v
	}
	if v := getenv("COMICS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := getenv("COMICS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	return nil
}

// Validate returns an error if a config value is out of range.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverFS, DriverSQLite, DriverBolt:
	default:
		return fmt.Errorf("unknown store driver %q (want fs, sqlite or bolt)", c.Store.Driver)
	}
	if c.Remote.BaseURL == "" {
		return fmt.Errorf("remote.baseURL required")
	}
	if c.Remote.Timeout <= 0 {
		return fmt.Errorf("remote.timeout must be positive")
	}
	if c.Sync.Concurrency <= 0 {
		return fmt.Errorf("sync.concurrency must be positive")
	}
	if c.Sync.Interval < 0 {
		return fmt.Errorf("sync.interval must not be negative")
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown logging format %q (want text or json)", c.Logging.Format)
	}
	return nil
}

// StorePath returns the configured store path, or the default for the
// driver inside dir.
func (c *Config) StorePath(dir string) string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	switch c.Store.Driver {
	case DriverSQLite:
		return filepath.Join(dir, "comics.db")
	case DriverBolt:
		return filepath.Join(dir, "comics.bolt")
	}
	return filepath.Join(dir, "catalog")
}

// NewLogger builds the logger described by the logging config.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.Logging.Level)
	opts := &slog.HandlerOptions{Level: level}
	if c.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(level string) (slog.Level, error) {
	switch level {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown logging level %q", level)
}

// defaultDir returns the data directory: $COMICS_DIR or ~/.comics.
func defaultDir(getenv func(string) string) string {
	if dir := getenv("COMICS_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".comics"
	}
	return filepath.Join(home, ".comics")
}
