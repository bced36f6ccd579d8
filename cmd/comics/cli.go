package main

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/fwojciec/comics"
	"github.com/fwojciec/comics/catalog"
	"github.com/prometheus/client_golang/prometheus"
)

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx      context.Context
	Stdout   io.Writer
	Stderr   io.Writer
	Logger   *slog.Logger
	Config   *Config
	Dir      string
	Catalog  *catalog.Catalog
	Store    comics.Store
	Resolver comics.Resolver
	Syncer   comics.Syncer
	Registry *prometheus.Registry

	// Synchronizer is the catalog writer behind Syncer, used by import.
	Synchronizer *catalog.Synchronizer

	// JSON selects machine-readable output.
	JSON bool
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	Config    string `help:"Config file (default: <dir>/config.yaml)" type:"path"`
	Dir       string `help:"Data directory (default: $COMICS_DIR or ~/.comics)" type:"path"`
	Store     string `help:"Store driver: fs, sqlite or bolt"`
	LogLevel  string `help:"Log level: debug, info, warn or error" name:"log-level"`
	LogFormat string `help:"Log format: text or json" name:"log-format"`
	JSON      bool   `help:"Print results as JSON" name:"json"`

	Get    GetCmd    `cmd:"" help:"Show a comic by number"`
	Search SearchCmd `cmd:"" help:"Find the comic that best matches a query"`
	Random RandomCmd `cmd:"" help:"Show a random comic"`
	Sync   SyncCmd   `cmd:"" help:"Fetch new comics from the archive"`
	Serve  ServeCmd  `cmd:"" help:"Serve the catalog over HTTP"`
	Stats  StatsCmd  `cmd:"" help:"Show catalog statistics"`
	Import ImportCmd `cmd:"" help:"Seed the store from catalog and index files"`
}

// apply overrides config values with the global flags that were set.
func (c *CLI) apply(cfg *Config) error {
	if c.Store != "" {
		cfg.Store.Driver = c.Store
	}
	if c.LogLevel != "" {
		cfg.Logging.Level = c.LogLevel
	}
	if c.LogFormat != "" {
		cfg.Logging.Format = c.LogFormat
	}
	return cfg.Validate()
}

// GetCmd is the "get" subcommand.
type GetCmd struct {
	Num int `arg:"" help:"Comic number"`
}

// SearchCmd is the "search" subcommand.
type SearchCmd struct {
	Query []string `arg:"" help:"Search text"`
	All   bool     `short:"a" help:"List every matching comic by strength"`
	Limit int      `short:"n" default:"10" help:"Maximum matches listed with --all (0 for no limit)"`
}

// RandomCmd is the "random" subcommand.
type RandomCmd struct{}

// SyncCmd is the "sync" subcommand.
type SyncCmd struct{}

// ServeCmd is the "serve" subcommand.
type ServeCmd struct {
	Addr     string        `help:"Listen address (default: serve.addr)"`
	Interval time.Duration `help:"Background sync interval, 0 to disable (default: sync.interval)"`
}

// StatsCmd is the "stats" subcommand.
type StatsCmd struct{}

// ImportCmd is the "import" subcommand.
type ImportCmd struct {
	Catalog string `arg:"" help:"Catalog file ({\"<num>\": comic})" type:"existingfile"`
	Index   string `arg:"" optional:"" help:"Index file ({\"<keywords>\": \"<num>\"})" type:"existingfile"`
}
