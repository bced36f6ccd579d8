package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/fwojciec/comics"
	"github.com/fwojciec/comics/bloom"
	"github.com/fwojciec/comics/bolt"
	"github.com/fwojciec/comics/catalog"
	"github.com/fwojciec/comics/fs"
	comicshttp "github.com/fwojciec/comics/http"
	comicsprom "github.com/fwojciec/comics/prometheus"
	comicsslog "github.com/fwojciec/comics/slog"
	"github.com/fwojciec/comics/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := NewMain()

	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	// Getenv reads the environment. Defaults to os.Getenv.
	Getenv func(string) string

	// Source replaces the remote archive client when set.
	Source comics.Source

	// Store is the opened catalog store, available after Run.
	Store comics.Store

	closers []io.Closer
}

// NewMain returns a new instance of Main with defaults.
func NewMain() *Main {
	return &Main{
		Getenv: os.Getenv,
	}
}

// Close gracefully stops the program.
func (m *Main) Close() error {
	var firstErr error
	for i := len(m.closers) - 1; i >= 0; i-- {
		if err := m.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	m.closers = nil
	return firstErr
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	// Initialize dependencies struct for Kong binding
	deps := &Dependencies{
		Ctx:    ctx,
		Stdout: stdout,
		Stderr: stderr,
	}

	// Create Kong parser with dependency binding
	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("comics"),
		kong.Description("Look up, search and sync a local comic archive."),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}), // Don't exit on help
		kong.Bind(deps),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	// Handle help flags using Kong
	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'comics --help' to see available commands")
	}
	if args[0] == "help" || args[0] == "--help" || args[0] == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	// Parse arguments first to know which command and its flags
	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	getenv := m.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	dir := cli.Dir
	if dir == "" {
		dir = defaultDir(getenv)
	}
	configPath, optional := cli.Config, false
	if configPath == "" {
		configPath, optional = filepath.Join(dir, ConfigName), true
	}

	cfg, err := LoadConfig(configPath, optional, getenv)
	if err != nil {
		return err
	}
	if err := cli.apply(cfg); err != nil {
		return err
	}
	logger := cfg.NewLogger(stderr)

	store, err := m.openStore(cfg, dir)
	if err != nil {
		fmt.Fprintf(stderr, "Hint: Set COMICS_DIR or --dir to use a different data directory\n")
		return err
	}
	defer m.Close()
	m.Store = store
	loggedStore := comicsslog.NewLoggingStore(store, logger)

	cat, err := catalog.Open(ctx, loggedStore)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := comicsprom.New(registry)

	source := m.Source
	if source == nil {
		source = comicshttp.NewClient(
			comicshttp.WithBaseURL(cfg.Remote.BaseURL),
			comicshttp.WithTimeout(cfg.Remote.Timeout),
			comicshttp.WithRateLimit(cfg.Remote.RateLimit),
		)
	}

	synchronizer := catalog.NewSynchronizer(cat, comicsslog.NewLoggingSource(source, logger), loggedStore)
	synchronizer.Concurrency = cfg.Sync.Concurrency
	synchronizer.SkipMissing = cfg.Sync.SkipMissing
	synchronizer.Logger = logger

	selector := catalog.NewSelector(cat)
	selector.Prefilter = bloom.NewPrefilter(bloom.DefaultFalsePositiveRate)
	var resolver comics.Resolver = selector
	resolver = comicsprom.NewInstrumentedResolver(resolver, metrics)
	resolver = comicsslog.NewLoggingResolver(resolver, logger)

	var syncer comics.Syncer = synchronizer
	syncer = comicsprom.NewInstrumentedSyncer(syncer, metrics, func() int { return cat.Stats().Comics })
	syncer = comicsslog.NewLoggingSyncer(syncer, logger)

	deps.Logger = logger
	deps.Config = cfg
	deps.Dir = dir
	deps.Catalog = cat
	deps.Store = loggedStore
	deps.Resolver = resolver
	deps.Syncer = syncer
	deps.Synchronizer = synchronizer
	deps.Registry = registry
	deps.JSON = cli.JSON

	return kongCtx.Run(deps)
}

// openStore opens the store selected by cfg.
func (m *Main) openStore(cfg *Config, dir string) (comics.Store, error) {
	path := cfg.StorePath(dir)
	if cfg.Store.Driver == DriverFS {
		return fs.NewStore(path), nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	switch cfg.Store.Driver {
	case DriverSQLite:
		db := sqlite.NewDB(path)
		if err := db.Open(); err != nil {
			return nil, fmt.Errorf("failed to open database at %q: %w", path, err)
		}
		m.closers = append(m.closers, db)
		return sqlite.NewStore(db), nil
	case DriverBolt:
		store, err := bolt.NewStore(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open database at %q: %w", path, err)
		}
		m.closers = append(m.closers, store)
		return store, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}
