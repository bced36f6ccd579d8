package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/fwojciec/comics"
	comicshttp "github.com/fwojciec/comics/http"
)

// shutdownTimeout bounds graceful shutdown of the HTTP server.
const shutdownTimeout = 5 * time.Second

// Run executes the serve command. It blocks until the context is canceled.
func (c *ServeCmd) Run(deps *Dependencies) error {
	addr := c.Addr
	if addr == "" {
		addr = deps.Config.Serve.Addr
	}
	interval := c.Interval
	if interval == 0 {
		interval = deps.Config.Sync.Interval
	}

	handler := comicshttp.NewHandler(deps.Resolver, deps.Syncer, deps.Catalog)
	handler.Gatherer = deps.Registry
	handler.Logger = deps.Logger

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	server := &http.Server{
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Minute, // POST /sync may fetch many comics
	}

	ctx, cancel := context.WithCancel(deps.Ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	if interval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			syncLoop(ctx, deps, interval)
		}()
	}

	errc := make(chan error, 1)
	go func() {
		errc <- server.Serve(ln)
	}()
	fmt.Fprintf(deps.Stderr, "Serving %d comics on http://%s\n", deps.Catalog.Stats().Comics, ln.Addr())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// syncLoop runs a sync pass every interval until ctx is canceled. Failed
// passes are logged by the syncer and retried on the next tick.
func syncLoop(ctx context.Context, deps *Dependencies, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := deps.Syncer.Sync(ctx); err != nil && comics.ErrorCode(err) == comics.ECONFLICT {
				deps.Logger.Debug("skipping background sync, another pass is running")
			}
		}
	}
}
