package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smileynet/benchdash/internal/cache"
	"github.com/smileynet/benchdash/internal/config"
	"github.com/smileynet/benchdash/internal/metrics"
	"github.com/smileynet/benchdash/internal/server"
	"github.com/smileynet/benchdash/internal/watcher"
)

// shutdownTimeout bounds how long in-flight requests may take after a signal.
const shutdownTimeout = 5 * time.Second

// ServeCmd loads the results directory and serves it over HTTP.
type ServeCmd struct {
	CommonFlags `embed:""`

	Host     string        `help:"Server host address." placeholder:"HOST"`
	Port     int           `help:"Server port." placeholder:"PORT"`
	Debounce time.Duration `help:"Quiet period after the last file change before reloading."`
	NoWatch  bool          `help:"Do not watch the results directory for changes."`
}

// Run executes the serve command.
func (s *ServeCmd) Run() error {
	cfg, err := s.loadConfig()
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	s.applyServe(cfg)

	logger, err := setup(cfg)
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return s.run(ctx, cfg, logger)
}

func (s *ServeCmd) applyServe(cfg *config.Config) {
	if s.Host != "" {
		cfg.Server.Host = s.Host
	}
	if s.Port != 0 {
		cfg.Server.Port = s.Port
	}
	if s.Debounce != 0 {
		cfg.Watch.Debounce = s.Debounce
	}
	if s.NoWatch {
		cfg.Watch.Enabled = false
	}
}

// service is everything serve runs, assembled but not started.
type service struct {
	cache   *cache.Cache
	server  *server.Server
	watcher *watcher.Watcher // nil when watching is disabled
}

// build loads the cache and wires the watcher and HTTP server around it.
func (s *ServeCmd) build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*service, error) {
	var (
		rec       *metrics.Recorder
		cacheOpts []cache.Option
		srvOpts   = []server.Option{server.WithLogger(logger)}
		watchOpts = []watcher.Option{
			watcher.WithDelay(cfg.Watch.Debounce),
			watcher.WithLogger(logger),
			watcher.WithIgnoredNames(cache.WorkflowsFile),
		}
	)
	if cfg.Metrics.Enabled {
		rec = metrics.New()
		cacheOpts = append(cacheOpts, cache.WithRecorder(rec))
		srvOpts = append(srvOpts, server.WithMetrics(cfg.Metrics.Path, rec.Handler()))
		watchOpts = append(watchOpts, watcher.WithObserver(rec))
	}

	c, err := newCache(cfg, logger, cacheOpts...)
	if err != nil {
		return nil, fmt.Errorf("serve: %w", err)
	}
	// The initial load completes before the listener opens.
	if err := c.Load(ctx); err != nil {
		return nil, fmt.Errorf("serve: %w", err)
	}

	svc := &service{cache: c, server: server.New(c, srvOpts...)}
	if cfg.Watch.Enabled {
		w, err := watcher.New(cfg.Results.Dir, c.Reload, watchOpts...)
		if err != nil {
			return nil, fmt.Errorf("serve: %w", err)
		}
		svc.watcher = w
	}
	return svc, nil
}

// run serves until ctx is cancelled or the listener fails.
func (s *ServeCmd) run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	svc, err := s.build(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if svc.watcher != nil {
		defer svc.watcher.Close()
		go func() {
			if err := svc.watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("watcher stopped", "err", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- svc.server.Listen(cfg.Server.Addr()) }()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := svc.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("serve: shutdown: %w", err)
	}
	return nil
}
