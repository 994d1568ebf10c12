package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/smileynet/benchdash/internal/cache"
	"github.com/smileynet/benchdash/internal/config"
	"github.com/smileynet/benchdash/internal/monitor"
	"github.com/smileynet/benchdash/internal/watcher"
)

// InspectCmd prints a summary of a results directory, optionally following it.
type InspectCmd struct {
	CommonFlags `embed:""`

	Watch    bool          `help:"Keep running and show every reload." short:"w"`
	NoTUI    bool          `help:"Force plain text output even if stdout is a TTY."`
	Debounce time.Duration `help:"Quiet period after the last file change before reloading."`
}

// Run executes the inspect command.
func (c *InspectCmd) Run() error {
	cfg, err := c.loadConfig()
	if err != nil {
		return fmt.Errorf("inspect: %w", err)
	}
	if c.Debounce != 0 {
		cfg.Watch.Debounce = c.Debounce
	}
	// Only warnings go to the terminal while a summary or live view is shown.
	if c.LogLevel == "" {
		cfg.Log.Level = "warn"
	}

	logger, err := setup(cfg)
	if err != nil {
		return fmt.Errorf("inspect: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return c.run(ctx, os.Stdout, cfg, logger)
}

// run prints the summary and, with --watch, follows reloads until ctx ends
// or the user quits the live view.
func (c *InspectCmd) run(ctx context.Context, w io.Writer, cfg *config.Config, logger *slog.Logger) error {
	bc, err := newCache(cfg, logger)
	if err != nil {
		return fmt.Errorf("inspect: %w", err)
	}
	if err := bc.Load(ctx); err != nil {
		return fmt.Errorf("inspect: %w", err)
	}

	initial := monitor.Collect(bc)
	if !c.Watch {
		return monitor.RenderSummary(w, cfg.Results.Dir, initial)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	bridge := monitor.NewBridge()
	reload := func(ctx context.Context) error {
		err := bc.Reload(ctx)
		bridge.Send(reloadMsg(bc, err))
		return err
	}

	wt, err := watcher.New(cfg.Results.Dir, reload,
		watcher.WithDelay(cfg.Watch.Debounce),
		watcher.WithLogger(logger),
		watcher.WithIgnoredNames(cache.WorkflowsFile),
	)
	if err != nil {
		return fmt.Errorf("inspect: %w", err)
	}
	defer wt.Close()

	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		if err := wt.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("watcher stopped", "err", err)
		}
	}()

	display := monitor.NewDisplay(monitor.DisplayOptions{
		Writer:     w,
		ForcePlain: c.NoTUI,
		Dir:        cfg.Results.Dir,
		Initial:    initial,
		Refresh: func() monitor.ReloadMsg {
			return reloadMsg(bc, bc.Reload(ctx))
		},
	})
	if _, plain := display.(*monitor.PlainDisplay); plain {
		if err := monitor.RenderSummary(w, cfg.Results.Dir, initial); err != nil {
			return err
		}
	}

	err = display.Run(ctx, bridge.Events())
	cancel()
	<-watchDone
	bridge.Done()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func reloadMsg(src monitor.Source, err error) monitor.ReloadMsg {
	if err != nil {
		return monitor.ReloadMsg{Err: err}
	}
	return monitor.ReloadMsg{Snapshot: monitor.Collect(src)}
}
