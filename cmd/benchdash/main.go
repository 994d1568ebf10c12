package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/smileynet/benchdash/internal/cache"
	"github.com/smileynet/benchdash/internal/config"
	"github.com/smileynet/benchdash/internal/logging"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Exit codes.
const (
	exitSuccess = 0
	exitFailure = 1
	exitSetup   = 2
)

// errSetup marks failures in configuration or environment, before any work starts.
var errSetup = errors.New("setup")

// CLI is the top-level command structure for benchdash.
type CLI struct {
	Version   kong.VersionFlag `help:"Show version." short:"V"`
	Serve     ServeCmd         `cmd:"" help:"Serve the benchmark cache over HTTP."`
	Inspect   InspectCmd       `cmd:"" help:"Summarize a results directory."`
	Workflows WorkflowsCmd     `cmd:"" help:"Manage the ledger of downloaded workflow runs."`
	Config    ConfigCmd        `cmd:"" help:"Create or print configuration."`
}

// CommonFlags are shared by every command that reads a results directory.
type CommonFlags struct {
	Config     string `help:"Extra config file, layered over user and project config." type:"path" placeholder:"FILE"`
	ResultsDir string `help:"Directory containing benchmark results." type:"path" placeholder:"DIR"`
	LogLevel   string `help:"Log level (debug, info, warn, error)." placeholder:"LEVEL"`
}

// loadConfig loads layered config from user and project paths with env
// overrides, then applies the flags that were set.
func (f CommonFlags) loadConfig() (*config.Config, error) {
	paths := []string{
		os.ExpandEnv("$HOME/.config/benchdash/config.yaml"),
		".benchdash/config.yaml",
	}
	if f.Config != "" {
		paths = append(paths, f.Config)
	}
	cfg, err := config.LoadLayered(paths...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errSetup, err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, fmt.Errorf("%w: %w", errSetup, err)
	}
	f.apply(cfg)
	return cfg, nil
}

func (f CommonFlags) apply(cfg *config.Config) {
	if f.ResultsDir != "" {
		cfg.Results.Dir = f.ResultsDir
	}
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
}

// setup validates cfg and builds the logger.
func setup(cfg *config.Config) (*slog.Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", errSetup, err)
	}
	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errSetup, err)
	}
	return logger, nil
}

// newCache builds a cache over the configured results directory after
// checking that the directory is usable.
func newCache(cfg *config.Config, logger *slog.Logger, opts ...cache.Option) (*cache.Cache, error) {
	if err := cache.CheckResultsDir(cfg.Results.Dir); err != nil {
		return nil, err
	}
	opts = append([]cache.Option{
		cache.WithLogger(logger),
		cache.WithWorkers(cfg.Results.LoadWorkers),
		cache.WithReportFile(cfg.Results.ReportFile),
	}, opts...)
	return cache.New(cfg.Results.Dir, opts...), nil
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitSuccess
	case errors.Is(err, errSetup), errors.Is(err, cache.ErrInvalidResultsDir):
		return exitSetup
	default:
		return exitFailure
	}
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("benchdash"),
		kong.Description("Benchmark results cache and dashboard API."),
		kong.Vars{"version": version + " " + commit + " " + date},
	)
	err := ctx.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(exitCode(err))
	}
}
