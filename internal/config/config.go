// Package config handles layered YAML configuration with environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all benchdash configuration.
type Config struct {
	Server  Server  `yaml:"server"`
	Results Results `yaml:"results"`
	Watch   Watch   `yaml:"watch"`
	Log     Log     `yaml:"log"`
	Metrics Metrics `yaml:"metrics"`
}

// Server holds HTTP listener settings.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns the listen address in host:port form.
func (s Server) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Results holds report store settings.
type Results struct {
	Dir         string `yaml:"dir"`
	ReportFile  string `yaml:"report_file"`  // File name inside each run directory
	LoadWorkers int    `yaml:"load_workers"` // 0 = GOMAXPROCS
}

// Watch holds directory watcher settings.
type Watch struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// Log holds logging settings.
type Log struct {
	Level  string `yaml:"level"`  // "debug" | "info" | "warn" | "error"
	Format string `yaml:"format"` // "auto" | "text" | "json"
}

// Metrics holds Prometheus exposition settings.
type Metrics struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Server: Server{
			Host: "127.0.0.1",
			Port: 8061,
		},
		Results: Results{
			Dir:        "./performance_results",
			ReportFile: "report.json",
		},
		Watch: Watch{
			Enabled:  true,
			Debounce: 5 * time.Second,
		},
		Log: Log{
			Level:  "info",
			Format: "auto",
		},
		Metrics: Metrics{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Load reads a single YAML config file at path and returns a Config.
// For merging multiple config sources, use LoadLayered instead.
// If the file does not exist, defaults are returned without error.
func Load(path string) (*Config, error) {
	return LoadLayered(path)
}

// LoadLayered loads config from multiple paths with increasing priority.
// Later paths override earlier ones. Missing files are skipped.
func LoadLayered(paths ...string) (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range paths {
		layer, err := loadLayer(path)
		if err != nil {
			return nil, err
		}
		if layer == nil {
			continue
		}
		cfg.merge(layer)
	}

	return &cfg, nil
}

// Validate checks that config values are usable.
func (c *Config) Validate() error {
	if c.Server.Host == "" {
		return errors.New("config: server.host cannot be empty")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port must be in 0..65535, got %d", c.Server.Port)
	}
	if c.Results.Dir == "" {
		return errors.New("config: results.dir cannot be empty")
	}
	if c.Results.ReportFile == "" {
		return errors.New("config: results.report_file cannot be empty")
	}
	if c.Results.LoadWorkers < 0 {
		return fmt.Errorf("config: results.load_workers must be non-negative, got %d", c.Results.LoadWorkers)
	}
	if c.Watch.Enabled && c.Watch.Debounce <= 0 {
		return fmt.Errorf("config: watch.debounce must be positive, got %v", c.Watch.Debounce)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "", "auto", "text", "json":
	default:
		return fmt.Errorf("config: log.format must be \"auto\", \"text\" or \"json\", got %q", c.Log.Format)
	}
	if c.Metrics.Enabled && (c.Metrics.Path == "" || c.Metrics.Path[0] != '/') {
		return fmt.Errorf("config: metrics.path must start with '/', got %q", c.Metrics.Path)
	}
	return nil
}

// ApplyEnv applies environment variable overrides to the config.
// Supported variables: BENCHDASH_RESULTS_DIR, BENCHDASH_ADDR_HOST,
// BENCHDASH_PORT, BENCHDASH_DEBOUNCE, BENCHDASH_LOG_LEVEL.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("BENCHDASH_RESULTS_DIR"); v != "" {
		c.Results.Dir = v
	}
	if v := os.Getenv("BENCHDASH_ADDR_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("BENCHDASH_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid BENCHDASH_PORT %q: %w", v, err)
		}
		c.Server.Port = p
	}
	if v := os.Getenv("BENCHDASH_DEBOUNCE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: invalid BENCHDASH_DEBOUNCE %q: %w", v, err)
		}
		c.Watch.Debounce = d
	}
	if v := os.Getenv("BENCHDASH_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

// rawConfig mirrors Config but uses pointers to distinguish set vs unset fields.
type rawConfig struct {
	Server  *rawServer  `yaml:"server"`
	Results *rawResults `yaml:"results"`
	Watch   *rawWatch   `yaml:"watch"`
	Log     *rawLog     `yaml:"log"`
	Metrics *rawMetrics `yaml:"metrics"`
}

type rawServer struct {
	Host *string `yaml:"host"`
	Port *int    `yaml:"port"`
}

type rawResults struct {
	Dir         *string `yaml:"dir"`
	ReportFile  *string `yaml:"report_file"`
	LoadWorkers *int    `yaml:"load_workers"`
}

type rawWatch struct {
	Enabled  *bool          `yaml:"enabled"`
	Debounce *time.Duration `yaml:"debounce"`
}

type rawLog struct {
	Level  *string `yaml:"level"`
	Format *string `yaml:"format"`
}

type rawMetrics struct {
	Enabled *bool   `yaml:"enabled"`
	Path    *string `yaml:"path"`
}

// loadLayer reads a single config file into a rawConfig for selective merging.
// Returns nil if the file does not exist. Rejects unknown fields.
func loadLayer(path string) (*rawConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if len(data) == 0 {
		return nil, nil
	}

	var raw rawConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		// Comment-only YAML files produce EOF with no decoded content.
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return &raw, nil
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// merge applies non-nil fields from a rawConfig layer onto this Config.
func (c *Config) merge(layer *rawConfig) {
	if s := layer.Server; s != nil {
		set(&c.Server.Host, s.Host)
		set(&c.Server.Port, s.Port)
	}
	if r := layer.Results; r != nil {
		set(&c.Results.Dir, r.Dir)
		set(&c.Results.ReportFile, r.ReportFile)
		set(&c.Results.LoadWorkers, r.LoadWorkers)
	}
	if w := layer.Watch; w != nil {
		set(&c.Watch.Enabled, w.Enabled)
		set(&c.Watch.Debounce, w.Debounce)
	}
	if l := layer.Log; l != nil {
		set(&c.Log.Level, l.Level)
		set(&c.Log.Format, l.Format)
	}
	if m := layer.Metrics; m != nil {
		set(&c.Metrics.Enabled, m.Enabled)
		set(&c.Metrics.Path, m.Path)
	}
}
