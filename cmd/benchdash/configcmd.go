package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/smileynet/benchdash"
)

// ConfigCmd groups configuration helpers.
type ConfigCmd struct {
	Init ConfigInitCmd `cmd:"" help:"Write a commented default config file."`
	Show ConfigShowCmd `cmd:"" help:"Print the effective configuration."`
}

// ConfigInitCmd writes the embedded config template.
type ConfigInitCmd struct {
	Path  string `help:"Destination file." default:".benchdash/config.yaml" type:"path"`
	Force bool   `help:"Overwrite an existing file."`
}

// Run executes the config init command.
func (c *ConfigInitCmd) Run() error {
	return c.run(os.Stdout)
}

func (c *ConfigInitCmd) run(w io.Writer) error {
	if !c.Force {
		if _, err := os.Stat(c.Path); err == nil {
			return fmt.Errorf("config init: %s already exists (use --force to overwrite)", c.Path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config init: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(c.Path), 0o755); err != nil {
		return fmt.Errorf("config init: %w", err)
	}
	if err := os.WriteFile(c.Path, benchdash.ConfigTemplate(), 0o644); err != nil {
		return fmt.Errorf("config init: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Wrote %s\n", c.Path)
	return nil
}

// ConfigShowCmd prints the merged configuration as YAML.
type ConfigShowCmd struct {
	CommonFlags `embed:""`
}

// Run executes the config show command.
func (c *ConfigShowCmd) Run() error {
	return c.run(os.Stdout)
}

func (c *ConfigShowCmd) run(w io.Writer) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return fmt.Errorf("config show: %w", err)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("config show: %w", err)
	}
	return enc.Close()
}
