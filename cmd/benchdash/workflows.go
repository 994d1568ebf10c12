package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/smileynet/benchdash/internal/cache"
)

// errNotRecorded is returned by "workflows has" for unknown ids.
var errNotRecorded = errors.New("workflow not recorded")

// WorkflowsCmd groups the workflow ledger subcommands.
type WorkflowsCmd struct {
	Add  WorkflowsAddCmd  `cmd:"" help:"Record workflow run ids as ingested."`
	Has  WorkflowsHasCmd  `cmd:"" help:"Exit non-zero unless the workflow run id is recorded."`
	List WorkflowsListCmd `cmd:"" help:"List recorded workflow run ids."`
}

// WorkflowsAddCmd appends ids to the ledger.
type WorkflowsAddCmd struct {
	CommonFlags `embed:""`

	IDs []uint64 `arg:"" name:"id" help:"Workflow run ids."`
}

// WorkflowsHasCmd checks a single id.
type WorkflowsHasCmd struct {
	CommonFlags `embed:""`

	ID uint64 `arg:"" help:"Workflow run id."`
}

// WorkflowsListCmd prints every recorded id.
type WorkflowsListCmd struct {
	CommonFlags `embed:""`
}

// openLedger resolves the results directory from config and opens its ledger.
func openLedger(f CommonFlags) (*cache.WorkflowLedger, error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cache.CheckResultsDir(cfg.Results.Dir); err != nil {
		return nil, err
	}
	return cache.OpenWorkflowLedger(cfg.Results.Dir)
}

// Run executes the add command.
func (c *WorkflowsAddCmd) Run() error {
	l, err := openLedger(c.CommonFlags)
	if err != nil {
		return fmt.Errorf("workflows add: %w", err)
	}
	defer l.Close()
	return c.run(os.Stdout, l)
}

func (c *WorkflowsAddCmd) run(w io.Writer, l *cache.WorkflowLedger) error {
	for _, id := range c.IDs {
		added, err := l.Add(id)
		if err != nil {
			return fmt.Errorf("workflows add: %w", err)
		}
		if added {
			_, _ = fmt.Fprintf(w, "recorded %d\n", id)
		} else {
			_, _ = fmt.Fprintf(w, "already recorded %d\n", id)
		}
	}
	return nil
}

// Run executes the has command.
func (c *WorkflowsHasCmd) Run() error {
	l, err := openLedger(c.CommonFlags)
	if err != nil {
		return fmt.Errorf("workflows has: %w", err)
	}
	defer l.Close()
	return c.run(l)
}

func (c *WorkflowsHasCmd) run(l *cache.WorkflowLedger) error {
	if !l.Has(c.ID) {
		return fmt.Errorf("workflows has: %d: %w", c.ID, errNotRecorded)
	}
	return nil
}

// Run executes the list command.
func (c *WorkflowsListCmd) Run() error {
	l, err := openLedger(c.CommonFlags)
	if err != nil {
		return fmt.Errorf("workflows list: %w", err)
	}
	defer l.Close()
	return c.run(os.Stdout, l)
}

func (c *WorkflowsListCmd) run(w io.Writer, l *cache.WorkflowLedger) error {
	for _, id := range l.IDs() {
		if _, err := fmt.Fprintln(w, id); err != nil {
			return err
		}
	}
	return nil
}
