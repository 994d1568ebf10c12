package cache

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
)

// WorkflowsFile is the ledger of ingested CI workflow runs, kept in the
// results directory.
const WorkflowsFile = "gh_workflows.txt"

// WorkflowLedger records which CI workflow runs have already been ingested
// into the results directory, so pollers do not download them twice. The
// ledger is an append-only file with one workflow id per line.
type WorkflowLedger struct {
	mu   sync.Mutex
	ids  map[uint64]struct{}
	f    *os.File
	path string
}

// OpenWorkflowLedger opens (creating if needed) the ledger in dir and loads
// the ids already recorded. Malformed lines are ignored.
func OpenWorkflowLedger(dir string) (*WorkflowLedger, error) {
	path := filepath.Join(dir, WorkflowsFile)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("cache: opening workflow ledger %s: %w", path, err)
	}

	ids := make(map[uint64]struct{})
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		id, err := strconv.ParseUint(strings.TrimSpace(sc.Text()), 10, 64)
		if err != nil {
			continue
		}
		ids[id] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("cache: reading workflow ledger %s: %w", path, err)
	}

	return &WorkflowLedger{ids: ids, f: f, path: path}, nil
}

// Has reports whether the workflow id is recorded.
func (l *WorkflowLedger) Has(id uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.ids[id]
	return ok
}

// Add records a workflow id. It reports whether the id was new; only new ids
// are appended to the file.
func (l *WorkflowLedger) Add(id uint64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.ids[id]; ok {
		return false, nil
	}
	if l.f == nil {
		return false, errors.New("cache: workflow ledger is closed")
	}
	if _, err := fmt.Fprintf(l.f, "%d\n", id); err != nil {
		return false, fmt.Errorf("cache: writing workflow ledger %s: %w", l.path, err)
	}
	l.ids[id] = struct{}{}
	return true, nil
}

// IDs returns the recorded ids in ascending order.
func (l *WorkflowLedger) IDs() []uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]uint64, 0, len(l.ids))
	for id := range l.ids {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Close releases the ledger file. It is safe to call more than once.
func (l *WorkflowLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}
