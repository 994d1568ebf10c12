// Package cache keeps an indexed, in-memory view of the benchmark results
// directory and answers the dashboard's read queries from it.
//
// The primary map (run id → report and path) and the two secondary indices
// (hardware → gitrefs, gitref → run ids) are sharded maps. Readers and
// incremental writers contend on one shard at a time. A full load builds a
// complete snapshot off to the side and swaps it in atomically, so readers
// never observe a half-built or empty cache during a reload.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/smileynet/benchdash/internal/report"
)

// ErrInvalidResultsDir indicates the results directory is missing or is not a directory.
var ErrInvalidResultsDir = errors.New("cache: invalid results directory")

// Entry pairs a light report with the path of its full report file.
// Entries are replaced wholesale, never modified in place.
type Entry struct {
	Report report.Report
	Path   string
}

// Recorder receives cache activity for metrics export. ObserveCounts follows
// every Upsert and Remove; ObserveLoad follows every sweep.
type Recorder interface {
	ObserveLoad(d time.Duration, s Stats)
	ObserveCounts(s Stats)
	RunSkipped(reason string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveLoad(time.Duration, Stats) {}
func (nopRecorder) ObserveCounts(Stats)              {}
func (nopRecorder) RunSkipped(string)                {}

// snapshot is one generation of the primary map and its indices.
type snapshot struct {
	runs      *shardedMap[uuid.UUID, Entry]
	gitrefs   *shardedMap[string, *orderedSet[string]]    // hardware → gitrefs
	refToRuns *shardedMap[string, *orderedSet[uuid.UUID]] // gitref → run ids
}

func newSnapshot(shards int) *snapshot {
	return &snapshot{
		runs:      newShardedMap[uuid.UUID, Entry](shards, hashUUID),
		gitrefs:   newShardedMap[string, *orderedSet[string]](shards, hashString),
		refToRuns: newShardedMap[string, *orderedSet[uuid.UUID]](shards, hashString),
	}
}

// Cache is the shared benchmark cache. It is safe for concurrent use.
type Cache struct {
	dir        string
	reportFile string
	workers    int
	shards     int
	logger     *slog.Logger
	recorder   Recorder

	state atomic.Pointer[snapshot]

	// writeMu serialises writers so the index repair of one write is never
	// interleaved with another write. Readers never take it.
	writeMu sync.Mutex

	generation atomic.Uint64
	lastLoad   atomic.Int64 // unix nanos
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger used for per-run warnings.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Cache) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithWorkers bounds how many run directories are parsed in parallel.
// Zero keeps the default of GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(c *Cache) {
		if n != 0 {
			c.workers = n
		}
	}
}

// WithShards sets the shard count of every map.
func WithShards(n int) Option {
	return func(c *Cache) { c.shards = n }
}

// WithReportFile overrides the report filename looked up in each run directory.
func WithReportFile(name string) Option {
	return func(c *Cache) {
		if name != "" {
			c.reportFile = name
		}
	}
}

// New creates an empty cache over the results directory dir.
// Call Load to populate it.
func New(dir string, opts ...Option) *Cache {
	c := &Cache{
		dir:        dir,
		reportFile: report.FileName,
		workers:    runtime.GOMAXPROCS(0),
		shards:     defaultShards,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		recorder:   nopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.workers <= 0 {
		c.workers = 1
	}
	c.state.Store(newSnapshot(c.shards))
	return c
}

// Dir returns the results directory the cache is built from.
func (c *Cache) Dir() string { return c.dir }

// Load sweeps the results directory and swaps the result in as the current
// state. Only a failure to list the directory itself is returned; malformed
// runs are logged and skipped.
func (c *Cache) Load(ctx context.Context) error {
	start := time.Now()
	c.logger.Info("building benchmark cache", "dir", c.dir)

	next, err := c.build(ctx)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	c.state.Store(next)
	c.writeMu.Unlock()

	c.generation.Add(1)
	c.lastLoad.Store(time.Now().UnixNano())

	stats := c.Stats()
	elapsed := time.Since(start)
	c.recorder.ObserveLoad(elapsed, stats)
	c.logger.Info("benchmark cache loaded",
		"runs", stats.Runs,
		"hardware", stats.Hardware,
		"gitrefs", stats.Gitrefs,
		"elapsed", elapsed)
	return nil
}

// Reload replaces the cache contents with a fresh sweep of the results
// directory. Until the sweep completes, readers keep seeing the old state.
func (c *Cache) Reload(ctx context.Context) error {
	c.logger.Info("reloading benchmark cache")
	if err := c.Load(ctx); err != nil {
		return fmt.Errorf("cache: reload: %w", err)
	}
	return nil
}

// Clear empties the cache. Readers see an empty cache until the next Load.
func (c *Cache) Clear() {
	c.writeMu.Lock()
	c.state.Store(newSnapshot(c.shards))
	c.writeMu.Unlock()
}

// Upsert inserts or replaces the run described by r, whose full report lives
// at path, and repairs its index memberships.
func (c *Cache) Upsert(path string, r report.Report) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("cache: upsert %s: %w", path, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	s := c.state.Load()
	prev, existed := s.runs.Swap(r.UUID, Entry{Report: r, Path: path})
	if !existed || prev.Report.HardwareID() != r.HardwareID() || prev.Report.Gitref() != r.Gitref() {
		if existed {
			s.unindex(prev.Report)
		}
		s.index(r)
	}
	c.recorder.ObserveCounts(c.Stats())
	return nil
}

// Remove deletes the run with the given id and prunes it from both indices.
// It reports whether the run was present.
func (c *Cache) Remove(id uuid.UUID) bool {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	s := c.state.Load()
	e, ok := s.runs.Load(id)
	if !ok {
		return false
	}
	// Indices first: a reader may briefly miss the run through an index,
	// but never finds an index entry without a primary entry.
	s.unindex(e.Report)
	s.runs.Delete(id)
	c.recorder.ObserveCounts(c.Stats())
	return true
}

// insert adds a validated run to a snapshot that is not yet shared.
func (s *snapshot) insert(path string, r report.Report) {
	prev, existed := s.runs.Swap(r.UUID, Entry{Report: r, Path: path})
	if existed {
		s.unindex(prev.Report)
	}
	s.index(r)
}

func (s *snapshot) index(r report.Report) {
	hw, ref, id := r.HardwareID(), r.Gitref(), r.UUID
	s.gitrefs.Compute(hw, func(set *orderedSet[string], ok bool) (*orderedSet[string], bool) {
		if !ok {
			set = newOrderedSet[string]()
		}
		set.add(ref)
		return set, true
	})
	s.refToRuns.Compute(ref, func(set *orderedSet[uuid.UUID], ok bool) (*orderedSet[uuid.UUID], bool) {
		if !ok {
			set = newOrderedSet[uuid.UUID]()
		}
		set.add(id)
		return set, true
	})
}

func (s *snapshot) unindex(r report.Report) {
	hw, ref, id := r.HardwareID(), r.Gitref(), r.UUID
	s.gitrefs.Compute(hw, func(set *orderedSet[string], ok bool) (*orderedSet[string], bool) {
		if !ok {
			return nil, false
		}
		return set, !set.release(ref)
	})
	s.refToRuns.Compute(ref, func(set *orderedSet[uuid.UUID], ok bool) (*orderedSet[uuid.UUID], bool) {
		if !ok {
			return nil, false
		}
		return set, !set.release(id)
	})
}

// Stats summarises the current cache state.
type Stats struct {
	Runs       int       `json:"runs"`
	Hardware   int       `json:"hardware"`
	Gitrefs    int       `json:"gitrefs"`
	Generation uint64    `json:"generation"`
	LastLoad   time.Time `json:"last_load"`
}

// Stats returns counts for the current state. Counts are read shard by shard
// and may straddle a concurrent write.
func (c *Cache) Stats() Stats {
	s := c.state.Load()
	refs := 0
	s.refToRuns.Range(func(string, *orderedSet[uuid.UUID]) bool {
		refs++
		return true
	})
	st := Stats{
		Runs:       s.runs.Len(),
		Hardware:   s.gitrefs.Len(),
		Gitrefs:    refs,
		Generation: c.generation.Load(),
	}
	if ns := c.lastLoad.Load(); ns != 0 {
		st.LastLoad = time.Unix(0, ns)
	}
	return st
}

// reportPath returns the report file location for a run directory.
func (c *Cache) reportPath(runDir string) string {
	return filepath.Join(runDir, c.reportFile)
}
