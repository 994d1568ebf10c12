package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/smileynet/benchdash/internal/report"
)

// runFixture describes a fixture run written to a results directory.
type runFixture struct {
	id     uuid.UUID
	hw     string
	gitref string
	date   string
	params string
	name   string
}

func (rs runFixture) report() report.Report {
	r := report.Report{
		Timestamp: "2025-01-01T00:00:00Z",
		UUID:      rs.id,
		Params: report.Params{
			BenchmarkKind:    "pinned_producer",
			Transport:        "tcp",
			PrettyName:       rs.name,
			ParamsIdentifier: rs.params,
		},
		Hardware: report.Hardware{CPUName: "test-cpu", CPUCores: 8},
		GroupMetrics: []report.GroupMetrics{
			{Summary: report.GroupSummary{Kind: report.Producers, TotalThroughputMegabytesPerSecond: 100}},
		},
	}
	if rs.hw != "" {
		hw := rs.hw
		r.Hardware.Identifier = &hw
	}
	if rs.gitref != "" {
		ref := rs.gitref
		r.Params.Gitref = &ref
	}
	if rs.date != "" {
		date := rs.date
		r.Params.GitrefDate = &date
	}
	return r
}

// writeRun writes rs as dirName/report.json under root and returns the report path.
func writeRun(t *testing.T, root, dirName string, rs runFixture) string {
	t.Helper()
	data, err := json.Marshal(rs.report())
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	return writeRaw(t, root, dirName, data)
}

func writeRaw(t *testing.T, root, dirName string, data []byte) string {
	t.Helper()
	dir := filepath.Join(root, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, report.FileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// contents is a comparable dump of every structure in the cache.
type contents struct {
	runs    map[uuid.UUID]string
	gitrefs map[string][]string
	refRuns map[string][]string
}

func dump(c *Cache) contents {
	s := c.state.Load()
	out := contents{
		runs:    make(map[uuid.UUID]string),
		gitrefs: make(map[string][]string),
		refRuns: make(map[string][]string),
	}
	s.runs.Range(func(id uuid.UUID, e Entry) bool {
		out.runs[id] = e.Path
		return true
	})
	s.gitrefs.Range(func(hw string, set *orderedSet[string]) bool {
		vals := set.values()
		sort.Strings(vals)
		out.gitrefs[hw] = vals
		return true
	})
	s.refToRuns.Range(func(ref string, set *orderedSet[uuid.UUID]) bool {
		var ids []string
		for _, id := range set.values() {
			ids = append(ids, id.String())
		}
		sort.Strings(ids)
		out.refRuns[ref] = ids
		return true
	})
	return out
}

type fakeRecorder struct {
	mu      sync.Mutex
	loads   int
	counts  []Stats
	skipped map[string]int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{skipped: make(map[string]int)}
}

func (r *fakeRecorder) ObserveLoad(_ time.Duration, _ Stats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loads++
}

func (r *fakeRecorder) ObserveCounts(s Stats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts = append(r.counts, s)
}

func (r *fakeRecorder) RunSkipped(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skipped[reason]++
}
