package cache

import (
	"cmp"
	"path/filepath"
	"slices"

	"github.com/google/uuid"

	"github.com/smileynet/benchdash/internal/report"
)

// Queries read the state current at call time. Two consecutive queries may
// observe different generations if a reload lands between them.

// Hardware returns every hardware descriptor seen across cached runs,
// deduplicated by identifier and sorted by it.
func (c *Cache) Hardware() []report.Hardware {
	s := c.state.Load()
	seen := make(map[string]report.Hardware)
	s.runs.Range(func(_ uuid.UUID, e Entry) bool {
		if id := e.Report.HardwareID(); id != "" {
			seen[id] = e.Report.Hardware
		}
		return true
	})

	out := make([]report.Hardware, 0, len(seen))
	for _, hw := range seen {
		out = append(out, hw)
	}
	slices.SortFunc(out, func(a, b report.Hardware) int {
		return cmp.Compare(*a.Identifier, *b.Identifier)
	})
	return out
}

// Gitrefs returns the gitrefs recorded for a hardware identifier, in the
// order they were first indexed. Unknown hardware yields an empty slice.
func (c *Cache) Gitrefs(hardware string) []string {
	out := []string{}
	c.state.Load().gitrefs.View(hardware, func(set *orderedSet[string]) {
		out = set.values()
	})
	return out
}

// Runs returns the runs recorded for hardware at gitref, sorted by pretty
// name with the run id as tie-break.
func (c *Cache) Runs(hardware, gitref string) []report.Report {
	s := c.state.Load()
	out := []report.Report{}
	for _, e := range s.entriesForGitref(gitref) {
		if e.Report.HardwareID() == hardware {
			out = append(out, e.Report)
		}
	}
	slices.SortFunc(out, func(a, b report.Report) int {
		if n := cmp.Compare(a.Params.PrettyName, b.Params.PrettyName); n != 0 {
			return n
		}
		return cmp.Compare(a.UUID.String(), b.UUID.String())
	})
	return out
}

// RunsForGitref returns all runs recorded at gitref on any hardware, in
// index insertion order.
func (c *Cache) RunsForGitref(gitref string) []report.Report {
	entries := c.state.Load().entriesForGitref(gitref)
	out := make([]report.Report, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Report)
	}
	return out
}

// Run returns the light report of a run.
func (c *Cache) Run(id uuid.UUID) (report.Report, bool) {
	e, ok := c.state.Load().runs.Load(id)
	return e.Report, ok
}

// Entry returns the report and report path of a run as one consistent pair.
func (c *Cache) Entry(id uuid.UUID) (Entry, bool) {
	return c.state.Load().runs.Load(id)
}

// Path returns the location of a run's full report file.
func (c *Cache) Path(id uuid.UUID) (string, bool) {
	e, ok := c.Entry(id)
	return e.Path, ok
}

// RunDir returns the directory holding a run's artifacts.
func (c *Cache) RunDir(id uuid.UUID) (string, bool) {
	p, ok := c.Path(id)
	if !ok {
		return "", false
	}
	return filepath.Dir(p), true
}

// Trend returns every run on hardware sharing the parameter signature,
// across all gitrefs, ordered by gitref commit date. Runs without a usable
// date sort first. Equal dates keep index order: gitrefs as first recorded
// for the hardware, then runs as first recorded for the gitref.
func (c *Cache) Trend(paramsIdentifier, hardware string) []report.Report {
	s := c.state.Load()

	var refs []string
	s.gitrefs.View(hardware, func(set *orderedSet[string]) {
		refs = set.values()
	})

	out := []report.Report{}
	for _, ref := range refs {
		for _, e := range s.entriesForGitref(ref) {
			r := e.Report
			if r.HardwareID() == hardware && r.Params.ParamsIdentifier == paramsIdentifier {
				out = append(out, r)
			}
		}
	}
	slices.SortStableFunc(out, func(a, b report.Report) int {
		return a.GitrefDate().Compare(b.GitrefDate())
	})
	return out
}

// entriesForGitref resolves the gitref index cell against the primary map.
// Ids already gone from the primary map, or whose entry has moved to another
// gitref while the index is being repaired, are skipped.
func (s *snapshot) entriesForGitref(gitref string) []Entry {
	var ids []uuid.UUID
	s.refToRuns.View(gitref, func(set *orderedSet[uuid.UUID]) {
		ids = set.values()
	})

	out := make([]Entry, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.runs.Load(id); ok && e.Report.Gitref() == gitref {
			out = append(out, e)
		}
	}
	return out
}
