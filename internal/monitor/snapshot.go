// Package monitor renders the state of the benchmark cache for operators:
// a one-shot summary, a plain line per reload, or a live Bubble Tea view.
package monitor

import (
	"time"

	"github.com/smileynet/benchdash/internal/cache"
	"github.com/smileynet/benchdash/internal/report"
)

// Source is the part of the cache the monitor reads.
type Source interface {
	Stats() cache.Stats
	Hardware() []report.Hardware
	Gitrefs(hardware string) []string
	Runs(hardware, gitref string) []report.Report
}

// GitrefRow is one gitref under a hardware row.
type GitrefRow struct {
	Ref  string
	Runs int
}

// HardwareRow groups the gitrefs recorded for one machine.
type HardwareRow struct {
	ID      string
	CPU     string
	Gitrefs []GitrefRow
}

// Snapshot is a point-in-time view of the cache.
type Snapshot struct {
	Stats cache.Stats
	Rows  []HardwareRow
	Taken time.Time
}

// Collect reads a Snapshot from src. The queries run one after another, so a
// reload landing in between may show up in some rows only.
func Collect(src Source) Snapshot {
	snap := Snapshot{Stats: src.Stats(), Taken: time.Now()}
	for _, hw := range src.Hardware() {
		row := HardwareRow{CPU: hw.CPUName}
		if hw.Identifier != nil {
			row.ID = *hw.Identifier
		}
		for _, ref := range src.Gitrefs(row.ID) {
			row.Gitrefs = append(row.Gitrefs, GitrefRow{Ref: ref, Runs: len(src.Runs(row.ID, ref))})
		}
		snap.Rows = append(snap.Rows, row)
	}
	return snap
}
