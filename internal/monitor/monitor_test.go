package monitor

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/exp/teatest"

	"github.com/smileynet/benchdash/internal/cache"
	"github.com/smileynet/benchdash/internal/report"
)

// fakeSource serves a fixed hardware → gitref → run-count tree.
type fakeSource struct {
	stats cache.Stats
	tree  map[string]map[string]int
	order []string
}

func (f fakeSource) Stats() cache.Stats { return f.stats }

func (f fakeSource) Hardware() []report.Hardware {
	out := make([]report.Hardware, 0, len(f.order))
	for _, id := range f.order {
		id := id
		out = append(out, report.Hardware{Identifier: &id, CPUName: "cpu-" + id})
	}
	return out
}

func (f fakeSource) Gitrefs(hw string) []string {
	refs := []string{}
	for ref := range f.tree[hw] {
		refs = append(refs, ref)
	}
	// Single-ref fixtures keep this deterministic.
	return refs
}

func (f fakeSource) Runs(hw, ref string) []report.Report {
	return make([]report.Report, f.tree[hw][ref])
}

func sampleSource() fakeSource {
	return fakeSource{
		stats: cache.Stats{Runs: 5, Hardware: 2, Gitrefs: 2, Generation: 3},
		tree: map[string]map[string]int{
			"box-1": {"v0.5.0": 3},
			"box-2": {"v0.4.0": 2},
		},
		order: []string{"box-1", "box-2"},
	}
}

func TestCollect(t *testing.T) {
	snap := Collect(sampleSource())

	if snap.Stats.Runs != 5 || len(snap.Rows) != 2 {
		t.Fatalf("snapshot = %+v", snap)
	}
	row := snap.Rows[0]
	if row.ID != "box-1" || row.CPU != "cpu-box-1" {
		t.Errorf("row[0] = %+v", row)
	}
	if len(row.Gitrefs) != 1 || row.Gitrefs[0] != (GitrefRow{Ref: "v0.5.0", Runs: 3}) {
		t.Errorf("row[0].Gitrefs = %+v", row.Gitrefs)
	}
	if snap.Taken.IsZero() {
		t.Error("Taken not set")
	}
}

func TestRenderSummary(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderSummary(&buf, "/srv/results", Collect(sampleSource())); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"/srv/results", "box-1", "v0.5.0", "(3)", "box-2", "(2)", "generation 3"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestRenderSummary_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderSummary(&buf, "dir", Snapshot{}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "no runs cached") {
		t.Errorf("empty summary = %q", buf.String())
	}
}

func TestModel_ReloadMsg(t *testing.T) {
	m := NewModel("dir", Snapshot{})
	snap := Collect(sampleSource())

	next, _ := m.Update(ReloadMsg{Snapshot: snap})
	got := next.(Model)
	if got.reloads != 1 || got.snap.Stats.Runs != 5 || got.lastErr != nil {
		t.Errorf("after reload: reloads=%d runs=%d err=%v", got.reloads, got.snap.Stats.Runs, got.lastErr)
	}

	// A failed reload keeps the previous snapshot.
	next, _ = got.Update(ReloadMsg{Err: errors.New("disk gone")})
	got = next.(Model)
	if got.lastErr == nil || got.snap.Stats.Runs != 5 {
		t.Errorf("after failed reload: runs=%d err=%v", got.snap.Stats.Runs, got.lastErr)
	}
	if !strings.Contains(got.View(), "reload failed: disk gone") {
		t.Errorf("view should show the failure:\n%s", got.View())
	}
}

func TestModel_RefreshKey(t *testing.T) {
	calls := 0
	m := NewModel("dir", Snapshot{}, WithRefresh(func() ReloadMsg {
		calls++
		return ReloadMsg{Snapshot: Collect(sampleSource())}
	}))
	r := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")}

	next, cmd := m.Update(r)
	got := next.(Model)
	if !got.refreshing || cmd == nil {
		t.Fatal("refresh key should start a reload")
	}
	if !strings.Contains(got.View(), "reloading") {
		t.Errorf("view should show reloading:\n%s", got.View())
	}

	// A second press while reloading is ignored.
	if _, cmd := got.Update(r); cmd != nil {
		t.Error("second refresh press should be ignored")
	}
	if calls != 0 {
		t.Errorf("refresh ran on the UI loop: calls = %d", calls)
	}
}

func TestModel_RefreshKeyWithoutRefresh(t *testing.T) {
	m := NewModel("dir", Snapshot{})
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	if cmd != nil || next.(Model).refreshing {
		t.Error("refresh key without a refresh func should do nothing")
	}
}

func TestModel_Scroll(t *testing.T) {
	// Given a tree taller than the window
	src := fakeSource{tree: map[string]map[string]int{}}
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		src.order = append(src.order, id)
		src.tree[id] = map[string]int{"v1": 1}
	}
	m := NewModel("dir", Collect(src))
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: chromeLines + 4})
	m = next.(Model)

	// When scrolling down past the end
	down := tea.KeyMsg{Type: tea.KeyDown}
	for _i := 0; _i < 20; _i++ {
		next, _ = m.Update(down)
		m = next.(Model)
	}

	// Then the offset stops at the last full window
	if want := 12 - 4; m.offset != want {
		t.Errorf("offset = %d, want %d", m.offset, want)
	}
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	if got := next.(Model).offset; got != 7 {
		t.Errorf("offset after up = %d, want 7", got)
	}
}

func TestModel_Teatest_LiveView(t *testing.T) {
	m := NewModel("/srv/results", Snapshot{})
	tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(80, 24))

	tm.Send(ReloadMsg{Snapshot: Collect(sampleSource())})
	tm.Send(ReloadMsg{Err: errors.New("boom")})
	tm.Send(DoneMsg{})

	tm.WaitFinished(t, teatest.WithFinalTimeout(2*time.Second))

	final := tm.FinalModel(t).(Model)
	if !final.done {
		t.Error("final model should be done")
	}
	if final.reloads != 2 || final.snap.Stats.Runs != 5 {
		t.Errorf("final reloads=%d runs=%d", final.reloads, final.snap.Stats.Runs)
	}
}

func TestModel_Teatest_QuitKey(t *testing.T) {
	tm := teatest.NewTestModel(t, NewModel("dir", Snapshot{}), teatest.WithInitialTermSize(80, 24))
	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	tm.WaitFinished(t, teatest.WithFinalTimeout(2*time.Second))

	if !tm.FinalModel(t).(Model).done {
		t.Error("q should quit")
	}
}

func TestPlainDisplay(t *testing.T) {
	var buf bytes.Buffer
	d := NewDisplay(DisplayOptions{Writer: &buf})
	if _, ok := d.(*PlainDisplay); !ok {
		t.Fatalf("NewDisplay(non-TTY) = %T, want *PlainDisplay", d)
	}

	b := NewBridge()
	b.Send(ReloadMsg{Snapshot: Collect(sampleSource())})
	b.Send(ReloadMsg{Err: errors.New("boom")})
	b.Done()

	if err := d.Run(context.Background(), b.Events()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "runs=5 hardware=2 gitrefs=2 generation=3") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.Contains(lines[1], "reload failed: boom") {
		t.Errorf("line 1 = %q", lines[1])
	}
}

func TestPlainDisplay_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := &PlainDisplay{w: &bytes.Buffer{}}
	if err := d.Run(ctx, NewBridge().Events()); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, want context.Canceled", err)
	}
}

func TestBridge_SendAfterDone(t *testing.T) {
	b := NewBridge()
	b.Done()
	b.Done()
	if b.Send(ReloadMsg{}) {
		t.Error("Send after Done should report false")
	}
}

func TestBridge_DropsWhenFull(t *testing.T) {
	b := NewBridge()
	sent := 0
	for _i := 0; _i < 20; _i++ {
		if b.Send(ReloadMsg{}) {
			sent++
		}
	}
	if sent != 16 {
		t.Errorf("sent = %d, want 16 (buffer size)", sent)
	}
}
