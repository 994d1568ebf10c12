package monitor

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
)

// DisplayEvent is an event sent to a Display via the update channel.
type DisplayEvent interface {
	isDisplayEvent()
}

func (ReloadMsg) isDisplayEvent() {}
func (DoneMsg) isDisplayEvent()   {}

// Display renders cache reloads until the event channel closes.
type Display interface {
	Run(ctx context.Context, events <-chan DisplayEvent) error
}

// DisplayOptions configures display creation.
type DisplayOptions struct {
	Writer     io.Writer        // Output destination (default: os.Stdout).
	ForcePlain bool             // Force plain text even if TTY.
	Dir        string           // Results directory shown in the title.
	Initial    Snapshot         // State before the first reload.
	Refresh    func() ReloadMsg // Bound to the reload key (ignored by PlainDisplay).
}

// NewDisplay returns a TUI display when the writer is a TTY, or a plain text
// display otherwise. ForcePlain overrides TTY detection.
func NewDisplay(opts DisplayOptions) Display {
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}
	if opts.ForcePlain || !isTTY(opts.Writer) {
		return &PlainDisplay{w: opts.Writer}
	}
	return &TUIDisplay{opts: opts}
}

// isTTY reports whether w is connected to a terminal.
func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Bridge carries reload notifications from the watcher to a Display.
type Bridge struct {
	mu     sync.Mutex
	closed bool
	ch     chan DisplayEvent
}

// NewBridge creates a Bridge with a buffered event channel.
func NewBridge() *Bridge {
	return &Bridge{ch: make(chan DisplayEvent, 16)}
}

// Events returns the read-only channel for Display.Run to consume.
func (b *Bridge) Events() <-chan DisplayEvent {
	return b.ch
}

// Send delivers a reload notification without blocking. It reports false
// when the display is behind or the bridge is closed; the next reload
// carries a newer snapshot anyway.
func (b *Bridge) Send(msg ReloadMsg) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	select {
	case b.ch <- msg:
		return true
	default:
		return false
	}
}

// Done tells the display to exit and closes the channel. Later calls are no-ops.
func (b *Bridge) Done() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	select {
	case b.ch <- DoneMsg{}:
	default:
	}
	close(b.ch)
}

// PlainDisplay renders reloads as timestamped text lines.
type PlainDisplay struct {
	w io.Writer
}

// Run prints one line per reload until the channel closes, a DoneMsg
// arrives, or ctx is cancelled.
func (d *PlainDisplay) Run(ctx context.Context, events <-chan DisplayEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch msg := ev.(type) {
			case ReloadMsg:
				d.render(msg)
			case DoneMsg:
				return nil
			}
		}
	}
}

func (d *PlainDisplay) render(msg ReloadMsg) {
	ts := time.Now().Format("15:04:05")
	if msg.Err != nil {
		_, _ = fmt.Fprintf(d.w, "[%s] reload failed: %v\n", ts, msg.Err)
		return
	}
	s := msg.Snapshot.Stats
	_, _ = fmt.Fprintf(d.w, "[%s] reload: runs=%d hardware=%d gitrefs=%d generation=%d\n",
		ts, s.Runs, s.Hardware, s.Gitrefs, s.Generation)
}

// TUIDisplay renders reloads using a Bubble Tea terminal UI.
// Falls back to PlainDisplay if the TUI program fails to start.
type TUIDisplay struct {
	opts DisplayOptions
}

// Run starts the Bubble Tea program and feeds events from the channel. It
// returns when the user quits, the channel delivers DoneMsg, or ctx ends.
func (d *TUIDisplay) Run(ctx context.Context, events <-chan DisplayEvent) error {
	var mopts []ModelOption
	if d.opts.Refresh != nil {
		mopts = append(mopts, WithRefresh(d.opts.Refresh))
	}
	model := NewModel(d.opts.Dir, d.opts.Initial, mopts...)
	p := tea.NewProgram(model, tea.WithOutput(d.opts.Writer), tea.WithAltScreen())

	// Forward events through an intermediate channel so we can stop
	// the goroutine cleanly on TUI failure before falling back.
	fwd := make(chan DisplayEvent, 16)
	stop := make(chan struct{})

	go func() {
		defer close(fwd)
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				select {
				case fwd <- ev:
				case <-stop:
					return
				}
			case <-stop:
				return
			}
		}
	}()

	go func() {
		for ev := range fwd {
			p.Send(ev)
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
			p.Quit()
		case <-stop:
		}
	}()

	_, err := p.Run()
	close(stop)
	if err != nil {
		// Events already forwarded to the failed program are lost; each
		// ReloadMsg carries a full snapshot, so the next one catches up.
		plain := &PlainDisplay{w: d.opts.Writer}
		return plain.Run(ctx, events)
	}
	return nil
}
