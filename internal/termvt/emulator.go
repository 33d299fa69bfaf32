// Package termvt renders PTY output into a VT100 screen plus a bounded
// scrollback, the way other_examples/dcosson-h2__session.go wires a pair
// of *midterm.Terminal instances around a child PTY: one tracks the live
// screen, the other is an append-only accumulator fed the same bytes.
//
// Cursor position, alternate-screen state, and keypad mode are tracked by
// a small scanner in modes.go rather than read back out of midterm, so the
// mode bitset this package exposes never depends on an unexported or
// unstable field of the rendering engine.
package termvt

import (
	"strings"
	"sync"

	"github.com/vito/midterm"
)

// Emulator owns the live screen, the scrollback accumulator, and the
// coarse mode tracker for one session.
type Emulator struct {
	mu    sync.Mutex
	cols  int
	rows  int
	vt    *midterm.Terminal
	sb    *midterm.Terminal
	sbCap int
	modes modeTracker
	healthy bool
}

// New builds an Emulator for a cols x rows screen with a scrollback capped
// at sbLines lines.
func New(cols, rows, sbLines int) *Emulator {
	e := &Emulator{
		cols:    cols,
		rows:    rows,
		vt:      midterm.NewTerminal(rows, cols),
		sb:      midterm.NewTerminal(sbLines, cols),
		sbCap:   sbLines,
		healthy: true,
	}
	e.sb.AppendOnly = true
	e.modes.reset()
	return e
}

// ForwardResponsesTo wires the terminal's device-status/cursor-position
// query responses to w, matching midterm's ForwardResponses field as used
// when daemonized (no local terminal to forward requests to).
func (e *Emulator) ForwardResponsesTo(w interface{ Write([]byte) (int, error) }) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vt.ForwardResponses = w
}

// Write feeds raw child output into both the live screen and, when the
// screen is not showing the alternate buffer, the scrollback accumulator.
// It also updates the coarse mode tracker.
func (e *Emulator) Write(p []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.modes.scan(p)

	if _, err := e.vt.Write(p); err != nil {
		e.healthy = false
		return 0, err
	}
	if !e.modes.altScreen {
		if _, err := e.sb.Write(p); err != nil {
			e.healthy = false
			return 0, err
		}
	}
	return len(p), nil
}

// Screen returns the current rendered screen as plain text, rows
// newline-joined, trailing blank rows trimmed the way a terminal's
// visible viewport is normally reported.
func (e *Emulator) Screen() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return strings.TrimRight(e.vt.String(), "\n")
}

// Scrollback returns up to maxLines of accumulated scrollback text (oldest
// first). maxLines <= 0 means "all of it".
func (e *Emulator) Scrollback(maxLines int) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	text := e.sb.String()
	if maxLines <= 0 {
		return text
	}
	lines := strings.Split(text, "\n")
	if len(lines) <= maxLines {
		return text
	}
	return strings.Join(lines[len(lines)-maxLines:], "\n")
}

// ClearScrollback discards accumulated scrollback without touching the
// live screen.
func (e *Emulator) ClearScrollback() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sb = midterm.NewTerminal(e.sbCap, e.cols)
	e.sb.AppendOnly = true
}

// Resize changes the live screen's dimensions. The scrollback accumulator
// keeps its own height; only its column width follows the resize so
// previously-written lines don't get mangled.
func (e *Emulator) Resize(cols, rows int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cols, e.rows = cols, rows
	e.vt = midterm.NewTerminal(rows, cols)
	e.sb = midterm.NewTerminal(e.sbCap, cols)
	e.sb.AppendOnly = true
}

// Cursor returns the tracked cursor position (0-indexed).
func (e *Emulator) Cursor() (col, row int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.modes.cursorCol, e.modes.cursorRow
}

// AltScreen reports whether the alternate screen buffer is active.
func (e *Emulator) AltScreen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.modes.altScreen
}

// ApplicationKeypad reports whether application keypad mode is active.
func (e *Emulator) ApplicationKeypad() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.modes.appKeypad
}

// Healthy reports whether the rendering engine has encountered a write
// error. Once false it stays false; later writes are still fed to the
// rendering engine.
func (e *Emulator) Healthy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.healthy
}
