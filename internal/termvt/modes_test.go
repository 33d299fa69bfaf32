package termvt

import "testing"

func TestModeTracker_PlainTextAdvancesColumn(t *testing.T) {
	m := &modeTracker{}
	m.scan([]byte("hello"))
	if m.cursorCol != 5 {
		t.Errorf("cursorCol = %d, want 5", m.cursorCol)
	}
}

func TestModeTracker_NewlineAdvancesRowResetsColumn(t *testing.T) {
	m := &modeTracker{}
	m.scan([]byte("ab\r\ncd"))
	if m.cursorRow != 1 {
		t.Errorf("cursorRow = %d, want 1", m.cursorRow)
	}
	if m.cursorCol != 2 {
		t.Errorf("cursorCol = %d, want 2", m.cursorCol)
	}
}

func TestModeTracker_AltScreenEnterExit(t *testing.T) {
	m := &modeTracker{}
	m.scan([]byte("\x1b[?1049h"))
	if !m.altScreen {
		t.Fatal("expected altScreen true after ?1049h")
	}
	m.scan([]byte("\x1b[?1049l"))
	if m.altScreen {
		t.Fatal("expected altScreen false after ?1049l")
	}
}

func TestModeTracker_ApplicationKeypad(t *testing.T) {
	m := &modeTracker{}
	m.scan([]byte("\x1b="))
	if !m.appKeypad {
		t.Fatal("expected appKeypad true after ESC=")
	}
	m.scan([]byte("\x1b>"))
	if m.appKeypad {
		t.Fatal("expected appKeypad false after ESC>")
	}
}

func TestModeTracker_CursorPositionCSI(t *testing.T) {
	m := &modeTracker{}
	m.scan([]byte("\x1b[5;10H"))
	if m.cursorRow != 4 || m.cursorCol != 9 {
		t.Errorf("cursor = (%d,%d), want (4,9)", m.cursorRow, m.cursorCol)
	}
}

func TestModeTracker_SequenceSplitAcrossWrites(t *testing.T) {
	m := &modeTracker{}
	m.scan([]byte("\x1b[?10"))
	m.scan([]byte("49h"))
	if !m.altScreen {
		t.Fatal("expected altScreen true after sequence reassembled across two scans")
	}
}

func TestModeTracker_RelativeCursorMotion(t *testing.T) {
	m := &modeTracker{cursorCol: 5, cursorRow: 5}
	m.scan([]byte("\x1b[2A"))
	if m.cursorRow != 3 {
		t.Errorf("cursorRow = %d, want 3 after CUU 2", m.cursorRow)
	}
	m.scan([]byte("\x1b[3C"))
	if m.cursorCol != 8 {
		t.Errorf("cursorCol = %d, want 8 after CUF 3", m.cursorCol)
	}
}

func TestModeTracker_CursorNeverNegative(t *testing.T) {
	m := &modeTracker{}
	m.scan([]byte("\x1b[99A"))
	if m.cursorRow != 0 {
		t.Errorf("cursorRow = %d, want clamped to 0", m.cursorRow)
	}
}
