package termvt

import "github.com/rivo/uniseg"

// modeTracker scans raw PTY bytes for the handful of escape sequences
// that change cursor position, alternate-screen state, or keypad mode.
// It is deliberately independent of the rendering engine: the mode bitset
// this package exposes must never depend on reaching into an internal
// field of a third-party terminal emulator.
type modeTracker struct {
	cursorCol, cursorRow int
	altScreen            bool
	appKeypad            bool

	// esc-sequence scan state, carried across Write calls so a sequence
	// split across two reads is still recognized.
	pending []byte
}

func (m *modeTracker) reset() {
	*m = modeTracker{}
}

// scan walks p looking for ESC-introduced sequences relevant to the mode
// bitset, advancing cursorCol/cursorRow for plain text and the handful of
// cursor-motion finals, and flipping altScreen/appKeypad on their CSI/ESC
// forms. It is intentionally coarse: full cursor tracking belongs to the
// rendering engine's own screen, not this bitset.
func (m *modeTracker) scan(p []byte) {
	data := p
	if len(m.pending) > 0 {
		data = append(m.pending, p...)
		m.pending = nil
	}

	i := 0
	for i < len(data) {
		b := data[i]
		switch {
		case b == 0x1b: // ESC
			n := m.scanEscape(data[i:])
			if n == 0 {
				// Incomplete sequence at the end of this chunk.
				m.pending = append(m.pending, data[i:]...)
				return
			}
			i += n
		case b == '\r':
			m.cursorCol = 0
			i++
		case b == '\n':
			m.cursorRow++
			i++
		case b == '\b':
			if m.cursorCol > 0 {
				m.cursorCol--
			}
			i++
		default:
			cluster, _, width, _ := uniseg.FirstGraphemeCluster(data[i:], -1)
			size := len(cluster)
			if size == 0 {
				size = 1
			}
			m.cursorCol += width
			i += size
		}
	}
}

// scanEscape consumes one escape sequence starting at data[0]=='\x1b' and
// returns its length, or 0 if data doesn't yet contain the whole sequence.
func (m *modeTracker) scanEscape(data []byte) int {
	if len(data) < 2 {
		return 0
	}
	switch data[1] {
	case '=': // DECKPAM: application keypad on
		m.appKeypad = true
		return 2
	case '>': // DECKPNM: application keypad off
		m.appKeypad = false
		return 2
	case '[':
		return m.scanCSI(data)
	default:
		return 2
	}
}

// scanCSI consumes a CSI sequence (ESC [ ... final) and applies the ones
// this tracker cares about: cursor motion and the alternate-screen
// private modes (?1049, ?47, ?1047).
func (m *modeTracker) scanCSI(data []byte) int {
	// data[0]=ESC data[1]='['
	i := 2
	for i < len(data) {
		c := data[i]
		if c >= 0x40 && c <= 0x7e { // final byte
			params := string(data[2:i])
			m.applyCSI(params, c)
			return i + 1
		}
		i++
	}
	return 0 // incomplete
}

func (m *modeTracker) applyCSI(params string, final byte) {
	switch final {
	case 'H', 'f':
		row, col := parsePair(params)
		m.cursorRow, m.cursorCol = row, col
	case 'A':
		m.cursorRow -= parseN(params, 1)
	case 'B':
		m.cursorRow += parseN(params, 1)
	case 'C':
		m.cursorCol += parseN(params, 1)
	case 'D':
		m.cursorCol -= parseN(params, 1)
	case 'h', 'l':
		if len(params) > 0 && params[0] == '?' {
			switch params[1:] {
			case "1049", "47", "1047":
				m.altScreen = final == 'h'
			}
		}
	}
	if m.cursorCol < 0 {
		m.cursorCol = 0
	}
	if m.cursorRow < 0 {
		m.cursorRow = 0
	}
}

func parseN(s string, def int) int {
	n := 0
	any := false
	for _, c := range s {
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
		any = true
	}
	if !any {
		return def
	}
	return n
}

func parsePair(s string) (int, int) {
	row, col := 1, 1
	for i := 0; i < len(s); i++ {
		if s[i] == ';' {
			row = parseN(s[:i], 1)
			col = parseN(s[i+1:], 1)
			return row - 1, col - 1
		}
	}
	if s != "" {
		row = parseN(s, 1)
	}
	return row - 1, 0
}
