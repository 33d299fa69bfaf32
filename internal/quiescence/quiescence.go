// Package quiescence implements the three output-collection strategies a
// session can use to decide when a command's response is "done": waiting
// for a quiet period, a single poll, and a pattern match against the
// rendered screen.
package quiescence

import (
	"context"
	"regexp"
	"strings"
	"time"

	"agentpty/internal/ptyingest"
)

// ScreenReader is the subset of termvt.Emulator Expect needs to read the
// rendered screen without depending on the concrete emulator type.
type ScreenReader interface {
	Screen() string
	Scrollback(maxLines int) string
}

// Collect waits for the ring to go silent for at least quiet, or until
// maxWait elapses, whichever comes first, returning everything written
// since cursor. This is the default strategy `run` and `send_input` use:
// it lets a fast command return quickly while still giving a slow one the
// full maxWait budget.
func Collect(ctx context.Context, ring *ptyingest.Ring, cursor int64, quiet, maxWait time.Duration) ([]byte, int64) {
	deadline := time.Now().Add(maxWait)
	ticker := time.NewTicker(quietPollInterval(quiet))
	defer ticker.Stop()

	var collected []byte
	lastChange := time.Now()
	lastCursor := cursor

	for {
		chunk, newCursor := ring.Since(lastCursor)
		if len(chunk) > 0 {
			collected = append(collected, chunk...)
			lastCursor = newCursor
			lastChange = time.Now()
		}

		if time.Since(lastChange) >= quiet {
			return collected, lastCursor
		}
		if time.Now().After(deadline) {
			return collected, lastCursor
		}
		select {
		case <-ctx.Done():
			return collected, lastCursor
		case <-ticker.C:
		}
	}
}

// Poll returns whatever is available right now without waiting for
// quiescence, after a single short grace window to let the kernel flush
// buffered PTY output (mirroring pexpect's send-space-backspace flush
// trick in the original's poll_output, minus the side-effecting
// keystrokes: the ring already captures everything written, so no flush
// nudge is needed here).
func Poll(ring *ptyingest.Ring, cursor int64, grace time.Duration) ([]byte, int64) {
	if grace > 0 {
		time.Sleep(grace)
	}
	return ring.Since(cursor)
}

// Expect waits until the rendered screen+scrollback matches pattern, or
// maxWait elapses. Matching against rendered text rather than raw bytes
// is deliberate: a program could otherwise "spoof" a match by emitting
// the pattern's bytes inside an escape sequence that never reaches the
// visible screen.
func Expect(ctx context.Context, screen ScreenReader, pattern Matcher, pollEvery, maxWait time.Duration) (matched bool, text string) {
	deadline := time.Now().Add(maxWait)
	ticker := time.NewTicker(pollEvery)
	defer ticker.Stop()

	for {
		visible := screen.Screen()
		if sb := screen.Scrollback(0); sb != "" {
			visible += "\n" + sb
		}
		if pattern.Match(visible) {
			return true, visible
		}
		if time.Now().After(deadline) {
			return false, visible
		}
		select {
		case <-ctx.Done():
			return false, visible
		case <-ticker.C:
		}
	}
}

// Matcher is satisfied by both a literal-substring and a regexp matcher,
// so Expect doesn't care which kind of pattern a caller supplies.
type Matcher interface {
	Match(text string) bool
}

// Literal matches if the visible text contains the substring verbatim.
type Literal string

func (l Literal) Match(text string) bool { return strings.Contains(text, string(l)) }

// Regexp matches using a compiled regular expression, for callers that
// need `expect` to recognize a class of prompts rather than one literal
// string.
type Regexp struct{ *regexp.Regexp }

func (r Regexp) Match(text string) bool { return r.Regexp.MatchString(text) }

func quietPollInterval(quiet time.Duration) time.Duration {
	d := quiet / 10
	if d < 10*time.Millisecond {
		return 10 * time.Millisecond
	}
	if d > 200*time.Millisecond {
		return 200 * time.Millisecond
	}
	return d
}
