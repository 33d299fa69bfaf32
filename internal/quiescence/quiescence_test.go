package quiescence

import (
	"context"
	"regexp"
	"testing"
	"time"

	"agentpty/internal/ptyingest"
)

func TestCollect_ReturnsEarlyOnQuietPeriod(t *testing.T) {
	ring := ptyingest.NewRing(4096)
	ring.Write([]byte("hello"))

	start := time.Now()
	data, cursor := Collect(context.Background(), ring, 0, 30*time.Millisecond, time.Second)
	elapsed := time.Since(start)

	if string(data) != "hello" {
		t.Errorf("data = %q, want %q", data, "hello")
	}
	if cursor != 5 {
		t.Errorf("cursor = %d, want 5", cursor)
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("Collect took %v, expected to return near the quiet window", elapsed)
	}
}

func TestCollect_RespectsMaxWait(t *testing.T) {
	ring := ptyingest.NewRing(4096)
	start := time.Now()
	_, _ = Collect(context.Background(), ring, 0, time.Hour, 50*time.Millisecond)
	if time.Since(start) > 500*time.Millisecond {
		t.Error("Collect did not respect maxWait ceiling")
	}
}

func TestPoll_ReturnsSinceCursor(t *testing.T) {
	ring := ptyingest.NewRing(4096)
	ring.Write([]byte("abc"))
	cursor := ring.Cursor()
	ring.Write([]byte("def"))

	data, newCursor := Poll(ring, cursor, 0)
	if string(data) != "def" {
		t.Errorf("data = %q, want %q", data, "def")
	}
	if newCursor != 6 {
		t.Errorf("newCursor = %d, want 6", newCursor)
	}
}

type fakeScreen struct {
	screen     string
	scrollback string
}

func (f fakeScreen) Screen() string                  { return f.screen }
func (f fakeScreen) Scrollback(maxLines int) string { return f.scrollback }

func TestExpect_MatchesLiteral(t *testing.T) {
	screen := fakeScreen{screen: "Password: "}
	matched, text := Expect(context.Background(), screen, Literal("Password:"), 10*time.Millisecond, time.Second)
	if !matched {
		t.Fatal("expected literal match")
	}
	if text == "" {
		t.Error("expected non-empty matched text")
	}
}

func TestExpect_TimesOutWithoutMatch(t *testing.T) {
	screen := fakeScreen{screen: "nothing interesting"}
	start := time.Now()
	matched, _ := Expect(context.Background(), screen, Literal("never appears"), 10*time.Millisecond, 60*time.Millisecond)
	if matched {
		t.Fatal("expected no match")
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("Expect did not respect maxWait ceiling")
	}
}

func TestExpect_MatchesRegexp(t *testing.T) {
	screen := fakeScreen{screen: "user@host:~$ "}
	re := Regexp{regexp.MustCompile(`\$ $`)}
	matched, _ := Expect(context.Background(), screen, re, 10*time.Millisecond, time.Second)
	if !matched {
		t.Fatal("expected regexp match against shell prompt")
	}
}
