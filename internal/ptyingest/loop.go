package ptyingest

import (
	"sync/atomic"
	"time"

	"agentpty/internal/ptylog"
)

// Channel is the subset of ptychannel.Channel the ingestion loop needs,
// kept as an interface so the loop can be tested against a fake.
type Channel interface {
	ReadAvailable(buf []byte, deadline time.Time) (int, error)
	Wait() (int, error)
}

// Emulator is the subset of termvt.Emulator the ingestion loop feeds.
type Emulator interface {
	Write(p []byte) (int, error)
}

// Transcript is the subset of transcript.Store the ingestion loop writes
// raw bytes to.
type Transcript interface {
	AppendRaw(data []byte) error
}

// Loop owns the single goroutine that drains one session's PTY channel
// and fans each chunk out, in order, to the transcript, the emulator, and
// the ingestion ring, then touches the session's last-activity clock.
// Generalizes the teacher's per-session reader goroutine (session.go's
// Create) from "buffer + one callback" to this three-way fan-out.
type Loop struct {
	ch         Channel
	emulator   Emulator
	transcript Transcript
	ring       *Ring
	logger     *ptylog.Logger

	lastActivity atomic.Int64 // unix nanos
	onExit       func(exitCode int)

	pending []byte // bytes held back pending completion of a split multi-byte UTF-8 sequence
}

// New builds a Loop. onExit is called once, from the loop's own
// goroutine, after the channel's Wait() returns.
func New(ch Channel, emulator Emulator, transcript Transcript, ring *Ring, logger *ptylog.Logger, onExit func(int)) *Loop {
	l := &Loop{ch: ch, emulator: emulator, transcript: transcript, ring: ring, logger: logger, onExit: onExit}
	l.touch()
	return l
}

// Run drains the channel until it hits a terminal error or EOF, then
// waits for the child to exit and reports its code via onExit. Intended
// to be launched with `go loop.Run()`; it returns only when the session
// is done.
func (l *Loop) Run() {
	buf := make([]byte, 32*1024)
	for {
		n, err := l.ch.ReadAvailable(buf, time.Now().Add(250*time.Millisecond))
		if n > 0 {
			l.ingest(buf[:n])
		}
		if err != nil {
			break
		}
	}
	l.flushPending()
	exitCode, waitErr := l.ch.Wait()
	if waitErr != nil && l.logger != nil {
		l.logger.Warn("wait for child failed")
	}
	if l.onExit != nil {
		l.onExit(exitCode)
	}
}

// ingest performs the fixed-order fan-out: transcript first (so the raw
// record is never lost to a later stage's panic or slow consumer), then
// the emulator, then the ring, then the activity clock. A multi-byte
// UTF-8 sequence split across two PTY reads would otherwise hit the
// emulator as two invalid runs, so any incomplete trailing sequence is
// held back and prepended to the next chunk instead.
func (l *Loop) ingest(chunk []byte) {
	if len(l.pending) > 0 {
		chunk = append(l.pending, chunk...)
		l.pending = nil
	}
	if tail := incompleteUTF8Tail(chunk); tail > 0 {
		l.pending = append([]byte(nil), chunk[len(chunk)-tail:]...)
		chunk = chunk[:len(chunk)-tail]
	}
	if len(chunk) == 0 {
		return
	}

	if err := l.transcript.AppendRaw(chunk); err != nil && l.logger != nil {
		l.logger.Warn("transcript append failed")
	}
	if _, err := l.emulator.Write(chunk); err != nil && l.logger != nil {
		l.logger.Warn("emulator write failed")
	}
	l.ring.Write(chunk)
	l.touch()
}

// flushPending fans out any bytes still held back once the channel has
// gone away for good; a trailing partial sequence at that point can never
// complete, so it's written as-is rather than silently dropped.
func (l *Loop) flushPending() {
	if len(l.pending) == 0 {
		return
	}
	chunk := l.pending
	l.pending = nil
	if err := l.transcript.AppendRaw(chunk); err != nil && l.logger != nil {
		l.logger.Warn("transcript append failed")
	}
	if _, err := l.emulator.Write(chunk); err != nil && l.logger != nil {
		l.logger.Warn("emulator write failed")
	}
	l.ring.Write(chunk)
	l.touch()
}

func (l *Loop) touch() {
	l.lastActivity.Store(time.Now().UnixNano())
}

// LastActivity returns the time of the most recent chunk ingested (or
// loop construction, if none yet).
func (l *Loop) LastActivity() time.Time {
	return time.Unix(0, l.lastActivity.Load())
}
