// Package ptychannel wraps a single PTY master/child pair: spawn, resize,
// signal delivery to the child's process group, and deadline-bounded reads.
// Everything above this layer talks to a Channel, never to creack/pty or
// os/exec directly.
package ptychannel

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"

	"agentpty/internal/ptyerr"
)

// StartOptions configures a new child process and its initial window size.
type StartOptions struct {
	Command string
	Args    []string
	Cwd     string
	Env     []string // full environment; a nil slice makes the child inherit this process's environment
	Cols    int
	Rows    int
}

// Channel owns one PTY master and the child attached to its slave side.
type Channel struct {
	ptmx *os.File
	cmd  *exec.Cmd
	pid  int
}

// Start spawns the child behind a new PTY sized to opts.Cols x opts.Rows.
func Start(opts StartOptions) (*Channel, error) {
	if opts.Command == "" {
		return nil, ptyerr.InvalidArgument("command is required")
	}
	cmd := exec.Command(opts.Command, opts.Args...)
	cmd.Dir = opts.Cwd
	cmd.Env = opts.Env

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Cols: uint16(opts.Cols),
		Rows: uint16(opts.Rows),
	})
	if err != nil {
		return nil, ptyerr.Spawn(err)
	}
	return &Channel{ptmx: ptmx, cmd: cmd, pid: cmd.Process.Pid}, nil
}

// Pid returns the child's process id.
func (c *Channel) Pid() int { return c.pid }

// ReadAvailable reads whatever the PTY has buffered before deadline
// elapses, returning io-error-wrapped causes other than a deadline expiry
// (which is reported as (0, nil) so callers can treat "nothing yet" as
// quiescence rather than failure).
func (c *Channel) ReadAvailable(buf []byte, deadline time.Time) (int, error) {
	if err := c.ptmx.SetReadDeadline(deadline); err != nil {
		// Some platforms' PTY fds don't support deadlines; fall back to
		// an un-bounded read so callers still get data eventually.
		return c.ptmx.Read(buf)
	}
	n, err := c.ptmx.Read(buf)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return n, nil
		}
		return n, ptyerr.IO(err)
	}
	return n, nil
}

// Write sends bytes to the child's stdin.
func (c *Channel) Write(p []byte) (int, error) {
	n, err := c.ptmx.Write(p)
	if err != nil {
		return n, ptyerr.IO(err)
	}
	return n, nil
}

// Resize changes the PTY's reported window size and delivers SIGWINCH via
// the kernel's TTY ioctl path (handled internally by pty.Setsize).
func (c *Channel) Resize(cols, rows int) error {
	if cols <= 0 || rows <= 0 {
		return ptyerr.InvalidArgument("cols and rows must be positive")
	}
	if err := pty.Setsize(c.ptmx, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)}); err != nil {
		return ptyerr.IO(err)
	}
	return nil
}

var signalsByName = map[string]syscall.Signal{
	"SIGINT":  unix.SIGINT,
	"SIGTERM": unix.SIGTERM,
	"SIGHUP":  unix.SIGHUP,
	"SIGKILL": unix.SIGKILL,
	"SIGQUIT": unix.SIGQUIT,
	"SIGTSTP": unix.SIGTSTP,
	"SIGCONT": unix.SIGCONT,
	"SIGWINCH": unix.SIGWINCH,
}

// Signal delivers the named signal to the terminal's foreground process
// group, so it reaches whatever foreground job the shell currently owns,
// not just the shell itself. If the foreground group can't be read from
// the PTY, the child's own process group is signalled instead.
func (c *Channel) Signal(name string) error {
	sig, ok := signalsByName[name]
	if !ok {
		return ptyerr.InvalidArgument(fmt.Sprintf("unknown signal %q", name))
	}
	pgrp := c.pid
	if rc, err := c.ptmx.SyscallConn(); err == nil {
		_ = rc.Control(func(fd uintptr) {
			if fg, err := unix.IoctlGetInt(int(fd), unix.TIOCGPGRP); err == nil && fg > 0 {
				pgrp = fg
			}
		})
	}
	if err := syscall.Kill(-pgrp, sig); err != nil {
		return ptyerr.IO(err)
	}
	return nil
}

// Wait blocks until the child exits and returns its exit code.
func (c *Channel) Wait() (int, error) {
	state, err := c.cmd.Process.Wait()
	if err != nil {
		return -1, ptyerr.IO(err)
	}
	if state == nil {
		return -1, nil
	}
	return state.ExitCode(), nil
}

// closeGracePeriod is how long Close waits for SIGHUP to take effect
// before escalating to SIGKILL.
const closeGracePeriod = 200 * time.Millisecond

// Close terminates the child (SIGHUP, matching a detached terminal hangup,
// escalating to SIGKILL if it's still alive after a brief grace period)
// and releases the PTY master. It does not itself reap the child — Wait
// is the single owner of that, called once the ingestion loop observes
// the master close and its read loop ends.
func (c *Channel) Close() error {
	_ = c.cmd.Process.Signal(syscall.SIGHUP)
	deadline := time.Now().Add(closeGracePeriod)
	for c.stillAlive() {
		if time.Now().After(deadline) {
			_ = c.cmd.Process.Signal(syscall.SIGKILL)
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	return c.ptmx.Close()
}

// stillAlive probes the child with signal 0, which succeeds as long as
// the process exists, including after it has exited but before it has
// been reaped, without touching
// cmd.Process.Wait (owned exclusively by the ingestion loop).
func (c *Channel) stillAlive() bool {
	return syscall.Kill(c.pid, 0) == nil
}
