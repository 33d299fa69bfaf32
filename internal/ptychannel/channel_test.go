package ptychannel

import (
	"syscall"
	"testing"
	"time"
)

func TestClose_KillsChildThatIgnoresSIGHUP(t *testing.T) {
	ch, err := Start(StartOptions{
		Command: "sh",
		Args:    []string{"-c", "trap '' HUP; sleep 30"},
		Cols:    80,
		Rows:    24,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	pid := ch.Pid()

	start := time.Now()
	if err := ch.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	elapsed := time.Since(start)

	if elapsed > time.Second {
		t.Errorf("Close took %v, want it to escalate to SIGKILL within its grace period", elapsed)
	}
	if syscall.Kill(pid, 0) == nil {
		t.Error("child still alive after Close, want SIGKILL escalation to have ended it")
	}

	if _, err := ch.Wait(); err != nil {
		t.Errorf("Wait: %v", err)
	}
}

func TestClose_LetsCooperativeChildExitOnSIGHUP(t *testing.T) {
	ch, err := Start(StartOptions{
		Command: "sh",
		Args:    []string{"-c", "sleep 30"},
		Cols:    80,
		Rows:    24,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	pid := ch.Pid()

	if err := ch.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if syscall.Kill(pid, 0) == nil {
		t.Error("child still alive after Close")
	}

	if _, err := ch.Wait(); err != nil {
		t.Errorf("Wait: %v", err)
	}
}
