package ptyerr

import (
	"errors"
	"testing"
)

func TestCode_MatchesSentinelsThroughWrapping(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{NoSuchSession("abc"), "no-such-session"},
		{Terminated("abc"), "terminated"},
		{Spawn(errors.New("boom")), "spawn-error"},
		{IO(errors.New("boom")), "io-error"},
		{InvalidArgument("bad cols"), "invalid-argument"},
	}
	for _, c := range cases {
		if got := Code(c.err); got != c.code {
			t.Errorf("Code(%v) = %q, want %q", c.err, got, c.code)
		}
	}
}

func TestCode_UnknownErrorReturnsEmpty(t *testing.T) {
	if got := Code(errors.New("plain")); got != "" {
		t.Errorf("Code(plain error) = %q, want empty", got)
	}
}

func TestNoSuchSession_IsErrorsIsMatchable(t *testing.T) {
	err := NoSuchSession("sess-1")
	if !errors.Is(err, ErrNoSuchSession) {
		t.Fatal("expected errors.Is to match ErrNoSuchSession")
	}
	if !errors.Is(err, ErrNoSuchSession) {
		t.Fatal("wrapped error should still satisfy errors.Is")
	}
}
