// Package ptyerr defines the sentinel error taxonomy shared by every
// component that can fail against a session: no-such-session, terminated,
// spawn-error, io-error, timeout, and invalid-argument.
package ptyerr

import (
	"errors"
	"fmt"
)

// Sentinel errors. Callers should match with errors.Is, since components
// wrap these with session-specific context via fmt.Errorf("%w", ...).
var (
	ErrNoSuchSession   = errors.New("no-such-session")
	ErrTerminated      = errors.New("terminated")
	ErrSpawn           = errors.New("spawn-error")
	ErrIO              = errors.New("io-error")
	ErrTimeout         = errors.New("timeout")
	ErrInvalidArgument = errors.New("invalid-argument")
)

// Code returns the wire-stable taxonomy string for an error produced by
// this package, or "" if err does not match any sentinel.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrNoSuchSession):
		return "no-such-session"
	case errors.Is(err, ErrTerminated):
		return "terminated"
	case errors.Is(err, ErrSpawn):
		return "spawn-error"
	case errors.Is(err, ErrIO):
		return "io-error"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid-argument"
	default:
		return ""
	}
}

// NoSuchSession wraps ErrNoSuchSession with the offending id.
func NoSuchSession(id string) error {
	return fmt.Errorf("session %q: %w", id, ErrNoSuchSession)
}

// Terminated wraps ErrTerminated with the offending id.
func Terminated(id string) error {
	return fmt.Errorf("session %q: %w", id, ErrTerminated)
}

// Spawn wraps ErrSpawn with the underlying cause.
func Spawn(cause error) error {
	return fmt.Errorf("spawn: %w: %v", ErrSpawn, cause)
}

// IO wraps ErrIO with the underlying cause.
func IO(cause error) error {
	return fmt.Errorf("io: %w: %v", ErrIO, cause)
}

// InvalidArgument wraps ErrInvalidArgument with a human-readable reason.
func InvalidArgument(reason string) error {
	return fmt.Errorf("%s: %w", reason, ErrInvalidArgument)
}
