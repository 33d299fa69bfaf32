// Package transcript persists a session's raw byte stream and structured
// interaction history to disk, mirroring the on-disk layout of the Python
// original's session_logger.py: a per-session directory under the
// configured root holding session.json, transcript.log, commands.log, and
// interaction.log, plus a symlink under active/ while the session is
// live.
package transcript

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Metadata is the content of session.json, snapshotted at creation and
// rewritten at close.
type Metadata struct {
	SessionID  string     `json:"session_id"`
	StartTime  time.Time  `json:"start_time"`
	EndTime    *time.Time `json:"end_time"`
	PID        int        `json:"pid"`
	ServerPID  int        `json:"server_pid"`
	Shell      string     `json:"shell"`
	InitialCwd string     `json:"initial_cwd"`
}

// Interaction is one structured entry in interaction.log: an input sent or
// an output chunk observed, with password payloads redacted.
type Interaction struct {
	Time time.Time `json:"time"`
	Kind string    `json:"kind"` // "input", "control", "password", "output"
	Text string    `json:"text"`
}

// Store owns one session's on-disk transcript directory.
type Store struct {
	mu   sync.Mutex
	dir  string
	meta Metadata

	transcriptFile *os.File
	commandsFile   *os.File
	interactionEnc *json.Encoder
	interactionFile *os.File

	activeLink string
}

// Open creates (or reopens) the transcript directory for sessionID under
// rootDir, writing the initial session.json and the active/ symlink.
func Open(rootDir, sessionID string, meta Metadata) (*Store, error) {
	dir := filepath.Join(rootDir, "sessions", sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	activeDir := filepath.Join(rootDir, "active")
	if err := os.MkdirAll(activeDir, 0o755); err != nil {
		return nil, fmt.Errorf("create active dir: %w", err)
	}

	meta.SessionID = sessionID
	meta.StartTime = time.Now()
	if err := writeMetadata(dir, meta); err != nil {
		return nil, err
	}

	link := filepath.Join(activeDir, sessionID)
	_ = os.Remove(link)
	target := filepath.Join("..", "sessions", sessionID)
	if err := os.Symlink(target, link); err != nil {
		return nil, fmt.Errorf("create active symlink: %w", err)
	}

	tf, err := os.OpenFile(filepath.Join(dir, "transcript.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open transcript.log: %w", err)
	}
	cf, err := os.OpenFile(filepath.Join(dir, "commands.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		tf.Close()
		return nil, fmt.Errorf("open commands.log: %w", err)
	}
	itf, err := os.OpenFile(filepath.Join(dir, "interaction.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		tf.Close()
		cf.Close()
		return nil, fmt.Errorf("open interaction.log: %w", err)
	}

	return &Store{
		dir:             dir,
		meta:            meta,
		transcriptFile:  tf,
		commandsFile:    cf,
		interactionFile: itf,
		interactionEnc:  json.NewEncoder(itf),
		activeLink:      link,
	}, nil
}

// Dir returns the session's on-disk directory path.
func (s *Store) Dir() string { return s.dir }

// SetPID records the child's process id in session.json, called once the
// PTY channel has actually spawned the child (Open happens before that,
// so the pid isn't known yet at creation time).
func (s *Store) SetPID(pid int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta.PID = pid
	return writeMetadata(s.dir, s.meta)
}

// AppendRaw writes raw bytes verbatim to transcript.log. This is the only
// sink that ever sees an unredacted password, matching the literal
// round-trip test that a password sent to a session is recoverable from
// its raw transcript but never from interaction.log or session.json.
func (s *Store) AppendRaw(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.transcriptFile.Write(data)
	return err
}

// LogCommand appends a line to commands.log.
func (s *Store) LogCommand(command string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.commandsFile, "%s $ %s\n", time.Now().Format(time.RFC3339), command)
	return err
}

// LogInteraction appends a structured, redaction-aware entry to
// interaction.log.
func (s *Store) LogInteraction(kind, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := Interaction{Time: time.Now(), Kind: kind, Text: text}
	if kind == "password" {
		entry.Text = redact(text)
	}
	return s.interactionEnc.Encode(entry)
}

// redact replaces a password payload with a fixed-length placeholder so
// interaction.log never leaks it, independent of the password's length.
func redact(string) string {
	return "[redacted]"
}

// Close flushes state, rewrites session.json with an end time, and
// removes the active/ symlink.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.meta.EndTime = &now
	if err := writeMetadata(s.dir, s.meta); err != nil {
		return err
	}
	_ = os.Remove(s.activeLink)

	s.transcriptFile.Close()
	s.commandsFile.Close()
	s.interactionFile.Close()
	return nil
}

func writeMetadata(dir string, meta Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "session.json"), data, 0o644)
}
