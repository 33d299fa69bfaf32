package transcript

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpen_CreatesLayoutAndActiveSymlink(t *testing.T) {
	root := t.TempDir()
	store, err := Open(root, "sess-1", Metadata{Shell: "/bin/bash", InitialCwd: "/tmp"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	dir := filepath.Join(root, "sessions", "sess-1")
	for _, name := range []string{"session.json", "transcript.log", "commands.log", "interaction.log"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s to exist: %v", name, err)
		}
	}
	link := filepath.Join(root, "active", "sess-1")
	if target, err := os.Readlink(link); err != nil {
		t.Errorf("expected active symlink: %v", err)
	} else if target != filepath.Join("..", "sessions", "sess-1") {
		t.Errorf("symlink target = %q", target)
	}
}

func TestAppendRaw_PasswordRecoverableFromTranscriptOnly(t *testing.T) {
	root := t.TempDir()
	store, err := Open(root, "sess-2", Metadata{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := store.AppendRaw([]byte("sudo-secret-123\n")); err != nil {
		t.Fatalf("AppendRaw: %v", err)
	}
	if err := store.LogInteraction("password", "sudo-secret-123"); err != nil {
		t.Fatalf("LogInteraction: %v", err)
	}
	store.Close()

	dir := filepath.Join(root, "sessions", "sess-2")
	raw, err := os.ReadFile(filepath.Join(dir, "transcript.log"))
	if err != nil {
		t.Fatalf("read transcript.log: %v", err)
	}
	if !contains(raw, "sudo-secret-123") {
		t.Error("expected raw password to be recoverable from transcript.log")
	}

	interaction, err := os.ReadFile(filepath.Join(dir, "interaction.log"))
	if err != nil {
		t.Fatalf("read interaction.log: %v", err)
	}
	if contains(interaction, "sudo-secret-123") {
		t.Error("password must never appear in interaction.log")
	}

	meta, err := os.ReadFile(filepath.Join(dir, "session.json"))
	if err != nil {
		t.Fatalf("read session.json: %v", err)
	}
	if contains(meta, "sudo-secret-123") {
		t.Error("password must never appear in session.json")
	}
}

func TestSetPID_UpdatesMetadata(t *testing.T) {
	root := t.TempDir()
	store, err := Open(root, "sess-3", Metadata{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.SetPID(4242); err != nil {
		t.Fatalf("SetPID: %v", err)
	}
	store.Close()

	data, err := os.ReadFile(filepath.Join(root, "sessions", "sess-3", "session.json"))
	if err != nil {
		t.Fatalf("read session.json: %v", err)
	}
	if !contains(data, "4242") {
		t.Error("expected pid 4242 in session.json")
	}
}

func TestClose_RemovesActiveSymlinkAndSetsEndTime(t *testing.T) {
	root := t.TempDir()
	store, err := Open(root, "sess-4", Metadata{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Lstat(filepath.Join(root, "active", "sess-4")); !os.IsNotExist(err) {
		t.Error("expected active symlink to be removed after Close")
	}
}

func contains(data []byte, substr string) bool {
	return strings.Contains(string(data), substr)
}
