package ptyconfig

import (
	"os"
	"testing"
)

func TestDefault_HasSaneValues(t *testing.T) {
	cfg := Default()
	if cfg.QuiescenceMS != 1000 {
		t.Errorf("QuiescenceMS = %d, want 1000", cfg.QuiescenceMS)
	}
	if cfg.Cols != 80 || cfg.Rows != 24 {
		t.Errorf("Cols/Rows = %d/%d, want 80/24", cfg.Cols, cfg.Rows)
	}
	if cfg.RootDir == "" {
		t.Error("expected non-empty RootDir")
	}
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxWaitMS != 30000 {
		t.Errorf("MaxWaitMS = %d, want 30000", cfg.MaxWaitMS)
	}
}

func TestLoad_EnvOverridesQuiescence(t *testing.T) {
	os.Setenv("QUIESCENCE_MS", "250")
	defer os.Unsetenv("QUIESCENCE_MS")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.QuiescenceMS != 250 {
		t.Errorf("QuiescenceMS = %d, want 250", cfg.QuiescenceMS)
	}
}

func TestLoad_EnvOverridesRootDir(t *testing.T) {
	os.Setenv("PILOTY_HOME", "/tmp/piloty-test-home")
	defer os.Unsetenv("PILOTY_HOME")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RootDir != "/tmp/piloty-test-home" {
		t.Errorf("RootDir = %q, want /tmp/piloty-test-home", cfg.RootDir)
	}
}

func TestQuiescenceAndMaxWait_Durations(t *testing.T) {
	cfg := Config{QuiescenceMS: 500, MaxWaitMS: 5000}
	if cfg.Quiescence().Milliseconds() != 500 {
		t.Errorf("Quiescence() = %v, want 500ms", cfg.Quiescence())
	}
	if cfg.MaxWait().Milliseconds() != 5000 {
		t.Errorf("MaxWait() = %v, want 5000ms", cfg.MaxWait())
	}
}

func TestExpandHome(t *testing.T) {
	home, _ := os.UserHomeDir()
	if got := expandHome("~/foo"); got != home+"/foo" {
		t.Errorf("expandHome(~/foo) = %q, want %q", got, home+"/foo")
	}
	if got := expandHome("/abs/path"); got != "/abs/path" {
		t.Errorf("expandHome(/abs/path) = %q, want unchanged", got)
	}
}
