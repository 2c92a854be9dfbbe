// Copyright 2026 The Canopy Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()

	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v, want nil", err)
	}
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "canopy.yaml")
	content := `
protected_branch: trunk
remote: upstream
paths:
  worktrees: /tmp/canopy-test/worktrees
tracking:
  cli_file: cli-tracking.json
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.ProtectedBranch != "trunk" {
		t.Errorf("ProtectedBranch = %q, want %q", cfg.ProtectedBranch, "trunk")
	}
	if cfg.Remote != "upstream" {
		t.Errorf("Remote = %q, want %q", cfg.Remote, "upstream")
	}
	if cfg.Paths.Worktrees != "/tmp/canopy-test/worktrees" {
		t.Errorf("Paths.Worktrees = %q", cfg.Paths.Worktrees)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Tracking.WebFile != "web-session-tracking.json" {
		t.Errorf("Tracking.WebFile = %q, want default", cfg.Tracking.WebFile)
	}
	if cfg.GitHub.BaseURL != "https://api.github.com" {
		t.Errorf("GitHub.BaseURL = %q, want default", cfg.GitHub.BaseURL)
	}
}

func TestLoadFileRejectsDuplicateTrackingFiles(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "canopy.yaml")
	content := `
tracking:
  cli_file: tracking.json
  web_file: tracking.json
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, err := LoadFile(path)
	if err == nil || !strings.Contains(err.Error(), "must differ") {
		t.Fatalf("LoadFile = %v, want duplicate tracking file error", err)
	}
}

func TestExpandVariables(t *testing.T) {
	t.Parallel()

	home := os.Getenv("HOME")
	if home == "" {
		t.Skip("HOME not set")
	}

	path := filepath.Join(t.TempDir(), "canopy.yaml")
	content := `
paths:
  worktrees: ${HOME}/canopy-worktrees
  archives: ${CANOPY_NO_SUCH_VAR:-/tmp/archives}
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if want := filepath.Join(home, "canopy-worktrees"); cfg.Paths.Worktrees != want {
		t.Errorf("Paths.Worktrees = %q, want %q", cfg.Paths.Worktrees, want)
	}
	if cfg.Paths.Archives != "/tmp/archives" {
		t.Errorf("Paths.Archives = %q, want default expansion", cfg.Paths.Archives)
	}
}
