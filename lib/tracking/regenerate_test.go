// Copyright 2026 The Canopy Authors
// SPDX-License-Identifier: Apache-2.0

package tracking

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/canopy-scm/canopy/lib/clock"
	"github.com/canopy-scm/canopy/lib/git"
)

func mustGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	command := exec.Command("git", append([]string{"-C", dir}, args...)...)
	command.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=Test",
		"GIT_AUTHOR_EMAIL=test@test.local",
		"GIT_COMMITTER_NAME=Test",
		"GIT_COMMITTER_EMAIL=test@test.local",
	)
	if output, err := command.CombinedOutput(); err != nil {
		t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, output)
	}
}

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	mustGit(t, dir, "init", "-b", "main")
	if err := os.WriteFile(filepath.Join(dir, "README"), []byte("test\n"), 0644); err != nil {
		t.Fatalf("write README: %v", err)
	}
	mustGit(t, dir, "add", "README")
	mustGit(t, dir, "commit", "-m", "initial")
	return dir
}

func TestRegenerateCLIFromWorktrees(t *testing.T) {
	t.Parallel()

	dir := initRepo(t)
	worktreePath := filepath.Join(t.TempDir(), "feature-x")
	mustGit(t, dir, "worktree", "add", "-b", "feature/x", worktreePath)

	store := NewStore(filepath.Join(dir, "cli-workspace-tracking.json"), CLI, clock.NewFake(), nil)
	doc, err := store.Regenerate(context.Background(), git.NewRepository(dir))
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}

	entry := doc["feature/x"]
	if entry == nil {
		t.Fatalf("regenerated doc = %v, want feature/x entry", doc)
	}
	if entry.Status != StatusActive {
		t.Errorf("Status = %q, want ACTIVE", entry.Status)
	}
	if !strings.HasSuffix(entry.RootPath, "feature-x") {
		t.Errorf("RootPath = %q, want the worktree path", entry.RootPath)
	}
	if len(entry.PRReferences) != 0 {
		t.Errorf("PRReferences = %v, want none (not derivable)", entry.PRReferences)
	}

	// The main worktree (on main) must not produce an entry.
	if len(doc) != 1 {
		t.Errorf("doc has %d entries, want 1: %v", len(doc), doc)
	}

	// The regenerated document was persisted and reads back cleanly.
	reread, err := store.Read()
	if err != nil {
		t.Fatalf("Read after Regenerate: %v", err)
	}
	if reread["feature/x"] == nil {
		t.Error("regenerated document not persisted")
	}
}

func TestRegenerateWebFromBranches(t *testing.T) {
	t.Parallel()

	dir := initRepo(t)
	mustGit(t, dir, "branch", "feature/one")
	mustGit(t, dir, "branch", "feature/two")
	mustGit(t, dir, "branch", "experiment") // ignored: not feature/<slug>

	store := NewStore(filepath.Join(dir, "web-session-tracking.json"), Web, clock.NewFake(), nil)
	doc, err := store.Regenerate(context.Background(), git.NewRepository(dir))
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}

	if len(doc) != 2 {
		t.Fatalf("doc has %d entries, want 2: %v", len(doc), doc)
	}
	for _, branch := range []string{"feature/one", "feature/two"} {
		entry := doc[branch]
		if entry == nil {
			t.Fatalf("missing entry for %s", branch)
		}
		if entry.RootPath != "" {
			t.Errorf("%s: RootPath = %q, want empty in Web mode", branch, entry.RootPath)
		}
	}
}

func TestRegenerateRecoversCorruptStore(t *testing.T) {
	t.Parallel()

	dir := initRepo(t)
	worktreePath := filepath.Join(t.TempDir(), "feature-x")
	mustGit(t, dir, "worktree", "add", "-b", "feature/x", worktreePath)

	storePath := filepath.Join(dir, "cli-workspace-tracking.json")
	if err := os.WriteFile(storePath, []byte("%%% garbage"), 0644); err != nil {
		t.Fatalf("write corrupt store: %v", err)
	}

	store := NewStore(storePath, CLI, clock.NewFake(), nil)
	if _, err := store.Read(); !IsCorruption(err) {
		t.Fatalf("Read = %v, want corruption", err)
	}

	if _, err := store.Regenerate(context.Background(), git.NewRepository(dir)); err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	doc, err := store.Read()
	if err != nil {
		t.Fatalf("Read after Regenerate: %v", err)
	}
	if doc["feature/x"] == nil {
		t.Error("entry not recovered from worktree state")
	}
}
