// Copyright 2026 The Canopy Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"archive/tar"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/canopy-scm/canopy/lib/tracking"
)

// openPRWorkspace initializes a workspace with a parent commit and an
// open PR, returning the workspace as of PR creation.
func openPRWorkspace(t *testing.T, strategy *CLIStrategy) *tracking.Workspace {
	t.Helper()
	ctx := context.Background()

	workspace, err := strategy.Init(ctx, "feature/login")
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	commitFile(t, workspace.RootPath, "feature.txt", "new\n", "parent change")
	if _, err := strategy.CreatePRs(ctx, "feature/login", PROptions{}); err != nil {
		t.Fatalf("CreatePRs: %v", err)
	}
	workspace, _, err = strategy.deps.Store.Get("feature/login")
	if err != nil {
		t.Fatal(err)
	}
	return workspace
}

func TestCleanupRefusesUnmergedPR(t *testing.T) {
	f := newFixture(t)
	host := newFakeHost()
	strategy := f.cli(t, host)
	ctx := context.Background()

	workspace := openPRWorkspace(t, strategy)

	err := strategy.Cleanup(ctx, "feature/login", CleanupOptions{})
	if !HasCode(err, CodeUnmergedPR) {
		t.Fatalf("Cleanup with open PR = %v, want UNMERGED_PR", err)
	}

	// Refusal must not mutate anything: worktree, branch, and store
	// entry all survive.
	if _, err := os.Stat(workspace.RootPath); err != nil {
		t.Errorf("worktree removed despite refusal: %v", err)
	}
	if !f.parent.BranchExists(ctx, "feature/login") {
		t.Error("branch deleted despite refusal")
	}
	after, ok, err := strategy.deps.Store.Get("feature/login")
	if err != nil || !ok {
		t.Fatalf("store entry gone despite refusal: %v", err)
	}
	if after.Status != tracking.StatusPROpen {
		t.Errorf("Status = %q, want PR_OPEN untouched", after.Status)
	}
}

func TestCleanupProceedsAfterMerge(t *testing.T) {
	f := newFixture(t)
	host := newFakeHost()
	strategy := f.cli(t, host)
	ctx := context.Background()

	workspace := openPRWorkspace(t, strategy)

	// The PR merges on the host since the last command; cleanup must
	// refresh and recognize it without --force.
	host.mergeAll()

	if err := strategy.Cleanup(ctx, "feature/login", CleanupOptions{}); err != nil {
		t.Fatalf("Cleanup after merge: %v", err)
	}
	if _, err := os.Stat(workspace.RootPath); !os.IsNotExist(err) {
		t.Errorf("worktree still present: %v", err)
	}
	if f.parent.BranchExists(ctx, "feature/login") {
		t.Error("local branch still present")
	}
	if _, ok, err := strategy.deps.Store.Get("feature/login"); err != nil || ok {
		t.Errorf("store entry still present (ok=%v, err=%v)", ok, err)
	}
}

func TestCleanupForceOverridesUnmerged(t *testing.T) {
	f := newFixture(t)
	strategy := f.cli(t, newFakeHost())
	ctx := context.Background()

	openPRWorkspace(t, strategy)

	if err := strategy.Cleanup(ctx, "feature/login", CleanupOptions{Force: true}); err != nil {
		t.Fatalf("Cleanup --force: %v", err)
	}
	if f.parent.BranchExists(ctx, "feature/login") {
		t.Error("local branch still present after forced cleanup")
	}
}

func TestCleanupIdempotent(t *testing.T) {
	f := newFixture(t)
	strategy := f.cli(t, nil)
	ctx := context.Background()

	if _, err := strategy.Init(ctx, "feature/login"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := strategy.Cleanup(ctx, "feature/login", CleanupOptions{}); err != nil {
		t.Fatalf("first Cleanup: %v", err)
	}
	if err := strategy.Cleanup(ctx, "feature/login", CleanupOptions{}); err != nil {
		t.Fatalf("second Cleanup should be a no-op: %v", err)
	}
}

func TestCleanupDeleteRemoteViaHost(t *testing.T) {
	f := newFixture(t)
	host := newFakeHost()
	strategy := f.cli(t, host)
	ctx := context.Background()

	openPRWorkspace(t, strategy)
	host.mergeAll()

	if err := strategy.Cleanup(ctx, "feature/login", CleanupOptions{DeleteRemote: true}); err != nil {
		t.Fatalf("Cleanup --delete-remote: %v", err)
	}

	// With a credential configured the deletion goes through the host
	// API, not git push.
	want := []string{"acme/parent@feature/login"}
	if len(host.deleted) != 1 || host.deleted[0] != want[0] {
		t.Errorf("host deletions = %v, want %v", host.deleted, want)
	}
}

func TestCleanupDeleteRemoteWithoutCredential(t *testing.T) {
	f := newFixture(t)
	strategy := f.cli(t, nil)
	ctx := context.Background()

	workspace, err := strategy.Init(ctx, "feature/login")
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	commitFile(t, workspace.RootPath, "feature.txt", "new\n", "parent change")
	runGit(t, workspace.RootPath, "push", "-u", "origin", "feature/login")

	if err := strategy.Cleanup(ctx, "feature/login", CleanupOptions{DeleteRemote: true}); err != nil {
		t.Fatalf("Cleanup --delete-remote: %v", err)
	}

	bare := filepath.Join(f.base, "remotes", "acme", "parent.git")
	out := runGit(t, bare, "branch", "--list", "feature/login")
	if out != "" {
		t.Errorf("remote branch still present: %q", out)
	}
}

func TestCleanupDeleteRemoteFallsBackToGit(t *testing.T) {
	f := newFixture(t)
	host := newFakeHost()
	host.failDelete["acme/parent"] = &fakeHostError{}
	strategy := f.cli(t, host)
	ctx := context.Background()

	openPRWorkspace(t, strategy)
	host.mergeAll()

	if err := strategy.Cleanup(ctx, "feature/login", CleanupOptions{DeleteRemote: true}); err != nil {
		t.Fatalf("Cleanup --delete-remote: %v", err)
	}

	// The host refused, so the branch must be gone via git push.
	bare := filepath.Join(f.base, "remotes", "acme", "parent.git")
	out := runGit(t, bare, "branch", "--list", "feature/login")
	if out != "" {
		t.Errorf("remote branch still present after fallback: %q", out)
	}
}

func TestCleanupArchiveSnapshotsUncommittedWork(t *testing.T) {
	f := newFixture(t)
	strategy := f.cli(t, nil)
	ctx := context.Background()

	workspace, err := strategy.Init(ctx, "feature/login")
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := os.WriteFile(filepath.Join(workspace.RootPath, "wip.txt"), []byte("uncommitted\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := strategy.Cleanup(ctx, "feature/login", CleanupOptions{Archive: true}); err != nil {
		t.Fatalf("Cleanup --archive: %v", err)
	}

	archives, err := filepath.Glob(filepath.Join(f.cfg.Paths.Archives, "feature-login-*.tar.gz"))
	if err != nil || len(archives) != 1 {
		t.Fatalf("archives = %v, %v; want exactly one", archives, err)
	}

	names := tarEntries(t, archives[0])
	if !names["wip.txt"] {
		t.Errorf("archive entries %v missing wip.txt", names)
	}
	for name := range names {
		if name == ".git" || strings.HasPrefix(name, ".git/") {
			t.Errorf("archive contains git metadata entry %q", name)
		}
	}
}

// tarEntries reads all entry names from a tar.gz file.
func tarEntries(t *testing.T, path string) map[string]bool {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	gzipReader, err := gzip.NewReader(file)
	if err != nil {
		t.Fatal(err)
	}
	defer gzipReader.Close()

	names := map[string]bool{}
	tarReader := tar.NewReader(gzipReader)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		names[filepath.Clean(header.Name)] = true
	}
	return names
}
