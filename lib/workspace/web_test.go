// Copyright 2026 The Canopy Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/canopy-scm/canopy/lib/git"
	"github.com/canopy-scm/canopy/lib/tracking"
)

func TestWebInit(t *testing.T) {
	f := newFixture(t)
	strategy := f.web(t, nil)
	ctx := context.Background()

	workspace, err := strategy.Init(ctx, "feature/login")
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if workspace.RootPath != "" {
		t.Errorf("RootPath = %q, want empty in Web mode", workspace.RootPath)
	}
	if workspace.Status != tracking.StatusActive {
		t.Errorf("Status = %q, want ACTIVE", workspace.Status)
	}

	if branch, err := f.parent.CurrentBranch(ctx); err != nil || branch != "feature/login" {
		t.Errorf("checkout branch = %q, %v; want feature/login", branch, err)
	}
	for _, subPath := range []string{"libs/a", "libs/b"} {
		subRepo := f.parent.Sub(subPath)
		if branch, err := subRepo.CurrentBranch(ctx); err != nil || branch != "feature/login" {
			t.Errorf("%s branch = %q, %v; want feature/login", subPath, branch, err)
		}
	}
}

func TestWebInitSessionExists(t *testing.T) {
	f := newFixture(t)
	strategy := f.web(t, nil)
	ctx := context.Background()

	// A branch created outside canopy, with no tracking entry.
	runGit(t, f.checkout, "branch", "feature/login")

	_, err := strategy.Init(ctx, "feature/login")
	if !HasCode(err, CodeSessionExists) {
		t.Fatalf("Init over untracked branch = %v, want SESSION_EXISTS", err)
	}
}

func TestWebInitIdempotent(t *testing.T) {
	f := newFixture(t)
	strategy := f.web(t, nil)
	ctx := context.Background()

	first, err := strategy.Init(ctx, "feature/login")
	if err != nil {
		t.Fatalf("first Init: %v", err)
	}
	second, err := strategy.Init(ctx, "feature/login")
	if err != nil {
		t.Fatalf("second Init: %v", err)
	}
	if second.UpdatedAt != first.UpdatedAt || second.Status != first.Status {
		t.Errorf("second Init changed the session: %+v vs %+v", second, first)
	}
}

func TestWebPersistCommitsTrackingOnce(t *testing.T) {
	f := newFixture(t)
	strategy := f.web(t, nil)
	ctx := context.Background()

	if _, err := strategy.Init(ctx, "feature/login"); err != nil {
		t.Fatalf("Init: %v", err)
	}

	before := runGit(t, f.checkout, "rev-list", "--count", "HEAD")
	if err := strategy.Persist(ctx); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	afterFirst := runGit(t, f.checkout, "rev-list", "--count", "HEAD")
	if afterFirst == before {
		t.Fatal("Persist created no commit for a changed store")
	}

	// Nothing changed: the second persist must be a silent success
	// with no new commit.
	if err := strategy.Persist(ctx); err != nil {
		t.Fatalf("second Persist: %v", err)
	}
	afterSecond := runGit(t, f.checkout, "rev-list", "--count", "HEAD")
	if afterSecond != afterFirst {
		t.Error("Persist committed with nothing to commit")
	}

	// The tracking file is in the committed tree.
	runGit(t, f.checkout, "cat-file", "-e", "HEAD:"+f.cfg.Tracking.WebFile)
}

func TestWebPersistWipeResumeRoundTrip(t *testing.T) {
	f := newFixture(t)
	strategy := f.web(t, nil)
	ctx := context.Background()

	if _, err := strategy.Init(ctx, "feature/login"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	commitFile(t, f.checkout, "feature.txt", "work\n", "session work")
	if err := strategy.Persist(ctx); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if err := f.parent.Push(ctx, "origin", "feature/login", true); err != nil {
		t.Fatalf("Push: %v", err)
	}

	// The environment is wiped: a brand-new clone knows nothing except
	// what reached the remote. The hosting platform checks out the
	// session branch; the committed tracking store rides along with it.
	freshDir := filepath.Join(f.base, "fresh-checkout")
	runGit(t, f.base, "clone", f.parentRemote, freshDir)
	runGit(t, freshDir, "checkout", "feature/login")
	fresh := git.NewRepository(freshDir)

	deps := f.deps(t, tracking.Web, nil)
	deps.Parent = fresh
	deps.Store = tracking.NewStore(filepath.Join(freshDir, f.cfg.Tracking.WebFile), tracking.Web, f.clk, f.logger)
	resumed := NewWebStrategy(deps)

	if err := resumed.Resume(ctx); err != nil {
		t.Fatalf("Resume in fresh checkout: %v", err)
	}

	if branch, err := fresh.CurrentBranch(ctx); err != nil || branch != "feature/login" {
		t.Fatalf("resumed branch = %q, %v; want feature/login", branch, err)
	}
	workspace, ok, err := resumed.deps.Store.Get("feature/login")
	if err != nil || !ok {
		t.Fatalf("tracked session missing after resume: ok=%v err=%v", ok, err)
	}
	if workspace.Status != tracking.StatusActive {
		t.Errorf("Status = %q, want ACTIVE", workspace.Status)
	}
	for _, subPath := range []string{"libs/a", "libs/b"} {
		subRepo := fresh.Sub(subPath)
		if branch, err := subRepo.CurrentBranch(ctx); err != nil || branch != "feature/login" {
			t.Errorf("%s branch after resume = %q, %v; want feature/login", subPath, branch, err)
		}
	}
}

func TestWebResumeFreshEnvironmentIsNoop(t *testing.T) {
	f := newFixture(t)
	strategy := f.web(t, nil)

	if err := strategy.Resume(context.Background()); err != nil {
		t.Fatalf("Resume with no sessions: %v", err)
	}
}

func TestWebCleanupLeavesProtectedBranch(t *testing.T) {
	f := newFixture(t)
	strategy := f.web(t, nil)
	ctx := context.Background()

	if _, err := strategy.Init(ctx, "feature/login"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := strategy.Cleanup(ctx, "feature/login", CleanupOptions{}); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	if branch, err := f.parent.CurrentBranch(ctx); err != nil || branch != "main" {
		t.Errorf("checkout branch after cleanup = %q, %v; want main", branch, err)
	}
	if f.parent.BranchExists(ctx, "feature/login") {
		t.Error("session branch still exists")
	}
	for _, subPath := range []string{"libs/a", "libs/b"} {
		if f.parent.Sub(subPath).BranchExists(ctx, "feature/login") {
			t.Errorf("%s session branch still exists", subPath)
		}
	}
}

func TestWebStoreStaysValidAfterFailedMutation(t *testing.T) {
	f := newFixture(t)
	strategy := f.web(t, nil)
	ctx := context.Background()

	if _, err := strategy.Init(ctx, "feature/login"); err != nil {
		t.Fatalf("Init: %v", err)
	}

	// A mutation that would violate the schema must not reach disk.
	_, err := strategy.deps.Store.Upsert("feature/login", func(w *tracking.Workspace) error {
		w.Status = "BOGUS"
		return nil
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
	workspace, ok, readErr := strategy.deps.Store.Get("feature/login")
	if readErr != nil || !ok {
		t.Fatalf("store unreadable after failed mutation: %v", readErr)
	}
	if workspace.Status != tracking.StatusActive {
		t.Errorf("Status = %q, want ACTIVE preserved", workspace.Status)
	}
}
