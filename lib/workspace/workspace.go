// Copyright 2026 The Canopy Authors
// SPDX-License-Identifier: Apache-2.0

// Package workspace is the coordinator core: it drives feature-branch
// lifecycles across the parent repository and its submodules.
//
// The package is organized around the Strategy interface, one
// implementation per execution mode. CLI mode works in persistent,
// isolated worktrees; Web mode works in a single ephemeral checkout
// and reconstructs its state from the git-committed tracking store.
// Everything the two modes share — submodule branch synchronization,
// pull request orchestration, cleanup, status — lives in the embedded
// core and is parameterized by a small environment interface.
package workspace

import (
	"context"
	"log/slog"
	"os"

	"github.com/canopy-scm/canopy/lib/clock"
	"github.com/canopy-scm/canopy/lib/config"
	"github.com/canopy-scm/canopy/lib/git"
	"github.com/canopy-scm/canopy/lib/github"
	"github.com/canopy-scm/canopy/lib/tracking"
)

// HostClient is the slice of the remote host API the coordinator uses.
// *github.Client satisfies it; tests substitute fakes.
type HostClient interface {
	CreatePullRequest(ctx context.Context, owner, repo string, request github.CreatePullRequestRequest) (*github.PullRequest, error)
	GetPullRequest(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error)
	DeleteBranch(ctx context.Context, owner, repo, branch string) error
}

// Deps carries everything a strategy needs. Host is nil when no
// credential is configured; operations that need the remote host fail
// with CodeRemoteHostFailure, everything else works without it.
type Deps struct {
	// Parent is the parent (meta) repository's main checkout.
	Parent *git.Repository

	// Config is the loaded configuration.
	Config *config.Config

	// Store is the tracking store for this mode.
	Store *tracking.Store

	// Host is the remote host API client, or nil without a credential.
	Host HostClient

	// Clock provides time. Defaults to clock.Real().
	Clock clock.Clock

	// Logger is the structured logger. Defaults to slog.Default().
	Logger *slog.Logger
}

func (d *Deps) fill() {
	if d.Clock == nil {
		d.Clock = clock.Real()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
}

// environment is the mode-specific surface the shared core calls back
// into. Strategies implement it; nothing outside the package does.
type environment interface {
	// repoFor returns the repository rooted where the workspace branch
	// is checked out: the worktree for CLI, the single checkout for
	// Web.
	repoFor(workspace *tracking.Workspace) *git.Repository

	// teardown removes mode-specific state for the workspace: the
	// worktree and its branches for CLI, the checked-out branches for
	// Web. Must be idempotent.
	teardown(ctx context.Context, workspace *tracking.Workspace) error

	// updater populates submodule working directories.
	updater() submoduleUpdater
}

// core implements the mode-independent parts of the lifecycle.
type core struct {
	deps Deps
	env  environment
}

// rejectProtectedBranch refuses to build a workspace on the protected
// branch itself. The branch-name pattern usually catches this earlier,
// but nothing stops a configuration from protecting a feature-shaped
// branch.
func (c *core) rejectProtectedBranch(branchName string) error {
	if branchName == c.deps.Config.ProtectedBranch {
		return newError(CodeProtectionViolation,
			"use: canopy init feature/<slug>", nil,
			"%q is the protected branch; workspaces must branch from it, not be it", branchName)
	}
	return nil
}

// getWorkspace loads one tracked workspace, translating store
// corruption and unknown branches into coordinator errors.
func (c *core) getWorkspace(branchName string) (*tracking.Workspace, error) {
	workspace, ok, err := c.deps.Store.Get(branchName)
	if err != nil {
		if tracking.IsCorruption(err) {
			return nil, corruptionError(err)
		}
		return nil, err
	}
	if !ok {
		return nil, newError(CodeInvalidBranchRef,
			"run: canopy status", nil, "no tracked workspace for branch %q", branchName)
	}
	return workspace, nil
}

// StatusEntry is one workspace plus its computed, never-persisted
// working tree state.
type StatusEntry struct {
	Workspace *tracking.Workspace

	// HasLocalChanges reports uncommitted changes in the workspace's
	// working tree. False when the working tree is gone.
	HasLocalChanges bool
}

// status lists all tracked workspaces with their live working tree
// state.
func (c *core) status(ctx context.Context) ([]StatusEntry, error) {
	workspaces, err := c.deps.Store.List()
	if err != nil {
		if tracking.IsCorruption(err) {
			return nil, corruptionError(err)
		}
		return nil, err
	}

	entries := make([]StatusEntry, 0, len(workspaces))
	for _, workspace := range workspaces {
		entry := StatusEntry{Workspace: workspace}
		repo := c.env.repoFor(workspace)
		if _, statErr := os.Stat(repo.Dir()); statErr == nil {
			if dirty, probeErr := repo.HasUncommittedChanges(ctx); probeErr == nil {
				entry.HasLocalChanges = dirty
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
