// Copyright 2026 The Canopy Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/canopy-scm/canopy/lib/git"
	"github.com/canopy-scm/canopy/lib/protect"
	"github.com/canopy-scm/canopy/lib/tracking"
)

// CLIStrategy implements the persistent-filesystem mode: every
// workspace is an isolated git worktree under the configured worktrees
// root, so multiple feature branches coexist without checkout
// switching.
type CLIStrategy struct {
	core
}

// NewCLIStrategy builds the CLI-mode strategy.
func NewCLIStrategy(deps Deps) *CLIStrategy {
	deps.fill()
	strategy := &CLIStrategy{core: core{deps: deps}}
	strategy.core.env = strategy
	return strategy
}

// Mode identifies the execution environment.
func (s *CLIStrategy) Mode() tracking.Mode {
	return tracking.CLI
}

// worktreePath derives the on-disk location for a workspace branch.
// Slashes flatten to hyphens so feature/login lives in one directory.
func (s *CLIStrategy) worktreePath(branchName string) string {
	return filepath.Join(s.deps.Config.Paths.Worktrees, strings.ReplaceAll(branchName, "/", "-"))
}

// Init creates (or resumes) an isolated worktree workspace.
func (s *CLIStrategy) Init(ctx context.Context, branchName string) (*tracking.Workspace, error) {
	if err := s.core.rejectProtectedBranch(branchName); err != nil {
		return nil, err
	}
	if !tracking.ValidBranchName(branchName) {
		return nil, newError(CodeInvalidBranchRef,
			"use: canopy init feature/<slug>", nil, "branch name %q must match feature/<slug>", branchName)
	}
	logger := s.deps.Logger.With("branch", branchName, "mode", "cli")

	existing, ok, err := s.deps.Store.Get(branchName)
	if err != nil && !tracking.IsCorruption(err) {
		return nil, err
	}
	if ok && existing.Status != tracking.StatusRemoved {
		if s.workspaceIntact(ctx, existing) {
			logger.Info("workspace already active, nothing to do", "path", existing.RootPath)
			return existing, nil
		}
		logger.Warn("workspace recorded but worktree or branch is gone, reinitializing",
			"path", existing.RootPath)
		// Stale worktree metadata would make worktree add refuse the
		// branch.
		if err := s.deps.Parent.WorktreePrune(ctx); err != nil {
			return nil, err
		}
	}

	path := s.worktreePath(branchName)
	occupied, err := s.deps.Parent.WorktreeForBranch(ctx, branchName)
	if err != nil {
		return nil, err
	}
	if occupied != nil {
		// The worktree may predate canopy entirely, so cleanup alone
		// cannot reach it; regenerate adopts it first.
		return nil, newError(CodeWorktreeExists,
			"run: canopy regenerate (to adopt the worktree), then canopy cleanup "+branchName+" if unwanted",
			nil, "branch %q is already checked out in worktree %s", branchName, occupied.Path)
	}
	if _, err := os.Stat(path); err == nil {
		return nil, newError(CodeWorktreeExists,
			"remove "+path+" or pick a different branch name",
			nil, "worktree path %s already exists", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating worktrees root: %w", err)
	}
	createBranch := !s.deps.Parent.BranchExists(ctx, branchName)
	if err := s.deps.Parent.WorktreeAdd(ctx, path, branchName, createBranch); err != nil {
		return nil, fmt.Errorf("creating worktree: %w", err)
	}
	logger.Info("worktree created", "path", path, "new_branch", createBranch)

	worktree := git.NewRepository(path)
	if err := worktree.SubmoduleUpdateInit(ctx); err != nil {
		return nil, newError(CodeSubmoduleInitFailure,
			"fix submodule access, then rerun: canopy init "+branchName,
			err, "initializing submodules in %s", path)
	}
	if err := protect.InstallAll(ctx, worktree, s.deps.Config.ProtectedBranch); err != nil {
		return nil, fmt.Errorf("installing protection guards: %w", err)
	}

	refs, syncErr := synchronize(ctx, worktree, branchName, s.updater())

	workspace, err := s.deps.Store.Upsert(branchName, func(w *tracking.Workspace) error {
		w.RootPath = path
		w.Status = tracking.StatusActive
		w.SubmoduleBranches = refs
		w.PRReferences = nil
		return nil
	})
	if err != nil {
		return nil, errors.Join(syncErr, err)
	}
	if syncErr != nil {
		return workspace, syncErr
	}
	logger.Info("workspace ready", "path", path, "submodules", len(refs))
	return workspace, nil
}

// workspaceIntact reports whether the recorded worktree still exists
// on disk with the workspace branch checked out.
func (s *CLIStrategy) workspaceIntact(ctx context.Context, workspace *tracking.Workspace) bool {
	if workspace.RootPath == "" {
		return false
	}
	if _, err := os.Stat(workspace.RootPath); err != nil {
		return false
	}
	current, err := git.NewRepository(workspace.RootPath).CurrentBranch(ctx)
	return err == nil && current == workspace.BranchName
}

// Status lists all tracked workspaces.
func (s *CLIStrategy) Status(ctx context.Context) ([]StatusEntry, error) {
	return s.status(ctx)
}

// CreatePRs runs the pull request orchestrator for one workspace.
func (s *CLIStrategy) CreatePRs(ctx context.Context, branchName string, opts PROptions) (*PRResult, error) {
	return s.createPRs(ctx, branchName, opts)
}

// Cleanup tears the workspace down.
func (s *CLIStrategy) Cleanup(ctx context.Context, branchName string, opts CleanupOptions) error {
	return s.cleanup(ctx, branchName, opts)
}

// Sync re-runs the submodule branch synchronizer.
func (s *CLIStrategy) Sync(ctx context.Context, branchName string) (*tracking.Workspace, error) {
	return s.sync(ctx, branchName)
}

// repoFor returns the workspace's worktree repository.
func (s *CLIStrategy) repoFor(workspace *tracking.Workspace) *git.Repository {
	return git.NewRepository(workspace.RootPath)
}

// updater returns the standard submodule update path; CLI environments
// have normal credential and network setup.
func (s *CLIStrategy) updater() submoduleUpdater {
	return standardUpdater{}
}

// teardown removes the worktree (submodule checkouts and their
// branches go with it) and the parent-side local branch. Every step
// tolerates already-gone state.
func (s *CLIStrategy) teardown(ctx context.Context, workspace *tracking.Workspace) error {
	var errs []error

	if workspace.RootPath != "" {
		if _, err := os.Stat(workspace.RootPath); err == nil {
			if err := s.deps.Parent.WorktreeRemove(ctx, workspace.RootPath, true); err != nil {
				errs = append(errs, fmt.Errorf("removing worktree %s: %w", workspace.RootPath, err))
			}
		}
	}
	if err := s.deps.Parent.WorktreePrune(ctx); err != nil {
		errs = append(errs, err)
	}
	if s.deps.Parent.BranchExists(ctx, workspace.BranchName) {
		if err := s.deps.Parent.DeleteBranch(ctx, workspace.BranchName, true); err != nil {
			errs = append(errs, fmt.Errorf("deleting branch %s: %w", workspace.BranchName, err))
		}
	}

	return errors.Join(errs...)
}
