// Copyright 2026 The Canopy Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"context"
	"errors"
	"fmt"

	"github.com/canopy-scm/canopy/lib/git"
	"github.com/canopy-scm/canopy/lib/protect"
	"github.com/canopy-scm/canopy/lib/tracking"
)

// WebStrategy implements the ephemeral single-checkout mode. The
// filesystem is disposable between invocations; the only durable state
// is what got committed to git, which is why the tracking store is
// committed on the workspace branch and reconstructed at session start.
type WebStrategy struct {
	core
}

// NewWebStrategy builds the Web-mode strategy.
func NewWebStrategy(deps Deps) *WebStrategy {
	deps.fill()
	strategy := &WebStrategy{core: core{deps: deps}}
	strategy.core.env = strategy
	return strategy
}

// Mode identifies the execution environment.
func (s *WebStrategy) Mode() tracking.Mode {
	return tracking.Web
}

// Init creates (or resumes) a branch-based session in the single
// checkout.
func (s *WebStrategy) Init(ctx context.Context, branchName string) (*tracking.Workspace, error) {
	if err := s.core.rejectProtectedBranch(branchName); err != nil {
		return nil, err
	}
	if !tracking.ValidBranchName(branchName) {
		return nil, newError(CodeInvalidBranchRef,
			"use: canopy init feature/<slug>", nil, "branch name %q must match feature/<slug>", branchName)
	}
	logger := s.deps.Logger.With("branch", branchName, "mode", "web")
	parent := s.deps.Parent

	existing, ok, err := s.deps.Store.Get(branchName)
	if err != nil && !tracking.IsCorruption(err) {
		return nil, err
	}
	branchExists := parent.BranchExists(ctx, branchName)

	switch {
	case ok && existing.Status != tracking.StatusRemoved && branchExists:
		// Intact session: make sure it is checked out and return it
		// unchanged.
		current, err := parent.CurrentBranch(ctx)
		if err != nil && !errors.Is(err, git.ErrDetachedHead) {
			return nil, err
		}
		if current != branchName {
			if err := parent.Checkout(ctx, branchName); err != nil {
				return nil, err
			}
		}
		logger.Info("session already active, nothing to do")
		return existing, nil
	case ok && existing.Status != tracking.StatusRemoved:
		logger.Warn("session recorded but branch is gone, reinitializing")
	case branchExists:
		// A branch with no tracking entry is someone else's state; a
		// second session must not adopt it silently.
		return nil, newError(CodeSessionExists,
			"run: canopy regenerate (to adopt the branch) or pick a different name",
			nil, "branch %q already exists in this checkout without a tracked session", branchName)
	}

	if branchExists {
		if err := parent.Checkout(ctx, branchName); err != nil {
			return nil, err
		}
	} else if err := parent.CheckoutNew(ctx, branchName); err != nil {
		return nil, err
	}
	logger.Info("session branch checked out", "new_branch", !branchExists)

	if err := s.initSubmodules(ctx); err != nil {
		return nil, newError(CodeSubmoduleInitFailure,
			"fix submodule access, then rerun: canopy init "+branchName,
			err, "initializing submodules")
	}
	if err := protect.InstallAll(ctx, parent, s.deps.Config.ProtectedBranch); err != nil {
		return nil, fmt.Errorf("installing protection guards: %w", err)
	}

	refs, syncErr := synchronize(ctx, parent, branchName, s.updater())

	workspace, err := s.deps.Store.Upsert(branchName, func(w *tracking.Workspace) error {
		w.RootPath = ""
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
	logger.Info("session ready", "submodules", len(refs))
	return workspace, nil
}

// initSubmodules runs the fallback-capable updater over every declared
// submodule, collecting per-submodule failures.
func (s *WebStrategy) initSubmodules(ctx context.Context) error {
	submodules, err := s.deps.Parent.Submodules(ctx)
	if err != nil {
		return err
	}
	updater := s.updater()
	var errs []error
	for _, sub := range submodules {
		if sub.Initialized {
			continue
		}
		if err := updater.ensure(ctx, s.deps.Parent, sub); err != nil {
			errs = append(errs, fmt.Errorf("submodule %s: %w", sub.Path, err))
		}
	}
	return errors.Join(errs...)
}

// Status lists all tracked sessions.
func (s *WebStrategy) Status(ctx context.Context) ([]StatusEntry, error) {
	return s.status(ctx)
}

// CreatePRs runs the pull request orchestrator for one session.
func (s *WebStrategy) CreatePRs(ctx context.Context, branchName string, opts PROptions) (*PRResult, error) {
	return s.createPRs(ctx, branchName, opts)
}

// Cleanup tears the session down.
func (s *WebStrategy) Cleanup(ctx context.Context, branchName string, opts CleanupOptions) error {
	return s.cleanup(ctx, branchName, opts)
}

// Sync re-runs the submodule branch synchronizer.
func (s *WebStrategy) Sync(ctx context.Context, branchName string) (*tracking.Workspace, error) {
	return s.sync(ctx, branchName)
}

// repoFor returns the single checkout; Web sessions have no per-branch
// directory.
func (s *WebStrategy) repoFor(workspace *tracking.Workspace) *git.Repository {
	return s.deps.Parent
}

// updater wraps the standard path with the direct-clone fallback.
func (s *WebStrategy) updater() submoduleUpdater {
	return cloneFallbackUpdater{logger: s.deps.Logger}
}

// teardown switches the checkout and every submodule off the session
// branch, then deletes the local branches. The single checkout is left
// on the protected branch.
func (s *WebStrategy) teardown(ctx context.Context, workspace *tracking.Workspace) error {
	parent := s.deps.Parent
	branchName := workspace.BranchName
	var errs []error

	current, err := parent.CurrentBranch(ctx)
	if err == nil && current == branchName {
		if err := parent.Checkout(ctx, s.deps.Config.ProtectedBranch); err != nil {
			return fmt.Errorf("leaving session branch: %w", err)
		}
	}

	submodules, err := parent.Submodules(ctx)
	if err != nil {
		errs = append(errs, err)
	}
	for _, sub := range submodules {
		if !sub.Initialized {
			continue
		}
		subRepo := parent.Sub(sub.Path)
		if !subRepo.BranchExists(ctx, branchName) {
			continue
		}
		if current, err := subRepo.CurrentBranch(ctx); err == nil && current == branchName {
			if _, err := subRepo.Run(ctx, "checkout", "--detach"); err != nil {
				errs = append(errs, fmt.Errorf("submodule %s: %w", sub.Path, err))
				continue
			}
		}
		if err := subRepo.DeleteBranch(ctx, branchName, true); err != nil {
			errs = append(errs, fmt.Errorf("submodule %s: deleting branch: %w", sub.Path, err))
		}
	}

	if parent.BranchExists(ctx, branchName) {
		if err := parent.DeleteBranch(ctx, branchName, true); err != nil {
			errs = append(errs, fmt.Errorf("deleting branch %s: %w", branchName, err))
		}
	}

	return errors.Join(errs...)
}
