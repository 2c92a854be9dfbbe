// Copyright 2026 The Canopy Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/canopy-scm/canopy/lib/git"
	"github.com/canopy-scm/canopy/lib/protect"
	"github.com/canopy-scm/canopy/lib/tracking"
)

// persistMessage is the machine-authored commit message for tracking
// store commits.
const persistMessage = "canopy: update session tracking"

// Resume reconstructs session state at the start of a Web invocation:
// check out the recorded branch, re-populate and re-sync submodules,
// re-install the protection guards. A checkout with no recorded
// session is a fresh environment and resuming is a no-op.
func (s *WebStrategy) Resume(ctx context.Context) error {
	doc, err := s.deps.Store.Read()
	if err != nil {
		if tracking.IsCorruption(err) {
			return corruptionError(err)
		}
		return err
	}

	target := s.resumeTarget(ctx, doc)
	if target == nil {
		s.deps.Logger.Debug("no session to resume")
		return nil
	}
	logger := s.deps.Logger.With("branch", target.BranchName, "mode", "web")
	parent := s.deps.Parent

	current, err := parent.CurrentBranch(ctx)
	if err != nil && !errors.Is(err, git.ErrDetachedHead) {
		return err
	}
	if current != target.BranchName {
		if err := s.checkoutSessionBranch(ctx, target.BranchName); err != nil {
			return err
		}
		logger.Info("session branch restored")
	}

	if err := s.initSubmodules(ctx); err != nil {
		return newError(CodeSubmoduleInitFailure,
			"fix the submodules above, then rerun the command",
			err, "re-initializing submodules during resume")
	}
	if err := protect.InstallAll(ctx, parent, s.deps.Config.ProtectedBranch); err != nil {
		return fmt.Errorf("re-installing protection guards: %w", err)
	}

	refs, syncErr := synchronize(ctx, parent, target.BranchName, s.updater())
	if maps.Equal(refs, target.SubmoduleBranches) {
		// No store churn when resume changed nothing; Persist stays a
		// no-op for read-only invocations.
		return syncErr
	}
	if _, err := s.deps.Store.Upsert(target.BranchName, func(w *tracking.Workspace) error {
		for path, ref := range refs {
			w.SubmoduleBranches[path] = ref
		}
		return nil
	}); err != nil {
		return errors.Join(syncErr, err)
	}
	return syncErr
}

// resumeTarget picks the session to restore: the one matching the
// current branch when it is tracked, otherwise the most recently
// updated live session.
func (s *WebStrategy) resumeTarget(ctx context.Context, doc tracking.Document) *tracking.Workspace {
	if current, err := s.deps.Parent.CurrentBranch(ctx); err == nil {
		if workspace, ok := doc[current]; ok && workspace.Status != tracking.StatusRemoved {
			return workspace
		}
	}

	var latest *tracking.Workspace
	var latestTime time.Time
	for _, workspace := range doc {
		switch workspace.Status {
		case tracking.StatusActive, tracking.StatusPROpen:
		default:
			continue
		}
		updated, err := time.Parse(time.RFC3339, workspace.UpdatedAt)
		if err != nil {
			continue
		}
		if latest == nil || updated.After(latestTime) {
			latest = workspace
			latestTime = updated
		}
	}
	return latest
}

// checkoutSessionBranch checks out the session branch, fetching first
// when the branch only exists on the remote of a fresh checkout. A
// branch that exists nowhere is recreated from the current HEAD.
func (s *WebStrategy) checkoutSessionBranch(ctx context.Context, branchName string) error {
	parent := s.deps.Parent
	if parent.BranchExists(ctx, branchName) {
		return parent.Checkout(ctx, branchName)
	}
	if err := parent.Fetch(ctx, s.deps.Config.Remote); err == nil {
		// checkout resolves origin/<branch> into a local tracking
		// branch when it exists.
		if err := parent.Checkout(ctx, branchName); err == nil {
			return nil
		}
	}
	s.deps.Logger.Warn("session branch exists nowhere, recreating from HEAD",
		"branch", branchName)
	return parent.CheckoutNew(ctx, branchName)
}

// Persist commits the tracking document to the parent repository when
// it changed since the last commit. Nothing-to-commit is success. The
// commit is machine-authored and bypasses the pre-commit guard: this
// is the coordinator's own bookkeeping, not a human change.
func (s *WebStrategy) Persist(ctx context.Context) error {
	parent := s.deps.Parent
	relPath := s.deps.Config.Tracking.WebFile

	changed, err := parent.PathChanged(ctx, relPath)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	if _, err := parent.CurrentBranch(ctx); errors.Is(err, git.ErrDetachedHead) {
		return newError(CodeDetachedState,
			"run: git checkout <branch>, then rerun the command",
			err, "cannot persist session tracking from a detached HEAD")
	} else if err != nil {
		return err
	}

	if _, err := parent.Run(ctx, "add", "--", relPath); err != nil {
		return fmt.Errorf("staging tracking store: %w", err)
	}
	if _, err := parent.Run(ctx,
		"-c", "user.name=canopy",
		"-c", "user.email=canopy@invalid",
		"commit", "--no-verify", "-m", persistMessage, "--", relPath); err != nil {
		return fmt.Errorf("committing tracking store: %w", err)
	}
	s.deps.Logger.Info("session tracking persisted", "file", relPath)
	return nil
}
