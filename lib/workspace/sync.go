// Copyright 2026 The Canopy Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/canopy-scm/canopy/lib/git"
	"github.com/canopy-scm/canopy/lib/tracking"
)

// submoduleUpdater populates a submodule working directory. The
// standard updater shells out to git submodule update; the Web
// strategy wraps it with a direct-clone fallback for environments
// where the recorded submodule URL is unreachable through the normal
// path.
type submoduleUpdater interface {
	ensure(ctx context.Context, parent *git.Repository, sub git.Submodule) error
}

// standardUpdater runs git submodule update --init --recursive for the
// one path.
type standardUpdater struct{}

func (standardUpdater) ensure(ctx context.Context, parent *git.Repository, sub git.Submodule) error {
	return parent.SubmoduleUpdateInit(ctx, sub.Path)
}

// cloneFallbackUpdater tries the standard path first and falls back to
// a direct clone of the recorded URL, checked out at the commit the
// parent pins. Ephemeral Web checkouts sometimes lack the relative-URL
// or credential setup the standard path needs.
type cloneFallbackUpdater struct {
	logger *slog.Logger
}

func (u cloneFallbackUpdater) ensure(ctx context.Context, parent *git.Repository, sub git.Submodule) error {
	updateErr := parent.SubmoduleUpdateInit(ctx, sub.Path)
	if updateErr == nil {
		return nil
	}
	if sub.URL == "" {
		return updateErr
	}
	u.logger.Warn("standard submodule update failed, trying direct clone",
		"submodule", sub.Path, "error", updateErr)

	target := filepath.Join(parent.Dir(), sub.Path)
	if err := os.RemoveAll(target); err != nil {
		return errors.Join(updateErr, fmt.Errorf("clearing %s: %w", target, err))
	}
	if _, err := parent.Run(ctx, "clone", "--", sub.URL, sub.Path); err != nil {
		return errors.Join(updateErr, err)
	}

	pinned, err := parent.PinnedSubmoduleCommit(ctx, "", sub.Path)
	if err != nil {
		return errors.Join(updateErr, err)
	}
	subRepo := parent.Sub(sub.Path)
	if _, err := subRepo.Run(ctx, "checkout", "--detach", pinned); err != nil {
		// The pinned commit may not exist on the clone's default
		// branch history if it was never pushed; fetch everything and
		// retry once.
		if fetchErr := subRepo.Fetch(ctx, "origin"); fetchErr != nil {
			return errors.Join(updateErr, err, fetchErr)
		}
		if _, err := subRepo.Run(ctx, "checkout", "--detach", pinned); err != nil {
			return errors.Join(updateErr, err)
		}
	}
	return nil
}

// synchronize ensures every submodule of root has a local branch named
// exactly branchName checked out, creating it from the submodule HEAD
// when absent. An existing branch of that name is checked out as-is,
// never force-moved. Per-submodule failures are collected; the refs of
// the submodules that did synchronize are always returned.
func synchronize(ctx context.Context, root *git.Repository, branchName string, updater submoduleUpdater) (map[string]tracking.SubmoduleBranchRef, error) {
	submodules, err := root.Submodules(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing submodules: %w", err)
	}

	refs := map[string]tracking.SubmoduleBranchRef{}
	var errs []error
	for _, sub := range submodules {
		if !sub.Initialized {
			if err := updater.ensure(ctx, root, sub); err != nil {
				errs = append(errs, fmt.Errorf("submodule %s: %w", sub.Path, err))
				continue
			}
		}
		subRepo := root.Sub(sub.Path)

		current, err := subRepo.CurrentBranch(ctx)
		switch {
		case err == nil && current == branchName:
			// Already there.
		case err == nil || errors.Is(err, git.ErrDetachedHead):
			if subRepo.BranchExists(ctx, branchName) {
				err = subRepo.Checkout(ctx, branchName)
			} else {
				err = subRepo.CheckoutNew(ctx, branchName)
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("submodule %s: checking out %s: %w", sub.Path, branchName, err))
				continue
			}
		default:
			errs = append(errs, fmt.Errorf("submodule %s: %w", sub.Path, err))
			continue
		}

		head, err := subRepo.Head(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("submodule %s: %w", sub.Path, err))
			continue
		}
		refs[sub.Path] = tracking.SubmoduleBranchRef{
			BranchName:       branchName,
			LastSyncedCommit: head,
		}
	}

	if len(errs) > 0 {
		return refs, newError(CodeSubmoduleInitFailure,
			"fix the submodules above, then run: canopy init "+branchName,
			errors.Join(errs...), "%d of %d submodules failed to synchronize", len(errs), len(submodules))
	}
	return refs, nil
}

// resyncIfDrifted re-runs the synchronizer when commits have moved a
// submodule since the last sync: a checked-out submodule commit that
// differs from the recorded pin, or a submodule the store has never
// seen. This keeps pins current without an explicit sync invocation;
// an undrifted workspace is returned as-is.
func (c *core) resyncIfDrifted(ctx context.Context, workspace *tracking.Workspace) (*tracking.Workspace, error) {
	root := c.env.repoFor(workspace)
	submodules, err := root.Submodules(ctx)
	if err != nil {
		return workspace, err
	}

	drifted := false
	for _, sub := range submodules {
		if !sub.Initialized {
			continue
		}
		ref, ok := workspace.SubmoduleBranches[sub.Path]
		if !ok || ref.LastSyncedCommit != sub.Head {
			drifted = true
			break
		}
	}
	if !drifted {
		return workspace, nil
	}

	c.deps.Logger.Info("submodule commits detected since last sync, re-synchronizing",
		"branch", workspace.BranchName)
	return c.sync(ctx, workspace.BranchName)
}

// Sync re-runs the synchronizer for an existing workspace and records
// the refreshed submodule pins.
func (c *core) sync(ctx context.Context, branchName string) (*tracking.Workspace, error) {
	workspace, err := c.getWorkspace(branchName)
	if err != nil {
		return nil, err
	}
	refs, syncErr := synchronize(ctx, c.env.repoFor(workspace), branchName, c.env.updater())

	// Persist what did synchronize even when some submodules failed;
	// the store must reflect reality, not the happy path.
	updated, upsertErr := c.deps.Store.Upsert(branchName, func(w *tracking.Workspace) error {
		for path, ref := range refs {
			w.SubmoduleBranches[path] = ref
		}
		return nil
	})
	if upsertErr != nil {
		return nil, errors.Join(syncErr, upsertErr)
	}
	return updated, syncErr
}
