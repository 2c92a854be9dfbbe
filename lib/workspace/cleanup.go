// Copyright 2026 The Canopy Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/canopy-scm/canopy/lib/git"
	"github.com/canopy-scm/canopy/lib/github"
	"github.com/canopy-scm/canopy/lib/tracking"
)

// CleanupOptions customizes workspace teardown.
type CleanupOptions struct {
	// Force proceeds even when recorded pull requests are not merged.
	Force bool

	// DeleteRemote also deletes the branch on the remote, in every
	// repository that pushed it.
	DeleteRemote bool

	// Archive snapshots the worktree into a tar.gz under the archives
	// directory before deletion. CLI mode only.
	Archive bool
}

// cleanup drives the teardown state machine: refresh PR states, refuse
// on unmerged PRs (unless forced), mark CLEANING, optionally archive,
// tear down filesystem and branches, drop the tracking entry. Cleaning
// an untracked branch is a no-op, so reruns after partial failures
// converge.
func (c *core) cleanup(ctx context.Context, branchName string, opts CleanupOptions) error {
	workspace, ok, err := c.deps.Store.Get(branchName)
	if err != nil {
		if tracking.IsCorruption(err) {
			return corruptionError(err)
		}
		return err
	}
	logger := c.deps.Logger.With("branch", branchName)
	if !ok {
		logger.Info("no tracked workspace, nothing to clean")
		return nil
	}

	if len(workspace.PRReferences) > 0 && c.deps.Host != nil {
		workspace, err = c.refreshPRStates(ctx, workspace)
		if err != nil {
			logger.Warn("could not refresh pull request states", "error", err)
		}
	}

	if !opts.Force {
		if unmerged := unmergedPRs(workspace); len(unmerged) > 0 {
			return newError(CodeUnmergedPR,
				"merge or close the pull requests, or rerun with --force",
				nil, "workspace %q has unmerged pull requests: %s",
				branchName, strings.Join(unmerged, ", "))
		}
	}

	if _, err := c.deps.Store.Upsert(branchName, func(w *tracking.Workspace) error {
		w.Status = tracking.StatusCleaning
		return nil
	}); err != nil {
		return err
	}

	if opts.Archive && workspace.RootPath != "" {
		archivePath, err := archiveWorktree(workspace.RootPath, c.deps.Config.Paths.Archives, branchName, c.deps.Clock)
		if err != nil {
			return fmt.Errorf("archiving worktree before removal: %w", err)
		}
		logger.Info("worktree archived", "archive", archivePath)
	}

	remoteBranches := c.pushedRepos(ctx, workspace)

	if err := c.env.teardown(ctx, workspace); err != nil {
		return err
	}

	if opts.DeleteRemote {
		if err := c.deleteRemoteBranches(ctx, branchName, remoteBranches); err != nil {
			logger.Warn("some remote branches were not deleted", "error", err)
		}
	}

	if err := c.deps.Store.Remove(branchName); err != nil {
		return err
	}
	logger.Info("workspace removed")
	return nil
}

// unmergedPRs lists recorded pull requests that are not merged.
func unmergedPRs(workspace *tracking.Workspace) []string {
	var unmerged []string
	for repoID, ref := range workspace.PRReferences {
		if ref.State != tracking.PRMerged {
			unmerged = append(unmerged, fmt.Sprintf("%s (#%d %s)", repoID, ref.Number, ref.State))
		}
	}
	sort.Strings(unmerged)
	return unmerged
}

// refreshPRStates queries the remote host for the current state of
// every recorded pull request, so a PR merged since the last command
// is recognized before the unmerged check.
func (c *core) refreshPRStates(ctx context.Context, workspace *tracking.Workspace) (*tracking.Workspace, error) {
	root := c.env.repoFor(workspace)
	changed := false
	states := map[string]tracking.PRState{}
	var errs []error

	for repoID, ref := range workspace.PRReferences {
		repo := root
		if repoID != parentRepoID {
			repo = root.Sub(repoID)
		}
		remoteURL, err := repo.RemoteURL(ctx, c.deps.Config.Remote)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", repoID, err))
			continue
		}
		slug, err := github.ParseRemoteURL(remoteURL)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", repoID, err))
			continue
		}
		pullRequest, err := c.deps.Host.GetPullRequest(ctx, slug.Owner, slug.Name, ref.Number)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", repoID, err))
			continue
		}
		state := prState(pullRequest)
		if state != ref.State {
			states[repoID] = state
			changed = true
		}
	}

	if changed {
		updated, err := c.deps.Store.Upsert(workspace.BranchName, func(w *tracking.Workspace) error {
			for repoID, state := range states {
				ref := w.PRReferences[repoID]
				ref.State = state
				w.PRReferences[repoID] = ref
			}
			return nil
		})
		if err != nil {
			errs = append(errs, err)
		} else {
			workspace = updated
		}
	}
	return workspace, errors.Join(errs...)
}

// pushedRepos returns the repositories whose branch reached the remote:
// everything with a recorded PR, falling back to the parent when no
// PRs were ever opened.
func (c *core) pushedRepos(ctx context.Context, workspace *tracking.Workspace) []string {
	if len(workspace.PRReferences) == 0 {
		return []string{parentRepoID}
	}
	repoIDs := make([]string, 0, len(workspace.PRReferences))
	for repoID := range workspace.PRReferences {
		repoIDs = append(repoIDs, repoID)
	}
	sort.Strings(repoIDs)
	return repoIDs
}

// deleteRemoteBranches deletes the workspace branch on the remote for
// each repository, collecting failures. Teardown runs first, so these
// go through the parent's main checkout rather than the (gone)
// worktree.
func (c *core) deleteRemoteBranches(ctx context.Context, branchName string, repoIDs []string) error {
	var errs []error
	for _, repoID := range repoIDs {
		repo := c.deps.Parent
		if repoID != parentRepoID {
			repo = c.deps.Parent.Sub(repoID)
		}
		if err := c.deleteRemoteBranch(ctx, repo, branchName); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", repoID, err))
		}
	}
	return errors.Join(errs...)
}

// deleteRemoteBranch removes the branch on one repository's remote.
// With a credential configured the host API is used (some remotes
// refuse push deletions that the API accepts); without one, or when
// the API call fails, deletion falls back to git push --delete. A
// branch the host no longer knows counts as deleted.
func (c *core) deleteRemoteBranch(ctx context.Context, repo *git.Repository, branchName string) error {
	if c.deps.Host != nil {
		err := c.hostDeleteBranch(ctx, repo, branchName)
		if err == nil || github.IsNotFound(err) {
			return nil
		}
		c.deps.Logger.Warn("host-side branch deletion failed, falling back to git push",
			"repo", repo.Dir(), "branch", branchName, "error", err)
	}
	return repo.DeleteRemoteBranch(ctx, c.deps.Config.Remote, branchName)
}

// hostDeleteBranch resolves the repository's remote slug and deletes
// the branch through the host API.
func (c *core) hostDeleteBranch(ctx context.Context, repo *git.Repository, branchName string) error {
	remoteURL, err := repo.RemoteURL(ctx, c.deps.Config.Remote)
	if err != nil {
		return err
	}
	slug, err := github.ParseRemoteURL(remoteURL)
	if err != nil {
		return err
	}
	return c.deps.Host.DeleteBranch(ctx, slug.Owner, slug.Name, branchName)
}
