// Copyright 2026 The Canopy Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/canopy-scm/canopy/lib/git"
	"github.com/canopy-scm/canopy/lib/github"
	"github.com/canopy-scm/canopy/lib/tracking"
)

// parentRepoID keys the parent repository in PR references; submodules
// are keyed by their path.
const parentRepoID = "parent"

// PROptions customizes the pull requests the orchestrator opens.
type PROptions struct {
	// Title is the PR title. Defaults to the branch name.
	Title string

	// Body is the PR description.
	Body string

	// Draft opens the PRs as drafts.
	Draft bool
}

// RepoPR pairs a repository with the pull request recorded for it.
type RepoPR struct {
	RepoID string
	Ref    tracking.PullRequestRef
}

// PRResult reports what the orchestrator did per repository.
type PRResult struct {
	// Created holds the pull requests opened by this run.
	Created []RepoPR

	// Existing holds repositories that already had an open PR recorded.
	Existing []RepoPR

	// Skipped lists repositories with no commits beyond the protected
	// branch. No empty PRs.
	Skipped []string
}

// candidateRepo is one repository the orchestrator considers.
type candidateRepo struct {
	id   string
	repo *git.Repository
}

// createPRs finds every repository where the workspace branch is ahead
// of the protected branch, pushes the branch, and opens one PR per
// repository. Per-repository failures are collected; one failing
// repository never stops the others. Successes are recorded in the
// store even when some repositories fail.
func (c *core) createPRs(ctx context.Context, branchName string, opts PROptions) (*PRResult, error) {
	workspace, err := c.getWorkspace(branchName)
	if err != nil {
		return nil, err
	}
	switch workspace.Status {
	case tracking.StatusActive, tracking.StatusPROpen:
	default:
		return nil, newError(CodeInvalidBranchRef,
			"run: canopy status", nil,
			"workspace %q is %s; pull requests need an active workspace", branchName, workspace.Status)
	}
	if c.deps.Host == nil {
		return nil, newError(CodeRemoteHostFailure,
			"set CANOPY_GITHUB_TOKEN (or GITHUB_TOKEN) and rerun", nil,
			"no remote host credential configured")
	}

	// Commits made since the last sync may have moved submodules; pick
	// the drift up here so the pushed branches carry current pins. A
	// failed re-sync is reported per-repository below, not fatal here.
	resynced, resyncErr := c.resyncIfDrifted(ctx, workspace)
	if resyncErr != nil {
		c.deps.Logger.Warn("submodule re-sync before pull requests failed",
			"branch", branchName, "error", resyncErr)
	}
	if resynced != nil {
		workspace = resynced
	}

	root := c.env.repoFor(workspace)
	candidates, err := c.candidateRepos(ctx, root)
	if err != nil {
		return nil, err
	}

	logger := c.deps.Logger.With("branch", branchName)
	result := &PRResult{}
	var repoErrs []error
	created := map[string]tracking.PullRequestRef{}

	for _, candidate := range candidates {
		if existing, ok := workspace.PRReferences[candidate.id]; ok && existing.State == tracking.PROpen {
			result.Existing = append(result.Existing, RepoPR{RepoID: candidate.id, Ref: existing})
			continue
		}

		ahead, err := c.aheadOfProtected(ctx, candidate.repo, branchName)
		if err != nil {
			repoErrs = append(repoErrs, fmt.Errorf("%s: %w", candidate.id, err))
			continue
		}
		if ahead == 0 {
			result.Skipped = append(result.Skipped, candidate.id)
			continue
		}

		ref, err := c.openPR(ctx, candidate, branchName, opts)
		if err != nil {
			repoErrs = append(repoErrs, fmt.Errorf("%s: %w", candidate.id, err))
			continue
		}
		logger.Info("pull request opened", "repo", candidate.id, "url", ref.URL, "commits", ahead)
		created[candidate.id] = *ref
		result.Created = append(result.Created, RepoPR{RepoID: candidate.id, Ref: *ref})
	}

	if len(created) > 0 {
		if _, err := c.deps.Store.Upsert(branchName, func(w *tracking.Workspace) error {
			if w.PRReferences == nil {
				w.PRReferences = map[string]tracking.PullRequestRef{}
			}
			for id, ref := range created {
				w.PRReferences[id] = ref
			}
			w.Status = tracking.StatusPROpen
			return nil
		}); err != nil {
			repoErrs = append(repoErrs, err)
		}
	}

	if len(repoErrs) > 0 {
		return result, newError(CodeRemoteHostFailure,
			"fix the repositories above, then rerun: canopy create-prs",
			errors.Join(repoErrs...), "%d of %d repositories failed", len(repoErrs), len(candidates))
	}
	return result, nil
}

// candidateRepos returns the parent plus every initialized submodule,
// in stable order.
func (c *core) candidateRepos(ctx context.Context, root *git.Repository) ([]candidateRepo, error) {
	candidates := []candidateRepo{{id: parentRepoID, repo: root}}
	submodules, err := root.Submodules(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(submodules, func(i, j int) bool { return submodules[i].Path < submodules[j].Path })
	for _, sub := range submodules {
		if !sub.Initialized {
			continue
		}
		candidates = append(candidates, candidateRepo{id: sub.Path, repo: root.Sub(sub.Path)})
	}
	return candidates, nil
}

// aheadOfProtected counts commits on the branch that the protected
// branch lacks. A repository without a local protected branch (a
// submodule branched straight off a detached pin) compares against the
// remote one; with neither, every commit is new but there is nothing
// to merge into, so it is reported as zero.
func (c *core) aheadOfProtected(ctx context.Context, repo *git.Repository, branchName string) (int, error) {
	if !repo.BranchExists(ctx, branchName) {
		return 0, nil
	}
	protected := c.deps.Config.ProtectedBranch
	base := protected
	if !repo.BranchExists(ctx, protected) {
		remoteBase := c.deps.Config.Remote + "/" + protected
		if _, err := repo.RevParse(ctx, remoteBase); err != nil {
			return 0, nil
		}
		base = remoteBase
	}
	return repo.AheadCount(ctx, base, branchName)
}

// openPR pushes the branch and opens the pull request for one
// repository.
func (c *core) openPR(ctx context.Context, candidate candidateRepo, branchName string, opts PROptions) (*tracking.PullRequestRef, error) {
	remote := c.deps.Config.Remote
	if err := candidate.repo.Push(ctx, remote, branchName, true); err != nil {
		return nil, fmt.Errorf("pushing %s: %w", branchName, err)
	}

	remoteURL, err := candidate.repo.RemoteURL(ctx, remote)
	if err != nil {
		return nil, err
	}
	slug, err := github.ParseRemoteURL(remoteURL)
	if err != nil {
		return nil, err
	}

	title := opts.Title
	if title == "" {
		title = branchName
	}
	pullRequest, err := c.deps.Host.CreatePullRequest(ctx, slug.Owner, slug.Name, github.CreatePullRequestRequest{
		Title: title,
		Body:  opts.Body,
		Head:  branchName,
		Base:  c.deps.Config.ProtectedBranch,
		Draft: opts.Draft,
	})
	if err != nil {
		return nil, err
	}
	return &tracking.PullRequestRef{
		URL:    pullRequest.HTMLURL,
		Number: pullRequest.Number,
		State:  tracking.PROpen,
	}, nil
}

// prState maps the host's pull request view onto the tracked state.
func prState(pullRequest *github.PullRequest) tracking.PRState {
	switch {
	case pullRequest.Merged:
		return tracking.PRMerged
	case pullRequest.State == "closed":
		return tracking.PRClosed
	default:
		return tracking.PROpen
	}
}
