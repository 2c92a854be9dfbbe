// Copyright 2026 The Canopy Authors
// SPDX-License-Identifier: Apache-2.0

package git

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrDetachedHead is returned by CurrentBranch when HEAD does not point
// at a branch. Callers treat this as an anomaly requiring explicit
// re-branching, never as something to silently fix.
var ErrDetachedHead = errors.New("HEAD is detached (not on a branch)")

// CurrentBranch returns the name of the currently checked-out branch,
// or ErrDetachedHead when HEAD is detached.
func (r *Repository) CurrentBranch(ctx context.Context) (string, error) {
	out, err := r.Output(ctx, "symbolic-ref", "--short", "-q", "HEAD")
	if err != nil {
		// symbolic-ref exits 1 with empty output on a detached HEAD.
		// Distinguish that from a genuinely broken repository.
		if _, headErr := r.Output(ctx, "rev-parse", "--verify", "HEAD"); headErr == nil {
			return "", ErrDetachedHead
		}
		return "", err
	}
	return out, nil
}

// BranchExists reports whether a local branch of the given name exists.
func (r *Repository) BranchExists(ctx context.Context, name string) bool {
	_, err := r.Output(ctx, "show-ref", "--verify", "--quiet", "refs/heads/"+name)
	return err == nil
}

// LocalBranches returns the names of all local branches.
func (r *Repository) LocalBranches(ctx context.Context) ([]string, error) {
	out, err := r.Output(ctx, "for-each-ref", "--format=%(refname:short)", "refs/heads")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// CreateBranch creates a local branch at the given start point without
// checking it out. An empty start point means the current HEAD.
func (r *Repository) CreateBranch(ctx context.Context, name, startPoint string) error {
	args := []string{"branch", name}
	if startPoint != "" {
		args = append(args, startPoint)
	}
	_, err := r.Run(ctx, args...)
	return err
}

// Checkout checks out an existing branch.
func (r *Repository) Checkout(ctx context.Context, name string) error {
	_, err := r.Run(ctx, "checkout", name)
	return err
}

// CheckoutNew creates a branch and checks it out in one step.
func (r *Repository) CheckoutNew(ctx context.Context, name string) error {
	_, err := r.Run(ctx, "checkout", "-b", name)
	return err
}

// DeleteBranch deletes a local branch. With force, unmerged branches
// are deleted too (-D).
func (r *Repository) DeleteBranch(ctx context.Context, name string, force bool) error {
	flag := "-d"
	if force {
		flag = "-D"
	}
	_, err := r.Run(ctx, "branch", flag, name)
	return err
}

// RevParse resolves a ref to a full commit SHA.
func (r *Repository) RevParse(ctx context.Context, ref string) (string, error) {
	return r.Output(ctx, "rev-parse", "--verify", ref+"^{commit}")
}

// Head returns the SHA of the current HEAD commit.
func (r *Repository) Head(ctx context.Context) (string, error) {
	return r.RevParse(ctx, "HEAD")
}

// AheadCount returns the number of commits on branch that are not on
// base (rev-list --count base..branch).
func (r *Repository) AheadCount(ctx context.Context, base, branch string) (int, error) {
	out, err := r.Output(ctx, "rev-list", "--count", base+".."+branch)
	if err != nil {
		return 0, err
	}
	count, err := strconv.Atoi(out)
	if err != nil {
		return 0, fmt.Errorf("parsing rev-list count %q: %w", out, err)
	}
	return count, nil
}

// HasUncommittedChanges reports whether the work tree has staged or
// unstaged changes (untracked files included).
func (r *Repository) HasUncommittedChanges(ctx context.Context) (bool, error) {
	out, err := r.Run(ctx, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

// PathChanged reports whether the given path differs from its committed
// state (staged, unstaged, or untracked).
func (r *Repository) PathChanged(ctx context.Context, path string) (bool, error) {
	out, err := r.Run(ctx, "status", "--porcelain", "--", path)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

// Commit stages the given paths and commits them with the message.
// Author and committer fall back to repository configuration.
func (r *Repository) Commit(ctx context.Context, message string, paths ...string) error {
	if len(paths) > 0 {
		addArgs := append([]string{"add", "--"}, paths...)
		if _, err := r.Run(ctx, addArgs...); err != nil {
			return err
		}
	}
	_, err := r.Run(ctx, "commit", "-m", message)
	return err
}

// Push pushes a branch to the remote. With setUpstream, the local
// branch starts tracking the remote one.
func (r *Repository) Push(ctx context.Context, remote, branch string, setUpstream bool) error {
	args := []string{"push"}
	if setUpstream {
		args = append(args, "--set-upstream")
	}
	args = append(args, remote, branch)
	_, err := r.Run(ctx, args...)
	return err
}

// DeleteRemoteBranch deletes a branch on the remote.
func (r *Repository) DeleteRemoteBranch(ctx context.Context, remote, branch string) error {
	_, err := r.Run(ctx, "push", remote, "--delete", branch)
	return err
}

// RemoteURL returns the fetch URL of the named remote.
func (r *Repository) RemoteURL(ctx context.Context, remote string) (string, error) {
	return r.Output(ctx, "remote", "get-url", remote)
}

// Fetch fetches from the named remote.
func (r *Repository) Fetch(ctx context.Context, remote string) error {
	_, err := r.Run(ctx, "fetch", remote)
	return err
}
