// Copyright 2026 The Canopy Authors
// SPDX-License-Identifier: Apache-2.0

package git

import (
	"context"
	"strings"
)

// Worktree describes one entry from git worktree list.
type Worktree struct {
	// Path is the absolute path of the working directory.
	Path string

	// Head is the checked-out commit SHA. Empty for a bare entry.
	Head string

	// Branch is the checked-out branch name (short form), or empty
	// when the worktree is detached or bare.
	Branch string
}

// Worktrees lists all worktrees of this repository, parsed from the
// porcelain format. The main working directory is the first entry.
func (r *Repository) Worktrees(ctx context.Context) ([]Worktree, error) {
	out, err := r.Run(ctx, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}

	var worktrees []Worktree
	var current Worktree
	flush := func() {
		if current.Path != "" {
			worktrees = append(worktrees, current)
		}
		current = Worktree{}
	}

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "worktree "):
			flush()
			current.Path = strings.TrimPrefix(line, "worktree ")
		case strings.HasPrefix(line, "HEAD "):
			current.Head = strings.TrimPrefix(line, "HEAD ")
		case strings.HasPrefix(line, "branch "):
			ref := strings.TrimPrefix(line, "branch ")
			current.Branch = strings.TrimPrefix(ref, "refs/heads/")
		}
	}
	flush()

	return worktrees, nil
}

// WorktreeForBranch returns the worktree that has the given branch
// checked out, or nil when no worktree does.
func (r *Repository) WorktreeForBranch(ctx context.Context, branch string) (*Worktree, error) {
	worktrees, err := r.Worktrees(ctx)
	if err != nil {
		return nil, err
	}
	for i := range worktrees {
		if worktrees[i].Branch == branch {
			return &worktrees[i], nil
		}
	}
	return nil, nil
}

// WorktreeAdd creates a worktree at path. With createBranch, a new
// branch of the given name is created at HEAD (-b); otherwise the
// existing branch is checked out.
func (r *Repository) WorktreeAdd(ctx context.Context, path, branch string, createBranch bool) error {
	args := []string{"worktree", "add"}
	if createBranch {
		args = append(args, "-b", branch, path)
	} else {
		args = append(args, path, branch)
	}
	_, err := r.Run(ctx, args...)
	return err
}

// WorktreeRemove removes a worktree. With force, uncommitted changes
// in the worktree are discarded.
func (r *Repository) WorktreeRemove(ctx context.Context, path string, force bool) error {
	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, path)
	_, err := r.Run(ctx, args...)
	return err
}

// WorktreePrune removes stale administrative worktree entries whose
// directories no longer exist.
func (r *Repository) WorktreePrune(ctx context.Context) error {
	_, err := r.Run(ctx, "worktree", "prune")
	return err
}
