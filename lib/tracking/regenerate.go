// Copyright 2026 The Canopy Authors
// SPDX-License-Identifier: Apache-2.0

package tracking

import (
	"context"
	"fmt"
	"time"

	"github.com/canopy-scm/canopy/lib/git"
)

// Regenerate rebuilds the tracking document from observable git state
// and persists it, recovering from a corrupt or deleted store file.
//
// CLI mode derives entries from git worktree list; Web mode from local
// branches of the single checkout. This is best-effort reconstruction:
// PR references and original timestamps are not derivable from git and
// are lost — the caller is expected to warn the operator.
func (s *Store) Regenerate(ctx context.Context, parent *git.Repository) (Document, error) {
	doc := Document{}
	now := s.clock.Now().UTC().Format(time.RFC3339)

	switch s.mode {
	case CLI:
		worktrees, err := parent.Worktrees(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing worktrees: %w", err)
		}
		for _, worktree := range worktrees {
			if !ValidBranchName(worktree.Branch) {
				continue
			}
			refs, err := submoduleRefs(ctx, git.NewRepository(worktree.Path), worktree.Branch)
			if err != nil {
				return nil, err
			}
			doc[worktree.Branch] = &Workspace{
				BranchName:        worktree.Branch,
				Mode:              CLI,
				RootPath:          worktree.Path,
				Status:            StatusActive,
				CreatedAt:         now,
				UpdatedAt:         now,
				SubmoduleBranches: refs,
			}
		}

	case Web:
		branches, err := parent.LocalBranches(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing branches: %w", err)
		}
		refs, err := submoduleRefs(ctx, parent, "")
		if err != nil {
			return nil, err
		}
		for _, branch := range branches {
			if !ValidBranchName(branch) {
				continue
			}
			entryRefs := make(map[string]SubmoduleBranchRef, len(refs))
			for id, ref := range refs {
				ref.BranchName = branch
				entryRefs[id] = ref
			}
			doc[branch] = &Workspace{
				BranchName:        branch,
				Mode:              Web,
				Status:            StatusActive,
				CreatedAt:         now,
				UpdatedAt:         now,
				SubmoduleBranches: entryRefs,
			}
		}

	default:
		return nil, fmt.Errorf("unknown store mode %q", s.mode)
	}

	s.logger.Warn("tracking store regenerated from git state; PR references and original timestamps were lost",
		"path", s.path, "entries", len(doc))

	if err := s.Replace(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// submoduleRefs builds SubmoduleBranchRef entries for every submodule
// of the repository, pinned to branchName (or to the submodule's own
// branch naming when branchName is empty, for Web fan-out).
func submoduleRefs(ctx context.Context, repo *git.Repository, branchName string) (map[string]SubmoduleBranchRef, error) {
	submodules, err := repo.Submodules(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing submodules in %s: %w", repo.Dir(), err)
	}
	refs := make(map[string]SubmoduleBranchRef, len(submodules))
	for _, sub := range submodules {
		refs[sub.Path] = SubmoduleBranchRef{
			BranchName:       branchName,
			LastSyncedCommit: sub.Head,
		}
	}
	return refs, nil
}
