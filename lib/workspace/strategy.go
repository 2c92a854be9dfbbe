// Copyright 2026 The Canopy Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"context"

	"github.com/canopy-scm/canopy/lib/tracking"
)

// Strategy is one execution environment's implementation of the
// workspace lifecycle. Commands never branch on the mode themselves;
// they dispatch once and call the strategy.
type Strategy interface {
	// Mode identifies the execution environment.
	Mode() tracking.Mode

	// Init creates the workspace for branchName, or returns the
	// existing one unchanged when it is intact. A workspace whose
	// worktree or branch vanished out-of-band is reinitialized.
	Init(ctx context.Context, branchName string) (*tracking.Workspace, error)

	// Status lists all tracked workspaces with their live working tree
	// state.
	Status(ctx context.Context) ([]StatusEntry, error)

	// CreatePRs pushes the workspace branch and opens one pull request
	// per repository that has commits the protected branch lacks.
	CreatePRs(ctx context.Context, branchName string, opts PROptions) (*PRResult, error)

	// Cleanup tears the workspace down: worktree, local branches,
	// optionally remote branches, and the tracking entry.
	Cleanup(ctx context.Context, branchName string, opts CleanupOptions) error

	// Sync re-runs the submodule branch synchronizer for an existing
	// workspace.
	Sync(ctx context.Context, branchName string) (*tracking.Workspace, error)
}

// Sessioner is implemented by strategies whose state must be restored
// at command start and persisted at command end. Only the Web strategy
// is one; commands type-assert and bracket every invocation.
type Sessioner interface {
	Resume(ctx context.Context) error
	Persist(ctx context.Context) error
}

// ForMode maps the execution-mode signal to a strategy. Pure dispatch,
// no business logic.
func ForMode(web bool, deps Deps) Strategy {
	if web {
		return NewWebStrategy(deps)
	}
	return NewCLIStrategy(deps)
}
