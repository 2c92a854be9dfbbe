// Copyright 2026 The Canopy Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"github.com/canopy-scm/canopy/cmd/canopy/cli"
)

// Root returns the canopy command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name:    "canopy",
		Summary: "Coordinate feature-branch workspaces across a parent repository and its submodules",
		Description: `Canopy coordinates feature-branch lifecycles across a parent ("meta")
git repository and its submodules.

Every workspace is a feature branch (feature/<slug>) that exists under
the same name in the parent and in every submodule, so a logical change
spanning repositories stays coherent. Direct commits to the protected
branch are rejected by installed pre-commit guards; work flows through
workspaces and pull requests.

Two execution modes share one command surface. CLI mode (the default)
gives each workspace an isolated git worktree under a configured root,
so multiple features coexist without checkout switching. Web mode
(--web or CANOPY_WEB=1) works in a single ephemeral checkout and keeps
its state in a tracking document committed to git, reconstructed at the
start of every invocation.`,
		Subcommands: []*cli.Command{
			initCommand(),
			statusCommand(),
			createPRsCommand(),
			syncCommand(),
			cleanupCommand(),
			protectCommand(),
			regenerateCommand(),
		},
		Examples: []cli.Example{
			{
				Description: "Start (or resume) a feature workspace",
				Command:     "canopy init feature/login",
			},
			{
				Description: "List workspaces with machine-readable output",
				Command:     "canopy status --json",
			},
			{
				Description: "Open pull requests for every repository the feature changed",
				Command:     "canopy create-prs feature/login --title 'Add login flow'",
			},
			{
				Description: "Tear a workspace down once its pull requests merged",
				Command:     "canopy cleanup feature/login --delete-remote",
			},
		},
	}
}
