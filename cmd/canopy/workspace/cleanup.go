// Copyright 2026 The Canopy Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/canopy-scm/canopy/cmd/canopy/cli"
	"github.com/canopy-scm/canopy/lib/workspace"
)

type cleanupParams struct {
	modeParams
	Force        bool `flag:"force" desc:"proceed even with unmerged pull requests"`
	DeleteRemote bool `flag:"delete-remote" desc:"also delete the branch on the remote"`
	Archive      bool `flag:"archive" desc:"snapshot the worktree to a tar.gz before deletion"`
}

func cleanupCommand() *cli.Command {
	var params cleanupParams

	return &cli.Command{
		Name:    "cleanup",
		Summary: "Tear a workspace down",
		Description: `Remove a workspace: its worktree (CLI mode), the feature branch in
the parent and every submodule, optionally the remote branches, and
the tracking entry.

Cleanup refuses while any recorded pull request is unmerged; the
states are refreshed from the host first when a credential is
available, so a PR merged since the last command is recognized.
--force overrides the check. Cleaning an already-removed workspace is
a no-op.`,
		Usage: "canopy cleanup <branch-name> [flags]",
		Examples: []cli.Example{
			{Command: "canopy cleanup feature/login --delete-remote"},
			{Description: "Keep a snapshot of uncommitted work", Command: "canopy cleanup feature/login --archive --force"},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("cleanup", &params)
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("branch name is required\n\nUsage: canopy cleanup <branch-name>")
			}
			ctx := context.Background()
			session, err := newSession(ctx, params.modeParams, "cleanup")
			if err != nil {
				return err
			}
			return session.run(ctx, func() error {
				err := session.strategy.Cleanup(ctx, args[0], workspace.CleanupOptions{
					Force:        params.Force,
					DeleteRemote: params.DeleteRemote,
					Archive:      params.Archive,
				})
				if err != nil {
					return err
				}
				fmt.Printf("workspace %s removed\n", args[0])
				return nil
			})
		},
	}
}
