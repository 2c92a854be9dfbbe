// Copyright 2026 The Canopy Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/canopy-scm/canopy/cmd/canopy/cli"
	"github.com/canopy-scm/canopy/lib/tracking"
)

type initParams struct {
	modeParams
}

func initCommand() *cli.Command {
	var params initParams

	return &cli.Command{
		Name:    "init",
		Summary: "Create or resume a feature workspace",
		Description: `Create a workspace for a feature branch: branch the parent
repository, initialize its submodules, create a matching branch in
every submodule, and install the branch protection guards.

Re-running init on an existing workspace is safe: an intact workspace
is returned unchanged, one whose worktree or branch vanished is
rebuilt.`,
		Usage: "canopy init <branch-name> [flags]",
		Examples: []cli.Example{
			{Command: "canopy init feature/login"},
			{Description: "Web mode (single checkout)", Command: "canopy init feature/login --web"},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("init", &params)
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("branch name is required\n\nUsage: canopy init <branch-name>")
			}
			ctx := context.Background()
			session, err := newSession(ctx, params.modeParams, "init")
			if err != nil {
				return err
			}
			return session.run(ctx, func() error {
				workspace, err := session.strategy.Init(ctx, args[0])
				if err != nil {
					return err
				}
				if workspace.Mode == tracking.CLI {
					fmt.Printf("workspace %s ready at %s (%d submodules)\n",
						workspace.BranchName, workspace.RootPath, len(workspace.SubmoduleBranches))
				} else {
					fmt.Printf("session %s ready (%d submodules)\n",
						workspace.BranchName, len(workspace.SubmoduleBranches))
				}
				return nil
			})
		},
	}
}
