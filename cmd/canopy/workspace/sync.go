// Copyright 2026 The Canopy Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/canopy-scm/canopy/cmd/canopy/cli"
)

type syncParams struct {
	modeParams
}

func syncCommand() *cli.Command {
	var params syncParams

	return &cli.Command{
		Name:    "sync",
		Summary: "Re-align submodule branches with the workspace branch",
		Description: `Re-run the submodule branch synchronizer for an existing workspace:
every initialized submodule ends up with the workspace branch checked
out, and the tracking entry's lastSyncedCommit pins are refreshed.

Sync never force-moves an existing submodule branch; a branch that
already exists is checked out where it stands. Useful after adding a
submodule or after hand-editing submodule checkouts.`,
		Usage: "canopy sync <branch-name> [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("sync", &params)
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("branch name is required\n\nUsage: canopy sync <branch-name>")
			}
			ctx := context.Background()
			session, err := newSession(ctx, params.modeParams, "sync")
			if err != nil {
				return err
			}
			return session.run(ctx, func() error {
				ws, err := session.strategy.Sync(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Printf("workspace %s synchronized (%d submodules)\n", args[0], len(ws.SubmoduleBranches))
				return nil
			})
		},
	}
}
