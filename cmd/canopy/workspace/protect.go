// Copyright 2026 The Canopy Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/canopy-scm/canopy/cmd/canopy/cli"
	"github.com/canopy-scm/canopy/lib/protect"
)

func protectCommand() *cli.Command {
	return &cli.Command{
		Name:    "protect",
		Summary: "Manage branch protection guards",
		Subcommands: []*cli.Command{
			protectInstallCommand(),
			protectCheckCommand(),
		},
	}
}

type protectInstallParams struct {
	modeParams
}

func protectInstallCommand() *cli.Command {
	var params protectInstallParams

	return &cli.Command{
		Name:    "install",
		Summary: "Install pre-commit guards in the parent and every submodule",
		Description: `Install (or repair) the pre-commit hooks that reject direct commits
on the protected branch, in the parent repository and in every
initialized submodule. Installation is idempotent, and a pre-existing
foreign pre-commit hook is preserved by chaining.

Guards are re-installed automatically at the start of every session;
this command exists for repairing a checkout by hand.`,
		Usage: "canopy protect install [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("protect install", &params)
		},
		Run: func(args []string) error {
			ctx := context.Background()
			session, err := newSession(ctx, params.modeParams, "protect/install")
			if err != nil {
				return err
			}
			return session.run(ctx, func() error {
				if err := protect.InstallAll(ctx, session.parent, session.cfg.ProtectedBranch); err != nil {
					return err
				}
				fmt.Printf("guards installed (protected branch: %s)\n", session.cfg.ProtectedBranch)
				return nil
			})
		},
	}
}

type protectCheckParams struct {
	modeParams
}

func protectCheckCommand() *cli.Command {
	var params protectCheckParams

	return &cli.Command{
		Name:    "check",
		Summary: "Verify guards are installed in the parent and every submodule",
		Description: `Report which repositories are missing the pre-commit guard. Exits 0
when every repository is guarded, 1 when any guard is missing, so the
check can gate scripts and CI steps.`,
		Usage: "canopy protect check [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("protect check", &params)
		},
		Run: func(args []string) error {
			ctx := context.Background()
			session, err := newSession(ctx, params.modeParams, "protect/check")
			if err != nil {
				return err
			}
			missing, err := protect.Missing(ctx, session.parent)
			if err != nil {
				return err
			}
			if len(missing) == 0 {
				fmt.Println("all repositories guarded")
				return nil
			}
			for _, repo := range missing {
				fmt.Printf("missing guard: %s\n", repo)
			}
			fmt.Println("run: canopy protect install")
			return &cli.ExitError{Code: 1}
		},
	}
}
