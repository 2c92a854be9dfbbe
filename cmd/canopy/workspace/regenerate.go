// Copyright 2026 The Canopy Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/canopy-scm/canopy/cmd/canopy/cli"
	"github.com/canopy-scm/canopy/lib/tracking"
)

type regenerateParams struct {
	modeParams
}

func regenerateCommand() *cli.Command {
	var params regenerateParams

	return &cli.Command{
		Name:    "regenerate",
		Summary: "Rebuild the tracking store from git state",
		Description: `Rebuild the tracking document from observable git state: worktrees
in CLI mode, local feature branches in Web mode. This recovers from a
corrupt or deleted store file.

Reconstruction is best-effort: pull request references and original
timestamps are not derivable from git and are lost.`,
		Usage: "canopy regenerate [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("regenerate", &params)
		},
		Run: func(args []string) error {
			ctx := context.Background()
			session, err := newSession(ctx, params.modeParams, "regenerate")
			if err != nil {
				return err
			}
			mode, file := tracking.CLI, session.cfg.Tracking.CLIFile
			if webEnabled(params.Web) {
				mode, file = tracking.Web, session.cfg.Tracking.WebFile
			}
			store := tracking.NewStore(
				filepath.Join(session.parent.Dir(), file), mode, nil, session.logger)
			doc, err := store.Regenerate(ctx, session.parent)
			if err != nil {
				return err
			}
			fmt.Printf("tracking store rebuilt with %d workspace(s); PR references were lost\n", len(doc))
			return nil
		},
	}
}
