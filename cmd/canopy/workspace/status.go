// Copyright 2026 The Canopy Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/canopy-scm/canopy/cmd/canopy/cli"
	"github.com/canopy-scm/canopy/lib/tracking"
	"github.com/canopy-scm/canopy/lib/workspace"
)

type statusParams struct {
	modeParams
	cli.JSONOutput
}

// statusRow is the per-workspace record emitted by status, for both
// the table and --json output.
type statusRow struct {
	Branch          string                             `json:"branch"`
	Mode            tracking.Mode                      `json:"mode"`
	Status          tracking.Status                    `json:"status"`
	HasLocalChanges bool                               `json:"hasLocalChanges"`
	RootPath        string                             `json:"rootPath,omitempty"`
	UpdatedAt       string                             `json:"updatedAt"`
	PullRequests    map[string]tracking.PullRequestRef `json:"pullRequests,omitempty"`
}

func statusCommand() *cli.Command {
	var params statusParams

	return &cli.Command{
		Name:    "status",
		Summary: "List workspaces and their state",
		Description: `List every tracked workspace with its lifecycle status, pull
requests, and whether its working tree has uncommitted changes (probed
live, never cached).`,
		Usage: "canopy status [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("status", &params)
		},
		Run: func(args []string) error {
			ctx := context.Background()
			session, err := newSession(ctx, params.modeParams, "status")
			if err != nil {
				return err
			}
			return session.run(ctx, func() error {
				entries, err := session.strategy.Status(ctx)
				if err != nil {
					return err
				}
				rows := statusRows(entries)

				if done, err := params.EmitJSON(rows); done {
					return err
				}

				if len(rows) == 0 {
					fmt.Println("no workspaces")
					return nil
				}
				tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
				fmt.Fprintln(tw, "BRANCH\tSTATUS\tCHANGES\tPRS\tPATH")
				for _, row := range rows {
					changes := "clean"
					if row.HasLocalChanges {
						changes = "dirty"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
						row.Branch, row.Status, changes, len(row.PullRequests), row.RootPath)
				}
				return tw.Flush()
			})
		},
	}
}

func statusRows(entries []workspace.StatusEntry) []statusRow {
	rows := make([]statusRow, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, statusRow{
			Branch:          entry.Workspace.BranchName,
			Mode:            entry.Workspace.Mode,
			Status:          entry.Workspace.Status,
			HasLocalChanges: entry.HasLocalChanges,
			RootPath:        entry.Workspace.RootPath,
			UpdatedAt:       entry.Workspace.UpdatedAt,
			PullRequests:    entry.Workspace.PRReferences,
		})
	}
	return rows
}
