// Copyright 2026 The Canopy Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/canopy-scm/canopy/cmd/canopy/cli"
	"github.com/canopy-scm/canopy/lib/git"
	"github.com/canopy-scm/canopy/lib/workspace"
)

type createPRsParams struct {
	modeParams
	Title string `flag:"title" desc:"pull request title (defaults to the branch name)"`
	Body  string `flag:"body" desc:"pull request description"`
	Draft bool   `flag:"draft" desc:"open the pull requests as drafts"`
}

func createPRsCommand() *cli.Command {
	var params createPRsParams

	return &cli.Command{
		Name:    "create-prs",
		Summary: "Open pull requests for every repository the workspace changed",
		Description: `Find every repository (parent and submodules) where the workspace
branch has commits the protected branch lacks, push the branch, and
open one pull request per changed repository. Repositories without
changes are skipped, so no empty pull requests. One repository failing
does not stop the others.

The branch name may be omitted when the current checkout is on the
workspace branch.

Requires a remote host credential in CANOPY_GITHUB_TOKEN or
GITHUB_TOKEN.`,
		Usage: "canopy create-prs [<branch-name>] [flags]",
		Examples: []cli.Example{
			{Command: "canopy create-prs feature/login --title 'Add login flow'"},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("create-prs", &params)
		},
		Run: func(args []string) error {
			if len(args) > 1 {
				return fmt.Errorf("at most one branch name\n\nUsage: canopy create-prs [<branch-name>]")
			}
			ctx := context.Background()
			session, err := newSession(ctx, params.modeParams, "create-prs")
			if err != nil {
				return err
			}
			return session.run(ctx, func() error {
				branchName, err := resolveBranchArg(ctx, args)
				if err != nil {
					return err
				}
				result, err := session.strategy.CreatePRs(ctx, branchName, workspace.PROptions{
					Title: params.Title,
					Body:  params.Body,
					Draft: params.Draft,
				})
				if result != nil {
					for _, pr := range result.Created {
						fmt.Printf("%s: %s\n", pr.RepoID, pr.Ref.URL)
					}
					for _, pr := range result.Existing {
						fmt.Printf("%s: %s (already open)\n", pr.RepoID, pr.Ref.URL)
					}
					for _, repoID := range result.Skipped {
						fmt.Printf("%s: no changes, skipped\n", repoID)
					}
				}
				return err
			})
		},
	}
}

// resolveBranchArg returns the branch named by args, or the branch
// checked out in the working directory when args is empty.
func resolveBranchArg(ctx context.Context, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	branch, err := git.NewRepository(".").CurrentBranch(ctx)
	if errors.Is(err, git.ErrDetachedHead) {
		return "", fmt.Errorf("HEAD is detached; name the workspace branch explicitly")
	}
	if err != nil {
		return "", err
	}
	return branch, nil
}
