// Copyright 2026 The Canopy Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/canopy-scm/canopy/cmd/canopy/cli"
	"github.com/canopy-scm/canopy/lib/config"
	"github.com/canopy-scm/canopy/lib/git"
	"github.com/canopy-scm/canopy/lib/github"
	"github.com/canopy-scm/canopy/lib/tracking"
	"github.com/canopy-scm/canopy/lib/workspace"
)

// modeParams are the flags every command shares: execution mode and
// configuration location.
type modeParams struct {
	Web    bool   `flag:"web" desc:"run in web (single-checkout) mode"`
	Config string `flag:"config" desc:"path to a canopy.yaml config file"`
}

// session is everything a command invocation needs: the resolved
// parent repository, configuration, and the mode strategy.
type session struct {
	cfg      *config.Config
	parent   *git.Repository
	strategy workspace.Strategy
	logger   *slog.Logger
}

// newSession resolves the command environment: configuration, the
// parent repository root (the main checkout, even when invoked from
// inside a worktree), the mode's tracking store, and the host client
// when a credential is present.
func newSession(ctx context.Context, params modeParams, commandName string) (*session, error) {
	logger := cli.NewCommandLogger().With("command", commandName)
	web := webEnabled(params.Web)
	if web {
		logger = logger.With("session", sessionID())
	}

	var cfg *config.Config
	var err error
	if params.Config != "" {
		cfg, err = config.LoadFile(params.Config)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return nil, err
	}

	parent, err := resolveParent(ctx)
	if err != nil {
		return nil, err
	}

	mode, file := tracking.CLI, cfg.Tracking.CLIFile
	if web {
		mode, file = tracking.Web, cfg.Tracking.WebFile
	}
	store := tracking.NewStore(filepath.Join(parent.Dir(), file), mode, nil, logger)

	deps := workspace.Deps{
		Parent: parent,
		Config: cfg,
		Store:  store,
		Logger: logger,
	}
	if token := hostToken(); token != "" {
		host, err := github.NewClient(github.Config{
			BaseURL: cfg.GitHub.BaseURL,
			Token:   token,
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		deps.Host = host
	}

	return &session{
		cfg:      cfg,
		parent:   parent,
		strategy: workspace.ForMode(web, deps),
		logger:   logger,
	}, nil
}

// resolveParent finds the parent repository's main checkout from the
// working directory. Invocations from inside a linked worktree resolve
// through the shared git directory back to the main checkout, so the
// tracking store is always the same file.
func resolveParent(ctx context.Context) (*git.Repository, error) {
	cwd := git.NewRepository(".")
	if !cwd.IsRepository(ctx) {
		return nil, fmt.Errorf("not inside a git repository (canopy operates on the parent repository)")
	}
	commonDir, err := cwd.CommonDir(ctx)
	if err != nil {
		return nil, err
	}
	if filepath.Base(commonDir) == ".git" {
		return git.NewRepository(filepath.Dir(commonDir)), nil
	}
	top, err := cwd.TopLevel(ctx)
	if err != nil {
		return nil, err
	}
	return git.NewRepository(top), nil
}

// run executes fn, bracketed by session resume and persist when the
// strategy carries session state (Web mode). Persist runs even when fn
// fails: partial progress recorded in the store must survive the
// ephemeral environment.
func (s *session) run(ctx context.Context, fn func() error) error {
	if sessioner, ok := s.strategy.(workspace.Sessioner); ok {
		if err := sessioner.Resume(ctx); err != nil {
			return err
		}
	}
	err := fn()
	if sessioner, ok := s.strategy.(workspace.Sessioner); ok {
		if persistErr := sessioner.Persist(ctx); persistErr != nil {
			err = errors.Join(err, persistErr)
		}
	}
	return err
}
