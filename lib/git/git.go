// Copyright 2026 The Canopy Authors
// SPDX-License-Identifier: Apache-2.0

// Package git provides typed access to the git CLI for repository
// operations. Canopy uses git for workspace coordination: branches,
// worktrees, submodules, and commits of the tracking store. All
// commands target a specific repository directory via the -C flag,
// which is automatically injected by all Repository methods.
package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// Repository represents a git repository at a specific directory. All
// operations target this directory via "git -C <dir>". There is no
// default directory — callers must always specify which repository
// they mean. For a workspace this is the parent checkout or worktree;
// Submodule repositories are derived with Sub.
type Repository struct {
	dir string
}

// NewRepository returns a Repository targeting the given directory.
func NewRepository(dir string) *Repository {
	return &Repository{dir: dir}
}

// Dir returns the repository directory.
func (r *Repository) Dir() string {
	return r.dir
}

// Sub returns a Repository targeting a submodule working directory,
// given its path relative to this repository.
func (r *Repository) Sub(relPath string) *Repository {
	return &Repository{dir: filepath.Join(r.dir, relPath)}
}

// Run executes a git command targeting this repository and returns
// stdout. Stderr is captured separately and included in error messages
// on failure.
func (r *Repository) Run(ctx context.Context, args ...string) (string, error) {
	fullArgs := append([]string{"-C", r.dir}, args...)
	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(ctx, "git", fullArgs...)
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return "", fmt.Errorf("git %s in %s: %w (stderr: %s)",
			strings.Join(args, " "), r.dir, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// Output runs a git command and returns stdout with surrounding
// whitespace trimmed. Most plumbing queries want exactly this.
func (r *Repository) Output(ctx context.Context, args ...string) (string, error) {
	out, err := r.Run(ctx, args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Command returns an *exec.Cmd for a git command without running it.
// The caller gets full control over Stdin, Stdout, and Stderr before
// starting the process. The -C flag targeting this repository is
// automatically prepended.
func (r *Repository) Command(ctx context.Context, args ...string) *exec.Cmd {
	fullArgs := append([]string{"-C", r.dir}, args...)
	return exec.CommandContext(ctx, "git", fullArgs...)
}

// IsRepository reports whether the directory is inside a git work tree.
func (r *Repository) IsRepository(ctx context.Context) bool {
	out, err := r.Output(ctx, "rev-parse", "--is-inside-work-tree")
	return err == nil && out == "true"
}

// TopLevel returns the absolute path of the repository's work tree root.
func (r *Repository) TopLevel(ctx context.Context) (string, error) {
	return r.Output(ctx, "rev-parse", "--show-toplevel")
}

// CommonDir returns the absolute path of the git directory shared by
// all worktrees of this repository. For the main working directory
// this is its .git; for a linked worktree it is the main checkout's
// .git.
func (r *Repository) CommonDir(ctx context.Context) (string, error) {
	out, err := r.Output(ctx, "rev-parse", "--path-format=absolute", "--git-common-dir")
	if err != nil {
		return "", err
	}
	return out, nil
}

// GitPath resolves a path inside the git directory (e.g. "hooks").
// This indirection matters for worktrees and gitfile submodules, where
// .git is a file pointing elsewhere. Relative results are resolved
// against the repository directory.
func (r *Repository) GitPath(ctx context.Context, name string) (string, error) {
	out, err := r.Output(ctx, "rev-parse", "--git-path", name)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(out) {
		out = filepath.Join(r.dir, out)
	}
	return out, nil
}
