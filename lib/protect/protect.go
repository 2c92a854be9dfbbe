// Copyright 2026 The Canopy Authors
// SPDX-License-Identifier: Apache-2.0

// Package protect installs and maintains the branch protection guards:
// pre-commit hooks that reject commits made directly on the protected
// branch, in the parent repository and in every submodule.
//
// Installation is idempotent. Hooks written by this package carry a
// marker line; re-installation replaces canopy-managed hooks in place
// and never stacks duplicates. A pre-existing foreign pre-commit hook
// is preserved by renaming it and chaining to it after the branch
// check, so protection never silently disables other tooling.
package protect

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/canopy-scm/canopy/lib/git"
)

// Kind selects the guard message: parent repositories and submodules
// share the decision logic but describe the remediation differently.
type Kind int

const (
	// Parent guards the meta repository.
	Parent Kind = iota
	// Submodule guards a child repository.
	Submodule
)

// marker identifies a canopy-managed hook. The installer only ever
// replaces files carrying this line.
const marker = "# canopy-protect-hook"

// chainName is where a pre-existing foreign hook is moved so the
// canopy hook can invoke it after the branch check.
const chainName = "pre-commit.pre-canopy"

// violationCode is the stable token the guard prints on rejection, so
// scripts wrapping git can branch on it without parsing prose.
const violationCode = "PROTECTION_VIOLATION"

// Install writes the pre-commit guard into the repository's hooks
// directory. Safe to call repeatedly; a missing or outdated guard is
// rewritten, a current one is left alone.
func Install(ctx context.Context, repo *git.Repository, protectedBranch string, kind Kind) error {
	hooksDir, err := repo.GitPath(ctx, "hooks")
	if err != nil {
		return fmt.Errorf("resolving hooks directory for %s: %w", repo.Dir(), err)
	}
	if err := os.MkdirAll(hooksDir, 0755); err != nil {
		return fmt.Errorf("creating hooks directory: %w", err)
	}

	hookPath := filepath.Join(hooksDir, "pre-commit")
	content := hookScript(protectedBranch, kind)

	existing, err := os.ReadFile(hookPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// No hook yet.
	case err != nil:
		return fmt.Errorf("reading existing hook: %w", err)
	case strings.Contains(string(existing), marker):
		if string(existing) == content {
			return nil
		}
		// Canopy hook from an older run or with a different protected
		// branch: rewrite below.
	default:
		// Foreign hook: move it aside so the guard can chain to it.
		if err := os.Rename(hookPath, filepath.Join(hooksDir, chainName)); err != nil {
			return fmt.Errorf("preserving existing hook: %w", err)
		}
	}

	if err := os.WriteFile(hookPath, []byte(content), 0755); err != nil {
		return fmt.Errorf("writing hook: %w", err)
	}
	return nil
}

// Installed reports whether the repository currently has a canopy
// guard. Absence is a configuration defect that Install repairs.
func Installed(ctx context.Context, repo *git.Repository) (bool, error) {
	hooksDir, err := repo.GitPath(ctx, "hooks")
	if err != nil {
		return false, err
	}
	content, err := os.ReadFile(filepath.Join(hooksDir, "pre-commit"))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return strings.Contains(string(content), marker), nil
}

// Missing lists the repositories lacking a canopy guard: "parent" for
// the parent repository, submodule paths for children. An empty result
// means the checkout is fully guarded.
func Missing(ctx context.Context, parent *git.Repository) ([]string, error) {
	var missing []string

	installed, err := Installed(ctx, parent)
	if err != nil {
		return nil, err
	}
	if !installed {
		missing = append(missing, "parent")
	}

	submodules, err := parent.Submodules(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing submodules: %w", err)
	}
	for _, sub := range submodules {
		if !sub.Initialized {
			continue
		}
		installed, err := Installed(ctx, parent.Sub(sub.Path))
		if err != nil {
			return nil, fmt.Errorf("submodule %s: %w", sub.Path, err)
		}
		if !installed {
			missing = append(missing, sub.Path)
		}
	}
	return missing, nil
}

// InstallAll installs guards in the parent repository and in every
// initialized submodule. Per-submodule failures are collected rather
// than aborting on the first one.
func InstallAll(ctx context.Context, parent *git.Repository, protectedBranch string) error {
	var errs []error

	if err := Install(ctx, parent, protectedBranch, Parent); err != nil {
		errs = append(errs, err)
	}

	submodules, err := parent.Submodules(ctx)
	if err != nil {
		return errors.Join(append(errs, fmt.Errorf("listing submodules: %w", err))...)
	}
	for _, sub := range submodules {
		if !sub.Initialized {
			continue
		}
		if err := Install(ctx, parent.Sub(sub.Path), protectedBranch, Submodule); err != nil {
			errs = append(errs, fmt.Errorf("submodule %s: %w", sub.Path, err))
		}
	}

	return errors.Join(errs...)
}

// hookScript renders the guard. The script is self-contained POSIX sh
// with no dependency on the canopy binary being on PATH, so the guard
// keeps working in environments that only have git.
func hookScript(protectedBranch string, kind Kind) string {
	message := fmt.Sprintf("canopy: %s: direct commits to %q are not allowed.", violationCode, protectedBranch)
	hint := "Create a workspace first: canopy init feature/<slug>"
	if kind == Submodule {
		message = fmt.Sprintf("canopy: %s: this submodule is managed via feature branches; direct commits to %q are not allowed.", violationCode, protectedBranch)
		hint = "Run canopy init feature/<slug> in the parent repository to branch all submodules."
	}

	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	b.WriteString(marker + "\n")
	b.WriteString("# Rejects commits on the protected branch. Reinstalled by canopy\n")
	b.WriteString("# at every session start; edit canopy config, not this file.\n")
	fmt.Fprintf(&b, "branch=$(git symbolic-ref --short -q HEAD)\n")
	fmt.Fprintf(&b, "if [ \"$branch\" = \"%s\" ]; then\n", protectedBranch)
	fmt.Fprintf(&b, "  echo %q >&2\n", message)
	fmt.Fprintf(&b, "  echo %q >&2\n", hint)
	b.WriteString("  exit 1\n")
	b.WriteString("fi\n")
	fmt.Fprintf(&b, "if [ -x \"$(dirname \"$0\")/%s\" ]; then\n", chainName)
	fmt.Fprintf(&b, "  exec \"$(dirname \"$0\")/%s\" \"$@\"\n", chainName)
	b.WriteString("fi\n")
	b.WriteString("exit 0\n")
	return b.String()
}
