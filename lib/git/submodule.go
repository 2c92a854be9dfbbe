// Copyright 2026 The Canopy Authors
// SPDX-License-Identifier: Apache-2.0

package git

import (
	"context"
	"fmt"
	"strings"
)

// Submodule describes one submodule of a repository.
type Submodule struct {
	// Name is the submodule name from .gitmodules (usually the path).
	Name string

	// Path is the submodule working directory, relative to the parent
	// repository root.
	Path string

	// URL is the clone URL recorded in .gitmodules.
	URL string

	// Head is the commit currently checked out in the submodule, or
	// the commit the parent pins when the submodule is uninitialized.
	Head string

	// Initialized reports whether the submodule working directory is
	// populated.
	Initialized bool
}

// Submodules returns the submodules declared in .gitmodules, with
// their current state from git submodule status. Returns an empty
// slice for a repository without submodules.
func (r *Repository) Submodules(ctx context.Context) ([]Submodule, error) {
	declared, err := r.declaredSubmodules(ctx)
	if err != nil {
		return nil, err
	}
	if len(declared) == 0 {
		return nil, nil
	}

	status, err := r.Run(ctx, "submodule", "status")
	if err != nil {
		return nil, err
	}

	// Status lines: "<flag><sha> <path> [(ref)]" where flag is '-'
	// (uninitialized), '+' (checked-out commit differs from the pinned
	// one), 'U' (merge conflicts), or a space.
	byPath := map[string]*Submodule{}
	for i := range declared {
		byPath[declared[i].Path] = &declared[i]
	}
	for _, line := range strings.Split(strings.TrimRight(status, "\n"), "\n") {
		if len(line) < 2 {
			continue
		}
		flag := line[0]
		fields := strings.Fields(line[1:])
		if len(fields) < 2 {
			continue
		}
		sub, ok := byPath[fields[1]]
		if !ok {
			continue
		}
		sub.Head = fields[0]
		sub.Initialized = flag != '-'
	}

	return declared, nil
}

// declaredSubmodules parses .gitmodules into name/path/url triples.
func (r *Repository) declaredSubmodules(ctx context.Context) ([]Submodule, error) {
	out, err := r.Run(ctx, "config", "--file", ".gitmodules", "--get-regexp", `^submodule\..*\.path$`)
	if err != nil {
		// A repository without .gitmodules has no submodules; git
		// exits 1 both for that and for a missing key.
		return nil, nil
	}

	var submodules []Submodule
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		key, path, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(key, "submodule."), ".path")
		sub := Submodule{Name: name, Path: path}
		if url, err := r.Output(ctx, "config", "--file", ".gitmodules", "--get",
			fmt.Sprintf("submodule.%s.url", name)); err == nil {
			sub.URL = url
		}
		submodules = append(submodules, sub)
	}
	return submodules, nil
}

// SubmoduleUpdateInit runs the standard submodule checkout path:
// git submodule update --init --recursive, optionally restricted to
// specific paths.
func (r *Repository) SubmoduleUpdateInit(ctx context.Context, paths ...string) error {
	args := []string{"submodule", "update", "--init", "--recursive"}
	if len(paths) > 0 {
		args = append(args, "--")
		args = append(args, paths...)
	}
	_, err := r.Run(ctx, args...)
	return err
}

// PinnedSubmoduleCommit returns the commit the parent repository pins
// for a submodule path at the given ref (HEAD when empty).
func (r *Repository) PinnedSubmoduleCommit(ctx context.Context, ref, path string) (string, error) {
	if ref == "" {
		ref = "HEAD"
	}
	out, err := r.Output(ctx, "ls-tree", ref, "--", path)
	if err != nil {
		return "", err
	}
	// ls-tree line: "<mode> commit <sha>\t<path>"
	fields := strings.Fields(out)
	if len(fields) < 3 || fields[1] != "commit" {
		return "", fmt.Errorf("%s is not a submodule at %s", path, ref)
	}
	return fields[2], nil
}
