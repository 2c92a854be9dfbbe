// Copyright 2026 The Canopy Authors
// SPDX-License-Identifier: Apache-2.0

// Package tracking implements the durable, git-committed record of
// workspace state: one JSON document per execution mode, keyed by
// branch name, living at the parent repository root.
//
// The store is the only durable record of Web-mode workspace existence
// between invocations, so every mutation goes through a single
// validate-before-persist path: a document that fails schema
// validation is never written, and the prior file is left untouched.
package tracking

import (
	"fmt"
	"regexp"
	"time"
)

// Mode is the execution environment a workspace belongs to.
type Mode string

const (
	// CLI is the persistent-filesystem mode with isolated worktrees.
	CLI Mode = "CLI"
	// Web is the ephemeral single-checkout mode.
	Web Mode = "WEB"
)

// Status is the workspace lifecycle state.
type Status string

const (
	StatusInitializing Status = "INITIALIZING"
	StatusActive       Status = "ACTIVE"
	StatusPROpen       Status = "PR_OPEN"
	StatusCleaning     Status = "CLEANING"
	StatusRemoved      Status = "REMOVED"
)

// PRState is the remote host's view of a pull request.
type PRState string

const (
	PROpen   PRState = "OPEN"
	PRMerged PRState = "MERGED"
	PRClosed PRState = "CLOSED"
)

// Workspace is one tracked feature branch: its mode, lifecycle status,
// per-submodule branch pins, and any pull requests opened from it.
// The branch name is the document key; BranchName mirrors it for
// callers and is checked against the key during validation.
type Workspace struct {
	BranchName        string                        `json:"-"`
	Mode              Mode                          `json:"mode"`
	RootPath          string                        `json:"rootPath,omitempty"`
	Status            Status                        `json:"status"`
	CreatedAt         string                        `json:"createdAt"`
	UpdatedAt         string                        `json:"updatedAt"`
	SubmoduleBranches map[string]SubmoduleBranchRef `json:"submoduleBranches"`
	PRReferences      map[string]PullRequestRef     `json:"prReferences,omitempty"`
}

// SubmoduleBranchRef is the state of one submodule within a workspace.
// BranchName is always identical to the owning workspace's branch;
// submodule branch names are derived, never independently chosen.
type SubmoduleBranchRef struct {
	BranchName       string `json:"branchName"`
	LastSyncedCommit string `json:"lastSyncedCommit"`
}

// PullRequestRef records a pull request opened for one repository.
type PullRequestRef struct {
	URL    string  `json:"url"`
	Number int     `json:"number"`
	State  PRState `json:"state"`
}

// Document is the full tracking store content: branch name → workspace.
type Document map[string]*Workspace

// branchNamePattern is the required shape of workspace branch names.
var branchNamePattern = regexp.MustCompile(`^feature/[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidBranchName reports whether name matches feature/<slug>.
func ValidBranchName(name string) bool {
	return branchNamePattern.MatchString(name)
}

// validStatus is the set of known lifecycle states.
func validStatus(status Status) bool {
	switch status {
	case StatusInitializing, StatusActive, StatusPROpen, StatusCleaning, StatusRemoved:
		return true
	}
	return false
}

// validPRState is the set of known pull request states.
func validPRState(state PRState) bool {
	switch state {
	case PROpen, PRMerged, PRClosed:
		return true
	}
	return false
}

// Validate checks a document against the schema and the store's mode.
// This runs before every persist; a validation error means the write
// is aborted and the prior file survives.
func (doc Document) Validate(mode Mode) error {
	for key, workspace := range doc {
		if workspace == nil {
			return fmt.Errorf("entry %q: nil workspace", key)
		}
		if !ValidBranchName(key) {
			return fmt.Errorf("entry %q: branch name must match feature/<slug>", key)
		}
		if workspace.BranchName != "" && workspace.BranchName != key {
			return fmt.Errorf("entry %q: branchName %q disagrees with key", key, workspace.BranchName)
		}
		if workspace.Mode != mode {
			return fmt.Errorf("entry %q: mode %q does not belong in a %s store", key, workspace.Mode, mode)
		}
		if !validStatus(workspace.Status) {
			return fmt.Errorf("entry %q: unknown status %q", key, workspace.Status)
		}
		if mode == CLI && workspace.RootPath == "" {
			return fmt.Errorf("entry %q: CLI workspace requires rootPath", key)
		}
		if mode == Web && workspace.RootPath != "" {
			return fmt.Errorf("entry %q: Web workspace must not have rootPath", key)
		}
		for _, field := range []struct{ name, value string }{
			{"createdAt", workspace.CreatedAt},
			{"updatedAt", workspace.UpdatedAt},
		} {
			if _, err := time.Parse(time.RFC3339, field.value); err != nil {
				return fmt.Errorf("entry %q: %s %q is not RFC 3339: %w", key, field.name, field.value, err)
			}
		}
		// The map must be present even when empty; mutation paths write
		// into it, and a nil map read from a hand-edited file would
		// otherwise surface as a panic instead of a corruption error.
		if workspace.SubmoduleBranches == nil {
			return fmt.Errorf("entry %q: submoduleBranches is required", key)
		}
		for submoduleID, ref := range workspace.SubmoduleBranches {
			if ref.BranchName != key {
				return fmt.Errorf("entry %q: submodule %s pins branch %q, must equal the workspace branch",
					key, submoduleID, ref.BranchName)
			}
		}
		for repoID, pr := range workspace.PRReferences {
			if !validPRState(pr.State) {
				return fmt.Errorf("entry %q: PR for %s has unknown state %q", key, repoID, pr.State)
			}
		}
	}
	return nil
}

// Clone returns a deep copy of the workspace. Upsert mutates a copy so
// a failed validation never leaves callers holding half-mutated state.
func (w *Workspace) Clone() *Workspace {
	if w == nil {
		return nil
	}
	copied := *w
	if w.SubmoduleBranches != nil {
		copied.SubmoduleBranches = make(map[string]SubmoduleBranchRef, len(w.SubmoduleBranches))
		for id, ref := range w.SubmoduleBranches {
			copied.SubmoduleBranches[id] = ref
		}
	}
	if w.PRReferences != nil {
		copied.PRReferences = make(map[string]PullRequestRef, len(w.PRReferences))
		for id, ref := range w.PRReferences {
			copied.PRReferences[id] = ref
		}
	}
	return &copied
}
