// Copyright 2026 The Canopy Authors
// SPDX-License-Identifier: Apache-2.0

package tracking

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/tidwall/jsonc"

	"github.com/canopy-scm/canopy/lib/clock"
)

// CorruptionError reports a tracking document that could not be parsed
// or failed schema validation on read. Callers recover via Regenerate;
// no operation proceeds on a store it cannot trust.
type CorruptionError struct {
	Path string
	Err  error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("tracking store %s is corrupt: %v", e.Path, e.Err)
}

func (e *CorruptionError) Unwrap() error {
	return e.Err
}

// IsCorruption reports whether err is a tracking store corruption.
func IsCorruption(err error) bool {
	var corruption *CorruptionError
	return errors.As(err, &corruption)
}

// Store reads and writes one mode's tracking document. All mutation
// goes through Upsert and Remove; both rewrite the file atomically
// (temp file + rename) only after the mutated document validates.
type Store struct {
	path   string
	mode   Mode
	clock  clock.Clock
	logger *slog.Logger
}

// NewStore returns a store for the document at path, holding entries
// of the given mode.
func NewStore(path string, mode Mode, clk clock.Clock, logger *slog.Logger) *Store {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, mode: mode, clock: clk, logger: logger}
}

// Path returns the document's file path.
func (s *Store) Path() string {
	return s.path
}

// Mode returns the mode this store holds entries for.
func (s *Store) Mode() Mode {
	return s.mode
}

// Read loads and validates the document. A missing file is an empty
// document, not an error. Reads are lenient about JSON trivia
// (comments, trailing commas) so a hand-edited file still parses, but
// the result must pass schema validation; anything else is a
// *CorruptionError.
func (s *Store) Read() (Document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading tracking store %s: %w", s.path, err)
	}

	doc := Document{}
	if err := json.Unmarshal(jsonc.ToJSON(data), &doc); err != nil {
		return nil, &CorruptionError{Path: s.path, Err: err}
	}
	for key, workspace := range doc {
		if workspace != nil {
			workspace.BranchName = key
		}
	}
	if err := doc.Validate(s.mode); err != nil {
		return nil, &CorruptionError{Path: s.path, Err: err}
	}
	return doc, nil
}

// Get returns the workspace for a branch, with ok=false when absent.
func (s *Store) Get(branchName string) (*Workspace, bool, error) {
	doc, err := s.Read()
	if err != nil {
		return nil, false, err
	}
	workspace, ok := doc[branchName]
	return workspace, ok, nil
}

// List returns all workspaces sorted by branch name.
func (s *Store) List() ([]*Workspace, error) {
	doc, err := s.Read()
	if err != nil {
		return nil, err
	}
	workspaces := make([]*Workspace, 0, len(doc))
	for _, workspace := range doc {
		workspaces = append(workspaces, workspace)
	}
	sort.Slice(workspaces, func(i, j int) bool {
		return workspaces[i].BranchName < workspaces[j].BranchName
	})
	return workspaces, nil
}

// Upsert is the sole mutation path for workspace entries. It loads the
// current document (initializing an empty one when the file is absent
// or corrupt), creates the entry if needed, applies mutate to a copy,
// stamps updatedAt, validates the whole document, and only then
// rewrites the file. On validation failure nothing is written.
func (s *Store) Upsert(branchName string, mutate func(*Workspace) error) (*Workspace, error) {
	doc, err := s.Read()
	if err != nil {
		if !IsCorruption(err) {
			return nil, err
		}
		// A corrupt document must not block the only mutation path;
		// start fresh and let the operator recover lost entries via
		// regenerate.
		s.logger.Warn("tracking store unreadable, starting a fresh document",
			"path", s.path, "error", err)
		doc = Document{}
	}

	now := s.clock.Now().UTC().Format(time.RFC3339)

	entry, ok := doc[branchName]
	if !ok {
		entry = &Workspace{
			BranchName:        branchName,
			Mode:              s.mode,
			Status:            StatusInitializing,
			CreatedAt:         now,
			SubmoduleBranches: map[string]SubmoduleBranchRef{},
		}
	}

	mutated := entry.Clone()
	if err := mutate(mutated); err != nil {
		return nil, err
	}
	mutated.BranchName = branchName
	mutated.UpdatedAt = now

	next := Document{}
	for key, workspace := range doc {
		next[key] = workspace
	}
	next[branchName] = mutated

	if err := next.Validate(s.mode); err != nil {
		return nil, fmt.Errorf("refusing to persist invalid tracking state: %w", err)
	}
	if err := s.write(next); err != nil {
		return nil, err
	}
	return mutated, nil
}

// Remove deletes a workspace entry. Removing an absent entry is a
// no-op, which keeps cleanup idempotent.
func (s *Store) Remove(branchName string) error {
	doc, err := s.Read()
	if err != nil {
		return err
	}
	if _, ok := doc[branchName]; !ok {
		return nil
	}
	delete(doc, branchName)
	return s.write(doc)
}

// Replace swaps in a whole new document after validation. Used by
// regeneration; everything else goes through Upsert/Remove.
func (s *Store) Replace(doc Document) error {
	if err := doc.Validate(s.mode); err != nil {
		return fmt.Errorf("refusing to persist invalid tracking state: %w", err)
	}
	return s.write(doc)
}

// write marshals the document and atomically replaces the file.
func (s *Store) write(doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding tracking store: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".canopy-tracking-*")
	if err != nil {
		return fmt.Errorf("creating temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replacing %s: %w", s.path, err)
	}
	return nil
}
