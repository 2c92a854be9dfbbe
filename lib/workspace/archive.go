// Copyright 2026 The Canopy Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/canopy-scm/canopy/lib/clock"
)

// archiveWorktree snapshots a worktree into a tar.gz under archivesDir
// and returns the archive path. Git metadata is skipped; the archive
// exists to recover uncommitted work, not repository state.
func archiveWorktree(worktreeDir, archivesDir, branchName string, clk clock.Clock) (string, error) {
	if err := os.MkdirAll(archivesDir, 0755); err != nil {
		return "", fmt.Errorf("creating archives directory: %w", err)
	}

	name := fmt.Sprintf("%s-%s.tar.gz",
		strings.ReplaceAll(branchName, "/", "-"),
		clk.Now().UTC().Format("20060102-150405"))
	archivePath := filepath.Join(archivesDir, name)

	file, err := os.Create(archivePath)
	if err != nil {
		return "", fmt.Errorf("creating archive: %w", err)
	}
	defer file.Close()

	gzipWriter := gzip.NewWriter(file)
	tarWriter := tar.NewWriter(gzipWriter)

	walkErr := filepath.WalkDir(worktreeDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		relPath, err := filepath.Rel(worktreeDir, path)
		if err != nil {
			return err
		}
		if relPath == "." {
			return nil
		}
		if entry.Name() == ".git" {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			// Worktree and submodule .git entries are gitfile pointers.
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			return err
		}
		var linkTarget string
		if info.Mode()&fs.ModeSymlink != 0 {
			if linkTarget, err = os.Readlink(path); err != nil {
				return err
			}
		}
		header, err := tar.FileInfoHeader(info, linkTarget)
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(relPath)
		if entry.IsDir() {
			header.Name += "/"
		}
		if err := tarWriter.WriteHeader(header); err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		source, err := os.Open(path)
		if err != nil {
			return err
		}
		defer source.Close()
		_, err = io.Copy(tarWriter, source)
		return err
	})
	if walkErr != nil {
		tarWriter.Close()
		gzipWriter.Close()
		os.Remove(archivePath)
		return "", fmt.Errorf("archiving %s: %w", worktreeDir, walkErr)
	}

	if err := tarWriter.Close(); err != nil {
		return "", err
	}
	if err := gzipWriter.Close(); err != nil {
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("finishing archive: %w", err)
	}
	return archivePath, nil
}
