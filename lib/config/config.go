// Copyright 2026 The Canopy Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for Canopy.
//
// Configuration is loaded from a single YAML file specified by:
//   - CANOPY_CONFIG environment variable, or
//   - --config flag passed to the command
//
// When neither is set, built-in defaults apply. There is no automatic
// discovery beyond that — this keeps configuration deterministic and
// auditable. The only expansion performed is ${VAR} and ${VAR:-default}
// in path values, for portability across home directories.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Config is the master configuration for Canopy.
type Config struct {
	// ProtectedBranch is the branch to which direct commits are
	// rejected by the protection guards. Default: main.
	ProtectedBranch string `yaml:"protected_branch"`

	// Remote is the git remote name used for pushes and for deriving
	// the GitHub repository slug. Default: origin.
	Remote string `yaml:"remote"`

	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Tracking configures the tracking store file names. Both files
	// live at the parent repository root and are committed to git.
	Tracking TrackingConfig `yaml:"tracking"`

	// GitHub configures the remote host API.
	GitHub GitHubConfig `yaml:"github"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Worktrees is where CLI-mode workspace worktrees are created.
	Worktrees string `yaml:"worktrees"`

	// Archives is where cleanup --archive stores worktree snapshots.
	Archives string `yaml:"archives"`
}

// TrackingConfig configures the tracking store file names.
type TrackingConfig struct {
	// CLIFile is the CLI-mode tracking document, relative to the
	// parent repository root.
	CLIFile string `yaml:"cli_file"`

	// WebFile is the Web-mode tracking document, relative to the
	// parent repository root.
	WebFile string `yaml:"web_file"`
}

// GitHubConfig configures the remote host API.
type GitHubConfig struct {
	// BaseURL is the API root. Default: https://api.github.com.
	// Override for GitHub Enterprise.
	BaseURL string `yaml:"base_url"`
}

// Default returns the default configuration. The defaults are complete:
// Canopy runs without a config file.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "canopy")

	return &Config{
		ProtectedBranch: "main",
		Remote:          "origin",
		Paths: PathsConfig{
			Worktrees: filepath.Join(defaultRoot, "worktrees"),
			Archives:  filepath.Join(defaultRoot, "archives"),
		},
		Tracking: TrackingConfig{
			CLIFile: "cli-workspace-tracking.json",
			WebFile: "web-session-tracking.json",
		},
		GitHub: GitHubConfig{
			BaseURL: "https://api.github.com",
		},
	}
}

// Load loads configuration from the CANOPY_CONFIG environment variable,
// or returns the defaults when it is not set.
func Load() (*Config, error) {
	configPath := os.Getenv("CANOPY_CONFIG")
	if configPath == "" {
		cfg := Default()
		cfg.expandVariables()
		return cfg, nil
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, merging over
// the defaults. Environment variables do not override config values;
// the file is the single source of truth.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.expandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Paths.Worktrees = expandVars(c.Paths.Worktrees, vars)
	c.Paths.Archives = expandVars(c.Paths.Archives, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.ProtectedBranch == "" {
		errs = append(errs, fmt.Errorf("protected_branch is required"))
	}
	if c.Remote == "" {
		errs = append(errs, fmt.Errorf("remote is required"))
	}
	if c.Tracking.CLIFile == "" {
		errs = append(errs, fmt.Errorf("tracking.cli_file is required"))
	}
	if c.Tracking.WebFile == "" {
		errs = append(errs, fmt.Errorf("tracking.web_file is required"))
	}
	if c.Tracking.CLIFile == c.Tracking.WebFile {
		errs = append(errs, fmt.Errorf("tracking.cli_file and tracking.web_file must differ"))
	}
	if c.GitHub.BaseURL == "" {
		errs = append(errs, fmt.Errorf("github.base_url is required"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates the configured directories if they don't exist.
func (c *Config) EnsurePaths() error {
	for _, path := range []string{c.Paths.Worktrees, c.Paths.Archives} {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}
