// Copyright 2026 The Canopy Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/canopy-scm/canopy/lib/clock"
	"github.com/canopy-scm/canopy/lib/config"
	"github.com/canopy-scm/canopy/lib/git"
	"github.com/canopy-scm/canopy/lib/github"
	"github.com/canopy-scm/canopy/lib/tracking"
)

// gitEnv returns an environment with committer identity set, so test
// commits work on machines without global git config.
func gitEnv() []string {
	return append(os.Environ(),
		"GIT_AUTHOR_NAME=Test",
		"GIT_AUTHOR_EMAIL=test@test.local",
		"GIT_COMMITTER_NAME=Test",
		"GIT_COMMITTER_EMAIL=test@test.local",
	)
}

// runGit runs a raw git command for test setup, failing the test on error.
func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	command := exec.Command("git", append([]string{"-C", dir}, args...)...)
	command.Env = gitEnv()
	output, err := command.CombinedOutput()
	if err != nil {
		t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, output)
	}
	return strings.TrimSpace(string(output))
}

// fixture is a parent repository with two submodules, each backed by a
// bare "remote" under a path shaped like owner/name.git so slugs parse.
type fixture struct {
	base         string
	parentRemote string
	checkout     string
	parent       *git.Repository
	cfg          *config.Config
	clk          *clock.Fake
	logger       *slog.Logger
}

// newFixture builds the repository topology:
//
//	remotes/acme/parent.git   ← checkout (clone)
//	remotes/acme/lib-a.git    ← submodule libs/a
//	remotes/acme/lib-b.git    ← submodule libs/b
func newFixture(t *testing.T) *fixture {
	t.Helper()

	// Submodule cloning from local paths needs the file protocol, which
	// modern git disables by default.
	t.Setenv("GIT_CONFIG_COUNT", "1")
	t.Setenv("GIT_CONFIG_KEY_0", "protocol.file.allow")
	t.Setenv("GIT_CONFIG_VALUE_0", "always")

	base := t.TempDir()
	remotes := filepath.Join(base, "remotes", "acme")
	if err := os.MkdirAll(remotes, 0755); err != nil {
		t.Fatal(err)
	}

	libARemote := seedRemote(t, base, filepath.Join(remotes, "lib-a.git"))
	libBRemote := seedRemote(t, base, filepath.Join(remotes, "lib-b.git"))

	parentSeed := seedRepo(t, filepath.Join(base, "seed-parent"))
	runGit(t, parentSeed, "submodule", "add", libARemote, "libs/a")
	runGit(t, parentSeed, "submodule", "add", libBRemote, "libs/b")
	runGit(t, parentSeed, "commit", "-m", "add submodules")
	parentRemote := filepath.Join(remotes, "parent.git")
	runGit(t, parentSeed, "init", "--bare", "-b", "main", parentRemote)
	runGit(t, parentSeed, "remote", "add", "origin", parentRemote)
	runGit(t, parentSeed, "push", "origin", "main")

	checkout := filepath.Join(base, "checkout")
	runGit(t, base, "clone", parentRemote, checkout)

	cfg := config.Default()
	cfg.Paths.Worktrees = filepath.Join(base, "worktrees")
	cfg.Paths.Archives = filepath.Join(base, "archives")

	return &fixture{
		base:         base,
		parentRemote: parentRemote,
		checkout:     checkout,
		parent:       git.NewRepository(checkout),
		cfg:          cfg,
		clk:          clock.NewFake(),
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// seedRepo creates a repository with an initial commit on main.
func seedRepo(t *testing.T, dir string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	runGit(t, dir, "init", "-b", "main")
	if err := os.WriteFile(filepath.Join(dir, "README"), []byte("seed\n"), 0644); err != nil {
		t.Fatal(err)
	}
	runGit(t, dir, "add", "README")
	runGit(t, dir, "commit", "-m", "initial")
	return dir
}

// seedRemote creates a bare repository at barePath with one commit on
// main.
func seedRemote(t *testing.T, base, barePath string) string {
	t.Helper()
	seed := seedRepo(t, filepath.Join(base, "seed-"+filepath.Base(barePath)))
	runGit(t, seed, "init", "--bare", "-b", "main", barePath)
	runGit(t, seed, "remote", "add", "origin", barePath)
	runGit(t, seed, "push", "origin", "main")
	return barePath
}

func (f *fixture) deps(t *testing.T, mode tracking.Mode, host HostClient) Deps {
	t.Helper()
	file := f.cfg.Tracking.CLIFile
	if mode == tracking.Web {
		file = f.cfg.Tracking.WebFile
	}
	return Deps{
		Parent: f.parent,
		Config: f.cfg,
		Store:  tracking.NewStore(filepath.Join(f.checkout, file), mode, f.clk, f.logger),
		Host:   host,
		Clock:  f.clk,
		Logger: f.logger,
	}
}

func (f *fixture) cli(t *testing.T, host HostClient) *CLIStrategy {
	return NewCLIStrategy(f.deps(t, tracking.CLI, host))
}

func (f *fixture) web(t *testing.T, host HostClient) *WebStrategy {
	return NewWebStrategy(f.deps(t, tracking.Web, host))
}

// commitFile writes and commits a file in the given repository
// directory.
func commitFile(t *testing.T, dir, name, content, message string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	runGit(t, dir, "add", "--", name)
	runGit(t, dir, "commit", "--no-verify", "-m", message)
}

// fakeHost is an in-memory HostClient.
type fakeHost struct {
	nextNumber int
	prs        map[string]*github.PullRequest // "owner/name#number"
	failCreate map[string]error               // "owner/name"
	failDelete map[string]error               // "owner/name"
	deleted    []string                       // "owner/name@branch"
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		prs:        map[string]*github.PullRequest{},
		failCreate: map[string]error{},
		failDelete: map[string]error{},
	}
}

func prKey(owner, repo string, number int) string {
	return fmt.Sprintf("%s/%s#%d", owner, repo, number)
}

func (f *fakeHost) CreatePullRequest(ctx context.Context, owner, repo string, request github.CreatePullRequestRequest) (*github.PullRequest, error) {
	if err := f.failCreate[owner+"/"+repo]; err != nil {
		return nil, err
	}
	f.nextNumber++
	pullRequest := &github.PullRequest{
		Number:  f.nextNumber,
		Title:   request.Title,
		Body:    request.Body,
		State:   "open",
		HTMLURL: fmt.Sprintf("https://github.test/%s/%s/pull/%d", owner, repo, f.nextNumber),
		Head:    github.Branch{Ref: request.Head},
		Base:    github.Branch{Ref: request.Base},
		Draft:   request.Draft,
	}
	f.prs[prKey(owner, repo, f.nextNumber)] = pullRequest
	return pullRequest, nil
}

func (f *fakeHost) GetPullRequest(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error) {
	pullRequest, ok := f.prs[prKey(owner, repo, number)]
	if !ok {
		return nil, &github.APIError{StatusCode: 404, Message: "Not Found"}
	}
	return pullRequest, nil
}

func (f *fakeHost) DeleteBranch(ctx context.Context, owner, repo, branch string) error {
	if err := f.failDelete[owner+"/"+repo]; err != nil {
		return err
	}
	f.deleted = append(f.deleted, fmt.Sprintf("%s/%s@%s", owner, repo, branch))
	return nil
}

// mergeAll marks every recorded pull request merged.
func (f *fakeHost) mergeAll() {
	for _, pullRequest := range f.prs {
		pullRequest.State = "closed"
		pullRequest.Merged = true
	}
}
