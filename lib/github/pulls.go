// Copyright 2026 The Canopy Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"context"
	"fmt"
)

// CreatePullRequestRequest contains the fields for opening a pull
// request.
type CreatePullRequestRequest struct {
	// Title is the PR title. Required.
	Title string `json:"title"`

	// Body is the PR description in Markdown.
	Body string `json:"body,omitempty"`

	// Head is the branch the changes are on.
	Head string `json:"head"`

	// Base is the branch the changes should merge into.
	Base string `json:"base"`

	// Draft opens the PR as a draft.
	Draft bool `json:"draft,omitempty"`
}

// CreatePullRequest opens a pull request in a repository.
func (client *Client) CreatePullRequest(ctx context.Context, owner, repo string, request CreatePullRequestRequest) (*PullRequest, error) {
	var pullRequest PullRequest
	path := fmt.Sprintf("/repos/%s/%s/pulls", owner, repo)
	if err := client.post(ctx, path, request, &pullRequest); err != nil {
		return nil, fmt.Errorf("creating PR in %s/%s: %w", owner, repo, err)
	}
	return &pullRequest, nil
}

// GetPullRequest retrieves a single pull request by number.
func (client *Client) GetPullRequest(ctx context.Context, owner, repo string, number int) (*PullRequest, error) {
	var pullRequest PullRequest
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d", owner, repo, number)
	if err := client.get(ctx, path, &pullRequest); err != nil {
		return nil, fmt.Errorf("getting PR %s/%s#%d: %w", owner, repo, number, err)
	}
	return &pullRequest, nil
}
