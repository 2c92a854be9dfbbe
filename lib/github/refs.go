// Copyright 2026 The Canopy Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"context"
	"fmt"
)

// DeleteBranch deletes a branch ref in a repository. Deleting a ref
// that does not exist returns a 422 from GitHub, which callers may
// treat as already-deleted via IsValidationFailed.
func (client *Client) DeleteBranch(ctx context.Context, owner, repo, branch string) error {
	path := fmt.Sprintf("/repos/%s/%s/git/refs/heads/%s", owner, repo, branch)
	if err := client.delete(ctx, path); err != nil {
		return fmt.Errorf("deleting branch %s in %s/%s: %w", branch, owner, repo, err)
	}
	return nil
}
