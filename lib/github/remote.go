// Copyright 2026 The Canopy Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"fmt"
	"strings"
)

// RepoSlug identifies a repository on the remote host.
type RepoSlug struct {
	Owner string
	Name  string
}

// String returns "owner/name".
func (slug RepoSlug) String() string {
	return slug.Owner + "/" + slug.Name
}

// ParseRemoteURL extracts the owner/name slug from a git remote URL.
// Both https and ssh forms are recognized:
//
//	https://github.com/owner/name.git
//	git@github.com:owner/name.git
//	ssh://git@github.com/owner/name
func ParseRemoteURL(remoteURL string) (RepoSlug, error) {
	trimmed := strings.TrimSpace(remoteURL)
	trimmed = strings.TrimSuffix(trimmed, "/")
	trimmed = strings.TrimSuffix(trimmed, ".git")

	var path string
	switch {
	case strings.HasPrefix(trimmed, "https://"), strings.HasPrefix(trimmed, "http://"), strings.HasPrefix(trimmed, "ssh://"):
		// Strip scheme and host: everything after the first "/" past
		// the "://".
		rest := trimmed[strings.Index(trimmed, "://")+3:]
		slash := strings.Index(rest, "/")
		if slash < 0 {
			return RepoSlug{}, fmt.Errorf("remote URL %q has no repository path", remoteURL)
		}
		path = rest[slash+1:]
	case strings.Contains(trimmed, "@") && strings.Contains(trimmed, ":"):
		// scp-like syntax: git@host:owner/name
		path = trimmed[strings.Index(trimmed, ":")+1:]
	case strings.Contains(trimmed, "/"):
		// Plain path remote; the last two segments name the repository.
		path = trimmed
	default:
		return RepoSlug{}, fmt.Errorf("unrecognized remote URL %q", remoteURL)
	}

	parts := strings.Split(path, "/")
	if len(parts) < 2 || parts[len(parts)-2] == "" || parts[len(parts)-1] == "" {
		return RepoSlug{}, fmt.Errorf("remote URL %q does not contain owner/name", remoteURL)
	}
	return RepoSlug{Owner: parts[len(parts)-2], Name: parts[len(parts)-1]}, nil
}
