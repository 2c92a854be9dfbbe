// Copyright 2026 The Canopy Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"os"

	"github.com/google/uuid"
)

// webEnabled reports Web mode: the --web flag or CANOPY_WEB=1 in the
// environment. The hosting platform sets the variable; the flag exists
// for local testing of Web behavior.
func webEnabled(flagValue bool) bool {
	return flagValue || os.Getenv("CANOPY_WEB") == "1"
}

// hostToken returns the remote host credential, preferring the
// canopy-specific variable over the generic one. Empty when neither is
// set; commands that need the host fail with a remediation hint, the
// rest run without it.
func hostToken() string {
	if token := os.Getenv("CANOPY_GITHUB_TOKEN"); token != "" {
		return token
	}
	return os.Getenv("GITHUB_TOKEN")
}

// sessionID returns the Web session correlation ID for log scoping:
// the platform-assigned CANOPY_SESSION_ID, or a generated UUID when
// the platform supplies none. Diagnostics only; no behavior depends on
// it.
func sessionID() string {
	if id := os.Getenv("CANOPY_SESSION_ID"); id != "" {
		return id
	}
	return uuid.NewString()
}
