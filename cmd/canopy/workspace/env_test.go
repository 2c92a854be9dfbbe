// Copyright 2026 The Canopy Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import "testing"

func TestWebEnabled(t *testing.T) {
	t.Setenv("CANOPY_WEB", "")
	if webEnabled(false) {
		t.Error("web mode enabled with no flag and no env")
	}
	if !webEnabled(true) {
		t.Error("flag did not enable web mode")
	}

	t.Setenv("CANOPY_WEB", "1")
	if !webEnabled(false) {
		t.Error("CANOPY_WEB=1 did not enable web mode")
	}

	t.Setenv("CANOPY_WEB", "0")
	if webEnabled(false) {
		t.Error("CANOPY_WEB=0 enabled web mode")
	}
}

func TestHostTokenPrecedence(t *testing.T) {
	t.Setenv("CANOPY_GITHUB_TOKEN", "")
	t.Setenv("GITHUB_TOKEN", "")
	if got := hostToken(); got != "" {
		t.Errorf("hostToken() = %q with no env set", got)
	}

	t.Setenv("GITHUB_TOKEN", "generic")
	if got := hostToken(); got != "generic" {
		t.Errorf("hostToken() = %q, want generic", got)
	}

	t.Setenv("CANOPY_GITHUB_TOKEN", "specific")
	if got := hostToken(); got != "specific" {
		t.Errorf("hostToken() = %q, want the canopy-specific token", got)
	}
}

func TestSessionID(t *testing.T) {
	t.Setenv("CANOPY_SESSION_ID", "session-42")
	if got := sessionID(); got != "session-42" {
		t.Errorf("sessionID() = %q, want session-42", got)
	}

	t.Setenv("CANOPY_SESSION_ID", "")
	first := sessionID()
	if first == "" {
		t.Fatal("sessionID() returned empty with no env")
	}
	if second := sessionID(); second == first {
		t.Error("generated session IDs should differ per call")
	}
}
