// Copyright 2026 The Canopy Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"errors"
	"fmt"
)

// Code is a stable identifier for a coordinator failure. Codes are part
// of the command output contract: scripts branch on them, humans get
// the message and hint.
type Code string

const (
	// CodeProtectionViolation: an operation would commit directly to
	// the protected branch.
	CodeProtectionViolation Code = "PROTECTION_VIOLATION"

	// CodeWorktreeExists: CLI init found a worktree already occupying
	// the branch or target path.
	CodeWorktreeExists Code = "WORKTREE_EXISTS"

	// CodeSessionExists: Web init found the branch already present in
	// the single checkout without a matching tracking entry.
	CodeSessionExists Code = "SESSION_EXISTS"

	// CodeInvalidBranchRef: the branch name is malformed or names no
	// tracked workspace.
	CodeInvalidBranchRef Code = "INVALID_BRANCH_REF"

	// CodeSubmoduleInitFailure: one or more submodules could not be
	// initialized or synchronized.
	CodeSubmoduleInitFailure Code = "SUBMODULE_INIT_FAILURE"

	// CodeTrackingCorruption: the tracking store failed to parse or
	// validate.
	CodeTrackingCorruption Code = "TRACKING_CORRUPTION"

	// CodeUnmergedPR: cleanup was refused because a recorded pull
	// request is not merged.
	CodeUnmergedPR Code = "UNMERGED_PR"

	// CodeRemoteHostFailure: pushing or talking to the remote host
	// failed.
	CodeRemoteHostFailure Code = "REMOTE_HOST_FAILURE"

	// CodeDetachedState: a repository is in detached HEAD where a
	// branch checkout was expected.
	CodeDetachedState Code = "DETACHED_STATE"
)

// Error is a coordinator failure with a stable code and a remediation
// hint naming the next command to run.
type Error struct {
	Code    Code
	Message string
	Hint    string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HasCode reports whether err carries the given coordinator code.
func HasCode(err error, code Code) bool {
	var coordErr *Error
	return errors.As(err, &coordErr) && coordErr.Code == code
}

// newError builds a coordinator error. The wrapped cause may be nil.
func newError(code Code, hint string, err error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Hint:    hint,
		Err:     err,
	}
}

// corruptionError wraps a tracking store corruption with the recovery
// command.
func corruptionError(err error) *Error {
	return newError(CodeTrackingCorruption,
		"run: canopy regenerate", err, "tracking store unreadable")
}
