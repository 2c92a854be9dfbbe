// Copyright 2026 The Canopy Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/canopy-scm/canopy/cmd/canopy/workspace"
)

func main() {
	if err := run(); err != nil {
		// Errors carrying an exit code already printed their own
		// output; don't add a redundant "error:" line for those.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return workspace.Root().Execute(os.Args[1:])
}
