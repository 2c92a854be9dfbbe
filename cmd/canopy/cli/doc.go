// Copyright 2026 The Canopy Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli implements the declarative command framework for the
// canopy binary: a Command tree with pflag-based flag binding from
// struct tags, JSON output support for scripting, structured command
// logging, and typo suggestions for unknown commands and flags.
package cli
