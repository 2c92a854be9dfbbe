// Copyright 2026 The Canopy Authors
// SPDX-License-Identifier: Apache-2.0

// Package workspace implements the canopy command surface: init,
// status, create-prs, cleanup, protect, and regenerate. Commands
// resolve the parent repository from the working directory, dispatch
// to the execution-mode strategy, and — in Web mode — bracket every
// invocation with session resume and persist.
package workspace
