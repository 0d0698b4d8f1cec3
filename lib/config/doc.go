// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads agent configuration from the environment.
//
// An agent process is configured entirely by environment variables,
// read once at startup into a validated Config. There are no fallback
// files or automatic discovery; what the environment says is what the
// agent does. Two optional files supplement the environment:
//
//   - CADENCE_DEFAULTS names a YAML file of initial property values.
//   - CADENCE_MANIFEST names a JSONC file of publication
//     registrations (field, stream, strategy).
//
// Validation accumulates every problem before failing, so a
// misconfigured deployment reports all missing variables at once.
package config
