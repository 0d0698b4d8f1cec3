// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for Cadence packages.
package testutil
