// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import "testing"

// Setenv sets every variable in vars for the duration of the test.
// Values are restored on cleanup by t.Setenv. Config tests use this
// to build a complete agent environment in one call.
func Setenv(t *testing.T, vars map[string]string) {
	t.Helper()
	for name, value := range vars {
		t.Setenv(name, value)
	}
}
