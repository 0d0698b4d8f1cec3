// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// System returns the wall clock. time.Now's monotonic reading makes
// successive Nanos calls non-decreasing even across NTP slew.
func System() Clock { return systemClock{} }

type systemClock struct{}

// systemBase anchors Nanos: its wall reading gives the epoch offset,
// its monotonic reading measures the elapsed time.
var systemBase = time.Now()

func (systemClock) Nanos() int64 {
	return systemBase.UnixNano() + int64(time.Since(systemBase))
}

func (systemClock) Time() time.Time { return time.Now() }
