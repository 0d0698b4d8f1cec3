// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Publication is one declarative publication registration from a
// manifest file.
type Publication struct {
	// Field is the property key to publish.
	Field string `json:"field"`
	// Stream is the 1-based output stream index.
	Stream int `json:"stream"`
	// Strategy is one of "on_update", "periodic", "rate_limited",
	// "scheduled".
	Strategy string `json:"strategy"`
	// IntervalNs parameterizes "periodic" (the period) and
	// "rate_limited" (the minimum spacing).
	IntervalNs int64 `json:"interval_ns,omitempty"`
	// AtNs parameterizes "scheduled".
	AtNs int64 `json:"at_ns,omitempty"`
}

// Manifest is the publication manifest file content.
type Manifest struct {
	Publications []Publication `json:"publications"`
}

// LoadManifest reads a JSONC manifest file. Comments and trailing
// commas are permitted, so manifests can document themselves.
func LoadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading manifest: %w", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(jsonc.ToJSON(raw), &manifest); err != nil {
		return nil, fmt.Errorf("config: parsing manifest %s: %w", path, err)
	}
	for i, p := range manifest.Publications {
		if p.Field == "" {
			return nil, fmt.Errorf("config: manifest entry %d has no field", i)
		}
		if p.Stream < 1 {
			return nil, fmt.Errorf("config: manifest entry %q: stream index %d (indexes are 1-based)", p.Field, p.Stream)
		}
		switch p.Strategy {
		case "on_update", "scheduled":
		case "periodic", "rate_limited":
			if p.IntervalNs <= 0 {
				return nil, fmt.Errorf("config: manifest entry %q: %s strategy needs a positive interval_ns", p.Field, p.Strategy)
			}
		default:
			return nil, fmt.Errorf("config: manifest entry %q: unknown strategy %q", p.Field, p.Strategy)
		}
	}
	return &manifest, nil
}

// LoadDefaults reads a YAML file of initial property values keyed by
// property name. Supported value types are integers, floats,
// booleans, and strings; anything else is rejected.
func LoadDefaults(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading defaults: %w", err)
	}
	var defaults map[string]any
	if err := yaml.Unmarshal(raw, &defaults); err != nil {
		return nil, fmt.Errorf("config: parsing defaults %s: %w", path, err)
	}
	for name, value := range defaults {
		switch value.(type) {
		case int, int64, uint64, float64, bool, string:
		default:
			return nil, fmt.Errorf("config: default for %q has unsupported type %T", name, value)
		}
	}
	return defaults, nil
}
