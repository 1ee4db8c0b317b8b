// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package detect

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/hierarchy"
)

// ErrUnknownDetector indicates a requested rule ID has no registered
// implementation.
var ErrUnknownDetector = errors.New("unknown detector")

// Factory builds one detector bound to its collaborators.
type Factory func(resolver *hierarchy.Resolver, reporter Reporter, logger *slog.Logger) Detector

var factories = map[string]Factory{
	HidingSubclassID: func(resolver *hierarchy.Resolver, reporter Reporter, logger *slog.Logger) Detector {
		return NewHidingSubclass(resolver, reporter, WithLogger(logger))
	},
}

// IDs returns every registered rule ID, sorted.
func IDs() []string {
	out := make([]string, 0, len(factories))
	for id := range factories {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// New constructs the detector registered under id.
func New(id string, resolver *hierarchy.Resolver, reporter Reporter, logger *slog.Logger) (Detector, error) {
	factory, ok := factories[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDetector, id)
	}
	return factory(resolver, reporter, logger), nil
}

// NewSet constructs the detectors for the given rule IDs. An empty ids
// slice selects every registered detector.
func NewSet(ids []string, resolver *hierarchy.Resolver, reporter Reporter, logger *slog.Logger) ([]Detector, error) {
	if len(ids) == 0 {
		ids = IDs()
	}
	out := make([]Detector, 0, len(ids))
	for _, id := range ids {
		d, err := New(id, resolver, reporter, logger)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
