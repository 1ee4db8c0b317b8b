// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package detect holds the analysis rules. Each rule is a Detector that is
// fed loaded classes one at a time and emits findings through a Reporter;
// the rule catalog (rules.yaml) carries the display metadata for everything
// the registry can construct.
//
// Detectors never fail a run over analysis conditions. Anything that merely
// narrows what a rule can see, such as an ancestor class that was not part
// of the scanned input, is surfaced as a diagnostic by the hierarchy
// resolver instead of an error.
package detect

import (
	"context"

	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/classmeta"
	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/report"
)

// Reporter receives findings as detectors produce them. Implementations
// must be safe for concurrent use; detectors may run on several classes in
// parallel.
type Reporter interface {
	Report(report.Finding)
}

// Detector is one analysis rule.
//
// VisitClass is called once per loaded class, in no particular order and
// possibly concurrently for different classes. Findings go through the
// Reporter the detector was constructed with. Finish is called once after
// the last class, for rules that need a whole-program pass to conclude.
type Detector interface {
	// ID returns the rule identifier, stable across releases.
	ID() string

	// VisitClass analyzes one class. Errors abort the run and are
	// reserved for programmer mistakes and cancellation; analysis
	// conditions must degrade to diagnostics or skipped classes.
	VisitClass(ctx context.Context, c *classmeta.Class) error

	// Finish runs after all classes have been visited.
	Finish(ctx context.Context) error
}

// NopFinisher is embedded by single-pass detectors that have no work left
// once every class has been visited.
type NopFinisher struct{}

// Finish implements the Detector finish hook as a no-op.
func (NopFinisher) Finish(context.Context) error { return nil }
