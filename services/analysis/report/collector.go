// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"sort"
	"sync"
)

// Collector accumulates findings from concurrently running detectors.
//
// Thread Safety: all methods are safe for concurrent use.
type Collector struct {
	mu       sync.Mutex
	findings []Finding
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Report appends one finding. It satisfies the reporting contract detectors
// emit into.
func (c *Collector) Report(f Finding) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.findings = append(c.findings, f)
}

// Len returns the number of findings collected so far.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.findings)
}

// Findings returns a sorted copy of everything collected. Sorting is by
// finding key, then location, so output is deterministic regardless of
// the order detectors ran in.
func (c *Collector) Findings() []Finding {
	c.mu.Lock()
	out := make([]Finding, len(c.findings))
	copy(out, c.findings)
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		ki, kj := out[i].Key(), out[j].Key()
		if ki != kj {
			return ki < kj
		}
		if out[i].Location.File != out[j].Location.File {
			return out[i].Location.File < out[j].Location.File
		}
		return out[i].Location.Line < out[j].Location.Line
	})
	return out
}
