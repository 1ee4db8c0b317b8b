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
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"
)

// Baseline is a persisted set of accepted findings. CI runs diff against it
// so long-standing findings do not fail builds while new ones do.
type Baseline struct {
	SchemaVersion  int       `json:"schema_version"`
	RunID          string    `json:"run_id,omitempty"`
	CreatedAtMilli int64     `json:"created_at_milli"`
	Findings       []Finding `json:"findings"`
}

// NewBaseline captures the report's findings as a baseline.
func NewBaseline(rep *Report) *Baseline {
	findings := make([]Finding, len(rep.Findings))
	copy(findings, rep.Findings)
	sort.Slice(findings, func(i, j int) bool { return findings[i].Key() < findings[j].Key() })
	return &Baseline{
		SchemaVersion:  SchemaVersion,
		RunID:          rep.RunID,
		CreatedAtMilli: time.Now().UnixMilli(),
		Findings:       findings,
	}
}

// WriteBaseline serializes the baseline as indented JSON.
func WriteBaseline(w io.Writer, b *Baseline) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(b); err != nil {
		return fmt.Errorf("encoding baseline: %w", err)
	}
	return nil
}

// ReadBaseline parses a baseline previously written by WriteBaseline.
func ReadBaseline(r io.Reader) (*Baseline, error) {
	var b Baseline
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return nil, fmt.Errorf("decoding baseline: %w", err)
	}
	if b.SchemaVersion > SchemaVersion {
		return nil, fmt.Errorf("unsupported baseline schema version %d", b.SchemaVersion)
	}
	return &b, nil
}

// DiffResult partitions findings by comparing two runs on finding keys.
type DiffResult struct {
	// New holds findings present only in the target run.
	New []Finding `json:"new"`

	// Fixed holds findings present only in the base run.
	Fixed []Finding `json:"fixed"`

	// Unchanged holds target findings whose keys also appear in the base.
	Unchanged []Finding `json:"unchanged"`
}

// Diff compares base findings against target findings by key. Locations and
// messages are ignored for identity, so moving a method within its file does
// not register as a new finding.
func Diff(base, target []Finding) DiffResult {
	baseKeys := make(map[string]bool, len(base))
	for _, f := range base {
		baseKeys[f.Key()] = true
	}
	targetKeys := make(map[string]bool, len(target))
	for _, f := range target {
		targetKeys[f.Key()] = true
	}

	var out DiffResult
	for _, f := range target {
		if baseKeys[f.Key()] {
			out.Unchanged = append(out.Unchanged, f)
		} else {
			out.New = append(out.New, f)
		}
	}
	for _, f := range base {
		if !targetKeys[f.Key()] {
			out.Fixed = append(out.Fixed, f)
		}
	}

	sortByKey := func(fs []Finding) {
		sort.Slice(fs, func(i, j int) bool { return fs[i].Key() < fs[j].Key() })
	}
	sortByKey(out.New)
	sortByKey(out.Fixed)
	sortByKey(out.Unchanged)
	return out
}
