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
)

// SchemaVersion is bumped whenever the JSON report shape changes
// incompatibly.
const SchemaVersion = 1

// ToolInfo identifies the producing tool in serialized reports.
type ToolInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Summary carries run-level counters for renderers.
type Summary struct {
	ClassesAnalyzed  int   `json:"classes_analyzed"`
	FilesScanned     int   `json:"files_scanned"`
	FindingsTotal    int   `json:"findings_total"`
	DiagnosticsTotal int   `json:"diagnostics_total"`
	DurationMillis   int64 `json:"duration_millis"`
}

// Diagnostic is a non-fatal analysis condition surfaced alongside findings,
// such as an ancestor class that could not be located.
type Diagnostic struct {
	Kind     string `json:"kind"`
	Class    string `json:"class"`
	Ancestor string `json:"ancestor,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// String renders a single-line summary for logs and text output.
func (d Diagnostic) String() string {
	s := fmt.Sprintf("%s: class %s", d.Kind, d.Class)
	if d.Ancestor != "" {
		s += fmt.Sprintf(", ancestor %s", d.Ancestor)
	}
	if d.Detail != "" {
		s += ": " + d.Detail
	}
	return s
}

// Report is the serialized result of one analysis run. It is the shape
// written by the JSON renderer and stored by the run store; the engine
// assembles it from its in-memory run state.
type Report struct {
	SchemaVersion    int          `json:"schema_version"`
	RunID            string       `json:"run_id"`
	GeneratedAtMilli int64        `json:"generated_at_milli"`
	Tool             ToolInfo     `json:"tool"`
	Inputs           []string     `json:"inputs,omitempty"`
	Summary          Summary      `json:"summary"`
	Findings         []Finding    `json:"findings"`
	Diagnostics      []Diagnostic `json:"diagnostics,omitempty"`
}

// WriteJSON writes the report as indented JSON. Findings are expected to be
// pre-sorted by the caller (the collector already returns them sorted), so
// byte output is deterministic for identical runs.
func WriteJSON(w io.Writer, rep *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return nil
}

// ReadJSON parses a report previously written by WriteJSON.
func ReadJSON(r io.Reader) (*Report, error) {
	var rep Report
	if err := json.NewDecoder(r).Decode(&rep); err != nil {
		return nil, fmt.Errorf("decoding report: %w", err)
	}
	if rep.SchemaVersion > SchemaVersion {
		return nil, fmt.Errorf("unsupported report schema version %d", rep.SchemaVersion)
	}
	return &rep, nil
}
