// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package report holds the finding model plus everything that carries
// findings out of the engine: the concurrent collector detectors report
// into, the text, JSON and SARIF renderers, baseline persistence and
// diffing, and changed-file scoping for incremental scans.
package report

import (
	"fmt"
	"strings"
)

// Severity is the fixed priority a detector assigns to its findings.
type Severity int

const (
	SeverityHigh Severity = iota + 1
	SeverityNormal
	SeverityLow
)

// String returns the severity as a stable lowercase token.
func (s Severity) String() string {
	switch s {
	case SeverityHigh:
		return "high"
	case SeverityNormal:
		return "normal"
	case SeverityLow:
		return "low"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so severities serialize as
// their tokens in JSON and YAML.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	switch string(text) {
	case "high":
		*s = SeverityHigh
	case "normal":
		*s = SeverityNormal
	case "low":
		*s = SeverityLow
	default:
		return fmt.Errorf("unknown severity %q", text)
	}
	return nil
}

// SARIFLevel maps the severity onto the SARIF level vocabulary.
func (s Severity) SARIFLevel() string {
	switch s {
	case SeverityHigh:
		return "error"
	case SeverityLow:
		return "note"
	default:
		return "warning"
	}
}

// Location is a best-effort source attribution. Either field may be absent;
// a zero Location means the source could not be determined at all.
type Location struct {
	File string `json:"file,omitempty"`
	Line int    `json:"line,omitempty"`
}

// IsUnknown reports whether no source attribution is available.
func (l Location) IsUnknown() bool {
	return l.File == "" && l.Line == 0
}

// String renders "File:Line", degrading to whatever part is known.
func (l Location) String() string {
	switch {
	case l.IsUnknown():
		return "<unknown>"
	case l.Line == 0:
		return l.File
	case l.File == "":
		return fmt.Sprintf("line %d", l.Line)
	default:
		return fmt.Sprintf("%s:%d", l.File, l.Line)
	}
}

// Finding is one detector result. Findings are immutable once created and
// independent of each other; no cross-finding invariants exist.
type Finding struct {
	// RuleID identifies the rule that produced the finding.
	RuleID string `json:"rule_id"`

	// Severity is the rule's fixed priority.
	Severity Severity `json:"severity"`

	// Class is the fully-qualified name of the class the finding is about.
	Class string `json:"class"`

	// Method is the offending method's signature, name plus ordered
	// parameter types.
	Method string `json:"method"`

	// Ancestor names the ancestor class involved, when the rule relates
	// two classes (empty otherwise).
	Ancestor string `json:"ancestor,omitempty"`

	// Location is the best-effort source attribution.
	Location Location `json:"location"`

	// Message is the human-readable explanation.
	Message string `json:"message"`
}

// Key returns the finding's deterministic identity, used for sorting,
// de-duplicating identical re-scans, and baseline comparison. Location is
// excluded so reformatting a file does not churn baselines.
func (f Finding) Key() string {
	return strings.Join([]string{f.RuleID, f.Class, f.Method, f.Ancestor}, "|")
}

// String renders a single-line summary for logs.
func (f Finding) String() string {
	return fmt.Sprintf("[%s] %s %s.%s (at %s)", f.Severity, f.RuleID, f.Class, f.Method, f.Location)
}
