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
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	highStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("red")).Bold(true)
	normalStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("yellow")).Bold(true)
	lowStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("cyan"))
	locationStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	cleanStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("green")).Bold(true)
)

// TextOptions controls the human-readable renderer.
type TextOptions struct {
	// Styled enables color output. Callers should only set it when
	// writing to a terminal.
	Styled bool

	// ShowDiagnostics appends the diagnostics section after findings.
	ShowDiagnostics bool
}

func severityStyle(s Severity) lipgloss.Style {
	switch s {
	case SeverityHigh:
		return highStyle
	case SeverityLow:
		return lowStyle
	default:
		return normalStyle
	}
}

// WriteText renders the report for terminals and log files. Findings are
// printed in the order given, one block per finding, followed by the
// diagnostics section when requested.
func WriteText(w io.Writer, rep *Report, opts TextOptions) error {
	style := func(st lipgloss.Style, s string) string {
		if !opts.Styled {
			return s
		}
		return st.Render(s)
	}

	header := fmt.Sprintf("run %s: %d findings, %d classes, %dms",
		rep.RunID, rep.Summary.FindingsTotal, rep.Summary.ClassesAnalyzed, rep.Summary.DurationMillis)
	if _, err := fmt.Fprintf(w, "%s\n%s\n\n", style(titleStyle, rep.Tool.Name+" "+rep.Tool.Version), header); err != nil {
		return err
	}

	if len(rep.Findings) == 0 {
		if _, err := fmt.Fprintf(w, "%s\n", style(cleanStyle, "no findings")); err != nil {
			return err
		}
	}
	for _, f := range rep.Findings {
		badge := style(severityStyle(f.Severity), "["+f.Severity.String()+"]")
		if _, err := fmt.Fprintf(w, "%s %s %s.%s\n", badge, f.RuleID, f.Class, f.Method); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "    %s\n", f.Message); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "    %s\n", style(locationStyle, "at "+f.Location.String())); err != nil {
			return err
		}
	}

	if opts.ShowDiagnostics && len(rep.Diagnostics) > 0 {
		if _, err := fmt.Fprintf(w, "\n%s\n", style(titleStyle, "diagnostics:")); err != nil {
			return err
		}
		for _, d := range rep.Diagnostics {
			if _, err := fmt.Fprintf(w, "    %s\n", d.String()); err != nil {
				return err
			}
		}
	}
	return nil
}
