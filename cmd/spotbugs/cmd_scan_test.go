// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/engine"
	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/report"
)

// makeTestReport builds a small report with one finding for renderer tests.
func makeTestReport() *report.Report {
	return &report.Report{
		SchemaVersion:    report.SchemaVersion,
		RunID:            "11111111-2222-3333-4444-555555555555",
		GeneratedAtMilli: 1700000000000,
		Tool:             report.ToolInfo{Name: engine.ToolName, Version: engine.Version},
		Inputs:           []string{"./src"},
		Summary: report.Summary{
			ClassesAnalyzed: 2,
			FilesScanned:    2,
			FindingsTotal:   1,
		},
		Findings: []report.Finding{
			{
				RuleID:   "HSBC_HIDING_SUB_CLASS",
				Severity: report.SeverityNormal,
				Class:    "demo.Child",
				Method:   "ping()",
				Ancestor: "demo.Parent",
				Location: report.Location{File: "src/demo/Child.java", Line: 4},
				Message:  "Static method ping() in demo.Child hides the method declared in demo.Parent.",
			},
		},
	}
}

func TestValidateFormat(t *testing.T) {
	for _, format := range []string{formatText, formatJSON, formatSARIF} {
		if err := validateFormat(format); err != nil {
			t.Errorf("validateFormat(%q) = %v, want nil", format, err)
		}
	}
	if err := validateFormat("xml"); err == nil {
		t.Error("validateFormat(\"xml\") = nil, want error")
	}
}

func TestRenderReport_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := renderReport(&buf, makeTestReport(), formatJSON, false); err != nil {
		t.Fatalf("renderReport: %v", err)
	}

	got, err := report.ReadJSON(&buf)
	if err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if got.RunID != "11111111-2222-3333-4444-555555555555" {
		t.Errorf("run id = %q, want the rendered one", got.RunID)
	}
	if len(got.Findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(got.Findings))
	}
}

func TestRenderReport_SARIF(t *testing.T) {
	var buf bytes.Buffer
	if err := renderReport(&buf, makeTestReport(), formatSARIF, false); err != nil {
		t.Fatalf("renderReport: %v", err)
	}

	var sarif struct {
		Version string `json:"version"`
		Runs    []struct {
			Results []json.RawMessage `json:"results"`
		} `json:"runs"`
	}
	if err := json.Unmarshal(buf.Bytes(), &sarif); err != nil {
		t.Fatalf("unmarshal sarif: %v", err)
	}
	if sarif.Version != "2.1.0" {
		t.Errorf("sarif version = %q, want %q", sarif.Version, "2.1.0")
	}
	if len(sarif.Runs) != 1 || len(sarif.Runs[0].Results) != 1 {
		t.Errorf("expected 1 run with 1 result, got %+v", sarif.Runs)
	}
}

func TestRenderReport_Text(t *testing.T) {
	var buf bytes.Buffer
	if err := renderReport(&buf, makeTestReport(), formatText, false); err != nil {
		t.Fatalf("renderReport: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"HSBC_HIDING_SUB_CLASS", "demo.Child", "demo.Parent"} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderReport_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	err := renderReport(&buf, makeTestReport(), "xml", false)
	if err == nil {
		t.Fatal("expected error for unknown format")
	}
	if !strings.Contains(err.Error(), "xml") {
		t.Errorf("error %q does not name the bad format", err.Error())
	}
}

func TestLoadDiffScope(t *testing.T) {
	path := filepath.Join(t.TempDir(), "changes.patch")
	diff := "--- a/src/demo/Child.java\n" +
		"+++ b/src/demo/Child.java\n" +
		"@@ -1,3 +1,4 @@\n" +
		" package demo;\n" +
		"+// touched\n" +
		" public class Child {}\n"
	if err := os.WriteFile(path, []byte(diff), 0o644); err != nil {
		t.Fatalf("write diff: %v", err)
	}

	scope, err := loadDiffScope(path)
	if err != nil {
		t.Fatalf("loadDiffScope: %v", err)
	}
	if !scope.Contains("src/demo/Child.java") {
		t.Error("scope should contain the changed file")
	}
}

func TestLoadDiffScope_MissingFile(t *testing.T) {
	if _, err := loadDiffScope(filepath.Join(t.TempDir(), "absent.patch")); err == nil {
		t.Fatal("expected error for a missing diff file")
	}
}

func TestProgressPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := &progressPrinter{w: &buf}

	p.update(engine.Event{Phase: engine.PhaseLoad, Done: 1, Total: 3})
	if !strings.Contains(buf.String(), "load 1/3") {
		t.Errorf("progress line missing phase counts: %q", buf.String())
	}

	before := buf.Len()
	p.update(engine.Event{Phase: engine.PhaseDone, Done: 1, Total: 1})
	if buf.Len() == before {
		t.Error("done event should clear the progress line")
	}
	if p.active {
		t.Error("printer should be inactive after done")
	}
}
