// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/hierarchy"
)

// fixtureProjectDir points at the checked-in Maven-layout source tree used
// for end-to-end scans.
func fixtureProjectDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join("..", "..", "..", "test", "fixtures", "sample-java-project")
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("fixture project unavailable: %v", err)
	}
	return dir
}

func TestScan_FixtureProject(t *testing.T) {
	dir := fixtureProjectDir(t)

	s := NewScanner(WithConcurrency(4))
	run, err := s.Scan(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantKeys := []string{
		"HSBC_HIDING_SUB_CLASS|com.example.Child|version()|com.example.Grandparent",
		"HSBC_HIDING_SUB_CLASS|com.example.Child|version()|com.example.Parent",
		"HSBC_HIDING_SUB_CLASS|com.example.Grandchild|describe()|com.example.Grandparent",
		"HSBC_HIDING_SUB_CLASS|com.example.Parent|version()|com.example.Grandparent",
	}
	if len(run.Findings) != len(wantKeys) {
		t.Fatalf("expected %d findings, got %d: %+v",
			len(wantKeys), len(run.Findings), run.Findings)
	}
	for i, want := range wantKeys {
		if got := run.Findings[i].Key(); got != want {
			t.Errorf("finding %d key = %q, want %q", i, got, want)
		}
	}

	wantFiles := map[string]string{
		"com.example.Child":      "Child.java",
		"com.example.Grandchild": "Grandchild.java",
		"com.example.Parent":     "Parent.java",
	}
	for _, f := range run.Findings {
		if want := wantFiles[f.Class]; !strings.HasSuffix(f.Location.File, want) {
			t.Errorf("finding %s file = %q, want suffix %q", f.Key(), f.Location.File, want)
		}
		if f.Location.Line <= 0 {
			t.Errorf("finding %s has no line number", f.Key())
		}
	}

	if len(run.Diagnostics) != 1 {
		t.Fatalf("expected 1 diagnostic, got %d: %+v", len(run.Diagnostics), run.Diagnostics)
	}
	diag := run.Diagnostics[0]
	if diag.Kind != hierarchy.DiagMissingAncestor {
		t.Errorf("diagnostic kind = %v, want %v", diag.Kind, hierarchy.DiagMissingAncestor)
	}
	if diag.Class != "com.example.Orphan" || diag.Ancestor != "com.example.vendor.LegacyBase" {
		t.Errorf("unexpected diagnostic: %+v", diag)
	}

	if run.Stats.FilesScanned != 5 {
		t.Errorf("FilesScanned = %d, want 5", run.Stats.FilesScanned)
	}
	if run.Stats.ClassesLoaded != 5 {
		t.Errorf("ClassesLoaded = %d, want 5", run.Stats.ClassesLoaded)
	}
	if run.Stats.ParseFailures != 0 {
		t.Errorf("ParseFailures = %d, want 0", run.Stats.ParseFailures)
	}
}

// Two scans of the same unchanged tree must agree finding for finding.
func TestScan_FixtureProject_Deterministic(t *testing.T) {
	dir := fixtureProjectDir(t)

	s := NewScanner(WithConcurrency(8))
	first, err := s.Scan(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := s.Scan(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(first.Findings) != len(second.Findings) {
		t.Fatalf("finding counts differ between runs: %d vs %d",
			len(first.Findings), len(second.Findings))
	}
	for i := range first.Findings {
		if first.Findings[i].Key() != second.Findings[i].Key() {
			t.Errorf("finding %d differs: %q vs %q",
				i, first.Findings[i].Key(), second.Findings[i].Key())
		}
	}
}
