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
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/report"
)

// makeBrowseReport builds a report with three findings for model tests.
func makeBrowseReport() *report.Report {
	rep := makeTestReport()
	rep.Findings = append(rep.Findings,
		report.Finding{
			RuleID:   "HSBC_HIDING_SUB_CLASS",
			Severity: report.SeverityNormal,
			Class:    "demo.Grandchild",
			Method:   "ping()",
			Ancestor: "demo.Parent",
			Message:  "Static method ping() in demo.Grandchild hides the method declared in demo.Parent.",
		},
		report.Finding{
			RuleID:   "HSBC_HIDING_SUB_CLASS",
			Severity: report.SeverityNormal,
			Class:    "demo.Grandchild",
			Method:   "ping()",
			Ancestor: "demo.Child",
			Message:  "Static method ping() in demo.Grandchild hides the method declared in demo.Child.",
		},
	)
	rep.Summary.FindingsTotal = len(rep.Findings)
	return rep
}

func keyMsg(key tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: key}
}

func TestBrowseModel_CursorMoves(t *testing.T) {
	m := newBrowseModel(makeBrowseReport())

	next, _ := m.Update(keyMsg(tea.KeyDown))
	m = next.(browseModel)
	if m.cursor != 1 {
		t.Errorf("cursor = %d after down, want 1", m.cursor)
	}

	next, _ = m.Update(keyMsg(tea.KeyUp))
	m = next.(browseModel)
	if m.cursor != 0 {
		t.Errorf("cursor = %d after up, want 0", m.cursor)
	}
}

func TestBrowseModel_CursorClamps(t *testing.T) {
	m := newBrowseModel(makeBrowseReport())

	next, _ := m.Update(keyMsg(tea.KeyUp))
	m = next.(browseModel)
	if m.cursor != 0 {
		t.Errorf("cursor = %d at top after up, want 0", m.cursor)
	}

	for i := 0; i < 10; i++ {
		next, _ = m.Update(keyMsg(tea.KeyDown))
		m = next.(browseModel)
	}
	if m.cursor != len(m.rep.Findings)-1 {
		t.Errorf("cursor = %d at bottom, want %d", m.cursor, len(m.rep.Findings)-1)
	}
}

func TestBrowseModel_EnterOpensDetail(t *testing.T) {
	m := newBrowseModel(makeBrowseReport())

	// Size the viewport before entering detail mode.
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = next.(browseModel)
	if !m.ready {
		t.Fatal("model should be ready after a window size message")
	}

	next, _ = m.Update(keyMsg(tea.KeyEnter))
	m = next.(browseModel)
	if m.mode != browseModeDetail {
		t.Errorf("mode = %d after enter, want detail", m.mode)
	}

	next, _ = m.Update(keyMsg(tea.KeyEsc))
	m = next.(browseModel)
	if m.mode != browseModeList {
		t.Errorf("mode = %d after esc, want list", m.mode)
	}
}

func TestBrowseModel_QuitFromList(t *testing.T) {
	m := newBrowseModel(makeBrowseReport())

	_, cmd := m.Update(keyMsg(tea.KeyCtrlC))
	if cmd == nil {
		t.Fatal("ctrl+c should produce a quit command")
	}
}

func TestBrowseModel_ListView(t *testing.T) {
	m := newBrowseModel(makeBrowseReport())
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = next.(browseModel)

	view := m.View()
	if !strings.Contains(view, "demo.Child") {
		t.Errorf("list view missing first finding:\n%s", view)
	}
	if !strings.Contains(view, "3 findings") {
		t.Errorf("list view missing finding count:\n%s", view)
	}
}

func TestRenderFindingDetail(t *testing.T) {
	rep := makeBrowseReport()
	detail := renderFindingDetail(rep, 0)

	for _, want := range []string{"HSBC_HIDING_SUB_CLASS", "demo.Child", "ping()", "demo.Parent", "src/demo/Child.java:4"} {
		if !strings.Contains(detail, want) {
			t.Errorf("detail missing %q:\n%s", want, detail)
		}
	}
}
