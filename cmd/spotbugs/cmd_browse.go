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
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/report"
	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/runstore"
)

// Styles for the findings browser.
var (
	browseTitleStyle    = lipgloss.NewStyle().Bold(true)
	browseSelectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	browseMutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	browseSevStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("yellow")).Bold(true)
)

// Flag values for the browse command.
var (
	browseInput string
	browseRunID string
)

func newBrowseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse a run's findings interactively",
		Long: `Opens a terminal browser over a run's findings: arrow keys move the
selection, Enter shows the full finding, q quits. Reads the latest
persisted run by default; --run selects a specific run and --input reads
a JSON report from a file instead of the store.`,
		Run: runBrowseCommand,
	}

	cmd.Flags().StringVar(&browseInput, "input", "", "JSON report file to browse instead of the store")
	cmd.Flags().StringVar(&browseRunID, "run", "latest", "Persisted run ID to browse")

	return cmd
}

func runBrowseCommand(_ *cobra.Command, _ []string) {
	rep, err := loadBrowseReport()
	if err != nil {
		log.Fatalf("%v", err)
	}
	if len(rep.Findings) == 0 {
		fmt.Println("No findings to browse.")
		return
	}

	p := tea.NewProgram(newBrowseModel(rep), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("browser: %v", err)
	}
}

// loadBrowseReport resolves the report to browse from --input or the store.
func loadBrowseReport() (*report.Report, error) {
	if browseInput != "" {
		f, err := os.Open(browseInput)
		if err != nil {
			return nil, fmt.Errorf("--input: %w", err)
		}
		defer func() { _ = f.Close() }()
		rep, err := report.ReadJSON(f)
		if err != nil {
			return nil, fmt.Errorf("--input %s: %w", browseInput, err)
		}
		return rep, nil
	}

	store, closeStore, err := openRunStore(true)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	defer closeStore()

	ctx := context.Background()
	var rep *report.Report
	if browseRunID == "latest" {
		rep, _, err = store.Latest(ctx)
	} else {
		rep, _, err = store.Load(ctx, browseRunID)
	}
	if errors.Is(err, runstore.ErrRunNotFound) {
		return nil, fmt.Errorf("no run to browse: persist one with 'spotbugs scan --save'")
	}
	if err != nil {
		return nil, fmt.Errorf("load run: %w", err)
	}
	return rep, nil
}

// Browser modes.
const (
	browseModeList = iota
	browseModeDetail
)

// browseModel is the BubbleTea model for the findings browser.
type browseModel struct {
	rep      *report.Report
	cursor   int
	mode     int
	viewport viewport.Model
	ready    bool
	width    int
	height   int
}

func newBrowseModel(rep *report.Report) browseModel {
	return browseModel{rep: rep}
}

// Init initializes the browser model.
func (m browseModel) Init() tea.Cmd {
	return nil
}

// Update handles keyboard input and window sizing.
func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch m.mode {
		case browseModeList:
			switch msg.String() {
			case "ctrl+c", "q", "esc":
				return m, tea.Quit

			case "up", "k":
				if m.cursor > 0 {
					m.cursor--
				}

			case "down", "j":
				if m.cursor < len(m.rep.Findings)-1 {
					m.cursor++
				}

			case "enter":
				m.mode = browseModeDetail
				m.viewport.SetContent(renderFindingDetail(m.rep, m.cursor))
				m.viewport.GotoTop()
			}

		case browseModeDetail:
			switch msg.String() {
			case "ctrl+c":
				return m, tea.Quit

			case "q", "esc":
				m.mode = browseModeList

			case "up", "k":
				m.viewport.ScrollUp(1)

			case "down", "j":
				m.viewport.ScrollDown(1)

			case "pgup", "b":
				m.viewport.PageUp()

			case "pgdown", "f", "space":
				m.viewport.PageDown()
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 2
		footerHeight := 2
		verticalMargin := headerHeight + footerHeight

		if !m.ready {
			m.viewport = viewport.New(msg.Width-2, msg.Height-verticalMargin)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width - 2
			m.viewport.Height = msg.Height - verticalMargin
		}
		if m.mode == browseModeDetail {
			m.viewport.SetContent(renderFindingDetail(m.rep, m.cursor))
		}
	}

	return m, nil
}

// View renders the current browser screen.
func (m browseModel) View() string {
	if m.mode == browseModeDetail && m.ready {
		header := browseTitleStyle.Render(fmt.Sprintf("Finding %d/%d", m.cursor+1, len(m.rep.Findings)))
		footer := browseMutedStyle.Render("[↑/↓] Scroll    [q] Back    [Ctrl+C] Quit")
		return header + "\n\n" + m.viewport.View() + "\n" + footer
	}
	return m.listView()
}

// listView renders the scrolling findings list with the selection cursor.
func (m browseModel) listView() string {
	var b strings.Builder

	title := fmt.Sprintf("%s %s — %d finding%s",
		m.rep.Tool.Name, m.rep.Tool.Version, len(m.rep.Findings), plural(len(m.rep.Findings)))
	b.WriteString(browseTitleStyle.Render(title) + "\n")
	b.WriteString(browseMutedStyle.Render("[↑/↓] Navigate    [Enter] Detail    [q] Quit") + "\n\n")

	visible := m.height - 5
	if visible < 1 {
		visible = len(m.rep.Findings)
	}
	start := 0
	if m.cursor >= visible {
		start = m.cursor - visible + 1
	}
	end := start + visible
	if end > len(m.rep.Findings) {
		end = len(m.rep.Findings)
	}

	for i := start; i < end; i++ {
		f := m.rep.Findings[i]
		line := fmt.Sprintf("%-8s %s.%s", f.Severity, f.Class, f.Method)
		if i == m.cursor {
			b.WriteString(browseSelectedStyle.Render("> "+line) + "\n")
		} else {
			b.WriteString("  " + line + "\n")
		}
	}

	if end < len(m.rep.Findings) {
		b.WriteString(browseMutedStyle.Render(fmt.Sprintf("  … %d more", len(m.rep.Findings)-end)) + "\n")
	}

	return b.String()
}

// renderFindingDetail renders one finding's full record for the detail view.
func renderFindingDetail(rep *report.Report, i int) string {
	f := rep.Findings[i]

	var b strings.Builder
	b.WriteString(browseSevStyle.Render(strings.ToUpper(f.Severity.String())) + "  " + f.RuleID + "\n\n")
	b.WriteString(browseTitleStyle.Render("Class:    ") + f.Class + "\n")
	b.WriteString(browseTitleStyle.Render("Method:   ") + f.Method + "\n")
	if f.Ancestor != "" {
		b.WriteString(browseTitleStyle.Render("Ancestor: ") + f.Ancestor + "\n")
	}
	b.WriteString(browseTitleStyle.Render("Location: ") + f.Location.String() + "\n\n")
	b.WriteString(f.Message + "\n")

	if rep.RunID != "" {
		b.WriteString("\n" + browseMutedStyle.Render(fmt.Sprintf("run %s, scanned %s",
			rep.RunID, time.UnixMilli(rep.GeneratedAtMilli).Format("2006-01-02 15:04:05"))) + "\n")
	}
	return b.String()
}
