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
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/detect"
)

// rulesLong holds the --long flag for the rules command.
var rulesLong bool

func newRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List the registered detector rules",
		Long: `Prints every rule in the detector catalog with its ID, severity,
category, and short description. --long adds the full description and
help URI per rule.`,
		Run: runRulesCommand,
	}

	cmd.Flags().BoolVar(&rulesLong, "long", false, "Print full descriptions and help URIs")

	return cmd
}

func runRulesCommand(_ *cobra.Command, _ []string) {
	catalog, err := detect.GetCatalog(context.Background())
	if err != nil {
		log.Fatalf("load rule catalog: %v", err)
	}

	if rulesLong {
		writeRulesLong(os.Stdout, catalog.Rules)
		return
	}
	writeRulesTable(os.Stdout, catalog.Rules)
}

// writeRulesTable prints one row per rule, column widths sized to content.
func writeRulesTable(w io.Writer, rules []detect.RuleInfo) {
	idWidth := len("RULE")
	for _, r := range rules {
		if len(r.ID) > idWidth {
			idWidth = len(r.ID)
		}
	}

	fmt.Fprintf(w, "%-*s  %-8s  %-12s  %-8s  %s\n", idWidth, "RULE", "SEVERITY", "CATEGORY", "ENABLED", "DESCRIPTION")
	fmt.Fprintf(w, "%s  %s  %s  %s  %s\n",
		strings.Repeat("─", idWidth),
		strings.Repeat("─", 8),
		strings.Repeat("─", 12),
		strings.Repeat("─", 8),
		strings.Repeat("─", 40),
	)

	for _, r := range rules {
		enabled := "yes"
		if !r.Enabled {
			enabled = "no"
		}
		fmt.Fprintf(w, "%-*s  %-8s  %-12s  %-8s  %s\n",
			idWidth, r.ID, r.Severity, r.Category, enabled, r.ShortDescription)
	}

	fmt.Fprintf(w, "\n%d rule%s registered\n", len(rules), plural(len(rules)))
}

// writeRulesLong prints the full catalog entry per rule.
func writeRulesLong(w io.Writer, rules []detect.RuleInfo) {
	for i, r := range rules {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s (%s)\n", r.ID, r.Name)
		fmt.Fprintf(w, "  Severity: %s\n", r.Severity)
		fmt.Fprintf(w, "  Category: %s\n", r.Category)
		fmt.Fprintf(w, "  Enabled:  %t\n", r.Enabled)
		if r.HelpURI != "" {
			fmt.Fprintf(w, "  Help:     %s\n", r.HelpURI)
		}
		fmt.Fprintln(w)
		for _, line := range strings.Split(strings.TrimSpace(r.Description), "\n") {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
}

// plural returns "s" unless n is 1.
func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
