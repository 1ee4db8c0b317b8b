// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command spotbugs scans Java classes and sources for static method hiding.
//
// The scanner accepts directories, .class files, .jar archives, and .java
// sources, builds the class hierarchy, and reports every static method in a
// subclass that hides a method declared in an ancestor.
//
// Usage:
//
//	spotbugs scan ./build/classes
//	spotbugs scan --format sarif --output report.sarif ./app.jar
//	spotbugs scan --diff changes.patch --fail-on-findings ./src
//	spotbugs rules
//	spotbugs runs list
//	spotbugs runs diff <base-run-id> <target-run-id>
//	spotbugs watch ./src
//	spotbugs browse
//	spotbugs init
//
// Configuration is read from spotbugs.yaml in the working directory (or the
// file named by --config), overlaid with SPOTBUGS_* environment variables.
// Run `spotbugs init` to generate a starting config interactively.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/engine"
)

// configPath holds the --config flag value shared by every subcommand.
var configPath string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spotbugs",
		Short: "Static analysis for Java static method hiding",
		Long: `spotbugs analyzes Java classes and sources for static method hiding:
a subclass declaring a static method with the same name and parameter
types as a method in an ancestor class. The hidden method silently wins
or loses depending on the static type at the call site, which is almost
never what the author intended.

Reports render as text, JSON, or SARIF 2.1.0. Scan runs can be persisted
and diffed against each other to separate new findings from old ones.`,
		Version: engine.Version,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default: spotbugs.yaml if present)")

	cmd.AddCommand(newScanCmd())
	cmd.AddCommand(newRulesCmd())
	cmd.AddCommand(newRunsCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newBrowseCmd())
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the tool version",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("%s %s\n", engine.ToolName, engine.Version)
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
