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
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/config"
	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/report"
	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/runstore"
)

// Flag values for the runs subcommands.
var (
	runsLimit     int
	runsFormat    string
	runsFailOnNew bool
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect persisted scan runs",
		Long: `Lists, shows, compares, and deletes scan runs persisted with
'spotbugs scan --save'. Runs live in the BadgerDB store configured by
store.path (default ~/.spotbugs/store).`,
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List persisted runs, newest first",
		Run:   runRunsListCommand,
	}
	list.Flags().IntVar(&runsLimit, "limit", 20, "Maximum runs to list")

	show := &cobra.Command{
		Use:   "show <run-id|latest>",
		Short: "Print a persisted run's report",
		Args:  cobra.ExactArgs(1),
		Run:   runRunsShowCommand,
	}
	show.Flags().StringVarP(&runsFormat, "format", "f", formatText, "Report format: text, json, or sarif")

	diff := &cobra.Command{
		Use:   "diff <base-run-id> <target-run-id>",
		Short: "Compare two runs' findings",
		Long: `Compares the base run's findings with the target run's and buckets
them into new (in target only), fixed (in base only), and unchanged.

Exit codes:

  0 - diff computed (no new findings, or new findings without --fail-on-new)
  1 - error
  2 - new findings present and --fail-on-new was given`,
		Args: cobra.ExactArgs(2),
		Run:  runRunsDiffCommand,
	}
	diff.Flags().BoolVar(&runsFailOnNew, "fail-on-new", false, "Exit 2 when the target run has new findings")

	del := &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a persisted run",
		Args:  cobra.ExactArgs(1),
		Run:   runRunsDeleteCommand,
	}

	cmd.AddCommand(list, show, diff, del)
	return cmd
}

// openRunStore opens the configured store and wraps it for run access.
// The returned closer shuts the underlying DB.
func openRunStore(readOnly bool) (*runstore.Store, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	logger := config.NewLogger(cfg.Log)
	slog.SetDefault(logger)

	db, err := openStore(cfg, readOnly)
	if err != nil {
		return nil, nil, err
	}
	store, err := runstore.NewStore(db, logger)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return store, func() { _ = db.Close() }, nil
}

func runRunsListCommand(_ *cobra.Command, _ []string) {
	store, closeStore, err := openRunStore(true)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Println("No runs stored yet. Persist one with 'spotbugs scan --save'.")
			return
		}
		log.Fatalf("open store: %v", err)
	}
	defer closeStore()

	metas, err := store.List(context.Background(), runsLimit)
	if err != nil {
		log.Fatalf("list runs: %v", err)
	}
	if len(metas) == 0 {
		fmt.Println("No runs stored yet. Persist one with 'spotbugs scan --save'.")
		return
	}

	writeRunsTable(os.Stdout, metas)
}

// writeRunsTable prints one row per persisted run.
func writeRunsTable(w io.Writer, metas []*runstore.RunMeta) {
	fmt.Fprintf(w, "%-36s  %-19s  %8s  %7s  %8s  %10s\n",
		"RUN ID", "CREATED", "FINDINGS", "CLASSES", "DURATION", "SIZE")
	fmt.Fprintf(w, "%s  %s  %s  %s  %s  %s\n",
		strings.Repeat("─", 36),
		strings.Repeat("─", 19),
		strings.Repeat("─", 8),
		strings.Repeat("─", 7),
		strings.Repeat("─", 8),
		strings.Repeat("─", 10),
	)

	for _, m := range metas {
		created := time.UnixMilli(m.CreatedAtMilli).Format("2006-01-02 15:04:05")
		duration := (time.Duration(m.DurationMillis) * time.Millisecond).Round(time.Millisecond)
		fmt.Fprintf(w, "%-36s  %-19s  %8d  %7d  %8s  %10s\n",
			m.RunID, created, m.Findings, m.Classes, duration, formatBytes(m.CompressedSize))
	}

	fmt.Fprintf(w, "\n%d run%s listed\n", len(metas), plural(len(metas)))
}

func runRunsShowCommand(_ *cobra.Command, args []string) {
	if err := validateFormat(runsFormat); err != nil {
		log.Fatalf("%v", err)
	}

	store, closeStore, err := openRunStore(true)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer closeStore()

	ctx := context.Background()
	var rep *report.Report
	if args[0] == "latest" {
		rep, _, err = store.Latest(ctx)
	} else {
		rep, _, err = store.Load(ctx, args[0])
	}
	if errors.Is(err, runstore.ErrRunNotFound) {
		log.Fatalf("run %s not found", args[0])
	}
	if err != nil {
		log.Fatalf("load run: %v", err)
	}

	styled := runsFormat == formatText && isatty.IsTerminal(os.Stdout.Fd())
	if err := renderReport(os.Stdout, rep, runsFormat, styled); err != nil {
		log.Fatalf("render report: %v", err)
	}
}

func runRunsDiffCommand(_ *cobra.Command, args []string) {
	store, closeStore, err := openRunStore(true)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer closeStore()

	ctx := context.Background()
	base, _, err := store.Load(ctx, args[0])
	if err != nil {
		log.Fatalf("load base run %s: %v", args[0], err)
	}
	target, _, err := store.Load(ctx, args[1])
	if err != nil {
		log.Fatalf("load target run %s: %v", args[1], err)
	}

	result := report.Diff(base.Findings, target.Findings)
	writeRunsDiff(os.Stdout, args[0], args[1], result)

	if runsFailOnNew && len(result.New) > 0 {
		os.Exit(2)
	}
}

// writeRunsDiff prints a diff result: counts first, then the new and fixed
// findings one per line.
func writeRunsDiff(w io.Writer, baseID, targetID string, result report.DiffResult) {
	fmt.Fprintf(w, "Comparing %s -> %s\n", baseID, targetID)
	fmt.Fprintf(w, "  new:       %d\n", len(result.New))
	fmt.Fprintf(w, "  fixed:     %d\n", len(result.Fixed))
	fmt.Fprintf(w, "  unchanged: %d\n", len(result.Unchanged))

	if len(result.New) > 0 {
		fmt.Fprintf(w, "\nNew findings:\n")
		for _, f := range result.New {
			fmt.Fprintf(w, "  + %s\n", f)
		}
	}
	if len(result.Fixed) > 0 {
		fmt.Fprintf(w, "\nFixed findings:\n")
		for _, f := range result.Fixed {
			fmt.Fprintf(w, "  - %s\n", f)
		}
	}
}

func runRunsDeleteCommand(_ *cobra.Command, args []string) {
	store, closeStore, err := openRunStore(false)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer closeStore()

	err = store.Delete(context.Background(), args[0])
	if errors.Is(err, runstore.ErrRunNotFound) {
		log.Fatalf("run %s not found", args[0])
	}
	if err != nil {
		log.Fatalf("delete run: %v", err)
	}
	fmt.Printf("Run %s deleted\n", args[0])
}

// formatBytes renders a byte count for run listings.
func formatBytes(n int64) string {
	switch {
	case n >= 1024*1024:
		return fmt.Sprintf("%.1f MB", float64(n)/1024/1024)
	case n >= 1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%d B", n)
	}
}
