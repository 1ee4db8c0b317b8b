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
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/config"
	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/detect"
	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/engine"
	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/metacache"
	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/report"
	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/runstore"
)

// Output formats accepted by --format.
const (
	formatText  = "text"
	formatJSON  = "json"
	formatSARIF = "sarif"
)

// Flag values for the scan command.
var (
	scanFormat         string
	scanOutput         string
	scanDiffPath       string
	scanDetectors      []string
	scanConcurrency    int
	scanNoCache        bool
	scanSave           bool
	scanFailOnFindings bool
)

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [paths...]",
		Short: "Scan classes and sources for static method hiding",
		Long: `Scans the given paths (directories, .class files, .jar archives, or
.java sources) and prints a findings report. With no paths the working
directory is scanned.

Exit codes:

  0 - scan completed (no findings, or findings without --fail-on-findings)
  1 - scan failed
  2 - findings present and --fail-on-findings was given

Example:
  spotbugs scan ./build/classes
  spotbugs scan --format sarif --output report.sarif ./app.jar
  spotbugs scan --diff <(git diff main) --fail-on-findings ./src`,
		Run: runScanCommand,
	}

	cmd.Flags().StringVarP(&scanFormat, "format", "f", formatText, "Report format: text, json, or sarif")
	cmd.Flags().StringVarP(&scanOutput, "output", "o", "", "Write the report to a file instead of stdout")
	cmd.Flags().StringVar(&scanDiffPath, "diff", "", "Unified diff file; findings outside its changed files are suppressed")
	cmd.Flags().StringSliceVar(&scanDetectors, "detectors", nil, "Run only the named detector IDs")
	cmd.Flags().IntVar(&scanConcurrency, "concurrency", 0, "Parallel workers (0 uses the configured default)")
	cmd.Flags().BoolVar(&scanNoCache, "no-cache", false, "Bypass the class metadata cache")
	cmd.Flags().BoolVar(&scanSave, "save", false, "Persist the run to the store for later runs diff")
	cmd.Flags().BoolVar(&scanFailOnFindings, "fail-on-findings", false, "Exit 2 when any finding is reported")

	return cmd
}

func runScanCommand(_ *cobra.Command, args []string) {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := config.NewLogger(cfg.Log)
	slog.SetDefault(logger)

	if err := validateFormat(scanFormat); err != nil {
		log.Fatalf("%v", err)
	}

	paths := args
	if len(paths) == 0 {
		paths = []string{"."}
	}

	opts := []engine.Option{
		engine.WithLogger(logger),
	}

	concurrency := cfg.Scan.Concurrency
	if scanConcurrency > 0 {
		concurrency = scanConcurrency
	}
	opts = append(opts, engine.WithConcurrency(concurrency))

	detectors := cfg.Scan.Detectors
	if len(scanDetectors) > 0 {
		detectors = scanDetectors
	}
	if len(detectors) > 0 {
		opts = append(opts, engine.WithDetectorIDs(detectors...))
	}

	if scanDiffPath != "" {
		scope, err := loadDiffScope(scanDiffPath)
		if err != nil {
			log.Fatalf("--diff: %v", err)
		}
		opts = append(opts, engine.WithDiffScope(scope))
	}

	// The cache and --save share one BadgerDB. Cache problems degrade to a
	// cold scan; a broken store with --save is fatal because the user asked
	// for persistence explicitly.
	needDB := scanSave || (cfg.Scan.CacheEnabled && !scanNoCache)
	var store *runstore.Store
	if needDB {
		bdb, err := openStore(cfg, false)
		if err != nil {
			if scanSave {
				log.Fatalf("--save: %v", err)
			}
			slog.Warn("Metadata cache unavailable, scanning cold",
				slog.String("error", err.Error()))
		} else {
			defer func() { _ = bdb.Close() }()

			if cfg.Scan.CacheEnabled && !scanNoCache {
				ttl := time.Duration(cfg.Store.CacheTTLDays) * 24 * time.Hour
				cache, err := metacache.New(bdb, metacache.WithTTL(ttl), metacache.WithLogger(logger))
				if err != nil {
					slog.Warn("Metadata cache unavailable, scanning cold",
						slog.String("error", err.Error()))
				} else {
					opts = append(opts, engine.WithCache(cache))
				}
			}
			if scanSave {
				store, err = runstore.NewStore(bdb, logger)
				if err != nil {
					log.Fatalf("--save: %v", err)
				}
			}
		}
	}

	// Progress goes to stderr so piped report output stays clean.
	if isatty.IsTerminal(os.Stderr.Fd()) {
		printer := &progressPrinter{w: os.Stderr}
		opts = append(opts, engine.WithProgress(printer.update))
		defer printer.clear()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	run, err := engine.NewScanner(opts...).Scan(ctx, paths)
	if err != nil {
		log.Fatalf("scan: %v", err)
	}
	rep := run.Report()

	if store != nil {
		meta, err := store.Save(ctx, rep)
		if err != nil {
			log.Fatalf("save run: %v", err)
		}
		fmt.Fprintf(os.Stderr, "Run %s saved (%d findings)\n", meta.RunID, meta.Findings)
	}

	out := io.Writer(os.Stdout)
	styled := scanFormat == formatText && isatty.IsTerminal(os.Stdout.Fd())
	if scanOutput != "" {
		f, err := os.Create(scanOutput)
		if err != nil {
			log.Fatalf("--output: %v", err)
		}
		defer func() { _ = f.Close() }()
		out = f
		styled = false
	}

	if err := renderReport(out, rep, scanFormat, styled); err != nil {
		log.Fatalf("render report: %v", err)
	}

	if scanFailOnFindings && len(rep.Findings) > 0 {
		os.Exit(2)
	}
}

// validateFormat rejects unknown --format values before any work is done.
func validateFormat(format string) error {
	switch format {
	case formatText, formatJSON, formatSARIF:
		return nil
	default:
		return fmt.Errorf("unknown format %q (want %s, %s, or %s)", format, formatText, formatJSON, formatSARIF)
	}
}

// loadDiffScope parses the unified diff at path into a changed-file scope.
func loadDiffScope(path string) (*report.DiffScope, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return report.ParseDiffScope(f)
}

// renderReport writes rep in the requested format. Styled only applies to
// text output and should be set when writing to a terminal.
func renderReport(w io.Writer, rep *report.Report, format string, styled bool) error {
	switch format {
	case formatJSON:
		return report.WriteJSON(w, rep)
	case formatSARIF:
		catalog, err := detect.GetCatalog(context.Background())
		if err != nil {
			return fmt.Errorf("load rule catalog: %w", err)
		}
		return report.WriteSARIF(w, rep, catalog.Descriptors())
	case formatText:
		return report.WriteText(w, rep, report.TextOptions{Styled: styled, ShowDiagnostics: true})
	default:
		return validateFormat(format)
	}
}

// progressPrinter rewrites a single terminal line with scan progress.
type progressPrinter struct {
	w      io.Writer
	active bool
}

func (p *progressPrinter) update(ev engine.Event) {
	if ev.Phase == engine.PhaseDone {
		p.clear()
		return
	}
	fmt.Fprintf(p.w, "\r%s %d/%d \033[K", ev.Phase, ev.Done, ev.Total)
	p.active = true
}

func (p *progressPrinter) clear() {
	if p.active {
		fmt.Fprint(p.w, "\r\033[K")
		p.active = false
	}
}
