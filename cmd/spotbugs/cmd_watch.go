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
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/config"
	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/engine"
	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/report"
)

// watchDebounce holds the --debounce flag for the watch command.
var watchDebounce time.Duration

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [paths...]",
		Short: "Re-scan when watched files change",
		Long: `Scans the given paths, then watches them for changes to .java, .class,
and .jar files and re-scans after each batch of changes settles. Each
re-scan prints the finding delta against the previous scan.

Press Ctrl+C to stop.`,
		Run: runWatchCommand,
	}

	cmd.Flags().DurationVar(&watchDebounce, "debounce", 500*time.Millisecond, "Quiet period before a change batch triggers a re-scan")

	return cmd
}

func runWatchCommand(_ *cobra.Command, args []string) {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := config.NewLogger(cfg.Log)
	slog.SetDefault(logger)

	paths := args
	if len(paths) == 0 {
		paths = []string{"."}
	}

	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithConcurrency(cfg.Scan.Concurrency),
	}
	if len(cfg.Scan.Detectors) > 0 {
		opts = append(opts, engine.WithDetectorIDs(cfg.Scan.Detectors...))
	}
	scanner := engine.NewScanner(opts...)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Fatalf("create watcher: %v", err)
	}
	defer func() { _ = watcher.Close() }()

	for _, p := range paths {
		dirs, err := collectWatchDirs(p)
		if err != nil {
			log.Fatalf("watch %s: %v", p, err)
		}
		for _, dir := range dirs {
			if err := watcher.Add(dir); err != nil {
				log.Fatalf("watch %s: %v", dir, err)
			}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	// Initial scan establishes the baseline for deltas.
	prev := rescan(ctx, scanner, paths, nil)

	rescanCh := make(chan struct{}, 1)
	deb := &debouncer{
		quiet: watchDebounce,
		fire: func() {
			select {
			case rescanCh <- struct{}{}:
			default:
			}
		},
	}

	fmt.Printf("Watching %s (Ctrl+C to stop)\n", strings.Join(paths, ", "))

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nStopped.")
			return

		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			// New directories need their own watch before anything
			// inside them changes.
			if ev.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := watcher.Add(ev.Name); err != nil {
						slog.Warn("Cannot watch new directory",
							slog.String("path", ev.Name),
							slog.String("error", err.Error()))
					}
					deb.Trigger()
					continue
				}
			}
			if isWatchRelevant(ev) {
				deb.Trigger()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Watcher error", slog.String("error", err.Error()))

		case <-rescanCh:
			prev = rescan(ctx, scanner, paths, prev)
		}
	}
}

// rescan runs one scan and prints its summary plus the delta against prev.
// Returns the scan's findings as the next baseline; on error the previous
// baseline is kept.
func rescan(ctx context.Context, scanner *engine.Scanner, paths []string, prev []report.Finding) []report.Finding {
	run, err := scanner.Scan(ctx, paths)
	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("Scan failed, keeping previous baseline", slog.String("error", err.Error()))
		}
		return prev
	}

	now := time.Now().Format("15:04:05")
	if prev == nil {
		fmt.Printf("%s  %d classes, %d finding%s\n",
			now, run.Stats.ClassesLoaded, len(run.Findings), plural(len(run.Findings)))
		for _, f := range run.Findings {
			fmt.Printf("    %s\n", f)
		}
		return run.Findings
	}

	d := report.Diff(prev, run.Findings)
	fmt.Printf("%s  %d finding%s (+%d new, -%d fixed)\n",
		now, len(run.Findings), plural(len(run.Findings)), len(d.New), len(d.Fixed))
	for _, f := range d.New {
		fmt.Printf("  + %s\n", f)
	}
	for _, f := range d.Fixed {
		fmt.Printf("  - %s\n", f)
	}
	return run.Findings
}

// collectWatchDirs returns root and every directory beneath it, skipping
// hidden directories. A file root returns its containing directory.
func collectWatchDirs(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{filepath.Dir(root)}, nil
	}

	var dirs []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if name := d.Name(); strings.HasPrefix(name, ".") && path != root {
			return filepath.SkipDir
		}
		dirs = append(dirs, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dirs, nil
}

// isWatchRelevant reports whether a filesystem event should schedule a
// re-scan: a write, create, remove, or rename touching an analyzable file.
func isWatchRelevant(ev fsnotify.Event) bool {
	if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) &&
		!ev.Op.Has(fsnotify.Remove) && !ev.Op.Has(fsnotify.Rename) {
		return false
	}
	switch strings.ToLower(filepath.Ext(ev.Name)) {
	case ".java", ".class", ".jar":
		return true
	default:
		return false
	}
}

// debouncer collapses bursts of triggers into one fire after a quiet period.
//
// Thread Safety: Trigger is safe for concurrent use.
type debouncer struct {
	quiet time.Duration
	fire  func()

	mu    sync.Mutex
	timer *time.Timer
}

// Trigger schedules fire after the quiet period, resetting the countdown if
// one is already pending.
func (d *debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.quiet, d.fire)
}
