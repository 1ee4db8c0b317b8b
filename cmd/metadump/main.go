// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// metadump inspects the spotbugs store.
//
// The store holds two kinds of data in one BadgerDB: the class metadata
// cache (parsed class summaries keyed by content hash, written during
// cached scans) and persisted runs (written by 'spotbugs scan --save' or
// the server's persist option). This tool opens the store read-only and
// prints a human-readable summary: cached classes with TTL remaining and
// raw sizes, and stored runs with their creation times and finding counts.
//
// Usage:
//
//	metadump [--path /path/to/store]
//
// If --path is not given, reads SPOTBUGS_STORE_DIR from the environment,
// falling back to ~/.spotbugs/store.
//
// Exit codes:
//
//	0 — success (including "empty store" which prints a message and exits 0)
//	1 — error opening or reading the database
package main

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"

	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/classmeta"
	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/runstore"
)

// metaKeyPrefix must match metacache.go exactly.
const metaKeyPrefix = "meta:class:v1:"

// runKeyPrefix, runMetaSuffix, and latestRunKey must match runstore.go
// exactly.
const (
	runKeyPrefix  = "run:v1:"
	runMetaSuffix = ":meta"
	latestRunKey  = "run:latest"
)

// classEntry is one decoded row of the class metadata cache.
type classEntry struct {
	hash      string
	name      string
	methods   int
	expiresAt time.Time
	hasExpiry bool
	rawSize   int
	decodeErr error
}

func main() {
	pathFlag := flag.String("path", "", "Path to store BadgerDB directory (overrides SPOTBUGS_STORE_DIR env var)")
	flag.Parse()

	dbPath := *pathFlag
	if dbPath == "" {
		dbPath = os.Getenv("SPOTBUGS_STORE_DIR")
	}
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fatalf("cannot resolve home directory: %v", err)
		}
		dbPath = filepath.Join(home, ".spotbugs", "store")
	}

	fmt.Printf("Store path: %s\n", dbPath)

	// Check existence before trying to open — gives a cleaner error message
	// than BadgerDB's "no such file or directory" buried in a long error.
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("Store directory does not exist. Nothing has been persisted yet.")
		fmt.Println("Run 'spotbugs scan --save' to populate it.")
		os.Exit(0)
	}

	opts := dgbadger.DefaultOptions(dbPath).
		WithLogger(nil). // suppress BadgerDB internal logs
		WithReadOnly(true)

	db, err := dgbadger.Open(opts)
	if err != nil {
		fatalf("open BadgerDB at %s: %v", dbPath, err)
	}
	defer func() { _ = db.Close() }()

	var classes []classEntry
	var runs []runstore.RunMeta
	var latest string

	err = db.View(func(txn *dgbadger.Txn) error {
		opts := dgbadger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(metaKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := string(item.Key())

			var e classEntry
			e.hash = strings.TrimPrefix(key, metaKeyPrefix)

			// TTL: item.ExpiresAt() returns Unix seconds, 0 = no expiry.
			if expiresAt := item.ExpiresAt(); expiresAt > 0 {
				e.hasExpiry = true
				e.expiresAt = time.Unix(int64(expiresAt), 0)
			}

			raw, err := item.ValueCopy(nil)
			if err != nil {
				e.decodeErr = fmt.Errorf("copy value: %w", err)
				classes = append(classes, e)
				continue
			}
			e.rawSize = len(raw)

			var cls classmeta.Class
			if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&cls); err != nil {
				e.decodeErr = fmt.Errorf("gob decode: %w", err)
			} else {
				e.name = cls.Name
				e.methods = len(cls.Methods)
			}

			classes = append(classes, e)
		}

		prefix = []byte(runKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := string(item.Key())
			if !strings.HasSuffix(key, runMetaSuffix) {
				continue
			}

			raw, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("copy run meta %s: %w", key, err)
			}
			var meta runstore.RunMeta
			if err := json.Unmarshal(raw, &meta); err != nil {
				return fmt.Errorf("decode run meta %s: %w", key, err)
			}
			runs = append(runs, meta)
		}

		item, err := txn.Get([]byte(latestRunKey))
		if err == nil {
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("copy latest pointer: %w", err)
			}
			latest = string(raw)
		} else if err != dgbadger.ErrKeyNotFound {
			return fmt.Errorf("read latest pointer: %w", err)
		}
		return nil
	})
	if err != nil {
		fatalf("read BadgerDB: %v", err)
	}

	if len(classes) == 0 && len(runs) == 0 {
		fmt.Println("\nThe store is empty.")
		fmt.Println("Run 'spotbugs scan --save' or a cached scan to populate it.")
		os.Exit(0)
	}

	printClasses(classes)
	printRuns(runs, latest)

	fmt.Printf("\n%s\n", strings.Repeat("─", 80))
	fmt.Printf("Summary: %d cached class%s, %d run%s, store path: %s\n",
		len(classes), plural(len(classes), "", "es"),
		len(runs), plural(len(runs), "", "s"), dbPath)
}

// printClasses renders the class metadata cache section.
func printClasses(classes []classEntry) {
	fmt.Printf("\nFound %d class metadata entr%s:\n",
		len(classes), plural(len(classes), "y", "ies"))
	fmt.Println(strings.Repeat("─", 80))

	if len(classes) == 0 {
		fmt.Println("(none; caching disabled or no cached scan has run)")
		return
	}

	sort.Slice(classes, func(i, j int) bool { return classes[i].name < classes[j].name })

	// Determine column width from longest class name.
	maxNameLen := len("Class")
	for _, e := range classes {
		if len(e.name) > maxNameLen {
			maxNameLen = len(e.name)
		}
	}
	colWidth := maxNameLen + 2

	fmt.Printf("\n%-*s  %7s  %-18s  %-22s  %s\n",
		colWidth, "Class", "Methods", "Size", "TTL", "Hash")
	fmt.Printf("%s  %s  %s  %s  %s\n",
		strings.Repeat("─", colWidth),
		strings.Repeat("─", 7),
		strings.Repeat("─", 18),
		strings.Repeat("─", 22),
		strings.Repeat("─", 12),
	)

	for _, e := range classes {
		if e.decodeErr != nil {
			fmt.Printf("%-*s  DECODE ERROR: %v (hash %s)\n",
				colWidth, "(unreadable)", e.decodeErr, shortHash(e.hash))
			continue
		}
		fmt.Printf("%-*s  %7d  %-18s  %-22s  %s\n",
			colWidth, e.name, e.methods,
			formatBytes(e.rawSize), formatTTL(e.hasExpiry, e.expiresAt),
			shortHash(e.hash))
	}
}

// printRuns renders the persisted runs section, newest first.
func printRuns(runs []runstore.RunMeta, latest string) {
	fmt.Printf("\nFound %d persisted run%s:\n", len(runs), plural(len(runs), "", "s"))
	fmt.Println(strings.Repeat("─", 80))

	if len(runs) == 0 {
		fmt.Println("(none; run 'spotbugs scan --save' to persist one)")
		return
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAtMilli > runs[j].CreatedAtMilli
	})

	for i, m := range runs {
		marker := ""
		if m.RunID == latest {
			marker = "  (latest)"
		}
		fmt.Printf("\n[%d] Run ID:    %s%s\n", i+1, m.RunID, marker)
		fmt.Printf("    Created:   %s\n",
			time.UnixMilli(m.CreatedAtMilli).Format("2006-01-02 15:04:05 MST"))
		fmt.Printf("    Tool:      %s\n", m.ToolVersion)
		fmt.Printf("    Findings:  %d\n", m.Findings)
		fmt.Printf("    Classes:   %d\n", m.Classes)
		fmt.Printf("    Duration:  %s\n", time.Duration(m.DurationMillis)*time.Millisecond)
		fmt.Printf("    Stored:    %s (gzip)\n", formatBytes(int(m.CompressedSize)))
	}
}

// formatTTL renders time remaining until expiry.
func formatTTL(hasExpiry bool, expiresAt time.Time) string {
	if !hasExpiry {
		return "no expiry set"
	}
	remaining := time.Until(expiresAt)
	if remaining < 0 {
		return fmt.Sprintf("EXPIRED (%s ago)", (-remaining).Round(time.Second))
	}
	return fmt.Sprintf("%s remaining", remaining.Round(time.Minute))
}

// shortHash truncates a content hash for display.
func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(n int) string {
	switch {
	case n >= 1024*1024:
		return fmt.Sprintf("%.1f MB (%d bytes)", float64(n)/1024/1024, n)
	case n >= 1024:
		return fmt.Sprintf("%.1f KB (%d bytes)", float64(n)/1024, n)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}

// plural returns singular or plural suffix based on count.
func plural(n int, singular, pluralSuffix string) string {
	if n == 1 {
		return singular
	}
	return pluralSuffix
}

// fatalf prints to stderr and exits 1.
func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "metadump: "+format+"\n", args...)
	os.Exit(1)
}
