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
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"

	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/config"
)

// resolveStoreDir returns the BadgerDB directory for persisted runs and
// cached class metadata. Config (which already folds in SPOTBUGS_STORE_DIR)
// wins; otherwise ~/.spotbugs/store.
func resolveStoreDir(cfg *config.Config) string {
	if cfg.Store.Path != "" {
		return cfg.Store.Path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".spotbugs", "store")
}

// openStore opens the run/metadata BadgerDB. readOnly opens require the
// directory to exist already; read-write opens create it.
func openStore(cfg *config.Config, readOnly bool) (*badger.DB, error) {
	if cfg.Store.InMemory {
		return badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	}

	dir := resolveStoreDir(cfg)
	if dir == "" {
		return nil, fmt.Errorf("no store directory: set store.path or SPOTBUGS_STORE_DIR")
	}

	if readOnly {
		if _, err := os.Stat(dir); err != nil {
			return nil, fmt.Errorf("store directory %s: %w", dir, err)
		}
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory %s: %w", dir, err)
	}

	opts := badger.DefaultOptions(dir).
		WithLogger(nil).
		WithReadOnly(readOnly)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open store at %s: %w", dir, err)
	}
	return db, nil
}
