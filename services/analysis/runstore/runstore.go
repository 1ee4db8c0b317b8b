// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package runstore persists completed analysis runs in BadgerDB so the
// server can list them, serve them back, and diff any two of them.
package runstore

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/report"
)

// BadgerDB key layout for stored runs.
const (
	keyPrefixRun   = "run:v1:"
	keySuffixData  = ":data"
	keySuffixMeta  = ":meta"
	keyLatestRun   = "run:latest"
	defaultListMax = 50
)

// ErrRunNotFound indicates no run is stored under the requested ID.
var ErrRunNotFound = errors.New("run not found")

// RunMeta is the listing-sized summary of a stored run.
type RunMeta struct {
	RunID          string `json:"run_id"`
	CreatedAtMilli int64  `json:"created_at_milli"`
	ToolVersion    string `json:"tool_version"`
	Findings       int    `json:"findings"`
	Classes        int    `json:"classes"`
	DurationMillis int64  `json:"duration_millis"`
	CompressedSize int64  `json:"compressed_size"`
	ContentHash    string `json:"content_hash"`
}

// Store manages saving and loading runs in BadgerDB.
//
// Thread Safety: safe for concurrent use. BadgerDB handles its own
// concurrency control.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

// NewStore creates a store over an opened BadgerDB instance. The DB is owned
// by the caller and must outlive the store.
func NewStore(db *badger.DB, logger *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("badger db must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	return &Store{db: db, logger: logger}, nil
}

// Save persists a run.
//
// Description:
//
//	Serializes the report to JSON, gzip-compresses it, and stores it along
//	with a listing-sized metadata record. The "latest" pointer is updated
//	in the same transaction.
//
// Key Schema:
//
//	run:v1:{runID}:data → gzip(JSON(report.Report))
//	run:v1:{runID}:meta → JSON(RunMeta)
//	run:latest          → runID
func (s *Store) Save(ctx context.Context, rep *report.Report) (*RunMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if rep == nil {
		return nil, fmt.Errorf("report must not be nil")
	}
	if rep.RunID == "" {
		return nil, fmt.Errorf("report run ID must not be empty")
	}

	jsonData, err := json.Marshal(rep)
	if err != nil {
		return nil, fmt.Errorf("marshaling report: %w", err)
	}

	var compressed bytes.Buffer
	gw, err := gzip.NewWriterLevel(&compressed, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("creating gzip writer: %w", err)
	}
	if _, err := gw.Write(jsonData); err != nil {
		return nil, fmt.Errorf("compressing report: %w", err)
	}
	if err := gw.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip writer: %w", err)
	}
	compressedData := compressed.Bytes()

	meta := &RunMeta{
		RunID:          rep.RunID,
		CreatedAtMilli: rep.GeneratedAtMilli,
		ToolVersion:    rep.Tool.Version,
		Findings:       rep.Summary.FindingsTotal,
		Classes:        rep.Summary.ClassesAnalyzed,
		DurationMillis: rep.Summary.DurationMillis,
		CompressedSize: int64(len(compressedData)),
		ContentHash:    hashBytes(compressedData),
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshaling run metadata: %w", err)
	}

	dataKey := keyPrefixRun + rep.RunID + keySuffixData
	metaKey := keyPrefixRun + rep.RunID + keySuffixMeta

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(dataKey), compressedData); err != nil {
			return fmt.Errorf("storing data: %w", err)
		}
		if err := txn.Set([]byte(metaKey), metaJSON); err != nil {
			return fmt.Errorf("storing metadata: %w", err)
		}
		if err := txn.Set([]byte(keyLatestRun), []byte(rep.RunID)); err != nil {
			return fmt.Errorf("updating latest pointer: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("writing run to badger: %w", err)
	}

	s.logger.Info("run saved",
		slog.String("run_id", rep.RunID),
		slog.Int("findings", meta.Findings),
		slog.Int("classes", meta.Classes),
		slog.Int64("compressed_size", meta.CompressedSize),
	)
	return meta, nil
}

// Load retrieves a run by its ID.
func (s *Store) Load(ctx context.Context, runID string) (*report.Report, *RunMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if runID == "" {
		return nil, nil, fmt.Errorf("run ID must not be empty")
	}

	dataKey := keyPrefixRun + runID + keySuffixData
	metaKey := keyPrefixRun + runID + keySuffixMeta

	var compressedData, metaJSON []byte
	err := s.db.View(func(txn *badger.Txn) error {
		dataItem, err := txn.Get([]byte(dataKey))
		if err != nil {
			return err
		}
		compressedData, err = dataItem.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("copying data for %s: %w", runID, err)
		}

		metaItem, err := txn.Get([]byte(metaKey))
		if err != nil {
			return err
		}
		metaJSON, err = metaItem.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("copying metadata for %s: %w", runID, err)
		}
		return nil
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reading run %s: %w", runID, err)
	}

	var meta RunMeta
	if err := json.Unmarshal(metaJSON, &meta); err != nil {
		return nil, nil, fmt.Errorf("unmarshaling metadata for %s: %w", runID, err)
	}
	if meta.ContentHash != "" && meta.ContentHash != hashBytes(compressedData) {
		return nil, nil, fmt.Errorf("integrity check failed for run %s", runID)
	}

	gr, err := gzip.NewReader(bytes.NewReader(compressedData))
	if err != nil {
		return nil, nil, fmt.Errorf("decompressing run %s: %w", runID, err)
	}
	defer gr.Close()

	jsonData, err := io.ReadAll(gr)
	if err != nil {
		return nil, nil, fmt.Errorf("reading decompressed data for %s: %w", runID, err)
	}

	var rep report.Report
	if err := json.Unmarshal(jsonData, &rep); err != nil {
		return nil, nil, fmt.Errorf("unmarshaling report for %s: %w", runID, err)
	}
	return &rep, &meta, nil
}

// Latest loads the most recently saved run.
func (s *Store) Latest(ctx context.Context) (*report.Report, *RunMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var runID string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyLatestRun))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			runID = string(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil, fmt.Errorf("%w: no runs stored", ErrRunNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reading latest pointer: %w", err)
	}

	return s.Load(ctx, runID)
}

// List returns run summaries, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]*RunMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultListMax
	}

	var results []*RunMeta
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefixRun)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.Key())
			if !isMetaKey(key) {
				continue
			}

			var meta RunMeta
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &meta)
			})
			if err != nil {
				s.logger.Warn("skipping corrupt run metadata",
					slog.String("key", key), slog.Any("error", err))
				continue
			}
			results = append(results, &meta)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].CreatedAtMilli != results[j].CreatedAtMilli {
			return results[i].CreatedAtMilli > results[j].CreatedAtMilli
		}
		return results[i].RunID > results[j].RunID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Delete removes a run. Deleting the latest run clears the latest pointer.
func (s *Store) Delete(ctx context.Context, runID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if runID == "" {
		return fmt.Errorf("run ID must not be empty")
	}

	dataKey := keyPrefixRun + runID + keySuffixData
	metaKey := keyPrefixRun + runID + keySuffixMeta

	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(metaKey)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
			}
			return fmt.Errorf("checking run: %w", err)
		}
		if err := txn.Delete([]byte(dataKey)); err != nil && err != badger.ErrKeyNotFound {
			return fmt.Errorf("deleting data: %w", err)
		}
		if err := txn.Delete([]byte(metaKey)); err != nil && err != badger.ErrKeyNotFound {
			return fmt.Errorf("deleting metadata: %w", err)
		}

		item, err := txn.Get([]byte(keyLatestRun))
		if err == nil {
			var currentLatest string
			_ = item.Value(func(val []byte) error {
				currentLatest = string(val)
				return nil
			})
			if currentLatest == runID {
				if err := txn.Delete([]byte(keyLatestRun)); err != nil && err != badger.ErrKeyNotFound {
					return fmt.Errorf("deleting latest pointer: %w", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrRunNotFound) {
			return err
		}
		return fmt.Errorf("deleting run %s: %w", runID, err)
	}

	s.logger.Info("run deleted", slog.String("run_id", runID))
	return nil
}

// hashBytes returns the hex-encoded SHA256 hash of a byte slice.
func hashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// isMetaKey returns true if the key ends with the metadata suffix.
func isMetaKey(key string) bool {
	return len(key) > len(keySuffixMeta) && key[len(key)-len(keySuffixMeta):] == keySuffixMeta
}
