// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package metacache caches parsed class metadata in BadgerDB, keyed by
// content hash. Re-scanning a project where most artifacts are unchanged
// skips the parse for every hit; a stale or corrupt entry is simply a miss.
package metacache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/classmeta"
)

// keyPrefixClassMeta versions the cache: bumping v1 orphans old entries
// instead of trying to migrate them.
const keyPrefixClassMeta = "meta:class:v1:"

// DefaultTTL is how long cached entries live without being rewritten.
const DefaultTTL = 14 * 24 * time.Hour

// Cache stores parsed classes by content hash.
//
// Thread Safety: safe for concurrent use. BadgerDB handles its own
// concurrency control.
type Cache struct {
	db     *badger.DB
	ttl    time.Duration
	logger *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides the entry lifetime. Zero or negative keeps the default.
func WithTTL(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithLogger sets the logger used for corrupt-entry warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a cache over an opened BadgerDB instance. The DB is owned by
// the caller and must outlive the cache.
func New(db *badger.DB, opts ...Option) (*Cache, error) {
	if db == nil {
		return nil, fmt.Errorf("badger db must not be nil")
	}
	c := &Cache{
		db:     db,
		ttl:    DefaultTTL,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Key returns the cache key material for an artifact's raw bytes.
func Key(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}

// Get looks up the class cached under a content hash.
//
// Outputs:
//   - *classmeta.Class: the cached class on a hit.
//   - bool: whether the lookup hit.
//   - error: storage failures only. A missing, expired, or undecodable
//     entry is a miss, not an error.
func (c *Cache) Get(ctx context.Context, contentHash string) (*classmeta.Class, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if contentHash == "" {
		return nil, false, fmt.Errorf("content hash must not be empty")
	}

	key := []byte(keyPrefixClassMeta + contentHash)
	var raw []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cache entry: %w", err)
	}

	var cls classmeta.Class
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&cls); err != nil {
		c.logger.Warn("dropping undecodable cache entry",
			slog.String("content_hash", contentHash),
			slog.Any("error", err))
		return nil, false, nil
	}
	return &cls, true, nil
}

// Put stores a parsed class under its content hash with the configured TTL.
func (c *Cache) Put(ctx context.Context, contentHash string, cls *classmeta.Class) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if contentHash == "" {
		return fmt.Errorf("content hash must not be empty")
	}
	if cls == nil {
		return fmt.Errorf("class must not be nil")
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(cls); err != nil {
		return fmt.Errorf("encoding class %s: %w", cls.Name, err)
	}

	key := []byte(keyPrefixClassMeta + contentHash)
	err := c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key, buf.Bytes()).WithTTL(c.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("writing cache entry for %s: %w", cls.Name, err)
	}
	return nil
}

// Len counts the live cache entries, for the debug surface.
func (c *Cache) Len(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	count := 0
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefixClassMeta)
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("counting cache entries: %w", err)
	}
	return count, nil
}
