// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/classmeta"
)

// MaxClasses bounds the index so a runaway input set fails loudly instead of
// exhausting memory.
const MaxClasses = 500_000

var (
	// ErrDuplicateClass indicates a class with the same fully-qualified
	// name is already indexed.
	ErrDuplicateClass = errors.New("duplicate class")

	// ErrMaxClassesExceeded indicates the index is full.
	ErrMaxClassesExceeded = errors.New("maximum class count exceeded")
)

// ClassIndex is a concurrent, in-memory index of loaded class metadata,
// keyed by fully-qualified name with a secondary index by artifact path.
// It implements Repository.
//
// Thread Safety: safe for concurrent use via sync.RWMutex. Validation runs
// before the lock is taken so malformed input never blocks readers.
type ClassIndex struct {
	mu     sync.RWMutex
	byName map[string]*classmeta.Class
	byFile map[string][]*classmeta.Class
}

// NewClassIndex creates an empty index.
func NewClassIndex() *ClassIndex {
	return &ClassIndex{
		byName: make(map[string]*classmeta.Class),
		byFile: make(map[string][]*classmeta.Class),
	}
}

// Add indexes one class.
//
// Outputs:
//   - error: validation failure, ErrDuplicateClass when the name is taken,
//     or ErrMaxClassesExceeded when the index is full.
func (ix *ClassIndex) Add(c *classmeta.Class) error {
	if err := c.Validate(); err != nil {
		return err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if len(ix.byName) >= MaxClasses {
		return fmt.Errorf("%w: %d", ErrMaxClassesExceeded, MaxClasses)
	}
	if _, exists := ix.byName[c.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateClass, c.Name)
	}

	ix.insertLocked(c)
	return nil
}

// AddBatch indexes all classes or none.
//
// Description:
//
//	Every class is validated and checked against both the batch and the
//	existing index before anything is inserted, so a failure leaves the
//	index exactly as it was.
func (ix *ClassIndex) AddBatch(classes []*classmeta.Class) error {
	seen := make(map[string]bool, len(classes))
	for _, c := range classes {
		if err := c.Validate(); err != nil {
			return err
		}
		if seen[c.Name] {
			return fmt.Errorf("%w in batch: %s", ErrDuplicateClass, c.Name)
		}
		seen[c.Name] = true
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if len(ix.byName)+len(classes) > MaxClasses {
		return fmt.Errorf("%w: %d", ErrMaxClassesExceeded, MaxClasses)
	}
	for _, c := range classes {
		if _, exists := ix.byName[c.Name]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateClass, c.Name)
		}
	}

	for _, c := range classes {
		ix.insertLocked(c)
	}
	return nil
}

func (ix *ClassIndex) insertLocked(c *classmeta.Class) {
	ix.byName[c.Name] = c
	if c.FilePath != "" {
		ix.byFile[c.FilePath] = append(ix.byFile[c.FilePath], c)
	}
}

// Lookup implements Repository.
func (ix *ClassIndex) Lookup(_ context.Context, name string) (*classmeta.Class, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	c, ok := ix.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrClassNotFound, name)
	}
	return c, nil
}

// Get returns the class with the given name, if indexed.
func (ix *ClassIndex) Get(name string) (*classmeta.Class, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	c, ok := ix.byName[name]
	return c, ok
}

// ByFile returns the classes loaded from one artifact path.
func (ix *ClassIndex) ByFile(path string) []*classmeta.Class {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	src := ix.byFile[path]
	out := make([]*classmeta.Class, len(src))
	copy(out, src)
	return out
}

// Names returns every indexed class name, sorted.
func (ix *ClassIndex) Names() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make([]string, 0, len(ix.byName))
	for name := range ix.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Classes returns every indexed class, ordered by name.
func (ix *ClassIndex) Classes() []*classmeta.Class {
	names := ix.Names()

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make([]*classmeta.Class, 0, len(names))
	for _, name := range names {
		out = append(out, ix.byName[name])
	}
	return out
}

// Len returns the number of indexed classes.
func (ix *ClassIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.byName)
}
