// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package hierarchy resolves class names to metadata and classes to their
// ancestor chains.
//
// The package provides three pieces: a Repository interface detectors use to
// look up classes, a concurrent ClassIndex implementing it over loaded
// metadata, and a Resolver that walks superclass links from a class up to
// java.lang.Object, degrading to a truncated chain plus diagnostics when an
// ancestor's metadata is unavailable.
package hierarchy

import (
	"context"
	"errors"

	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/classmeta"
)

// ErrClassNotFound indicates the repository holds no metadata for the
// requested class name.
var ErrClassNotFound = errors.New("class not found")

// Repository resolves fully-qualified class names to loaded metadata.
//
// Implementations must be safe for concurrent use; detectors running on
// separate classes share one repository.
type Repository interface {
	// Lookup returns the metadata for a fully-qualified class name, or an
	// error wrapping ErrClassNotFound when none is loaded.
	Lookup(ctx context.Context, name string) (*classmeta.Class, error)
}

// builtinClasses are chain terminators for the platform types user code most
// commonly extends. None of them declares a static method that could be
// hidden, so modeling them without methods cannot suppress a real finding —
// it only keeps ordinary scans from drowning in missing-ancestor
// diagnostics for types that are never on the scan path.
var builtinClasses = func() map[string]*classmeta.Class {
	chain := map[string]string{
		classmeta.ObjectClass:        "",
		"java.lang.Enum":             classmeta.ObjectClass,
		"java.lang.Record":           classmeta.ObjectClass,
		"java.lang.Throwable":        classmeta.ObjectClass,
		"java.lang.Exception":        "java.lang.Throwable",
		"java.lang.RuntimeException": "java.lang.Exception",
		"java.lang.Error":            "java.lang.Throwable",
	}
	out := make(map[string]*classmeta.Class, len(chain))
	for name, super := range chain {
		out[name] = &classmeta.Class{Name: name, SuperName: super, Flags: classmeta.FlagPublic}
	}
	return out
}()

// builtinRepository falls back to the synthesized platform classes when the
// primary repository has no metadata for a name.
type builtinRepository struct {
	primary Repository
}

// WithBuiltins wraps a repository so lookups that miss fall back to the
// synthesized platform classes. Scan-loaded metadata always wins over the
// builtin of the same name.
func WithBuiltins(primary Repository) Repository {
	return &builtinRepository{primary: primary}
}

func (r *builtinRepository) Lookup(ctx context.Context, name string) (*classmeta.Class, error) {
	c, err := r.primary.Lookup(ctx, name)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrClassNotFound) {
		return nil, err
	}
	if b, ok := builtinClasses[name]; ok {
		return b, nil
	}
	return nil, err
}
