// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// DiffScope restricts findings to files touched by a unified diff, for
// review workflows that only care about changed code.
type DiffScope struct {
	files map[string]bool
}

// ParseDiffScope reads a unified diff (git diff output works) and collects
// the post-image file names. Deleted files are ignored since nothing can be
// reported against them.
func ParseDiffScope(r io.Reader) (*DiffScope, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading diff: %w", err)
	}
	fileDiffs, err := diff.ParseMultiFileDiff(data)
	if err != nil {
		return nil, fmt.Errorf("parsing diff: %w", err)
	}

	files := make(map[string]bool, len(fileDiffs))
	for _, fd := range fileDiffs {
		name := fd.NewName
		if name == "" || name == "/dev/null" {
			continue
		}
		files[normalizeDiffPath(name)] = true
	}
	return &DiffScope{files: files}, nil
}

// normalizeDiffPath strips the git "a/"/"b/" prefixes and converts to
// slash-separated form.
func normalizeDiffPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	if strings.HasPrefix(p, "a/") || strings.HasPrefix(p, "b/") {
		p = p[2:]
	}
	return p
}

// Len returns the number of changed files in scope.
func (s *DiffScope) Len() int {
	return len(s.files)
}

// Contains reports whether the given finding location falls inside the
// changed set. Class-file findings usually only know the bare source file
// name (from the SourceFile attribute) while diffs carry repository-relative
// paths, so matching accepts a path suffix relation in either direction and
// falls back to base-name equality. Over-inclusion is preferred to silently
// dropping findings.
func (s *DiffScope) Contains(file string) bool {
	if file == "" {
		return false
	}
	file = strings.ReplaceAll(file, "\\", "/")
	if s.files[file] {
		return true
	}
	for changed := range s.files {
		if strings.HasSuffix(changed, "/"+file) || strings.HasSuffix(file, "/"+changed) {
			return true
		}
		if path.Base(changed) == path.Base(file) {
			return true
		}
	}
	return false
}

// Filter returns the findings whose locations fall inside the scope.
func (s *DiffScope) Filter(findings []Finding) []Finding {
	out := make([]Finding, 0, len(findings))
	for _, f := range findings {
		if s.Contains(f.Location.File) {
			out = append(out, f)
		}
	}
	return out
}
