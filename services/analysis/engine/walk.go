// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedInput marks an explicit input file whose type the scanner
// cannot load classes from.
var ErrUnsupportedInput = errors.New("unsupported file type")

type artifactKind int

const (
	kindClass artifactKind = iota
	kindJar
	kindSource
)

func (k artifactKind) String() string {
	switch k {
	case kindClass:
		return "class"
	case kindJar:
		return "jar"
	case kindSource:
		return "java"
	default:
		return "unknown"
	}
}

// artifact is one file the scanner will load classes from.
type artifact struct {
	path string
	kind artifactKind
}

// skipDirs are directory names never descended into.
var skipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
}

// classifyPath maps a file path to its artifact kind. The second return is
// false for files the scanner does not understand.
func classifyPath(path string) (artifactKind, bool) {
	base := filepath.Base(path)
	switch {
	case strings.HasSuffix(base, ".class"):
		// Module descriptors declare no methods a subclass could hide.
		if base == "module-info.class" {
			return 0, false
		}
		return kindClass, true
	case strings.HasSuffix(base, ".jar"):
		return kindJar, true
	case strings.HasSuffix(base, ".java"):
		if base == "package-info.java" || base == "module-info.java" {
			return 0, false
		}
		return kindSource, true
	default:
		return 0, false
	}
}

// collectArtifacts expands the input paths into the flat list of files to
// load. Directories are walked recursively; explicit file arguments of an
// unsupported type are an error, while unsupported files inside a walked
// directory are silently ignored.
func (s *Scanner) collectArtifacts(ctx context.Context, inputs []string) ([]artifact, error) {
	var artifacts []artifact

	for _, input := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		info, err := os.Stat(input)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", input, err)
		}

		if !info.IsDir() {
			kind, ok := classifyPath(input)
			if !ok {
				return nil, fmt.Errorf("input %s: %w", input, ErrUnsupportedInput)
			}
			artifacts = append(artifacts, artifact{path: input, kind: kind})
			continue
		}

		err = filepath.WalkDir(input, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
			if d.IsDir() {
				if skipDirs[d.Name()] {
					return filepath.SkipDir
				}
				return nil
			}
			if kind, ok := classifyPath(path); ok {
				artifacts = append(artifacts, artifact{path: path, kind: kind})
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", input, err)
		}
	}

	s.logger.Debug("collected artifacts",
		slog.Int("count", len(artifacts)),
		slog.Int("inputs", len(inputs)))
	return artifacts, nil
}
