// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine drives a scan end to end: walk the inputs, load class
// metadata from class files, jars, and Java sources, index the classes,
// and run the registered detectors over everything that was loaded.
//
// The pipeline is deliberately forgiving about individual artifacts. A
// corrupt class file or an unreadable jar entry is logged, counted, and
// skipped; only input-level problems (a missing path, a canceled context)
// abort the scan.
package engine

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/classfile"
	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/classmeta"
	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/detect"
	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/hierarchy"
	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/javasrc"
	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/metacache"
	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/report"
)

var tracer = otel.Tracer("spotbugs/engine")

const (
	// ToolName is stamped into every report this engine produces.
	ToolName = "spotbugs"

	// Version is the tool version reported alongside ToolName.
	Version = "0.5.0"

	// DefaultConcurrency bounds parallel artifact loading and parallel
	// class visits during detection.
	DefaultConcurrency = 8

	// maxJarEntrySize caps a single decompressed jar entry. Entries
	// larger than this are skipped, not failed.
	maxJarEntrySize = 64 * 1024 * 1024
)

// Scan phases reported through progress events.
const (
	PhaseWalk   = "walk"
	PhaseLoad   = "load"
	PhaseDetect = "detect"
	PhaseDone   = "done"
)

// Event is one progress notification emitted during a scan. Total is the
// number of items in the current phase, Done how many have completed.
type Event struct {
	RunID string `json:"run_id"`
	Phase string `json:"phase"`
	Path  string `json:"path,omitempty"`
	Done  int    `json:"done"`
	Total int    `json:"total"`
}

// Stats counts what a scan touched.
type Stats struct {
	FilesScanned     int `json:"files_scanned"`
	ClassesLoaded    int `json:"classes_loaded"`
	CacheHits        int `json:"cache_hits"`
	CacheMisses      int `json:"cache_misses"`
	ParseFailures    int `json:"parse_failures"`
	DuplicateClasses int `json:"duplicate_classes"`
}

// Run is the in-memory result of one scan.
type Run struct {
	ID          string
	StartedAt   time.Time
	Duration    time.Duration
	Inputs      []string
	Stats       Stats
	Findings    []report.Finding
	Diagnostics []hierarchy.Diagnostic
}

// Report converts the run into its serializable form.
func (r *Run) Report() *report.Report {
	diags := make([]report.Diagnostic, 0, len(r.Diagnostics))
	for _, d := range r.Diagnostics {
		diags = append(diags, report.Diagnostic{
			Kind:     d.Kind.String(),
			Class:    d.Class,
			Ancestor: d.Ancestor,
			Detail:   d.Detail,
		})
	}

	return &report.Report{
		SchemaVersion:    report.SchemaVersion,
		RunID:            r.ID,
		GeneratedAtMilli: r.StartedAt.UnixMilli(),
		Tool:             report.ToolInfo{Name: ToolName, Version: Version},
		Inputs:           append([]string(nil), r.Inputs...),
		Summary: report.Summary{
			ClassesAnalyzed:  r.Stats.ClassesLoaded,
			FilesScanned:     r.Stats.FilesScanned,
			FindingsTotal:    len(r.Findings),
			DiagnosticsTotal: len(diags),
			DurationMillis:   r.Duration.Milliseconds(),
		},
		Findings:    r.Findings,
		Diagnostics: diags,
	}
}

// Scanner owns the parsers and policy for a scan. Construct one with
// NewScanner and reuse it; a Scanner is safe for concurrent Scan calls.
type Scanner struct {
	classParser *classfile.Parser
	srcParser   *javasrc.Parser
	cache       *metacache.Cache
	concurrency int
	detectorIDs []string
	scope       *report.DiffScope
	progress    func(Event)
	logger      *slog.Logger

	emitMu sync.Mutex
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithConcurrency overrides the parallelism for loading and detection.
func WithConcurrency(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithCache enables content-addressed caching of parsed class files.
func WithCache(cache *metacache.Cache) Option {
	return func(s *Scanner) {
		s.cache = cache
	}
}

// WithDetectorIDs restricts the scan to the named detectors. The default
// is every registered detector.
func WithDetectorIDs(ids ...string) Option {
	return func(s *Scanner) {
		s.detectorIDs = ids
	}
}

// WithDiffScope drops findings outside the changed files after detection.
// Hierarchy resolution still sees every loaded class.
func WithDiffScope(scope *report.DiffScope) Option {
	return func(s *Scanner) {
		s.scope = scope
	}
}

// WithProgress installs a progress callback. Events arrive serialized,
// never concurrently.
func WithProgress(fn func(Event)) Option {
	return func(s *Scanner) {
		s.progress = fn
	}
}

// WithLogger sets the logger for scan warnings and summaries.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewScanner creates a Scanner with the given options applied.
func NewScanner(opts ...Option) *Scanner {
	s := &Scanner{
		classParser: classfile.NewParser(),
		srcParser:   javasrc.NewParser(),
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan analyzes the given inputs and returns the run result.
//
// # Description
//
// Inputs may be .class files, .jar archives, .java sources, or directories,
// which are walked recursively. Every class that loads is indexed by its
// fully-qualified name, then each detector visits each class. Hierarchy
// gaps surface as diagnostics on the run, not as errors.
//
// # Inputs
//
//   - ctx: Context for cancellation; checked between artifacts and classes.
//   - inputs: one or more paths. A missing path fails the scan.
//
// # Outputs
//
//   - *Run: findings, diagnostics, and counts for the scan.
//   - error: input-level failures or context cancellation.
//
// Thread Safety: safe for concurrent use.
func (s *Scanner) Scan(ctx context.Context, inputs []string) (*Run, error) {
	ctx, span := tracer.Start(ctx, "engine.Scan")
	defer span.End()

	if len(inputs) == 0 {
		return nil, fmt.Errorf("at least one input path is required")
	}

	run := &Run{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		Inputs:    append([]string(nil), inputs...),
	}
	span.SetAttributes(
		attribute.String("run.id", run.ID),
		attribute.Int("run.inputs", len(inputs)),
	)

	status := "error"
	defer func() {
		scansTotal.WithLabelValues(status).Inc()
		scanDurationSeconds.Observe(time.Since(run.StartedAt).Seconds())
	}()

	fail := func(err error) (*Run, error) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			status = "canceled"
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	artifacts, err := s.collectArtifacts(ctx, inputs)
	if err != nil {
		return fail(err)
	}
	s.emit(Event{RunID: run.ID, Phase: PhaseWalk, Done: len(artifacts), Total: len(artifacts)})

	classes, err := s.loadClasses(ctx, run.ID, artifacts, &run.Stats)
	if err != nil {
		return fail(err)
	}

	idx := hierarchy.NewClassIndex()
	for _, c := range classes {
		if err := idx.Add(c); err != nil {
			switch {
			case errors.Is(err, hierarchy.ErrDuplicateClass):
				run.Stats.DuplicateClasses++
				s.logger.Warn("duplicate class definition skipped",
					slog.String("class", c.Name),
					slog.String("file", c.FilePath))
			case errors.Is(err, hierarchy.ErrMaxClassesExceeded):
				return fail(fmt.Errorf("indexing %s: %w", c.Name, err))
			default:
				run.Stats.ParseFailures++
				s.logger.Warn("rejected class metadata",
					slog.String("class", c.Name),
					slog.String("file", c.FilePath),
					slog.String("error", err.Error()))
			}
		}
	}
	run.Stats.ClassesLoaded = idx.Len()

	findings, diags, err := s.runDetectors(ctx, run.ID, idx)
	if err != nil {
		return fail(err)
	}

	if s.scope != nil {
		findings = s.scope.Filter(findings)
	}
	run.Findings = findings
	run.Diagnostics = diags
	run.Duration = time.Since(run.StartedAt)

	for _, f := range run.Findings {
		findingsTotal.WithLabelValues(f.RuleID).Inc()
	}
	for _, d := range run.Diagnostics {
		diagnosticsTotal.WithLabelValues(d.Kind.String()).Inc()
	}

	status = "ok"
	span.SetAttributes(
		attribute.Int("run.classes", run.Stats.ClassesLoaded),
		attribute.Int("run.findings", len(run.Findings)),
		attribute.Int("run.diagnostics", len(run.Diagnostics)),
	)
	s.emit(Event{RunID: run.ID, Phase: PhaseDone, Done: run.Stats.ClassesLoaded, Total: run.Stats.ClassesLoaded})
	s.logger.Info("scan complete",
		slog.String("run_id", run.ID),
		slog.Int("classes", run.Stats.ClassesLoaded),
		slog.Int("findings", len(run.Findings)),
		slog.Int("diagnostics", len(run.Diagnostics)),
		slog.Duration("duration", run.Duration))
	return run, nil
}

// emit delivers a progress event. Delivery is serialized so callbacks can
// write to a terminal without their own locking.
func (s *Scanner) emit(ev Event) {
	if s.progress == nil {
		return
	}
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.progress(ev)
}

// loadResult accumulates everything one artifact contributed.
type loadResult struct {
	classes     []*classmeta.Class
	failures    int
	cacheHits   int
	cacheMisses int
}

// loadClasses parses every artifact with bounded parallelism. Artifact
// failures are counted in stats; the returned error is reserved for
// context cancellation.
func (s *Scanner) loadClasses(ctx context.Context, runID string, artifacts []artifact, stats *Stats) ([]*classmeta.Class, error) {
	ctx, span := tracer.Start(ctx, "engine.loadClasses")
	defer span.End()

	results := make(chan loadResult, len(artifacts))

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, s.concurrency)
	var done atomic.Int64

	for _, art := range artifacts {
		a := art // capture
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()

			res, err := s.loadArtifact(gctx, a)
			if err != nil {
				return err
			}
			results <- res
			s.emit(Event{
				RunID: runID,
				Phase: PhaseLoad,
				Path:  a.path,
				Done:  int(done.Add(1)),
				Total: len(artifacts),
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	close(results)

	var classes []*classmeta.Class
	for res := range results {
		stats.FilesScanned++
		stats.ParseFailures += res.failures
		stats.CacheHits += res.cacheHits
		stats.CacheMisses += res.cacheMisses
		classes = append(classes, res.classes...)
	}

	span.SetAttributes(
		attribute.Int("load.artifacts", len(artifacts)),
		attribute.Int("load.classes", len(classes)),
		attribute.Int("load.failures", stats.ParseFailures),
	)
	return classes, nil
}

// loadArtifact dispatches on artifact kind. The error return is reserved
// for context cancellation; everything else is recorded in the result.
func (s *Scanner) loadArtifact(ctx context.Context, a artifact) (loadResult, error) {
	var res loadResult
	if err := ctx.Err(); err != nil {
		return res, err
	}

	switch a.kind {
	case kindJar:
		err := s.loadJar(ctx, a.path, &res)
		return res, err

	case kindClass:
		content, err := os.ReadFile(a.path)
		if err != nil {
			s.logger.Warn("skipping unreadable file",
				slog.String("path", a.path),
				slog.String("error", err.Error()))
			res.failures++
			parseFailuresTotal.WithLabelValues("class").Inc()
			return res, nil
		}
		err = s.parseClassBytes(ctx, content, a.path, &res)
		return res, err

	case kindSource:
		content, err := os.ReadFile(a.path)
		if err != nil {
			s.logger.Warn("skipping unreadable file",
				slog.String("path", a.path),
				slog.String("error", err.Error()))
			res.failures++
			parseFailuresTotal.WithLabelValues("java").Inc()
			return res, nil
		}
		parsed, err := s.srcParser.Parse(ctx, content, a.path)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			s.logger.Warn("skipping unparseable source file",
				slog.String("path", a.path),
				slog.String("error", err.Error()))
			res.failures++
			parseFailuresTotal.WithLabelValues("java").Inc()
			return res, nil
		}
		if len(parsed.Errors) > 0 {
			s.logger.Warn("source file parsed with errors",
				slog.String("path", a.path),
				slog.Int("errors", len(parsed.Errors)))
		}
		res.classes = append(res.classes, parsed.Classes...)
		classesLoadedTotal.WithLabelValues("java").Add(float64(len(parsed.Classes)))
		return res, nil

	default:
		return res, fmt.Errorf("unsupported artifact kind %d for %s", a.kind, a.path)
	}
}

// parseClassBytes parses raw class file bytes, consulting the cache when
// one is configured. Cache problems degrade to a plain parse.
func (s *Scanner) parseClassBytes(ctx context.Context, content []byte, path string, res *loadResult) error {
	source := "class"

	var key string
	if s.cache != nil {
		key = metacache.Key(content)
		cls, hit, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("metadata cache lookup failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
		if hit {
			// The bytes are identical but the artifact may live
			// somewhere else now.
			cls.FilePath = path
			res.classes = append(res.classes, cls)
			res.cacheHits++
			cacheLookupsTotal.WithLabelValues("hit").Inc()
			classesLoadedTotal.WithLabelValues("cache").Inc()
			return nil
		}
		res.cacheMisses++
		cacheLookupsTotal.WithLabelValues("miss").Inc()
	}

	cls, err := s.classParser.Parse(ctx, content, path)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("skipping unparseable class file",
			slog.String("path", path),
			slog.String("error", err.Error()))
		res.failures++
		parseFailuresTotal.WithLabelValues(source).Inc()
		return nil
	}

	res.classes = append(res.classes, cls)
	classesLoadedTotal.WithLabelValues(source).Inc()

	if s.cache != nil {
		if err := s.cache.Put(ctx, key, cls); err != nil {
			s.logger.Warn("metadata cache store failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
	}
	return nil
}

// loadJar extracts and parses every class entry in a jar. Entry paths are
// recorded as "archive.jar!pkg/Name.class" so findings stay attributable.
func (s *Scanner) loadJar(ctx context.Context, path string, res *loadResult) error {
	r, err := zip.OpenReader(path)
	if err != nil {
		s.logger.Warn("skipping unreadable jar",
			slog.String("path", path),
			slog.String("error", err.Error()))
		res.failures++
		parseFailuresTotal.WithLabelValues("jar").Inc()
		return nil
	}
	defer r.Close()

	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := f.Name
		if !strings.HasSuffix(name, ".class") {
			continue
		}
		// Multi-release and signature copies under META-INF shadow the
		// base entries; module descriptors declare nothing hideable.
		if strings.HasPrefix(name, "META-INF/") {
			continue
		}
		if filepath.Base(name) == "module-info.class" {
			continue
		}
		if f.UncompressedSize64 > maxJarEntrySize {
			s.logger.Warn("skipping oversized jar entry",
				slog.String("jar", path),
				slog.String("entry", name),
				slog.Uint64("size", f.UncompressedSize64))
			res.failures++
			continue
		}

		content, err := readZipEntry(f)
		if err != nil {
			s.logger.Warn("skipping unreadable jar entry",
				slog.String("jar", path),
				slog.String("entry", name),
				slog.String("error", err.Error()))
			res.failures++
			parseFailuresTotal.WithLabelValues("jar").Inc()
			continue
		}

		if err := s.parseClassBytes(ctx, content, path+"!"+name, res); err != nil {
			return err
		}
	}
	return nil
}

func readZipEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// runDetectors runs every configured detector over every indexed class.
// Classes are visited in parallel; detectors for one class run sequentially.
func (s *Scanner) runDetectors(ctx context.Context, runID string, idx *hierarchy.ClassIndex) ([]report.Finding, []hierarchy.Diagnostic, error) {
	ctx, span := tracer.Start(ctx, "engine.detect")
	defer span.End()

	var (
		diagMu sync.Mutex
		diags  []hierarchy.Diagnostic
	)
	sink := hierarchy.DiagnosticSinkFunc(func(d hierarchy.Diagnostic) {
		diagMu.Lock()
		diags = append(diags, d)
		diagMu.Unlock()
	})

	resolver := hierarchy.NewResolver(
		hierarchy.WithBuiltins(idx),
		hierarchy.WithDiagnosticSink(sink),
	)
	collector := report.NewCollector()

	detectors, err := detect.NewSet(s.detectorIDs, resolver, collector, s.logger)
	if err != nil {
		return nil, nil, err
	}

	classes := idx.Classes()
	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, s.concurrency)
	var done atomic.Int64

	for _, cls := range classes {
		c := cls // capture
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()

			for _, d := range detectors {
				if err := d.VisitClass(gctx, c); err != nil {
					return fmt.Errorf("detector %s on %s: %w", d.ID(), c.Name, err)
				}
			}
			s.emit(Event{
				RunID: runID,
				Phase: PhaseDetect,
				Path:  c.Name,
				Done:  int(done.Add(1)),
				Total: len(classes),
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	for _, d := range detectors {
		if err := d.Finish(ctx); err != nil {
			return nil, nil, fmt.Errorf("detector %s finish: %w", d.ID(), err)
		}
	}

	sort.Slice(diags, func(i, j int) bool {
		if diags[i].Class != diags[j].Class {
			return diags[i].Class < diags[j].Class
		}
		return diags[i].Ancestor < diags[j].Ancestor
	})

	span.SetAttributes(
		attribute.Int("detect.classes", len(classes)),
		attribute.Int("detect.findings", collector.Len()),
		attribute.Int("detect.diagnostics", len(diags)),
	)
	return collector.Findings(), diags, nil
}
