// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package analysis exposes the scan engine over HTTP. It owns the service
// object the handlers share: scan configuration, the optional run store and
// metadata cache, and the hub that streams scan progress to websocket
// subscribers.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/classfile"
	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/classmeta"
	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/engine"
	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/javasrc"
	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/metacache"
	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/report"
	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/runstore"
)

var tracer = otel.Tracer("spotbugs/analysis")

var (
	// ErrInvalidDiff marks a scan request whose diff could not be parsed.
	ErrInvalidDiff = errors.New("invalid diff")

	// ErrRunPersist marks a scan that completed but could not be stored.
	ErrRunPersist = errors.New("run persist failed")
)

// ServiceConfig holds the scan defaults applied to every request.
type ServiceConfig struct {
	// ScanConcurrency bounds parallel artifact loading per scan.
	ScanConcurrency int

	// DetectorIDs is the default detector set when a request names none.
	// Empty means every registered detector.
	DetectorIDs []string
}

// DefaultServiceConfig returns the service defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		ScanConcurrency: engine.DefaultConcurrency,
	}
}

// Service carries the shared state behind the analysis endpoints.
//
// Description:
//
//	One Service instance backs all handlers. The run store and metadata
//	cache are optional: without a store, persistence endpoints answer
//	503; without a cache, scans parse every class file from scratch.
//
// Thread Safety: safe for concurrent use. Each scan builds its own
// engine.Scanner; the store, cache, and hub handle their own locking.
type Service struct {
	cfg         ServiceConfig
	store       *runstore.Store
	cache       *metacache.Cache
	hub         *EventHub
	classParser *classfile.Parser
	srcParser   *javasrc.Parser
	logger      *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithStore enables run persistence.
func WithStore(store *runstore.Store) ServiceOption {
	return func(s *Service) {
		s.store = store
	}
}

// WithCache enables content-addressed class metadata caching across scans.
func WithCache(cache *metacache.Cache) ServiceOption {
	return func(s *Service) {
		s.cache = cache
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a Service with the given configuration.
//
// Inputs:
//
//	cfg - Scan defaults; zero values fall back to DefaultServiceConfig.
//	opts - Optional store, cache, and logger wiring.
//
// Outputs:
//
//	*Service: Ready to serve; register its handlers with RegisterRoutes.
func NewService(cfg ServiceConfig, opts ...ServiceOption) *Service {
	if cfg.ScanConcurrency <= 0 {
		cfg.ScanConcurrency = engine.DefaultConcurrency
	}
	s := &Service{
		cfg:         cfg,
		classParser: classfile.NewParser(),
		srcParser:   javasrc.NewParser(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = NewEventHub(s.logger)
	return s
}

// RunScan executes one scan request end to end.
//
// Description:
//
//	Parses the optional diff, builds a scanner with the request's
//	detector set over the service defaults, runs it, and persists the
//	report when asked. Progress events are broadcast to the hub while
//	the scan runs.
//
// Inputs:
//
//	ctx - Context for cancellation; aborting it aborts the scan.
//	req - The validated scan request.
//
// Outputs:
//
//	*ScanResponse: Run ID, report, and whether it was persisted.
//	error: ErrInvalidDiff, detect.ErrUnknownDetector, engine input
//	errors, or ErrRunPersist when storing the finished run failed.
//
// Thread Safety: safe for concurrent use.
func (s *Service) RunScan(ctx context.Context, req ScanRequest) (*ScanResponse, error) {
	ctx, span := tracer.Start(ctx, "analysis.RunScan")
	defer span.End()

	var scope *report.DiffScope
	if req.Diff != "" {
		parsed, err := report.ParseDiffScope(strings.NewReader(req.Diff))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDiff, err)
		}
		scope = parsed
	}

	detectorIDs := req.Detectors
	if len(detectorIDs) == 0 {
		detectorIDs = s.cfg.DetectorIDs
	}

	opts := []engine.Option{
		engine.WithConcurrency(s.cfg.ScanConcurrency),
		engine.WithLogger(s.logger),
		engine.WithProgress(s.hub.Broadcast),
	}
	if len(detectorIDs) > 0 {
		opts = append(opts, engine.WithDetectorIDs(detectorIDs...))
	}
	if s.cache != nil {
		opts = append(opts, engine.WithCache(s.cache))
	}
	if scope != nil {
		opts = append(opts, engine.WithDiffScope(scope))
	}

	run, err := engine.NewScanner(opts...).Scan(ctx, req.Paths)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	resp := &ScanResponse{RunID: run.ID, Report: run.Report()}
	if req.Persist && s.store != nil {
		if _, err := s.store.Save(ctx, resp.Report); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("%w: %v", ErrRunPersist, err)
		}
		resp.Persisted = true
	}

	span.SetAttributes(
		attribute.String("run.id", run.ID),
		attribute.Int("run.findings", len(run.Findings)),
		attribute.Bool("run.persisted", resp.Persisted),
	)
	return resp, nil
}

// DiffRuns compares two persisted runs by finding key.
//
// Outputs:
//
//	*RunDiffResponse: Findings new in the target, fixed since the base,
//	and the count of unchanged ones.
//	error: runstore.ErrRunNotFound when either run is missing.
func (s *Service) DiffRuns(ctx context.Context, baseID, targetID string) (*RunDiffResponse, error) {
	ctx, span := tracer.Start(ctx, "analysis.DiffRuns")
	defer span.End()

	base, _, err := s.store.Load(ctx, baseID)
	if err != nil {
		return nil, fmt.Errorf("load base run %s: %w", baseID, err)
	}
	target, _, err := s.store.Load(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("load target run %s: %w", targetID, err)
	}

	dr := report.Diff(base.Findings, target.Findings)
	if dr.New == nil {
		dr.New = []report.Finding{}
	}
	if dr.Fixed == nil {
		dr.Fixed = []report.Finding{}
	}

	span.SetAttributes(
		attribute.Int("diff.new", len(dr.New)),
		attribute.Int("diff.fixed", len(dr.Fixed)),
	)
	return &RunDiffResponse{
		BaseRunID:      baseID,
		TargetRunID:    targetID,
		New:            dr.New,
		Fixed:          dr.Fixed,
		UnchangedCount: len(dr.Unchanged),
	}, nil
}

// InspectClass extracts class metadata from a single artifact on disk.
// Used by the debug endpoint to verify what the parsers see.
func (s *Service) InspectClass(ctx context.Context, path string) (*InspectClassResponse, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	switch {
	case strings.HasSuffix(path, ".class"):
		cls, err := s.classParser.Parse(ctx, content, path)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return &InspectClassResponse{Classes: []*classmeta.Class{cls}}, nil

	case strings.HasSuffix(path, ".java"):
		parsed, err := s.srcParser.Parse(ctx, content, path)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return &InspectClassResponse{Classes: parsed.Classes, Notes: parsed.Errors}, nil

	default:
		return nil, fmt.Errorf("inspect %s: %w", path, engine.ErrUnsupportedInput)
	}
}
