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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Package-level Prometheus metrics for scan runs.
// Auto-registered via promauto so no explicit registry wiring is needed.
var (
	// scansTotal counts completed scans by outcome.
	// Labels: status (ok, error, canceled)
	scansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spotbugs",
		Subsystem: "engine",
		Name:      "scans_total",
		Help:      "Total completed scans by outcome",
	}, []string{"status"})

	// scanDurationSeconds measures end-to-end scan duration.
	scanDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "spotbugs",
		Subsystem: "engine",
		Name:      "scan_duration_seconds",
		Help:      "End-to-end scan duration including loading and detection",
		Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	// classesLoadedTotal counts classes loaded into the hierarchy index.
	// Labels: source (class, jar, java, cache)
	classesLoadedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spotbugs",
		Subsystem: "engine",
		Name:      "classes_loaded_total",
		Help:      "Total classes loaded by artifact source",
	}, []string{"source"})

	// findingsTotal counts emitted findings by rule.
	// Labels: rule_id
	findingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spotbugs",
		Subsystem: "engine",
		Name:      "findings_total",
		Help:      "Total findings emitted by rule",
	}, []string{"rule_id"})

	// diagnosticsTotal counts resolution diagnostics by kind.
	// Labels: kind (missing_ancestor, inheritance_cycle, depth_exceeded)
	diagnosticsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spotbugs",
		Subsystem: "engine",
		Name:      "diagnostics_total",
		Help:      "Total hierarchy resolution diagnostics by kind",
	}, []string{"kind"})

	// cacheLookupsTotal counts metadata cache lookups by result.
	// Labels: result (hit, miss)
	cacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spotbugs",
		Subsystem: "engine",
		Name:      "cache_lookups_total",
		Help:      "Metadata cache lookups by result",
	}, []string{"result"})

	// parseFailuresTotal counts artifacts that could not be parsed.
	// Labels: kind (class, jar, java)
	parseFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spotbugs",
		Subsystem: "engine",
		Name:      "parse_failures_total",
		Help:      "Artifacts skipped because parsing failed",
	}, []string{"kind"})
)
