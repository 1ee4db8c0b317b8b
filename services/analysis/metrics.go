// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analysis

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Package-level Prometheus metrics for the HTTP service.
// Auto-registered via promauto so no explicit registry wiring is needed.
var (
	// scanRequestsTotal counts scan API requests by outcome.
	// Labels: status (ok, bad_request, unavailable, error)
	scanRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spotbugs",
		Subsystem: "server",
		Name:      "scan_requests_total",
		Help:      "Scan API requests by outcome",
	}, []string{"status"})

	// eventSubscribers tracks currently connected event stream clients.
	eventSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "spotbugs",
		Subsystem: "server",
		Name:      "event_subscribers",
		Help:      "Currently connected progress event subscribers",
	})

	// eventsDroppedTotal counts progress events dropped because a
	// subscriber could not keep up.
	eventsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "spotbugs",
		Subsystem: "server",
		Name:      "events_dropped_total",
		Help:      "Progress events dropped on slow subscribers",
	})

	// authFailuresTotal counts rejected requests by reason.
	// Labels: reason (missing, invalid)
	authFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spotbugs",
		Subsystem: "server",
		Name:      "auth_failures_total",
		Help:      "Requests rejected by bearer token auth",
	}, []string{"reason"})

	// rateLimitedTotal counts requests rejected by the rate limiter.
	rateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "spotbugs",
		Subsystem: "server",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the per-client rate limiter",
	})
)
