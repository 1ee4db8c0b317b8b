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
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/classmeta"
	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/detect"
	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/report"
	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/runstore"
)

// requestIDHeader carries the client-supplied correlation ID.
const requestIDHeader = "X-Request-ID"

// ErrorResponse is the uniform error body for every endpoint. The request
// ID travels in the X-Request-ID response header, not the body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ScanRequest is the body of POST /v1/analysis/scan.
type ScanRequest struct {
	// Paths are files or directories on the server host to analyze.
	Paths []string `json:"paths" binding:"required,min=1"`

	// Detectors restricts the scan to the named detector IDs. Empty
	// runs the service default set.
	Detectors []string `json:"detectors,omitempty"`

	// Diff, when set, is a unified diff; findings whose locations fall
	// outside the changed files are dropped from the response.
	Diff string `json:"diff,omitempty"`

	// Persist stores the run so it can be fetched and diffed later.
	Persist bool `json:"persist,omitempty"`
}

// ScanResponse is the result of a synchronous scan.
type ScanResponse struct {
	RunID     string         `json:"run_id"`
	Persisted bool           `json:"persisted"`
	Report    *report.Report `json:"report"`
}

// ListRunsResponse lists persisted run summaries, newest first.
type ListRunsResponse struct {
	Runs []*runstore.RunMeta `json:"runs"`
}

// RunDiffResponse compares two persisted runs.
type RunDiffResponse struct {
	BaseRunID      string           `json:"base_run_id"`
	TargetRunID    string           `json:"target_run_id"`
	New            []report.Finding `json:"new"`
	Fixed          []report.Finding `json:"fixed"`
	UnchangedCount int              `json:"unchanged_count"`
}

// DetectorsResponse lists the registered detectors with their catalog
// metadata.
type DetectorsResponse struct {
	Detectors []detect.RuleInfo `json:"detectors"`
}

// InspectClassResponse returns the metadata extracted from one artifact.
type InspectClassResponse struct {
	Classes []*classmeta.Class `json:"classes"`
	Notes   []string           `json:"notes,omitempty"`
}

// HealthResponse reports liveness.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse reports readiness of the service and its optional parts.
type ReadyResponse struct {
	Ready        bool `json:"ready"`
	StoreEnabled bool `json:"store_enabled"`
	CacheEnabled bool `json:"cache_enabled"`
}

// getOrCreateRequestID returns the client-supplied request ID, or mints one
// and attaches it to both the gin context and the response headers.
func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetHeader(requestIDHeader); id != "" {
		c.Header(requestIDHeader, id)
		return id
	}
	if v, ok := c.Get("request_id"); ok {
		if id, ok := v.(string); ok && id != "" {
			return id
		}
	}
	id := uuid.NewString()
	c.Set("request_id", id)
	c.Header(requestIDHeader, id)
	return id
}
