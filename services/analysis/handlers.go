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
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/detect"
	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/engine"
	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/report"
	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/runstore"
)

// Handlers holds the HTTP handlers for the analysis endpoints.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers backed by the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// HandleScan handles POST /v1/analysis/scan.
//
// Description:
//
//	Runs a synchronous scan over the requested paths and returns the
//	full report. With persist set, the run is also stored so it can be
//	fetched and diffed later. Progress is broadcast on the event stream
//	while the scan runs.
//
// Request Body:
//
//	ScanRequest (paths required, detectors/diff/persist optional)
//
// Response:
//
//	200 OK: ScanResponse
//	400 Bad Request: Malformed body, unknown detector, bad diff, or bad input path
//	500 Internal Server Error: Scan or persistence failure
//	503 Service Unavailable: Persist requested but no store configured
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleScan(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleScan")

	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		scanRequestsTotal.WithLabelValues("bad_request").Inc()
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body: " + err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return
	}

	if req.Persist && h.svc.store == nil {
		scanRequestsTotal.WithLabelValues("unavailable").Inc()
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "run persistence not configured",
			Code:  "STORE_NOT_AVAILABLE",
		})
		return
	}

	resp, err := h.svc.RunScan(c.Request.Context(), req)
	if err != nil {
		h.writeScanError(c, logger, err)
		return
	}

	scanRequestsTotal.WithLabelValues("ok").Inc()
	logger.Info("scan served",
		slog.String("run_id", resp.RunID),
		slog.Int("findings", len(resp.Report.Findings)),
		slog.Bool("persisted", resp.Persisted),
	)
	c.JSON(http.StatusOK, resp)
}

// writeScanError translates a RunScan failure into the HTTP response.
func (h *Handlers) writeScanError(c *gin.Context, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, ErrInvalidDiff):
		scanRequestsTotal.WithLabelValues("bad_request").Inc()
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_DIFF",
		})
	case errors.Is(err, detect.ErrUnknownDetector):
		scanRequestsTotal.WithLabelValues("bad_request").Inc()
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "UNKNOWN_DETECTOR",
		})
	case errors.Is(err, os.ErrNotExist):
		scanRequestsTotal.WithLabelValues("bad_request").Inc()
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INPUT_NOT_FOUND",
		})
	case errors.Is(err, engine.ErrUnsupportedInput):
		scanRequestsTotal.WithLabelValues("bad_request").Inc()
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "UNSUPPORTED_INPUT",
		})
	case errors.Is(err, ErrRunPersist):
		logger.Error("run persist failed", slog.Any("error", err))
		scanRequestsTotal.WithLabelValues("error").Inc()
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "RUN_SAVE_FAILED",
		})
	default:
		logger.Error("scan failed", slog.Any("error", err))
		scanRequestsTotal.WithLabelValues("error").Inc()
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "scan failed: " + err.Error(),
			Code:  "SCAN_FAILED",
		})
	}
}

// HandleListRuns handles GET /v1/analysis/runs.
//
// Description:
//
//	Lists persisted run summaries, newest first.
//
// Query Parameters:
//
//	limit: Maximum results, default 50
//
// Response:
//
//	200 OK: ListRunsResponse
//	503 Service Unavailable: Run store not configured
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleListRuns(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleListRuns")

	if h.svc.store == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "run persistence not configured",
			Code:  "STORE_NOT_AVAILABLE",
		})
		return
	}

	limit := 50
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	runs, err := h.svc.store.List(c.Request.Context(), limit)
	if err != nil {
		logger.Error("failed to list runs", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "failed to list runs: " + err.Error(),
			Code:  "RUN_LIST_FAILED",
		})
		return
	}
	if runs == nil {
		runs = []*runstore.RunMeta{}
	}

	logger.Info("listing runs", slog.Int("count", len(runs)))

	c.JSON(http.StatusOK, ListRunsResponse{Runs: runs})
}

// HandleGetRun handles GET /v1/analysis/runs/:id.
//
// Description:
//
//	Loads a persisted run and renders it in the requested format. SARIF
//	and text are streamed straight to the response writer.
//
// Path Parameters:
//
//	id: Run ID (required)
//
// Query Parameters:
//
//	format: json (default), sarif, or text
//
// Response:
//
//	200 OK: Report in the requested format
//	400 Bad Request: Unsupported format
//	404 Not Found: Run not found
//	503 Service Unavailable: Run store not configured
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleGetRun(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleGetRun")

	if h.svc.store == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "run persistence not configured",
			Code:  "STORE_NOT_AVAILABLE",
		})
		return
	}

	runID := c.Param("id")
	rep, _, err := h.svc.store.Load(c.Request.Context(), runID)
	if err != nil {
		if errors.Is(err, runstore.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: "run not found",
				Code:  "RUN_NOT_FOUND",
			})
			return
		}
		logger.Error("failed to load run", slog.String("run_id", runID), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "failed to load run: " + err.Error(),
			Code:  "RUN_LOAD_FAILED",
		})
		return
	}

	logger.Info("run loaded",
		slog.String("run_id", runID),
		slog.Int("findings", len(rep.Findings)),
	)
	h.writeReport(c, logger, rep)
}

// HandleLatestRun handles GET /v1/analysis/runs/latest.
//
// Description:
//
//	Loads the most recently persisted run and renders it in the
//	requested format.
//
// Query Parameters:
//
//	format: json (default), sarif, or text
//
// Response:
//
//	200 OK: Report in the requested format
//	404 Not Found: No runs stored yet
//	503 Service Unavailable: Run store not configured
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleLatestRun(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleLatestRun")

	if h.svc.store == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "run persistence not configured",
			Code:  "STORE_NOT_AVAILABLE",
		})
		return
	}

	rep, meta, err := h.svc.store.Latest(c.Request.Context())
	if err != nil {
		if errors.Is(err, runstore.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: "no runs stored",
				Code:  "NO_RUNS",
			})
			return
		}
		logger.Error("failed to load latest run", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "failed to load latest run: " + err.Error(),
			Code:  "RUN_LOAD_FAILED",
		})
		return
	}

	logger.Info("latest run loaded", slog.String("run_id", meta.RunID))
	h.writeReport(c, logger, rep)
}

// HandleDiffRuns handles GET /v1/analysis/runs/diff.
//
// Description:
//
//	Compares two persisted runs by finding key and returns what is new
//	in the target, fixed since the base, and how many findings carried
//	over unchanged.
//
// Query Parameters:
//
//	base: Base run ID (required)
//	target: Target run ID (required)
//
// Response:
//
//	200 OK: RunDiffResponse
//	400 Bad Request: Missing required parameter
//	404 Not Found: Either run not found
//	503 Service Unavailable: Run store not configured
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleDiffRuns(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleDiffRuns")

	if h.svc.store == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "run persistence not configured",
			Code:  "STORE_NOT_AVAILABLE",
		})
		return
	}

	baseID := c.Query("base")
	targetID := c.Query("target")
	if baseID == "" || targetID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "base and target parameters are required",
			Code:  "MISSING_PARAMETER",
		})
		return
	}

	resp, err := h.svc.DiffRuns(c.Request.Context(), baseID, targetID)
	if err != nil {
		if errors.Is(err, runstore.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: err.Error(),
				Code:  "RUN_NOT_FOUND",
			})
			return
		}
		logger.Error("failed to diff runs", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "failed to diff runs: " + err.Error(),
			Code:  "RUN_DIFF_FAILED",
		})
		return
	}

	logger.Info("runs diffed",
		slog.String("base", baseID),
		slog.String("target", targetID),
		slog.Int("new", len(resp.New)),
		slog.Int("fixed", len(resp.Fixed)),
	)
	c.JSON(http.StatusOK, resp)
}

// HandleDeleteRun handles DELETE /v1/analysis/runs/:id.
//
// Description:
//
//	Deletes a persisted run.
//
// Path Parameters:
//
//	id: Run ID (required)
//
// Response:
//
//	200 OK: {"deleted": true}
//	404 Not Found: Run not found
//	503 Service Unavailable: Run store not configured
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleDeleteRun(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleDeleteRun")

	if h.svc.store == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "run persistence not configured",
			Code:  "STORE_NOT_AVAILABLE",
		})
		return
	}

	runID := c.Param("id")
	if err := h.svc.store.Delete(c.Request.Context(), runID); err != nil {
		if errors.Is(err, runstore.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: "run not found",
				Code:  "RUN_NOT_FOUND",
			})
			return
		}
		logger.Error("failed to delete run", slog.String("run_id", runID), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "failed to delete run: " + err.Error(),
			Code:  "RUN_DELETE_FAILED",
		})
		return
	}

	logger.Info("run deleted", slog.String("run_id", runID))
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// HandleListDetectors handles GET /v1/analysis/detectors.
//
// Description:
//
//	Lists every registered detector with its catalog metadata.
//
// Response:
//
//	200 OK: DetectorsResponse
//	500 Internal Server Error: Catalog load failure
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleListDetectors(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleListDetectors")

	catalog, err := detect.GetCatalog(c.Request.Context())
	if err != nil {
		logger.Error("failed to load rule catalog", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "failed to load rule catalog: " + err.Error(),
			Code:  "CATALOG_LOAD_FAILED",
		})
		return
	}

	c.JSON(http.StatusOK, DetectorsResponse{Detectors: catalog.Rules})
}

// HandleInspectClass handles GET /v1/analysis/debug/class/inspect.
//
// Description:
//
//	Parses a single class file or Java source on the server host and
//	returns the extracted class metadata. Used for QA debugging to
//	verify what the parsers see in an artifact.
//
// Query Parameters:
//
//	path: Artifact path on the server host (required)
//
// Response:
//
//	200 OK: InspectClassResponse
//	400 Bad Request: Missing parameter, unsupported type, or parse failure
//	404 Not Found: Artifact not found
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleInspectClass(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleInspectClass")

	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "path parameter is required",
			Code:  "MISSING_PARAMETER",
		})
		return
	}

	resp, err := h.svc.InspectClass(c.Request.Context(), path)
	if err != nil {
		switch {
		case errors.Is(err, os.ErrNotExist):
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: err.Error(),
				Code:  "INPUT_NOT_FOUND",
			})
		case errors.Is(err, engine.ErrUnsupportedInput):
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: err.Error(),
				Code:  "UNSUPPORTED_INPUT",
			})
		default:
			logger.Warn("inspect failed", slog.String("path", path), slog.Any("error", err))
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: err.Error(),
				Code:  "PARSE_FAILED",
			})
		}
		return
	}

	logger.Info("artifact inspected",
		slog.String("path", path),
		slog.Int("classes", len(resp.Classes)),
	)
	c.JSON(http.StatusOK, resp)
}

// HandleEvents handles GET /v1/analysis/events.
//
// Description:
//
//	Upgrades the connection to a websocket and streams scan progress
//	events as JSON messages until the client disconnects. Slow clients
//	lose events rather than slowing scans down.
//
// Response:
//
//	101 Switching Protocols: Event stream
//	400 Bad Request: Not a websocket upgrade request
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleEvents(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleEvents")

	h.svc.hub.serveEvents(c.Writer, c.Request, logger)
}

// HandleHealth handles GET /v1/analysis/health.
//
// Response:
//
//	200 OK: HealthResponse
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: engine.Version,
	})
}

// HandleReady handles GET /v1/analysis/ready.
//
// Response:
//
//	200 OK: ReadyResponse
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleReady(c *gin.Context) {
	c.JSON(http.StatusOK, ReadyResponse{
		Ready:        true,
		StoreEnabled: h.svc.store != nil,
		CacheEnabled: h.svc.cache != nil,
	})
}

// writeReport renders a report in the format named by the format query
// parameter. SARIF and text stream straight to the response writer, so a
// late encoding failure cannot be reported to the client.
func (h *Handlers) writeReport(c *gin.Context, logger *slog.Logger, rep *report.Report) {
	format := c.DefaultQuery("format", "json")
	switch format {
	case "json":
		c.JSON(http.StatusOK, rep)

	case "sarif":
		catalog, err := detect.GetCatalog(c.Request.Context())
		if err != nil {
			logger.Error("failed to load rule catalog", slog.Any("error", err))
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error: "failed to load rule catalog: " + err.Error(),
				Code:  "CATALOG_LOAD_FAILED",
			})
			return
		}
		c.Header("Content-Type", "application/sarif+json")
		if err := report.WriteSARIF(c.Writer, rep, catalog.Descriptors()); err != nil {
			logger.Error("failed to encode report", slog.Any("error", err))
		}

	case "text":
		c.Header("Content-Type", "text/plain; charset=utf-8")
		if err := report.WriteText(c.Writer, rep, report.TextOptions{ShowDiagnostics: true}); err != nil {
			logger.Error("failed to render report", slog.Any("error", err))
		}

	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "unsupported format: " + format,
			Code:  "UNSUPPORTED_FORMAT",
		})
	}
}
