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
)

// RegisterRoutes registers all analysis routes with the router.
//
// Description:
//
//	Registers all /v1/analysis/* endpoints with the given Gin router
//	group. The router group should already have any required middleware
//	applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Scan Endpoints:
//
//	POST /v1/analysis/scan - Run a scan and return the report
//	GET  /v1/analysis/events - Stream scan progress over a websocket
//	GET  /v1/analysis/detectors - List registered detectors
//
// Run Endpoints:
//
//	GET    /v1/analysis/runs - List persisted runs
//	GET    /v1/analysis/runs/latest - Fetch the most recent run
//	GET    /v1/analysis/runs/diff - Compare two runs
//	GET    /v1/analysis/runs/:id - Fetch a run as json, sarif, or text
//	DELETE /v1/analysis/runs/:id - Delete a run
//
// Health Endpoints:
//
//	GET  /v1/analysis/health - Health check
//	GET  /v1/analysis/ready - Readiness check
//
// Example:
//
//	service := analysis.NewService(analysis.DefaultServiceConfig())
//	handlers := analysis.NewHandlers(service)
//
//	v1 := router.Group("/v1")
//	analysis.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	analysis := rg.Group("/analysis")
	{
		// Scan execution
		analysis.POST("/scan", handlers.HandleScan)

		// Progress event stream
		analysis.GET("/events", handlers.HandleEvents)

		// Detector catalog
		analysis.GET("/detectors", handlers.HandleListDetectors)

		// Persisted runs
		runs := analysis.Group("/runs")
		{
			// Static paths (must be registered before :id wildcard)
			runs.GET("/latest", handlers.HandleLatestRun)
			runs.GET("/diff", handlers.HandleDiffRuns)

			runs.GET("", handlers.HandleListRuns)
			runs.GET("/:id", handlers.HandleGetRun)
			runs.DELETE("/:id", handlers.HandleDeleteRun)
		}

		// Health checks
		analysis.GET("/health", handlers.HandleHealth)
		analysis.GET("/ready", handlers.HandleReady)

		// =================================================================
		// DEBUG ENDPOINTS
		// =================================================================

		debug := analysis.Group("/debug")
		{
			debug.GET("/class/inspect", handlers.HandleInspectClass)
		}
	}
}
