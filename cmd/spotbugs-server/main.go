// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command spotbugs-server starts the analysis API server.
//
// The server exposes the static-method-hiding scanner over HTTP:
//   - Scan execution with optional diff scoping and run persistence
//   - Persisted run listing, retrieval (json, sarif, text), and diffing
//   - Detector catalog
//   - Live scan progress over a websocket
//
// Usage:
//
//	go run ./cmd/spotbugs-server
//	go run ./cmd/spotbugs-server -port 9090 -config ./spotbugs.yaml
//
// With an OTLP collector (traces exported over gRPC):
//
//	SPOTBUGS_OTLP_ENDPOINT=localhost:4317 go run ./cmd/spotbugs-server
//
// With bearer-token auth:
//
//	SPOTBUGS_AUTH_TOKEN=secret go run ./cmd/spotbugs-server
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/healthz
//
//	# List detectors
//	curl http://localhost:8080/v1/analysis/detectors | jq
//
//	# Run a scan and persist it
//	curl -X POST http://localhost:8080/v1/analysis/scan \
//	  -H "Content-Type: application/json" \
//	  -d '{"paths": ["/path/to/classes"], "persist": true}'
//
//	# Fetch the latest persisted run as SARIF
//	curl "http://localhost:8080/v1/analysis/runs/latest?format=sarif"
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis"
	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/config"
	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/engine"
	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/metacache"
	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/runstore"
)

func main() {
	port := flag.Int("port", 0, "Port to listen on (overrides config)")
	configPath := flag.String("config", "", "Config file path (default: spotbugs.yaml if present)")
	debug := flag.Bool("debug", false, "Enable debug mode (gin logger, stdout span exporter)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	logger := config.NewLogger(cfg.Log)
	slog.SetDefault(logger)

	// Set Gin mode
	if *debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Trace context flows in from W3C TraceContext headers and out to the
	// configured exporter, if any.
	tp, err := setupTracing(context.Background(), *debug)
	if err != nil {
		slog.Error("Failed to set up tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Open the run/metadata BadgerDB. Graceful degradation: if unavailable,
	// scans still work but persistence and caching are disabled.
	var db *badger.DB
	var store *runstore.Store
	var cache *metacache.Cache
	db, err = openServerStore(cfg)
	if err != nil {
		slog.Warn("Run store unavailable, persistence and caching disabled",
			slog.String("error", err.Error()))
	} else {
		store, err = runstore.NewStore(db, logger)
		if err != nil {
			slog.Warn("Run store unavailable", slog.String("error", err.Error()))
		}
		if cfg.Scan.CacheEnabled {
			ttl := time.Duration(cfg.Store.CacheTTLDays) * 24 * time.Hour
			cache, err = metacache.New(db, metacache.WithTTL(ttl), metacache.WithLogger(logger))
			if err != nil {
				slog.Warn("Metadata cache unavailable", slog.String("error", err.Error()))
			}
		}
	}

	// Create service with config
	svcCfg := analysis.ServiceConfig{
		ScanConcurrency: cfg.Scan.Concurrency,
		DetectorIDs:     cfg.Scan.Detectors,
	}
	svcOpts := []analysis.ServiceOption{analysis.WithLogger(logger)}
	if store != nil {
		svcOpts = append(svcOpts, analysis.WithStore(store))
	}
	if cache != nil {
		svcOpts = append(svcOpts, analysis.WithCache(cache))
	}
	svc := analysis.NewService(svcCfg, svcOpts...)

	// Create handlers
	handlers := analysis.NewHandlers(svc)

	// Setup router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("spotbugs-server"))
	if *debug {
		router.Use(gin.Logger())
	}

	// Root-level probes and metrics stay outside auth so orchestrators can
	// reach them without credentials.
	router.GET("/healthz", handlers.HandleHealth)
	router.GET("/readyz", handlers.HandleReady)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Register API routes under /v1 behind auth and rate limiting
	v1 := router.Group("/v1")
	v1.Use(analysis.NewBearerAuth(cfg.Server.AuthToken))
	v1.Use(analysis.RateLimitMiddleware(cfg.Server.RateLimitPerMin, cfg.Server.RateBurst))
	analysis.RegisterRoutes(v1, handlers)

	// Print startup banner
	printBanner(cfg.Server.Port, store != nil, cfg.Server.AuthToken != "")

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		slog.Info("Shutting down spotbugs server")
		if db != nil {
			if err := db.Close(); err != nil {
				slog.Warn("Failed to close run store", slog.String("error", err.Error()))
			}
		}
		if tp != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				slog.Warn("Failed to shut down tracer provider", slog.String("error", err.Error()))
			}
		}
		os.Exit(0)
	}()

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	slog.Info("Starting spotbugs server", slog.String("address", addr))
	if err := router.Run(addr); err != nil {
		slog.Error("Failed to start server", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// setupTracing installs the W3C propagator and, when an exporter applies,
// the SDK tracer provider.
//
// Description:
//
//	With SPOTBUGS_OTLP_ENDPOINT set (host:port), spans export over gRPC to
//	that collector. Otherwise debug mode exports pretty-printed spans to
//	stdout. With neither, only the propagator is installed and the no-op
//	global tracer stays in place, so span creation costs nothing.
//
// Outputs:
//
//	*sdktrace.TracerProvider - nil when no exporter is configured. The
//	caller owns shutdown.
//	error - exporter construction failures.
func setupTracing(ctx context.Context, debug bool) (*sdktrace.TracerProvider, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	res := resource.NewSchemaless(
		attribute.String("service.name", "spotbugs-server"),
		attribute.String("service.version", engine.Version),
	)

	if endpoint := os.Getenv("SPOTBUGS_OTLP_ENDPOINT"); endpoint != "" {
		conn, err := grpc.NewClient(endpoint,
			grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, fmt.Errorf("dial otlp endpoint %s: %w", endpoint, err)
		}
		exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
		if err != nil {
			return nil, fmt.Errorf("create otlp exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(tp)
		slog.Info("Trace export enabled", slog.String("endpoint", endpoint))
		return tp, nil
	}

	if debug {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create stdout exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(tp)
		slog.Info("Trace export enabled", slog.String("exporter", "stdout"))
		return tp, nil
	}

	return nil, nil
}

// openServerStore opens the BadgerDB behind the run store and metadata
// cache. Explicit config wins (which already folds in SPOTBUGS_STORE_DIR);
// otherwise ~/.spotbugs/store.
func openServerStore(cfg *config.Config) (*badger.DB, error) {
	if cfg.Store.InMemory {
		return badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	}

	dir := cfg.Store.Path
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		dir = filepath.Join(home, ".spotbugs", "store")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory %s: %w", dir, err)
	}

	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open store at %s: %w", dir, err)
	}
	slog.Info("Run store opened", slog.String("path", dir))
	return db, nil
}

func printBanner(port int, storeEnabled, authEnabled bool) {
	storeStatus := "DISABLED (store unavailable)"
	if storeEnabled {
		storeStatus = "ENABLED"
	}
	authStatus := "DISABLED (set SPOTBUGS_AUTH_TOKEN to enable)"
	if authEnabled {
		authStatus = "ENABLED (bearer token required)"
	}

	banner := `
╔═══════════════════════════════════════════════════════════════════╗
║                       SPOTBUGS ANALYSIS SERVER                    ║
╠═══════════════════════════════════════════════════════════════════╣
║                                                                   ║
║  Static method hiding analysis for Java classes and sources.      ║
║  Run persistence: %-48s ║
║  Authorization:   %-48s ║
║                                                                   ║
║  Quick Start:                                                     ║
║  ┌─────────────────────────────────────────────────────────────┐  ║
║  │ # Health check                                              │  ║
║  │ curl http://localhost:%d/healthz                       │  ║
║  │                                                             │  ║
║  │ # List detectors                                            │  ║
║  │ curl http://localhost:%d/v1/analysis/detectors | jq    │  ║
║  │                                                             │  ║
║  │ # Run a scan                                                │  ║
║  │ curl -X POST http://localhost:%d/v1/analysis/scan \    │  ║
║  │   -H "Content-Type: application/json" \                     │  ║
║  │   -d '{"paths": ["/path/to/classes"]}'                      │  ║
║  └─────────────────────────────────────────────────────────────┘  ║
║                                                                   ║
║  Endpoints:                                                       ║
║  ├── Scan: POST /v1/analysis/scan, GET /v1/analysis/events (WS)   ║
║  ├── Runs: /v1/analysis/runs, /latest, /diff, /:id                ║
║  ├── Rules: GET /v1/analysis/detectors                            ║
║  ├── Debug: GET /v1/analysis/debug/class/inspect                  ║
║  └── Ops: /healthz, /readyz, /metrics                             ║
║                                                                   ║
║  Press Ctrl+C to stop                                             ║
╚═══════════════════════════════════════════════════════════════════╝
`
	fmt.Printf(banner, storeStatus, authStatus, port, port, port)
}
