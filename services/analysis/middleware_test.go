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
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func authTestRouter(token string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(NewBearerAuth(token))
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return router
}

func pingWithAuth(router *gin.Engine, authorization string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("GET", "/ping", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestBearerAuth_MissingCredentials(t *testing.T) {
	router := authTestRouter("hunter2")

	w := pingWithAuth(router, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
	if code := errorCode(t, w); code != "MISSING_CREDENTIALS" {
		t.Errorf("code = %q, want %q", code, "MISSING_CREDENTIALS")
	}
}

func TestBearerAuth_InvalidCredentials(t *testing.T) {
	router := authTestRouter("hunter2")

	w := pingWithAuth(router, "Bearer nope")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
	if code := errorCode(t, w); code != "INVALID_CREDENTIALS" {
		t.Errorf("code = %q, want %q", code, "INVALID_CREDENTIALS")
	}
}

func TestBearerAuth_ValidCredentials(t *testing.T) {
	router := authTestRouter("hunter2")

	// The enclave reopens per request, so repeated calls must keep working.
	for i := 0; i < 3; i++ {
		w := pingWithAuth(router, "Bearer hunter2")
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected status %d, got %d: %s", i, http.StatusOK, w.Code, w.Body.String())
		}
	}
}

func TestBearerAuth_Disabled(t *testing.T) {
	router := authTestRouter("")

	w := pingWithAuth(router, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
}

func rateLimitTestRouter(perMin, burst int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimitMiddleware(perMin, burst))
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return router
}

func pingFrom(router *gin.Engine, remoteAddr string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("GET", "/ping", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimit_Blocks(t *testing.T) {
	router := rateLimitTestRouter(1, 1)

	w := pingFrom(router, "10.0.0.1:1111")
	if w.Code != http.StatusOK {
		t.Fatalf("first request: expected status %d, got %d", http.StatusOK, w.Code)
	}

	w = pingFrom(router, "10.0.0.1:1111")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected status %d, got %d", http.StatusTooManyRequests, w.Code)
	}
	if code := errorCode(t, w); code != "RATE_LIMITED" {
		t.Errorf("code = %q, want %q", code, "RATE_LIMITED")
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}
}

func TestRateLimit_PerClient(t *testing.T) {
	router := rateLimitTestRouter(1, 1)

	if w := pingFrom(router, "10.0.0.1:1111"); w.Code != http.StatusOK {
		t.Fatalf("client A: expected status %d, got %d", http.StatusOK, w.Code)
	}
	// A different client has its own bucket.
	if w := pingFrom(router, "10.0.0.2:2222"); w.Code != http.StatusOK {
		t.Fatalf("client B: expected status %d, got %d", http.StatusOK, w.Code)
	}
	if w := pingFrom(router, "10.0.0.1:1111"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("client A again: expected status %d, got %d", http.StatusTooManyRequests, w.Code)
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	router := rateLimitTestRouter(0, 0)

	for i := 0; i < 20; i++ {
		if w := pingFrom(router, "10.0.0.1:1111"); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected status %d, got %d", i, http.StatusOK, w.Code)
		}
	}
}
