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
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bindScanRequest pushes a JSON body through gin's binding layer the way
// HandleScan receives it.
func bindScanRequest(t *testing.T, body string) (ScanRequest, error) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/analysis/scan", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	var req ScanRequest
	err := c.ShouldBindJSON(&req)
	return req, err
}

func TestScanRequest_Binding(t *testing.T) {
	t.Run("full request", func(t *testing.T) {
		req, err := bindScanRequest(t, `{
			"paths": ["build/classes", "src"],
			"detectors": ["HSBC_HIDING_SUB_CLASS"],
			"diff": "--- a/x\n+++ b/x\n",
			"persist": true
		}`)
		require.NoError(t, err)
		assert.Equal(t, []string{"build/classes", "src"}, req.Paths)
		assert.Equal(t, []string{"HSBC_HIDING_SUB_CLASS"}, req.Detectors)
		assert.NotEmpty(t, req.Diff)
		assert.True(t, req.Persist)
	})

	t.Run("paths only", func(t *testing.T) {
		req, err := bindScanRequest(t, `{"paths": ["src"]}`)
		require.NoError(t, err)
		assert.Equal(t, []string{"src"}, req.Paths)
		assert.Empty(t, req.Detectors)
		assert.False(t, req.Persist)
	})

	t.Run("missing paths", func(t *testing.T) {
		_, err := bindScanRequest(t, `{"persist": true}`)
		assert.Error(t, err, "paths is required")
	})

	t.Run("empty paths", func(t *testing.T) {
		_, err := bindScanRequest(t, `{"paths": []}`)
		assert.Error(t, err, "paths must name at least one entry")
	})

	t.Run("malformed body", func(t *testing.T) {
		_, err := bindScanRequest(t, `{"paths": [`)
		assert.Error(t, err)
	})
}

func TestGetOrCreateRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("client-supplied ID wins", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		c.Request.Header.Set(requestIDHeader, "client-id-7")

		id := getOrCreateRequestID(c)
		assert.Equal(t, "client-id-7", id)
		assert.Equal(t, "client-id-7", w.Header().Get(requestIDHeader),
			"the supplied ID must be echoed back")
	})

	t.Run("minted when absent", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

		id := getOrCreateRequestID(c)
		require.NotEmpty(t, id)
		_, err := uuid.Parse(id)
		assert.NoError(t, err, "minted IDs are UUIDs")
		assert.Equal(t, id, w.Header().Get(requestIDHeader))
	})

	t.Run("stable within one request", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

		first := getOrCreateRequestID(c)
		second := getOrCreateRequestID(c)
		assert.Equal(t, first, second)
	})
}
