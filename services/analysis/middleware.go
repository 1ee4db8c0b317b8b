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
	"crypto/subtle"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/awnumar/memguard"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	authHeaderPrefix = "Bearer "

	// maxTrackedClients caps the per-IP limiter map. Past it the map is
	// dropped wholesale and rebuilt as clients reappear.
	maxTrackedClients = 10000
)

// NewBearerAuth returns middleware enforcing a static bearer token.
//
// Description:
//
//	The token stays sealed in a memguard enclave between requests and is
//	only opened for the constant-time comparison. An empty token
//	disables enforcement entirely.
//
// Response:
//
//	401 Unauthorized: Missing or wrong token
//	500 Internal Server Error: Enclave could not be opened
//
// Thread Safety: The returned middleware is safe for concurrent use.
func NewBearerAuth(token string) gin.HandlerFunc {
	if token == "" {
		return func(c *gin.Context) { c.Next() }
	}
	enclave := memguard.NewEnclave([]byte(token))

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, authHeaderPrefix) {
			authFailuresTotal.WithLabelValues("missing").Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error: "missing bearer token",
				Code:  "MISSING_CREDENTIALS",
			})
			return
		}

		buf, err := enclave.Open()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
				Error: "credential verification unavailable",
				Code:  "AUTH_UNAVAILABLE",
			})
			return
		}
		match := subtle.ConstantTimeCompare(
			[]byte(strings.TrimPrefix(header, authHeaderPrefix)), buf.Bytes()) == 1
		buf.Destroy()

		if !match {
			authFailuresTotal.WithLabelValues("invalid").Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error: "invalid bearer token",
				Code:  "INVALID_CREDENTIALS",
			})
			return
		}
		c.Next()
	}
}

// RateLimitMiddleware caps request rates per client IP.
//
// Description:
//
//	Each client IP gets a token bucket refilled at perMin requests per
//	minute with the given burst size. Rejected requests carry a
//	Retry-After header. A non-positive perMin disables limiting; a
//	non-positive burst defaults to perMin.
//
// Response:
//
//	429 Too Many Requests: Bucket empty for this client
//
// Thread Safety: The returned middleware is safe for concurrent use.
func RateLimitMiddleware(perMin, burst int) gin.HandlerFunc {
	if perMin <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst <= 0 {
		burst = perMin
	}

	var (
		mu       sync.Mutex
		limiters = make(map[string]*rate.Limiter)
	)
	limit := rate.Every(time.Minute / time.Duration(perMin))

	return func(c *gin.Context) {
		ip := c.ClientIP()

		mu.Lock()
		lim, ok := limiters[ip]
		if !ok {
			if len(limiters) >= maxTrackedClients {
				limiters = make(map[string]*rate.Limiter)
			}
			lim = rate.NewLimiter(limit, burst)
			limiters[ip] = lim
		}
		mu.Unlock()

		r := lim.Reserve()
		if d := r.Delay(); d > 0 {
			r.Cancel()
			rateLimitedTotal.Inc()
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(d.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error: "rate limit exceeded",
				Code:  "RATE_LIMITED",
			})
			return
		}
		c.Next()
	}
}
