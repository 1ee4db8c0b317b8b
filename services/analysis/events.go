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
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/engine"
)

const (
	// subscriberBuffer is the per-subscriber event queue depth. Events
	// beyond it are dropped rather than stalling the scan.
	subscriberBuffer = 64

	// writeTimeout bounds a single websocket write.
	writeTimeout = 10 * time.Second
)

// EventHub fans scan progress events out to websocket subscribers.
//
// Description:
//
//	Scanners publish through Broadcast, which never blocks: a subscriber
//	that falls behind loses events instead of slowing the scan down.
//	Subscribers are registered per websocket connection and removed when
//	the connection closes.
//
// Thread Safety: safe for concurrent use.
type EventHub struct {
	mu     sync.Mutex
	subs   map[chan engine.Event]struct{}
	logger *slog.Logger
}

// NewEventHub creates an empty hub.
func NewEventHub(logger *slog.Logger) *EventHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventHub{
		subs:   make(map[chan engine.Event]struct{}),
		logger: logger,
	}
}

// Broadcast delivers an event to every subscriber without blocking.
func (h *EventHub) Broadcast(ev engine.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			eventsDroppedTotal.Inc()
		}
	}
}

// subscribe registers a new event channel and returns it with its
// unsubscribe function.
func (h *EventHub) subscribe() (chan engine.Event, func()) {
	ch := make(chan engine.Event, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	eventSubscribers.Inc()

	return ch, func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
		eventSubscribers.Dec()
	}
}

// Len returns the current subscriber count.
func (h *EventHub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// upgrader accepts any origin. The service fronts local tooling and CI,
// not browsers with ambient credentials; bearer auth still applies.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// serveEvents upgrades the request and streams hub events until the client
// disconnects.
func (h *EventHub) serveEvents(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	ch, cancel := h.subscribe()
	defer cancel()

	// The client never sends application data; the read loop exists to
	// notice the close frame.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	logger.Info("event subscriber connected", slog.String("remote", conn.RemoteAddr().String()))
	for {
		select {
		case ev := <-ch:
			if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				logger.Debug("event write failed", slog.String("error", err.Error()))
				return
			}
		case <-closed:
			logger.Info("event subscriber disconnected", slog.String("remote", conn.RemoteAddr().String()))
			return
		}
	}
}
