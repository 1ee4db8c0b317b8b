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
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/engine"
)

func TestEventHub_Broadcast(t *testing.T) {
	hub := NewEventHub(slog.Default())

	ch, cancel := hub.subscribe()
	if hub.Len() != 1 {
		t.Fatalf("subscribers = %d, want 1", hub.Len())
	}

	hub.Broadcast(engine.Event{RunID: "r1", Phase: engine.PhaseWalk, Done: 3, Total: 3})

	select {
	case ev := <-ch:
		if ev.RunID != "r1" || ev.Phase != engine.PhaseWalk {
			t.Errorf("event = %+v, want run r1 phase walk", ev)
		}
	default:
		t.Fatal("no event delivered")
	}

	cancel()
	if hub.Len() != 0 {
		t.Errorf("subscribers = %d after cancel, want 0", hub.Len())
	}
}

func TestEventHub_MultipleSubscribers(t *testing.T) {
	hub := NewEventHub(slog.Default())

	a, cancelA := hub.subscribe()
	b, cancelB := hub.subscribe()
	defer cancelA()
	defer cancelB()

	hub.Broadcast(engine.Event{RunID: "r1", Phase: engine.PhaseDone})

	if len(a) != 1 || len(b) != 1 {
		t.Errorf("queued events = %d/%d, want 1/1", len(a), len(b))
	}
}

func TestEventHub_DropsWhenFull(t *testing.T) {
	hub := NewEventHub(slog.Default())

	ch, cancel := hub.subscribe()
	defer cancel()

	for i := 0; i < subscriberBuffer+10; i++ {
		hub.Broadcast(engine.Event{Phase: engine.PhaseLoad, Done: i})
	}

	// Overflow is dropped, never blocked on.
	if len(ch) != subscriberBuffer {
		t.Errorf("queued events = %d, want %d", len(ch), subscriberBuffer)
	}
}

func TestHandleEvents_StreamsScanProgress(t *testing.T) {
	dir := writeFixtureProject(t, false)
	svc := NewService(DefaultServiceConfig())
	router := setupTestRouter(svc)

	server := httptest.NewServer(router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/v1/analysis/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The subscription registers on the server goroutine; wait for it
	// before scanning or the events race past the hub.
	deadline := time.Now().Add(2 * time.Second)
	for svc.hub.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if svc.hub.Len() == 0 {
		t.Fatal("subscriber never registered")
	}

	w := postScan(t, router, ScanRequest{Paths: []string{dir}})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var events []engine.Event
	phases := map[string]bool{}
	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for !phases[engine.PhaseDone] {
		var ev engine.Event
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read event: %v", err)
		}
		events = append(events, ev)
		phases[ev.Phase] = true
	}

	for _, phase := range []string{engine.PhaseWalk, engine.PhaseLoad, engine.PhaseDetect, engine.PhaseDone} {
		if !phases[phase] {
			t.Errorf("missing %s events", phase)
		}
	}
	for _, ev := range events {
		if ev.RunID == "" {
			t.Errorf("event %+v has no run ID", ev)
			break
		}
	}
}
