// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"fmt"
	"sync"
	"testing"
)

func TestCollector_SortsDeterministically(t *testing.T) {
	c := NewCollector()

	b := sampleFinding()
	b.Class = "com.example.Beta"
	a := sampleFinding()
	a.Class = "com.example.Alpha"

	c.Report(b)
	c.Report(a)

	got := c.Findings()
	if len(got) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(got))
	}
	if got[0].Class != "com.example.Alpha" || got[1].Class != "com.example.Beta" {
		t.Errorf("findings not sorted by key: %q before %q", got[0].Class, got[1].Class)
	}
}

func TestCollector_ConcurrentReports(t *testing.T) {
	c := NewCollector()

	const goroutines = 16
	const perGoroutine = 50

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				f := sampleFinding()
				f.Class = fmt.Sprintf("com.example.C%02d_%02d", g, i)
				c.Report(f)
			}
		}(g)
	}
	wg.Wait()

	if c.Len() != goroutines*perGoroutine {
		t.Errorf("expected %d findings, got %d", goroutines*perGoroutine, c.Len())
	}

	got := c.Findings()
	for i := 1; i < len(got); i++ {
		if got[i-1].Key() > got[i].Key() {
			t.Fatalf("findings out of order at %d: %q > %q", i, got[i-1].Key(), got[i].Key())
		}
	}
}

func TestCollector_FindingsReturnsCopy(t *testing.T) {
	c := NewCollector()
	c.Report(sampleFinding())

	first := c.Findings()
	first[0].Class = "mutated"

	second := c.Findings()
	if second[0].Class != "com.example.Child" {
		t.Error("mutating the returned slice leaked into the collector")
	}
}
