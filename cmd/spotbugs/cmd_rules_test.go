// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/detect"
)

func TestWriteRulesTable(t *testing.T) {
	catalog, err := detect.GetCatalog(context.Background())
	if err != nil {
		t.Fatalf("GetCatalog: %v", err)
	}

	var buf bytes.Buffer
	writeRulesTable(&buf, catalog.Rules)

	out := buf.String()
	for _, want := range []string{"RULE", "SEVERITY", "HSBC_HIDING_SUB_CLASS", "CORRECTNESS"} {
		if !strings.Contains(out, want) {
			t.Errorf("rules table missing %q:\n%s", want, out)
		}
	}
}

func TestWriteRulesLong(t *testing.T) {
	catalog, err := detect.GetCatalog(context.Background())
	if err != nil {
		t.Fatalf("GetCatalog: %v", err)
	}

	var buf bytes.Buffer
	writeRulesLong(&buf, catalog.Rules)

	out := buf.String()
	if !strings.Contains(out, "HSBC_HIDING_SUB_CLASS") {
		t.Errorf("long listing missing rule ID:\n%s", out)
	}
	if !strings.Contains(out, "Severity:") {
		t.Errorf("long listing missing severity line:\n%s", out)
	}
}

func TestPlural(t *testing.T) {
	if got := plural(1); got != "" {
		t.Errorf("plural(1) = %q, want empty", got)
	}
	if got := plural(2); got != "s" {
		t.Errorf("plural(2) = %q, want %q", got, "s")
	}
	if got := plural(0); got != "s" {
		t.Errorf("plural(0) = %q, want %q", got, "s")
	}
}
