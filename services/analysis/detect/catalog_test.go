// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package detect

import (
	"context"
	"strings"
	"testing"

	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/report"
)

func TestGetCatalog(t *testing.T) {
	ResetCatalog()
	t.Cleanup(ResetCatalog)

	c, err := GetCatalog(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rule, ok := c.Get(HidingSubclassID)
	if !ok {
		t.Fatalf("embedded catalog is missing %s", HidingSubclassID)
	}
	if !rule.Enabled {
		t.Error("hiding rule must be enabled by default")
	}
	if rule.Severity != report.SeverityNormal {
		t.Errorf("catalog severity %v disagrees with the detector's fixed severity", rule.Severity)
	}
	if rule.ShortDescription == "" || rule.Description == "" {
		t.Error("rule metadata incomplete")
	}

	ids := c.EnabledIDs()
	if len(ids) == 0 || ids[0] != HidingSubclassID {
		t.Errorf("enabled ids: got %v", ids)
	}
}

func TestGetCatalog_NilContext(t *testing.T) {
	var missing context.Context
	if _, err := GetCatalog(missing); err == nil {
		t.Error("expected error for nil context")
	}
}

func TestLoadCatalog_Validation(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name string
		yaml string
	}{
		{"empty data", ""},
		{"no rules", "rules: []"},
		{"missing id", "rules:\n  - name: X\n    severity: normal\n    short_description: d"},
		{"duplicate id", "rules:\n  - id: A\n    severity: normal\n    short_description: d\n  - id: A\n    severity: normal\n    short_description: d"},
		{"unknown severity", "rules:\n  - id: A\n    severity: catastrophic\n    short_description: d"},
		{"missing severity", "rules:\n  - id: A\n    short_description: d"},
		{"missing description", "rules:\n  - id: A\n    severity: normal"},
		{"not yaml", "{{{"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadCatalog(ctx, []byte(tc.yaml)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadCatalog_SizeLimit(t *testing.T) {
	big := "rules:\n  - id: A\n    severity: normal\n    short_description: " +
		strings.Repeat("x", MaxCatalogSize)
	if _, err := LoadCatalog(context.Background(), []byte(big)); err == nil {
		t.Error("expected error for oversized catalog")
	}
}

func TestCatalog_Descriptors(t *testing.T) {
	ResetCatalog()
	t.Cleanup(ResetCatalog)

	c, err := GetCatalog(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	descs := c.Descriptors()
	if len(descs) != len(c.Rules) {
		t.Fatalf("expected %d descriptors, got %d", len(c.Rules), len(descs))
	}
	if descs[0].ID != HidingSubclassID || descs[0].ShortDescription == "" {
		t.Errorf("descriptor: got %+v", descs[0])
	}
}
