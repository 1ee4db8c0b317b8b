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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/config"
)

func TestRenderConfigYAML_RoundTrip(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.Port = 9090
	cfg.Scan.Concurrency = 4
	cfg.Store.Path = "/var/lib/spotbugs"
	cfg.Log.Level = "debug"

	data, err := renderConfigYAML(cfg)
	if err != nil {
		t.Fatalf("renderConfigYAML: %v", err)
	}
	if !strings.HasPrefix(string(data), "# spotbugs configuration.") {
		t.Error("rendered config missing header comment")
	}

	path := filepath.Join(t.TempDir(), "spotbugs.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	loaded, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", loaded.Server.Port)
	}
	if loaded.Scan.Concurrency != 4 {
		t.Errorf("concurrency = %d, want 4", loaded.Scan.Concurrency)
	}
	if loaded.Store.Path != "/var/lib/spotbugs" {
		t.Errorf("store path = %q, want %q", loaded.Store.Path, "/var/lib/spotbugs")
	}
	if loaded.Log.Level != "debug" {
		t.Errorf("log level = %q, want %q", loaded.Log.Level, "debug")
	}
}

func TestRenderConfigYAML_RejectsInvalid(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.Port = 0

	if _, err := renderConfigYAML(cfg); err == nil {
		t.Fatal("expected validation error for port 0")
	}
}

func TestValidatePortString(t *testing.T) {
	for _, ok := range []string{"1", "8080", "65535"} {
		if err := validatePortString(ok); err != nil {
			t.Errorf("validatePortString(%q) = %v, want nil", ok, err)
		}
	}
	for _, bad := range []string{"", "0", "65536", "-1", "http"} {
		if err := validatePortString(bad); err == nil {
			t.Errorf("validatePortString(%q) = nil, want error", bad)
		}
	}
}

func TestValidateConcurrencyString(t *testing.T) {
	for _, ok := range []string{"1", "8", "256"} {
		if err := validateConcurrencyString(ok); err != nil {
			t.Errorf("validateConcurrencyString(%q) = %v, want nil", ok, err)
		}
	}
	for _, bad := range []string{"", "0", "257", "many"} {
		if err := validateConcurrencyString(bad); err == nil {
			t.Errorf("validateConcurrencyString(%q) = nil, want error", bad)
		}
	}
}
