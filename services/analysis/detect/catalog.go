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
	_ "embed"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"

	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/report"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// MaxCatalogSize caps the rule catalog YAML the loader will accept.
const MaxCatalogSize = 1 << 20

// RuleInfo is the display metadata for one rule.
type RuleInfo struct {
	// ID is the stable rule identifier detectors report with.
	ID string `yaml:"id" json:"id"`

	// Name is the short human-readable rule name.
	Name string `yaml:"name" json:"name"`

	// Severity is the priority the rule reports at.
	Severity report.Severity `yaml:"severity" json:"severity"`

	// Category groups related rules for display.
	Category string `yaml:"category" json:"category"`

	// Enabled controls whether the rule runs by default.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// ShortDescription is the one-line summary.
	ShortDescription string `yaml:"short_description" json:"short_description"`

	// Description is the full explanation shown by the rules command.
	Description string `yaml:"description" json:"description"`

	// HelpURI links to external documentation.
	HelpURI string `yaml:"help_uri" json:"help_uri,omitempty"`
}

// Catalog is the loaded rule metadata.
//
// Thread Safety: immutable after loading; safe for concurrent use.
type Catalog struct {
	Rules []RuleInfo `yaml:"rules" json:"rules"`
}

// Get returns the metadata for a rule ID.
func (c *Catalog) Get(id string) (RuleInfo, bool) {
	for _, r := range c.Rules {
		if r.ID == id {
			return r, true
		}
	}
	return RuleInfo{}, false
}

// EnabledIDs returns the IDs of rules enabled by default, in catalog order.
func (c *Catalog) EnabledIDs() []string {
	out := make([]string, 0, len(c.Rules))
	for _, r := range c.Rules {
		if r.Enabled {
			out = append(out, r.ID)
		}
	}
	return out
}

// Descriptors converts the catalog into SARIF rule descriptors.
func (c *Catalog) Descriptors() []report.RuleDescriptor {
	out := make([]report.RuleDescriptor, 0, len(c.Rules))
	for _, r := range c.Rules {
		out = append(out, report.RuleDescriptor{
			ID:               r.ID,
			Name:             r.Name,
			ShortDescription: r.ShortDescription,
			HelpURI:          r.HelpURI,
		})
	}
	return out
}

var (
	catalogMu      sync.RWMutex
	catalogOnce    sync.Once
	cachedCatalog  *Catalog
	catalogLoadErr error
)

// GetCatalog returns the embedded rule catalog, loading it on first call.
//
// Thread Safety: safe for concurrent use.
func GetCatalog(ctx context.Context) (*Catalog, error) {
	if ctx == nil {
		return nil, fmt.Errorf("GetCatalog: ctx must not be nil")
	}

	catalogMu.RLock()
	if cachedCatalog != nil || catalogLoadErr != nil {
		c, err := cachedCatalog, catalogLoadErr
		catalogMu.RUnlock()
		return c, err
	}
	catalogMu.RUnlock()

	catalogMu.Lock()
	defer catalogMu.Unlock()

	if cachedCatalog != nil || catalogLoadErr != nil {
		return cachedCatalog, catalogLoadErr
	}

	catalogOnce.Do(func() {
		cachedCatalog, catalogLoadErr = LoadCatalog(ctx, defaultRulesYAML)
	})

	return cachedCatalog, catalogLoadErr
}

// ResetCatalog clears the cached catalog so tests can reload with
// different data.
func ResetCatalog() {
	catalogMu.Lock()
	defer catalogMu.Unlock()
	cachedCatalog = nil
	catalogLoadErr = nil
	catalogOnce = sync.Once{}
}

// LoadCatalog parses and validates a rule catalog from YAML bytes.
//
// Inputs:
//   - ctx: for tracing.
//   - data: raw YAML bytes.
//
// Outputs:
//   - *Catalog: the validated catalog.
//   - error: non-nil if parsing or validation fails.
func LoadCatalog(ctx context.Context, data []byte) (*Catalog, error) {
	_, span := tracer.Start(ctx, "detect.LoadCatalog")
	defer span.End()

	if len(data) == 0 {
		return nil, fmt.Errorf("LoadCatalog: empty YAML data")
	}
	if len(data) > MaxCatalogSize {
		return nil, fmt.Errorf("LoadCatalog: YAML data exceeds maximum size (%d > %d)", len(data), MaxCatalogSize)
	}

	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("LoadCatalog: parsing YAML: %w", err)
	}

	if err := validateCatalog(&c); err != nil {
		return nil, fmt.Errorf("LoadCatalog: validation: %w", err)
	}

	span.SetAttributes(
		attribute.Int("rules.total", len(c.Rules)),
		attribute.Int("rules.enabled", len(c.EnabledIDs())),
	)
	slog.Info("rule catalog loaded",
		slog.Int("rules", len(c.Rules)),
		slog.Int("enabled", len(c.EnabledIDs())))

	return &c, nil
}

func validateCatalog(c *Catalog) error {
	if len(c.Rules) == 0 {
		return fmt.Errorf("catalog declares no rules")
	}
	seen := make(map[string]bool, len(c.Rules))
	for i, r := range c.Rules {
		if r.ID == "" {
			return fmt.Errorf("rule[%d]: id must not be empty", i)
		}
		if seen[r.ID] {
			return fmt.Errorf("rule[%d]: duplicate id %s", i, r.ID)
		}
		seen[r.ID] = true
		if r.Severity == 0 {
			return fmt.Errorf("rule[%d] (%s): severity must be one of high, normal, low", i, r.ID)
		}
		if r.ShortDescription == "" {
			return fmt.Errorf("rule[%d] (%s): short_description must not be empty", i, r.ID)
		}
	}
	return nil
}
