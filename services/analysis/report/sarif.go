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
	"encoding/json"
	"fmt"
	"io"
)

const (
	sarifSchema  = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json"
	sarifVersion = "2.1.0"
)

// RuleDescriptor is the rule metadata embedded into SARIF output. The
// detector catalog supplies one per registered rule.
type RuleDescriptor struct {
	ID               string
	Name             string
	ShortDescription string
	HelpURI          string
}

type sarifLog struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version,omitempty"`
	Rules   []sarifRule `json:"rules,omitempty"`
}

type sarifRule struct {
	ID               string        `json:"id"`
	Name             string        `json:"name,omitempty"`
	ShortDescription *sarifMessage `json:"shortDescription,omitempty"`
	HelpURI          string        `json:"helpUri,omitempty"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           *sarifRegion          `json:"region,omitempty"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine int `json:"startLine"`
}

// WriteSARIF writes the report as a SARIF 2.1.0 log with a single run.
// Rule metadata is only emitted for rules that actually produced results,
// so viewers are not cluttered with the full catalog.
func WriteSARIF(w io.Writer, rep *Report, rules []RuleDescriptor) error {
	byID := make(map[string]RuleDescriptor, len(rules))
	for _, r := range rules {
		byID[r.ID] = r
	}

	used := make(map[string]bool)
	results := make([]sarifResult, 0, len(rep.Findings))
	var sarifRules []sarifRule
	for _, f := range rep.Findings {
		res := sarifResult{
			RuleID:  f.RuleID,
			Level:   f.Severity.SARIFLevel(),
			Message: sarifMessage{Text: f.Message},
		}
		if f.Location.File != "" {
			loc := sarifLocation{
				PhysicalLocation: sarifPhysicalLocation{
					ArtifactLocation: sarifArtifactLocation{URI: f.Location.File},
				},
			}
			if f.Location.Line > 0 {
				loc.PhysicalLocation.Region = &sarifRegion{StartLine: f.Location.Line}
			}
			res.Locations = append(res.Locations, loc)
		}
		results = append(results, res)

		if !used[f.RuleID] {
			used[f.RuleID] = true
			rule := sarifRule{ID: f.RuleID}
			if meta, ok := byID[f.RuleID]; ok {
				rule.Name = meta.Name
				rule.HelpURI = meta.HelpURI
				if meta.ShortDescription != "" {
					rule.ShortDescription = &sarifMessage{Text: meta.ShortDescription}
				}
			}
			sarifRules = append(sarifRules, rule)
		}
	}

	log := sarifLog{
		Schema:  sarifSchema,
		Version: sarifVersion,
		Runs: []sarifRun{{
			Tool: sarifTool{Driver: sarifDriver{
				Name:    rep.Tool.Name,
				Version: rep.Tool.Version,
				Rules:   sarifRules,
			}},
			Results: results,
		}},
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(log); err != nil {
		return fmt.Errorf("encoding sarif: %w", err)
	}
	return nil
}
