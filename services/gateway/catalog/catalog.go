// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package catalog holds the static reference data the gateway injects into
// prompts: the MITRE ATT&CK mitigation table, a threat-group table, and
// the prompt templates for templated chat.
//
// All data is compiled into the binary via go:embed and parsed once at
// startup. A Catalog is immutable after Load and safe for concurrent
// lock-free reads from every request goroutine.
package catalog

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AleutianAI/ThreatGate/services/gateway/datatypes"

	_ "embed"
)

//go:embed mitigations.json
var mitigationsJSON []byte

//go:embed threat_groups.json
var threatGroupsJSON []byte

//go:embed prompts.json
var promptsJSON []byte

// PromptTemplate is one named template for the templated chat endpoint.
// Placeholders {name}, {description} and {associated_names} are filled
// from the selected threat group.
type PromptTemplate struct {
	Name           string `json:"name"`
	PromptTemplate string `json:"prompt_template"`
}

// Catalog is the loaded, immutable reference data set.
type Catalog struct {
	mitigations []datatypes.MitigationRecord
	byID        map[string]datatypes.MitigationRecord
	groups      []datatypes.ThreatGroup
	groupByName map[string]datatypes.ThreatGroup
	templates   map[string]PromptTemplate
}

// Load parses the embedded reference data.
//
// Load failing means the binary itself is broken (the data is embedded),
// so callers treat any error as a fatal boot error. Never call Load on a
// request path.
func Load() (*Catalog, error) {
	var mitigations []datatypes.MitigationRecord
	if err := json.Unmarshal(mitigationsJSON, &mitigations); err != nil {
		return nil, fmt.Errorf("parse mitigations catalog: %w", err)
	}
	if len(mitigations) == 0 {
		return nil, fmt.Errorf("mitigations catalog is empty")
	}

	var groups []datatypes.ThreatGroup
	if err := json.Unmarshal(threatGroupsJSON, &groups); err != nil {
		return nil, fmt.Errorf("parse threat groups catalog: %w", err)
	}

	var templates []PromptTemplate
	if err := json.Unmarshal(promptsJSON, &templates); err != nil {
		return nil, fmt.Errorf("parse prompt templates: %w", err)
	}

	c := &Catalog{
		mitigations: mitigations,
		byID:        make(map[string]datatypes.MitigationRecord, len(mitigations)),
		groups:      groups,
		groupByName: make(map[string]datatypes.ThreatGroup, len(groups)),
		templates:   make(map[string]PromptTemplate, len(templates)),
	}
	for _, m := range mitigations {
		c.byID[m.Id] = m
	}
	for _, g := range groups {
		c.groupByName[strings.ToLower(g.Name)] = g
	}
	for _, t := range templates {
		c.templates[t.Name] = t
	}
	return c, nil
}

// MitigationByID looks up one mitigation record. O(1).
func (c *Catalog) MitigationByID(id string) (datatypes.MitigationRecord, bool) {
	m, ok := c.byID[id]
	return m, ok
}

// Mitigations returns all mitigation records in catalog order. The
// returned slice is shared; callers must not mutate it.
func (c *Catalog) Mitigations() []datatypes.MitigationRecord {
	return c.mitigations
}

// ThreatGroups returns all threat groups in catalog order.
func (c *Catalog) ThreatGroups() []datatypes.ThreatGroup {
	return c.groups
}

// GroupByName looks up a threat group by its primary name,
// case-insensitively.
func (c *Catalog) GroupByName(name string) (datatypes.ThreatGroup, bool) {
	g, ok := c.groupByName[strings.ToLower(name)]
	return g, ok
}

// Template looks up a prompt template by name.
func (c *Catalog) Template(name string) (PromptTemplate, bool) {
	t, ok := c.templates[name]
	return t, ok
}

// RenderTemplate fills a template with the group's fields.
func RenderTemplate(t PromptTemplate, g datatypes.ThreatGroup) string {
	r := strings.NewReplacer(
		"{name}", g.Name,
		"{description}", g.Description,
		"{associated_names}", strings.Join(g.AssociatedNames, ", "),
	)
	return r.Replace(t.PromptTemplate)
}
