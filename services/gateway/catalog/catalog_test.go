// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/ThreatGate/services/gateway/datatypes"
)

// TestLoad verifies the embedded data parses and indexes correctly.
func TestLoad(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	assert.NotEmpty(t, c.Mitigations())
	assert.NotEmpty(t, c.ThreatGroups())

	// Every id referenced by the keyword table must resolve, otherwise
	// Select silently drops records.
	for keyword, ids := range keywordMitigations {
		for _, id := range ids {
			_, ok := c.MitigationByID(id)
			assert.True(t, ok, "keyword %q references unknown mitigation %s", keyword, id)
		}
	}
}

// TestGroupByName_CaseInsensitive verifies lookup ignores case, since
// names arrive from user requests.
func TestGroupByName_CaseInsensitive(t *testing.T) {
	c := loadTestCatalog(t)

	for _, name := range []string{"APT28", "apt28", "Apt28"} {
		g, ok := c.GroupByName(name)
		require.True(t, ok, "lookup failed for %q", name)
		assert.Equal(t, "APT28", g.Name)
	}

	_, ok := c.GroupByName("no such group")
	assert.False(t, ok)
}

// TestRenderTemplate verifies placeholder substitution, including the
// comma-joined associated names list.
func TestRenderTemplate(t *testing.T) {
	tpl := PromptTemplate{
		Name:           "test",
		PromptTemplate: "Group {name}: {description} (aka {associated_names})",
	}
	g := datatypes.ThreatGroup{
		Name:            "APT28",
		Description:     "a GRU-attributed group",
		AssociatedNames: []string{"Fancy Bear", "Sofacy"},
	}

	out := RenderTemplate(tpl, g)

	assert.Equal(t, "Group APT28: a GRU-attributed group (aka Fancy Bear, Sofacy)", out)
}

// TestTemplates_AllRenderable verifies every embedded template's
// placeholders are ones RenderTemplate knows how to fill.
func TestTemplates_AllRenderable(t *testing.T) {
	c := loadTestCatalog(t)
	g := datatypes.ThreatGroup{
		Name:            "x",
		Description:     "y",
		AssociatedNames: []string{"z"},
	}

	for _, name := range []string{"group_profile", "group_detection", "group_briefing"} {
		tpl, ok := c.Template(name)
		require.True(t, ok, "missing template %q", name)

		out := RenderTemplate(tpl, g)
		assert.NotContains(t, out, "{", "template %q has unfilled placeholders: %s", name, out)
		assert.True(t, strings.Contains(out, "x"), "template %q never uses the group name", name)
	}
}
