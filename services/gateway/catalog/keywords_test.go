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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/ThreatGate/services/gateway/datatypes"
)

func loadTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Load()
	require.NoError(t, err)
	return c
}

// TestSelect_CaseAndPunctuation verifies that keyword matching survives
// capitalization and trailing punctuation in free text.
func TestSelect_CaseAndPunctuation(t *testing.T) {
	c := loadTestCatalog(t)

	records := c.Select("Our WEBSITE talks to the Database.", nil)

	ids := recordIDs(records)
	// website -> M1036, M1048, M1057; database -> M1049, M1028, M1032
	assert.ElementsMatch(t,
		[]string{"M1028", "M1032", "M1036", "M1048", "M1049", "M1057"}, ids)
}

// TestSelect_OrderIndependent verifies the selection is a set: token
// order in the prompt does not change the result.
func TestSelect_OrderIndependent(t *testing.T) {
	c := loadTestCatalog(t)

	a := c.Select("the network handles authentication", nil)
	b := c.Select("authentication over the network", nil)

	assert.Equal(t, recordIDs(a), recordIDs(b))
}

// TestSelect_Deduplicates verifies that keywords sharing mitigation ids
// (e.g. authentication and permissions both map to M1032/M1018/M1026)
// yield each record once, and that the result is sorted by id.
func TestSelect_Deduplicates(t *testing.T) {
	c := loadTestCatalog(t)

	records := c.Select("authentication and permissions", nil)

	ids := recordIDs(records)
	assert.Equal(t, []string{"M1018", "M1026", "M1032"}, ids)
}

// TestSelect_RepeatedKeyword verifies repetition does not multiply
// records.
func TestSelect_RepeatedKeyword(t *testing.T) {
	c := loadTestCatalog(t)

	once := c.Select("encryption", nil)
	thrice := c.Select("encryption encryption encryption", nil)

	assert.Equal(t, recordIDs(once), recordIDs(thrice))
}

// TestSelect_NoMatches verifies an empty, non-nil result when nothing in
// the prompt matches the table.
func TestSelect_NoMatches(t *testing.T) {
	c := loadTestCatalog(t)

	records := c.Select("a pleasant walk in the park", nil)

	require.NotNil(t, records)
	assert.Empty(t, records)
}

// TestSelect_ExplicitKeywords verifies that explicit keywords bypass
// prompt tokenization entirely.
func TestSelect_ExplicitKeywords(t *testing.T) {
	c := loadTestCatalog(t)

	records := c.Select("our website stores credentials", []string{"network"})

	// Only the explicit keyword resolves; website/credentials in the
	// prompt text are ignored.
	assert.Equal(t, []string{"M1030", "M1035", "M1037"}, recordIDs(records))
}

// TestSelect_UnknownExplicitKeyword verifies unknown explicit keywords
// resolve to nothing rather than erroring.
func TestSelect_UnknownExplicitKeyword(t *testing.T) {
	c := loadTestCatalog(t)

	records := c.Select("anything", []string{"blockchain"})

	require.NotNil(t, records)
	assert.Empty(t, records)
}

// TestSelect_SubstringIsNotAMatch verifies whole-token matching: "webs"
// or "websites" must not trigger the "web" or "website" keywords.
func TestSelect_SubstringIsNotAMatch(t *testing.T) {
	c := loadTestCatalog(t)

	records := c.Select("many websites exist", nil)

	assert.Empty(t, records)
}

func recordIDs(records []datatypes.MitigationRecord) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.Id)
	}
	return ids
}
