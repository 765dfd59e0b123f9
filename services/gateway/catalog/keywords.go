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
	"slices"
	"strings"

	"github.com/AleutianAI/ThreatGate/services/gateway/datatypes"
)

// keywordMitigations maps a prompt keyword to the mitigation ids injected
// when that keyword appears. The table is static; lookups are
// case-insensitive because Select lowercases tokens first.
var keywordMitigations = map[string][]string{
	"website":        {"M1036", "M1048", "M1057"},
	"web":            {"M1036", "M1047", "M1050"},
	"database":       {"M1049", "M1028", "M1032"},
	"backend":        {"M1015", "M1042", "M1025"},
	"credentials":    {"M1043", "M1034", "M1033"},
	"security":       {"M1050", "M1041", "M1038"},
	"network":        {"M1037", "M1035", "M1030"},
	"authentication": {"M1032", "M1018", "M1026"},
	"permissions":    {"M1032", "M1018", "M1026"},
	"encryption":     {"M1041", "M1051", "M1029"},
}

// Select picks the mitigation records to inject for a prompt.
//
// # Description
//
// When explicitKeywords is non-empty, each keyword's fixed id set is
// resolved directly and the prompt text is not scanned. Otherwise the
// prompt is lowercased, periods and commas are stripped, and each
// whitespace token is looked up in the keyword table.
//
// Either way, the accumulated ids are sorted and deduplicated before
// resolution, so the output is deterministic and independent of the
// order tokens appear in the prompt. Ids missing from the catalog are
// silently dropped. An empty result is valid: it means no contextual
// mitigations are injected.
//
// # Inputs
//
//   - promptText: Free-form user text to scan for keywords.
//   - explicitKeywords: Optional keyword list bypassing tokenization.
//
// # Outputs
//
//   - []datatypes.MitigationRecord: Resolved records in ascending id
//     order. May be empty, never nil.
func (c *Catalog) Select(promptText string, explicitKeywords []string) []datatypes.MitigationRecord {
	var ids []string

	if len(explicitKeywords) > 0 {
		for _, kw := range explicitKeywords {
			ids = append(ids, keywordMitigations[strings.ToLower(kw)]...)
		}
	} else {
		for _, token := range tokenize(promptText) {
			ids = append(ids, keywordMitigations[token]...)
		}
	}

	// Dedup requires the prior sort; it also fixes the output order.
	slices.Sort(ids)
	ids = slices.Compact(ids)

	records := make([]datatypes.MitigationRecord, 0, len(ids))
	for _, id := range ids {
		if m, ok := c.byID[id]; ok {
			records = append(records, m)
		}
	}
	return records
}

// tokenize normalizes prompt text for keyword lookup: lowercase, strip
// periods and commas, split on whitespace.
func tokenize(text string) []string {
	text = strings.ToLower(text)
	text = strings.ReplaceAll(text, ".", "")
	text = strings.ReplaceAll(text, ",", "")
	return strings.Fields(text)
}
