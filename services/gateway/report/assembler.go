// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package report drives structured threat-model report generation: prompt
// assembly from user text plus catalog excerpts, constrained generation,
// and validation of whatever the model returns.
package report

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/ThreatGate/services/gateway/datatypes"
)

// systemInstruction frames the task for the model before the user text.
const systemInstruction = "You threat model a given input and generate a JSON report " +
	"with identified threats and recommended mitigations."

// formatContract states the required output shape inside the prompt. The
// real constraint is the decoding schema; repeating the shape in prose
// measurably improves field quality on smaller models.
const formatContract = `{
    "summary": string,
    "items": [{
        "name": string,
        "description": string,
        "mitigations": [{
            "name": string,
            "description": string,
            "url": string,
            "citations": string
        }],
        "likelihood": number between 0.0 and 1.0
    }]
}`

// BuildPrompt assembles the full generation prompt.
//
// # Description
//
// The prompt embeds, in order: the task instruction, the output format
// contract, the user's text verbatim, the threat-count instruction, and
// a listing of the selected mitigations as reference material. When no
// mitigations were selected the mitigation section is omitted entirely
// rather than emitted empty. maxThreats <= 0 lets the model pick a
// suitable amount.
func BuildPrompt(userText string, mitigations []datatypes.MitigationRecord, maxThreats int) string {
	var b strings.Builder

	b.WriteString(systemInstruction)
	b.WriteString("\nAnswer using this exact JSON format:\n")
	b.WriteString(formatContract)
	b.WriteString("\n\nInput to threat model:\n")
	b.WriteString(userText)

	if maxThreats > 0 {
		fmt.Fprintf(&b, "\n\nIdentify up to %d threats.", maxThreats)
	} else {
		b.WriteString("\n\nIdentify a suitable amount of threats.")
	}

	if len(mitigations) > 0 {
		b.WriteString("\n\nConsider these mitigations as reference material:\n")
		b.WriteString(FormatMitigations(mitigations))
	}
	return b.String()
}

// FormatMitigations renders catalog records for prompt injection, one
// record per line pair.
func FormatMitigations(mitigations []datatypes.MitigationRecord) string {
	lines := make([]string, 0, len(mitigations))
	for _, m := range mitigations {
		lines = append(lines, fmt.Sprintf("-name: %s, description: %s\n  url: %s",
			m.Name, m.Description, m.Url))
	}
	return strings.Join(lines, "\n")
}
