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
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kaptinlin/jsonschema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/ThreatGate/services/gateway/datatypes"
	"github.com/AleutianAI/ThreatGate/services/llm"
)

var tracer = otel.Tracer("threatgate.gateway.report")

// Generator produces schema-constrained reports from an LLM backend.
//
// Malformed or out-of-range model output never surfaces as a transport
// error: it degrades into an ErrorReport payload so the caller always
// gets a well-formed JSON body.
type Generator struct {
	client llm.LLMClient
	schema *jsonschema.Schema
}

// NewGenerator compiles the report schema once and binds it to the
// backend client. A compile failure is a programming error in the
// embedded schema, not a runtime condition.
func NewGenerator(client llm.LLMClient) (*Generator, error) {
	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile([]byte(datatypes.ReportSchema))
	if err != nil {
		return nil, fmt.Errorf("compile report schema: %w", err)
	}
	return &Generator{client: client, schema: schema}, nil
}

// Generate runs one constrained completion and validates the result.
//
// # Outputs
//
//   - (*Report, nil, nil) when the model produced a valid report.
//   - (nil, *ErrorReport, nil) when the model produced output that could
//     not be parsed or failed validation. The caller should serve this
//     with a success status: the request itself worked.
//   - (nil, nil, err) only for transport-level failures reaching the
//     backend.
func (g *Generator) Generate(ctx context.Context, prompt string) (*datatypes.Report, *datatypes.ErrorReport, error) {
	ctx, span := tracer.Start(ctx, "report.Generate")
	defer span.End()
	span.SetAttributes(attribute.Int("prompt.bytes", len(prompt)))

	raw, err := g.client.GenerateStructured(ctx, prompt, []byte(datatypes.ReportSchema), llm.GenerationParams{})
	if err != nil {
		return nil, nil, fmt.Errorf("structured generation: %w", err)
	}

	if result := g.schema.ValidateJSON([]byte(raw)); !result.IsValid() {
		slog.Warn("LLM output failed schema validation", "detail", result.ToList())
		return nil, &datatypes.ErrorReport{Error: "Failed to parse LLM response"}, nil
	}

	var report datatypes.Report
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		slog.Warn("LLM output failed to deserialize", "error", err)
		return nil, &datatypes.ErrorReport{Error: "Failed to parse LLM response"}, nil
	}

	// Range checks beyond what the schema compiler enforces (notably
	// likelihood bounds on backends that ignore numeric constraints).
	if err := report.Validate(); err != nil {
		slog.Warn("LLM output failed report validation", "error", err)
		return nil, &datatypes.ErrorReport{Error: "Failed to parse LLM response"}, nil
	}
	return &report, nil, nil
}
