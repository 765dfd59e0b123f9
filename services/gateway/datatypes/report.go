// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Structured report types produced by the threat-model pipeline.
//
// The shapes here are the external contract of structured generation: a
// client always receives either a Report or an ErrorReport, never a
// partially parsed value.
package datatypes

import (
	"github.com/go-playground/validator/v10"
)

// reportValidate is the validator instance for report types.
var reportValidate = validator.New()

// Report is a full threat-model report.
type Report struct {
	Summary string       `json:"summary" validate:"required"`
	Items   []ReportItem `json:"items" validate:"dive"`
}

// ReportItem is one identified threat with its mitigations.
//
// Likelihood is the model's estimate that the threat applies, constrained
// to the closed interval [0, 1]. An out-of-range value is a validation
// failure, never clamped: clamping would hide a model-contract violation.
type ReportItem struct {
	Name        string             `json:"name" validate:"required"`
	Description string             `json:"description" validate:"required"`
	Mitigations []ReportMitigation `json:"mitigations" validate:"dive"`
	Likelihood  float64            `json:"likelihood" validate:"gte=0,lte=1"`
}

// ReportMitigation is one recommended countermeasure inside a report item.
// Url and Citations are optional; the model does not always provide them.
type ReportMitigation struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Url         string `json:"url,omitempty"`
	Citations   string `json:"citations,omitempty"`
}

// Validate range-checks the report after deserialization. Schema
// validation guarantees shape; this guards the numeric constraints.
func (r *Report) Validate() error {
	return reportValidate.Struct(r)
}

// ErrorReport is the degraded payload returned when the model output could
// not be turned into a valid Report. It is served with a 200 status: the
// protocol promises valid JSON back, not a report back.
type ErrorReport struct {
	Error string `json:"error"`
}

// ReportSchema is the JSON schema for Report. It is both the constrained
// decoding grammar handed to the LLM backend and the validation schema
// applied to whatever comes back.
const ReportSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "summary": {"type": "string"},
    "items": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": {"type": "string"},
          "description": {"type": "string"},
          "mitigations": {
            "type": "array",
            "items": {
              "type": "object",
              "properties": {
                "name": {"type": "string"},
                "description": {"type": "string"},
                "url": {"type": "string"},
                "citations": {"type": "string"}
              },
              "required": ["name"]
            }
          },
          "likelihood": {"type": "number", "minimum": 0, "maximum": 1}
        },
        "required": ["name", "description", "mitigations", "likelihood"]
      }
    }
  },
  "required": ["summary", "items"]
}`
