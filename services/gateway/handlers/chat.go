// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/ThreatGate/services/gateway/catalog"
	"github.com/AleutianAI/ThreatGate/services/gateway/datatypes"
	"github.com/AleutianAI/ThreatGate/services/gateway/observability"
	"github.com/AleutianAI/ThreatGate/services/gateway/report"
	"github.com/AleutianAI/ThreatGate/services/llm"
)

var chatTracer = otel.Tracer("threatgate.gateway.handlers")

// HandleCompletions serves POST /chat/completions.
//
// # Description
//
// The request's type field selects the pipeline:
//
//   - "chat": the prompt streams back token-by-token as SSE chunks,
//     one fragment per data frame, all frames sharing one id and
//     timestamp.
//   - "structured": the prompt runs through keyword-driven mitigation
//     selection and constrained report generation; the response is one
//     plain JSON ChatMessageChunk, not a stream. Unparseable model
//     output degrades to an {"error": ...} chunk on a 200; only backend
//     transport failures are a 500.
func HandleCompletions(llmClient llm.LLMClient, gen *report.Generator,
	cat *catalog.Catalog, metrics *observability.StreamingMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := chatTracer.Start(c.Request.Context(), "HandleCompletions")
		defer span.End()

		var req datatypes.CompletionRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to parse the completion request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			span.RecordError(err)
			slog.Warn("Completion request failed validation", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		span.SetAttributes(attribute.String("completion.type", req.Type))

		switch req.Type {
		case datatypes.CompletionTypeChat:
			messages := []datatypes.Message{{Role: "user", Content: req.Prompt}}
			streamChat(ctx, c, llmClient, messages, metrics, "completions")
		case datatypes.CompletionTypeStructured:
			respondStructured(ctx, c, gen, cat, req, metrics)
		}
	}
}

// respondStructured runs the report pipeline and answers with one plain
// JSON ChatMessageChunk. No SSE framing: nothing is written until the
// outcome is known, so backend failures can still change the status.
func respondStructured(ctx context.Context, c *gin.Context, gen *report.Generator,
	cat *catalog.Catalog, req datatypes.CompletionRequest,
	metrics *observability.StreamingMetrics) {
	ctx, span := chatTracer.Start(ctx, "respondStructured")
	defer span.End()

	mitigations := cat.Select(req.Prompt, req.Keywords)
	span.SetAttributes(attribute.Int("mitigations.selected", len(mitigations)))
	prompt := report.BuildPrompt(req.Prompt, mitigations, req.MaxThreats)

	rep, errRep, err := gen.Generate(ctx, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Structured generation failed", "error", err)
		metrics.ErrorsTotal.WithLabelValues("completions", "backend").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	outcome := "ok"
	var payload any = rep
	if errRep != nil {
		outcome = "degraded"
		payload = errRep
	}

	id, ts, err := datatypes.NewChunkIdentity()
	if err != nil {
		span.RecordError(err)
		slog.Error("Failed to mint a chunk identity", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	chunk, err := datatypes.NewJSONChunk(id, ts, datatypes.RoleAssistant, payload)
	if err != nil {
		span.RecordError(err)
		slog.Error("Failed to encode the report chunk", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	metrics.RequestsTotal.WithLabelValues("completions", outcome).Inc()
	c.JSON(http.StatusOK, chunk)
}

// HandleTemplated serves POST /chat/templated.
//
// Name selects a threat group from the catalog; its profile fills the
// group_profile prompt template and the result streams back like a chat
// completion. Unknown names are a 404, not a 500: the request was well
// formed, the resource does not exist.
func HandleTemplated(llmClient llm.LLMClient, cat *catalog.Catalog,
	metrics *observability.StreamingMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := chatTracer.Start(c.Request.Context(), "HandleTemplated")
		defer span.End()

		var req datatypes.TemplatedChatRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			slog.Error("Failed to parse the templated chat request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		group, ok := cat.GroupByName(req.Name)
		if !ok {
			span.SetAttributes(attribute.String("group.name", req.Name))
			slog.Warn("Unknown threat group requested", "name", req.Name)
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown threat group"})
			return
		}
		tpl, ok := cat.Template("group_profile")
		if !ok {
			slog.Error("Embedded prompt template missing", "template", "group_profile")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "prompt template unavailable"})
			return
		}
		prompt := catalog.RenderTemplate(tpl, group)

		messages := []datatypes.Message{{Role: "user", Content: prompt}}
		streamChat(ctx, c, llmClient, messages, metrics, "templated")
	}
}

// HealthCheck reports process liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
