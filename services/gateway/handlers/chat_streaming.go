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
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/ThreatGate/services/gateway/datatypes"
	"github.com/AleutianAI/ThreatGate/services/gateway/observability"
	"github.com/AleutianAI/ThreatGate/services/llm"
)

// streamChat bridges an LLM token stream onto an SSE response.
//
// # Description
//
// Each token fragment from the backend becomes one SSE data frame,
// forwarded the moment it arrives. The whole stream shares the identity
// minted by the ChunkWriter. When the peer disconnects mid-stream the
// callback returns ErrPeerGone, which propagates up through the backend
// client and stops token generation instead of draining it to nowhere.
//
// Backend errors after the stream has started cannot change the HTTP
// status; they surface as a terminal diagnostic chunk.
func streamChat(ctx context.Context, c *gin.Context, llmClient llm.LLMClient,
	messages []datatypes.Message, metrics *observability.StreamingMetrics, endpoint string) {
	ctx, span := chatTracer.Start(ctx, "streamChat")
	defer span.End()

	SetSSEHeaders(c)
	writer, err := NewChunkWriter(c.Writer)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Failed to start the SSE stream", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	metrics.ActiveStreams.Inc()
	defer metrics.ActiveStreams.Dec()
	start := time.Now()

	var tokens int
	var errorSent bool
	callback := func(event llm.StreamEvent) error {
		switch event.Type {
		case llm.StreamEventToken:
			if err := writer.WriteText(datatypes.RoleAssistant, event.Content); err != nil {
				return err
			}
			tokens++
			metrics.TokensTotal.WithLabelValues(endpoint).Inc()
		case llm.StreamEventError:
			// Backends deliver the error event and then also return a
			// non-nil error from ChatStream. Record the emission so the
			// post-stream handling does not write a second frame.
			errorSent = true
			_ = writer.WriteError(datatypes.RoleAssistant, event.Error)
		case llm.StreamEventDone:
			// Nothing extra on the wire; the stream simply ends.
		}
		return nil
	}

	err = llmClient.ChatStream(ctx, messages, llm.GenerationParams{}, callback)
	span.SetAttributes(attribute.Int("stream.tokens", tokens))

	switch {
	case err == nil:
		metrics.RequestsTotal.WithLabelValues(endpoint, "ok").Inc()
		metrics.StreamDurationSeconds.WithLabelValues(endpoint).
			Observe(time.Since(start).Seconds())
	case errors.Is(err, ErrPeerGone) || errors.Is(err, context.Canceled):
		slog.Info("Client disconnected mid-stream", "tokens_sent", tokens)
		metrics.RequestsTotal.WithLabelValues(endpoint, "disconnected").Inc()
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Chat stream failed", "error", err)
		metrics.ErrorsTotal.WithLabelValues(endpoint, "backend").Inc()
		if !errorSent {
			_ = writer.WriteError(datatypes.RoleAssistant, err.Error())
		}
	}
}
