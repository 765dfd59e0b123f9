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

	"github.com/AleutianAI/ThreatGate/services/embedder"
	"github.com/AleutianAI/ThreatGate/services/gateway/datatypes"
	"github.com/AleutianAI/ThreatGate/services/gateway/observability"
	"github.com/AleutianAI/ThreatGate/services/vectorstore"
)

// embeddingTimeout bounds one embed-plus-store round trip. Batches of a
// few hundred entries embed in seconds; a hung backend should not pin a
// request goroutine indefinitely.
const embeddingTimeout = 2 * time.Minute

// HandleAddEmbeddings serves POST /embeddings.
//
// # Description
//
// Embeds every entry description in one batch call, pairs each entry
// with its vector, and hands the whole batch to the vector store. An
// empty entries list is a success that touches neither backend. Errors
// report which stage failed so operators can tell "embedding model
// broke" from "vector store broke".
func HandleAddEmbeddings(emb embedder.Client, store vectorstore.Store,
	metrics *observability.StreamingMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), embeddingTimeout)
		defer cancel()
		ctx, span := chatTracer.Start(ctx, "HandleAddEmbeddings")
		defer span.End()

		var req datatypes.AddEmbeddingsRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			slog.Error("Failed to parse the add-embeddings request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		span.SetAttributes(
			attribute.String("entry.type", string(req.Type)),
			attribute.Int("entry.count", len(req.Entries)),
		)

		if len(req.Entries) == 0 {
			metrics.RequestsTotal.WithLabelValues("embeddings", "ok").Inc()
			c.JSON(http.StatusCreated, gin.H{"indexed": 0})
			return
		}

		texts := make([]string, len(req.Entries))
		for i, e := range req.Entries {
			texts[i] = e.Description
		}
		vectors, err := emb.EmbedBatch(ctx, texts)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Embedding batch failed", "error", err, "count", len(texts))
			metrics.ErrorsTotal.WithLabelValues("embeddings", "embedder").Inc()
			c.JSON(http.StatusInternalServerError, gin.H{"error": "embedding model failure"})
			return
		}

		embedded := make([]datatypes.EmbeddedEntry, len(req.Entries))
		for i, e := range req.Entries {
			embedded[i] = datatypes.EmbeddedEntry{Entry: e, Embedding: vectors[i]}
		}
		if err := store.AddBatch(ctx, req.Type, embedded); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Vector store batch failed", "error", err, "count", len(embedded))
			metrics.ErrorsTotal.WithLabelValues("embeddings", "vectorstore").Inc()
			c.JSON(http.StatusInternalServerError, gin.H{"error": storeErrorMessage(err)})
			return
		}

		metrics.RequestsTotal.WithLabelValues("embeddings", "ok").Inc()
		c.JSON(http.StatusCreated, gin.H{"indexed": len(embedded)})
	}
}

// HandleSearchEmbeddings serves POST /embeddings/search.
//
// The query embeds once; the vector store ranks. Results come back in
// the store's order, always as a JSON array (empty, not null, when
// nothing matched).
func HandleSearchEmbeddings(emb embedder.Client, store vectorstore.Store,
	metrics *observability.StreamingMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), embeddingTimeout)
		defer cancel()
		ctx, span := chatTracer.Start(ctx, "HandleSearchEmbeddings")
		defer span.End()

		var req datatypes.SearchEmbeddingsRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			slog.Error("Failed to parse the search request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		span.SetAttributes(
			attribute.String("entry.type", string(req.Type)),
			attribute.Int("search.limit", req.NumNeighbors),
		)

		vector, err := emb.Embed(ctx, req.Query)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Query embedding failed", "error", err)
			metrics.ErrorsTotal.WithLabelValues("search", "embedder").Inc()
			c.JSON(http.StatusInternalServerError, gin.H{"error": "embedding model failure"})
			return
		}

		entries, err := store.Search(ctx, req.Type, vector, req.NumNeighbors)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Vector search failed", "error", err)
			metrics.ErrorsTotal.WithLabelValues("search", "vectorstore").Inc()
			c.JSON(http.StatusInternalServerError, gin.H{"error": storeErrorMessage(err)})
			return
		}
		if entries == nil {
			entries = []datatypes.Entry{}
		}

		metrics.RequestsTotal.WithLabelValues("search", "ok").Inc()
		c.JSON(http.StatusOK, entries)
	}
}

// storeErrorMessage maps the vector store error taxonomy onto stable
// operator-facing messages.
func storeErrorMessage(err error) string {
	switch {
	case errors.Is(err, vectorstore.ErrUnreachable):
		return "vector store unreachable"
	case errors.Is(err, vectorstore.ErrDecode):
		return "vector store returned an unreadable response"
	case errors.Is(err, vectorstore.ErrRemoteStatus):
		return "vector store rejected the request"
	default:
		return "vector store failure"
	}
}
