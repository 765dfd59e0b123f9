// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/ThreatGate/services/embedder"
	"github.com/AleutianAI/ThreatGate/services/gateway/catalog"
	"github.com/AleutianAI/ThreatGate/services/gateway/handlers"
	"github.com/AleutianAI/ThreatGate/services/gateway/observability"
	"github.com/AleutianAI/ThreatGate/services/gateway/report"
	"github.com/AleutianAI/ThreatGate/services/llm"
	"github.com/AleutianAI/ThreatGate/services/vectorstore"
)

func SetupRoutes(router *gin.Engine, llmClient llm.LLMClient, gen *report.Generator,
	cat *catalog.Catalog, emb embedder.Client, store vectorstore.Store,
	metrics *observability.StreamingMetrics) {

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/chat/completions", handlers.HandleCompletions(llmClient, gen, cat, metrics))
	router.POST("/chat/templated", handlers.HandleTemplated(llmClient, cat, metrics))
	router.POST("/embeddings", handlers.HandleAddEmbeddings(emb, store, metrics))
	router.POST("/embeddings/search", handlers.HandleSearchEmbeddings(emb, store, metrics))
}
