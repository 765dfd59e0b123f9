// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc/credentials/insecure"

	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"

	"github.com/AleutianAI/ThreatGate/services/embedder"
	"github.com/AleutianAI/ThreatGate/services/gateway/catalog"
	"github.com/AleutianAI/ThreatGate/services/gateway/observability"
	"github.com/AleutianAI/ThreatGate/services/gateway/report"
	"github.com/AleutianAI/ThreatGate/services/gateway/routes"
	"github.com/AleutianAI/ThreatGate/services/llm"
	"github.com/AleutianAI/ThreatGate/services/vectorstore"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "threatgate-otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("gateway-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func newLLMClient() (llm.LLMClient, error) {
	switch os.Getenv("LLM_BACKEND_TYPE") {
	case "openai":
		slog.Info("Using OpenAI LLM backend")
		return llm.NewOpenAIClient()
	case "ollama":
		slog.Info("Using Ollama LLM backend")
		return llm.NewOllamaClient()
	default:
		slog.Warn("LLM_BACKEND_TYPE not set or invalid, defaulting to ollama")
		return llm.NewOllamaClient()
	}
}

func newEmbedder() (embedder.Client, error) {
	switch os.Getenv("EMBEDDING_BACKEND_TYPE") {
	case "openai":
		slog.Info("Using OpenAI embedding backend")
		return embedder.NewOpenAIEmbedder()
	case "ollama":
		slog.Info("Using Ollama embedding backend")
		return embedder.NewOllamaEmbedder()
	default:
		slog.Warn("EMBEDDING_BACKEND_TYPE not set or invalid, defaulting to ollama")
		return embedder.NewOllamaEmbedder()
	}
}

func main() {
	port := os.Getenv("GATEWAY_PORT")
	if port == "" {
		port = "12220"
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	cat, err := catalog.Load()
	if err != nil {
		log.Fatalf("FATAL: Could not load the mitigation catalog: %v", err)
	}

	weaviateURL := os.Getenv("WEAVIATE_SERVICE_URL")
	// Sanitize: Trim quotes and whitespace just in case Podman passes them literally
	weaviateURL = strings.Trim(weaviateURL, "\"' ")
	if weaviateURL == "" {
		weaviateURL = "http://localhost:9999"
		slog.Warn("WEAVIATE_SERVICE_URL is not set, defaulting to 'http://localhost:9999'")
	}
	store, err := vectorstore.NewWeaviateStore(weaviateURL)
	if err != nil {
		log.Fatalf("FATAL: Could not create the vector store client: %v", err)
	}
	if err := store.EnsureSchema(context.Background()); err != nil {
		// The store may simply not be up yet; embedding routes will fail
		// with ErrUnreachable until it is.
		slog.Warn("Could not verify the vector store schema", "error", err)
	}

	llmClient, err := newLLMClient()
	if err != nil {
		log.Fatalf("Failed to initialize LLM client: %v", err)
	}
	gen, err := report.NewGenerator(llmClient)
	if err != nil {
		log.Fatalf("FATAL: Could not compile the report schema: %v", err)
	}
	emb, err := newEmbedder()
	if err != nil {
		log.Fatalf("Failed to initialize embedding client: %v", err)
	}

	metrics := observability.NewStreamingMetrics()

	router := gin.Default()
	router.Use(otelgin.Middleware("gateway-service"))
	routes.SetupRoutes(router, llmClient, gen, cat, emb, store, metrics)

	log.Println("Starting the gateway server on port ", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
