// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/AleutianAI/ThreatGate/services/gateway/datatypes"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var openaiTracer = otel.Tracer("threatgate.llm.openai")

// OpenAIClient talks to OpenAI or any OpenAI-compatible endpoint
// (vLLM, llama.cpp server, LM Studio) selected via OPENAI_BASE_URL.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

func NewOpenAIClient() (*OpenAIClient, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		slog.Warn("OPENAI_MODEL not set, defaulting to gpt-4o-mini")
		model = "gpt-4o-mini"
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.BaseURL = baseURL
	}
	slog.Info("Initializing OpenAI client", "model", model, "base_url", config.BaseURL)
	return &OpenAIClient{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}, nil
}

// Generate implements the LLMClient interface
func (c *OpenAIClient) Generate(ctx context.Context, prompt string,
	params GenerationParams) (string, error) {
	return c.complete(ctx, prompt, nil, params)
}

// GenerateStructured implements the LLMClient interface using the
// json_schema response format.
func (c *OpenAIClient) GenerateStructured(ctx context.Context, prompt string,
	schema json.RawMessage, params GenerationParams) (string, error) {
	return c.complete(ctx, prompt, schema, params)
}

func (c *OpenAIClient) complete(ctx context.Context, prompt string,
	schema json.RawMessage, params GenerationParams) (string, error) {

	ctx, span := openaiTracer.Start(ctx, "OpenAIClient.Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", c.model),
		attribute.Bool("llm.constrained", schema != nil),
	)

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	applyParams(&req, params)
	if schema != nil {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "report",
				Schema: schema,
				Strict: true,
			},
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("OpenAI completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		span.SetStatus(codes.Error, "no choices returned")
		return "", fmt.Errorf("OpenAI returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// ChatStream implements the LLMClient interface. Each delta from the
// completion stream is forwarded through callback as it arrives.
func (c *OpenAIClient) ChatStream(ctx context.Context, messages []datatypes.Message,
	params GenerationParams, callback StreamCallback) error {

	ctx, span := openaiTracer.Start(ctx, "OpenAIClient.ChatStream")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", c.model))

	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(messages)),
		Stream:   true,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	applyParams(&req, params)

	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("OpenAI stream setup failed: %w", err)
	}
	defer stream.Close()

	tokens := 0
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if errors.Is(err, context.Canceled) {
				span.SetAttributes(attribute.Bool("llm.cancelled", true))
				return fmt.Errorf("%w: %w", ErrStreamAborted, err)
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			_ = callback(StreamEvent{Type: StreamEventError, Error: "upstream stream failed"})
			return fmt.Errorf("OpenAI stream read failed: %w", err)
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
			continue
		}
		tokens++
		if err := callback(StreamEvent{Type: StreamEventToken,
			Content: resp.Choices[0].Delta.Content}); err != nil {
			span.SetAttributes(attribute.Int("llm.tokens_streamed", tokens))
			return fmt.Errorf("%w: %w", ErrStreamAborted, err)
		}
	}

	span.SetAttributes(attribute.Int("llm.tokens_streamed", tokens))
	return callback(StreamEvent{Type: StreamEventDone})
}

func applyParams(req *openai.ChatCompletionRequest, params GenerationParams) {
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.TopP != nil {
		req.TopP = *params.TopP
	}
	if params.MaxTokens != nil {
		req.MaxTokens = *params.MaxTokens
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}
}
