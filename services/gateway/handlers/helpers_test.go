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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/ThreatGate/services/gateway/datatypes"
	"github.com/AleutianAI/ThreatGate/services/gateway/observability"
	"github.com/AleutianAI/ThreatGate/services/llm"
)

func init() {
	// Set Gin to test mode to reduce noise in test output
	gin.SetMode(gin.TestMode)
}

// testMetrics is shared by every test: promauto registers on the default
// registry, which tolerates exactly one registration per metric name.
var testMetrics = observability.NewStreamingMetrics()

// =============================================================================
// Mocks
// =============================================================================

// mockLLMClient implements llm.LLMClient for handler testing. Tokens
// stream one callback invocation each; TokensSent records how many the
// consumer actually accepted before aborting.
type mockLLMClient struct {
	Tokens             []string
	StreamError        error
	StructuredResponse string
	StructuredError    error
	TokensSent         int
}

func (m *mockLLMClient) Generate(ctx context.Context, prompt string,
	params llm.GenerationParams) (string, error) {
	return m.StructuredResponse, m.StructuredError
}

func (m *mockLLMClient) GenerateStructured(ctx context.Context, prompt string,
	schema json.RawMessage, params llm.GenerationParams) (string, error) {
	return m.StructuredResponse, m.StructuredError
}

func (m *mockLLMClient) ChatStream(ctx context.Context, messages []datatypes.Message,
	params llm.GenerationParams, callback llm.StreamCallback) error {
	for _, tok := range m.Tokens {
		event := llm.StreamEvent{Type: llm.StreamEventToken, Content: tok}
		if err := callback(event); err != nil {
			return fmt.Errorf("%w: %w", llm.ErrStreamAborted, err)
		}
		m.TokensSent++
	}
	if m.StreamError != nil {
		// Mirror the real clients: an error event on the callback and a
		// non-nil return from ChatStream.
		_ = callback(llm.StreamEvent{Type: llm.StreamEventError, Error: m.StreamError.Error()})
		return m.StreamError
	}
	return callback(llm.StreamEvent{Type: llm.StreamEventDone})
}

// =============================================================================
// Request / Response Helpers
// =============================================================================

// performRequest executes an HTTP request against the test router.
func performRequest(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// parseSSEChunks decodes every "data:" frame in an SSE body.
func parseSSEChunks(t *testing.T, body string) []datatypes.ChatMessageChunk {
	t.Helper()
	var chunks []datatypes.ChatMessageChunk
	for _, frame := range strings.Split(body, "\n\n") {
		frame = strings.TrimSpace(frame)
		if frame == "" {
			continue
		}
		require.True(t, strings.HasPrefix(frame, "data: "), "unexpected frame: %q", frame)

		var chunk datatypes.ChatMessageChunk
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frame, "data: ")), &chunk))
		chunks = append(chunks, chunk)
	}
	return chunks
}

// brokenPipeWriter simulates a peer that goes away after a fixed number
// of successful writes.
type brokenPipeWriter struct {
	header       http.Header
	writesBefore int
	writes       int
}

func newBrokenPipeWriter(writesBefore int) *brokenPipeWriter {
	return &brokenPipeWriter{header: make(http.Header), writesBefore: writesBefore}
}

func (w *brokenPipeWriter) Header() http.Header { return w.header }

func (w *brokenPipeWriter) WriteHeader(statusCode int) {}

func (w *brokenPipeWriter) Flush() {}

func (w *brokenPipeWriter) Write(p []byte) (int, error) {
	if w.writes >= w.writesBefore {
		return 0, fmt.Errorf("write: broken pipe")
	}
	w.writes++
	return len(p), nil
}
