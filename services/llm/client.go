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

	"github.com/AleutianAI/ThreatGate/services/gateway/datatypes"
)

type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// StreamEventType discriminates events delivered to a StreamCallback.
type StreamEventType string

const (
	StreamEventToken StreamEventType = "token"
	StreamEventDone  StreamEventType = "done"
	StreamEventError StreamEventType = "error"
)

// StreamEvent is one unit of incremental model output. Content is set for
// token events, Error for error events.
type StreamEvent struct {
	Type    StreamEventType `json:"type"`
	Content string          `json:"content,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// StreamCallback receives stream events in generation order. Returning a
// non-nil error aborts the stream; the client stops pulling tokens from
// the backend.
type StreamCallback func(event StreamEvent) error

// ErrStreamAborted wraps the callback error that stopped a stream. Client
// disconnects surface through here and are not backend failures.
var ErrStreamAborted = errors.New("stream aborted by consumer")

// LLMClient defines the standard interface for any LLM backend.
type LLMClient interface {
	// Generate produces the full completion for a prompt in one call.
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)

	// GenerateStructured produces a completion constrained by a JSON
	// schema. The constraint is advisory to the model; callers must still
	// parse and validate the result.
	GenerateStructured(ctx context.Context, prompt string, schema json.RawMessage,
		params GenerationParams) (string, error)

	// ChatStream streams a conversation response token-by-token through
	// callback. Fragments are delivered in generation order, one callback
	// invocation per fragment, with no internal buffering.
	ChatStream(ctx context.Context, messages []datatypes.Message, params GenerationParams,
		callback StreamCallback) error
}
