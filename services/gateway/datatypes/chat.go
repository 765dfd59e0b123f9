// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides data structures for the gateway service.
//
// This file contains the chat completion request types and the wire-level
// chat chunk. For report types see report.go, for embedding entry types
// see entry.go.
package datatypes

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// MaxPromptBytes is the maximum size of a user prompt. Byte length,
	// not rune count, to bound memory on hostile payloads.
	MaxPromptBytes = 32 * 1024 // 32KB

	// CompletionTypeChat selects free-form streaming chat.
	CompletionTypeChat = "chat"

	// CompletionTypeStructured selects constrained report generation.
	CompletionTypeStructured = "structured"
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// chatValidate is the validator instance for chat datatypes.
var chatValidate *validator.Validate

func init() {
	chatValidate = validator.New()
	_ = chatValidate.RegisterValidation("maxbytes", validatePromptBytes)
}

// validatePromptBytes enforces MaxPromptBytes on string fields.
func validatePromptBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxPromptBytes
}

// =============================================================================
// Request Types
// =============================================================================

// CompletionRequest is the body of POST /chat/completions.
//
// # Description
//
// The request is tagged by Type: "chat" streams free-form tokens back over
// SSE, "structured" runs the report pipeline and returns a single JSON
// chunk. Keywords and MaxThreats only apply to structured requests; both
// are optional. When Keywords is set the augmenter resolves the listed
// keywords directly instead of scanning the prompt text.
//
// # Validation
//
//   - Type: required, "chat" or "structured"
//   - Prompt: required, at most 32KB
//   - MaxThreats: 0 (model picks a suitable amount) up to 50
type CompletionRequest struct {
	Type       string   `json:"type" validate:"required,oneof=chat structured"`
	Prompt     string   `json:"prompt" validate:"required,maxbytes"`
	Keywords   []string `json:"keywords,omitempty"`
	MaxThreats int      `json:"max_threats,omitempty" validate:"gte=0,lte=50"`
}

// Validate checks the request against its validation rules.
func (r *CompletionRequest) Validate() error {
	return chatValidate.Struct(r)
}

// TemplatedChatRequest is the body of POST /chat/templated. Name selects
// both the prompt template and the threat group whose fields fill it.
type TemplatedChatRequest struct {
	Name string `json:"name" validate:"required,max=256"`
}

// Validate checks the request against its validation rules.
func (r *TemplatedChatRequest) Validate() error {
	return chatValidate.Struct(r)
}

// Message is a single conversation message sent to an LLM backend.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// =============================================================================
// Chat Chunk Wire Types
// =============================================================================

// ChatRole identifies the author of a chat chunk.
type ChatRole string

const (
	RoleSystem    ChatRole = "System"
	RoleUser      ChatRole = "User"
	RoleAssistant ChatRole = "Assistant"
)

// ChatMessageChunk is one unit of a chat completion response.
//
// # Description
//
// Every chunk belonging to the same logical response carries the same Id
// and Timestamp; only Contents differs between chunks. For streaming chat
// each chunk holds one token fragment (a JSON string); for structured
// requests a single chunk holds the whole report object.
//
// # Fields
//
//   - Id: UUIDv7, minted once per response. Time-ordered, so ids sort
//     lexicographically by creation time across the process.
//   - Timestamp: Unix seconds when the response started. Shared by every
//     chunk of the response.
//   - Role: Fixed for the whole response. Assistant for model output.
//   - Contents: JSON value. String for token fragments, object for
//     structured payloads.
type ChatMessageChunk struct {
	Id        string          `json:"id"`
	Timestamp int64           `json:"timestamp"`
	Role      ChatRole        `json:"role"`
	Contents  json.RawMessage `json:"contents"`
}

// NewChunkIdentity mints the id+timestamp pair shared by every chunk of
// one response. UUIDv7 keeps ids globally unique and sortable by creation
// time; the timestamp is unix seconds.
func NewChunkIdentity() (string, int64, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", 0, fmt.Errorf("mint chunk id: %w", err)
	}
	return id.String(), time.Now().Unix(), nil
}

// NewTextChunk builds a chunk whose contents is a JSON string.
func NewTextChunk(id string, timestamp int64, role ChatRole, text string) (ChatMessageChunk, error) {
	contents, err := json.Marshal(text)
	if err != nil {
		return ChatMessageChunk{}, fmt.Errorf("marshal chunk text: %w", err)
	}
	return ChatMessageChunk{Id: id, Timestamp: timestamp, Role: role, Contents: contents}, nil
}

// NewJSONChunk builds a chunk whose contents is an arbitrary JSON value.
func NewJSONChunk(id string, timestamp int64, role ChatRole, contents any) (ChatMessageChunk, error) {
	raw, err := json.Marshal(contents)
	if err != nil {
		return ChatMessageChunk{}, fmt.Errorf("marshal chunk contents: %w", err)
	}
	return ChatMessageChunk{Id: id, Timestamp: timestamp, Role: role, Contents: raw}, nil
}
