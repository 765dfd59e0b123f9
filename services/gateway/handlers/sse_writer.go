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
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/ThreatGate/services/gateway/datatypes"
)

// ErrPeerGone indicates the client disconnected mid-stream. Callers use
// this to stop pulling tokens from the backend.
var ErrPeerGone = errors.New("peer closed the connection")

// SetSSEHeaders prepares a response for server-sent events. Must be
// called before the first write.
func SetSSEHeaders(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
}

// ChunkWriter serializes chat chunks onto an SSE response.
//
// All chunks written through one ChunkWriter carry the same message id
// and timestamp, minted once when the writer is created. Consumers use
// the shared id to reassemble a fragmented message and the timestamp to
// order messages across streams.
type ChunkWriter struct {
	mu        sync.Mutex
	w         http.ResponseWriter
	flusher   http.Flusher
	id        string
	timestamp int64
}

// NewChunkWriter mints the stream identity and binds the writer. Returns
// an error when the underlying writer cannot flush, which would make
// token-by-token delivery impossible.
func NewChunkWriter(w http.ResponseWriter) (*ChunkWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("response writer does not support flushing")
	}
	id, ts, err := datatypes.NewChunkIdentity()
	if err != nil {
		return nil, fmt.Errorf("mint stream identity: %w", err)
	}
	return &ChunkWriter{w: w, flusher: flusher, id: id, timestamp: ts}, nil
}

// WriteText emits one text fragment as an SSE data frame.
func (cw *ChunkWriter) WriteText(role datatypes.ChatRole, content string) error {
	chunk, err := datatypes.NewTextChunk(cw.id, cw.timestamp, role, content)
	if err != nil {
		return fmt.Errorf("encode text chunk: %w", err)
	}
	return cw.writeChunk(chunk)
}

// WriteJSON emits a JSON value as the chunk contents.
func (cw *ChunkWriter) WriteJSON(role datatypes.ChatRole, payload any) error {
	chunk, err := datatypes.NewJSONChunk(cw.id, cw.timestamp, role, payload)
	if err != nil {
		return fmt.Errorf("encode json chunk: %w", err)
	}
	return cw.writeChunk(chunk)
}

// WriteError emits a terminal diagnostic chunk whose contents are an
// {"error": ...} object. Best effort: the peer may already be gone.
func (cw *ChunkWriter) WriteError(role datatypes.ChatRole, msg string) error {
	return cw.WriteJSON(role, datatypes.ErrorReport{Error: msg})
}

func (cw *ChunkWriter) writeChunk(chunk datatypes.ChatMessageChunk) error {
	frame, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("encode chunk: %w", err)
	}

	cw.mu.Lock()
	defer cw.mu.Unlock()
	if _, err := fmt.Fprintf(cw.w, "data: %s\n\n", frame); err != nil {
		return fmt.Errorf("%w: %w", ErrPeerGone, err)
	}
	cw.flusher.Flush()
	return nil
}
