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
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/ThreatGate/services/gateway/datatypes"
)

// TestChunkWriter_SharedIdentity verifies every chunk written through one
// writer carries the identity minted at construction.
func TestChunkWriter_SharedIdentity(t *testing.T) {
	rec := httptest.NewRecorder()
	cw, err := NewChunkWriter(rec)
	require.NoError(t, err)

	require.NoError(t, cw.WriteText(datatypes.RoleAssistant, "one"))
	require.NoError(t, cw.WriteText(datatypes.RoleAssistant, "two"))
	require.NoError(t, cw.WriteError(datatypes.RoleAssistant, "boom"))

	chunks := parseSSEChunks(t, rec.Body.String())
	require.Len(t, chunks, 3)
	for _, chunk := range chunks[1:] {
		assert.Equal(t, chunks[0].Id, chunk.Id)
		assert.Equal(t, chunks[0].Timestamp, chunk.Timestamp)
	}
}

// TestChunkWriter_IdsAreTimeOrdered verifies ids from successive writers
// sort in creation order, which consumers rely on for cross-stream
// ordering.
func TestChunkWriter_IdsAreTimeOrdered(t *testing.T) {
	first, err := NewChunkWriter(httptest.NewRecorder())
	require.NoError(t, err)
	second, err := NewChunkWriter(httptest.NewRecorder())
	require.NoError(t, err)

	assert.Less(t, first.id, second.id)
}

// TestChunkWriter_FrameFormat verifies the exact wire framing: a "data: "
// prefix, the JSON chunk, a blank line.
func TestChunkWriter_FrameFormat(t *testing.T) {
	rec := httptest.NewRecorder()
	cw, err := NewChunkWriter(rec)
	require.NoError(t, err)

	require.NoError(t, cw.WriteText(datatypes.RoleAssistant, "hello"))

	body := rec.Body.String()
	assert.Regexp(t, `^data: \{.*\}\n\n$`, body)

	var chunk datatypes.ChatMessageChunk
	require.NoError(t, json.Unmarshal([]byte(body[len("data: "):len(body)-2]), &chunk))

	var text string
	require.NoError(t, json.Unmarshal(chunk.Contents, &text))
	assert.Equal(t, "hello", text)
	assert.Equal(t, datatypes.RoleAssistant, chunk.Role)
}

// TestChunkWriter_BrokenPipe verifies a failed write surfaces ErrPeerGone.
func TestChunkWriter_BrokenPipe(t *testing.T) {
	cw, err := NewChunkWriter(newBrokenPipeWriter(1))
	require.NoError(t, err)

	require.NoError(t, cw.WriteText(datatypes.RoleAssistant, "delivered"))

	err = cw.WriteText(datatypes.RoleAssistant, "lost")
	assert.ErrorIs(t, err, ErrPeerGone)
}

// TestChunkWriter_ErrorChunkShape verifies the diagnostic chunk contents
// are an {"error": ...} object.
func TestChunkWriter_ErrorChunkShape(t *testing.T) {
	rec := httptest.NewRecorder()
	cw, err := NewChunkWriter(rec)
	require.NoError(t, err)

	require.NoError(t, cw.WriteError(datatypes.RoleAssistant, "backend exploded"))

	chunks := parseSSEChunks(t, rec.Body.String())
	require.Len(t, chunks, 1)

	var payload datatypes.ErrorReport
	require.NoError(t, json.Unmarshal(chunks[0].Contents, &payload))
	assert.Equal(t, "backend exploded", payload.Error)
}
