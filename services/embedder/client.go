// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package embedder provides clients for the embedding model backends.
//
// The embedding model is a local, per-process concern; the resulting
// vectors are handed to the remote vector store. Failures here are
// "model broke" failures and are kept distinct from vector store errors
// so operators can tell the two apart.
package embedder

import (
	"context"
	"errors"
)

// ErrEmbedding marks any failure of the embedding model itself. Check
// with errors.Is to distinguish it from vector store failures.
var ErrEmbedding = errors.New("embedding model failure")

// Client computes embedding vectors for text.
//
// Vector dimensionality is fixed by the configured model; every vector
// from one client has the same length. Implementations must be safe for
// concurrent use by many request goroutines.
type Client interface {
	// Embed computes one vector for one text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch computes one vector per input text in a single backend
	// call, preserving input order. An empty input returns an empty
	// result without touching the backend.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
