// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package vectorstore is the client for the remote vector-search backend.
//
// The backend owns index atomicity and result ranking; this package only
// forwards batches and searches and translates failures into a small,
// inspectable error taxonomy:
//
//   - ErrUnreachable: network/connect/timeout failures reaching the store
//   - ErrRemoteStatus: the store answered with a non-success result
//   - ErrDecode: the store answered with something we could not decode
//
// Handlers map these onto operator-distinguishable error responses.
package vectorstore

import (
	"context"
	"errors"

	"github.com/AleutianAI/ThreatGate/services/gateway/datatypes"
)

var (
	ErrUnreachable  = errors.New("vector store unreachable")
	ErrRemoteStatus = errors.New("vector store returned an error")
	ErrDecode       = errors.New("vector store response could not be decoded")
)

// Store is the remote vector-search backend.
//
// Implementations must be safe for concurrent use. All calls honor the
// context deadline; a timeout surfaces as ErrUnreachable.
type Store interface {
	// AddBatch indexes embedded entries of one type in a single call.
	// No partial-commit semantics are exposed: the batch either lands as
	// a whole or the call fails (the remote backend owns atomicity).
	AddBatch(ctx context.Context, entryType datatypes.EntryType,
		entries []datatypes.EmbeddedEntry) error

	// Search returns up to limit entries of the given type ranked by the
	// backend. The backend's order is preserved; no re-ranking here.
	Search(ctx context.Context, entryType datatypes.EntryType,
		vector []float32, limit int) ([]datatypes.Entry, error)
}
