// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AleutianAI/ThreatGate/services/gateway/datatypes"
)

func newTestStore(t *testing.T, serverURL string) *WeaviateStore {
	t.Helper()
	store, err := NewWeaviateStore(serverURL)
	if err != nil {
		t.Fatalf("NewWeaviateStore failed: %v", err)
	}
	return store
}

// graphqlSearchPayload builds the REST body Weaviate answers a GraphQL
// Get query with.
func graphqlSearchPayload(class string, results []map[string]string) []byte {
	payload := map[string]any{
		"data": map[string]any{
			"Get": map[string]any{class: results},
		},
	}
	body, _ := json.Marshal(payload)
	return body
}

// TestNewWeaviateStore_RejectsBadURLs verifies URL validation up front
// rather than failing on the first request.
func TestNewWeaviateStore_RejectsBadURLs(t *testing.T) {
	for _, raw := range []string{"", "localhost:9999", "http://", "not a url at all"} {
		if _, err := NewWeaviateStore(raw); err == nil {
			t.Errorf("expected an error for %q", raw)
		}
	}
}

// TestSearch_PreservesBackendOrder verifies results map onto entries in
// the ranking order the backend returned.
func TestSearch_PreservesBackendOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/graphql" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}

		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode GraphQL request: %v", err)
		}
		query, _ := req["query"].(string)
		for _, want := range []string{"Mitigation", "nearVector", "entry_id", "limit"} {
			if !strings.Contains(query, want) {
				t.Errorf("query missing %q: %s", want, query)
			}
		}

		w.Write(graphqlSearchPayload("Mitigation", []map[string]string{
			{"entry_id": "M1041", "name": "Encrypt Sensitive Information",
				"description": "d1", "url": "u1"},
			{"entry_id": "M1032", "name": "Multi-factor Authentication",
				"description": "d2", "url": "u2"},
		}))
	}))
	defer server.Close()

	store := newTestStore(t, server.URL)

	entries, err := store.Search(context.Background(), datatypes.EntryTypeMitigation,
		[]float32{0.1, 0.2}, 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Id != "M1041" || entries[1].Id != "M1032" {
		t.Errorf("backend order not preserved: %+v", entries)
	}
	if entries[0].Name != "Encrypt Sensitive Information" {
		t.Errorf("entry fields not mapped: %+v", entries[0])
	}
}

// TestSearch_EmptyResult verifies a miss is an empty slice, not an
// error.
func TestSearch_EmptyResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(graphqlSearchPayload("Threat", []map[string]string{}))
	}))
	defer server.Close()

	store := newTestStore(t, server.URL)

	entries, err := store.Search(context.Background(), datatypes.EntryTypeThreat,
		[]float32{0.5}, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Errorf("expected an empty non-nil slice, got %v", entries)
	}
}

// TestSearch_RemoteError verifies an in-band GraphQL error surfaces as
// ErrRemoteStatus.
func TestSearch_RemoteError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"errors":[{"message":"class Threat does not exist"}]}`)
	}))
	defer server.Close()

	store := newTestStore(t, server.URL)

	_, err := store.Search(context.Background(), datatypes.EntryTypeThreat, []float32{0.5}, 1)
	if !errors.Is(err, ErrRemoteStatus) {
		t.Fatalf("expected ErrRemoteStatus, got %v", err)
	}
}

// TestSearch_Unreachable verifies connection failures surface as
// ErrUnreachable.
func TestSearch_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	store := newTestStore(t, server.URL)

	_, err := store.Search(context.Background(), datatypes.EntryTypeThreat, []float32{0.5}, 1)
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}
}

// TestAddBatch_SendsDeterministicIds verifies the batch call lands on
// the batch endpoint and the same entry always produces the same object
// id, so re-seeding overwrites instead of duplicating.
func TestAddBatch_SendsDeterministicIds(t *testing.T) {
	var batches [][]map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/batch/objects" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var req struct {
			Objects []map[string]any `json:"objects"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode batch request: %v", err)
		}
		batches = append(batches, req.Objects)

		fmt.Fprint(w, `[{"result":{"status":"SUCCESS"}}]`)
	}))
	defer server.Close()

	store := newTestStore(t, server.URL)
	entries := []datatypes.EmbeddedEntry{{
		Entry:     datatypes.Entry{Id: "M1032", Name: "MFA", Description: "d", Url: "u"},
		Embedding: []float32{0.1, 0.2},
	}}

	for i := 0; i < 2; i++ {
		if err := store.AddBatch(context.Background(), datatypes.EntryTypeMitigation, entries); err != nil {
			t.Fatalf("AddBatch %d failed: %v", i, err)
		}
	}

	if len(batches) != 2 {
		t.Fatalf("got %d batch calls, want 2", len(batches))
	}
	firstID, _ := batches[0][0]["id"].(string)
	secondID, _ := batches[1][0]["id"].(string)
	if firstID == "" || firstID != secondID {
		t.Errorf("object ids not deterministic: %q vs %q", firstID, secondID)
	}
	if class, _ := batches[0][0]["class"].(string); class != "Mitigation" {
		t.Errorf("class = %q, want Mitigation", class)
	}
}

// TestAddBatch_ItemRejection verifies a per-item error in an otherwise
// successful HTTP response still fails the call.
func TestAddBatch_ItemRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"result":{"status":"FAILED","errors":{"error":[{"message":"vector length mismatch"}]}}}]`)
	}))
	defer server.Close()

	store := newTestStore(t, server.URL)
	entries := []datatypes.EmbeddedEntry{{
		Entry:     datatypes.Entry{Id: "G0007", Name: "APT28", Description: "d"},
		Embedding: []float32{0.1},
	}}

	err := store.AddBatch(context.Background(), datatypes.EntryTypeThreat, entries)
	if !errors.Is(err, ErrRemoteStatus) {
		t.Fatalf("expected ErrRemoteStatus, got %v", err)
	}
}

// TestClassForEntryType covers the full type-to-class mapping.
func TestClassForEntryType(t *testing.T) {
	if got := classForEntryType(datatypes.EntryTypeThreat); got != "Threat" {
		t.Errorf("threat class = %q", got)
	}
	if got := classForEntryType(datatypes.EntryTypeMitigation); got != "Mitigation" {
		t.Errorf("mitigation class = %q", got)
	}
}

