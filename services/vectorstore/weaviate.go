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
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/AleutianAI/ThreatGate/services/gateway/datatypes"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("threatgate.vectorstore.weaviate")

// classForEntryType maps an entry type to its Weaviate class.
func classForEntryType(t datatypes.EntryType) string {
	if t == datatypes.EntryTypeThreat {
		return "Threat"
	}
	return "Mitigation"
}

// WeaviateStore implements Store against a Weaviate instance with
// client-supplied vectors (vectorizer "none").
type WeaviateStore struct {
	client *weaviate.Client
}

// NewWeaviateStore builds a store client from the backend URL.
func NewWeaviateStore(rawURL string) (*WeaviateStore, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid vector store URL %q", rawURL)
	}
	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsed.Host,
		Scheme: parsed.Scheme,
	})
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}
	return &WeaviateStore{client: client}, nil
}

// entryClassSchema builds the schema for one entry class. Both classes
// share the same property set; only the class name differs.
func entryClassSchema(class string) *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       class,
		Description: fmt.Sprintf("A %s entry with a client-supplied embedding of its description.", class),
		Vectorizer:  "none",
		Properties: []*models.Property{
			{
				Name:            "entry_id",
				DataType:        []string{"text"},
				Description:     "Stable identifier of the entry (e.g. a MITRE id).",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:        "name",
				DataType:    []string{"text"},
				Description: "Display name of the entry.",
			},
			{
				Name:         "description",
				DataType:     []string{"text"},
				Description:  "The embedded text.",
				Tokenization: "word",
			},
			{
				Name:        "url",
				DataType:    []string{"text"},
				Description: "Reference URL for the entry.",
			},
		},
	}
}

// EnsureSchema creates the Threat and Mitigation classes when missing.
// Safe to call on every boot; existing classes are left alone.
func (s *WeaviateStore) EnsureSchema(ctx context.Context) error {
	for _, class := range []string{"Threat", "Mitigation"} {
		exists, err := s.client.Schema().ClassExistenceChecker().
			WithClassName(class).Do(ctx)
		if err != nil {
			return fmt.Errorf("%w: check class %s: %w", ErrUnreachable, class, err)
		}
		if exists {
			continue
		}
		if err := s.client.Schema().ClassCreator().
			WithClass(entryClassSchema(class)).Do(ctx); err != nil {
			return fmt.Errorf("%w: create class %s: %w", ErrRemoteStatus, class, err)
		}
		slog.Info("Created vector store class", "class", class)
	}
	return nil
}

// AddBatch implements the Store interface.
func (s *WeaviateStore) AddBatch(ctx context.Context, entryType datatypes.EntryType,
	entries []datatypes.EmbeddedEntry) error {

	ctx, span := tracer.Start(ctx, "WeaviateStore.AddBatch")
	defer span.End()
	class := classForEntryType(entryType)
	span.SetAttributes(
		attribute.String("store.class", class),
		attribute.Int("store.batch_size", len(entries)),
	)

	objects := make([]*models.Object, len(entries))
	for i, entry := range entries {
		// Deterministic object id from class + entry id, so re-indexing
		// the same entry overwrites instead of duplicating.
		hash := sha256.Sum256([]byte(class + "/" + entry.Id))
		objUUID, err := uuid.FromBytes(hash[:16])
		if err != nil {
			return fmt.Errorf("derive object id for %s: %w", entry.Id, err)
		}

		objects[i] = &models.Object{
			Class:  class,
			ID:     strfmt.UUID(objUUID.String()),
			Vector: entry.Embedding,
			Properties: map[string]interface{}{
				"entry_id":    entry.Id,
				"name":        entry.Name,
				"description": entry.Description,
				"url":         entry.Url,
			},
		}
	}

	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: batch insert: %w", ErrUnreachable, err)
	}
	for _, item := range resp {
		if item.Result != nil && item.Result.Errors != nil && len(item.Result.Errors.Error) > 0 {
			msg := item.Result.Errors.Error[0].Message
			span.SetStatus(codes.Error, msg)
			return fmt.Errorf("%w: batch item rejected: %s", ErrRemoteStatus, msg)
		}
	}
	return nil
}

// entrySearchResponse mirrors the GraphQL Get response for both entry
// classes; only one of the two lists is populated per query.
type entrySearchResponse struct {
	Get struct {
		Threat     []entryResult `json:"Threat"`
		Mitigation []entryResult `json:"Mitigation"`
	} `json:"Get"`
}

type entryResult struct {
	EntryID     string `json:"entry_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Url         string `json:"url"`
}

// Search implements the Store interface.
func (s *WeaviateStore) Search(ctx context.Context, entryType datatypes.EntryType,
	vector []float32, limit int) ([]datatypes.Entry, error) {

	ctx, span := tracer.Start(ctx, "WeaviateStore.Search")
	defer span.End()
	class := classForEntryType(entryType)
	span.SetAttributes(
		attribute.String("store.class", class),
		attribute.Int("store.limit", limit),
	)

	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vector)
	fields := []graphql.Field{
		{Name: "entry_id"},
		{Name: "name"},
		{Name: "description"},
		{Name: "url"},
	}

	result, err := s.client.GraphQL().Get().
		WithClassName(class).
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: search: %w", ErrUnreachable, err)
	}
	if len(result.Errors) > 0 {
		msg := result.Errors[0].Message
		span.SetStatus(codes.Error, msg)
		return nil, fmt.Errorf("%w: %s", ErrRemoteStatus, msg)
	}

	parsed, err := parseGraphQLResponse[entrySearchResponse](result)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	results := parsed.Get.Threat
	if class == "Mitigation" {
		results = parsed.Get.Mitigation
	}
	entries := make([]datatypes.Entry, 0, len(results))
	for _, r := range results {
		entries = append(entries, datatypes.Entry{
			Id:          r.EntryID,
			Name:        r.Name,
			Description: r.Description,
			Url:         r.Url,
		})
	}
	return entries, nil
}

// parseGraphQLResponse converts Weaviate's dynamic response payload into
// a typed struct via the marshal/unmarshal round trip the client forces.
func parseGraphQLResponse[T any](resp *models.GraphQLResponse) (*T, error) {
	if resp == nil {
		return nil, fmt.Errorf("nil GraphQL response")
	}
	respBytes, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GraphQL response data: %w", err)
	}
	var result T
	if err := json.Unmarshal(respBytes, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into target type: %w", err)
	}
	return &result, nil
}
