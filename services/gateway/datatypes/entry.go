// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Embedding entry types shared by the gateway handlers, the embedder
// clients and the vector store.
package datatypes

import "github.com/go-playground/validator/v10"

var entryValidate = validator.New()

// EntryType partitions the vector store into its two record kinds.
type EntryType string

const (
	EntryTypeThreat     EntryType = "threat"
	EntryTypeMitigation EntryType = "mitigation"
)

// Valid reports whether the entry type is one of the known kinds.
func (t EntryType) Valid() bool {
	return t == EntryTypeThreat || t == EntryTypeMitigation
}

// Entry is a named record (threat or mitigation) whose description is the
// embeddable text.
type Entry struct {
	Id          string `json:"id" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description" validate:"required"`
	Url         string `json:"url"`
}

// EmbeddedEntry pairs an entry with its computed vector for indexing.
type EmbeddedEntry struct {
	Entry
	Embedding []float32 `json:"embedding"`
}

// MitigationRecord is one MITRE ATT&CK mitigation from the static catalog.
// Immutable after load; identity is Id.
type MitigationRecord struct {
	Id          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Url         string `json:"url"`
}

// ThreatGroup is one named adversary group from the static catalog, used
// by the templated chat endpoint.
type ThreatGroup struct {
	Id              string   `json:"id"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Url             string   `json:"url"`
	AssociatedNames []string `json:"associated_names"`
}

// AddEmbeddingsRequest is the body of POST /embeddings.
type AddEmbeddingsRequest struct {
	Type    EntryType `json:"type" validate:"required,oneof=threat mitigation"`
	Entries []Entry   `json:"entries" validate:"dive"`
}

// Validate checks the request against its validation rules.
func (r *AddEmbeddingsRequest) Validate() error {
	return entryValidate.Struct(r)
}

// SearchEmbeddingsRequest is the body of POST /embeddings/search.
type SearchEmbeddingsRequest struct {
	Type         EntryType `json:"type" validate:"required,oneof=threat mitigation"`
	Query        string    `json:"query" validate:"required"`
	NumNeighbors int       `json:"num_neighbors" validate:"required,gte=1,lte=100"`
}

// Validate checks the request against its validation rules.
func (r *SearchEmbeddingsRequest) Validate() error {
	return entryValidate.Struct(r)
}
