// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/ThreatGate/services/gateway/catalog"
	"github.com/AleutianAI/ThreatGate/services/gateway/datatypes"
)

// seedTimeout bounds one seeding run end to end. Embedding two catalog
// batches is normally seconds; a cold Ollama model pull is not.
const seedTimeout = 10 * time.Minute

// runSeedCommand pushes the embedded catalogs through the gateway's
// /embeddings endpoint so searches have something to rank. Threats and
// mitigations go up as two concurrent batches.
func runSeedCommand(cmd *cobra.Command, args []string) {
	cat, err := catalog.Load()
	if err != nil {
		log.Fatalf("Could not load the embedded catalog: %v", err)
	}

	mitigations := make([]datatypes.Entry, 0, len(cat.Mitigations()))
	for _, m := range cat.Mitigations() {
		mitigations = append(mitigations, datatypes.Entry{
			Id: m.Id, Name: m.Name, Description: m.Description, Url: m.Url,
		})
	}
	threats := make([]datatypes.Entry, 0, len(cat.ThreatGroups()))
	for _, g := range cat.ThreatGroups() {
		threats = append(threats, datatypes.Entry{
			Id: g.Id, Name: g.Name, Description: g.Description, Url: g.Url,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), seedTimeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return postEntries(ctx, datatypes.EntryTypeMitigation, mitigations)
	})
	g.Go(func() error {
		return postEntries(ctx, datatypes.EntryTypeThreat, threats)
	})
	if err := g.Wait(); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	fmt.Printf("Seeded %d mitigations and %d threat groups\n", len(mitigations), len(threats))
}

// postEntries sends one typed batch to POST /embeddings and checks for
// the 201 the gateway answers on success.
func postEntries(ctx context.Context, entryType datatypes.EntryType,
	entries []datatypes.Entry) error {
	body, err := json.Marshal(datatypes.AddEmbeddingsRequest{
		Type:    entryType,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("encode %s batch: %w", entryType, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		gatewayURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", entryType, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("post %s batch: %w", entryType, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("gateway rejected the %s batch: status %d: %s",
			entryType, resp.StatusCode, detail)
	}
	return nil
}

// runGroupsCommand prints the threat groups usable with /chat/templated.
func runGroupsCommand(cmd *cobra.Command, args []string) {
	cat, err := catalog.Load()
	if err != nil {
		log.Fatalf("Could not load the embedded catalog: %v", err)
	}
	for _, g := range cat.ThreatGroups() {
		fmt.Printf("%-16s %s\n", g.Name, g.Description)
	}
}
