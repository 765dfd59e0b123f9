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
	"os"

	"github.com/spf13/cobra"
)

var (
	gatewayURL string

	rootCmd = &cobra.Command{
		Use:   "threatgate",
		Short: "A cli to manage the ThreatGate inference gateway",
	}

	seedCmd = &cobra.Command{
		Use:   "seed",
		Short: "Seed the vector store with the built-in mitigation and threat-group catalogs",
		Run:   runSeedCommand, // Defined in cmd_seed.go
	}

	groupsCmd = &cobra.Command{
		Use:   "groups",
		Short: "List the threat groups available for templated chat",
		Run:   runGroupsCommand,
	}
)

func init() {
	defaultURL := os.Getenv("THREATGATE_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:12220"
	}
	rootCmd.PersistentFlags().StringVar(&gatewayURL, "gateway", defaultURL,
		"Base URL of the running gateway")
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(groupsCmd)
}
