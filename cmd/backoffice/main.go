// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

// Package main is the entry point for the back-office API.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cmd := NewRootCmd()
	cmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
