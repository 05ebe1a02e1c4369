// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

// Command gen-schema writes the seed manifest JSON Schema for editors and CI.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/talentdesk/backoffice/internal/seed"
)

func main() {
	outPath := flag.String("out", filepath.Join("schemas", "seed.schema.json"), "output path")
	flag.Parse()

	if err := run(*outPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Generated %s\n", *outPath)
}

func run(outPath string) error {
	schema, err := seed.GenerateSchema()
	if err != nil {
		return fmt.Errorf("generating schema: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o750); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	if err := os.WriteFile(outPath, append(schema, '\n'), 0o600); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
