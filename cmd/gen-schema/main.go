// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

// Command gen-schema writes the JSON Schema of every client request kind.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/beachbev/accountd/internal/wire"
)

func main() {
	dir := "schemas"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	written, err := generate(dir)
	for _, path := range written {
		fmt.Printf("Generated %s\n", path)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating schemas: %v\n", err)
		os.Exit(1)
	}
}

// generate writes dir/<kind>.schema.json for each request kind and returns
// the paths it wrote.
func generate(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}

	var written []string
	for _, kind := range wire.RequestKinds() {
		schema, err := wire.GenerateSchema(kind)
		if err != nil {
			return written, err
		}
		path := filepath.Join(dir, string(kind)+".schema.json")
		if err := os.WriteFile(path, schema, 0o600); err != nil {
			return written, fmt.Errorf("writing %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}
