// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API credentials from plain-text files in a
// directory, one secret per file. Only the key files this tool knows about
// are read; anything else in the directory is ignored.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// NCBIAPIKey is the key file holding the NCBI E-utilities API key, which
// unlocks the elevated request rate.
const NCBIAPIKey = "ncbi-api-key"

// keyFiles lists every secret the CLI consumes.
var keyFiles = []string{NCBIAPIKey}

// Load reads the known key files from dir and returns a map of key name to
// trimmed contents. A missing directory or missing key file is not an
// error; unreadable files produce a warning on stderr and are skipped.
func Load(dir string) map[string]string {
	secrets := make(map[string]string, len(keyFiles))
	for _, name := range keyFiles {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			if !os.IsNotExist(err) {
				fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			}
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}
	return secrets
}
