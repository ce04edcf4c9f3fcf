// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package change classifies file-level changes between two analysis
// runs: cosmetic, internal, structural, new, deleted, or moved.
package change

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Normalize canonicalizes content before hashing: CRLF becomes LF,
// trailing whitespace is trimmed per line, and runs of consecutive
// blank lines collapse to one. Two versions differing only in these
// ways hash identically.
func Normalize(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	lines := strings.Split(content, "\n")

	out := make([]string, 0, len(lines))
	blankRun := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			if blankRun {
				continue
			}
			blankRun = true
		} else {
			blankRun = false
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// Hash returns the sha256 hex digest of normalized content. This is
// the digest persisted in run metadata and compared across runs.
func Hash(content string) string {
	sum := sha256.Sum256([]byte(Normalize(content)))
	return hex.EncodeToString(sum[:])
}
