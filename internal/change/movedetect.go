// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package change

import "path/filepath"

// Move is one recovered rename git's own heuristic missed.
type Move struct {
	// OldPath is the deleted path.
	OldPath string `json:"old_path"`

	// NewPath is the added path.
	NewPath string `json:"new_path"`

	// Hash is the shared content hash that matched the pair.
	Hash string `json:"hash"`
}

// MoveResult holds detected moves and what remained unmatched.
type MoveResult struct {
	Moves   []Move
	Deleted []string
	Added   []string
}

// DetectMoves pairs deleted and added files by content hash.
//
// Description:
//
//	Builds a hash index over deleted files with a known old hash. Each
//	added file with a known new hash matches at most one deleted file,
//	and only when both share a file extension: a .js deleted alongside
//	an identical .jsx added is never a move. Matched pairs leave both
//	unmatched lists, so one deleted file cannot match two added files.
//
// Inputs:
//
//	deleted - Paths removed since the prior run.
//	added - Paths introduced since the prior run.
//	oldHashes - Prior-run content hash per path (for deleted files).
//	newHashes - Current content hash per path (for added files).
func DetectMoves(deleted, added []string, oldHashes, newHashes map[string]string) MoveResult {
	index := make(map[string][]string)
	for _, path := range deleted {
		if h, ok := oldHashes[path]; ok {
			index[h] = append(index[h], path)
		}
	}

	matchedOld := make(map[string]bool)
	var result MoveResult
	for _, path := range added {
		h, ok := newHashes[path]
		if !ok {
			result.Added = append(result.Added, path)
			continue
		}
		oldPath, found := takeMatch(index, h, filepath.Ext(path))
		if !found {
			result.Added = append(result.Added, path)
			continue
		}
		matchedOld[oldPath] = true
		result.Moves = append(result.Moves, Move{OldPath: oldPath, NewPath: path, Hash: h})
	}

	for _, path := range deleted {
		if !matchedOld[path] {
			result.Deleted = append(result.Deleted, path)
		}
	}
	return result
}

// takeMatch removes and returns the first indexed path under hash with
// the required extension.
func takeMatch(index map[string][]string, hash, ext string) (string, bool) {
	candidates := index[hash]
	for i, candidate := range candidates {
		if filepath.Ext(candidate) != ext {
			continue
		}
		index[hash] = append(candidates[:i:i], candidates[i+1:]...)
		return candidate, true
	}
	return "", false
}
