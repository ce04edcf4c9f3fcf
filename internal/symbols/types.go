// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package symbols is a structural, LSP-independent symbol extractor and
// differ. It recovers declaration signatures and extents from raw text
// so the change classifier can compare two versions of a file without
// spinning up a language server.
package symbols

// Kind classifies an extracted symbol.
type Kind string

const (
	KindClass     Kind = "class"
	KindStruct    Kind = "struct"
	KindInterface Kind = "interface"
	KindFunction  Kind = "function"
	KindMethod    Kind = "method"
)

// SymbolInfo is one extracted declaration. Transient, produced per
// diff call.
type SymbolInfo struct {
	// QualifiedName is the dotted parent chain plus name, unique within
	// the file.
	QualifiedName string `json:"qualified_name"`

	// Name is the simple declaration name.
	Name string `json:"name"`

	// Kind is the declaration kind.
	Kind Kind `json:"kind"`

	// FilePath is the file the symbol was extracted from.
	FilePath string `json:"file_path"`

	// StartLine is the 1-indexed declaration line.
	StartLine int `json:"start_line"`

	// EndLine is the 1-indexed last line of the symbol's extent.
	EndLine int `json:"end_line"`

	// Signature is the normalized declaration signature: collapsed
	// whitespace, default-value expressions stripped.
	Signature string `json:"signature"`

	// ParentName is the enclosing symbol's qualified name, empty for
	// top-level declarations.
	ParentName string `json:"parent_name,omitempty"`
}

// BodyLines is the symbol's extent in lines.
func (s SymbolInfo) BodyLines() int {
	return s.EndLine - s.StartLine + 1
}

// SignaturePair records a signature change for one symbol.
type SignaturePair struct {
	// Old is the symbol's qualified name in the old version.
	Old string `json:"old"`

	// New is the symbol's qualified name in the new version.
	New string `json:"new"`
}

// SymbolDiff is the comparison of two versions of one file's symbol
// set.
type SymbolDiff struct {
	// Added are qualified names present only in the new version.
	Added []string `json:"added,omitempty"`

	// Removed are qualified names present only in the old version.
	Removed []string `json:"removed,omitempty"`

	// ModifiedSignatures are symbols present in both versions whose
	// normalized signatures differ.
	ModifiedSignatures []SignaturePair `json:"modified_signatures,omitempty"`

	// ImplementationOnly are symbols with unchanged signatures but
	// different body sizes.
	ImplementationOnly []string `json:"implementation_only,omitempty"`
}

// HasAPIChanges reports whether the diff contains any change visible to
// callers of the file's symbols.
func (d SymbolDiff) HasAPIChanges() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0 || len(d.ModifiedSignatures) > 0
}

// IsEmpty reports whether no symbol-level change was detected at all.
func (d SymbolDiff) IsEmpty() bool {
	return !d.HasAPIChanges() && len(d.ImplementationOnly) == 0
}
