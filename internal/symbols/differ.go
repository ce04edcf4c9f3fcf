// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package symbols

import "sort"

// Diff compares two versions of one file's content at the symbol level.
//
// Description:
//
//	Symbols are keyed by qualified name. Names only in the new version
//	are added; only in the old version are removed; shared names with
//	unequal normalized signatures are modified; shared names with equal
//	signatures but different body sizes are implementation-only.
//	Deterministic: identical input pairs always yield identical diffs,
//	with every bucket sorted.
func Diff(filePath, oldContent, newContent string) SymbolDiff {
	oldSyms := keyed(Extract(filePath, oldContent))
	newSyms := keyed(Extract(filePath, newContent))
	return diffSets(oldSyms, newSyms)
}

// DiffLang is Diff with an explicit language instead of extension
// sniffing.
func DiffLang(filePath, oldContent, newContent, language string) SymbolDiff {
	oldSyms := keyed(ExtractLang(filePath, oldContent, language))
	newSyms := keyed(ExtractLang(filePath, newContent, language))
	return diffSets(oldSyms, newSyms)
}

func keyed(syms []SymbolInfo) map[string]SymbolInfo {
	out := make(map[string]SymbolInfo, len(syms))
	for _, s := range syms {
		out[s.QualifiedName] = s
	}
	return out
}

func diffSets(oldSyms, newSyms map[string]SymbolInfo) SymbolDiff {
	var d SymbolDiff

	for name, newSym := range newSyms {
		oldSym, shared := oldSyms[name]
		if !shared {
			d.Added = append(d.Added, name)
			continue
		}
		if oldSym.Signature != newSym.Signature {
			d.ModifiedSignatures = append(d.ModifiedSignatures, SignaturePair{Old: name, New: name})
		} else if oldSym.BodyLines() != newSym.BodyLines() {
			d.ImplementationOnly = append(d.ImplementationOnly, name)
		}
	}
	for name := range oldSyms {
		if _, shared := newSyms[name]; !shared {
			d.Removed = append(d.Removed, name)
		}
	}

	sort.Strings(d.Added)
	sort.Strings(d.Removed)
	sort.Strings(d.ImplementationOnly)
	sort.Slice(d.ModifiedSignatures, func(i, j int) bool {
		return d.ModifiedSignatures[i].Old < d.ModifiedSignatures[j].Old
	})
	return d
}
