// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package treesit

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// walkGo extracts import paths and call sites from a Go source file.
// Go has no class inheritance, so Inherits stays empty.
func walkGo(root *sitter.Node, content []byte, facts *FileFacts) {
	var visit func(node *sitter.Node)
	visit = func(node *sitter.Node) {
		switch node.Type() {
		case "import_declaration":
			eachChild(node, func(spec *sitter.Node) {
				switch spec.Type() {
				case "import_spec":
					addGoImportSpec(spec, content, facts)
				case "import_spec_list":
					eachChild(spec, func(inner *sitter.Node) {
						if inner.Type() == "import_spec" {
							addGoImportSpec(inner, content, facts)
						}
					})
				}
			})
		case "call_expression":
			if args := node.ChildByFieldName("arguments"); args != nil && args.Type() == "argument_list" {
				facts.Calls = append(facts.Calls, callFromArguments(node, args, content))
			}
		}
		eachChild(node, visit)
	}
	visit(root)
}

func addGoImportSpec(spec *sitter.Node, content []byte, facts *FileFacts) {
	eachChild(spec, func(child *sitter.Node) {
		if child.Type() != "interpreted_string_literal" {
			return
		}
		path := strings.Trim(nodeText(child, content), "\"")
		if path == "" {
			return
		}
		facts.Imports = append(facts.Imports, Import{
			Path: path,
			Line: nodeLine(spec),
		})
	})
}
