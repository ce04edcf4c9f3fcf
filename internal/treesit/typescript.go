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

// walkTypeScript extracts imports, class inheritance, and call sites
// from a TypeScript file. The grammar also parses plain JavaScript,
// which is how .js/.jsx sources are handled.
func walkTypeScript(root *sitter.Node, content []byte, facts *FileFacts) {
	var visit func(node *sitter.Node)
	visit = func(node *sitter.Node) {
		switch node.Type() {
		case "import_statement":
			if source := node.ChildByFieldName("source"); source != nil {
				path := strings.Trim(nodeText(source, content), "\"'`")
				if path != "" {
					facts.Imports = append(facts.Imports, Import{
						Path: path,
						Line: nodeLine(node),
					})
				}
			}
		case "call_expression":
			if args := node.ChildByFieldName("arguments"); args != nil && args.Type() == "arguments" {
				facts.Calls = append(facts.Calls, callFromArguments(node, args, content))
			}
		case "class_declaration", "abstract_class_declaration":
			name := node.ChildByFieldName("name")
			if name == nil {
				break
			}
			eachChild(node, func(child *sitter.Node) {
				if child.Type() != "class_heritage" {
					return
				}
				eachChild(child, func(clause *sitter.Node) {
					switch clause.Type() {
					case "extends_clause", "implements_clause":
						eachChild(clause, func(parent *sitter.Node) {
							switch parent.Type() {
							case "identifier", "member_expression", "type_identifier", "nested_type_identifier", "generic_type":
								facts.Inherits = append(facts.Inherits, Inheritance{
									Child:  nodeText(name, content),
									Parent: baseTypeName(nodeText(parent, content)),
									Line:   nodeLine(node),
								})
							}
						})
					}
				})
			})
		}
		eachChild(node, visit)
	}
	visit(root)
}

// baseTypeName strips type arguments: "Repository<User>" -> "Repository".
func baseTypeName(name string) string {
	if idx := strings.Index(name, "<"); idx > 0 {
		return name[:idx]
	}
	return name
}
