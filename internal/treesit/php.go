// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package treesit

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// walkPHP extracts use declarations, class inheritance, and call sites
// from a PHP file.
func walkPHP(root *sitter.Node, content []byte, facts *FileFacts) {
	var visit func(node *sitter.Node)
	visit = func(node *sitter.Node) {
		switch node.Type() {
		case "namespace_use_declaration":
			eachChild(node, func(clause *sitter.Node) {
				if clause.Type() != "namespace_use_clause" {
					return
				}
				eachChild(clause, func(child *sitter.Node) {
					if child.Type() == "qualified_name" || child.Type() == "name" {
						facts.Imports = append(facts.Imports, Import{
							Path: nodeText(child, content),
							Line: nodeLine(node),
						})
					}
				})
			})
		case "function_call_expression", "member_call_expression", "scoped_call_expression":
			if args := node.ChildByFieldName("arguments"); args != nil && args.Type() == "arguments" {
				facts.Calls = append(facts.Calls, callFromArguments(node, args, content))
			}
		case "class_declaration", "interface_declaration":
			name := node.ChildByFieldName("name")
			if name == nil {
				break
			}
			eachChild(node, func(clause *sitter.Node) {
				switch clause.Type() {
				case "base_clause", "class_interface_clause":
					eachChild(clause, func(parent *sitter.Node) {
						if parent.Type() == "name" || parent.Type() == "qualified_name" {
							facts.Inherits = append(facts.Inherits, Inheritance{
								Child:  nodeText(name, content),
								Parent: nodeText(parent, content),
								Line:   nodeLine(node),
							})
						}
					})
				}
			})
		}
		eachChild(node, visit)
	}
	visit(root)
}
