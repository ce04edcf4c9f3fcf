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

// walkJava extracts imports, class/interface inheritance, and call
// sites from a Java file.
func walkJava(root *sitter.Node, content []byte, facts *FileFacts) {
	var visit func(node *sitter.Node)
	visit = func(node *sitter.Node) {
		switch node.Type() {
		case "import_declaration":
			eachChild(node, func(child *sitter.Node) {
				if child.Type() == "scoped_identifier" || child.Type() == "identifier" {
					facts.Imports = append(facts.Imports, Import{
						Path: nodeText(child, content),
						Line: nodeLine(node),
					})
				}
			})
		case "method_invocation":
			if args := node.ChildByFieldName("arguments"); args != nil && args.Type() == "argument_list" {
				facts.Calls = append(facts.Calls, callFromArguments(node, args, content))
			}
		case "class_declaration", "interface_declaration":
			name := node.ChildByFieldName("name")
			if name == nil {
				break
			}
			if superclass := node.ChildByFieldName("superclass"); superclass != nil {
				// superclass node is "extends T"; the type is a child.
				eachChild(superclass, func(t *sitter.Node) {
					addJavaParent(name, t, node, content, facts)
				})
			}
			if interfaces := node.ChildByFieldName("interfaces"); interfaces != nil {
				eachChild(interfaces, func(list *sitter.Node) {
					if list.Type() != "type_list" {
						return
					}
					eachChild(list, func(t *sitter.Node) {
						addJavaParent(name, t, node, content, facts)
					})
				})
			}
		}
		eachChild(node, visit)
	}
	visit(root)
}

func addJavaParent(name, t, decl *sitter.Node, content []byte, facts *FileFacts) {
	switch t.Type() {
	case "type_identifier", "scoped_type_identifier", "generic_type":
		facts.Inherits = append(facts.Inherits, Inheritance{
			Child:  nodeText(name, content),
			Parent: baseTypeName(nodeText(t, content)),
			Line:   nodeLine(decl),
		})
	}
}
