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

// walkPython extracts imports, class inheritance, and call sites from a
// Python file. Class definitions are visited recursively: nested and
// method-local classes still inherit.
func walkPython(root *sitter.Node, content []byte, facts *FileFacts) {
	var visit func(node *sitter.Node)
	visit = func(node *sitter.Node) {
		switch node.Type() {
		case "import_statement":
			// import a.b, c
			eachChild(node, func(child *sitter.Node) {
				switch child.Type() {
				case "dotted_name":
					facts.Imports = append(facts.Imports, Import{
						Path: nodeText(child, content),
						Line: nodeLine(node),
					})
				case "aliased_import":
					if name := child.ChildByFieldName("name"); name != nil {
						facts.Imports = append(facts.Imports, Import{
							Path: nodeText(name, content),
							Line: nodeLine(node),
						})
					}
				}
			})
		case "import_from_statement":
			// from a.b import c
			if module := node.ChildByFieldName("module_name"); module != nil {
				facts.Imports = append(facts.Imports, Import{
					Path: nodeText(module, content),
					Line: nodeLine(node),
				})
			}
		case "call":
			if args := node.ChildByFieldName("arguments"); args != nil && args.Type() == "argument_list" {
				facts.Calls = append(facts.Calls, callFromArguments(node, args, content))
			}
		case "class_definition":
			name := node.ChildByFieldName("name")
			supers := node.ChildByFieldName("superclasses")
			if name != nil && supers != nil {
				eachChild(supers, func(arg *sitter.Node) {
					switch arg.Type() {
					case "identifier", "attribute":
						facts.Inherits = append(facts.Inherits, Inheritance{
							Child:  nodeText(name, content),
							Parent: nodeText(arg, content),
							Line:   nodeLine(node),
						})
					}
				})
			}
		}
		eachChild(node, visit)
	}
	visit(root)
}
