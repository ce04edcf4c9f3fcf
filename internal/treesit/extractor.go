// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package treesit extracts import, inheritance, and call-site facts
// from source text using tree-sitter grammars. The facts feed the
// package dependency map, the class hierarchy's inheritance edges, and
// call-edge argument literals, which document symbols alone cannot
// provide.
package treesit

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/php"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Import is one import statement found in a file.
type Import struct {
	// Path is the imported module path as written, quotes stripped.
	Path string

	// Line is the 1-indexed line of the statement.
	Line int
}

// Call is one call expression found in a file. Argument literals are
// captured as written; the aggregator attaches them to the matching
// call edge by file and line.
type Call struct {
	// Line is the 1-indexed line of the call expression.
	Line int

	// Args are the positional argument literals.
	Args []string

	// Kwargs maps keyword argument names to their literals, for
	// languages with keyword arguments.
	Kwargs map[string]string
}

// Inheritance is one extends/implements relationship found in a file.
type Inheritance struct {
	// Child is the declaring class's simple name.
	Child string

	// Parent is the inherited class's name as written (may be simple
	// or qualified).
	Parent string

	// Line is the 1-indexed line of the class declaration.
	Line int
}

// FileFacts are the structural facts extracted from one file.
type FileFacts struct {
	Imports  []Import
	Inherits []Inheritance
	Calls    []Call
}

// Extractor parses files with tree-sitter and walks their syntax trees.
//
// Thread Safety: NOT safe for concurrent use; tree-sitter parsers are
// single-threaded. Create one Extractor per goroutine.
type Extractor struct {
	parser *sitter.Parser
}

// NewExtractor creates an extractor with a fresh parser.
func NewExtractor() *Extractor {
	return &Extractor{parser: sitter.NewParser()}
}

// Extract parses content and returns its import and inheritance facts.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	language - One of "go", "python", "typescript", "java", "php".
//	content - Raw file content.
//
// Outputs:
//
//	*FileFacts - Extracted facts; empty (not nil) when the file has none.
//	error - Non-nil for unsupported languages or parse failures.
func (e *Extractor) Extract(ctx context.Context, language string, content []byte) (*FileFacts, error) {
	lang, walk, err := grammarFor(language)
	if err != nil {
		return nil, err
	}

	e.parser.SetLanguage(lang)
	tree, err := e.parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	facts := &FileFacts{}
	walk(tree.RootNode(), content, facts)
	return facts, nil
}

// walker folds one language's tree into facts.
type walker func(root *sitter.Node, content []byte, facts *FileFacts)

func grammarFor(language string) (*sitter.Language, walker, error) {
	switch language {
	case "go":
		return golang.GetLanguage(), walkGo, nil
	case "python":
		return python.GetLanguage(), walkPython, nil
	case "typescript":
		return typescript.GetLanguage(), walkTypeScript, nil
	case "java":
		return java.GetLanguage(), walkJava, nil
	case "php":
		return php.GetLanguage(), walkPHP, nil
	default:
		return nil, nil, fmt.Errorf("no tree-sitter grammar for language %q", language)
	}
}

// nodeText returns the source text covered by a node.
func nodeText(node *sitter.Node, content []byte) string {
	return string(content[node.StartByte():node.EndByte()])
}

// nodeLine returns the node's 1-indexed start line.
func nodeLine(node *sitter.Node) int {
	return int(node.StartPoint().Row + 1)
}

// eachChild visits every direct child of a node.
func eachChild(node *sitter.Node, visit func(child *sitter.Node)) {
	for i := 0; i < int(node.ChildCount()); i++ {
		visit(node.Child(i))
	}
}

// callFromArguments folds one argument-list node into a Call fact.
// Python keyword_argument and PHP named-argument children land in
// Kwargs; every other named child is a positional literal as written.
func callFromArguments(call, args *sitter.Node, content []byte) Call {
	c := Call{Line: nodeLine(call)}
	eachChild(args, func(arg *sitter.Node) {
		if !arg.IsNamed() || arg.Type() == "comment" {
			return
		}
		switch arg.Type() {
		case "keyword_argument":
			name := arg.ChildByFieldName("name")
			value := arg.ChildByFieldName("value")
			if name != nil && value != nil {
				c.addKwarg(nodeText(name, content), nodeText(value, content))
				return
			}
		case "argument":
			// PHP wraps each argument; named arguments carry a name child.
			if name := arg.ChildByFieldName("name"); name != nil {
				value := arg.NamedChild(int(arg.NamedChildCount()) - 1)
				if value != nil && value.StartByte() != name.StartByte() {
					c.addKwarg(nodeText(name, content), nodeText(value, content))
					return
				}
			}
		}
		c.Args = append(c.Args, nodeText(arg, content))
	})
	return c
}

func (c *Call) addKwarg(name, value string) {
	if c.Kwargs == nil {
		c.Kwargs = make(map[string]string)
	}
	c.Kwargs[name] = value
}
