// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package symbols

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Extract parses declarations out of raw text, picking the language
// from the file extension. Unknown extensions yield no symbols.
func Extract(filePath, content string) []SymbolInfo {
	language := languageForPath(filePath)
	if language == "" {
		return nil
	}
	return ExtractLang(filePath, content, language)
}

// ExtractLang parses declarations for a known language.
//
// Description:
//
//	Applies per-language structural patterns for class/struct/function/
//	method declarations. Extents come from indentation tracking for
//	indentation-significant languages and brace counting for the rest.
//	Multi-line signatures are accumulated until their parentheses
//	balance, then normalized.
func ExtractLang(filePath, content, language string) []SymbolInfo {
	switch language {
	case "python":
		return extractIndented(filePath, content)
	case "go", "typescript", "java", "php":
		return extractBraced(filePath, content, language)
	default:
		return nil
	}
}

func languageForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py", ".pyi":
		return "python"
	case ".go":
		return "go"
	case ".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs":
		return "typescript"
	case ".java":
		return "java"
	case ".php":
		return "php"
	default:
		return ""
	}
}

// =============================================================================
// PATTERNS
// =============================================================================

var (
	pyClassRe = regexp.MustCompile(`^(\s*)class\s+([A-Za-z_]\w*)\s*[(:]`)
	pyDefRe   = regexp.MustCompile(`^(\s*)(?:async\s+)?def\s+([A-Za-z_]\w*)\s*\(`)

	goTypeRe = regexp.MustCompile(`^type\s+([A-Za-z_]\w*)(?:\[[^\]]*\])?\s+(struct|interface)\b`)
	goFuncRe = regexp.MustCompile(`^func\s+(?:\(([^)]*)\)\s*)?([A-Za-z_]\w*)\s*[(\[]`)

	tsClassRe  = regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:declare\s+)?(?:abstract\s+)?(class|interface)\s+([A-Za-z_$][\w$]*)`)
	tsFuncRe   = regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:async\s+)?function\s*\*?\s*([A-Za-z_$][\w$]*)\s*[(<]`)
	tsMethodRe = regexp.MustCompile(`^\s*(?:(?:public|private|protected|static|readonly|async|override|abstract|get|set)\s+)*\*?\s*([A-Za-z_$][\w$]*)\s*[(<]`)

	javaClassRe  = regexp.MustCompile(`^\s*(?:(?:public|private|protected|static|final|abstract|sealed)\s+)*(class|interface|enum|record)\s+([A-Za-z_]\w*)`)
	javaMethodRe = regexp.MustCompile(`^\s*(?:(?:public|private|protected|static|final|abstract|synchronized|native|default)\s+)*(?:<[^=>]+>\s+)?[\w.<>\[\],?\s]*?([A-Za-z_]\w*)\s*\(`)

	phpClassRe = regexp.MustCompile(`^\s*(?:(?:final|abstract)\s+)*(class|interface|trait)\s+([A-Za-z_]\w*)`)
	phpFuncRe  = regexp.MustCompile(`^\s*(?:(?:public|private|protected|static|final|abstract)\s+)*function\s+&?\s*([A-Za-z_]\w*)\s*\(`)
)

// notMethodNames are identifiers a method pattern may capture that are
// actually control flow or operators.
var notMethodNames = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "catch": true,
	"return": true, "new": true, "throw": true, "else": true, "do": true,
	"try": true, "typeof": true, "await": true, "function": true,
	"super": true, "this": true, "assert": true, "synchronized": true,
}

func kindFor(keyword string) Kind {
	switch keyword {
	case "struct":
		return KindStruct
	case "interface":
		return KindInterface
	case "class", "enum", "record", "trait":
		return KindClass
	default:
		return KindClass
	}
}

// =============================================================================
// INDENTATION-TRACKED EXTRACTION (PYTHON)
// =============================================================================

type indentFrame struct {
	sym       *SymbolInfo
	indent    int
	container bool
}

func extractIndented(filePath, content string) []SymbolInfo {
	lines := strings.Split(content, "\n")
	var out []SymbolInfo
	var stack []indentFrame
	lastNonBlank := 0

	var collecting *SymbolInfo
	var sigBuf strings.Builder
	parenDepth := 0

	finishSig := func() {
		sig := strings.TrimSpace(sigBuf.String())
		// Cut at the colon that ends the def header, keeping a return
		// annotation; a one-liner's body never reaches the signature.
		if close := matchingParen(sig); close >= 0 {
			rest := sig[close+1:]
			if colon := strings.IndexByte(rest, ':'); colon >= 0 {
				rest = rest[:colon]
			}
			sig = sig[:close+1] + strings.TrimRight(rest, " \t")
		}
		collecting.Signature = normalizeSignature(sig)
		collecting = nil
		sigBuf.Reset()
	}

	for i, line := range lines {
		lineNo := i + 1
		trimmed := strings.TrimSpace(line)

		if collecting != nil {
			sigBuf.WriteString(" " + trimmed)
			parenDepth += strings.Count(line, "(") - strings.Count(line, ")")
			if parenDepth <= 0 {
				finishSig()
			}
			lastNonBlank = lineNo
			continue
		}

		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		indent := len(line) - len(strings.TrimLeft(line, " \t"))

		// Close every frame at this indent or deeper.
		for len(stack) > 0 && stack[len(stack)-1].indent >= indent {
			top := stack[len(stack)-1]
			top.sym.EndLine = lastNonBlank
			out = append(out, *top.sym)
			stack = stack[:len(stack)-1]
		}

		if m := pyClassRe.FindStringSubmatch(line); m != nil {
			sym := &SymbolInfo{
				Name:      m[2],
				Kind:      KindClass,
				FilePath:  filePath,
				StartLine: lineNo,
				Signature: normalizeSignature(strings.TrimSuffix(trimmed, ":")),
			}
			qualify(sym, stack)
			stack = append(stack, indentFrame{sym: sym, indent: indent, container: true})
		} else if m := pyDefRe.FindStringSubmatch(line); m != nil {
			// Nested functions (def inside def) stay invisible; only
			// top-level functions and class methods are API surface.
			if len(stack) == 0 || stack[len(stack)-1].container {
				sym := &SymbolInfo{
					Name:      m[2],
					Kind:      KindFunction,
					FilePath:  filePath,
					StartLine: lineNo,
				}
				qualify(sym, stack)
				if sym.ParentName != "" {
					sym.Kind = KindMethod
				}
				stack = append(stack, indentFrame{sym: sym, indent: indent})

				parenDepth = strings.Count(line, "(") - strings.Count(line, ")")
				collecting = sym
				sigBuf.WriteString(trimmed)
				if parenDepth <= 0 {
					finishSig()
				}
			}
		}

		lastNonBlank = lineNo
	}

	if collecting != nil {
		finishSig()
	}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		top.sym.EndLine = lastNonBlank
		out = append(out, *top.sym)
		stack = stack[:len(stack)-1]
	}
	return out
}

func qualify(sym *SymbolInfo, stack []indentFrame) {
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].container {
			sym.ParentName = stack[i].sym.QualifiedName
			break
		}
	}
	if sym.ParentName != "" {
		sym.QualifiedName = sym.ParentName + "." + sym.Name
	} else {
		sym.QualifiedName = sym.Name
	}
}

// =============================================================================
// BRACE-TRACKED EXTRACTION (GO, TYPESCRIPT, JAVA, PHP)
// =============================================================================

type braceFrame struct {
	sym       *SymbolInfo
	bodyDepth int
	container bool
}

type pendingDecl struct {
	sym        *SymbolInfo
	container  bool
	sigBuf     strings.Builder
	parenSeen  bool
	parenDepth int
	sigDone    bool

	// idleLines counts lines since the signature completed without a
	// body opening; a false-positive match is dropped after a few.
	idleLines int
}

func extractBraced(filePath, content, language string) []SymbolInfo {
	lines := strings.Split(content, "\n")
	var out []SymbolInfo
	var stack []braceFrame
	var pending *pendingDecl
	depth := 0
	inBlockComment := false

	innermost := func() *braceFrame {
		if len(stack) == 0 {
			return nil
		}
		return &stack[len(stack)-1]
	}
	parentContainer := func() *SymbolInfo {
		for i := len(stack) - 1; i >= 0; i-- {
			if stack[i].container {
				return stack[i].sym
			}
		}
		return nil
	}

	for i, rawLine := range lines {
		lineNo := i + 1
		line := stripCodeComments(rawLine, language, &inBlockComment)

		if pending != nil && pending.sigDone {
			pending.idleLines++
			if pending.idleLines > 3 {
				pending = nil
			}
		}
		if pending != nil && !pending.sigDone {
			appendSignature(pending, line)
		} else if pending == nil {
			if sym, container := matchDecl(line, language, depth, innermost(), parentContainer()); sym != nil {
				sym.FilePath = filePath
				sym.StartLine = lineNo
				pending = &pendingDecl{sym: sym, container: container}
				appendSignature(pending, line)
			}
		}

		for _, ch := range line {
			switch ch {
			case '{':
				depth++
				if pending != nil && pending.sigDone {
					stack = append(stack, braceFrame{
						sym:       pending.sym,
						bodyDepth: depth,
						container: pending.container,
					})
					pending = nil
				}
			case '}':
				if depth > 0 {
					depth--
				}
				for len(stack) > 0 && depth < stack[len(stack)-1].bodyDepth {
					top := stack[len(stack)-1]
					top.sym.EndLine = lineNo
					out = append(out, *top.sym)
					stack = stack[:len(stack)-1]
				}
			case ';':
				// Bodyless declaration (interface method, abstract method).
				if pending != nil && pending.sigDone && len(stack) > 0 && depth == stack[len(stack)-1].bodyDepth {
					pending.sym.EndLine = lineNo
					out = append(out, *pending.sym)
					pending = nil
				}
			}
		}
	}

	// Unbalanced input: close what remains at EOF.
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		top.sym.EndLine = len(lines)
		out = append(out, *top.sym)
		stack = stack[:len(stack)-1]
	}
	return out
}

// matchDecl applies the language's declaration patterns with the
// current nesting context.
func matchDecl(line, language string, depth int, innermost *braceFrame, parent *SymbolInfo) (*SymbolInfo, bool) {
	insideContainer := innermost != nil && innermost.container && depth == innermost.bodyDepth
	atTopLevel := depth == 0

	newSym := func(name string, kind Kind) *SymbolInfo {
		sym := &SymbolInfo{Name: name, Kind: kind, QualifiedName: name}
		if parent != nil && (insideContainer || kind == KindClass || kind == KindStruct || kind == KindInterface) {
			sym.ParentName = parent.QualifiedName
			sym.QualifiedName = parent.QualifiedName + "." + name
		}
		return sym
	}

	switch language {
	case "go":
		if m := goTypeRe.FindStringSubmatch(line); m != nil && atTopLevel {
			return newSym(m[1], kindFor(m[2])), true
		}
		if m := goFuncRe.FindStringSubmatch(line); m != nil && atTopLevel {
			sym := &SymbolInfo{Name: m[2], Kind: KindFunction, QualifiedName: m[2]}
			if recv := receiverType(m[1]); recv != "" {
				sym.Kind = KindMethod
				sym.ParentName = recv
				sym.QualifiedName = recv + "." + m[2]
			}
			return sym, false
		}
	case "typescript":
		if m := tsClassRe.FindStringSubmatch(line); m != nil && (atTopLevel || insideContainer) {
			return newSym(m[2], kindFor(m[1])), true
		}
		if m := tsFuncRe.FindStringSubmatch(line); m != nil && atTopLevel {
			return newSym(m[1], KindFunction), false
		}
		if insideContainer {
			if m := tsMethodRe.FindStringSubmatch(line); m != nil && !notMethodNames[m[1]] {
				return newSym(m[1], KindMethod), false
			}
		}
	case "java":
		if m := javaClassRe.FindStringSubmatch(line); m != nil {
			return newSym(m[2], kindFor(m[1])), true
		}
		if insideContainer {
			if m := javaMethodRe.FindStringSubmatch(line); m != nil && !notMethodNames[m[1]] {
				return newSym(m[1], KindMethod), false
			}
		}
	case "php":
		if m := phpClassRe.FindStringSubmatch(line); m != nil {
			return newSym(m[2], kindFor(m[1])), true
		}
		if m := phpFuncRe.FindStringSubmatch(line); m != nil && (atTopLevel || insideContainer) {
			kind := KindFunction
			if insideContainer {
				kind = KindMethod
			}
			return newSym(m[1], kind), false
		}
	}
	return nil, false
}

// appendSignature accumulates declaration text until its parentheses
// balance, then normalizes it. Container declarations have no parameter
// list to balance; their first line is the signature.
func appendSignature(p *pendingDecl, line string) {
	trimmed := strings.TrimSpace(line)
	if p.sigBuf.Len() > 0 {
		p.sigBuf.WriteString(" ")
	}
	p.sigBuf.WriteString(trimmed)

	if p.container {
		sig := p.sigBuf.String()
		if idx := strings.IndexByte(sig, '{'); idx >= 0 {
			sig = sig[:idx]
		}
		p.sym.Signature = normalizeSignature(sig)
		p.sigDone = true
		return
	}

	for _, ch := range line {
		switch ch {
		case '(':
			p.parenSeen = true
			p.parenDepth++
		case ')':
			p.parenDepth--
		}
	}
	if p.parenSeen && p.parenDepth <= 0 {
		sig := p.sigBuf.String()
		if idx := matchingParen(sig); idx >= 0 {
			// Keep a return-type annotation but drop the body opener.
			rest := sig[idx+1:]
			if cut := strings.IndexByte(rest, '{'); cut >= 0 {
				rest = rest[:cut]
			}
			sig = sig[:idx+1] + strings.TrimRight(rest, " \t;")
		}
		p.sym.Signature = normalizeSignature(sig)
		p.sigDone = true
	}
}

// receiverType extracts the type name from a Go method receiver like
// "r *Repo" or "r Repo[T]".
func receiverType(recv string) string {
	recv = strings.TrimSpace(recv)
	if recv == "" {
		return ""
	}
	fields := strings.Fields(recv)
	t := fields[len(fields)-1]
	t = strings.TrimLeft(t, "*")
	if idx := strings.IndexByte(t, '['); idx > 0 {
		t = t[:idx]
	}
	return t
}

// =============================================================================
// COMMENT / STRING STRIPPING
// =============================================================================

// stripCodeComments blanks out comments and string literal contents so
// brace counting and pattern matching never trip on them. Replacement
// preserves byte offsets with spaces.
func stripCodeComments(line, language string, inBlockComment *bool) string {
	out := []byte(line)
	var quote byte
	i := 0
	for i < len(out) {
		c := out[i]
		switch {
		case *inBlockComment:
			if c == '*' && i+1 < len(out) && out[i+1] == '/' {
				*inBlockComment = false
				out[i], out[i+1] = ' ', ' '
				i += 2
				continue
			}
			out[i] = ' '
		case quote != 0:
			if c == '\\' && i+1 < len(out) {
				out[i], out[i+1] = ' ', ' '
				i += 2
				continue
			}
			if c == quote {
				quote = 0
			} else {
				out[i] = ' '
			}
		case c == '"' || c == '\'' || c == '`':
			quote = c
		case c == '/' && i+1 < len(out) && out[i+1] == '/':
			return string(out[:i])
		case c == '#' && language == "php":
			return string(out[:i])
		case c == '/' && i+1 < len(out) && out[i+1] == '*':
			*inBlockComment = true
			out[i], out[i+1] = ' ', ' '
			i += 2
			continue
		}
		i++
	}
	return string(out)
}

// =============================================================================
// SIGNATURE NORMALIZATION
// =============================================================================

// normalizeSignature collapses whitespace and strips default-value
// expressions so formatting differences never register as signature
// changes.
func normalizeSignature(raw string) string {
	stripped := stripDefaults(raw)
	collapsed := strings.Join(strings.Fields(stripped), " ")
	return tightenPunctuation(collapsed)
}

// stripDefaults removes "= expr" segments inside the outermost
// parameter list.
func stripDefaults(sig string) string {
	open := strings.IndexByte(sig, '(')
	if open < 0 {
		return sig
	}

	var b strings.Builder
	b.WriteString(sig[:open+1])
	depth := 1
	i := open + 1
	for i < len(sig) {
		c := sig[i]
		switch c {
		case '(', '[', '{', '<':
			depth++
		case ')', ']', '}', '>':
			depth--
			if depth == 0 {
				b.WriteString(sig[i:])
				return b.String()
			}
		case '=':
			// Skip a default value at parameter-list depth; leave
			// comparison and arrow operators alone.
			next := byte(0)
			if i+1 < len(sig) {
				next = sig[i+1]
			}
			prev := byte(0)
			if i > 0 {
				prev = sig[i-1]
			}
			if depth == 1 && next != '=' && next != '>' && prev != '=' && prev != '!' && prev != '<' && prev != '>' {
				i = skipDefaultValue(sig, i+1)
				continue
			}
		}
		b.WriteByte(c)
		i++
	}
	return b.String()
}

// matchingParen returns the index of the ')' closing the first '(' in
// s, or -1.
func matchingParen(s string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// skipDefaultValue returns the index of the delimiter ending a default
// value that starts at `from`: the next ',' or the parameter list's
// closing ')' at nesting level 1.
func skipDefaultValue(sig string, from int) int {
	depth := 1
	for j := from; j < len(sig); j++ {
		switch sig[j] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth == 0 {
				return j
			}
		case ',':
			if depth == 1 {
				return j
			}
		}
	}
	return len(sig)
}

// tightenPunctuation removes spaces adjacent to structural punctuation.
func tightenPunctuation(s string) string {
	for _, p := range []string{"(", ")", ",", ":", "[", "]", "<", ">", "*", "="} {
		s = strings.ReplaceAll(s, " "+p, p)
		s = strings.ReplaceAll(s, p+" ", p)
	}
	return s
}
