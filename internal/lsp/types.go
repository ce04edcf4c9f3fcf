// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package lsp

// =============================================================================
// POSITION & RANGE TYPES
// =============================================================================

// Position represents a position in a text document.
// Line and character are 0-indexed per LSP specification.
type Position struct {
	// Line is the 0-indexed line number.
	Line int `json:"line"`

	// Character is the 0-indexed character offset within the line.
	Character int `json:"character"`
}

// Range represents a range in a text document.
type Range struct {
	// Start is the inclusive start position.
	Start Position `json:"start"`

	// End is the exclusive end position.
	End Position `json:"end"`
}

// Location represents a location in a document.
type Location struct {
	// URI is the document URI (file:// scheme).
	URI string `json:"uri"`

	// Range is the range within the document.
	Range Range `json:"range"`
}

// =============================================================================
// DOCUMENT IDENTIFIERS
// =============================================================================

// TextDocumentIdentifier identifies a text document by URI.
type TextDocumentIdentifier struct {
	// URI is the document's URI.
	URI string `json:"uri"`
}

// TextDocumentItem represents a text document with its content.
type TextDocumentItem struct {
	// URI is the document's URI.
	URI string `json:"uri"`

	// LanguageID is the language identifier (e.g., "go", "python").
	LanguageID string `json:"languageId"`

	// Version is the version number of this document.
	Version int `json:"version"`

	// Text is the content of the document.
	Text string `json:"text"`
}

// DidOpenTextDocumentParams contains params for textDocument/didOpen.
type DidOpenTextDocumentParams struct {
	// TextDocument is the document that was opened.
	TextDocument TextDocumentItem `json:"textDocument"`
}

// DidCloseTextDocumentParams contains params for textDocument/didClose.
type DidCloseTextDocumentParams struct {
	// TextDocument is the document that was closed.
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// =============================================================================
// REQUEST PARAMETER TYPES
// =============================================================================

// TextDocumentPositionParams identifies a position in a text document.
type TextDocumentPositionParams struct {
	// TextDocument is the document identifier.
	TextDocument TextDocumentIdentifier `json:"textDocument"`

	// Position is the position within the document.
	Position Position `json:"position"`
}

// DocumentSymbolParams contains params for textDocument/documentSymbol.
type DocumentSymbolParams struct {
	// TextDocument is the document identifier.
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// ReferenceParams extends TextDocumentPositionParams for find references.
type ReferenceParams struct {
	TextDocumentPositionParams

	// Context contains additional context for the request.
	Context ReferenceContext `json:"context"`
}

// ReferenceContext contains options for find references requests.
type ReferenceContext struct {
	// IncludeDeclaration indicates whether to include the declaration.
	IncludeDeclaration bool `json:"includeDeclaration"`
}

// WorkspaceSymbolParams contains workspace symbol query parameters.
type WorkspaceSymbolParams struct {
	// Query filters symbols; the empty string matches everything and is
	// used as a cheap workspace-readiness probe.
	Query string `json:"query"`
}

// =============================================================================
// SYMBOL TYPES
// =============================================================================

// SymbolKind represents the kind of a symbol.
type SymbolKind int

// Symbol kinds as defined by the LSP specification.
const (
	SymbolKindFile          SymbolKind = 1
	SymbolKindModule        SymbolKind = 2
	SymbolKindNamespace     SymbolKind = 3
	SymbolKindPackage       SymbolKind = 4
	SymbolKindClass         SymbolKind = 5
	SymbolKindMethod        SymbolKind = 6
	SymbolKindProperty      SymbolKind = 7
	SymbolKindField         SymbolKind = 8
	SymbolKindConstructor   SymbolKind = 9
	SymbolKindEnum          SymbolKind = 10
	SymbolKindInterface     SymbolKind = 11
	SymbolKindFunction      SymbolKind = 12
	SymbolKindVariable      SymbolKind = 13
	SymbolKindConstant      SymbolKind = 14
	SymbolKindString        SymbolKind = 15
	SymbolKindNumber        SymbolKind = 16
	SymbolKindBoolean       SymbolKind = 17
	SymbolKindArray         SymbolKind = 18
	SymbolKindObject        SymbolKind = 19
	SymbolKindKey           SymbolKind = 20
	SymbolKindNull          SymbolKind = 21
	SymbolKindEnumMember    SymbolKind = 22
	SymbolKindStruct        SymbolKind = 23
	SymbolKindEvent         SymbolKind = 24
	SymbolKindOperator      SymbolKind = 25
	SymbolKindTypeParameter SymbolKind = 26
)

// IsCallable reports whether call-hierarchy requests make sense for
// this symbol kind.
func (k SymbolKind) IsCallable() bool {
	switch k {
	case SymbolKindMethod, SymbolKindFunction, SymbolKindConstructor:
		return true
	default:
		return false
	}
}

// IsContainer reports whether the symbol can own methods (classes,
// structs, interfaces, enums).
func (k SymbolKind) IsContainer() bool {
	switch k {
	case SymbolKindClass, SymbolKindStruct, SymbolKindInterface, SymbolKindEnum:
		return true
	default:
		return false
	}
}

// DocumentSymbol is the hierarchical symbol representation returned by
// textDocument/documentSymbol.
type DocumentSymbol struct {
	// Name is the symbol's name.
	Name string `json:"name"`

	// Detail holds extra information, usually the signature.
	Detail string `json:"detail,omitempty"`

	// Kind is the symbol kind.
	Kind SymbolKind `json:"kind"`

	// Range is the full extent of the symbol.
	Range Range `json:"range"`

	// SelectionRange covers the identifier itself.
	SelectionRange Range `json:"selectionRange"`

	// Children are nested symbols (methods of a class, etc.).
	Children []DocumentSymbol `json:"children,omitempty"`
}

// SymbolInformation is the flat symbol representation some servers
// return instead of DocumentSymbol.
type SymbolInformation struct {
	// Name is the symbol's name.
	Name string `json:"name"`

	// Kind is the symbol kind.
	Kind SymbolKind `json:"kind"`

	// Location is where the symbol is defined.
	Location Location `json:"location"`

	// ContainerName is the name of the containing symbol.
	ContainerName string `json:"containerName,omitempty"`
}

// =============================================================================
// CALL HIERARCHY TYPES
// =============================================================================

// CallHierarchyPrepareParams contains params for
// textDocument/prepareCallHierarchy.
type CallHierarchyPrepareParams struct {
	TextDocumentPositionParams
}

// CallHierarchyItem identifies one end of a call relationship.
type CallHierarchyItem struct {
	// Name is the item's name.
	Name string `json:"name"`

	// Kind is the symbol kind.
	Kind SymbolKind `json:"kind"`

	// Detail holds extra information, usually the signature.
	Detail string `json:"detail,omitempty"`

	// URI is the document URI containing the item.
	URI string `json:"uri"`

	// Range is the full extent of the item.
	Range Range `json:"range"`

	// SelectionRange covers the identifier itself.
	SelectionRange Range `json:"selectionRange"`
}

// CallHierarchyIncomingCallsParams contains params for
// callHierarchy/incomingCalls.
type CallHierarchyIncomingCallsParams struct {
	// Item is the callee whose callers are requested.
	Item CallHierarchyItem `json:"item"`
}

// CallHierarchyOutgoingCallsParams contains params for
// callHierarchy/outgoingCalls.
type CallHierarchyOutgoingCallsParams struct {
	// Item is the caller whose callees are requested.
	Item CallHierarchyItem `json:"item"`
}

// CallHierarchyIncomingCall is one caller of the prepared item.
type CallHierarchyIncomingCall struct {
	// From is the calling symbol.
	From CallHierarchyItem `json:"from"`

	// FromRanges are the call sites within the caller.
	FromRanges []Range `json:"fromRanges"`
}

// CallHierarchyOutgoingCall is one callee of the prepared item.
type CallHierarchyOutgoingCall struct {
	// To is the called symbol.
	To CallHierarchyItem `json:"to"`

	// FromRanges are the call sites within the caller.
	FromRanges []Range `json:"fromRanges"`
}

// =============================================================================
// INITIALIZE TYPES
// =============================================================================

// InitializeParams contains initialization parameters.
type InitializeParams struct {
	// ProcessID is the process ID of the parent process.
	ProcessID int `json:"processId"`

	// RootURI is the root URI of the workspace (preferred over rootPath).
	RootURI string `json:"rootUri"`

	// RootPath is the root path of the workspace (deprecated).
	RootPath string `json:"rootPath,omitempty"`

	// Capabilities describes what the client supports.
	Capabilities ClientCapabilities `json:"capabilities"`

	// InitializationOptions are custom initialization options.
	InitializationOptions interface{} `json:"initializationOptions,omitempty"`

	// WorkspaceFolders are the workspace folders if supported.
	WorkspaceFolders []WorkspaceFolder `json:"workspaceFolders,omitempty"`
}

// WorkspaceFolder represents a workspace folder.
type WorkspaceFolder struct {
	// URI is the folder URI.
	URI string `json:"uri"`

	// Name is the name of the folder.
	Name string `json:"name"`
}

// ClientCapabilities describes what the client supports.
type ClientCapabilities struct {
	// TextDocument describes text document capabilities.
	TextDocument TextDocumentClientCapabilities `json:"textDocument,omitempty"`

	// Workspace describes workspace capabilities.
	Workspace WorkspaceClientCapabilities `json:"workspace,omitempty"`
}

// TextDocumentClientCapabilities describes text document capabilities.
type TextDocumentClientCapabilities struct {
	// DocumentSymbol describes document symbol support.
	DocumentSymbol *DocumentSymbolClientCapabilities `json:"documentSymbol,omitempty"`

	// References describes find-references support.
	References *ReferencesCapabilities `json:"references,omitempty"`

	// CallHierarchy describes call hierarchy support.
	CallHierarchy *CallHierarchyClientCapabilities `json:"callHierarchy,omitempty"`
}

// DocumentSymbolClientCapabilities describes document symbol support.
type DocumentSymbolClientCapabilities struct {
	// HierarchicalDocumentSymbolSupport requests DocumentSymbol trees
	// instead of flat SymbolInformation lists.
	HierarchicalDocumentSymbolSupport bool `json:"hierarchicalDocumentSymbolSupport,omitempty"`
}

// ReferencesCapabilities describes find-references support.
type ReferencesCapabilities struct {
	// DynamicRegistration indicates dynamic registration is supported.
	DynamicRegistration bool `json:"dynamicRegistration,omitempty"`
}

// CallHierarchyClientCapabilities describes call hierarchy support.
type CallHierarchyClientCapabilities struct {
	// DynamicRegistration indicates dynamic registration is supported.
	DynamicRegistration bool `json:"dynamicRegistration,omitempty"`
}

// WorkspaceClientCapabilities describes workspace capabilities.
type WorkspaceClientCapabilities struct {
	// Symbol describes workspace symbol capabilities.
	Symbol *WorkspaceSymbolClientCapabilities `json:"symbol,omitempty"`
}

// WorkspaceSymbolClientCapabilities describes workspace symbol capabilities.
type WorkspaceSymbolClientCapabilities struct {
	// DynamicRegistration indicates dynamic registration is supported.
	DynamicRegistration bool `json:"dynamicRegistration,omitempty"`
}

// InitializeResult contains the server's response to initialize.
type InitializeResult struct {
	// Capabilities describes what the server supports.
	Capabilities ServerCapabilities `json:"capabilities"`

	// ServerInfo contains optional server information.
	ServerInfo *ServerInfo `json:"serverInfo,omitempty"`
}

// ServerInfo contains information about the server.
type ServerInfo struct {
	// Name is the server's name.
	Name string `json:"name"`

	// Version is the server's version.
	Version string `json:"version,omitempty"`
}

// ServerCapabilities describes what the server supports.
type ServerCapabilities struct {
	// DocumentSymbolProvider indicates textDocument/documentSymbol support.
	DocumentSymbolProvider interface{} `json:"documentSymbolProvider,omitempty"`

	// ReferencesProvider indicates textDocument/references support.
	ReferencesProvider interface{} `json:"referencesProvider,omitempty"`

	// CallHierarchyProvider indicates call hierarchy support.
	CallHierarchyProvider interface{} `json:"callHierarchyProvider,omitempty"`

	// WorkspaceSymbolProvider indicates workspace/symbol support.
	WorkspaceSymbolProvider interface{} `json:"workspaceSymbolProvider,omitempty"`
}

// HasDocumentSymbolProvider returns true if documentSymbol is supported.
func (c *ServerCapabilities) HasDocumentSymbolProvider() bool {
	return c.DocumentSymbolProvider != nil && c.DocumentSymbolProvider != false
}

// HasReferencesProvider returns true if references is supported.
func (c *ServerCapabilities) HasReferencesProvider() bool {
	return c.ReferencesProvider != nil && c.ReferencesProvider != false
}

// HasCallHierarchyProvider returns true if call hierarchy is supported.
func (c *ServerCapabilities) HasCallHierarchyProvider() bool {
	return c.CallHierarchyProvider != nil && c.CallHierarchyProvider != false
}

// HasWorkspaceSymbolProvider returns true if workspace/symbol is supported.
func (c *ServerCapabilities) HasWorkspaceSymbolProvider() bool {
	return c.WorkspaceSymbolProvider != nil && c.WorkspaceSymbolProvider != false
}

// =============================================================================
// NOTIFICATION PAYLOADS
// =============================================================================

// LogMessageParams is the payload of window/logMessage.
type LogMessageParams struct {
	// Type is the message severity (1=Error, 2=Warning, 3=Info, 4=Log).
	Type int `json:"type"`

	// Message is the log text.
	Message string `json:"message"`
}

// PublishDiagnosticsParams is the payload of textDocument/publishDiagnostics.
type PublishDiagnosticsParams struct {
	// URI identifies the document the diagnostics belong to.
	URI string `json:"uri"`

	// Diagnostics is the full set for the document.
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// Diagnostic is one reported problem.
type Diagnostic struct {
	// Range is the span the diagnostic applies to.
	Range Range `json:"range"`

	// Severity is 1=Error, 2=Warning, 3=Information, 4=Hint.
	Severity int `json:"severity,omitempty"`

	// Message is the diagnostic text.
	Message string `json:"message"`

	// Source names the producer (e.g., "typescript").
	Source string `json:"source,omitempty"`
}

// LanguageStatusParams is the payload of jdtls's language/status
// notification, used to observe asynchronous project import.
type LanguageStatusParams struct {
	// Type is the status kind ("Starting", "Started", "ServiceReady", ...).
	Type string `json:"type"`

	// Message is the status text.
	Message string `json:"message"`
}
