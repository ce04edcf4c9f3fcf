// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/codescope/internal/lang"
)

// =============================================================================
// CLIENT STATE
// =============================================================================

// ClientState represents the lifecycle state of a language client.
type ClientState int

const (
	// ClientStateCreated is the initial state.
	ClientStateCreated ClientState = iota

	// ClientStateStarting means the server subprocess is being spawned.
	ClientStateStarting

	// ClientStateInitializing means the initialize handshake and
	// workspace bootstrap are in progress.
	ClientStateInitializing

	// ClientStateReady means per-file analysis requests may be sent.
	ClientStateReady

	// ClientStateClosing means the client is tearing down.
	ClientStateClosing

	// ClientStateClosed means the client has terminated.
	ClientStateClosed
)

// String returns a human-readable state name.
func (s ClientState) String() string {
	names := []string{"created", "starting", "initializing", "ready", "closing", "closed"}
	if int(s) < len(names) {
		return names[s]
	}
	return "unknown"
}

// =============================================================================
// OPTIONS & RESULT TYPES
// =============================================================================

// Options carries the run-scoped settings a client needs. Built from
// the run configuration by the engine; there is no package-level
// configuration state.
type Options struct {
	// InitializeTimeout bounds the initialize handshake. Deliberately
	// long: cold-start indexing can take minutes.
	InitializeTimeout time.Duration

	// RequestTimeout bounds each per-file request.
	RequestTimeout time.Duration

	// TSWarmupDelay is the TypeScript post-didOpen settle delay.
	TSWarmupDelay time.Duration

	// TSRepresentativeFiles is how many files TypeScript opens during
	// workspace bootstrap.
	TSRepresentativeFiles int

	// JavaHeapMB sizes the jdtls JVM heap.
	JavaHeapMB int

	// JavaImportTimeout bounds the wait for jdtls project import.
	JavaImportTimeout time.Duration
}

// DefaultOptions returns conservative request timeouts.
func DefaultOptions() Options {
	return Options{
		InitializeTimeout:     5 * time.Minute,
		RequestTimeout:        30 * time.Second,
		TSWarmupDelay:         2 * time.Second,
		TSRepresentativeFiles: 3,
		JavaHeapMB:            2048,
		JavaImportTimeout:     3 * time.Minute,
	}
}

// CallEdge is one raw call relationship reported by the server. The
// aggregator resolves both ends to qualified names; an end it cannot
// resolve becomes the synthesized `<dynamic>` node.
type CallEdge struct {
	// From is the calling symbol.
	From CallHierarchyItem `json:"from"`

	// To is the called symbol.
	To CallHierarchyItem `json:"to"`

	// FromRanges are the call sites within the caller.
	FromRanges []Range `json:"fromRanges"`
}

// FileAnalysis is the raw LSP output for one source file.
type FileAnalysis struct {
	// Path is the repo-relative file path.
	Path string `json:"path"`

	// Symbols is the hierarchical document symbol tree.
	Symbols []DocumentSymbol `json:"symbols"`

	// Calls are the resolved incoming/outgoing call edges touching
	// symbols declared in this file.
	Calls []CallEdge `json:"calls"`

	// References maps a dotted symbol path within this file to the
	// locations referencing it.
	References map[string][]Location `json:"references,omitempty"`
}

// AnalysisResult is one language's complete raw analysis output.
// Per-file entries accumulate independently of order.
type AnalysisResult struct {
	// Language is the language identifier.
	Language string `json:"language"`

	// Files holds the per-file outputs, one per successfully analyzed file.
	Files []FileAnalysis `json:"files"`

	// Failures records files that were skipped after request failures.
	Failures []FileFailure `json:"failures,omitempty"`
}

// =============================================================================
// CLIENT INTERFACE
// =============================================================================

// Client is the per-language analysis capability. One implementation
// per language composes the shared Server transport; there is no
// inheritance hierarchy.
type Client interface {
	// Language returns the language identifier this client analyzes.
	Language() string

	// Start spawns the server, runs the initialize handshake, and
	// performs language-specific workspace bootstrap. A failure is
	// fatal only for this language.
	Start(ctx context.Context) error

	// BuildStaticAnalysis analyzes the given repo-relative files.
	// Single-file failures are recorded in the result and skipped.
	BuildStaticAnalysis(ctx context.Context, files []string) (*AnalysisResult, error)

	// ErrorDiagnostics returns the error-severity diagnostic counts the
	// server has published so far, keyed by document URI.
	ErrorDiagnostics() map[string]int

	// Close tears down the transport and any per-client temp workspace.
	Close(ctx context.Context) error
}

// New creates the client for a detected language.
//
// Outputs:
//
//	Client - A language-specific client composing the shared transport
//	error - Non-nil for languages without a client implementation
func New(cfg lang.ServerConfig, rootPath string, opts Options) (Client, error) {
	switch cfg.Language {
	case "python", "go", "php":
		return newBaseClient(cfg, rootPath, opts), nil
	case "typescript":
		return newTypeScriptClient(cfg, rootPath, opts), nil
	case "java":
		return newJavaClient(cfg, rootPath, opts), nil
	default:
		return nil, fmt.Errorf("no client implementation for language %q", cfg.Language)
	}
}

// =============================================================================
// BASE CLIENT
// =============================================================================

// baseClient implements the generic LSP analysis flow. Language
// implementations embed it and install bootstrap/notification hooks.
type baseClient struct {
	cfg      lang.ServerConfig
	rootPath string
	opts     Options
	server   *Server

	state   ClientState
	stateMu sync.RWMutex

	capabilities ServerCapabilities

	// bootstrap, when set, runs after the initialize handshake and
	// before the client is marked ready.
	bootstrap func(ctx context.Context) error

	// onNotification, when set, observes server notifications after
	// the generic handling.
	onNotification func(method string, params json.RawMessage)

	// closeHook, when set, runs during Close after transport teardown.
	closeHook func()

	diagMu      sync.Mutex
	diagnostics map[string]int // uri -> error-severity diagnostic count
}

// newBaseClient builds the plain client used for Python, Go, and PHP,
// and the embedded core of the TypeScript and Java clients.
func newBaseClient(cfg lang.ServerConfig, rootPath string, opts Options) *baseClient {
	return &baseClient{
		cfg:         cfg,
		rootPath:    rootPath,
		opts:        opts,
		state:       ClientStateCreated,
		diagnostics: make(map[string]int),
	}
}

// Language returns the language identifier.
func (c *baseClient) Language() string {
	return c.cfg.Language
}

// State returns the current client state.
func (c *baseClient) State() ClientState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

func (c *baseClient) setState(s ClientState) {
	c.stateMu.Lock()
	c.state = s
	c.stateMu.Unlock()
}

// Start spawns the server and drives the handshake + bootstrap.
func (c *baseClient) Start(ctx context.Context) error {
	if c.State() != ClientStateCreated {
		return ErrServerAlreadyStarted
	}
	c.setState(ClientStateStarting)

	c.server = NewServer(c.cfg.Language, c.cfg.Command, c.serverArgs(), c.rootPath)
	if err := c.server.Start(ctx); err != nil {
		c.setState(ClientStateClosed)
		return err
	}
	c.server.SetNotificationHandler(c.handleNotification)

	c.setState(ClientStateInitializing)
	if err := c.initialize(ctx); err != nil {
		_ = c.server.Shutdown(ctx)
		c.setState(ClientStateClosed)
		return fmt.Errorf("%w: %v", ErrInitializeFailed, err)
	}

	if c.bootstrap != nil {
		if err := c.bootstrap(ctx); err != nil {
			_ = c.server.Shutdown(ctx)
			c.setState(ClientStateClosed)
			return err
		}
	}

	c.setState(ClientStateReady)
	slog.Info("LSP client ready",
		slog.String("language", c.cfg.Language),
		slog.Bool("document_symbol", c.capabilities.HasDocumentSymbolProvider()),
		slog.Bool("call_hierarchy", c.capabilities.HasCallHierarchyProvider()),
		slog.Bool("references", c.capabilities.HasReferencesProvider()),
	)
	return nil
}

// serverArgs returns the argv for the server; hooks may not change it,
// language clients override by wrapping before construction.
func (c *baseClient) serverArgs() []string {
	return c.cfg.Args
}

// initialize runs the initialize/initialized handshake with the long
// cold-start timeout.
func (c *baseClient) initialize(ctx context.Context) error {
	params := InitializeParams{
		ProcessID: os.Getpid(),
		RootURI:   PathToURI(c.rootPath),
		RootPath:  c.rootPath,
		Capabilities: ClientCapabilities{
			TextDocument: TextDocumentClientCapabilities{
				DocumentSymbol: &DocumentSymbolClientCapabilities{
					HierarchicalDocumentSymbolSupport: true,
				},
				References:    &ReferencesCapabilities{},
				CallHierarchy: &CallHierarchyClientCapabilities{},
			},
			Workspace: WorkspaceClientCapabilities{
				Symbol: &WorkspaceSymbolClientCapabilities{},
			},
		},
		WorkspaceFolders: []WorkspaceFolder{
			{URI: PathToURI(c.rootPath), Name: "workspace"},
		},
	}
	if c.cfg.InitializationOptions != nil {
		params.InitializationOptions = c.cfg.InitializationOptions
	}

	initCtx, cancel := context.WithTimeout(ctx, c.opts.InitializeTimeout)
	defer cancel()

	start := time.Now()
	resp, err := c.server.Request(initCtx, "initialize", params)
	recordRequest(ctx, "initialize", c.cfg.Language, time.Since(start), err == nil)
	if err != nil {
		return fmt.Errorf("initialize request: %w", err)
	}

	var result InitializeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return fmt.Errorf("parse initialize result: %w", err)
	}
	c.capabilities = result.Capabilities

	if err := c.server.Notify("initialized", struct{}{}); err != nil {
		return fmt.Errorf("initialized notification: %w", err)
	}
	return nil
}

// handleNotification is the per-client hook for server-initiated
// messages. Generic handling covers logging and diagnostics; language
// hooks observe everything else.
func (c *baseClient) handleNotification(method string, params json.RawMessage) {
	switch method {
	case "window/logMessage", "window/showMessage":
		var p LogMessageParams
		if json.Unmarshal(params, &p) == nil {
			slog.Debug("lsp message",
				slog.String("language", c.cfg.Language),
				slog.Int("type", p.Type),
				slog.String("message", p.Message),
			)
		}
	case "textDocument/publishDiagnostics":
		var p PublishDiagnosticsParams
		if json.Unmarshal(params, &p) == nil {
			errs := 0
			for _, d := range p.Diagnostics {
				if d.Severity == 1 {
					errs++
				}
			}
			c.diagMu.Lock()
			c.diagnostics[p.URI] = errs
			c.diagMu.Unlock()
		}
	}
	if c.onNotification != nil {
		c.onNotification(method, params)
	}
}

// =============================================================================
// STATIC ANALYSIS
// =============================================================================

// BuildStaticAnalysis analyzes every file, skipping per-file failures.
//
// Description:
//
//	For each file: didOpen, documentSymbol, call-hierarchy prepare +
//	incoming/outgoing per callable symbol, references per symbol, then
//	didClose. Any request failure records the file under Failures and
//	analysis moves on; a single file never aborts the language.
func (c *baseClient) BuildStaticAnalysis(ctx context.Context, files []string) (*AnalysisResult, error) {
	if c.State() != ClientStateReady {
		return nil, ErrServerNotRunning
	}

	ctx, span := startAnalysisSpan(ctx, c.cfg.Language, len(files))
	defer span.End()

	result := &AnalysisResult{Language: c.cfg.Language}
	for _, file := range files {
		fa, failure := c.analyzeFile(ctx, file)
		if failure != nil {
			result.Failures = append(result.Failures, *failure)
			recordFileAnalyzed(ctx, c.cfg.Language, true)
			slog.Warn("file analysis failed, skipping",
				slog.String("language", c.cfg.Language),
				slog.String("file", failure.Path),
				slog.String("stage", failure.Stage),
				slog.String("error", failure.Err),
			)
			continue
		}
		result.Files = append(result.Files, *fa)
		recordFileAnalyzed(ctx, c.cfg.Language, false)
	}

	span.SetAttributes(
		attribute.Int("lsp.files_analyzed", len(result.Files)),
		attribute.Int("lsp.files_failed", len(result.Failures)),
	)
	return result, nil
}

// analyzeFile runs the per-file request sequence.
func (c *baseClient) analyzeFile(ctx context.Context, relPath string) (*FileAnalysis, *FileFailure) {
	absPath := filepath.Join(c.rootPath, filepath.FromSlash(relPath))
	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, &FileFailure{Path: relPath, Stage: "read", Err: err.Error()}
	}
	uri := PathToURI(absPath)

	if err := c.server.Notify("textDocument/didOpen", DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{
			URI:        uri,
			LanguageID: c.cfg.LanguageID,
			Version:    1,
			Text:       string(content),
		},
	}); err != nil {
		return nil, &FileFailure{Path: relPath, Stage: "didOpen", Err: err.Error()}
	}
	defer func() {
		_ = c.server.Notify("textDocument/didClose", DidCloseTextDocumentParams{
			TextDocument: TextDocumentIdentifier{URI: uri},
		})
	}()

	symbols, err := c.documentSymbols(ctx, uri)
	if err != nil {
		return nil, &FileFailure{Path: relPath, Stage: "documentSymbol", Err: err.Error()}
	}

	fa := &FileAnalysis{
		Path:       relPath,
		Symbols:    symbols,
		References: make(map[string][]Location),
	}

	// Call edges and references per callable symbol. Failures on an
	// individual symbol degrade to a file-level failure only when the
	// very first symbol fails; otherwise partial results stand.
	walkSymbols(symbols, "", func(path string, sym DocumentSymbol) {
		if !sym.Kind.IsCallable() {
			return
		}
		edges, err := c.callEdges(ctx, uri, sym)
		if err == nil {
			fa.Calls = append(fa.Calls, edges...)
		}
		refs, err := c.references(ctx, uri, sym)
		if err == nil && len(refs) > 0 {
			fa.References[path] = refs
		}
	})

	return fa, nil
}

// documentSymbols requests the symbol tree, accepting either the
// hierarchical or the flat response shape.
func (c *baseClient) documentSymbols(ctx context.Context, uri string) ([]DocumentSymbol, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	start := time.Now()
	resp, err := c.server.Request(reqCtx, "textDocument/documentSymbol", DocumentSymbolParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
	})
	recordRequest(ctx, "textDocument/documentSymbol", c.cfg.Language, time.Since(start), err == nil)
	if err != nil {
		return nil, err
	}

	var hierarchical []DocumentSymbol
	if err := json.Unmarshal(resp.Result, &hierarchical); err == nil && symbolsLookHierarchical(resp.Result) {
		return hierarchical, nil
	}

	var flat []SymbolInformation
	if err := json.Unmarshal(resp.Result, &flat); err != nil {
		return nil, fmt.Errorf("parse documentSymbol result: %w", err)
	}
	return flattenedToTree(flat), nil
}

// symbolsLookHierarchical distinguishes DocumentSymbol arrays from
// SymbolInformation arrays: only the latter carries "location".
func symbolsLookHierarchical(raw json.RawMessage) bool {
	var probe []struct {
		Location *Location `json:"location"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return false
	}
	for _, p := range probe {
		if p.Location != nil {
			return false
		}
	}
	return true
}

// flattenedToTree lifts flat SymbolInformation into the hierarchical
// shape using container names for one nesting level.
func flattenedToTree(flat []SymbolInformation) []DocumentSymbol {
	known := make(map[string]bool, len(flat))
	for _, si := range flat {
		known[si.Name] = true
	}

	byContainer := make(map[string][]DocumentSymbol)
	var rootNames []string
	for _, si := range flat {
		ds := DocumentSymbol{
			Name:           si.Name,
			Kind:           si.Kind,
			Range:          si.Location.Range,
			SelectionRange: si.Location.Range,
		}
		if si.ContainerName != "" && known[si.ContainerName] {
			byContainer[si.ContainerName] = append(byContainer[si.ContainerName], ds)
		} else {
			byContainer[""] = append(byContainer[""], ds)
			rootNames = append(rootNames, si.Name)
		}
	}

	roots := byContainer[""]
	for i := range roots {
		roots[i].Children = byContainer[rootNames[i]]
	}
	return roots
}

// callEdges resolves incoming and outgoing calls for one symbol.
func (c *baseClient) callEdges(ctx context.Context, uri string, sym DocumentSymbol) ([]CallEdge, error) {
	if !c.capabilities.HasCallHierarchyProvider() {
		return nil, nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	start := time.Now()
	resp, err := c.server.Request(reqCtx, "textDocument/prepareCallHierarchy", CallHierarchyPrepareParams{
		TextDocumentPositionParams: TextDocumentPositionParams{
			TextDocument: TextDocumentIdentifier{URI: uri},
			Position:     sym.SelectionRange.Start,
		},
	})
	recordRequest(ctx, "textDocument/prepareCallHierarchy", c.cfg.Language, time.Since(start), err == nil)
	if err != nil {
		return nil, err
	}

	var items []CallHierarchyItem
	if err := json.Unmarshal(resp.Result, &items); err != nil || len(items) == 0 {
		return nil, nil
	}
	item := items[0]

	var edges []CallEdge

	outCtx, cancelOut := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancelOut()
	start = time.Now()
	resp, err = c.server.Request(outCtx, "callHierarchy/outgoingCalls", CallHierarchyOutgoingCallsParams{Item: item})
	recordRequest(ctx, "callHierarchy/outgoingCalls", c.cfg.Language, time.Since(start), err == nil)
	if err == nil {
		var outgoing []CallHierarchyOutgoingCall
		if json.Unmarshal(resp.Result, &outgoing) == nil {
			for _, call := range outgoing {
				edges = append(edges, CallEdge{From: item, To: call.To, FromRanges: call.FromRanges})
			}
		}
	}

	inCtx, cancelIn := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancelIn()
	start = time.Now()
	resp, err = c.server.Request(inCtx, "callHierarchy/incomingCalls", CallHierarchyIncomingCallsParams{Item: item})
	recordRequest(ctx, "callHierarchy/incomingCalls", c.cfg.Language, time.Since(start), err == nil)
	if err == nil {
		var incoming []CallHierarchyIncomingCall
		if json.Unmarshal(resp.Result, &incoming) == nil {
			for _, call := range incoming {
				edges = append(edges, CallEdge{From: call.From, To: item, FromRanges: call.FromRanges})
			}
		}
	}

	return edges, nil
}

// references collects body references for one symbol.
func (c *baseClient) references(ctx context.Context, uri string, sym DocumentSymbol) ([]Location, error) {
	if !c.capabilities.HasReferencesProvider() {
		return nil, nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	start := time.Now()
	resp, err := c.server.Request(reqCtx, "textDocument/references", ReferenceParams{
		TextDocumentPositionParams: TextDocumentPositionParams{
			TextDocument: TextDocumentIdentifier{URI: uri},
			Position:     sym.SelectionRange.Start,
		},
		Context: ReferenceContext{IncludeDeclaration: false},
	})
	recordRequest(ctx, "textDocument/references", c.cfg.Language, time.Since(start), err == nil)
	if err != nil {
		return nil, err
	}

	var locations []Location
	if err := json.Unmarshal(resp.Result, &locations); err != nil {
		return nil, fmt.Errorf("parse references result: %w", err)
	}
	return locations, nil
}

// Close tears down the transport and runs the language close hook.
//
// Thread Safety: safe for concurrent use; idempotent.
func (c *baseClient) Close(ctx context.Context) error {
	c.stateMu.Lock()
	if c.state == ClientStateClosed || c.state == ClientStateClosing {
		c.stateMu.Unlock()
		return nil
	}
	c.state = ClientStateClosing
	c.stateMu.Unlock()

	var err error
	if c.server != nil {
		err = c.server.Shutdown(ctx)
	}
	if c.closeHook != nil {
		c.closeHook()
	}
	c.setState(ClientStateClosed)
	return err
}

// ErrorDiagnostics returns the error-severity diagnostic counts seen
// so far, keyed by document URI.
func (c *baseClient) ErrorDiagnostics() map[string]int {
	c.diagMu.Lock()
	defer c.diagMu.Unlock()
	out := make(map[string]int, len(c.diagnostics))
	for k, v := range c.diagnostics {
		out[k] = v
	}
	return out
}

// =============================================================================
// HELPERS
// =============================================================================

// walkSymbols visits every symbol in the tree depth-first, passing the
// dotted path from the file root (e.g., "Repo.save").
func walkSymbols(symbols []DocumentSymbol, prefix string, visit func(path string, sym DocumentSymbol)) {
	for _, sym := range symbols {
		path := sym.Name
		if prefix != "" {
			path = prefix + "." + sym.Name
		}
		visit(path, sym)
		walkSymbols(sym.Children, path, visit)
	}
}

// PathToURI converts a filesystem path to a file:// URI.
func PathToURI(path string) string {
	path = filepath.ToSlash(path)
	if runtime.GOOS == "windows" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return "file://" + path
}

// URIToPath converts a file:// URI back to a filesystem path.
func URIToPath(uri string) string {
	trimmed := strings.TrimPrefix(uri, "file://")
	if decoded, err := url.PathUnescape(trimmed); err == nil {
		trimmed = decoded
	}
	if runtime.GOOS == "windows" {
		trimmed = strings.TrimPrefix(trimmed, "/")
	}
	return filepath.FromSlash(trimmed)
}
