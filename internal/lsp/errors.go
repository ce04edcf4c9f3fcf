// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package lsp

import (
	"errors"
	"fmt"
)

// Sentinel errors for LSP operations.
var (
	// ErrServerNotRunning indicates the LSP server is not in a running state.
	ErrServerNotRunning = errors.New("lsp server not running")

	// ErrServerNotInstalled indicates the LSP server binary was not found.
	// This is a startup failure: fatal for the language, not for the run.
	ErrServerNotInstalled = errors.New("lsp server not installed")

	// ErrInitializeFailed indicates the LSP initialize handshake never
	// completed within its deadline. Also a per-language startup failure.
	ErrInitializeFailed = errors.New("lsp initialize failed")

	// ErrRequestTimeout indicates an LSP request exceeded its timeout.
	// Treated as a recoverable per-file failure, never fatal to the run.
	ErrRequestTimeout = errors.New("lsp request timeout")

	// ErrServerCrashed indicates the LSP server process terminated
	// unexpectedly.
	ErrServerCrashed = errors.New("lsp server crashed")

	// ErrServerAlreadyStarted indicates Start was called twice.
	ErrServerAlreadyStarted = errors.New("lsp server already started")
)

// ResponseError is an error returned by the language server via JSON-RPC.
//
// Error codes follow the JSON-RPC spec plus LSP-specific codes:
//   - -32700: Parse error
//   - -32600: Invalid request
//   - -32601: Method not found
//   - -32602: Invalid params
//   - -32603: Internal error
//   - -32099 to -32000: Server error (reserved)
//   - -32802: Server not initialized
//   - -32800: Request cancelled
type ResponseError struct {
	// Code is the JSON-RPC error code.
	Code int `json:"code"`

	// Message is the error message from the server.
	Message string `json:"message"`

	// Data contains optional additional data about the error.
	Data interface{} `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *ResponseError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("LSP error %d: %s (data: %v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("LSP error %d: %s", e.Code, e.Message)
}

// IsMethodNotFound returns true if the method is not supported by the server.
func (e *ResponseError) IsMethodNotFound() bool {
	return e.Code == -32601
}

// IsServerNotInitialized returns true if the server is not initialized yet.
func (e *ResponseError) IsServerNotInitialized() bool {
	return e.Code == -32802
}

// IsRequestCancelled returns true if the request was cancelled server-side.
func (e *ResponseError) IsRequestCancelled() bool {
	return e.Code == -32800
}

// FileFailure records one file whose analysis requests failed or timed
// out. The file is skipped and aggregation continues.
type FileFailure struct {
	// Path is the repo-relative file path.
	Path string `json:"path"`

	// Stage names the request that failed (documentSymbol,
	// callHierarchy, references, didOpen).
	Stage string `json:"stage"`

	// Err is the failure rendered as text.
	Err string `json:"error"`
}

// String renders the failure for logs.
func (f FileFailure) String() string {
	return fmt.Sprintf("%s: %s: %s", f.Path, f.Stage, f.Err)
}
