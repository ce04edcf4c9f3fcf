// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// JSONRPCVersion is the JSON-RPC version used by LSP.
const JSONRPCVersion = "2.0"

// =============================================================================
// JSON-RPC MESSAGE TYPES
// =============================================================================

// Request represents a JSON-RPC request.
type Request struct {
	// JSONRPC is the protocol version, always "2.0".
	JSONRPC string `json:"jsonrpc"`

	// ID is the request identifier. Omit for notifications.
	ID int64 `json:"id,omitempty"`

	// Method is the method to invoke.
	Method string `json:"method"`

	// Params contains the method parameters.
	Params interface{} `json:"params,omitempty"`
}

// Response represents a JSON-RPC response.
type Response struct {
	// JSONRPC is the protocol version, always "2.0".
	JSONRPC string `json:"jsonrpc"`

	// ID is the request identifier this response corresponds to.
	ID int64 `json:"id"`

	// Result contains the method result (mutually exclusive with Error).
	Result json.RawMessage `json:"result,omitempty"`

	// Error contains error information (mutually exclusive with Result).
	Error *ResponseError `json:"error,omitempty"`
}

// Notification represents a JSON-RPC notification (no ID, no response).
type Notification struct {
	// JSONRPC is the protocol version, always "2.0".
	JSONRPC string `json:"jsonrpc"`

	// Method is the method to invoke.
	Method string `json:"method"`

	// Params contains the method parameters.
	Params interface{} `json:"params,omitempty"`
}

// serverReply answers a server-to-client request. Result is a pointer
// so a null result still serializes.
type serverReply struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      json.RawMessage  `json:"id"`
	Result  *json.RawMessage `json:"result"`
}

// envelope is the union shape used to classify incoming messages.
type envelope struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Method  string           `json:"method,omitempty"`
	Params  json.RawMessage  `json:"params,omitempty"`
	Result  json.RawMessage  `json:"result,omitempty"`
	Error   *ResponseError   `json:"error,omitempty"`
}

// NotificationHandler receives server-initiated notifications that are
// not responses to any request, keyed by method.
type NotificationHandler func(method string, params json.RawMessage)

// =============================================================================
// PROTOCOL HANDLER
// =============================================================================

// Protocol handles JSON-RPC communication over a server's stdio.
//
// Description:
//
//	Implements the LSP base protocol using Content-Length headers.
//	A background ReadLoop demultiplexes id-correlated responses from
//	method-keyed notifications: responses complete a pending request's
//	channel exactly once, notifications dispatch to the registered
//	handler, and server-to-client requests receive a null reply so
//	the server never stalls waiting on us.
//
// Thread Safety:
//
//	Safe for concurrent use. Multiple goroutines can have requests in
//	flight simultaneously; ids are unique per request.
type Protocol struct {
	reader    *bufio.Reader
	writer    io.Writer
	writeMu   sync.Mutex
	nextID    int64
	pending   map[int64]chan Response
	pendingMu sync.Mutex
	handler   atomic.Value // NotificationHandler
	closed    int32        // atomic: 1 if closed
}

// NewProtocol creates a protocol handler over the provided reader
// (server stdout) and writer (server stdin).
func NewProtocol(r io.Reader, w io.Writer) *Protocol {
	var reader *bufio.Reader
	if r != nil {
		reader = bufio.NewReader(r)
	}
	return &Protocol{
		reader:  reader,
		writer:  w,
		pending: make(map[int64]chan Response),
	}
}

// SetNotificationHandler registers the hook invoked for every incoming
// message that is not a response to a pending request. Must be set
// before ReadLoop starts delivering, typically right after NewProtocol.
func (p *Protocol) SetNotificationHandler(h NotificationHandler) {
	if h != nil {
		p.handler.Store(h)
	}
}

// SendRequest sends a request and blocks until the response arrives.
//
// Description:
//
//	Allocates a fresh correlation id, registers a pending channel,
//	writes the framed request, and waits. The wait blocks only the
//	caller, never the read loop, so other requests stay in flight.
//
// Inputs:
//
//	ctx - Bounds the wait; expiry surfaces as ErrRequestTimeout
//	method - The LSP method to invoke (e.g., "textDocument/documentSymbol")
//	params - Method parameters (JSON-marshaled)
//
// Outputs:
//
//	*Response - The server's response
//	error - Non-nil if sending failed, the wait timed out, or the
//	        server returned a JSON-RPC error
//
// Thread Safety:
//
//	Safe for concurrent use.
func (p *Protocol) SendRequest(ctx context.Context, method string, params interface{}) (*Response, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}
	if atomic.LoadInt32(&p.closed) == 1 {
		return nil, ErrServerNotRunning
	}

	id := atomic.AddInt64(&p.nextID, 1)

	req := Request{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Method:  method,
		Params:  params,
	}

	respCh := make(chan Response, 1)
	p.pendingMu.Lock()
	p.pending[id] = respCh
	p.pendingMu.Unlock()

	defer func() {
		p.pendingMu.Lock()
		delete(p.pending, id)
		p.pendingMu.Unlock()
	}()

	if err := p.writeMessage(req); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %v", ErrRequestTimeout, method, ctx.Err())
	case resp := <-respCh:
		if resp.Error != nil {
			return nil, resp.Error
		}
		return &resp, nil
	}
}

// SendNotification sends a fire-and-forget notification.
//
// Thread Safety: safe for concurrent use.
func (p *Protocol) SendNotification(method string, params interface{}) error {
	if atomic.LoadInt32(&p.closed) == 1 {
		return ErrServerNotRunning
	}

	notif := Notification{
		JSONRPC: JSONRPCVersion,
		Method:  method,
		Params:  params,
	}
	return p.writeMessage(notif)
}

// writeMessage marshals and writes a message with Content-Length header.
func (p *Protocol) writeMessage(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(data))
	if _, err := p.writer.Write([]byte(header)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := p.writer.Write(data); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	return nil
}

// ReadLoop reads messages from the server and dispatches them.
//
// Description:
//
//	Continuously reads frames until EOF, error, or cancellation.
//	Call this in a goroutine after starting the server process.
//
// Thread Safety:
//
//	Must run in a single goroutine. Safe to run while other goroutines
//	call SendRequest/SendNotification.
func (p *Protocol) ReadLoop(ctx context.Context) error {
	if p.reader == nil {
		return fmt.Errorf("no reader configured")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msg, err := p.readMessage()
		if err != nil {
			if err == io.EOF {
				return ErrServerCrashed
			}
			if atomic.LoadInt32(&p.closed) == 1 {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		p.handleMessage(msg)
	}
}

// readMessage reads a single Content-Length framed message.
func (p *Protocol) readMessage() (json.RawMessage, error) {
	var contentLength int

	for {
		line, err := p.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)

		// Empty line marks end of headers.
		if line == "" {
			break
		}

		if strings.HasPrefix(line, "Content-Length:") {
			lenStr := strings.TrimSpace(strings.TrimPrefix(line, "Content-Length:"))
			var err error
			contentLength, err = strconv.Atoi(lenStr)
			if err != nil {
				return nil, fmt.Errorf("invalid Content-Length value %q: %w", lenStr, err)
			}
			if contentLength < 0 {
				return nil, fmt.Errorf("negative Content-Length: %d", contentLength)
			}
		}
		// Other headers (Content-Type) are ignored.
	}

	if contentLength == 0 {
		return nil, fmt.Errorf("missing or zero Content-Length header")
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(p.reader, body); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return body, nil
}

// handleMessage classifies and dispatches one incoming message.
func (p *Protocol) handleMessage(msg json.RawMessage) {
	var env envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		return
	}

	switch {
	case env.ID != nil && env.Method == "":
		// Response to one of our requests.
		var id int64
		if err := json.Unmarshal(*env.ID, &id); err != nil {
			return
		}
		p.pendingMu.Lock()
		ch, ok := p.pending[id]
		if ok {
			// Removing the entry here guarantees exactly-once delivery
			// even if the server repeats an id.
			delete(p.pending, id)
		}
		p.pendingMu.Unlock()
		if ok {
			ch <- Response{JSONRPC: env.JSONRPC, ID: id, Result: env.Result, Error: env.Error}
		}

	case env.ID != nil && env.Method != "":
		// Server-to-client request (workspace/configuration,
		// window/workDoneProgress/create, client/registerCapability).
		// Reply with a null result so the server doesn't block, then
		// surface it to the notification hook as informational.
		null := json.RawMessage("null")
		_ = p.writeMessage(serverReply{JSONRPC: JSONRPCVersion, ID: *env.ID, Result: &null})
		p.dispatch(env.Method, env.Params)

	case env.Method != "":
		// Notification.
		p.dispatch(env.Method, env.Params)
	}
}

// dispatch hands a method-keyed message to the registered handler.
func (p *Protocol) dispatch(method string, params json.RawMessage) {
	if h, ok := p.handler.Load().(NotificationHandler); ok && h != nil {
		h(method, params)
	}
}

// Close marks the protocol as closed and fails all pending requests.
//
// Description:
//
//	Prevents further sends and completes every pending request with a
//	"server connection closed" error so no caller waits forever. Does
//	not close the underlying reader/writer; the Server owns those.
//
// Thread Safety:
//
//	Safe for concurrent use; idempotent.
func (p *Protocol) Close() {
	if !atomic.CompareAndSwapInt32(&p.closed, 0, 1) {
		return
	}

	p.pendingMu.Lock()
	for id, ch := range p.pending {
		ch <- Response{
			JSONRPC: JSONRPCVersion,
			ID:      id,
			Error: &ResponseError{
				Code:    -32099,
				Message: "server connection closed",
			},
		}
		delete(p.pending, id)
	}
	p.pendingMu.Unlock()
}
