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
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeServer speaks the framed wire protocol over pipes, standing in
// for a language server subprocess.
type fakeServer struct {
	// toClient is what the client reads (server stdout).
	toClient *io.PipeWriter
	// fromClient is what the client wrote (server stdin).
	fromClient *bufio.Reader

	writeMu sync.Mutex
}

func newFakeServer() (*fakeServer, *Protocol) {
	serverOutR, serverOutW := io.Pipe()
	serverInR, serverInW := io.Pipe()
	fs := &fakeServer{
		toClient:   serverOutW,
		fromClient: bufio.NewReader(serverInR),
	}
	p := NewProtocol(serverOutR, serverInW)
	return fs, p
}

// readMessage reads one framed message sent by the client.
func (f *fakeServer) readMessage(t *testing.T) json.RawMessage {
	t.Helper()
	var contentLength int
	for {
		line, err := f.fromClient.ReadString('\n')
		if err != nil {
			t.Errorf("read header: %v", err)
			return nil
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		if v, ok := strings.CutPrefix(line, "Content-Length: "); ok {
			contentLength, err = strconv.Atoi(v)
			if err != nil {
				t.Errorf("parse content length: %v", err)
				return nil
			}
		}
	}
	body := make([]byte, contentLength)
	if _, err := io.ReadFull(f.fromClient, body); err != nil {
		t.Errorf("read body: %v", err)
		return nil
	}
	return body
}

// send writes one framed message to the client.
func (f *fakeServer) send(t *testing.T, v interface{}) {
	t.Helper()
	body, err := json.Marshal(v)
	if err != nil {
		t.Errorf("marshal: %v", err)
		return
	}
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(body))
	if _, err := f.toClient.Write([]byte(header)); err != nil {
		t.Errorf("write header: %v", err)
		return
	}
	if _, err := f.toClient.Write(body); err != nil {
		t.Errorf("write body: %v", err)
		return
	}
}

func TestProtocolRequestResponse(t *testing.T) {
	server, proto := newFakeServer()
	go proto.ReadLoop(context.Background())
	defer proto.Close()

	go func() {
		msg := server.readMessage(t)
		var req struct {
			ID     int64           `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		if json.Unmarshal(msg, &req) != nil {
			return
		}
		server.send(t, map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  map[string]string{"echo": req.Method},
		})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := proto.SendRequest(ctx, "test/echo", map[string]int{"n": 1})
	if err != nil {
		t.Fatalf("SendRequest failed: %v", err)
	}

	var result struct {
		Echo string `json:"echo"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result.Echo != "test/echo" {
		t.Errorf("echo = %q, want %q", result.Echo, "test/echo")
	}
}

func TestProtocolErrorResponse(t *testing.T) {
	server, proto := newFakeServer()
	go proto.ReadLoop(context.Background())
	defer proto.Close()

	go func() {
		msg := server.readMessage(t)
		var req struct {
			ID int64 `json:"id"`
		}
		if json.Unmarshal(msg, &req) != nil {
			return
		}
		server.send(t, map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error": map[string]interface{}{
				"code":    -32601,
				"message": "method not found",
			},
		})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := proto.SendRequest(ctx, "test/missing", nil)
	if err == nil {
		t.Fatal("expected error response")
	}
	var respErr *ResponseError
	if !errors.As(err, &respErr) {
		t.Fatalf("error type = %T, want *ResponseError", err)
	}
	if !respErr.IsMethodNotFound() {
		t.Errorf("code = %d, want -32601", respErr.Code)
	}
}

func TestProtocolNotificationDispatch(t *testing.T) {
	server, proto := newFakeServer()

	got := make(chan string, 1)
	proto.SetNotificationHandler(func(method string, params json.RawMessage) {
		got <- method
	})
	go proto.ReadLoop(context.Background())
	defer proto.Close()

	server.send(t, map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  "window/logMessage",
		"params":  map[string]interface{}{"type": 3, "message": "hi"},
	})

	select {
	case method := <-got:
		if method != "window/logMessage" {
			t.Errorf("method = %q, want window/logMessage", method)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("notification was not dispatched")
	}
}

func TestProtocolServerRequestGetsNullReply(t *testing.T) {
	server, proto := newFakeServer()
	go proto.ReadLoop(context.Background())
	defer proto.Close()

	// Server-initiated request: the client must answer so the server
	// does not stall.
	server.send(t, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      99,
		"method":  "workspace/configuration",
		"params":  map[string]interface{}{},
	})

	reply := server.readMessage(t)
	var parsed struct {
		ID     int64           `json:"id"`
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(reply, &parsed); err != nil {
		t.Fatalf("unmarshal reply: %v", err)
	}
	if parsed.ID != 99 {
		t.Errorf("reply id = %d, want 99", parsed.ID)
	}
	if string(parsed.Result) != "null" {
		t.Errorf("reply result = %s, want null", parsed.Result)
	}
}

func TestProtocolCloseFailsPending(t *testing.T) {
	server, proto := newFakeServer()
	go proto.ReadLoop(context.Background())

	errCh := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, err := proto.SendRequest(ctx, "test/hang", nil)
		errCh <- err
	}()

	// Consume the request so it is definitely pending before Close.
	server.readMessage(t)
	proto.Close()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("expected pending request to fail on Close")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pending request did not complete after Close")
	}
}

func TestProtocolRequestTimeout(t *testing.T) {
	server, proto := newFakeServer()
	go proto.ReadLoop(context.Background())
	defer proto.Close()

	go server.readMessage(t) // swallow, never respond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := proto.SendRequest(ctx, "test/slow", nil)
	if !errors.Is(err, ErrRequestTimeout) {
		t.Fatalf("err = %v, want ErrRequestTimeout", err)
	}
}
