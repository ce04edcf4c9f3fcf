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
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"
)

// =============================================================================
// SERVER STATE
// =============================================================================

// ServerState represents the lifecycle state of an LSP server process.
type ServerState int

const (
	// ServerStateCreated is the initial state before Start is called.
	ServerStateCreated ServerState = iota

	// ServerStateStarting means the server process is being spawned.
	ServerStateStarting

	// ServerStateRunning means the process is alive and frames flow.
	ServerStateRunning

	// ServerStateStopping means the server is shutting down.
	ServerStateStopping

	// ServerStateStopped means the server has terminated.
	ServerStateStopped
)

// String returns a human-readable state name.
func (s ServerState) String() string {
	names := []string{"created", "starting", "running", "stopping", "stopped"}
	if int(s) < len(names) {
		return names[s]
	}
	return "unknown"
}

// =============================================================================
// SERVER
// =============================================================================

// Server owns one LSP server subprocess and its frame channel.
//
// Description:
//
//	Spawns the configured command with stdio wired as the LSP frame
//	channel. A reader goroutine demultiplexes responses from
//	notifications; a second goroutine drains stderr so a chatty server
//	can never deadlock on a full pipe buffer. The Server performs no
//	LSP handshake itself; clients drive initialize/initialized through
//	Request and Notify.
//
// Thread Safety:
//
//	Safe for concurrent use after Start() returns successfully.
type Server struct {
	language string
	command  string
	args     []string
	rootPath string

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	protocol *Protocol

	state   ServerState
	stateMu sync.RWMutex

	ctx        context.Context
	cancel     context.CancelFunc
	readDone   chan struct{}
	stderrDone chan struct{}
}

// NewServer creates a server instance (not started).
//
// Inputs:
//
//	language - The language identifier, used for logging and metrics
//	command - The server executable name or path
//	args - Command-line arguments
//	rootPath - Absolute path to the workspace root (process CWD)
func NewServer(language, command string, args []string, rootPath string) *Server {
	return &Server{
		language:   language,
		command:    command,
		args:       args,
		rootPath:   rootPath,
		state:      ServerStateCreated,
		readDone:   make(chan struct{}),
		stderrDone: make(chan struct{}),
	}
}

// Start spawns the server process and begins frame processing.
//
// Description:
//
//	Resolves the binary, wires stdin/stdout/stderr, starts the process,
//	and launches the reader and stderr-drain goroutines. Returns once
//	the process is alive; the LSP handshake is the caller's job.
//
// Errors:
//
//	ErrServerNotInstalled - Server binary not found on PATH
//	ErrServerAlreadyStarted - Start called twice
//
// Thread Safety:
//
//	Safe for concurrent use; only the first caller starts the process.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("ctx must not be nil")
	}

	s.stateMu.Lock()
	if s.state != ServerStateCreated {
		s.stateMu.Unlock()
		return ErrServerAlreadyStarted
	}
	s.state = ServerStateStarting
	s.stateMu.Unlock()

	path, err := exec.LookPath(s.command)
	if err != nil {
		s.setState(ServerStateStopped)
		slog.Warn("LSP server not installed",
			slog.String("language", s.language),
			slog.String("command", s.command),
		)
		recordServerSpawn(ctx, s.language, false)
		return fmt.Errorf("%w: %s", ErrServerNotInstalled, s.command)
	}

	slog.Info("starting LSP server",
		slog.String("language", s.language),
		slog.String("command", path),
		slog.String("root_path", s.rootPath),
	)

	// Server lifetime is independent of the caller's context; a caller
	// timeout on one request must not tear the process down.
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.cmd = exec.CommandContext(s.ctx, path, s.args...)
	s.cmd.Dir = s.rootPath

	if s.stdin, err = s.cmd.StdinPipe(); err != nil {
		s.cleanup()
		return fmt.Errorf("stdin pipe: %w", err)
	}
	if s.stdout, err = s.cmd.StdoutPipe(); err != nil {
		s.cleanup()
		return fmt.Errorf("stdout pipe: %w", err)
	}
	if s.stderr, err = s.cmd.StderrPipe(); err != nil {
		s.cleanup()
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := s.cmd.Start(); err != nil {
		s.cleanup()
		recordServerSpawn(ctx, s.language, false)
		return fmt.Errorf("%w: start process: %v", ErrServerNotInstalled, err)
	}

	s.protocol = NewProtocol(s.stdout, s.stdin)

	go func() {
		defer close(s.readDone)
		_ = s.protocol.ReadLoop(s.ctx)
	}()

	go func() {
		defer close(s.stderrDone)
		s.drainStderr()
	}()

	s.setState(ServerStateRunning)
	recordServerSpawn(ctx, s.language, true)
	return nil
}

// drainStderr consumes the server's stderr line by line. Without this
// a server that logs heavily fills the pipe buffer and blocks.
func (s *Server) drainStderr() {
	scanner := bufio.NewScanner(s.stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		slog.Debug("lsp stderr",
			slog.String("language", s.language),
			slog.String("line", scanner.Text()),
		)
	}
}

// SetNotificationHandler forwards to the underlying protocol.
func (s *Server) SetNotificationHandler(h NotificationHandler) {
	if s.protocol != nil {
		s.protocol.SetNotificationHandler(h)
	}
}

// Request sends an LSP request and waits for the response.
//
// Thread Safety: safe for concurrent use; multiple requests may be in
// flight at once.
func (s *Server) Request(ctx context.Context, method string, params interface{}) (*Response, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}
	if s.State() != ServerStateRunning {
		return nil, ErrServerNotRunning
	}
	return s.protocol.SendRequest(ctx, method, params)
}

// Notify sends a fire-and-forget LSP notification.
func (s *Server) Notify(method string, params interface{}) error {
	if s.State() != ServerStateRunning {
		return ErrServerNotRunning
	}
	return s.protocol.SendNotification(method, params)
}

// Shutdown gracefully stops the server.
//
// Description:
//
//	Attempts shutdown/exit, closes stdin to signal EOF, waits for the
//	process with a bounded timeout, force-kills on expiry, then joins
//	the reader and stderr goroutines with their own bounded waits.
//
// Thread Safety:
//
//	Safe for concurrent use; idempotent.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stateMu.Lock()
	switch s.state {
	case ServerStateStopped, ServerStateStopping:
		s.stateMu.Unlock()
		return nil
	case ServerStateCreated:
		s.state = ServerStateStopped
		s.stateMu.Unlock()
		return nil
	}
	s.state = ServerStateStopping
	s.stateMu.Unlock()

	slog.Info("shutting down LSP server", slog.String("language", s.language))

	defer s.cleanup()

	if s.protocol != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		_, _ = s.protocol.SendRequest(shutdownCtx, "shutdown", nil)
		_ = s.protocol.SendNotification("exit", nil)
		s.protocol.Close()
	}

	if s.stdin != nil {
		_ = s.stdin.Close()
	}

	if s.cmd != nil && s.cmd.Process != nil {
		done := make(chan error, 1)
		go func() { done <- s.cmd.Wait() }()

		select {
		case <-time.After(5 * time.Second):
			_ = s.cmd.Process.Kill()
			<-done
		case <-done:
		}
	}

	if s.cancel != nil {
		s.cancel()
	}

	select {
	case <-s.readDone:
	case <-time.After(time.Second):
	}
	select {
	case <-s.stderrDone:
	case <-time.After(time.Second):
	}

	return nil
}

// cleanup releases resources and sets state to stopped.
func (s *Server) cleanup() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.stdin != nil {
		_ = s.stdin.Close()
	}
	if s.stdout != nil {
		_ = s.stdout.Close()
	}
	if s.stderr != nil {
		_ = s.stderr.Close()
	}
	s.setState(ServerStateStopped)
}

// =============================================================================
// ACCESSORS
// =============================================================================

// State returns the current server state.
//
// Thread Safety: safe for concurrent use.
func (s *Server) State() ServerState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// Language returns the language this server handles.
func (s *Server) Language() string {
	return s.language
}

// RootPath returns the workspace root path.
func (s *Server) RootPath() string {
	return s.rootPath
}

func (s *Server) setState(state ServerState) {
	s.stateMu.Lock()
	s.state = state
	s.stateMu.Unlock()
}
