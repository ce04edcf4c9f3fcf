// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package lsp

import (
	"context"
	"errors"
	"testing"
)

func TestServerStartNotInstalled(t *testing.T) {
	s := NewServer("python", "definitely-not-a-real-language-server", nil, t.TempDir())
	err := s.Start(context.Background())
	if !errors.Is(err, ErrServerNotInstalled) {
		t.Fatalf("err = %v, want ErrServerNotInstalled", err)
	}
}

func TestServerRequestBeforeStart(t *testing.T) {
	s := NewServer("python", "pyright-langserver", nil, t.TempDir())
	_, err := s.Request(context.Background(), "initialize", nil)
	if !errors.Is(err, ErrServerNotRunning) {
		t.Fatalf("Request err = %v, want ErrServerNotRunning", err)
	}
	if err := s.Notify("initialized", nil); !errors.Is(err, ErrServerNotRunning) {
		t.Fatalf("Notify err = %v, want ErrServerNotRunning", err)
	}
}

func TestServerShutdownBeforeStart(t *testing.T) {
	s := NewServer("go", "gopls", nil, t.TempDir())
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown on created server: %v", err)
	}
	if got := s.State(); got != ServerStateStopped {
		t.Errorf("state = %v, want stopped", got)
	}
	// Idempotent.
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
}
