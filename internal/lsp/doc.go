// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package lsp manages language server subprocesses and extracts raw
// static analysis from them.
//
// The package splits into three layers:
//
//   - Protocol: Content-Length framed JSON-RPC over a reader/writer
//     pair, with id-correlated request/response matching and
//     method-keyed notification dispatch.
//   - Server: subprocess lifecycle. Spawns the language server binary,
//     wires the protocol to its stdio, drains stderr, and shuts it
//     down gracefully.
//   - Client: the per-language analysis capability. Each language
//     composes the shared Server and adds its own workspace bootstrap
//     (tsserver warmup, jdtls project import) rather than inheriting
//     from a common base class.
//
// A client failure is isolated to its language: the engine analyzes
// every detected language independently and aggregates whatever
// succeeds.
package lsp
