// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package store persists per-language analysis snapshots in BadgerDB.
//
// BadgerDB gives us a local embedded store with low-latency access, so
// incremental runs can reload the previous call graph, hierarchy, and
// package dependencies without re-querying language servers.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/codescope/internal/graph"
)

// ErrSnapshotNotFound indicates no snapshot exists for the language.
var ErrSnapshotNotFound = errors.New("analysis snapshot not found")

// analysisPrefix namespaces snapshot keys. One key per language.
const analysisPrefix = "analysis/"

// LanguageSnapshot is the serialized form of one language's analysis.
type LanguageSnapshot struct {
	Language   string                       `json:"language"`
	CreatedAt  time.Time                    `json:"created_at"`
	Files      []string                     `json:"files"`
	Nodes      []graph.Node                 `json:"nodes"`
	Edges      []graph.Edge                 `json:"edges"`
	Hierarchy  graph.ClassHierarchy         `json:"hierarchy"`
	Packages   graph.PackageDependencies    `json:"packages"`
	References map[string][]graph.Reference `json:"references"`
}

// Config holds configuration for the snapshot store.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives BadgerDB's internal logging. Nil disables it.
	Logger *slog.Logger
}

// DefaultConfig returns production defaults: durable writes at the
// given path.
func DefaultConfig(path string) Config {
	return Config{Path: path, SyncWrites: true}
}

// InMemoryConfig returns a configuration for tests. Data is lost on
// close.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store persists analysis snapshots keyed by language.
type Store struct {
	db *badger.DB
}

// Open creates and opens a snapshot store.
//
// Description:
//
//	Opens a BadgerDB database at the configured path, or in memory if
//	InMemory is true. Creates the directory if it doesn't exist.
//
// Outputs:
//
//	*Store - The opened store. Caller must call Close() when done.
//	error - Non-nil if path is invalid or database cannot be opened.
//
// Thread Safety: The returned *Store is safe for concurrent use.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens an in-memory store for testing.
func OpenInMemory() (*Store, error) {
	return Open(InMemoryConfig())
}

// Close closes the underlying database. Safe to call once.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSnapshot writes one language's snapshot, replacing any previous
// snapshot for that language.
//
// Thread Safety: Safe for concurrent use.
func (s *Store) SaveSnapshot(ctx context.Context, snap *LanguageSnapshot) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	if snap.Language == "" {
		return errors.New("snapshot language must not be empty")
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot for %s: %w", snap.Language, err)
	}

	key := []byte(analysisPrefix + snap.Language)
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, payload)
	})
	if err != nil {
		return fmt.Errorf("persist snapshot for %s: %w", snap.Language, err)
	}

	slog.Debug("analysis snapshot persisted",
		slog.String("language", snap.Language),
		slog.Int("bytes", len(payload)))
	return nil
}

// LoadSnapshot reads one language's snapshot.
//
// Outputs:
//
//	*LanguageSnapshot - The stored snapshot.
//	error - ErrSnapshotNotFound if no snapshot exists for the language.
//
// Thread Safety: Safe for concurrent use.
func (s *Store) LoadSnapshot(ctx context.Context, language string) (*LanguageSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	var snap LanguageSnapshot
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(analysisPrefix + language))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", ErrSnapshotNotFound, language)
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &snap)
		})
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// DeleteSnapshot removes one language's snapshot. Deleting a missing
// snapshot is not an error.
func (s *Store) DeleteSnapshot(ctx context.Context, language string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(analysisPrefix + language))
	})
}

// Languages lists the languages with stored snapshots, sorted.
func (s *Store) Languages(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	var langs []string
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(analysisPrefix)})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			langs = append(langs, strings.TrimPrefix(key, analysisPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(langs)
	return langs, nil
}

// SnapshotFrom extracts one language's snapshot from the in-memory
// aggregation store, ready to persist.
func SnapshotFrom(agg *graph.Store, language string) (*LanguageSnapshot, error) {
	cg, err := agg.GetCFG(language)
	if err != nil {
		return nil, err
	}
	hierarchy, err := agg.GetClassHierarchy(language)
	if err != nil {
		return nil, err
	}
	packages, err := agg.GetPackageDependencies(language)
	if err != nil {
		return nil, err
	}
	references, err := agg.GetReferences(language)
	if err != nil {
		return nil, err
	}
	files, err := agg.GetSourceFiles(language)
	if err != nil {
		return nil, err
	}

	nodes := make([]graph.Node, 0, len(cg.Nodes))
	for _, n := range cg.Nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].QualifiedName < nodes[j].QualifiedName
	})

	return &LanguageSnapshot{
		Language:   language,
		CreatedAt:  time.Now().UTC(),
		Files:      files,
		Nodes:      nodes,
		Edges:      cg.Edges,
		Hierarchy:  hierarchy,
		Packages:   packages,
		References: references,
	}, nil
}

// Restore rebuilds the in-memory aggregation slots for the snapshot's
// language.
func (snap *LanguageSnapshot) Restore(agg *graph.Store) {
	cg := graph.NewCallGraph()
	for _, n := range snap.Nodes {
		cg.AddNode(n)
	}
	for _, e := range snap.Edges {
		cg.AddEdge(e)
	}

	agg.AddCFG(snap.Language, cg)
	agg.AddClassHierarchy(snap.Language, snap.Hierarchy)
	agg.AddPackageDependencies(snap.Language, snap.Packages)
	agg.AddReferences(snap.Language, snap.References)
	agg.AddSourceFiles(snap.Language, snap.Files)
}
