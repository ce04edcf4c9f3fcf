// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package lang

import (
	"fmt"
	"sync"
)

// ServerConfig describes how to launch and configure one language's
// LSP server.
type ServerConfig struct {
	// Language is the language identifier (e.g., "go", "python").
	Language string

	// Command is the server executable name or path.
	Command string

	// Args are command-line arguments passed to the server.
	Args []string

	// Suffixes are file suffixes this server handles (e.g., ".go").
	Suffixes []string

	// RootFiles indicate a project root for this language (e.g., "go.mod").
	RootFiles []string

	// LanguageID is the LSP languageId used in didOpen notifications.
	LanguageID string

	// InitializationOptions are custom options passed during initialize.
	InitializationOptions interface{}
}

// Registry maps languages and file suffixes to server configurations.
//
// Thread Safety: safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	byLanguage map[string]ServerConfig
	bySuffix   map[string]string // suffix -> language
}

// NewRegistry creates a registry pre-populated with the five supported
// backends: Python (pyright), TypeScript/JavaScript
// (typescript-language-server), Java (jdtls), Go (gopls), and PHP
// (intelephense).
func NewRegistry() *Registry {
	r := &Registry{
		byLanguage: make(map[string]ServerConfig),
		bySuffix:   make(map[string]string),
	}
	r.registerDefaults()
	return r
}

func (r *Registry) registerDefaults() {
	r.Register(ServerConfig{
		Language:   "python",
		Command:    "pyright-langserver",
		Args:       []string{"--stdio"},
		Suffixes:   []string{".py", ".pyi"},
		RootFiles:  []string{"pyproject.toml", "setup.py", "requirements.txt"},
		LanguageID: "python",
	})

	r.Register(ServerConfig{
		Language:   "typescript",
		Command:    "typescript-language-server",
		Args:       []string{"--stdio"},
		Suffixes:   []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs"},
		RootFiles:  []string{"tsconfig.json", "package.json", "jsconfig.json"},
		LanguageID: "typescript",
	})

	r.Register(ServerConfig{
		Language:   "java",
		Command:    "jdtls",
		Args:       []string{},
		Suffixes:   []string{".java"},
		RootFiles:  []string{"pom.xml", "build.gradle", "build.gradle.kts"},
		LanguageID: "java",
	})

	r.Register(ServerConfig{
		Language:   "go",
		Command:    "gopls",
		Args:       []string{"serve"},
		Suffixes:   []string{".go"},
		RootFiles:  []string{"go.mod", "go.sum"},
		LanguageID: "go",
	})

	r.Register(ServerConfig{
		Language:   "php",
		Command:    "intelephense",
		Args:       []string{"--stdio"},
		Suffixes:   []string{".php"},
		RootFiles:  []string{"composer.json"},
		LanguageID: "php",
	})
}

// Register adds or replaces a language configuration and refreshes the
// suffix mapping.
//
// Thread Safety: safe for concurrent use.
func (r *Registry) Register(config ServerConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byLanguage[config.Language] = config
	for _, suffix := range config.Suffixes {
		r.bySuffix[suffix] = config.Language
	}
}

// Get returns the configuration for a language.
func (r *Registry) Get(language string) (ServerConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	config, ok := r.byLanguage[language]
	return config, ok
}

// LanguageForSuffix maps a file suffix (with dot) to its language.
func (r *Registry) LanguageForSuffix(suffix string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	language, ok := r.bySuffix[suffix]
	return language, ok
}

// Languages returns all registered language names.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byLanguage))
	for name := range r.byLanguage {
		names = append(names, name)
	}
	return names
}

// Language is one detected language in a repository scan, immutable
// once produced by the Detector.
type Language struct {
	// Name is the language identifier.
	Name string `json:"name"`

	// Size is the total byte count of this language's source files.
	Size int64 `json:"size"`

	// Percentage is this language's share of all detected source bytes.
	Percentage float64 `json:"percentage"`

	// Suffixes are the file suffixes attributed to this language.
	Suffixes []string `json:"suffixes"`

	// FileCount is the number of source files found.
	FileCount int `json:"file_count"`

	// BelowThreshold marks languages too small to warrant an LSP client.
	BelowThreshold bool `json:"below_threshold"`

	// Config is the server launch configuration for this language.
	Config ServerConfig `json:"-"`
}

// String renders a one-line human-readable summary.
func (l Language) String() string {
	return fmt.Sprintf("%s: %.1f%% (%d files, %d bytes)", l.Name, l.Percentage, l.FileCount, l.Size)
}
