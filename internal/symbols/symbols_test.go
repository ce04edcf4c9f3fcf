// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package symbols

import (
	"reflect"
	"testing"
)

func find(syms []SymbolInfo, qualifiedName string) (SymbolInfo, bool) {
	for _, s := range syms {
		if s.QualifiedName == qualifiedName {
			return s, true
		}
	}
	return SymbolInfo{}, false
}

// =============================================================================
// EXTRACTION
// =============================================================================

func TestExtractPython(t *testing.T) {
	src := `import os

class Repo:
    def save(self, item):
        self.items.append(item)

    def load(self,
             key,
             default=None):
        return self.items.get(key, default)

def main():
    r = Repo()
    r.save(1)
`
	syms := Extract("repo.py", src)

	repo, ok := find(syms, "Repo")
	if !ok || repo.Kind != KindClass {
		t.Fatalf("Repo class missing: %v", syms)
	}

	save, ok := find(syms, "Repo.save")
	if !ok || save.Kind != KindMethod || save.ParentName != "Repo" {
		t.Fatalf("Repo.save wrong: %+v", save)
	}

	// Multi-line signature with a default value: collapsed and stripped.
	load, ok := find(syms, "Repo.load")
	if !ok {
		t.Fatal("Repo.load missing")
	}
	if load.Signature != "def load(self,key,default)" {
		t.Errorf("load signature = %q", load.Signature)
	}

	main, ok := find(syms, "main")
	if !ok || main.Kind != KindFunction || main.ParentName != "" {
		t.Fatalf("main wrong: %+v", main)
	}
	if main.EndLine <= main.StartLine {
		t.Errorf("main extent = %d..%d", main.StartLine, main.EndLine)
	}
}

func TestExtractGo(t *testing.T) {
	src := `package store

type Repo struct {
	items []int
}

type Saver interface {
	Save(x int) error
}

func (r *Repo) Save(x int) error {
	r.items = append(r.items, x)
	return nil
}

func New() (*Repo, error) {
	return &Repo{}, nil
}
`
	syms := Extract("store.go", src)

	if s, ok := find(syms, "Repo"); !ok || s.Kind != KindStruct {
		t.Fatalf("Repo struct missing: %v", syms)
	}
	if s, ok := find(syms, "Saver"); !ok || s.Kind != KindInterface {
		t.Fatalf("Saver interface missing: %v", syms)
	}

	save, ok := find(syms, "Repo.Save")
	if !ok || save.Kind != KindMethod || save.ParentName != "Repo" {
		t.Fatalf("Repo.Save wrong: %+v", save)
	}
	if save.Signature != "func(r*Repo)Save(x int)error" {
		t.Errorf("Save signature = %q", save.Signature)
	}

	if s, ok := find(syms, "New"); !ok || s.Kind != KindFunction {
		t.Fatalf("New missing: %v", syms)
	}
}

func TestExtractTypeScript(t *testing.T) {
	src := `import { thing } from "./thing";

export class Widget {
  private count = 0;

  render(target: Element): void {
    target.append("x");
  }

  async load(url: string) {
    await fetch(url);
  }
}

export function helper(a: number, b = 2): number {
  return a + b;
}
`
	syms := Extract("widget.ts", src)

	if s, ok := find(syms, "Widget"); !ok || s.Kind != KindClass {
		t.Fatalf("Widget missing: %v", syms)
	}
	if s, ok := find(syms, "Widget.render"); !ok || s.Kind != KindMethod {
		t.Fatalf("render missing: %v", syms)
	}
	if s, ok := find(syms, "Widget.load"); !ok || s.Kind != KindMethod {
		t.Fatalf("load missing: %v", syms)
	}

	helper, ok := find(syms, "helper")
	if !ok || helper.Kind != KindFunction {
		t.Fatalf("helper missing: %v", syms)
	}
	// Default value stripped.
	if helper.Signature != "export function helper(a:number,b):number" {
		t.Errorf("helper signature = %q", helper.Signature)
	}
}

func TestExtractJava(t *testing.T) {
	src := `package com.example;

public class UserService {
    private final UserRepo repo;

    public UserService(UserRepo repo) {
        this.repo = repo;
    }

    public User find(long id) throws NotFoundException {
        return repo.get(id);
    }
}
`
	syms := Extract("UserService.java", src)

	if s, ok := find(syms, "UserService"); !ok || s.Kind != KindClass {
		t.Fatalf("UserService missing: %v", syms)
	}
	if s, ok := find(syms, "UserService.UserService"); !ok || s.Kind != KindMethod {
		t.Fatalf("constructor missing: %v", syms)
	}
	if s, ok := find(syms, "UserService.find"); !ok || s.Kind != KindMethod {
		t.Fatalf("find missing: %v", syms)
	}
}

func TestExtractPHP(t *testing.T) {
	src := `<?php

class Cart {
    public function add($item, $qty = 1) {
        $this->items[] = $item;
    }
}

function total($cart) {
    return count($cart);
}
`
	syms := Extract("cart.php", src)

	if s, ok := find(syms, "Cart"); !ok || s.Kind != KindClass {
		t.Fatalf("Cart missing: %v", syms)
	}
	add, ok := find(syms, "Cart.add")
	if !ok || add.Kind != KindMethod {
		t.Fatalf("add missing: %v", syms)
	}
	if s, ok := find(syms, "total"); !ok || s.Kind != KindFunction {
		t.Fatalf("total missing: %v", syms)
	}
}

func TestExtractIgnoresCommentsAndStrings(t *testing.T) {
	src := `package x

// func NotReal() {}
var s = "func AlsoNotReal() {"

func Real() {}
`
	syms := Extract("x.go", src)
	if _, ok := find(syms, "NotReal"); ok {
		t.Error("declaration inside comment extracted")
	}
	if _, ok := find(syms, "AlsoNotReal"); ok {
		t.Error("declaration inside string extracted")
	}
	if _, ok := find(syms, "Real"); !ok {
		t.Error("real declaration missed")
	}
}

// =============================================================================
// DIFFING
// =============================================================================

func TestDiffSignatureChange(t *testing.T) {
	d := Diff("a.py", "def foo(): pass\n", "def foo(x): pass\n")

	want := []SignaturePair{{Old: "foo", New: "foo"}}
	if !reflect.DeepEqual(d.ModifiedSignatures, want) {
		t.Errorf("modified = %v, want %v", d.ModifiedSignatures, want)
	}
	if !d.HasAPIChanges() {
		t.Error("HasAPIChanges must be true for a signature change")
	}
}

func TestDiffImplementationOnly(t *testing.T) {
	oldSrc := "def foo(): pass\n"
	newSrc := "def foo():\n    x = 1\n    return x\n"
	d := Diff("a.py", oldSrc, newSrc)

	if !reflect.DeepEqual(d.ImplementationOnly, []string{"foo"}) {
		t.Errorf("implementation_only = %v, want [foo]", d.ImplementationOnly)
	}
	if d.HasAPIChanges() {
		t.Error("same signature must not be an API change")
	}
}

func TestDiffAddedRemoved(t *testing.T) {
	oldSrc := "def foo(): pass\ndef gone(): pass\n"
	newSrc := "def foo(): pass\ndef fresh(): pass\n"
	d := Diff("a.py", oldSrc, newSrc)

	if !reflect.DeepEqual(d.Added, []string{"fresh"}) {
		t.Errorf("added = %v", d.Added)
	}
	if !reflect.DeepEqual(d.Removed, []string{"gone"}) {
		t.Errorf("removed = %v", d.Removed)
	}
	if !d.HasAPIChanges() {
		t.Error("added/removed symbols are API changes")
	}
}

func TestDiffDeterministic(t *testing.T) {
	oldSrc := "def a(): pass\ndef b(x): pass\nclass C:\n    def m(self): pass\n"
	newSrc := "def a(y): pass\nclass C:\n    def m(self):\n        return 1\n"

	first := Diff("a.py", oldSrc, newSrc)
	for i := 0; i < 10; i++ {
		if got := Diff("a.py", oldSrc, newSrc); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differs: %+v vs %+v", i, got, first)
		}
	}
}

func TestDiffFormattingInsensitive(t *testing.T) {
	oldSrc := "def foo(a,b):\n    return a\n"
	newSrc := "def foo(a,  b):\n    return a\n"
	d := Diff("a.py", oldSrc, newSrc)
	if len(d.ModifiedSignatures) != 0 {
		t.Errorf("whitespace-only signature change detected: %v", d.ModifiedSignatures)
	}
}
