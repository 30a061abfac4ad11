// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package slicer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kernex-sbs/graphslice/astutil"
)

func newTestSlicer() *Slicer {
	return &Slicer{extractor: astutil.NewParser()}
}

func TestIsReachableDeadCode(t *testing.T) {
	dir := t.TempDir()
	src := "fn main() {\n    let x = 10;\n    if x > 5 {\n        reachable_fn();\n    }\n    if x < 5 {\n        unreachable_fn();\n    }\n}\n"
	path := filepath.Join(dir, "main.rs")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	s := newTestSlicer()

	reachable, err := s.isReachable(context.Background(), path, 3, 8)
	if err != nil {
		t.Fatalf("isReachable (reachable branch): %v", err)
	}
	if !reachable {
		t.Errorf("x==10 with guard x>5 should be reachable")
	}

	reachable, err = s.isReachable(context.Background(), path, 6, 8)
	if err != nil {
		t.Fatalf("isReachable (unreachable branch): %v", err)
	}
	if reachable {
		t.Errorf("x==10 with guard x<5 should be unreachable")
	}
}

func TestIsReachableUnguardedIsConservative(t *testing.T) {
	dir := t.TempDir()
	src := "fn main() {\n    do_thing();\n}\n"
	path := filepath.Join(dir, "main.rs")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	s := newTestSlicer()
	reachable, err := s.isReachable(context.Background(), path, 1, 4)
	if err != nil {
		t.Fatalf("isReachable: %v", err)
	}
	if !reachable {
		t.Errorf("unguarded code should be conservatively reachable")
	}
}

func TestReadLocationAndImplementation(t *testing.T) {
	dir := t.TempDir()
	src := "fn helper() {\n    1 + 1;\n}\n"
	path := filepath.Join(dir, "lib.rs")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	s := newTestSlicer()
	line, err := s.readLocation(path, 0)
	if err != nil {
		t.Fatalf("readLocation: %v", err)
	}
	if line != "fn helper() {" {
		t.Errorf("got %q", line)
	}

	block, err := s.readImplementation(context.Background(), path, 0, 3)
	if err != nil {
		t.Fatalf("readImplementation: %v", err)
	}
	if block != src[:len(src)-1] {
		t.Errorf("got %q, want full function body", block)
	}
}
