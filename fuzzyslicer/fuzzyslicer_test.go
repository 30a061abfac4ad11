// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package fuzzyslicer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kernex-sbs/graphslice/graph"
)

type fakeCompleter struct {
	response string
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return f.response, nil
}

func TestSliceResolvesCallsAndTypes(t *testing.T) {
	dir := t.TempDir()

	if err := os.WriteFile(filepath.Join(dir, "Cargo.toml"), []byte("[package]\nname = \"fixture\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	mainSrc := "fn main() {\n    helper(5);\n}\n"
	if err := os.WriteFile(filepath.Join(dir, "main.rs"), []byte(mainSrc), 0o644); err != nil {
		t.Fatal(err)
	}
	helperSrc := "fn helper(x: i32) -> i32 {\n    x + 1\n}\n\nstruct Config {}\n"
	if err := os.WriteFile(filepath.Join(dir, "lib.rs"), []byte(helperSrc), 0o644); err != nil {
		t.Fatal(err)
	}

	llm := &fakeCompleter{response: "```json\n{\"calls\": [\"helper\"], \"types\": [\"Config\"]}\n```"}
	fs := New(llm)

	g, err := fs.Slice(context.Background(), filepath.Join(dir, "main.rs"), 0, 3)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}

	edges := g.Edges()
	if len(edges) != 2 {
		t.Fatalf("got %d edges, want 2: %+v", len(edges), edges)
	}

	var sawCall, sawType bool
	for _, e := range edges {
		node, ok := g.Node(e.To)
		if !ok {
			t.Fatalf("edge target %+v has no node", e.To)
		}
		switch {
		case node.Kind == graph.KindFunction:
			if e.Type != graph.EdgeCalls {
				t.Errorf("call edge type = %s, want Calls", e.Type)
			}
			sawCall = true
		case node.Kind == graph.KindStruct:
			if e.Type != graph.EdgeDefines {
				t.Errorf("type edge type = %s, want Defines (bug preserved from original)", e.Type)
			}
			sawType = true
		}
	}
	if !sawCall || !sawType {
		t.Errorf("expected both a call edge and a type edge, sawCall=%v sawType=%v", sawCall, sawType)
	}
}

func TestSliceUnresolvedNameProducesNoEdge(t *testing.T) {
	dir := t.TempDir()
	mainSrc := "fn main() {\n    mystery(5);\n}\n"
	if err := os.WriteFile(filepath.Join(dir, "main.rs"), []byte(mainSrc), 0o644); err != nil {
		t.Fatal(err)
	}

	llm := &fakeCompleter{response: `{"calls": ["mystery"], "types": []}`}
	fs := New(llm)

	g, err := fs.Slice(context.Background(), filepath.Join(dir, "main.rs"), 0, 3)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	if len(g.Edges()) != 0 {
		t.Errorf("unresolved name should produce no edge, got %+v", g.Edges())
	}
}
