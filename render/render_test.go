// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package render

import (
	"strconv"
	"strings"
	"testing"

	"github.com/kernex-sbs/graphslice/graph"
)

func TestEstimateTokensCeiling(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"abc", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 8), 2},
		{strings.Repeat("x", 9), 3},
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.text); got != tt.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func chain(n int) (*graph.DependencyGraph, graph.NodeId) {
	g := graph.New()
	root := graph.NodeId{File: "lib.rs", Line: 0}
	prev := root
	for i := 0; i < n; i++ {
		id := graph.NodeId{File: "lib.rs", Line: i + 1}
		g.AddNode(graph.CodeNode{ID: id, Code: "fn f" + strconv.Itoa(i) + "() {\n    body();\n}", Kind: graph.KindFunction})
		g.AddEdge(graph.Edge{From: prev, To: id, Type: graph.EdgeCalls})
		prev = id
	}
	g.AddNode(graph.CodeNode{ID: root, Code: "fn root() {\n    f0();\n}", Kind: graph.KindTarget})
	return g, root
}

func TestBuildRootAlwaysFullSource(t *testing.T) {
	g, root := chain(3)
	hc := Build(g, root, 10000)
	if len(hc.sections) == 0 {
		t.Fatal("expected at least one section")
	}
	if hc.sections[0].level != FullSource {
		t.Errorf("root level = %v, want FullSource", hc.sections[0].level)
	}
}

func TestBuildDegradesUnderTightBudget(t *testing.T) {
	g, root := chain(20)
	hc := Build(g, root, 5)
	if len(hc.sections) == 0 {
		t.Fatal("expected at least one section")
	}
	if hc.sections[0].level != FullSource {
		t.Errorf("root should always be FullSource even under a tight budget")
	}
	sawDegraded := false
	for _, s := range hc.sections[1:] {
		if s.level != FullSource {
			sawDegraded = true
		}
	}
	if !sawDegraded {
		t.Errorf("expected at least one degraded section under a tight budget")
	}
}

func TestExtractInterfaceFallsBackToFirstLine(t *testing.T) {
	got := extractInterface("let x = 1;\nlet y = 2;")
	if got != "let x = 1;" {
		t.Errorf("got %q", got)
	}
}

func TestExtractInterfaceKeepsSignatures(t *testing.T) {
	code := "/// Adds one.\npub fn add_one(x: i32) -> i32 {\n    x + 1\n}"
	got := extractInterface(code)
	if !strings.Contains(got, "pub fn add_one") || !strings.Contains(got, "/// Adds one.") {
		t.Errorf("got %q", got)
	}
	if strings.Contains(got, "x + 1") {
		t.Errorf("interface summary should not include the body: %q", got)
	}
}

func TestRenderFormatsSections(t *testing.T) {
	g, root := chain(1)
	hc := Build(g, root, 10000)
	out := hc.Render()
	if !strings.Contains(out, "// [FULL] lib.rs:0:0") {
		t.Errorf("render missing root header: %q", out)
	}
}

func BenchmarkHierarchicalContext_Build(b *testing.B) {
	g, root := chain(200)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Build(g, root, 4000)
	}
}
