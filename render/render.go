// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package render turns a DependencyGraph into a single text block
// sized to a token budget: nodes closer to the root get full source,
// farther nodes degrade to an interface summary, and the rest become a
// one-line reference, so the output stays useful to a downstream model
// regardless of how large the slice is.
package render

import (
	"fmt"
	"strings"

	"github.com/kernex-sbs/graphslice/graph"
)

// InclusionLevel is how much of a node's code made it into the
// rendered output.
type InclusionLevel int

const (
	FullSource InclusionLevel = iota
	InterfaceSummary
	Reference
)

func (l InclusionLevel) String() string {
	switch l {
	case FullSource:
		return "FULL"
	case InterfaceSummary:
		return "INTERFACE"
	case Reference:
		return "REF"
	default:
		return "UNKNOWN"
	}
}

type section struct {
	id      graph.NodeId
	content string
	level   InclusionLevel
}

// HierarchicalContext is the result of compressing a DependencyGraph
// to a token budget, ready to Render into text.
type HierarchicalContext struct {
	sections []section
}

// EstimateTokens approximates a token count as ceil(len(text)/4), the
// rough token-per-character ratio used throughout this package instead
// of invoking a real tokenizer.
func EstimateTokens(text string) int {
	n := len(text)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}

// Build walks graph breadth-first from root and assigns each reached
// node an InclusionLevel based on its BFS depth and the token budget
// remaining when it is visited:
//
//   - depth 0 (the root) is always FullSource.
//   - depth 1 is FullSource if it fits in the remaining budget, else
//     InterfaceSummary.
//   - depth >= 2 is InterfaceSummary if it fits, else Reference.
//
// Traversal stops the first time a non-root node's inclusion pushes
// the running total to or past the budget: that node is still added at
// whatever level it computed to, and nothing past it is visited.
func Build(g *graph.DependencyGraph, root graph.NodeId, maxTokens int) *HierarchicalContext {
	hc := &HierarchicalContext{}
	tokensUsed := 0

	for _, reached := range g.BFSFrom(root) {
		node, ok := g.Node(reached.ID)
		if !ok {
			continue
		}

		var level InclusionLevel
		var content string

		switch {
		case reached.Distance == 0:
			level = FullSource
			content = node.Code
		case reached.Distance == 1:
			if tokensUsed+EstimateTokens(node.Code) <= maxTokens {
				level = FullSource
				content = node.Code
			} else {
				level = InterfaceSummary
				content = extractInterface(node.Code)
			}
		default:
			summary := extractInterface(node.Code)
			if tokensUsed+EstimateTokens(summary) <= maxTokens {
				level = InterfaceSummary
				content = summary
			} else {
				level = Reference
				content = fmt.Sprintf("// See: %s:%d", node.ID.File, node.ID.Line)
			}
		}

		tokensUsed += EstimateTokens(content)
		hc.sections = append(hc.sections, section{id: reached.ID, content: content, level: level})

		if tokensUsed >= maxTokens && reached.Distance > 0 {
			break
		}
	}

	return hc
}

// extractInterface keeps only the lines of code that look like a
// declaration or doc comment: signatures, struct/impl headers, and
// /// comments. If nothing matches, the first line is used so the
// summary is never empty.
func extractInterface(code string) string {
	lines := strings.Split(code, "\n")
	var kept []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "pub fn"),
			strings.HasPrefix(trimmed, "fn"),
			strings.HasPrefix(trimmed, "pub struct"),
			strings.HasPrefix(trimmed, "struct"),
			strings.HasPrefix(trimmed, "impl"),
			strings.Contains(trimmed, "///"):
			kept = append(kept, line)
		}
	}
	if len(kept) == 0 {
		if len(lines) > 0 {
			return lines[0]
		}
		return ""
	}
	return strings.Join(kept, "\n")
}

// Render formats the compressed context as the slicer's canonical
// output: each section as "// [LEVEL] file:line:column" followed by
// its content, in BFS order.
func (hc *HierarchicalContext) Render() string {
	var b strings.Builder
	for _, s := range hc.sections {
		fmt.Fprintf(&b, "\n// [%s] %s:%d:%d\n%s\n", s.level, s.id.File, s.id.Line, s.id.Column, s.content)
	}
	return b.String()
}

// Sections exposes the compressed sections for callers that want
// structured access rather than the rendered string.
func (hc *HierarchicalContext) Sections() []struct {
	ID      graph.NodeId
	Content string
	Level   InclusionLevel
} {
	out := make([]struct {
		ID      graph.NodeId
		Content string
		Level   InclusionLevel
	}, len(hc.sections))
	for i, s := range hc.sections {
		out[i] = struct {
			ID      graph.NodeId
			Content string
			Level   InclusionLevel
		}{ID: s.id, Content: s.content, Level: s.level}
	}
	return out
}
