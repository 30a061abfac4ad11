// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph holds the dependency-graph data model shared by the
// structural and fuzzy slicers: node identity, code fragments, typed
// edges, and breadth-first traversal.
package graph

// NodeId is the identity of a code location: an absolute file path plus
// a 0-indexed line and column. Equality and hashing are by these three
// fields; NodeId is immutable once constructed.
type NodeId struct {
	File   string
	Line   int
	Column int
}

// NodeKind tags a CodeNode with the reason it was added to a graph, or
// the AST block kind it was extracted as.
type NodeKind string

// Closed set of node kinds. The first four are slicer-assigned roles;
// the rest are the language plugin's block kinds (see astutil.BlockKinds).
const (
	KindTarget     NodeKind = "target"
	KindReference  NodeKind = "reference"
	KindDefinition NodeKind = "definition"
	KindCall       NodeKind = "call"

	KindFunction NodeKind = "function_item"
	KindStruct   NodeKind = "struct_item"
	KindEnum     NodeKind = "enum_item"
	KindTrait    NodeKind = "trait_item"
	KindMod      NodeKind = "mod_item"
	KindMacro    NodeKind = "macro_definition"
)

// CodeNode is a fragment of source code attached to a NodeId.
type CodeNode struct {
	ID   NodeId
	Code string
	Kind NodeKind
}

// EdgeType is the closed set of relationships an Edge may carry.
type EdgeType string

const (
	// EdgeDefines points from a target to its definition.
	EdgeDefines EdgeType = "Defines"
	// EdgeCalls points from a caller to a callee.
	EdgeCalls EdgeType = "Calls"
	// EdgeReads points from a reader to the thing it reads.
	EdgeReads EdgeType = "Reads"
	// EdgeWrites points from a writer to the thing it writes.
	EdgeWrites EdgeType = "Writes"
	// EdgeReferences is a generic catch-all, reference site to target.
	EdgeReferences EdgeType = "References"
)

// Edge is a directed from -> to pair plus its EdgeType. Parallel edges
// are allowed; the graph never deduplicates them.
type Edge struct {
	From NodeId
	To   NodeId
	Type EdgeType
}

// DependencyGraph maps NodeId to CodeNode and holds an ordered sequence
// of edges. It is built in one pass per slice request and never mutated
// afterwards. The orchestrator is responsible for inserting the target
// node first and for ensuring every edge endpoint has a corresponding
// node by the time traversal runs.
type DependencyGraph struct {
	nodes map[NodeId]*CodeNode
	order []NodeId // insertion order, for deterministic root selection
	edges []Edge
}

// New returns an empty DependencyGraph.
func New() *DependencyGraph {
	return &DependencyGraph{
		nodes: make(map[NodeId]*CodeNode),
	}
}

// AddNode inserts node, overwriting any previous node with the same
// NodeId. The node's position in insertion order is preserved from its
// first insertion.
func (g *DependencyGraph) AddNode(node CodeNode) {
	if _, exists := g.nodes[node.ID]; !exists {
		g.order = append(g.order, node.ID)
	}
	n := node
	g.nodes[node.ID] = &n
}

// AddEdge appends edge to the graph. Duplicate and parallel edges are
// permitted and not deduplicated.
func (g *DependencyGraph) AddEdge(edge Edge) {
	g.edges = append(g.edges, edge)
}

// HasNode reports whether id has a node in the graph.
func (g *DependencyGraph) HasNode(id NodeId) bool {
	_, ok := g.nodes[id]
	return ok
}

// Node returns the CodeNode for id, if present.
func (g *DependencyGraph) Node(id NodeId) (CodeNode, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return CodeNode{}, false
	}
	return *n, true
}

// Len returns the number of distinct nodes in the graph.
func (g *DependencyGraph) Len() int {
	return len(g.nodes)
}

// Edges returns the graph's edges in insertion order. The returned
// slice is owned by the caller; mutating it does not affect the graph.
func (g *DependencyGraph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// FirstNode returns the first node inserted into the graph, in
// insertion order. It is used by callers (e.g. the CLI's render
// command) that need a deterministic root when none is supplied
// explicitly.
// Per spec §9, this is an invariant the orchestrator upholds by
// inserting the target node first; FirstNode does not itself verify
// that the returned node is the target.
func (g *DependencyGraph) FirstNode() (NodeId, bool) {
	if len(g.order) == 0 {
		return NodeId{}, false
	}
	return g.order[0], true
}

// BFSResult is one entry of a bfs_from traversal: a reached node and
// its distance from the root.
type BFSResult struct {
	ID       NodeId
	Distance int
}

// BFSFrom walks the graph breadth-first starting at root, ignoring edge
// type and following every outgoing edge. Each node is marked visited
// on enqueue, so it appears at most once in the result, at distance
// monotonically non-decreasing with discovery order. root is included
// at distance 0 even if it has no node entry (callers are expected to
// have inserted it, but BFSFrom does not require it).
func (g *DependencyGraph) BFSFrom(root NodeId) []BFSResult {
	visited := map[NodeId]bool{root: true}
	queue := []BFSResult{{ID: root, Distance: 0}}
	var result []BFSResult

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		result = append(result, cur)

		for _, e := range g.edges {
			if e.From != cur.ID {
				continue
			}
			if visited[e.To] {
				continue
			}
			visited[e.To] = true
			queue = append(queue, BFSResult{ID: e.To, Distance: cur.Distance + 1})
		}
	}

	return result
}

// DependenciesOf returns the CodeNodes reached by a single outgoing
// edge from node, in edge-insertion order. Edges whose target has no
// corresponding node are skipped.
func (g *DependencyGraph) DependenciesOf(node NodeId) []CodeNode {
	var out []CodeNode
	for _, e := range g.edges {
		if e.From != node {
			continue
		}
		if n, ok := g.nodes[e.To]; ok {
			out = append(out, *n)
		}
	}
	return out
}
