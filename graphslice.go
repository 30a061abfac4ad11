// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graphslice re-exports the pieces most callers embedding this
// module need, so they can depend on one import instead of reaching
// into graph/backend/slicer/render directly.
package graphslice

import (
	"github.com/kernex-sbs/graphslice/backend"
	"github.com/kernex-sbs/graphslice/fuzzyslicer"
	"github.com/kernex-sbs/graphslice/graph"
	"github.com/kernex-sbs/graphslice/render"
	"github.com/kernex-sbs/graphslice/slicer"
	"github.com/kernex-sbs/graphslice/verifier"
)

type (
	// NodeId identifies a code location. See graph.NodeId.
	NodeId = graph.NodeId
	// CodeNode is a fragment of source attached to a NodeId. See graph.CodeNode.
	CodeNode = graph.CodeNode
	// EdgeType is the closed set of graph edge relationships. See graph.EdgeType.
	EdgeType = graph.EdgeType
	// DependencyGraph is the slicer's output graph. See graph.DependencyGraph.
	DependencyGraph = graph.DependencyGraph

	// Client drives a structural backend process. See backend.Client.
	Client = backend.Client
	// BackendConfig configures a Client. See backend.Config.
	BackendConfig = backend.Config

	// Slicer orchestrates the structural and fuzzy slicers. See slicer.Slicer.
	Slicer = slicer.Slicer
	// FuzzySlicer is the LLM-assisted fallback slicer. See fuzzyslicer.FuzzySlicer.
	FuzzySlicer = fuzzyslicer.FuzzySlicer

	// HierarchicalContext is a token-budgeted rendering of a DependencyGraph.
	// See render.HierarchicalContext.
	HierarchicalContext = render.HierarchicalContext

	// Verifier's Constraint type, re-exported for callers building
	// constraints outside the astutil extractor. See verifier.Constraint.
	Constraint = verifier.Constraint
)

var (
	// NewGraph returns an empty DependencyGraph. See graph.New.
	NewGraph = graph.New
	// NewClient returns a backend Client. See backend.New.
	NewClient = backend.New
	// NewSlicer returns a Slicer. See slicer.New.
	NewSlicer = slicer.New
	// NewFuzzySlicer returns a FuzzySlicer. See fuzzyslicer.New.
	NewFuzzySlicer = fuzzyslicer.New
	// BuildContext compresses a DependencyGraph to a token budget. See render.Build.
	BuildContext = render.Build
)

const (
	EdgeDefines    = graph.EdgeDefines
	EdgeCalls      = graph.EdgeCalls
	EdgeReads      = graph.EdgeReads
	EdgeWrites     = graph.EdgeWrites
	EdgeReferences = graph.EdgeReferences
)
