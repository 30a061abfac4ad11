// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package slicer orchestrates the structural and fuzzy slicers behind
// one entry point: build a DependencyGraph rooted at a source
// location, choosing the structural backend when the target file is
// healthy and falling back to the LLM-assisted fuzzy slicer when it
// isn't, then pruning calls whose every call site is unreachable.
package slicer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/kernex-sbs/graphslice/astutil"
	"github.com/kernex-sbs/graphslice/backend"
	"github.com/kernex-sbs/graphslice/fuzzyslicer"
	"github.com/kernex-sbs/graphslice/graph"
	"github.com/kernex-sbs/graphslice/verifier"
)

var (
	tracer = otel.Tracer("graphslice.slicer")
	meter  = otel.Meter("graphslice.slicer")
)

var pruneTotal metric.Int64Counter

func init() {
	pruneTotal, _ = meter.Int64Counter(
		"graphslice.slicer.prune.count",
		metric.WithDescription("Count of calls pruned as unreachable"),
	)
}

// Slicer orchestrates one workspace's structural backend plus fuzzy
// fallback.
type Slicer struct {
	Backend       *backend.Client
	Fuzzy         *fuzzyslicer.FuzzySlicer
	extractor     *astutil.Parser
	workspaceRoot string
	languageID    string
}

// New returns a Slicer over an already-started backend client and a
// fuzzy slicer. The fuzzy slicer does not use workspaceRoot; it finds
// its own scan root from each target file.
func New(workspaceRoot, languageID string, be *backend.Client, fuzzy *fuzzyslicer.FuzzySlicer) *Slicer {
	return &Slicer{
		Backend:       be,
		Fuzzy:         fuzzy,
		extractor:     astutil.NewParser(),
		workspaceRoot: workspaceRoot,
		languageID:    languageID,
	}
}

// BuildGraph is the single entry point: it opens targetFile in the
// backend, checks its diagnostics, and routes to the structural or
// fuzzy slicer accordingly. Every call carries a fresh correlation id
// attached to its span and log lines.
func (s *Slicer) BuildGraph(ctx context.Context, targetFile string, line, column int) (*graph.DependencyGraph, error) {
	sliceID := uuid.NewString()
	ctx, span := tracer.Start(ctx, "slicer.build_graph",
		trace.WithAttributes(
			attribute.String("slice_id", sliceID),
			attribute.String("target_file", targetFile),
			attribute.Int("line", line),
			attribute.Int("column", column),
		),
	)
	defer span.End()

	log := slog.With("slice_id", sliceID, "target_file", targetFile)

	text, err := os.ReadFile(targetFile)
	if err != nil {
		return nil, fmt.Errorf("reading target file: %w", err)
	}

	if err := s.Backend.DidOpen(ctx, targetFile, string(text)); err != nil {
		return nil, fmt.Errorf("opening target file in backend: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(backend.DiagnosticSettleDelay):
	}

	diags := s.Backend.Diagnostics(targetFile)
	errCount := 0
	for _, d := range diags {
		if d.Severity == backend.SeverityError {
			errCount++
		}
	}

	if errCount > 0 {
		log.Warn("file has errors, switching to fuzzy slicer", "error_count", errCount)
		span.SetAttributes(attribute.String("strategy", "fuzzy"))
		return s.Fuzzy.Slice(ctx, targetFile, line, column)
	}

	log.Info("file is healthy, using structural slicer")
	span.SetAttributes(attribute.String("strategy", "structural"))
	return s.buildStrictGraph(ctx, targetFile, line, column)
}

func (s *Slicer) buildStrictGraph(ctx context.Context, targetFile string, line, column int) (*graph.DependencyGraph, error) {
	g := graph.New()
	targetID := graph.NodeId{File: targetFile, Line: line, Column: column}
	targetCode, err := s.readLocation(targetFile, line)
	if err != nil {
		return nil, err
	}
	g.AddNode(graph.CodeNode{ID: targetID, Code: targetCode, Kind: graph.KindTarget})

	refs, err := s.Backend.References(ctx, targetFile, line, column, false)
	if err != nil {
		return nil, fmt.Errorf("fetching references: %w", err)
	}
	for _, loc := range refs {
		path, err := backend.URIToPath(loc.URI)
		if err != nil {
			continue
		}
		refID := graph.NodeId{File: path, Line: loc.Range.Start.Line, Column: loc.Range.Start.Character}
		code, err := s.readLocation(path, loc.Range.Start.Line)
		if err != nil {
			continue
		}
		g.AddNode(graph.CodeNode{ID: refID, Code: code, Kind: graph.KindReference})
		g.AddEdge(graph.Edge{From: refID, To: targetID, Type: graph.EdgeReferences})
	}

	defs, err := s.Backend.Definition(ctx, targetFile, line, column)
	if err != nil {
		return nil, fmt.Errorf("fetching definition: %w", err)
	}
	for _, loc := range defs {
		path, err := backend.URIToPath(loc.URI)
		if err != nil {
			continue
		}
		defID := graph.NodeId{File: path, Line: loc.Range.Start.Line, Column: loc.Range.Start.Character}
		code, err := s.readImplementation(ctx, path, loc.Range.Start.Line, loc.Range.Start.Character)
		if err != nil {
			continue
		}
		g.AddNode(graph.CodeNode{ID: defID, Code: code, Kind: graph.KindDefinition})
		g.AddEdge(graph.Edge{From: targetID, To: defID, Type: graph.EdgeDefines})

		if err := s.expandOutgoingCalls(ctx, g, defID, path, loc.Range.Start.Line, loc.Range.Start.Character); err != nil {
			slog.Warn("expanding outgoing calls failed", "error", err, "file", path)
		}
	}

	return g, nil
}

func (s *Slicer) expandOutgoingCalls(ctx context.Context, g *graph.DependencyGraph, defID graph.NodeId, file string, line, column int) error {
	item, err := s.Backend.PrepareCallHierarchy(ctx, file, line, column)
	if err != nil {
		return fmt.Errorf("preparing call hierarchy: %w", err)
	}
	if item == nil {
		return nil
	}

	calls, err := s.Backend.OutgoingCalls(ctx, *item)
	if err != nil {
		return fmt.Errorf("fetching outgoing calls: %w", err)
	}

	for _, call := range calls {
		calleePath, err := backend.URIToPath(call.To.URI)
		if err != nil {
			continue
		}

		anyReachable := false
		for _, fromRange := range call.FromRanges {
			reachable, err := s.isReachable(ctx, file, fromRange.Start.Line, fromRange.Start.Character)
			if err != nil {
				slog.Warn("reachability check failed, treating as reachable", "error", err)
				reachable = true
			}
			if reachable {
				anyReachable = true
				break
			}
		}
		if !anyReachable {
			slog.Info("pruned call, all sites unreachable", "callee", call.To.Name)
			pruneTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("callee", call.To.Name)))
			continue
		}

		calleeID := graph.NodeId{File: calleePath, Line: call.To.Range.Start.Line, Column: call.To.Range.Start.Character}
		if !g.HasNode(calleeID) {
			code, err := s.readImplementation(ctx, calleePath, call.To.Range.Start.Line, call.To.Range.Start.Character)
			if err != nil {
				continue
			}
			g.AddNode(graph.CodeNode{ID: calleeID, Code: code, Kind: graph.KindCall})
		}
		g.AddEdge(graph.Edge{From: defID, To: calleeID, Type: graph.EdgeCalls})
	}
	return nil
}

// isReachable reports whether the constraints guarding (file, line,
// column) are jointly consistent. A file it cannot read, or a point
// with no assignments or conditions guarding it, is conservatively
// reachable.
func (s *Slicer) isReachable(ctx context.Context, file string, line, column int) (bool, error) {
	source, err := os.ReadFile(file)
	if err != nil {
		return true, nil
	}

	assignments, conditions, err := s.extractor.ExtractConstraints(ctx, source, line, column)
	if err != nil {
		return true, fmt.Errorf("extracting constraints: %w", err)
	}
	if len(assignments) == 0 && len(conditions) == 0 {
		return true, nil
	}

	combined := make([]verifier.Constraint, 0, len(assignments)+len(conditions))
	for _, c := range append(assignments, conditions...) {
		combined = append(combined, verifier.Constraint{Var: c.Var, Op: c.Op, Val: c.Val})
	}

	if !verifier.CheckConsistency(combined) {
		slog.Info("pruned unreachable code", "file", file, "line", line, "column", column)
		return false, nil
	}
	return true, nil
}

func (s *Slicer) readLocation(file string, line int) (string, error) {
	source, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", file, err)
	}
	lines := strings.Split(string(source), "\n")
	if line < 0 || line >= len(lines) {
		return "", fmt.Errorf("line %d out of range in %s", line, file)
	}
	return lines[line], nil
}

func (s *Slicer) readImplementation(ctx context.Context, file string, line, column int) (string, error) {
	source, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", file, err)
	}
	if block, ok := s.extractor.ExtractBlock(ctx, source, line, column); ok && block != "" {
		return block, nil
	}
	return s.readLocation(file, line)
}
