// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package astutil wraps tree-sitter's Rust grammar to extract the three
// things the slicers need from source text: the smallest enclosing
// block at a point, the symbols a file defines at top level, and the
// linear-integer constraints that guard a point in its enclosing
// function.
package astutil

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"
)

// BlockKinds is the closed set of tree-sitter node kinds treated as a
// "definition block" by ExtractBlock and DefinedSymbols. impl_item is
// deliberately excluded even though the Rust grammar and a defining
// implementation might include it; graphslice follows the closed set
// named explicitly for this operation.
var BlockKinds = map[string]bool{
	"function_item":    true,
	"struct_item":      true,
	"enum_item":        true,
	"trait_item":       true,
	"mod_item":         true,
	"macro_definition": true,
}

// SymbolInfo is a top-level symbol discovered by DefinedSymbols.
type SymbolInfo struct {
	Name string
	Kind string
	Code string
	Line int
}

// Parser wraps a tree-sitter parser configured for Rust. A Parser holds
// no state: every call builds a fresh sitter.Parser, matching
// go_parser.go's pattern, so one Parser may be shared by concurrent
// goroutines.
type Parser struct{}

// NewParser returns a Parser ready to use.
func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) parse(ctx context.Context, source []byte) (*sitter.Tree, error) {
	sp := sitter.NewParser()
	sp.SetLanguage(rust.GetLanguage())
	tree, err := sp.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parsing source: %w", err)
	}
	return tree, nil
}

// smallestNodeAt returns the deepest node in tree whose byte range
// contains point, descending from root. tree-sitter's Go binding does
// not expose a descendant-for-point convenience, so this walks the
// tree manually the way a point-query would.
func smallestNodeAt(node *sitter.Node, line, col uint32) *sitter.Node {
	best := node
	for {
		found := false
		for i := 0; i < int(best.ChildCount()); i++ {
			child := best.Child(i)
			if child == nil {
				continue
			}
			start := child.StartPoint()
			end := child.EndPoint()
			if pointBefore(line, col, start) || pointAfter(line, col, end) {
				continue
			}
			best = child
			found = true
			break
		}
		if !found {
			return best
		}
	}
}

func pointBefore(line, col uint32, p sitter.Point) bool {
	if line < p.Row {
		return true
	}
	if line == p.Row && col < p.Column {
		return true
	}
	return false
}

func pointAfter(line, col uint32, p sitter.Point) bool {
	if line > p.Row {
		return true
	}
	if line == p.Row && col > p.Column {
		return true
	}
	return false
}

// ExtractBlock returns the source text of the smallest enclosing
// BlockKinds ancestor of (line, column) in source (0-indexed). If no
// such ancestor exists, it falls back to the first top-level child of
// the source file containing the point; if that also fails, it falls
// back to the single line at (line, column) and ok is still true (the
// text is empty if that line does not exist). ok is false only when
// the source cannot be parsed.
func (p *Parser) ExtractBlock(ctx context.Context, source []byte, line, column int) (string, bool) {
	tree, err := p.parse(ctx, source)
	if err != nil {
		return "", false
	}
	defer tree.Close()

	root := tree.RootNode()
	target := smallestNodeAt(root, uint32(line), uint32(column))
	if target == nil {
		return singleLine(source, line), true
	}

	for n := target; n != nil; n = n.Parent() {
		if BlockKinds[n.Type()] {
			return string(source[n.StartByte():n.EndByte()]), true
		}
	}

	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		if child == nil {
			continue
		}
		start := child.StartPoint()
		end := child.EndPoint()
		if !pointBefore(uint32(line), uint32(column), start) && !pointAfter(uint32(line), uint32(column), end) {
			return string(source[child.StartByte():child.EndByte()]), true
		}
	}

	return singleLine(source, line), true
}

func singleLine(source []byte, line int) string {
	start := 0
	cur := 0
	for i, b := range source {
		if cur == line {
			start = i
			break
		}
		if b == '\n' {
			cur++
		}
	}
	end := start
	for end < len(source) && source[end] != '\n' {
		end++
	}
	if cur != line {
		return ""
	}
	return string(source[start:end])
}

// DefinedSymbols returns every BlockKinds node that is a direct child
// of the source file's root, in source order.
func (p *Parser) DefinedSymbols(ctx context.Context, source []byte) ([]SymbolInfo, error) {
	tree, err := p.parse(ctx, source)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	var symbols []SymbolInfo
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		if child == nil || !BlockKinds[child.Type()] {
			continue
		}
		name := "unknown"
		if nameNode := child.ChildByFieldName("name"); nameNode != nil {
			name = string(source[nameNode.StartByte():nameNode.EndByte()])
		}
		symbols = append(symbols, SymbolInfo{
			Name: name,
			Kind: child.Type(),
			Code: string(source[child.StartByte():child.EndByte()]),
			Line: int(child.StartPoint().Row),
		})
	}
	return symbols, nil
}

// Constraint is a single linear-integer atom: var OP val, where OP is
// one of ==, !=, <, <=, >, >=.
type Constraint struct {
	Var string
	Op  string
	Val int64
}

// ExtractConstraints walks up from (line, column) to the root, visiting
// every enclosing block and if-expression, and returns the constraints
// they imply. assignments holds constraints from simple `let x = N;`
// statements textually preceding the point within each enclosing
// block; conditions holds constraints from the condition of each
// enclosing if-expression whose consequence branch contains the
// point. Both may be empty when the
// point is not guarded by anything this extractor understands; that is
// not an error.
func (p *Parser) ExtractConstraints(ctx context.Context, source []byte, line, column int) ([]Constraint, []Constraint, error) {
	tree, err := p.parse(ctx, source)
	if err != nil {
		return nil, nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	target := smallestNodeAt(root, uint32(line), uint32(column))
	if target == nil {
		return nil, nil, nil
	}

	var assignments, conditions []Constraint
	for n := target; n != nil; n = n.Parent() {
		parent := n.Parent()
		if parent == nil {
			continue
		}
		switch parent.Type() {
		case "block":
			for i := 0; i < int(parent.ChildCount()); i++ {
				sib := parent.Child(i)
				if sib == nil || sib.Type() != "let_declaration" {
					continue
				}
				if sib.EndByte() > n.StartByte() {
					continue
				}
				if c, ok := parseLetAssignment(source, sib); ok {
					assignments = append(assignments, c)
				}
			}
		case "if_expression":
			consequence := parent.ChildByFieldName("consequence")
			if consequence == nil {
				continue
			}
			if n.StartByte() < consequence.StartByte() || n.EndByte() > consequence.EndByte() {
				continue
			}
			condition := parent.ChildByFieldName("condition")
			if condition == nil {
				continue
			}
			if c, ok := parseCondition(source, condition); ok {
				conditions = append(conditions, c)
			}
		}
	}

	return assignments, conditions, nil
}

func parseLetAssignment(source []byte, decl *sitter.Node) (Constraint, bool) {
	pattern := decl.ChildByFieldName("pattern")
	value := decl.ChildByFieldName("value")
	if pattern == nil || value == nil {
		return Constraint{}, false
	}
	if pattern.Type() != "identifier" || value.Type() != "integer_literal" {
		return Constraint{}, false
	}
	val, ok := parseInt(string(source[value.StartByte():value.EndByte()]))
	if !ok {
		return Constraint{}, false
	}
	return Constraint{
		Var: string(source[pattern.StartByte():pattern.EndByte()]),
		Op:  "==",
		Val: val,
	}, true
}

// parseCondition recognizes only a direct binary expression as the
// if-condition; anything else (a call, a parenthesized expression, a
// boolean combination) is left unconstrained.
func parseCondition(source []byte, condition *sitter.Node) (Constraint, bool) {
	if condition.Type() != "binary_expression" {
		return Constraint{}, false
	}
	return parseBinaryExpression(source, condition)
}

func parseBinaryExpression(source []byte, node *sitter.Node) (Constraint, bool) {
	left := node.ChildByFieldName("left")
	right := node.ChildByFieldName("right")
	op := node.ChildByFieldName("operator")
	if left == nil || right == nil || op == nil {
		return Constraint{}, false
	}
	opStr := string(source[op.StartByte():op.EndByte()])

	if left.Type() == "identifier" && right.Type() == "integer_literal" {
		val, ok := parseInt(string(source[right.StartByte():right.EndByte()]))
		if !ok {
			return Constraint{}, false
		}
		return Constraint{Var: string(source[left.StartByte():left.EndByte()]), Op: opStr, Val: val}, true
	}
	if left.Type() == "integer_literal" && right.Type() == "identifier" {
		val, ok := parseInt(string(source[left.StartByte():left.EndByte()]))
		if !ok {
			return Constraint{}, false
		}
		return Constraint{Var: string(source[right.StartByte():right.EndByte()]), Op: flipOperator(opStr), Val: val}, true
	}
	return Constraint{}, false
}

func flipOperator(op string) string {
	switch op {
	case ">":
		return "<"
	case "<":
		return ">"
	case ">=":
		return "<="
	case "<=":
		return ">="
	default:
		return op
	}
}

func parseInt(s string) (int64, bool) {
	var neg bool
	if len(s) > 0 && s[0] == '-' {
		neg = true
		s = s[1:]
	}
	if s == "" {
		return 0, false
	}
	var v int64
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		v = v*10 + int64(r-'0')
	}
	if neg {
		v = -v
	}
	return v, true
}
