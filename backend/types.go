// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package backend

import "encoding/json"

// Position is a zero-indexed line/character pair, matching the LSP
// base protocol's textDocument position encoding.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a half-open [Start, End) span of Positions.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Location is a file URI plus the Range within it.
type Location struct {
	URI   string `json:"uri"`
	Range Range  `json:"range"`
}

// LocationLink is the richer alternative to Location some servers
// return from textDocument/definition. graphslice only needs the
// target location out of it.
type LocationLink struct {
	TargetURI   string `json:"targetUri"`
	TargetRange Range  `json:"targetRange"`
}

// TextDocumentIdentifier names a document by URI.
type TextDocumentIdentifier struct {
	URI string `json:"uri"`
}

// TextDocumentPositionParams is the common params shape for
// position-based requests (definition, hover, references).
type TextDocumentPositionParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Position     Position               `json:"position"`
}

// ReferenceContext controls whether references includes the
// declaration site itself.
type ReferenceContext struct {
	IncludeDeclaration bool `json:"includeDeclaration"`
}

// ReferenceParams is the params shape for textDocument/references.
type ReferenceParams struct {
	TextDocumentPositionParams
	Context ReferenceContext `json:"context"`
}

// DiagnosticSeverity mirrors the LSP base protocol's severity enum.
type DiagnosticSeverity int

const (
	SeverityError       DiagnosticSeverity = 1
	SeverityWarning     DiagnosticSeverity = 2
	SeverityInformation DiagnosticSeverity = 3
	SeverityHint        DiagnosticSeverity = 4
)

// Diagnostic is a single diagnostic reported via publishDiagnostics.
type Diagnostic struct {
	Range    Range              `json:"range"`
	Severity DiagnosticSeverity `json:"severity"`
	Message  string             `json:"message"`
}

// PublishDiagnosticsParams is the params shape for the
// textDocument/publishDiagnostics notification.
type PublishDiagnosticsParams struct {
	URI         string       `json:"uri"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// CallHierarchyItem identifies a symbol for call-hierarchy requests.
type CallHierarchyItem struct {
	Name           string `json:"name"`
	Kind           int    `json:"kind"`
	URI            string `json:"uri"`
	Range          Range  `json:"range"`
	SelectionRange Range  `json:"selectionRange"`
}

// CallHierarchyPrepareParams is the params shape for
// textDocument/prepareCallHierarchy.
type CallHierarchyPrepareParams struct {
	TextDocumentPositionParams
}

// CallHierarchyOutgoingCall is one outgoing call edge: the callee item
// plus the ranges within the caller where the call occurs.
type CallHierarchyOutgoingCall struct {
	To         CallHierarchyItem `json:"to"`
	FromRanges []Range           `json:"fromRanges"`
}

// CallHierarchyOutgoingCallsParams is the params shape for
// callHierarchy/outgoingCalls.
type CallHierarchyOutgoingCallsParams struct {
	Item CallHierarchyItem `json:"item"`
}

// DidOpenTextDocumentParams opens a document in the backend so it can
// be analyzed.
type DidOpenTextDocumentParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

// TextDocumentItem is the full text document payload for didOpen.
type TextDocumentItem struct {
	URI        string `json:"uri"`
	LanguageID string `json:"languageId"`
	Version    int    `json:"version"`
	Text       string `json:"text"`
}

// ClientCapabilities is sent empty; graphslice does not negotiate
// optional backend capabilities beyond the base protocol.
type ClientCapabilities struct{}

// InitializeParams is the params shape for the initialize handshake.
type InitializeParams struct {
	ProcessID        *int                   `json:"processId"`
	RootURI          string                 `json:"rootUri"`
	RootPath         string                 `json:"rootPath"`
	Capabilities     ClientCapabilities     `json:"capabilities"`
	WorkspaceFolders []WorkspaceFolder      `json:"workspaceFolders,omitempty"`
	InitOptions      map[string]interface{} `json:"initializationOptions,omitempty"`
}

// WorkspaceFolder names one workspace root.
type WorkspaceFolder struct {
	URI  string `json:"uri"`
	Name string `json:"name"`
}

// ServerCapabilities is decoded loosely; graphslice does not branch on
// specific capability flags today.
type ServerCapabilities map[string]json.RawMessage

// InitializeResult is the response to initialize.
type InitializeResult struct {
	Capabilities ServerCapabilities `json:"capabilities"`
}
