// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package backend drives a structural-analysis backend process (an
// LSP-shaped language server, typically rust-analyzer) over JSON-RPC
// 2.0 on its stdin/stdout, the way the structural slicer obtains
// definitions, references, and call hierarchies without parsing
// source itself.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// State is the lifecycle stage of a Client's backend process.
type State int32

const (
	StateUninitialized State = iota
	StateStarting
	StateReady
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

const (
	maxRetryAttempts   = 5
	retryBackoffUnit   = 500 * time.Millisecond
	diagnosticSettleMs = 2000 * time.Millisecond
)

// Config configures a Client.
type Config struct {
	// Command is the backend executable (e.g. "rust-analyzer").
	Command string
	// Args are passed to Command on spawn.
	Args []string
	// WorkspaceRoot is the absolute path given to the backend as its
	// root during initialize.
	WorkspaceRoot string
	// LanguageID is sent as the languageId for didOpen.
	LanguageID string
	// IdleTimeout, if non-zero, lets StartIdleMonitor shut the process
	// down after this long without a request. Zero disables it. This
	// is an opt-in convenience for long-running hosts; a single slice
	// request never triggers it.
	IdleTimeout time.Duration
}

// Client manages one backend process and the JSON-RPC protocol on its
// pipes. A Client is safe for concurrent use.
type Client struct {
	config Config

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	proto  *protocol
	cancel context.CancelFunc

	diagnosticsMu sync.Mutex
	diagnostics   map[string][]Diagnostic

	state    int32 // State, atomic
	lastUsed atomic.Value // time.Time

	stopOnce sync.Once
	stopped  chan struct{}
}

// New returns a Client in StateUninitialized.
func New(config Config) *Client {
	c := &Client{
		config:      config,
		diagnostics: make(map[string][]Diagnostic),
		stopped:     make(chan struct{}),
	}
	c.lastUsed.Store(time.Time{})
	atomic.StoreInt32(&c.state, int32(StateUninitialized))
	return c
}

// State returns the client's current lifecycle state.
func (c *Client) State() State {
	return State(atomic.LoadInt32(&c.state))
}

func (c *Client) touch() {
	c.lastUsed.Store(time.Now())
}

// LastUsed returns the time of the most recent request, for idle
// monitoring.
func (c *Client) LastUsed() time.Time {
	return c.lastUsed.Load().(time.Time)
}

// Start spawns the backend process and performs the initialize
// handshake. It returns ErrInitializeFailed if the handshake does not
// complete before ctx is done.
func (c *Client) Start(ctx context.Context) error {
	atomic.StoreInt32(&c.state, int32(StateStarting))

	if _, err := exec.LookPath(c.config.Command); err != nil {
		atomic.StoreInt32(&c.state, int32(StateStopped))
		recordSpawn(ctx, false)
		return fmt.Errorf("%w: %s", ErrBackendNotInstalled, c.config.Command)
	}

	procCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, c.config.Command, c.config.Args...)
	cmd.Dir = c.config.WorkspaceRoot

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("opening stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("opening stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		recordSpawn(ctx, false)
		return fmt.Errorf("starting backend: %w", err)
	}

	c.cmd = cmd
	c.stdin = stdin
	c.cancel = cancel
	c.proto = newProtocol(stdout, stdin)
	c.proto.onNotification("textDocument/publishDiagnostics", c.onDiagnostics)

	go func() {
		if err := c.proto.readLoop(procCtx); err != nil {
			slog.Warn("backend read loop ended", "error", err)
		}
	}()

	if err := c.initialize(ctx); err != nil {
		atomic.StoreInt32(&c.state, int32(StateStopped))
		cancel()
		recordSpawn(ctx, false)
		return fmt.Errorf("%w: %v", ErrInitializeFailed, err)
	}

	atomic.StoreInt32(&c.state, int32(StateReady))
	c.touch()
	recordSpawn(ctx, true)
	slog.Info("backend ready", "command", c.config.Command, "workspace", c.config.WorkspaceRoot)
	return nil
}

func (c *Client) initialize(ctx context.Context) error {
	rootURI := pathToURI(c.config.WorkspaceRoot)
	params := InitializeParams{
		RootURI:      rootURI,
		RootPath:     c.config.WorkspaceRoot,
		Capabilities: ClientCapabilities{},
		WorkspaceFolders: []WorkspaceFolder{
			{URI: rootURI, Name: filepath.Base(c.config.WorkspaceRoot)},
		},
	}
	if _, err := c.proto.sendRequest(ctx, "initialize", params); err != nil {
		return err
	}
	return c.proto.sendNotification("initialized", struct{}{})
}

// Shutdown performs the graceful shutdown/exit sequence and waits for
// the process to exit, force-killing it after 5 seconds.
func (c *Client) Shutdown(ctx context.Context) error {
	var shutdownErr error
	c.stopOnce.Do(func() {
		atomic.StoreInt32(&c.state, int32(StateStopping))
		close(c.stopped)

		if c.proto != nil {
			_, _ = c.proto.sendRequest(ctx, "shutdown", nil)
			_ = c.proto.sendNotification("exit", nil)
			c.proto.close()
		}
		if c.stdin != nil {
			_ = c.stdin.Close()
		}

		done := make(chan error, 1)
		go func() {
			if c.cmd != nil {
				done <- c.cmd.Wait()
			} else {
				done <- nil
			}
		}()

		select {
		case shutdownErr = <-done:
		case <-time.After(5 * time.Second):
			if c.cancel != nil {
				c.cancel()
			}
			shutdownErr = <-done
		}
		atomic.StoreInt32(&c.state, int32(StateStopped))
	})
	return shutdownErr
}

func (c *Client) onDiagnostics(raw json.RawMessage) {
	var params PublishDiagnosticsParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return
	}
	c.diagnosticsMu.Lock()
	c.diagnostics[params.URI] = params.Diagnostics
	c.diagnosticsMu.Unlock()
}

// requestWithRetry sends method/params and retries on transient
// "content modified"-shaped errors with linear backoff
// (500ms * attempt), up to maxRetryAttempts, matching the original
// backend client's retry loop.
func (c *Client) requestWithRetry(ctx context.Context, operation, method string, params interface{}) (json.RawMessage, error) {
	if c.State() != StateReady {
		return nil, ErrClientNotRunning
	}
	c.touch()

	ctx, span := startOperationSpan(ctx, operation, "")
	start := time.Now()
	var lastErr error

	for attempt := 1; attempt <= maxRetryAttempts; attempt++ {
		result, err := c.proto.sendRequest(ctx, method, params)
		if err == nil {
			setOperationSpanResult(span, 1, nil)
			recordOperationMetrics(ctx, operation, time.Since(start), true)
			return result, nil
		}
		lastErr = err
		if !isRetryable(err) || attempt == maxRetryAttempts {
			break
		}
		recordRetry(ctx, operation, attempt)
		select {
		case <-ctx.Done():
			lastErr = ErrRequestTimeout
			attempt = maxRetryAttempts
		case <-time.After(retryBackoffUnit * time.Duration(attempt)):
		}
	}

	setOperationSpanResult(span, 0, lastErr)
	recordOperationMetrics(ctx, operation, time.Since(start), false)
	return nil, lastErr
}

// DidOpen notifies the backend that filePath's contents are text.
func (c *Client) DidOpen(ctx context.Context, filePath, text string) error {
	if c.State() != StateReady {
		return ErrClientNotRunning
	}
	return c.proto.sendNotification("textDocument/didOpen", DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{
			URI:        pathToURI(filePath),
			LanguageID: c.config.LanguageID,
			Version:    1,
			Text:       text,
		},
	})
}

// Diagnostics returns the most recently published diagnostics for
// filePath. It does not wait for them to settle; callers that just
// called DidOpen should wait (see slicer's use of a settle delay)
// before calling Diagnostics.
func (c *Client) Diagnostics(filePath string) []Diagnostic {
	c.diagnosticsMu.Lock()
	defer c.diagnosticsMu.Unlock()
	return append([]Diagnostic(nil), c.diagnostics[pathToURI(filePath)]...)
}

// DiagnosticSettleDelay is how long callers should wait after DidOpen
// before trusting Diagnostics to reflect the backend's analysis.
const DiagnosticSettleDelay = diagnosticSettleMs

// References requests textDocument/references at (line, column).
// Accepts either a single Location or an array per the base protocol;
// parseLocations normalizes both shapes and a null result.
func (c *Client) References(ctx context.Context, filePath string, line, column int, includeDeclaration bool) ([]Location, error) {
	params := ReferenceParams{
		TextDocumentPositionParams: TextDocumentPositionParams{
			TextDocument: TextDocumentIdentifier{URI: pathToURI(filePath)},
			Position:     Position{Line: line, Character: column},
		},
		Context: ReferenceContext{IncludeDeclaration: includeDeclaration},
	}
	raw, err := c.requestWithRetry(ctx, "references", "textDocument/references", params)
	if err != nil {
		return nil, err
	}
	return parseLocations(raw)
}

// Definition requests textDocument/definition at (line, column).
func (c *Client) Definition(ctx context.Context, filePath string, line, column int) ([]Location, error) {
	params := TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: pathToURI(filePath)},
		Position:     Position{Line: line, Character: column},
	}
	raw, err := c.requestWithRetry(ctx, "definition", "textDocument/definition", params)
	if err != nil {
		return nil, err
	}
	return parseLocations(raw)
}

// PrepareCallHierarchy requests textDocument/prepareCallHierarchy at
// (line, column) and returns the first item, if any.
func (c *Client) PrepareCallHierarchy(ctx context.Context, filePath string, line, column int) (*CallHierarchyItem, error) {
	params := CallHierarchyPrepareParams{
		TextDocumentPositionParams: TextDocumentPositionParams{
			TextDocument: TextDocumentIdentifier{URI: pathToURI(filePath)},
			Position:     Position{Line: line, Character: column},
		},
	}
	raw, err := c.requestWithRetry(ctx, "prepare_call_hierarchy", "textDocument/prepareCallHierarchy", params)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var items []CallHierarchyItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

// OutgoingCalls requests callHierarchy/outgoingCalls for item.
func (c *Client) OutgoingCalls(ctx context.Context, item CallHierarchyItem) ([]CallHierarchyOutgoingCall, error) {
	raw, err := c.requestWithRetry(ctx, "outgoing_calls", "callHierarchy/outgoingCalls", CallHierarchyOutgoingCallsParams{Item: item})
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var calls []CallHierarchyOutgoingCall
	if err := json.Unmarshal(raw, &calls); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return calls, nil
}

// parseLocations handles the three shapes textDocument/definition and
// textDocument/references may return: null, a single Location or
// LocationLink, or an array of either.
func parseLocations(raw json.RawMessage) ([]Location, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var asArray []json.RawMessage
	if err := json.Unmarshal(raw, &asArray); err == nil {
		var out []Location
		for _, item := range asArray {
			loc, err := decodeOneLocation(item)
			if err != nil {
				return nil, err
			}
			out = append(out, loc)
		}
		return out, nil
	}

	loc, err := decodeOneLocation(raw)
	if err != nil {
		return nil, err
	}
	return []Location{loc}, nil
}

func decodeOneLocation(raw json.RawMessage) (Location, error) {
	var loc Location
	if err := json.Unmarshal(raw, &loc); err == nil && loc.URI != "" {
		return loc, nil
	}
	var link LocationLink
	if err := json.Unmarshal(raw, &link); err == nil && link.TargetURI != "" {
		return Location{URI: link.TargetURI, Range: link.TargetRange}, nil
	}
	return Location{}, fmt.Errorf("%w: unrecognized location shape", ErrInvalidResponse)
}

func pathToURI(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String()
}

// URIToPath converts a file:// URI back to a filesystem path.
func URIToPath(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parsing uri %q: %w", uri, err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidResponse, u.Scheme)
	}
	return filepath.FromSlash(u.Path), nil
}

// StartIdleMonitor shuts the client down after IdleTimeout of
// inactivity, mirroring the optional idle-shutdown behavior of a host
// process that embeds graphslice for many workspaces sequentially. It
// is a no-op unless Config.IdleTimeout is positive.
func (c *Client) StartIdleMonitor(ctx context.Context) {
	if c.config.IdleTimeout <= 0 {
		return
	}
	interval := c.config.IdleTimeout / 2
	if interval < time.Second {
		interval = time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-c.stopped:
				return
			case <-ticker.C:
				if c.State() == StateReady && time.Since(c.LastUsed()) > c.config.IdleTimeout {
					slog.Info("shutting down idle backend", "idle_timeout", c.config.IdleTimeout)
					_ = c.Shutdown(ctx)
					return
				}
			}
		}
	}()
}
