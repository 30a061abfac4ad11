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

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int64       `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

type rpcNotification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

type rpcMessage struct {
	ID     *int64          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RPCError       `json:"error,omitempty"`
}

// NotificationHandler is invoked for every inbound notification,
// keyed by method name. publishDiagnostics is the only method
// graphslice's backend client dispatches today.
type NotificationHandler func(params json.RawMessage)

// protocol frames and dispatches JSON-RPC 2.0 messages over a pair of
// byte streams using the LSP base protocol's Content-Length framing.
type protocol struct {
	reader *bufio.Reader
	writer io.Writer
	mu     sync.Mutex // serializes writes

	nextID int64

	pendingMu sync.Mutex
	pending   map[int64]chan rpcResponse

	handlersMu sync.Mutex
	handlers   map[string]NotificationHandler

	closed int32
}

func newProtocol(r io.Reader, w io.Writer) *protocol {
	return &protocol{
		reader:   bufio.NewReader(r),
		writer:   w,
		pending:  make(map[int64]chan rpcResponse),
		handlers: make(map[string]NotificationHandler),
	}
}

func (p *protocol) onNotification(method string, h NotificationHandler) {
	p.handlersMu.Lock()
	defer p.handlersMu.Unlock()
	p.handlers[method] = h
}

func (p *protocol) writeMessage(v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := fmt.Fprintf(p.writer, "Content-Length: %d\r\n\r\n", len(body)); err != nil {
		return err
	}
	_, err = p.writer.Write(body)
	return err
}

func (p *protocol) sendRequest(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	if atomic.LoadInt32(&p.closed) != 0 {
		return nil, ErrClientNotRunning
	}

	id := atomic.AddInt64(&p.nextID, 1)
	respCh := make(chan rpcResponse, 1)

	p.pendingMu.Lock()
	p.pending[id] = respCh
	p.pendingMu.Unlock()

	defer func() {
		p.pendingMu.Lock()
		delete(p.pending, id)
		p.pendingMu.Unlock()
	}()

	if err := p.writeMessage(rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}); err != nil {
		return nil, fmt.Errorf("sending request %s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		return nil, ErrRequestTimeout
	case resp := <-respCh:
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	}
}

func (p *protocol) sendNotification(method string, params interface{}) error {
	if atomic.LoadInt32(&p.closed) != 0 {
		return ErrClientNotRunning
	}
	return p.writeMessage(rpcNotification{JSONRPC: "2.0", Method: method, Params: params})
}

// readLoop reads framed messages until the stream ends or ctx is
// cancelled, dispatching each to a pending request or a registered
// notification handler. It returns ErrBackendCrashed on EOF.
func (p *protocol) readLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msg, err := p.readMessage()
		if err != nil {
			if err == io.EOF {
				return ErrBackendCrashed
			}
			return fmt.Errorf("reading message: %w", err)
		}
		p.handleMessage(msg)
	}
}

func (p *protocol) readMessage() (rpcMessage, error) {
	var contentLength int
	for {
		line, err := p.reader.ReadString('\n')
		if err != nil {
			return rpcMessage{}, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		if strings.HasPrefix(line, "Content-Length:") {
			n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Content-Length:")))
			if err != nil {
				return rpcMessage{}, fmt.Errorf("parsing Content-Length: %w", err)
			}
			contentLength = n
		}
	}
	if contentLength == 0 {
		return rpcMessage{}, fmt.Errorf("%w: missing Content-Length header", ErrInvalidResponse)
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(p.reader, body); err != nil {
		return rpcMessage{}, err
	}

	var msg rpcMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return rpcMessage{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return msg, nil
}

func (p *protocol) handleMessage(msg rpcMessage) {
	if msg.ID != nil {
		p.pendingMu.Lock()
		ch, ok := p.pending[*msg.ID]
		p.pendingMu.Unlock()
		if ok {
			select {
			case ch <- rpcResponse{ID: *msg.ID, Result: msg.Result, Error: msg.Error}:
			default:
			}
		}
		return
	}

	if msg.Method == "" {
		return
	}
	p.handlersMu.Lock()
	h, ok := p.handlers[msg.Method]
	p.handlersMu.Unlock()
	if ok {
		h(msg.Params)
	}
}

// close marks the protocol closed and resolves every pending request
// with an RPCError (code -32000) carrying ErrBackendCrashed's message,
// so blocked callers return promptly.
func (p *protocol) close() {
	atomic.StoreInt32(&p.closed, 1)

	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	for id, ch := range p.pending {
		select {
		case ch <- rpcResponse{ID: id, Error: &RPCError{Code: -32000, Message: ErrBackendCrashed.Error()}}:
		default:
		}
	}
}
