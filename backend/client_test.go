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
	"encoding/json"
	"testing"
)

func TestParseLocationsNull(t *testing.T) {
	locs, err := parseLocations(json.RawMessage("null"))
	if err != nil {
		t.Fatalf("parseLocations(null): %v", err)
	}
	if locs != nil {
		t.Errorf("got %v, want nil", locs)
	}
}

func TestParseLocationsSingle(t *testing.T) {
	raw := json.RawMessage(`{"uri":"file:///a.rs","range":{"start":{"line":1,"character":2},"end":{"line":1,"character":8}}}`)
	locs, err := parseLocations(raw)
	if err != nil {
		t.Fatalf("parseLocations: %v", err)
	}
	if len(locs) != 1 || locs[0].URI != "file:///a.rs" {
		t.Errorf("got %+v", locs)
	}
}

func TestParseLocationsArray(t *testing.T) {
	raw := json.RawMessage(`[
		{"uri":"file:///a.rs","range":{"start":{"line":1,"character":0},"end":{"line":1,"character":1}}},
		{"uri":"file:///b.rs","range":{"start":{"line":2,"character":0},"end":{"line":2,"character":1}}}
	]`)
	locs, err := parseLocations(raw)
	if err != nil {
		t.Fatalf("parseLocations: %v", err)
	}
	if len(locs) != 2 {
		t.Fatalf("got %d locations, want 2", len(locs))
	}
}

func TestParseLocationsLocationLink(t *testing.T) {
	raw := json.RawMessage(`[{"targetUri":"file:///a.rs","targetRange":{"start":{"line":0,"character":0},"end":{"line":0,"character":1}}}]`)
	locs, err := parseLocations(raw)
	if err != nil {
		t.Fatalf("parseLocations: %v", err)
	}
	if len(locs) != 1 || locs[0].URI != "file:///a.rs" {
		t.Errorf("got %+v", locs)
	}
}

func TestPathURIRoundTrip(t *testing.T) {
	uri := pathToURI("/workspace/src/main.rs")
	path, err := URIToPath(uri)
	if err != nil {
		t.Fatalf("URIToPath: %v", err)
	}
	if path != "/workspace/src/main.rs" {
		t.Errorf("got %q", path)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"crashed", ErrBackendCrashed, false},
		{"not running", ErrClientNotRunning, false},
		{"content modified", &RPCError{Code: contentModified, Message: "content modified"}, true},
		{"method not found", &RPCError{Code: -32601, Message: "method not found"}, false},
		{"other", ErrInvalidResponse, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryable(tt.err); got != tt.want {
				t.Errorf("isRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
