// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llmclient

import (
	"context"
	"os"
	"testing"
)

func TestCompleteTestMode(t *testing.T) {
	t.Setenv("GRAPHSLICE_TEST_MODE", "1")
	t.Setenv("LLM_API_KEY", "")

	c := New(Settings{})
	got, err := c.Complete(context.Background(), "analyze this code")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != testModeResponse {
		t.Errorf("got %q, want canned response", got)
	}
}

func TestCompleteNoAPIKey(t *testing.T) {
	os.Unsetenv("GRAPHSLICE_TEST_MODE")
	t.Setenv("LLM_API_KEY", "")

	c := New(Settings{})
	_, err := c.Complete(context.Background(), "analyze this code")
	if err != ErrNoAPIKey {
		t.Errorf("got %v, want ErrNoAPIKey", err)
	}
}

func TestCompleteLiteralDummyAPIKey(t *testing.T) {
	os.Unsetenv("GRAPHSLICE_TEST_MODE")
	t.Setenv("LLM_API_KEY", "dummy")

	c := New(Settings{})
	_, err := c.Complete(context.Background(), "analyze this code")
	if err != ErrNoAPIKey {
		t.Errorf("got %v, want ErrNoAPIKey for literal dummy key", err)
	}
}

func TestNewSettingsOverrideEnv(t *testing.T) {
	t.Setenv("LLM_API_KEY", "env-key")
	t.Setenv("LLM_MODEL", "env-model")

	c := New(Settings{APIKey: "config-key", Model: "config-model"})
	if c.apiKey != "config-key" {
		t.Errorf("apiKey = %q, want config-key to win over env", c.apiKey)
	}
	if c.model != "config-model" {
		t.Errorf("model = %q, want config-model to win over env", c.model)
	}
}
