// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llmclient wraps an OpenAI-compatible chat completion API for
// the fuzzy slicer's dependency analysis prompts. It honors
// GRAPHSLICE_TEST_MODE for deterministic tests and CI runs that must
// not reach the network.
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

// ErrNoAPIKey is returned by Complete when no API key is configured
// and the client is not running in test mode.
var ErrNoAPIKey = errors.New("llmclient: LLM_API_KEY not set, cannot use fuzzy slicer")

// testModeResponse is the fixed completion returned when
// GRAPHSLICE_TEST_MODE is set, matching the dependency-analysis JSON
// shape the fuzzy slicer expects.
const testModeResponse = "```json\n{\n  \"calls\": [\"helper\"],\n  \"types\": []\n}\n```"

const systemPrompt = "You are a Rust expert helping to analyze code dependencies. " +
	"Output only the requested JSON or code, no markdown fencing unless requested."

const defaultModel = "gpt-4o"
const defaultBaseURL = "https://api.openai.com/v1"
const temperature = 0.1

// dummyAPIKey is the sentinel value meaning "no API key configured".
// It is also the default when LLM_API_KEY is unset, so a Client can
// always be constructed and only fails at Complete time.
const dummyAPIKey = "dummy"

// Client is a thin wrapper around go-openai configured from
// environment variables, matching the teacher's OpenAIClient
// construction style.
type Client struct {
	client   *openai.Client
	model    string
	apiKey   string
	testMode bool
}

// Settings overrides the environment-variable defaults New would
// otherwise use, letting a config file pin the LLM endpoint and model
// a workspace uses. A zero-value field keeps the environment/default
// fallback for that field.
type Settings struct {
	APIKey  string
	BaseURL string
	Model   string
}

// New builds a Client from opts layered over LLM_API_KEY, LLM_BASE_URL,
// LLM_MODEL and GRAPHSLICE_TEST_MODE: any non-empty opts field wins
// over its environment variable. It never errors: a missing API key is
// only an error at Complete time, unless test mode is active.
func New(opts Settings) *Client {
	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("LLM_API_KEY")
	}
	if apiKey == "" {
		apiKey = dummyAPIKey
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv("LLM_BASE_URL")
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	model := opts.Model
	if model == "" {
		model = os.Getenv("LLM_MODEL")
	}
	if model == "" {
		model = defaultModel
		slog.Debug("LLM_MODEL not set, defaulting", "model", model)
	}
	_, testMode := os.LookupEnv("GRAPHSLICE_TEST_MODE")

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL

	return &Client{
		client:   openai.NewClientWithConfig(config),
		model:    model,
		apiKey:   apiKey,
		testMode: testMode,
	}
}

// Complete sends prompt as the sole user message with a fixed system
// instruction directing JSON-only output, at a fixed low temperature
// for reproducible dependency extraction. In test mode it returns a
// canned response without making a network call.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if c.testMode {
		slog.Debug("llmclient: test mode active, returning canned response")
		return testModeResponse, nil
	}
	if c.apiKey == dummyAPIKey {
		return "", ErrNoAPIKey
	}

	temp := float32(temperature)
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: temp,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("llmclient: chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llmclient: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
