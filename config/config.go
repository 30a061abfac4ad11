// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads graphslice's workspace configuration from an
// optional YAML file, with code defaults for every field so the file
// is never required.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend configures the structural backend process.
type Backend struct {
	Command     string        `yaml:"command"`
	Args        []string      `yaml:"args"`
	LanguageID  string        `yaml:"language_id"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// LLM configures the fuzzy slicer's language model client.
type LLM struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// Config is graphslice's full workspace configuration.
type Config struct {
	WorkspaceRoot  string        `yaml:"workspace_root"`
	Backend        Backend       `yaml:"backend"`
	LLM            LLM           `yaml:"llm"`
	MaxTokens      int           `yaml:"max_tokens"`
	StartupTimeout time.Duration `yaml:"startup_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Default returns a Config with every field set to its code default.
func Default() Config {
	return Config{
		WorkspaceRoot: ".",
		Backend: Backend{
			Command:    "rust-analyzer",
			LanguageID: "rust",
		},
		LLM: LLM{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o",
		},
		MaxTokens:      4000,
		StartupTimeout: 30 * time.Second,
		RequestTimeout: 10 * time.Second,
	}
}

// Load reads path as YAML over Default(), so any field the file omits
// keeps its default. A missing file is not an error; Load returns
// Default() unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}
