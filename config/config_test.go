// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Errorf("got %+v, want Default()", cfg)
	}
}

func TestLoadOverridesOnlySpecifiedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graphslice.yaml")
	yaml := "max_tokens: 8000\nbackend:\n  command: custom-analyzer\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxTokens != 8000 {
		t.Errorf("MaxTokens = %d, want 8000", cfg.MaxTokens)
	}
	if cfg.Backend.Command != "custom-analyzer" {
		t.Errorf("Backend.Command = %q, want custom-analyzer", cfg.Backend.Command)
	}
	if cfg.Backend.LanguageID != "rust" {
		t.Errorf("Backend.LanguageID should keep default, got %q", cfg.Backend.LanguageID)
	}
	if cfg.StartupTimeout != 30*time.Second {
		t.Errorf("StartupTimeout should keep default, got %v", cfg.StartupTimeout)
	}
}
