// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/kernex-sbs/graphslice/backend"
	"github.com/kernex-sbs/graphslice/config"
	"github.com/kernex-sbs/graphslice/fuzzyslicer"
	"github.com/kernex-sbs/graphslice/llmclient"
	"github.com/kernex-sbs/graphslice/render"
	"github.com/kernex-sbs/graphslice/slicer"
)

var cfg config.Config
var configPath string

var rootCmd = &cobra.Command{
	Use:   "graphslice",
	Short: "Slice a codebase down to the context relevant to one location",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a graphslice.yaml config file")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	}

	sliceCmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "token budget for the rendered slice (0 uses the config default)")
	renderCmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "token budget for the rendered slice (0 uses the config default)")
	renderCmd.Flags().BoolVar(&watch, "watch", false, "re-render whenever the target file changes")

	rootCmd.AddCommand(sliceCmd)
	rootCmd.AddCommand(renderCmd)
}

var maxTokens int
var watch bool

var sliceCmd = &cobra.Command{
	Use:   "slice <file>:<line>:<column>",
	Short: "Print the raw dependency graph for a source location",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := parseTarget(args[0])
		if err != nil {
			return err
		}
		s, cleanup, err := buildSlicer(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		g, err := s.BuildGraph(cmd.Context(), target.file, target.line, target.column)
		if err != nil {
			return fmt.Errorf("slicing: %w", err)
		}

		fmt.Printf("nodes: %d\n", g.Len())
		for _, e := range g.Edges() {
			fmt.Printf("%s:%d -[%s]-> %s:%d\n", e.From.File, e.From.Line, e.Type, e.To.File, e.To.Line)
		}
		return nil
	},
}

var renderCmd = &cobra.Command{
	Use:   "render <file>:<line>:<column>",
	Short: "Slice and compress a source location into a token-budgeted context block",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := parseTarget(args[0])
		if err != nil {
			return err
		}
		s, cleanup, err := buildSlicer(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		renderOnce := func() error {
			g, err := s.BuildGraph(cmd.Context(), target.file, target.line, target.column)
			if err != nil {
				return fmt.Errorf("slicing: %w", err)
			}
			root, ok := g.FirstNode()
			if !ok {
				fmt.Println("// empty slice")
				return nil
			}
			budget := cfg.MaxTokens
			if maxTokens > 0 {
				budget = maxTokens
			}
			hc := render.Build(g, root, budget)
			fmt.Print(hc.Render())
			return nil
		}

		if err := renderOnce(); err != nil {
			return err
		}
		if !watch {
			return nil
		}
		return watchAndRerender(cmd.Context(), target.file, renderOnce)
	},
}

type location struct {
	file   string
	line   int
	column int
}

func parseTarget(spec string) (location, error) {
	parts := strings.Split(spec, ":")
	if len(parts) != 3 {
		return location{}, fmt.Errorf("target must be file:line:column, got %q", spec)
	}
	line, err := strconv.Atoi(parts[1])
	if err != nil {
		return location{}, fmt.Errorf("invalid line %q: %w", parts[1], err)
	}
	column, err := strconv.Atoi(parts[2])
	if err != nil {
		return location{}, fmt.Errorf("invalid column %q: %w", parts[2], err)
	}
	return location{file: parts[0], line: line, column: column}, nil
}

func buildSlicer(ctx context.Context) (*slicer.Slicer, func(), error) {
	workspaceRoot := cfg.WorkspaceRoot
	if workspaceRoot == "" {
		workspaceRoot = "."
	}

	be := backend.New(backend.Config{
		Command:       cfg.Backend.Command,
		Args:          cfg.Backend.Args,
		WorkspaceRoot: workspaceRoot,
		LanguageID:    cfg.Backend.LanguageID,
		IdleTimeout:   cfg.Backend.IdleTimeout,
	})
	if err := be.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("starting backend: %w", err)
	}
	be.StartIdleMonitor(ctx)

	llm := llmclient.New(llmclient.Settings{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
	})
	fuzzy := fuzzyslicer.New(llm)

	s := slicer.New(workspaceRoot, cfg.Backend.LanguageID, be, fuzzy)
	cleanup := func() {
		_ = be.Shutdown(context.Background())
	}
	return s, cleanup, nil
}

// watchAndRerender re-invokes render whenever targetFile changes on
// disk. This is an opt-in convenience, not incremental graph
// maintenance: every change triggers a full re-slice from scratch.
func watchAndRerender(ctx context.Context, targetFile string, render func() error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting file watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(targetFile)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(targetFile) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			slog.Info("target file changed, re-rendering", "file", targetFile)
			if err := render(); err != nil {
				slog.Error("re-render failed", "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("file watcher error", "error", err)
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
