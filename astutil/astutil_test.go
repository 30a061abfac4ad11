// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package astutil

import (
	"context"
	"testing"
)

func TestExtractConstraints(t *testing.T) {
	source := []byte(`fn main() {
    let x = 10;
    let y = 20;
    if x > 5 {
        do_thing();
    }
}
`)
	p := NewParser()

	assignments, _, err := p.ExtractConstraints(context.Background(), source, 4, 8)
	if err != nil {
		t.Fatalf("ExtractConstraints: %v", err)
	}
	wantVars := map[string]int64{"x": 10, "y": 20}
	if len(assignments) != len(wantVars) {
		t.Fatalf("got %d assignments, want %d: %+v", len(assignments), len(wantVars), assignments)
	}
	for _, c := range assignments {
		if c.Op != "==" {
			t.Errorf("assignment %q: op = %q, want ==", c.Var, c.Op)
		}
		want, ok := wantVars[c.Var]
		if !ok {
			t.Errorf("unexpected var %q", c.Var)
			continue
		}
		if c.Val != want {
			t.Errorf("var %q: val = %d, want %d", c.Var, c.Val, want)
		}
	}

	_, conditions, err := p.ExtractConstraints(context.Background(), source, 4, 8)
	if err != nil {
		t.Fatalf("ExtractConstraints: %v", err)
	}
	if len(conditions) != 1 {
		t.Fatalf("got %d conditions, want 1: %+v", len(conditions), conditions)
	}
	if conditions[0] != (Constraint{Var: "x", Op: ">", Val: 5}) {
		t.Errorf("condition = %+v, want x > 5", conditions[0])
	}
}

func TestDefinedSymbols(t *testing.T) {
	source := []byte(`fn helper() {}
struct Foo {}
`)
	p := NewParser()
	symbols, err := p.DefinedSymbols(context.Background(), source)
	if err != nil {
		t.Fatalf("DefinedSymbols: %v", err)
	}
	if len(symbols) != 2 {
		t.Fatalf("got %d symbols, want 2: %+v", len(symbols), symbols)
	}
	if symbols[0].Name != "helper" || symbols[0].Kind != "function_item" {
		t.Errorf("symbols[0] = %+v", symbols[0])
	}
	if symbols[1].Name != "Foo" || symbols[1].Kind != "struct_item" {
		t.Errorf("symbols[1] = %+v", symbols[1])
	}
}
