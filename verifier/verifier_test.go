// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package verifier

import "testing"

func TestSimpleUnreachability(t *testing.T) {
	constraints := []Constraint{{Var: "x", Op: ">", Val: 10}}
	target := Constraint{Var: "x", Op: "<", Val: 5}

	reachable, err := CheckReachability(constraints, target)
	if err != nil {
		t.Fatalf("CheckReachability: %v", err)
	}
	if reachable {
		t.Errorf("x > 10 and target x < 5 should be unreachable")
	}
}

func TestReachable(t *testing.T) {
	constraints := []Constraint{{Var: "x", Op: ">", Val: 10}}
	target := Constraint{Var: "x", Op: ">", Val: 5}

	reachable, err := CheckReachability(constraints, target)
	if err != nil {
		t.Fatalf("CheckReachability: %v", err)
	}
	if !reachable {
		t.Errorf("x > 10 and target x > 5 should be reachable")
	}
}

func TestEquality(t *testing.T) {
	constraints := []Constraint{{Var: "x", Op: "==", Val: 10}}
	target := Constraint{Var: "x", Op: "!=", Val: 10}

	reachable, err := CheckReachability(constraints, target)
	if err != nil {
		t.Fatalf("CheckReachability: %v", err)
	}
	if reachable {
		t.Errorf("x == 10 and target x != 10 should be unreachable")
	}
}

func TestCheckConsistencySkipsUnsupportedOp(t *testing.T) {
	constraints := []Constraint{
		{Var: "x", Op: ">", Val: 10},
		{Var: "y", Op: "weird", Val: 1},
	}
	if !CheckConsistency(constraints) {
		t.Errorf("CheckConsistency should skip unsupported operators rather than fail")
	}
}

func TestCheckReachabilityUnsupportedOp(t *testing.T) {
	constraints := []Constraint{{Var: "x", Op: ">", Val: 10}}
	target := Constraint{Var: "x", Op: "weird", Val: 1}

	if _, err := CheckReachability(constraints, target); err == nil {
		t.Errorf("expected error for unsupported target operator")
	}
}
