// Copyright ©2025 nonlin authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package globalization

import "testing"

func TestMeritFunctionAcceptsSufficientDecrease(t *testing.T) {
	mf := NewMeritFunction()
	mf.Rho = 1
	current := Candidate{Infeasibility: 1, Objective: 10}
	trial := Candidate{Infeasibility: 0.5, Objective: 9.6}
	// merit(current) = 11, merit(trial) = 10.1, actual decrease 0.9.
	// predicted = 1*0.8 + 0.2 = 1.0, eta*predicted is tiny.
	if !mf.IsAcceptable(current, trial, 0.8, 0.2) {
		t.Fatalf("expected acceptance")
	}
}

func TestMeritFunctionRejectsInsufficientDecrease(t *testing.T) {
	mf := NewMeritFunction()
	mf.Rho = 1
	mf.Eta = 0.5
	current := Candidate{Infeasibility: 1, Objective: 10}
	trial := Candidate{Infeasibility: 1, Objective: 9.99}
	// actual decrease 0.01, predicted 1.0, eta*predicted = 0.5 > 0.01.
	if mf.IsAcceptable(current, trial, 0.8, 0.2) {
		t.Fatalf("expected rejection")
	}
}

func TestFilterAcceptsFirstEntry(t *testing.T) {
	f := NewFilter()
	current := Candidate{Infeasibility: 1, Objective: 10}
	trial := Candidate{Infeasibility: 0.5, Objective: 5}
	if !f.IsAcceptable(current, trial, 5, 0) {
		t.Fatalf("expected first trial to be accepted (empty envelope)")
	}
	if len(f.entries) != 1 {
		t.Fatalf("expected 1 entry after acceptance, got %d", len(f.entries))
	}
}

func TestFilterRejectsDominatedTrial(t *testing.T) {
	f := NewFilter()
	current := Candidate{Infeasibility: 1, Objective: 10}
	seed := Candidate{Infeasibility: 0.1, Objective: 1}
	if !f.IsAcceptable(current, seed, 9, 0.9) {
		t.Fatalf("expected seed entry to be accepted")
	}
	// worse on both axes than seed and outside its beta/gamma envelope.
	dominated := Candidate{Infeasibility: 0.2, Objective: 2}
	if f.IsAcceptable(current, dominated, 8, 0.8) {
		t.Fatalf("expected dominated trial to be rejected")
	}
}

func TestFilterPurgesDominatedEntryOnInsert(t *testing.T) {
	f := NewFilter()
	current := Candidate{Infeasibility: 1, Objective: 10}
	worse := Candidate{Infeasibility: 0.5, Objective: 5}
	if !f.IsAcceptable(current, worse, 5, 5) {
		t.Fatalf("expected worse candidate to be accepted (empty envelope)")
	}
	better := Candidate{Infeasibility: 0.1, Objective: 1}
	if !f.IsAcceptable(current, better, 9, 9) {
		t.Fatalf("expected strictly better candidate to be accepted")
	}
	if len(f.entries) != 1 {
		t.Fatalf("expected the dominated entry to be purged, got %d entries", len(f.entries))
	}
}

func TestFilterHTypeIterationSkipsObjectiveCheck(t *testing.T) {
	f := NewFilter()
	current := Candidate{Infeasibility: 1, Objective: 10}
	// predictedOptimality below the kappa*h^s_h threshold makes this
	// h-type: acceptance relies on the envelope test alone, even though
	// the objective barely moves.
	trial := Candidate{Infeasibility: 0.5, Objective: 10}
	if !f.IsAcceptable(current, trial, 1e-10, 0) {
		t.Fatalf("expected h-type trial to be accepted on envelope alone")
	}
}
