// Copyright ©2025 nonlin authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package globalization decides whether a trial iterate produced by a
// subproblem direction is an acceptable replacement for the current
// iterate. Two strategies are provided: a single-scalar ℓ1 merit
// function and a two-criteria (infeasibility, optimality) filter.
package globalization

import "math"

// Candidate is the (infeasibility, objective) pair a strategy compares
// between the current and trial iterates.
type Candidate struct {
	Infeasibility float64
	Objective     float64
}

// Strategy decides step acceptance from the current and trial
// candidates plus the direction's predicted reductions in optimality
// and infeasibility (both already evaluated at the trial step length).
type Strategy interface {
	// Reset clears any strategy-local history (the filter's envelope;
	// the merit function keeps none, so its Reset does nothing). Called
	// whenever a constraint-relaxation strategy switches phase.
	Reset()

	// IsAcceptable reports whether trial replaces current. On
	// acceptance, implementations update their own bookkeeping (filter
	// insertion; merit function has none).
	IsAcceptable(current, trial Candidate, predictedOptimality, predictedInfeasibility float64) bool
}

// MeritFunction implements the ℓ1 exact-penalty acceptance test:
// accept a trial with step length alpha if
// phi(x;rho) - phi(x+alpha*d;rho) >= eta*alpha*(residual(x) - m(d)).
// Rho is owned by the constraint-relaxation strategy driving the
// penalty update; the caller sets it before each IsAcceptable call.
type MeritFunction struct {
	Rho float64
	Eta float64
}

// NewMeritFunction returns a merit function at rho = 1 with the
// acceptance tolerance eta = 1e-8.
func NewMeritFunction() *MeritFunction {
	return &MeritFunction{Rho: 1, Eta: 1e-8}
}

func (mf *MeritFunction) Reset() {}

func (mf *MeritFunction) merit(c Candidate) float64 {
	return mf.Rho*c.Objective + c.Infeasibility
}

// IsAcceptable treats predictedOptimality and predictedInfeasibility as
// already alpha-scaled (the caller evaluates the subproblem's predicted
// reduction closures at the trial step length before calling), so the
// right-hand side of the acceptance test needs no separate alpha
// factor.
func (mf *MeritFunction) IsAcceptable(current, trial Candidate, predictedOptimality, predictedInfeasibility float64) bool {
	actual := mf.merit(current) - mf.merit(trial)
	predicted := mf.Rho*predictedOptimality + predictedInfeasibility
	return actual >= mf.Eta*predicted
}

// Filter implements the non-dominated-pairs acceptance test: a trial is
// acceptable when it clears the envelope of every entry and, on
// f-type iterations, also delivers a sufficient objective decrease.
type Filter struct {
	entries []Candidate

	Beta  float64
	Gamma float64
	Kappa float64
	Eta   float64
	SH    float64
}

// NewFilter returns a filter with the standard filter-method constants:
// beta ~ 0.999, gamma ~ 1e-5. Kappa, eta and s_h govern the f-type/
// h-type switching condition and follow the same orders of magnitude
// used by the filter-SQP literature this section is modeled on.
func NewFilter() *Filter {
	return &Filter{
		Beta:  0.999,
		Gamma: 1e-5,
		Kappa: 1e-4,
		Eta:   1e-4,
		SH:    1.1,
	}
}

func (f *Filter) Reset() {
	f.entries = f.entries[:0]
}

func (f *Filter) acceptableByEnvelope(trial Candidate) bool {
	for _, e := range f.entries {
		if trial.Infeasibility <= f.Beta*e.Infeasibility || trial.Objective <= e.Objective-f.Gamma*e.Infeasibility {
			continue
		}
		return false
	}
	return true
}

func (f *Filter) IsAcceptable(current, trial Candidate, predictedOptimality, _ float64) bool {
	if !f.acceptableByEnvelope(trial) {
		return false
	}
	isFType := predictedOptimality >= f.Kappa*math.Pow(current.Infeasibility, f.SH)
	if isFType && current.Objective-trial.Objective < f.Eta*predictedOptimality {
		return false
	}
	f.insert(trial)
	return true
}

// insert adds trial to the envelope and purges every entry trial
// dominates (weakly better on both axes).
func (f *Filter) insert(trial Candidate) {
	kept := f.entries[:0]
	for _, e := range f.entries {
		if trial.Infeasibility <= e.Infeasibility && trial.Objective <= e.Objective {
			continue
		}
		kept = append(kept, e)
	}
	f.entries = append(kept, trial)
}
