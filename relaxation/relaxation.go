// Copyright ©2025 nonlin authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package relaxation implements the two constraint-relaxation
// strategies the outer driver can pick at initialization:
// FeasibilityRestoration, which switches between an optimality phase
// and a feasibility-seeking phase with its own globalization strategy,
// and L1Relaxation, the single-phase exact-penalty strategy that drives
// a penalty parameter toward zero following Byrd, Nocedal and Waltz.
package relaxation

import (
	"github.com/corvid-opt/nonlin/globalization"
	"github.com/corvid-opt/nonlin/iterate"
	"github.com/corvid-opt/nonlin/linalg"
	"github.com/corvid-opt/nonlin/model"
	"github.com/corvid-opt/nonlin/subproblem"
)

// Strategy is what the outer driver talks to: compute a direction from
// the current iterate, and decide whether a trial built from that
// direction is acceptable. Phase/penalty bookkeeping is entirely
// internal to the implementation.
type Strategy interface {
	ComputeDirection(m model.Model, it *iterate.Iterate, trustRegion float64) (*iterate.Direction, subproblem.PredictedReduction, error)
	IsAcceptable(current, trial globalization.Candidate, predictedOptimality, predictedInfeasibility float64) bool
	Reset()

	// ComputeSecondOrderCorrection asks the phase-appropriate local
	// subproblem for a correction to a rejected trial; ok is false when
	// that subproblem doesn't implement subproblem.SecondOrderCorrector,
	// in which case the driver falls back to shrinking the trust region
	// as usual.
	ComputeSecondOrderCorrection(m model.Model, current, trial *iterate.Iterate, trustRegion float64) (dir *iterate.Direction, ok bool, err error)
}

// PhaseReporter is implemented by a Strategy that tracks its own
// optimality/restoration phase. The driver uses it to exclude
// restoration-phase iterations from the loose-tolerance convergence
// streak; a Strategy that doesn't implement it (L1Relaxation has no
// notion of phase) simply never has any iterations excluded.
type PhaseReporter interface {
	Phase() iterate.Phase
}

// computeSecondOrderCorrection type-asserts s against
// subproblem.SecondOrderCorrector and, if it implements the interface,
// runs the correction at (current, trial).
func computeSecondOrderCorrection(s subproblem.Subproblem, m model.Model, current, trial *iterate.Iterate, trustRegion float64) (*iterate.Direction, bool, error) {
	corrector, ok := s.(subproblem.SecondOrderCorrector)
	if !ok {
		return nil, false, nil
	}
	dir, err := corrector.ComputeSecondOrderCorrection(m, current, trial, trustRegion)
	if err != nil {
		return nil, false, err
	}
	return dir, true, nil
}

// scaledModel wraps a Model, replacing its objective and gradient with
// scale*f(x) and scale*grad f(x) while delegating constraints, bounds
// and the Jacobian unchanged. At scale=0 this is the feasibility
// subproblem's sigma=0 reformulation (no real objective curvature or
// slope enters the local model, so the subproblem minimizes the
// trust-region/bound-constrained step toward the linearized
// constraints); at scale=rho it is the ℓ1-penalty subproblem's
// rho*f(x) term. Constraint-violation absorption uses no elastic
// variables: the reduction to one LSEI call (see subproblem/qp.go) has
// no slack columns, so a restoration or penalty step that cannot be
// made feasible within the trust region is reported INFEASIBLE rather
// than partially absorbed, same as any other subproblem call.
type scaledModel struct {
	model.Model
	scale float64
}

func (s scaledModel) Objective(x []float64) float64 {
	return s.scale * s.Model.Objective(x)
}

func (s scaledModel) ObjectiveGradient(x, g []float64) {
	s.Model.ObjectiveGradient(x, g)
	for i := range g {
		g[i] *= s.scale
	}
}

// LagrangianHessian keeps the scale consistent with the sigma passed
// alongside it: since sigma is always set to s.scale by the callers in
// this package before invoking a Subproblem, the embedded model's own
// sigma-weighting of the objective Hessian term already reflects the
// scale and needs no further adjustment here.
func (s scaledModel) LagrangianHessian(x []float64, sigma float64, lambda []float64) *linalg.CSC {
	return s.Model.LagrangianHessian(x, sigma, lambda)
}
