// Copyright ©2025 nonlin authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package subproblem builds and solves the local model (QP, LP or
// primal-dual interior-point) at an iterate, returning a Direction the
// constraint-relaxation and globalization layers consume. Its
// active-set linear-algebra core is an adaptation of the
// Householder/NNLS least-squares machinery in
// subproblem/internal/lsei; see that package's doc comment for the
// numerical references.
package subproblem

import (
	"github.com/corvid-opt/nonlin/iterate"
	"github.com/corvid-opt/nonlin/model"
)

// PredictedReduction is a closure of step length alpha returning the
// local model's predicted decrease in the objective term alone (a
// constraint-relaxation strategy combines it with its own predicted
// infeasibility reduction before passing both to a globalization
// strategy).
type PredictedReduction func(alpha float64) float64

// Subproblem builds a local model at (x, multipliers) and solves it,
// returning a Direction plus a predicted-reduction closure.
type Subproblem interface {
	Solve(m model.Model, it *iterate.Iterate, trustRegion float64) (*iterate.Direction, PredictedReduction, error)
}

// SecondOrderCorrector is implemented by a Subproblem that can compute a
// corrective step after a trial point produced by Solve is rejected
// because the nonlinear constraint violation grew past what the
// linearization at it predicted (the Maratos effect, most visible right
// at a nonlinear constraint boundary). The correction resolves the same
// local model at it, keeping its Jacobian and Hessian, but with the
// right-hand side of its constraint rows measured at trial's actual
// nonlinear constraint values instead of the linear prediction at it.
type SecondOrderCorrector interface {
	ComputeSecondOrderCorrection(m model.Model, it, trial *iterate.Iterate, trustRegion float64) (*iterate.Direction, error)
}

// stepBounds returns, for every variable, the box [max(xL-x, -trustRegion),
// min(xU-x, +trustRegion)] the step d must respect.
func stepBounds(xl, xu, x []float64, trustRegion float64) (lo, hi []float64) {
	n := len(x)
	lo = make([]float64, n)
	hi = make([]float64, n)
	for i := 0; i < n; i++ {
		lo[i] = max(xl[i]-x[i], -trustRegion)
		hi[i] = min(xu[i]-x[i], trustRegion)
	}
	return
}

// variableBoundSlices extracts parallel lower/upper slices from a
// model's VariableBounds.
func variableBoundSlices(m model.Model) (lo, hi []float64) {
	bounds := m.VariableBounds()
	lo = make([]float64, len(bounds))
	hi = make([]float64, len(bounds))
	for i, b := range bounds {
		lo[i] = b.Lower
		hi[i] = b.Upper
	}
	return
}

func constraintBoundSlices(m model.Model) (lo, hi []float64) {
	bounds := m.ConstraintBounds()
	lo = make([]float64, len(bounds))
	hi = make([]float64, len(bounds))
	for i, b := range bounds {
		lo[i] = b.Lower
		hi[i] = b.Upper
	}
	return
}
