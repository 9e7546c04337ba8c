// Copyright ©2025 nonlin authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package subproblem

import (
	"math"
	"testing"

	"github.com/corvid-opt/nonlin/hessian"
	"github.com/corvid-opt/nonlin/iterate"
	"github.com/corvid-opt/nonlin/linalg"
	"github.com/corvid-opt/nonlin/model"
)

// boundedScalarModel is minimize 1/2*x^2 subject to x >= 1, unbounded
// variable range. Its unique KKT point is x = 1, lambda = 1.
type boundedScalarModel struct{}

func (boundedScalarModel) N() int { return 1 }
func (boundedScalarModel) M() int { return 1 }

func (boundedScalarModel) ConstraintStatus(int) model.ConstraintStatus {
	return model.BoundedLower
}
func (boundedScalarModel) VariableBounds() []model.Bound {
	inf := math.Inf(1)
	return []model.Bound{{Lower: -inf, Upper: inf}}
}
func (boundedScalarModel) ConstraintBounds() []model.Bound {
	return []model.Bound{{Lower: 1, Upper: math.Inf(1)}}
}
func (boundedScalarModel) ObjectiveSense() float64 { return 1 }

func (boundedScalarModel) Objective(x []float64) float64 { return 0.5 * x[0] * x[0] }
func (boundedScalarModel) ObjectiveGradient(x []float64, g []float64) {
	g[0] = x[0]
}
func (boundedScalarModel) Constraints(x []float64, c []float64) {
	c[0] = x[0]
}
func (boundedScalarModel) ConstraintGradient(_ int, _ []float64, g []float64) {
	g[0] = 1
}
func (boundedScalarModel) Jacobian(_ []float64) *linalg.COO {
	jac := linalg.NewCOO(1, 1, 1)
	jac.Insert(0, 0, 1)
	return jac
}
func (boundedScalarModel) LagrangianHessian(_ []float64, sigma float64, _ []float64) *linalg.CSC {
	h := linalg.NewCSC(1, 1, false)
	h.Insert(0, 0, sigma)
	h.FinalizeColumn(0)
	return h
}

func TestInteriorPointTakesStrictlyFeasibleStep(t *testing.T) {
	m := boundedScalarModel{}
	x0 := []float64{3}
	mult := iterate.NewMultipliers(m.N(), m.M())
	it := iterate.New(x0, mult, m)

	ip := &InteriorPoint{Hessian: hessian.Exact{}, Solver: hessian.DenseLinearSolver{}}
	dir, predicted, err := ip.Solve(m, it, 10)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if dir.Status != iterate.Optimal {
		t.Fatalf("Status = %v, want Optimal", dir.Status)
	}

	trial := x0[0] + dir.Primals[0]
	if !almostEqual([]float64{1.01}, []float64{trial}, 1e-8) {
		t.Fatalf("trial x = %v, want 1.01", trial)
	}
	if trial <= 1 {
		t.Fatalf("trial x = %v, want strictly > 1 (fraction-to-boundary must stay feasible)", trial)
	}
	if dir.Multipliers.Lambda[0] <= 0 {
		t.Fatalf("Lambda[0] = %v, want > 0", dir.Multipliers.Lambda[0])
	}
	if predicted(1.0) <= 0 {
		t.Fatalf("predicted(1) = %v, want positive (the step reduces the objective on its way toward the constrained minimizer)", predicted(1.0))
	}
	if ip.Mu <= 0 || ip.Mu >= 0.1 {
		t.Fatalf("Mu = %v, want shrunk below its initial 0.1 but still positive", ip.Mu)
	}
}

func TestInteriorPointDefaultsSelfInitialize(t *testing.T) {
	ip := &InteriorPoint{Hessian: hessian.Exact{}, Solver: hessian.DenseLinearSolver{}}
	ip.defaults()
	if ip.Mu != 0.1 || ip.SigmaMu != 0.2 || ip.Tau != 0.995 || ip.MuFloor != 1e-10 {
		t.Fatalf("defaults() = %+v, want the documented fallbacks", ip)
	}
}
