// Copyright ©2025 nonlin authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package progress

import (
	"math"
	"testing"

	"github.com/corvid-opt/nonlin/linalg"
	"github.com/corvid-opt/nonlin/model"
)

type twoBoundModel struct{}

func (twoBoundModel) N() int { return 2 }
func (twoBoundModel) M() int { return 2 }
func (twoBoundModel) ConstraintStatus(int) model.ConstraintStatus {
	return model.BoundedBothSides
}
func (twoBoundModel) VariableBounds() []model.Bound {
	return []model.Bound{{Lower: 0, Upper: 1}, {Lower: 0, Upper: 1}}
}
func (twoBoundModel) ConstraintBounds() []model.Bound {
	return []model.Bound{{Lower: -1, Upper: 1}, {Lower: -1, Upper: 1}}
}
func (twoBoundModel) ObjectiveSense() float64                           { return 1 }
func (twoBoundModel) Objective(x []float64) float64                     { return 0 }
func (twoBoundModel) ObjectiveGradient(_ []float64, _ []float64)        {}
func (twoBoundModel) Constraints(_ []float64, _ []float64)              {}
func (twoBoundModel) ConstraintGradient(_ int, _ []float64, _ []float64) {}
func (twoBoundModel) Jacobian(_ []float64) *linalg.COO                  { return linalg.NewCOO(2, 2, 0) }
func (twoBoundModel) LagrangianHessian(_ []float64, _ float64, _ []float64) *linalg.CSC {
	return linalg.NewCSC(2, 0, false)
}

func TestInfeasibilityL1(t *testing.T) {
	m := twoBoundModel{}
	c := []float64{2, -3}
	got := Infeasibility(m, c, linalg.L1)
	want := 1.0 + 2.0 // 2 is 1 over upper bound 1, -3 is 2 below lower bound -1
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("Infeasibility = %v, want %v", got, want)
	}
}

func TestInfeasibilityFeasible(t *testing.T) {
	m := twoBoundModel{}
	c := []float64{0, 0.5}
	if got := Infeasibility(m, c, linalg.L1); got != 0 {
		t.Fatalf("Infeasibility = %v, want 0", got)
	}
}

func TestScaleFactor(t *testing.T) {
	if got, want := ScaleFactor(0, 0, 100), 1.0; got != want {
		t.Fatalf("ScaleFactor(0 dims) = %v, want %v", got, want)
	}
	got := ScaleFactor(1000, 10, 100)
	want := math.Max(100, 100) / 100
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("ScaleFactor = %v, want %v", got, want)
	}
}

func TestCombinedErrorZeroAtExactMultipliers(t *testing.T) {
	m := twoBoundModel{}
	g := []float64{0, 0}
	jac := linalg.NewCOO(2, 2, 0)
	x := []float64{0.5, 0.5}
	zL := []float64{0, 0}
	zU := []float64{0, 0}
	c := []float64{0, 0}
	lambda := []float64{0, 0}
	if got := CombinedError(m, g, jac, x, zL, zU, c, lambda, 1); got != 0 {
		t.Fatalf("CombinedError = %v, want 0", got)
	}
}

func TestComplementaritySumViolatedConstraint(t *testing.T) {
	m := twoBoundModel{}
	// x1 at its lower bound (not strictly interior, contributes 0
	// regardless of zL); c[0] violates its upper bound by 1 with
	// lambda[0] = 0.5, contributing |(1-0.5)*(2-1)| = 0.5; c[1] is
	// strictly interior and satisfied with lambda[1] = 0, contributing 0.
	x := []float64{0, 0.5}
	zL := []float64{3, 0}
	zU := []float64{0, 0}
	c := []float64{2, 0}
	lambda := []float64{0.5, 0}
	got := ComplementaritySum(m, x, zL, zU, c, lambda)
	want := 0.5
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("ComplementaritySum = %v, want %v", got, want)
	}
}

func TestComplementaritySumInteriorBoundMultiplier(t *testing.T) {
	m := twoBoundModel{}
	// x1 strictly interior with zL[0] = 2, zU[0] = 0: contributes
	// |2*(0.25-0)| = 0.5. x2 strictly interior with zero multipliers:
	// contributes 0. Constraints both interior and satisfied with zero
	// multipliers: contribute 0.
	x := []float64{0.25, 0.5}
	zL := []float64{2, 0}
	zU := []float64{0, 0}
	c := []float64{0, 0}
	lambda := []float64{0, 0}
	got := ComplementaritySum(m, x, zL, zU, c, lambda)
	want := 0.5
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("ComplementaritySum = %v, want %v", got, want)
	}
}

func TestStationarityResidualUnconstrained(t *testing.T) {
	g := []float64{1, -2}
	jac := linalg.NewCOO(0, 2, 0)
	lambda := []float64{}
	zL := []float64{0, 0}
	zU := []float64{0, 0}
	got := StationarityResidual(g, jac, lambda, zL, zU, linalg.L2)
	want := math.Hypot(1, 2)
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("StationarityResidual = %v, want %v", got, want)
	}
}

func TestStationarityResidualCancelsAtKKTPoint(t *testing.T) {
	// grad(f) = (1,1), one equality row J = [1 1] with lambda = 1
	// cancels both components exactly.
	g := []float64{1, 1}
	jac := linalg.NewCOO(1, 2, 2)
	jac.Insert(0, 0, 1)
	jac.Insert(0, 1, 1)
	lambda := []float64{1}
	zL := []float64{0, 0}
	zU := []float64{0, 0}
	got := StationarityResidual(g, jac, lambda, zL, zU, linalg.L2)
	if math.Abs(got) > 1e-12 {
		t.Fatalf("StationarityResidual = %v, want 0", got)
	}
}

func TestPredictedOptimalityReductionLinearOnly(t *testing.T) {
	g := []float64{1, 0}
	d := []float64{-1, 0}
	got := PredictedOptimalityReduction(g, d, nil, 1, 1)
	want := 1.0
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("PredictedOptimalityReduction = %v, want %v", got, want)
	}
}

func TestPredictedOptimalityReductionWithCurvature(t *testing.T) {
	g := []float64{1, 0}
	d := []float64{-1, 0}
	hd := []float64{-1, 0} // H = I, so Hd = d
	got := PredictedOptimalityReduction(g, d, hd, 1, 1)
	// linear term alpha*(-1*g.d) = 1, quadratic term -0.5*1*(d.hd) =
	// -0.5*1 = -0.5, total 0.5.
	want := 0.5
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("PredictedOptimalityReduction = %v, want %v", got, want)
	}
}

func TestPredictedInfeasibilityReductionFullStep(t *testing.T) {
	m := twoBoundModel{}
	c := []float64{2, 0}
	jac := linalg.NewCOO(2, 2, 2)
	jac.Insert(0, 0, 1)
	jac.Insert(1, 1, 1)
	d := []float64{-1, 0}
	got := PredictedInfeasibilityReduction(m, c, jac, d, 1)
	// current violation: c[0]=2 exceeds upper bound 1 by 1, c[1]=0 is
	// feasible => 1. After the step c[0] becomes 1 (feasible) => 0.
	want := 1.0
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("PredictedInfeasibilityReduction = %v, want %v", got, want)
	}
}
