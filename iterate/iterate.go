// Copyright ©2025 nonlin authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package iterate defines the immutable-snapshot representation of a
// point in the outer iteration: primals, multipliers, a memoized
// oracle-evaluation cache, and the progress/residual measures the
// globalization strategies read. This is a
// snapshot plus a separate cache rather than a mutable object with lazy
// evaluation flags: the two are kept apart so nothing can accidentally
// hand out a half-evaluated Iterate.
package iterate

import (
	"github.com/corvid-opt/nonlin/linalg"
	"github.com/corvid-opt/nonlin/model"
)

// Multipliers holds the dual variables of an iterate or a direction.
//
//	Lambda in R^m           constraint multipliers
//	ZL, ZU in R^n_+         bound multipliers (ZL active at x=x_L, ZU active at x=x_U)
//	Sigma in {0,1}          objective multiplier
type Multipliers struct {
	Lambda []float64
	ZL     []float64
	ZU     []float64
	Sigma  float64
}

// NewMultipliers allocates zeroed multipliers of the given dimensions.
func NewMultipliers(n, m int) Multipliers {
	return Multipliers{
		Lambda: make([]float64, m),
		ZL:     make([]float64, n),
		ZU:     make([]float64, n),
		Sigma:  1,
	}
}

// Status classifies the outcome the driver reports for an iterate.
type Status int

const (
	NotOptimal Status = iota
	KKTPoint
	FJPoint
	FeasibleSmallStep
	InfeasibleSmallStep
)

func (s Status) String() string {
	switch s {
	case KKTPoint:
		return "KKT_POINT"
	case FJPoint:
		return "FJ_POINT"
	case FeasibleSmallStep:
		return "FEASIBLE_SMALL_STEP"
	case InfeasibleSmallStep:
		return "INFEASIBLE_SMALL_STEP"
	default:
		return "NOT_OPTIMAL"
	}
}

// Progress carries the nonlinear-progress measures a globalization
// strategy compares between iterates.
//
// ScaledOptimality is a function of the objective multiplier rather than
// a plain float because feasibility restoration reports the same
// quantity differently depending on the current phase: in the
// optimality phase it is sigma*f(x); in restoration, the constraint
// violation, independent of sigma.
type Progress struct {
	Infeasibility      float64
	ScaledOptimality   func(sigma float64) float64
	UnscaledOptimality float64
}

// Residuals carries the (already scaled) dual residuals used by
// termination checks.
type Residuals struct {
	Stationarity    float64
	Complementarity float64
}

// evalCache memoizes oracle calls for one Iterate. Each field is set at
// most once: the zero value of the "have" bool guarantees the
// corresponding oracle call happens exactly once per Iterate per need.
type evalCache struct {
	haveObjective bool
	objective     float64

	haveGradient bool
	gradient     []float64

	haveConstraints bool
	constraints     []float64

	haveJacobian bool
	jacobian     *linalg.COO

	haveHessian   bool
	hessianSigma  float64
	hessianLambda []float64
	hessian       *linalg.CSC
}

// Iterate is an immutable snapshot of (x, multipliers) plus a memoized
// evaluation cache and the progress/residual/status fields the outer
// loop and its strategies fill in as they process the point. Mutated
// only by its owning component (never shared across goroutines); a
// freshly built Iterate starts as "trial" and becomes "current" upon
// acceptance by the driver.
type Iterate struct {
	X    []float64
	Mult Multipliers

	m     model.Model
	cache evalCache

	Progress  Progress
	Residuals Residuals
	Status    Status
}

// New creates an iterate at x with the given multipliers, bound to m for
// lazy oracle evaluation.
func New(x []float64, mult Multipliers, m model.Model) *Iterate {
	return &Iterate{X: append([]float64(nil), x...), Mult: mult, m: m}
}

// Objective returns (memoized) f(x).
func (it *Iterate) Objective() float64 {
	if !it.cache.haveObjective {
		it.cache.objective = it.m.Objective(it.X)
		it.cache.haveObjective = true
	}
	return it.cache.objective
}

// ObjectiveGradient returns (memoized) grad f(x).
func (it *Iterate) ObjectiveGradient() []float64 {
	if !it.cache.haveGradient {
		g := make([]float64, it.m.N())
		it.m.ObjectiveGradient(it.X, g)
		it.cache.gradient = g
		it.cache.haveGradient = true
	}
	return it.cache.gradient
}

// Constraints returns (memoized) c(x).
func (it *Iterate) Constraints() []float64 {
	if !it.cache.haveConstraints {
		c := make([]float64, it.m.M())
		it.m.Constraints(it.X, c)
		it.cache.constraints = c
		it.cache.haveConstraints = true
	}
	return it.cache.constraints
}

// Jacobian returns (memoized) the constraint Jacobian at x.
func (it *Iterate) Jacobian() *linalg.COO {
	if !it.cache.haveJacobian {
		it.cache.jacobian = it.m.Jacobian(it.X)
		it.cache.haveJacobian = true
	}
	return it.cache.jacobian
}

// Hessian returns (memoized) grad^2 L(x, sigma, lambda). A second call
// with different (sigma, lambda) panics: the cache is per-iterate, and
// an iterate's Lagrangian Hessian is evaluated at most once per need.
func (it *Iterate) Hessian(sigma float64, lambda []float64) *linalg.CSC {
	if it.cache.haveHessian {
		if it.cache.hessianSigma != sigma || !floatsEqual(it.cache.hessianLambda, lambda) {
			panic("iterate: Hessian requested twice with different multipliers")
		}
		return it.cache.hessian
	}
	it.cache.hessian = it.m.LagrangianHessian(it.X, sigma, lambda)
	it.cache.hessianSigma = sigma
	it.cache.hessianLambda = append([]float64(nil), lambda...)
	it.cache.haveHessian = true
	return it.cache.hessian
}

func floatsEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Clone returns a fresh Iterate at the same x/multipliers with an empty
// cache, so re-evaluation after a phase switch (which changes what
// sigma/lambda mean) starts clean.
func (it *Iterate) Clone() *Iterate {
	return New(it.X, it.Mult, it.m)
}
