// Copyright ©2025 nonlin authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package model defines the NLP oracle contract consumed by the solver
// core. The core never inspects a model's internal representation — it
// only calls the operations below, at most once per iterate per need.
package model

import "github.com/corvid-opt/nonlin/linalg"

// ConstraintStatus classifies a constraint by which of its bounds are finite.
type ConstraintStatus int

const (
	Equality ConstraintStatus = iota
	BoundedLower
	BoundedUpper
	BoundedBothSides
	Unbounded
)

// Bound is a closed interval [Lower, Upper]; infinite sides are
// represented with math.Inf.
type Bound struct {
	Lower, Upper float64
}

// Model is the external NLP oracle: n variables, m constraints,
// minimize Sense*f(x) subject to c_L <= c(x) <= c_U, x_L <= x <= x_U.
//
//	f(x)      -> R            Objective
//	grad f(x) -> R^n          ObjectiveGradient
//	c(x)      -> R^m          Constraints
//	grad c_j  -> R^n          ConstraintGradient
//	Jacobian  -> R^(m x n)    Jacobian (row-indexed sparse, one COO entry set per row)
//	Hessian of the Lagrangian grad^2 L(x, sigma, lambda) -> symmetric R^(n x n)
type Model interface {
	N() int
	M() int

	ConstraintStatus(j int) ConstraintStatus
	VariableBounds() []Bound
	ConstraintBounds() []Bound
	// ObjectiveSense is +1 for minimization, -1 for maximization; the
	// core always minimizes Sense*f internally.
	ObjectiveSense() float64

	Objective(x []float64) float64
	ObjectiveGradient(x []float64, g []float64)

	Constraints(x []float64, c []float64)
	ConstraintGradient(j int, x []float64, g []float64)
	Jacobian(x []float64) *linalg.COO

	// LagrangianHessian evaluates grad^2 L(x, sigma, lambda) where
	// L(x,sigma,lambda) = sigma*f(x) - sum_j lambda_j*c_j(x). The
	// returned matrix's triangle (upper or lower) must be the same
	// triangle across every call for a given Model instance.
	LagrangianHessian(x []float64, sigma float64, lambda []float64) *linalg.CSC
}
