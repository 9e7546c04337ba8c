// Copyright ©2025 nonlin authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hessian implements the Lagrangian Hessian models the
// subproblem layer builds its quadratic model from: the exact Hessian,
// a convexified variant that regularizes toward the required inertia,
// and a zero model for Gauss-Newton-style solvers that never need
// second-order information.
package hessian

import (
	"math"

	"github.com/pkg/errors"

	"github.com/corvid-opt/nonlin/iterate"
	"github.com/corvid-opt/nonlin/linalg"
)

var (
	errFactorizationFailed = errors.New("hessian: dense factorization failed to converge")
	errWrongFactorization  = errors.New("hessian: factorization was not produced by this solver")
	// ErrRegularizationCapped is returned when the inertia-correction loop
	// reaches delta_max without achieving the required inertia.
	ErrRegularizationCapped = errors.New("hessian: regularization reached delta_max without correct inertia")
)

// Model builds the (possibly regularized) Lagrangian Hessian a
// subproblem evaluates its quadratic model with.
type Model interface {
	// Evaluate returns H for the given iterate, primal dimension n and
	// number of active constraints m (used by Convexified to know the
	// target inertia (n, m, 0)). sigma and lambda are the multipliers the
	// Lagrangian is linearized around.
	Evaluate(it *iterate.Iterate, n, m int, sigma float64, lambda []float64) (*linalg.CSC, error)
}

// Zero is the Model that always returns the zero matrix, for
// Gauss-Newton-style subproblems that never form second-order
// information.
type Zero struct{}

func (Zero) Evaluate(_ *iterate.Iterate, n, _ int, _ float64, _ []float64) (*linalg.CSC, error) {
	return linalg.NewCSC(n, 0, false), nil
}

// Exact returns the Lagrangian Hessian unmodified, for methods whose
// subproblem solver tolerates an indefinite model (e.g. a trust-region
// QP solver with its own safeguards).
type Exact struct{}

func (Exact) Evaluate(it *iterate.Iterate, _, _ int, sigma float64, lambda []float64) (*linalg.CSC, error) {
	return it.Hessian(sigma, lambda), nil
}

// Convexified regularizes the Lagrangian Hessian as H + delta*I until an
// inertia check reports the inertia (n, m, 0) a convex QP subproblem
// requires. Evaluate checks the block matrix diag(H + delta*I, -I_m)
// built by kktFromHessian; RegularizeWithChecker runs the same loop with
// a caller-supplied Checker instead. The delta policy — start at
// 0, escalate by max(delta_min, kappa_inc*max(delta_last, delta_init)),
// cap at delta_max, halve delta_last on success.
type Convexified struct {
	Solver LinearSolver

	DeltaMin  float64
	DeltaInit float64
	DeltaMax  float64
	KappaInc  float64

	deltaLast float64
}

// NewConvexified builds a Convexified model with standard default
// regularization constants.
func NewConvexified(solver LinearSolver) *Convexified {
	return &Convexified{
		Solver:    solver,
		DeltaMin:  1e-20,
		DeltaInit: 1e-4,
		DeltaMax:  1e40,
		KappaInc:  8,
	}
}

// Evaluate regularizes the Lagrangian Hessian and returns the first
// H + delta*I for which c.Solver reports inertia (n, m, 0) on the block
// matrix diag(H + delta*I, -I_m) assembled by kktFromHessian. The
// constraint Jacobian is not part of that matrix; a caller that needs
// the full KKT inertia test passes its own Checker to
// RegularizeWithChecker.
func (c *Convexified) Evaluate(it *iterate.Iterate, n, m int, sigma float64, lambda []float64) (*linalg.CSC, error) {
	h := it.Hessian(sigma, lambda)
	return c.regularize(h, n, m)
}

// Checker assembles the KKT matrix for a candidate regularized Hessian
// and reports its inertia via a LinearSolver factorization. Subproblem
// layers that need the full KKT inertia test (rather than the Hessian's
// own diagonal-only check) pass a Checker into RegularizeWithChecker.
type Checker func(h *linalg.CSC) (Inertia, error)

func (c *Convexified) regularize(h *linalg.CSC, n, m int) (*linalg.CSC, error) {
	return c.RegularizeWithChecker(h, n, m, func(candidate *linalg.CSC) (Inertia, error) {
		k := kktFromHessian(candidate, n, m)
		f, err := c.Solver.Factorize(k, n+m)
		if err != nil {
			return Inertia{}, err
		}
		return f.Inertia(), nil
	})
}

// RegularizeWithChecker runs the delta-escalation loop, calling check
// after each candidate H + delta*I to test the resulting inertia.
func (c *Convexified) RegularizeWithChecker(h *linalg.CSC, n, m int, check Checker) (*linalg.CSC, error) {
	delta := 0.0

	for {
		candidate := regularized(h, delta)
		in, err := check(candidate)
		if err == nil && in.Matches(n, m) {
			if delta > 0 {
				c.deltaLast = delta
			}
			return candidate, nil
		}
		if delta == 0 {
			delta = math.Max(c.DeltaMin, c.KappaInc*math.Max(c.deltaLast, c.DeltaInit))
		} else {
			delta *= c.KappaInc
		}
		if delta > c.DeltaMax {
			return nil, ErrRegularizationCapped
		}
	}
}

// NotifyAccepted halves the persisted delta_last after an outer
// iteration accepts a step built from a positive-delta regularization,
// (delta_last is halved on success).
func (c *Convexified) NotifyAccepted() {
	if c.deltaLast > 0 {
		c.deltaLast /= 2
	}
}

// regularized returns a copy of h with delta added to every diagonal entry.
func regularized(h *linalg.CSC, delta float64) *linalg.CSC {
	out := linalg.NewCSC(h.Dimension, len(h.Entries)+h.Dimension, true)
	col := 0
	h.ForEach(func(row, c int, value float64) {
		for col < c {
			out.FinalizeColumn(col)
			col++
		}
		out.Insert(row, c, value)
	})
	for col < h.Dimension {
		out.FinalizeColumn(col)
		col++
	}
	out.SetRegularization(func(int) float64 { return delta })
	return out
}

// kktFromHessian assembles a minimal (H, 0; 0, -I) style block used when
// the caller has no Jacobian handy; real subproblem solvers pass their
// own Checker via RegularizeWithChecker instead of going through
// Evaluate's default path. This fallback keeps Evaluate usable in
// isolation (e.g. in tests) without requiring a full KKT assembly.
func kktFromHessian(h *linalg.CSC, n, m int) *linalg.COO {
	k := linalg.NewCOO(n+m, n+m, len(h.Entries)+m)
	h.ForEach(func(row, col int, value float64) {
		k.Insert(row, col, value)
	})
	for i := 0; i < m; i++ {
		k.Insert(n+i, n+i, -1)
	}
	return k
}

// Factory dispatches on the configured Hessian model name. convexify
// requests the regularizing wrapper around the exact model; it is
// ignored for "zero". Grounded on HessianModelFactory::create.
func Factory(name string, convexify bool, solver LinearSolver) (Model, error) {
	switch name {
	case "exact":
		if convexify {
			return NewConvexified(solver), nil
		}
		return Exact{}, nil
	case "zero":
		return Zero{}, nil
	default:
		return nil, errors.Errorf("hessian: unknown model %q", name)
	}
}
