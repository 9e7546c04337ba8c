// Copyright ©2025 nonlin authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hessian

import (
	"gonum.org/v1/gonum/mat"

	"github.com/corvid-opt/nonlin/linalg"
)

// Inertia counts the positive, negative and zero eigenvalues of a
// factorized symmetric matrix.
type Inertia struct {
	Positive int
	Negative int
	Zero     int
}

// Matches reports whether the inertia equals the (n, m, 0) pattern a
// convexified KKT system must have.
func (in Inertia) Matches(n, m int) bool {
	return in.Positive == n && in.Negative == m && in.Zero == 0
}

// Factorization is an opaque handle a LinearSolver hands back from
// Factorize; only the solver that produced it knows how to use it.
type Factorization interface {
	Inertia() Inertia
	Singular() bool
	Rank() int
}

// LinearSolver factorizes a symmetric matrix given in COO form (either
// triangle) and solves against the factorization. Grounded on the
// direct symmetric-indefinite solver contract: factorize(K) -> F
// reporting inertia and a singularity flag, solve(F, rhs) -> x, rank(F).
type LinearSolver interface {
	Factorize(k *linalg.COO, dimension int) (Factorization, error)
	Solve(f Factorization, rhs []float64) ([]float64, error)
}

// denseFactorization is the gonum/mat-backed Factorization.
type denseFactorization struct {
	chol    *mat.Cholesky // non-nil when the matrix factored as SPD
	eigen   *mat.EigenSym // used when Cholesky fails, to report inertia
	dense   *mat.SymDense
	n       int
	inertia Inertia
	rank    int
}

func (f *denseFactorization) Inertia() Inertia { return f.inertia }
func (f *denseFactorization) Singular() bool    { return f.rank < f.n }
func (f *denseFactorization) Rank() int         { return f.rank }

// DenseLinearSolver is a fallback LinearSolver for small/dense systems,
// used by Convexified and InteriorPoint when no sparse direct solver
// (MA27/MA57/MUMPS — out of scope here) is wired
// in. It materializes K densely and reads off the inertia from its
// eigenvalues, which is adequate for the dimensions the bundled test
// problems exercise.
type DenseLinearSolver struct{}

// Factorize builds the dense symmetric matrix from k and determines its
// inertia. It first attempts a Cholesky factorization (the common case
// once convexification has succeeded); on failure it falls back to an
// eigendecomposition, which always succeeds for a real symmetric matrix
// and yields the exact inertia.
func (DenseLinearSolver) Factorize(k *linalg.COO, dimension int) (Factorization, error) {
	dense := mat.NewSymDense(dimension, nil)
	k.ForEach(func(row, col int, value float64) {
		dense.SetSym(row, col, dense.At(row, col)+value)
	})

	var chol mat.Cholesky
	if ok := chol.Factorize(dense); ok {
		return &denseFactorization{
			chol:    &chol,
			dense:   dense,
			n:       dimension,
			inertia: Inertia{Positive: dimension, Negative: 0, Zero: 0},
			rank:    dimension,
		}, nil
	}

	var eigen mat.EigenSym
	if ok := eigen.Factorize(dense, false); !ok {
		return nil, errFactorizationFailed
	}
	values := eigen.Values(nil)
	var in Inertia
	rank := 0
	const tol = 1e-12
	for _, lambda := range values {
		switch {
		case lambda > tol:
			in.Positive++
			rank++
		case lambda < -tol:
			in.Negative++
			rank++
		default:
			in.Zero++
		}
	}
	return &denseFactorization{eigen: &eigen, dense: dense, n: dimension, inertia: in, rank: rank}, nil
}

// Solve solves K x = rhs using the factorization computed by Factorize.
func (DenseLinearSolver) Solve(factorization Factorization, rhs []float64) ([]float64, error) {
	f, ok := factorization.(*denseFactorization)
	if !ok {
		return nil, errWrongFactorization
	}
	x := mat.NewVecDense(f.n, nil)
	b := mat.NewVecDense(f.n, append([]float64(nil), rhs...))
	if f.chol != nil {
		if err := x.SolveVec(f.chol, b); err != nil {
			return nil, err
		}
		return x.RawVector().Data, nil
	}
	var lu mat.LU
	lu.Factorize(f.dense)
	if err := x.SolveVec(&lu, b); err != nil {
		return nil, err
	}
	return x.RawVector().Data, nil
}
