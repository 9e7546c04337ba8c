// Copyright ©2025 nonlin authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package subproblem

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/corvid-opt/nonlin/hessian"
	"github.com/corvid-opt/nonlin/internal/blas"
	"github.com/corvid-opt/nonlin/iterate"
	"github.com/corvid-opt/nonlin/linalg"
	"github.com/corvid-opt/nonlin/model"
	"github.com/corvid-opt/nonlin/solverrors"
	"github.com/corvid-opt/nonlin/subproblem/internal/lsei"
)

// QP is the standard QP subproblem:
//
//	minimize   1/2 d^T H d + grad(f)^T d
//	subject to cL - c(x) <= J(x) d <= cU - c(x)
//	           max(xL-x, -trustRegion) <= d <= min(xU-x, +trustRegion)
//
// reduced to an LSEI problem the way an LSQ step reduces its own
// quasi-Newton QP step: factor H = E^T E (E upper triangular, via
// Cholesky), set f so that 1/2||Ed-f||^2 = 1/2 d^T H d + grad(f)^T d up
// to a constant, and let C/G/h carry the linearized equality and
// inequality rows plus the box bounds, each split into one-sided G rows
// exactly as LSQ augments G with +-I for variable bounds.
type QP struct {
	Hessian hessian.Model
}

// LP is the degenerate case H = 0: identical to QP but with no
// quadratic term, so every row reduces to a pure linear program.
func LP() *QP {
	return &QP{Hessian: hessian.Zero{}}
}

func (qp *QP) Solve(m model.Model, it *iterate.Iterate, trustRegion float64) (*iterate.Direction, PredictedReduction, error) {
	n, mc := m.N(), m.M()
	g := it.ObjectiveGradient()
	c := it.Constraints()
	jac := it.Jacobian()

	sigma := it.Mult.Sigma
	h, err := qp.Hessian.Evaluate(it, n, countActiveGuess(m), sigma, it.Mult.Lambda)
	if err != nil {
		return nil, nil, solverrors.NumericalError(err)
	}

	e, f, err := reduceHessianToLeastSquares(h, g, n)
	if err != nil {
		return nil, nil, err
	}

	cL, cU := constraintBoundSlices(m)
	xL, xU := variableBoundSlices(m)
	lo, hi := stepBounds(xL, xU, it.X, trustRegion)

	rows := buildConstraintRows(m, jac, c, cL, cU, lo, hi)

	d := make([]float64, n)
	lambda := make([]float64, mc)
	zL := make([]float64, n)
	zU := make([]float64, n)

	status, err := solveLSEI(e, f, rows, n, d, lambda, zL, zU)
	if err != nil {
		return nil, nil, err
	}

	dir := &iterate.Direction{
		Primals:             d,
		Multipliers:          iterate.Multipliers{Lambda: lambda, ZL: zL, ZU: zU, Sigma: sigma},
		ObjectiveMultiplier: sigma,
		Status:               status,
		Phase:                 iterate.OptimalityPhase,
		Norm:                  linalg.NormVec(linalg.Inf, d),
	}
	if status != iterate.Infeasible {
		dir.ConstraintPartition = partitionFromTrial(m, c, jac, d)
	}

	predicted := predictedReduction(g, h, d, sigma)
	return dir, predicted, nil
}

// socModel reports trialConstraints instead of evaluating c(x) at
// whatever x it's called with; Jacobian, objective and bounds still
// delegate to the embedded model unchanged.
type socModel struct {
	model.Model
	trialConstraints []float64
}

func (s socModel) Constraints(_ []float64, c []float64) {
	copy(c, s.trialConstraints)
}

// ComputeSecondOrderCorrection resolves the QP at it with the
// constraint rows' right-hand side measured at trial's actual
// constraint values rather than its linearization, keeping its
// Jacobian and Hessian. The resulting direction, if accepted, replaces
// trial without the outer loop shrinking its trust region for what
// was really just a linearization artifact rather than a bad step.
func (qp *QP) ComputeSecondOrderCorrection(m model.Model, it, trial *iterate.Iterate, trustRegion float64) (*iterate.Direction, error) {
	wrapped := socModel{Model: m, trialConstraints: trial.Constraints()}
	socIt := iterate.New(it.X, it.Mult, wrapped)
	dir, _, err := qp.Solve(wrapped, socIt, trustRegion)
	if err != nil {
		return nil, err
	}
	return dir, nil
}

// countActiveGuess is a placeholder active-constraint count for the
// Hessian model's inertia target before the active set is known; a
// full active-set count requires having solved the QP once, so models
// that need an exact value (Convexified with a KKT-based Checker) defer
// the real check to their own Checker rather than trusting this count.
func countActiveGuess(m model.Model) int {
	return m.M()
}

// leastSquaresEpsilon is the Tikhonov regularization added to a
// singular or indefinite H before Cholesky-factoring it, so the pure-LP
// case (H == 0) and other degenerate Hessians still reduce to an LSEI
// call: minimizing alpha^2/2*d^T d + g^T d approaches minimizing g^T d
// as alpha shrinks, and the trust region keeps the regularized QP's
// minimizer well defined.
const leastSquaresEpsilon = 1e-10

// reduceHessianToLeastSquares factors H = E^T E via Cholesky (falling
// back to an LDLT-style regularized factorization is the Hessian
// model's job, not this solver's) and recovers f solving E^T f = -g,
// matching LSQ's E = D^1/2 L^T, f = -D^-1/2 L^-1 g reduction. If H is
// singular or indefinite, retries once with a small diagonal
// regularization before giving up.
func reduceHessianToLeastSquares(h *linalg.CSC, g []float64, n int) (e, f []float64, err error) {
	dense := mat.NewSymDense(n, nil)
	h.ForEach(func(row, col int, value float64) {
		dense.SetSym(row, col, dense.At(row, col)+value)
	})

	var chol mat.Cholesky
	if !chol.Factorize(dense) {
		for i := 0; i < n; i++ {
			dense.SetSym(i, i, dense.At(i, i)+leastSquaresEpsilon)
		}
		if !chol.Factorize(dense) {
			return nil, nil, errNotPositiveDefinite
		}
	}
	var u mat.TriDense
	chol.UTo(&u)

	e = make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			e[i+n*j] = u.At(i, j)
		}
	}

	// Solve E^T f = -g by forward substitution: E^T is lower triangular
	// with (E^T)[i][j] = E[j][i] = u.At(j, i) for j <= i.
	f = make([]float64, n)
	for i := 0; i < n; i++ {
		sum := -g[i]
		for j := 0; j < i; j++ {
			sum -= u.At(j, i) * f[j]
		}
		diag := u.At(i, i)
		if math.Abs(diag) < 1e-300 {
			return nil, nil, errNotPositiveDefinite
		}
		f[i] = sum / diag
	}
	return e, f, nil
}

var errNotPositiveDefinite = solverrors.NumericalError(errNotPDSentinel{})

type errNotPDSentinel struct{}

func (errNotPDSentinel) Error() string { return "subproblem: Hessian is not positive definite" }

// rowTag identifies what an inequality row of G represents, so a
// recovered multiplier can be scattered back to the right constraint
// or bound after LSEI returns.
type rowTag struct {
	constraint int // constraint index, or -1 for a bound row
	variable   int // variable index, or -1 for a constraint row
	upper      bool
}

// constraintRows is the flattened (C,d)/(G,h) pair an LSEI call
// consumes, plus the row bookkeeping needed to scatter multipliers
// back onto (lambda, zL, zU).
type constraintRows struct {
	eqRows   int
	eqIdx    []int
	C, d     []float64 // C is eqRows x n, column-major, leading dim max(1, eqRows)
	ineqRows int
	ineqTag  []rowTag
	G, h     []float64 // G is ineqRows x n, column-major, leading dim ineqRows
}

// buildConstraintRows linearizes the model's constraints and variable
// bounds around x into the (C,d)/(G,h) pair LSEI expects: equality
// constraints (cL == cU) become C rows, inequality constraints and the
// box bounds each become one or two one-sided G rows, mirroring an LSQ
// step's augmentation of G with +-I for bounds.
func buildConstraintRows(m model.Model, jac *linalg.COO, c, cL, cU, lo, hi []float64) constraintRows {
	n := m.N()
	mc := m.M()

	var eqIdx []int
	var ineqLowerIdx, ineqUpperIdx []int
	for j := 0; j < mc; j++ {
		switch m.ConstraintStatus(j) {
		case model.Equality:
			eqIdx = append(eqIdx, j)
		default:
			if !math.IsInf(cL[j], -1) {
				ineqLowerIdx = append(ineqLowerIdx, j)
			}
			if !math.IsInf(cU[j], 1) {
				ineqUpperIdx = append(ineqUpperIdx, j)
			}
		}
	}

	eqRows := len(eqIdx)
	lc := max(1, eqRows)
	C := make([]float64, lc*n)
	d := make([]float64, max(1, eqRows))
	rowGrad := make([]float64, n)
	for i, j := range eqIdx {
		jac.DenseRow(j, rowGrad)
		for k := 0; k < n; k++ {
			C[i+lc*k] = rowGrad[k]
		}
		d[i] = cU[j] - c[j]
	}

	ineqRows := len(ineqLowerIdx) + len(ineqUpperIdx) + 2*n
	G := make([]float64, ineqRows*n)
	h := make([]float64, ineqRows)
	tags := make([]rowTag, ineqRows)
	row := 0
	for _, j := range ineqLowerIdx {
		jac.DenseRow(j, rowGrad)
		for k := 0; k < n; k++ {
			G[row+ineqRows*k] = rowGrad[k]
		}
		h[row] = cL[j] - c[j]
		tags[row] = rowTag{constraint: j, variable: -1, upper: false}
		row++
	}
	for _, j := range ineqUpperIdx {
		jac.DenseRow(j, rowGrad)
		for k := 0; k < n; k++ {
			G[row+ineqRows*k] = -rowGrad[k]
		}
		h[row] = c[j] - cU[j]
		tags[row] = rowTag{constraint: j, variable: -1, upper: true}
		row++
	}
	for i := 0; i < n; i++ {
		G[row+ineqRows*i] = 1
		h[row] = lo[i]
		tags[row] = rowTag{constraint: -1, variable: i, upper: false}
		row++
	}
	for i := 0; i < n; i++ {
		G[row+ineqRows*i] = -1
		h[row] = -hi[i]
		tags[row] = rowTag{constraint: -1, variable: i, upper: true}
		row++
	}

	return constraintRows{eqRows: eqRows, eqIdx: eqIdx, C: C, d: d, ineqRows: ineqRows, ineqTag: tags, G: G, h: h}
}

// solveLSEI calls the active-set least-squares solver and scatters the
// recovered multipliers into (lambda, zL, zU) using each row's tag.
// Constraints and bounds not present as a row keep a zero multiplier.
func solveLSEI(e, f []float64, rows constraintRows, n int, d, lambda, zL, zU []float64) (iterate.SubproblemStatus, error) {
	lc := max(1, rows.eqRows)
	wLen := lseiWorkspaceSize(n, rows.eqRows, rows.ineqRows)
	w := make([]float64, wLen)
	jw := make([]int, max(rows.ineqRows, min(n, n-rows.eqRows)))

	_, mode := lsei.LSEI(rows.C, rows.d, e, f, rows.G, rows.h, lc, rows.eqRows, n, n, rows.ineqRows, rows.ineqRows, n, d, w, jw, 0)

	switch mode {
	case lsei.HasSolution:
		for i, j := range rows.eqIdx {
			lambda[j] = w[i]
		}
		for i, tag := range rows.ineqTag {
			mult := w[rows.eqRows+i]
			switch {
			case tag.constraint >= 0 && tag.upper:
				// At most one side of a range constraint is active, so
				// accumulating rather than overwriting is safe.
				lambda[tag.constraint] -= mult
			case tag.constraint >= 0:
				lambda[tag.constraint] += mult
			case tag.upper:
				zU[tag.variable] = mult
			default:
				zL[tag.variable] = mult
			}
		}
		return iterate.Optimal, nil
	case lsei.ConsIncompatible, lsei.LSISingularE, lsei.LSEISingularC, lsei.HFTIRankDefect:
		return iterate.Infeasible, nil
	default:
		return iterate.SolverError, solverrors.Errorf("subproblem: LSEI mode %v", mode)
	}
}

// lseiWorkspaceSize mirrors LSEI's own internal slicing (the mc
// equality multipliers, then reducedWork, pivots, objTail, objResid,
// ineqTail).
func lseiWorkspaceSize(n, mc, mg int) int {
	l := n - mc
	ws := (l+1)*(mg+2) + 2*mg
	return mc + ws + mc + n*l + n + mg*l
}

// partitionFromTrial classifies each constraint's slack sign at x+d.
func partitionFromTrial(m model.Model, c []float64, jac *linalg.COO, d []float64) *iterate.ConstraintPartition {
	mc := m.M()
	cL, cU := constraintBoundSlices(m)
	n := m.N()
	row := make([]float64, n)
	trial := make([]float64, mc)
	for j := 0; j < mc; j++ {
		jac.DenseRow(j, row)
		trial[j] = c[j] + blas.Ddot(n, row, 1, d, 1)
	}
	return iterate.NewConstraintPartition(mc,
		func(j int) bool { return trial[j] < cL[j] },
		func(j int) bool { return trial[j] > cU[j] },
	)
}

// predictedReduction returns the predicted decrease
// alpha*(-sigma*grad(f)^T d - 1/2*alpha*d^T H d).
func predictedReduction(g []float64, h *linalg.CSC, d []float64, sigma float64) PredictedReduction {
	n := len(d)
	hd := make([]float64, n)
	h.MulVec(d, hd)
	linear := -sigma * blas.Ddot(n, g, 1, d, 1)
	quad := blas.Ddot(n, d, 1, hd, 1)
	return func(alpha float64) float64 {
		return alpha*linear - 0.5*alpha*alpha*quad
	}
}
