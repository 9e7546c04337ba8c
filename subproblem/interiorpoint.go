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
)

// InteriorPoint is a primal-dual barrier local model: general
// inequality constraints get a slack and a barrier term -mu*ln(s)
// instead of the active-set treatment QP/LP give them, while variable
// bounds are still handled the same way QP/LP handle them, by ratio-
// testing the step against the box rather than barriering it. A
// constraint whose bounds are both finite (a two-sided range) is
// barriered against its lower bound only; nothing in the tree passes a
// range constraint to InteriorPoint, so this narrowing is untested
// territory rather than a load-bearing simplification.
type InteriorPoint struct {
	Hessian hessian.Model
	Solver  hessian.LinearSolver

	Mu      float64 // current barrier parameter; self-initializes to 0.1
	SigmaMu float64 // centering shrink factor applied after each solve; self-initializes to 0.2
	Tau     float64 // fraction-to-boundary safety factor; self-initializes to 0.995
	MuFloor float64 // mu never drops below this; self-initializes to 1e-10
}

func (ip *InteriorPoint) defaults() {
	if ip.Mu <= 0 {
		ip.Mu = 0.1
	}
	if ip.SigmaMu <= 0 {
		ip.SigmaMu = 0.2
	}
	if ip.Tau <= 0 {
		ip.Tau = 0.995
	}
	if ip.MuFloor <= 0 {
		ip.MuFloor = 1e-10
	}
}

// ineqRow describes one barriered inequality row: sign is +1 if the row
// reads c_j(x) - bound (a lower-bound-style row) and -1 if it reads
// bound - c_j(x) (an upper-bound-style row), matching the lambda sign
// convention buildConstraintRows uses for the active-set subproblem.
type ineqRow struct {
	constraint int
	sign       float64
	value      float64 // the row's value at x: sign>0 => c_j(x)-cL_j, sign<0 => cU_j-c_j(x)
	grad       []float64
}

func (ip *InteriorPoint) Solve(m model.Model, it *iterate.Iterate, trustRegion float64) (*iterate.Direction, PredictedReduction, error) {
	ip.defaults()

	n, mc := m.N(), m.M()
	g := it.ObjectiveGradient()
	c := it.Constraints()
	jac := it.Jacobian()
	sigma := it.Mult.Sigma

	cL, cU := constraintBoundSlices(m)
	xL, xU := variableBoundSlices(m)
	lo, hi := stepBounds(xL, xU, it.X, trustRegion)

	var eqIdx []int
	var ineq []ineqRow
	row := make([]float64, n)
	for j := 0; j < mc; j++ {
		if m.ConstraintStatus(j) == model.Equality {
			eqIdx = append(eqIdx, j)
			continue
		}
		jac.DenseRow(j, row)
		grad := append([]float64(nil), row...)
		switch {
		case !math.IsInf(cL[j], -1):
			ineq = append(ineq, ineqRow{constraint: j, sign: 1, value: c[j] - cL[j], grad: grad})
		case !math.IsInf(cU[j], 1):
			ineq = append(ineq, ineqRow{constraint: j, sign: -1, value: cU[j] - c[j], grad: grad})
		}
	}

	s := make([]float64, len(ineq))
	z := make([]float64, len(ineq))
	for i, r := range ineq {
		s[i] = math.Max(r.value, 1e-10)
		dual := r.sign * it.Mult.Lambda[r.constraint]
		if dual <= 1e-10 {
			dual = ip.Mu / s[i]
		}
		z[i] = dual
	}

	h, err := ip.Hessian.Evaluate(it, n, mc, sigma, it.Mult.Lambda)
	if err != nil {
		return nil, nil, solverrors.NumericalError(err)
	}

	hBar := mat.NewSymDense(n, nil)
	h.ForEach(func(r, col int, value float64) {
		hBar.SetSym(r, col, hBar.At(r, col)+value)
	})
	for i, r := range ineq {
		coeff := z[i] / s[i]
		for a := 0; a < n; a++ {
			for b := 0; b <= a; b++ {
				if r.grad[a] == 0 || r.grad[b] == 0 {
					continue
				}
				hBar.SetSym(a, b, hBar.At(a, b)+coeff*r.grad[a]*r.grad[b])
			}
		}
	}

	eqRows := len(eqIdx)
	dim := n + eqRows
	k := linalg.NewCOO(dim, dim, n*n+2*eqRows*n)
	for a := 0; a < n; a++ {
		for b := 0; b <= a; b++ {
			if v := hBar.At(a, b); v != 0 {
				k.Insert(a, b, v)
			}
		}
	}
	eqGrad := make([]float64, n)
	for i, j := range eqIdx {
		jac.DenseRow(j, eqGrad)
		for col := 0; col < n; col++ {
			if eqGrad[col] != 0 {
				k.Insert(n+i, col, eqGrad[col])
			}
		}
	}

	rhs := make([]float64, dim)
	for i := 0; i < n; i++ {
		rhs[i] = -sigma * g[i]
	}
	for _, j := range eqIdx {
		jac.DenseRow(j, row)
		lambda := it.Mult.Lambda[j]
		for i := 0; i < n; i++ {
			rhs[i] += lambda * row[i]
		}
	}
	for i, r := range ineq {
		muOverS := ip.Mu / s[i]
		for a := 0; a < n; a++ {
			rhs[a] += muOverS * r.grad[a]
		}
	}
	for i, j := range eqIdx {
		rhs[n+i] = cU[j] - c[j]
	}

	factorization, err := ip.Solver.Factorize(k, dim)
	if err != nil {
		return nil, nil, solverrors.NumericalError(err)
	}
	sol, err := ip.Solver.Solve(factorization, rhs)
	if err != nil {
		return nil, nil, solverrors.NumericalError(err)
	}

	d := sol[:n]
	dLambdaEq := make([]float64, eqRows)
	for i := range dLambdaEq {
		dLambdaEq[i] = -sol[n+i]
	}

	ds := make([]float64, len(ineq))
	dz := make([]float64, len(ineq))
	for i, r := range ineq {
		ds[i] = blas.Ddot(n, r.grad, 1, d, 1)
		dz[i] = ip.Mu/s[i] - z[i] - (z[i]/s[i])*ds[i]
	}

	alpha := 1.0
	for i := range ineq {
		if ds[i] < 0 {
			alpha = math.Min(alpha, ip.Tau*(-s[i]/ds[i]))
		}
	}
	alphaDual := 1.0
	for i := range dz {
		if dz[i] < 0 {
			alphaDual = math.Min(alphaDual, ip.Tau*(-z[i]/dz[i]))
		}
	}
	for i := 0; i < n; i++ {
		switch {
		case d[i] > 0 && hi[i] > 0:
			alpha = math.Min(alpha, ip.Tau*hi[i]/d[i])
		case d[i] < 0 && lo[i] < 0:
			alpha = math.Min(alpha, ip.Tau*lo[i]/d[i])
		}
	}
	if dirNorm := linalg.NormVec(linalg.Inf, d); dirNorm > trustRegion && dirNorm > 0 {
		alpha = math.Min(alpha, trustRegion/dirNorm)
	}
	alpha = math.Max(alpha, 0)

	finalD := make([]float64, n)
	for i := range finalD {
		finalD[i] = alpha * d[i]
	}

	lambda := append([]float64(nil), it.Mult.Lambda...)
	for i, j := range eqIdx {
		lambda[j] += alpha * dLambdaEq[i]
	}
	complementarity := 0.0
	for i, r := range ineq {
		zNew := z[i] + alphaDual*dz[i]
		lambda[r.constraint] = r.sign * zNew
		complementarity += zNew * s[i]
	}

	if len(ineq) > 0 {
		ip.Mu = math.Max(ip.MuFloor, ip.SigmaMu*complementarity/float64(len(ineq)))
	}

	status := iterate.Optimal
	if alpha <= 0 {
		status = iterate.Infeasible
	}

	dir := &iterate.Direction{
		Primals:             finalD,
		Multipliers:         iterate.Multipliers{Lambda: lambda, ZL: append([]float64(nil), it.Mult.ZL...), ZU: append([]float64(nil), it.Mult.ZU...), Sigma: sigma},
		ObjectiveMultiplier: sigma,
		Status:              status,
		Phase:               iterate.OptimalityPhase,
		Norm:                linalg.NormVec(linalg.Inf, finalD),
	}
	if status != iterate.Infeasible {
		dir.ConstraintPartition = partitionFromTrial(m, c, jac, finalD)
	}

	predicted := predictedReduction(g, h, finalD, sigma)
	return dir, predicted, nil
}
