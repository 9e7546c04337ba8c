// Copyright ©2025 nonlin authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package lsei solves the constrained linear least-squares problems the
// active-set QP/LP subproblem layer reduces its local models to:
// equality-and-inequality constrained least squares (LSEI), the
// inequality-only special case (LSI), least-distance programming (LDP)
// and non-negative least squares (NNLS), plus a rank-deficient fallback
// (HFTI). The Householder/Givens machinery these build on follows
// C.L. Lawson & R.J. Hanson, "Solving Least Squares Problems" (1974,
// rev. 1995), chapters 14, 20 and 23.
package lsei

import (
	"math"

	"github.com/corvid-opt/nonlin/internal/blas"
)

const (
	zero = 0.0
	one  = 1.0
	two  = 2.0
	four = 4.0
	eps  = float64(7)/3 - float64(4)/3 - 1.
)

// Status reports how a solve in this package concluded.
type Status int

const (
	OK Status = iota
	HasSolution
	BadArgument
	NNLSExceedMaxIter
	ConsIncompatible
	LSISingularE
	LSEISingularC
	HFTIRankDefect
)

func (s Status) String() string {
	switch s {
	case HasSolution:
		return "HAS_SOLUTION"
	case BadArgument:
		return "BAD_ARGUMENT"
	case NNLSExceedMaxIter:
		return "NNLS_EXCEED_MAX_ITER"
	case ConsIncompatible:
		return "CONSTRAINTS_INCOMPATIBLE"
	case LSISingularE:
		return "LSI_SINGULAR_E"
	case LSEISingularC:
		return "LSEI_SINGULAR_C"
	case HFTIRankDefect:
		return "HFTI_RANK_DEFECT"
	default:
		return "OK"
	}
}

func ddot(n int, dx []float64, incx int, dy []float64, incy int) float64 {
	return blas.Ddot(n, dx, incx, dy, incy)
}

func dcopy(n int, dx []float64, incx int, dy []float64, incy int) {
	blas.Dcopy(n, dx, incx, dy, incy)
}

func daxpy(n int, da float64, dx []float64, incx int, dy []float64, incy int) {
	blas.Daxpy(n, da, dx, incx, dy, incy)
}

func dnrm2(n int, x []float64, incx int) float64 {
	return blas.Dnrm2(n, x, incx)
}

func dzero(x []float64) {
	blas.Dzero(x)
}

// LSEI solves min ||aObj*x - bObj||2 subject to aEq*x = bEq and
// aIneq*x >= bIneq.
//   - aObj is m x n, aEq is mc x n with rank(aEq) = mc < n, aIneq is mg x n
//   - on return x holds the solution, w[:mc] the equality multipliers,
//     w[mc:mc+mg] the inequality multipliers
func LSEI(
	aEq []float64, bEq []float64,
	aObj []float64, bObj []float64,
	aIneq []float64, bIneq []float64,
	ldAEq, mc, ldAObj, me, ldAIneq, mg, n int,
	x []float64,
	w []float64,
	jw []int,
	maxIterLs int,
) (norm float64, mode Status) {

	if n < 1 || mc > n {
		return math.NaN(), BadArgument
	}
	if n > len(x) || mc > len(x) ||
		mc < 0 || mc > len(aEq) || mc > len(bEq) ||
		me < 0 || me > len(aObj) || me > len(bObj) ||
		mg < 0 || mg > len(aIneq) || mg > len(bIneq) {
		panic("lsei: bound check error")
	}

	// free is the number of columns of x left once the mc equality rows
	// have pinned down a leading block; the workspace w is carved up
	// into the pieces the reduced LSI/HFTI solve below needs.
	free := n - mc
	cursor := mc
	reducedWork := w[cursor : cursor+(free+1)*(mg+2)+2*mg]
	cursor += len(reducedWork)
	pivots := w[cursor : cursor+mc]
	cursor += len(pivots)
	objTail := w[cursor : cursor+me*free]
	cursor += len(objTail)
	objResid := w[cursor : cursor+me]
	cursor += len(objResid)
	ineqTail := w[cursor : cursor+mg*free]

	if mc > len(pivots) || me > len(objResid) {
		panic("lsei: bound check error")
	}

	// Triangularize the equality block and carry the same Householder
	// factors into the objective and inequality rows.
	for i := 0; i < mc; i++ {
		j := min(i+1, ldAEq-1)
		pivots[i] = reflectorGen(i, i+1, n, aEq[i:], ldAEq)
		reflectorApply(i, i+1, n, aEq[i:], ldAEq, pivots[i], aEq[j:], ldAEq, 1, mc-i-1)
		reflectorApply(i, i+1, n, aEq[i:], ldAEq, pivots[i], aObj, ldAObj, 1, me)
		reflectorApply(i, i+1, n, aEq[i:], ldAEq, pivots[i], aIneq, ldAIneq, 1, mg)
	}

	// Back-substitute the now-triangular equality block for the
	// pinned leading components of x.
	for i := 0; i < mc; i++ {
		diag := aEq[i+ldAEq*i]
		if math.Abs(diag) < eps {
			return math.NaN(), LSEISingularC
		}
		x[i] = (bEq[i] - ddot(i, aEq[i:], ldAEq, x, 1)) / diag
	}

	dzero(reducedWork[:mg])

	if mc < n {
		for i := 0; i < me; i++ {
			objResid[i] = bObj[i] - ddot(mc, aObj[i:], ldAObj, x, 1)
		}

		if free > 0 {
			if me > len(objTail) || mg > len(ineqTail) {
				panic("lsei: bound check error")
			}
			for i := 0; i < me; i++ {
				dcopy(free, aObj[i+ldAObj*mc:], ldAObj, objTail[i:], me)
			}
			for i := 0; i < mg; i++ {
				dcopy(free, aIneq[i+ldAIneq*mc:], ldAIneq, ineqTail[i:], mg)
			}
		}

		if mg > 0 {
			for i := 0; i < mg; i++ {
				bIneq[i] -= ddot(mc, aIneq[i:], ldAIneq, x, 1)
			}
			norm, mode = LSI(objTail, objResid, ineqTail, bIneq, me, me, mg, mg, free, x[mc:n], reducedWork, jw, maxIterLs)
			if mc == 0 {
				return
			}
			if mode != HasSolution {
				return math.NaN(), mode
			}
			t := dnrm2(mc, x, 1)
			norm = math.Sqrt(norm*norm + t*t)
		} else {
			k, t := max(ldAObj, n), math.Sqrt(eps)
			var nrm [1]float64
			rank := HFTI(objTail, me, me, free, objResid, k, 1, t, nrm[:], w, w[free:], jw)
			norm = nrm[0]
			dcopy(free, objResid, 1, x[mc:n], 1)
			if rank != free {
				return norm, HFTIRankDefect
			}
		}
	}
	for i := 0; i < me; i++ {
		bObj[i] = ddot(n, aObj[i:], ldAObj, x, 1) - bObj[i]
	}
	for i := 0; i < mc; i++ {
		bEq[i] = ddot(me, aObj[i*ldAObj:], 1, bObj, 1) -
			ddot(mg, aIneq[i*ldAIneq:], 1, reducedWork[:mg], 1)
	}
	for i := mc - 1; i >= 0; i-- {
		reflectorApply(i, i+1, n, aEq[i:], ldAEq, pivots[i], x, 1, 1, 1)
	}
	for i := mc - 1; i >= 0; i-- {
		j := min(i+1, ldAEq-1)
		w[i] = (bEq[i] - ddot(mc-i-1, aEq[j+ldAEq*i:], 1, w[j:], 1)) / aEq[i+ldAEq*i]
	}
	mode = HasSolution
	return
}

// LSI solves min ||aObj*x - bObj||2 subject to aIneq*x >= bIneq, where
// aObj is m x n with rank(aObj) = n.
func LSI(
	aObj []float64, bObj []float64,
	aIneq []float64, bIneq []float64,
	ldAObj, me, ldAIneq, mg, n int,
	x []float64,
	w []float64,
	jw []int,
	maxIterLs int) (xnorm float64, mode Status) {

	if n < 1 {
		return 0, BadArgument
	}

	for i := 0; i < n; i++ {
		j := min(i+1, n-1)
		scale := reflectorGen(i, i+1, me, aObj[i*ldAObj:], 1)
		reflectorApply(i, i+1, me, aObj[i*ldAObj:], 1, scale, aObj[j*ldAObj:], 1, ldAObj, n-i-1)
		reflectorApply(i, i+1, me, aObj[i*ldAObj:], 1, scale, bObj, 1, 1, 1)
	}

	for i := 0; i < mg; i++ {
		for j := 0; j < n; j++ {
			diag := aObj[j+ldAObj*j]
			if math.Abs(diag) < eps || math.IsNaN(diag) {
				return math.NaN(), LSISingularE
			}
			aIneq[i+ldAIneq*j] = (aIneq[i+ldAIneq*j] - ddot(j, aIneq[i:], ldAIneq, aObj[j*ldAObj:], 1)) / diag
		}
		bIneq[i] -= ddot(n, aIneq[i:], ldAIneq, bObj, 1)
	}

	if xnorm, mode = LDP(mg, n, aIneq, ldAIneq, bIneq, x, w, jw, maxIterLs); mode == HasSolution {
		daxpy(n, one, bObj, 1, x, 1)
		for i := n - 1; i >= 0; i-- {
			j := min(i+1, n-1)
			x[i] = (x[i] - ddot(n-i-1, aObj[i+ldAObj*j:], ldAObj, x[j:], 1)) / aObj[i+ldAObj*i]
		}
		j := min(n, me-1)
		t := dnrm2(me-n, bObj[j:], 1)
		xnorm = math.Sqrt(xnorm*xnorm + t*t)
	}
	return
}

// LDP solves min ||x||2 subject to aIneq*x >= bIneq by reducing to NNLS
// on the augmented system [aIneq : bIneq] (ch. 23, algorithm 23.27).
// w[:m] receives the inequality multipliers on return.
func LDP(
	m, n int,
	aIneq []float64, ldAIneq int,
	bIneq []float64,
	x []float64,
	w []float64,
	jw []int,
	maxIter int,
) (xnorm float64, mode Status) {

	if n <= 0 {
		return math.NaN(), BadArgument
	}
	if m <= 0 {
		return 0, OK
	}

	if m > ldAIneq || ldAIneq*n > len(aIneq) || m > len(bIneq) || n > len(x) || (n+1)*(m+2)+2*m > len(w) || m > len(jw) {
		panic("lsei: bound check error")
	}

	cursor := 0
	augmented := w[cursor : cursor+m*(n+1)]
	cursor += len(augmented)
	target := w[cursor : cursor+(n+1)]
	cursor += len(target)
	scratch := w[cursor : cursor+(n+1)]
	cursor += len(scratch)
	primal := w[cursor : cursor+m]
	cursor += len(primal)
	aux := w[cursor : cursor+m]

	for j := 0; j < m; j++ {
		dcopy(n, aIneq[j:], ldAIneq, augmented[j*(n+1):], 1)
		augmented[j*(n+1)+n] = bIneq[j]
	}

	dzero(target[:n])
	target[n] = one

	var resid float64
	resid, mode = NNLS(n+1, m, augmented, n+1, target, primal, aux, scratch, jw, maxIter)

	var normalizer float64
	if mode == HasSolution {
		if resid <= zero {
			mode = ConsIncompatible
		} else {
			normalizer = one - ddot(m, bIneq, 1, primal, 1)
			if math.IsNaN(normalizer) || normalizer < eps {
				mode = ConsIncompatible
			}
		}
	}
	if mode != HasSolution {
		return math.NaN(), mode
	}

	normalizer = one / normalizer
	for j := 0; j < n; j++ {
		x[j] = ddot(m, aIneq[ldAIneq*j:], 1, primal, 1) * normalizer
	}

	for j := 0; j < m; j++ {
		w[j] = primal[j] * normalizer
	}

	xnorm = dnrm2(n, x, 1)
	return
}
