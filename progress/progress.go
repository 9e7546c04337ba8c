// Copyright ©2025 nonlin authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package progress computes the scalar measures the constraint-relaxation
// and globalization strategies compare between iterates: infeasibility,
// (un)scaled optimality, predicted reductions, dual residuals and the
// combined KKT/complementarity error the penalty strategy uses to drive
// its penalty parameter.
package progress

import (
	"math"

	"github.com/corvid-opt/nonlin/linalg"
	"github.com/corvid-opt/nonlin/model"
)

// Infeasibility returns ||violation(c(x))||_p over the model's
// constraint bounds.
func Infeasibility(m model.Model, c []float64, norm linalg.Norm) float64 {
	bounds := m.ConstraintBounds()
	lo := make([]float64, len(bounds))
	hi := make([]float64, len(bounds))
	for j, b := range bounds {
		lo[j], hi[j] = b.Lower, b.Upper
	}
	switch norm {
	case linalg.L1:
		return linalg.ViolationL1(c, lo, hi)
	default:
		v := make([]float64, len(c))
		for j := range c {
			switch {
			case c[j] < lo[j]:
				v[j] = lo[j] - c[j]
			case c[j] > hi[j]:
				v[j] = c[j] - hi[j]
			}
		}
		return linalg.NormVec(norm, v)
	}
}

// PredictedInfeasibilityReduction is ||viol(c(x))|| - ||viol(c(x) +
// alpha*J(x)d)|| in the L1 norm.
func PredictedInfeasibilityReduction(m model.Model, c []float64, jac *linalg.COO, d []float64, alpha float64) float64 {
	current := Infeasibility(m, c, linalg.L1)
	n := m.N()
	mc := m.M()
	row := make([]float64, n)
	trial := make([]float64, mc)
	for j := 0; j < mc; j++ {
		jac.DenseRow(j, row)
		trial[j] = c[j] + alpha*linalg.Dot(row, d)
	}
	linearized := Infeasibility(m, trial, linalg.L1)
	return current - linearized
}

// PredictedOptimalityReduction is alpha*(-sigma*grad(f)^T d - 1/2*alpha*d^T
// H d) for a QP local model; pass a nil hd (or one of all zeros) for LP's
// first-order-only variant.
func PredictedOptimalityReduction(g, d []float64, hd []float64, sigma, alpha float64) float64 {
	linear := -sigma * linalg.Dot(g, d)
	quad := 0.0
	if hd != nil {
		quad = linalg.Dot(d, hd)
	}
	return alpha*linear - 0.5*alpha*alpha*quad
}

// ScaleFactor computes the s_d/s_c scaling:
// max(sMax, (sum1Norm)/(m+n)) / sMax.
func ScaleFactor(sum1Norm float64, mPlusN int, sMax float64) float64 {
	if mPlusN == 0 {
		return 1
	}
	return math.Max(sMax, sum1Norm/float64(mPlusN)) / sMax
}

// StationarityResidual returns ||grad(f) - J^T lambda - zL + zU||_p,
// unscaled.
func StationarityResidual(g []float64, jac *linalg.COO, lambda, zL, zU []float64, norm linalg.Norm) float64 {
	n := len(g)
	r := make([]float64, n)
	copy(r, g)
	jac.ForEach(func(row, col int, value float64) {
		r[col] -= value * lambda[row]
	})
	for i := 0; i < n; i++ {
		r[i] -= zL[i] - zU[i]
	}
	return linalg.NormVec(norm, r)
}

// ComplementaritySum computes the complementarity sum: for
// each strictly-interior bound variable, |z*(x - bound)| on whichever
// side z's sign selects; for each constraint, |(1-lambda)*(c - bound)|
// when violated, otherwise the analogous bound-style term scaled by
// lambda's sign.
func ComplementaritySum(m model.Model, x, zL, zU, c, lambda []float64) float64 {
	sum := 0.0
	vb := m.VariableBounds()
	for i, b := range vb {
		if x[i] <= b.Lower || x[i] >= b.Upper {
			continue
		}
		z := zL[i] - zU[i]
		switch {
		case z > 0:
			sum += math.Abs(z * (x[i] - b.Lower))
		case z < 0:
			sum += math.Abs(z * (x[i] - b.Upper))
		}
	}
	cb := m.ConstraintBounds()
	for j, b := range cb {
		switch {
		case c[j] < b.Lower:
			sum += math.Abs((1 - lambda[j]) * (c[j] - b.Lower))
		case c[j] > b.Upper:
			sum += math.Abs((1 - lambda[j]) * (c[j] - b.Upper))
		case lambda[j] > 0:
			sum += math.Abs(lambda[j] * (c[j] - b.Lower))
		case lambda[j] < 0:
			sum += math.Abs(lambda[j] * (c[j] - b.Upper))
		}
	}
	return sum
}

// CombinedError computes the combined stationarity/feasibility/complementarity
// error(x,z,lambda,rho): the L1
// norm of the Lagrangian gradient grad(L) = rho*grad(f) - J^T lambda -
// zL + zU, plus the complementarity sum.
func CombinedError(m model.Model, g []float64, jac *linalg.COO, x, zL, zU, c, lambda []float64, rho float64) float64 {
	n := len(g)
	grad := make([]float64, n)
	for i := 0; i < n; i++ {
		grad[i] = rho * g[i]
	}
	jac.ForEach(func(row, col int, value float64) {
		grad[col] -= value * lambda[row]
	})
	for i := 0; i < n; i++ {
		grad[i] -= zL[i] - zU[i]
	}
	return linalg.NormVec(linalg.L1, grad) + ComplementaritySum(m, x, zL, zU, c, lambda)
}

// PredictedMerit returns the merit-function predicted decrease
// residual(x) - m(d) for the exact-penalty update: residual
// is the ||violation(c(x))||_1 term and m(d) is its linearized value
// after the step, i.e. it equals PredictedInfeasibilityReduction at
// alpha=1.
func PredictedMerit(m model.Model, c []float64, jac *linalg.COO, d []float64) float64 {
	return PredictedInfeasibilityReduction(m, c, jac, d, 1)
}
