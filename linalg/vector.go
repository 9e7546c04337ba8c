// Copyright ©2025 nonlin authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package linalg provides the dense vector helpers and the COO/CSC
// sparse matrix types the solver core builds its subproblems on. It
// keeps a single monomorphic representation per concern rather than the
// templated expression-tree sophistication of the source this package
// was distilled from (see DESIGN.md).
package linalg

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Norm selects which vector norm a component should use to measure
// constraint violation or residuals.
type Norm int

const (
	L1 Norm = iota
	L2
	Inf
)

// AddVectors sets r = x + s*y componentwise; aliasing r == x is permitted.
func AddVectors(x, y []float64, s float64, r []float64) {
	for i := range x {
		r[i] = x[i] + s*y[i]
	}
}

// Dot returns the inner product of x and y.
func Dot(x, y []float64) float64 {
	return floats.Dot(x, y)
}

// NormVec computes ||x|| under the selected norm.
func NormVec(n Norm, x []float64) float64 {
	switch n {
	case L1:
		sum := 0.0
		for _, v := range x {
			sum += math.Abs(v)
		}
		return sum
	case L2:
		return floats.Norm(x, 2)
	case Inf:
		m := 0.0
		for _, v := range x {
			m = math.Max(m, math.Abs(v))
		}
		return m
	default:
		panic("linalg: unknown norm")
	}
}

// ViolationL1 sums the one-sided bound violations of v against [lo, hi]
// pairs given as parallel slices: sum_j max(lo_j - v_j, v_j - hi_j, 0).
func ViolationL1(v []float64, lo, hi []float64) float64 {
	total := 0.0
	for j, vj := range v {
		if vj < lo[j] {
			total += lo[j] - vj
		} else if vj > hi[j] {
			total += vj - hi[j]
		}
	}
	return total
}
