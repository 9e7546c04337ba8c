// Copyright ©2025 nonlin authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package blas provides the small set of level-1 vector kernels the
// solver's dense subproblem machinery is built on: axpy, dot, scale,
// copy and the Euclidean norm, plus strided variants for column-major
// matrix access.
package blas

import "math"

// Daxpy computes dy := dy + da*dx over n elements with the given strides.
func Daxpy(n int, da float64, dx []float64, incx int, dy []float64, incy int) {
	if n <= 0 || da == 0.0 {
		return
	}
	if incx == 1 && incy == 1 {
		for i := 0; i < n; i++ {
			dy[i] += da * dx[i]
		}
		return
	}
	ix, iy := 0, 0
	for i := 0; i < n; i++ {
		dy[iy] += da * dx[ix]
		ix += incx
		iy += incy
	}
}

// Ddot computes the dot product of two strided vectors.
func Ddot(n int, dx []float64, incx int, dy []float64, incy int) (dot float64) {
	if n <= 0 {
		return 0
	}
	if incx == 1 && incy == 1 {
		for i := 0; i < n; i++ {
			dot += dx[i] * dy[i]
		}
		return dot
	}
	ix, iy := 0, 0
	for i := 0; i < n; i++ {
		dot += dx[ix] * dy[iy]
		ix += incx
		iy += incy
	}
	return dot
}

// Dcopy copies n elements from dx to dy, respecting strides.
func Dcopy(n int, dx []float64, incx int, dy []float64, incy int) {
	if n <= 0 {
		return
	}
	if incx == 1 && incy == 1 {
		copy(dy[:n], dx[:n])
		return
	}
	ix, iy := 0, 0
	for i := 0; i < n; i++ {
		dy[iy] = dx[ix]
		ix += incx
		iy += incy
	}
}

// Dscal scales n elements of dx by da in place.
func Dscal(n int, da float64, dx []float64, incx int) {
	if n <= 0 || incx <= 0 {
		return
	}
	ix := 0
	for i := 0; i < n; i++ {
		dx[ix] *= da
		ix += incx
	}
}

// Dnrm2 computes the Euclidean norm of x using the scaled-sum-of-squares
// method to avoid premature overflow/underflow.
func Dnrm2(n int, x []float64, incx int) float64 {
	if n < 1 || incx < 1 {
		return 0
	}
	if n == 1 {
		return math.Abs(x[0])
	}
	scale, ssq := 0.0, 1.0
	ix := 0
	for i := 0; i < n; i++ {
		if absxi := math.Abs(x[ix]); absxi > 0 {
			if scale < absxi {
				sxi := scale / absxi
				ssq = 1 + ssq*sxi*sxi
				scale = absxi
			} else {
				sxi := absxi / scale
				ssq += sxi * sxi
			}
		}
		ix += incx
	}
	return scale * math.Sqrt(ssq)
}

// Dzero fills dx with zero.
func Dzero(dx []float64) {
	for i := range dx {
		dx[i] = 0
	}
}

// AlmostEqual reports whether a and b differ by no more than tol.
func AlmostEqual(a, b, tol float64) bool {
	return a == b || math.Abs(a-b) <= tol
}

// AlmostEqualVec reports whether a and b are element-wise equal within tol.
func AlmostEqualVec(a, b []float64, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !AlmostEqual(a[i], b[i], tol) {
			return false
		}
	}
	return true
}
