// Copyright ©2025 nonlin authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lsei

import "math"

// reflectorGen builds the Householder reflector that zeros vec's
// entries at indices [from, to) below the pivot at index p (the
// pivot itself is clobbered with the reflected length). Returns the
// scalar needed by reflectorApply to actually carry out the
// reflection later; a zero pivot vector is left untouched and the
// scalar is reported as zero. Lawson & Hanson ch. 10.
func reflectorGen(p, from, to int, vec []float64, stride int) (scale float64) {
	if p < 0 || p >= from || from >= to {
		return
	}

	pivotIdx := uint(p * stride)
	startIdx := uint(from * stride)
	lastIdx := uint((to - 1) * stride)
	vecLen := uint(len(vec))
	if to < 0 || stride <= 0 || pivotIdx >= vecLen || startIdx >= vecLen || lastIdx >= vecLen {
		panic("lsei: bound check error")
	}

	peak := math.Abs(vec[pivotIdx])
	for j := startIdx; j <= lastIdx; j += uint(stride) {
		peak = math.Max(math.Abs(vec[j]), peak)
	}
	if peak <= zero {
		return
	}

	inv := one / peak
	sumSq := math.Pow(vec[pivotIdx]*inv, 2)
	for j := startIdx; j <= lastIdx; j += uint(stride) {
		sumSq += math.Pow(vec[j]*inv, 2)
	}

	length := peak * math.Sqrt(sumSq)
	if vec[pivotIdx] > zero {
		length = -length
	}

	scale = vec[pivotIdx] - length
	vec[pivotIdx] = length
	return
}

// reflectorApply carries out the reflection reflectorGen built (pivot
// p, reflector vec with stride vecStride, pivot scalar scale) against
// numVecs column vectors packed into dst (column stride colStride, row
// stride rowStride).
func reflectorApply(p, from, to int, vec []float64, vecStride int, scale float64, dst []float64, rowStride, colStride, numVecs int) {
	if p < 0 || p >= from || from >= to || numVecs <= 0 {
		return
	}

	denom := vec[p*vecStride] * scale
	if denom >= zero {
		return
	}
	denom = one / denom

	base := uint(rowStride * p)
	step := uint(rowStride * (from - p))
	startIdx := uint(from * vecStride)
	lastIdx := uint((to - 1) * vecStride)
	vecLen := uint(len(vec))
	dstLen := uint(len(dst))
	lastCol := base + uint(colStride)*(uint(numVecs)-1)
	if to < 0 || vecStride <= 0 || startIdx >= vecLen || lastIdx >= vecLen || base >= dstLen || lastCol >= dstLen {
		panic("lsei: bound check error")
	}

	for col := base; col <= lastCol; col += uint(colStride) {
		rowFrom, rowTo := col+step, (col+step)+uint(to-from-1)*uint(rowStride)
		if rowFrom >= dstLen || rowTo >= dstLen {
			panic("lsei: bound check error")
		}
		acc := dst[col] * scale
		for vi, ri := startIdx, rowFrom; vi <= lastIdx && ri <= rowTo; {
			acc += dst[ri] * vec[vi]
			ri += uint(rowStride)
			vi += uint(vecStride)
		}
		if acc == zero {
			continue
		}
		acc *= denom
		dst[col] += acc * scale
		for vi, ri := startIdx, rowFrom; vi <= lastIdx && ri <= rowTo; {
			dst[ri] += acc * vec[vi]
			ri += uint(rowStride)
			vi += uint(vecStride)
		}
	}
}

// rotationGen returns the cosine/sine of the 2x2 Givens rotation that
// zeros the second entry of (a, b), plus the rotated length of (a, b).
func rotationGen(a, b float64) (cosine, sine, length float64) {
	absA, absB := math.Abs(a), math.Abs(b)
	switch {
	case absA > absB:
		ratio := b / a
		hyp := math.Sqrt(1 + ratio*ratio)
		cosine = math.Copysign(1/hyp, a)
		sine = cosine * ratio
		length = absA * hyp
	case absB > 0:
		ratio := a / b
		hyp := math.Sqrt(1 + ratio*ratio)
		sine = math.Copysign(1/hyp, b)
		cosine = sine * ratio
		length = absB * hyp
	default:
		sine = 1
	}
	return
}

// rotationApply rotates the pair (x, y) by the cosine/sine rotationGen
// produced.
func rotationApply(cosine, sine, x, y float64) (xr, yr float64) {
	xr = cosine*x + sine*y
	yr = -sine*x + cosine*y
	return
}
