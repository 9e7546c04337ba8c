// Copyright ©2025 nonlin authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lsei

import "math"

// NNLS solves min ||Ax - b||2 subject to x >= 0 by the Lawson-Hanson
// active-set method (ch. 23, algorithm 23.10). a is m x n column-major
// and is overwritten with the implicit QA product; b is overwritten
// with Qb. x receives the primal solution, w the dual (constraint
// weight) vector.
func NNLS(
	m, n int,
	a []float64, mda int,
	b []float64,
	x []float64,
	w []float64,
	z []float64, cols []int,
	maxIter int) (float64, Status) {

	const pivotTol = 0.01

	if m <= 0 || n <= 0 || mda < m ||
		len(a) < mda*n || len(b) < m || len(x) < n || len(w) < n || len(z) < m || len(cols) < n {
		return math.NaN(), BadArgument
	}

	if maxIter <= 0 {
		maxIter = 3 * n
	}

	// active counts how many columns have entered the active set
	// (the free/unclamped variables); free is the boundary between
	// the active prefix cols[:free] and the still-zeroed suffix.
	active := 0
	free := 0

	cols = cols[:n]
	for i := range cols {
		cols[i] = i
	}

	dzero(x[:n])

	iter := 0
	finish := func() (resid float64, mode Status) {
		if active < m {
			resid = dnrm2(m-active, b[active:], 1)
		} else {
			dzero(w[:n])
		}
		if iter > maxIter {
			mode = NNLSExceedMaxIter
		} else {
			mode = HasSolution
		}
		return
	}

	for {
		if free >= n || active >= m {
			return finish()
		}

		for _, j := range cols[free:] {
			w[j] = ddot(m-active, a[active+mda*j:], 1, b[active:], 1)
		}

		for {
			best, bestIdx := zero, 0
			for i, j := range cols[free:] {
				if w[j] > best {
					best, bestIdx = w[j], free+i
				}
			}

			if best <= zero {
				return finish()
			}

			pick := bestIdx
			j := cols[pick]
			col := a[mda*j : mda*j+m : mda*j+m]

			saved := col[active]
			pivotScale := reflectorGen(active, active+1, m, col, 1)

			admit := false
			tailNorm := dnrm2(active, col, 1)
			if math.Abs(col[active])*pivotTol >= tailNorm*eps {
				copy(z[:m], b[:m])
				reflectorApply(active, active+1, m, col, 1, pivotScale, z, 1, 1, 1)
				candidate := z[active] / col[active]
				admit = candidate > zero
			}

			if !admit {
				col[active] = saved
				w[j] = zero
				continue
			}

			copy(b[:m], z[:m])

			cols[pick] = cols[free]
			cols[free] = j
			free++
			active++

			if free < n {
				for _, other := range cols[free:] {
					reflectorApply(active-1, active, m, col, 1, pivotScale, a[other*mda:], 1, mda, 1)
				}
			}
			if active < m {
				dzero(col[active:m])
			}
			w[j] = zero
			break
		}

		for {
			for row, prevCol := active-1, -1; row >= 0; row-- {
				if prevCol >= 0 {
					daxpy(row+1, -z[row+1], a[prevCol*mda:], 1, z, 1)
				}
				prevCol = cols[row]
				z[row] /= a[row+prevCol*mda]
			}

			if iter++; iter > maxIter {
				return finish()
			}

			step, blocker := two, -1
			for row, colIdx := range cols[:active] {
				if z[row] <= zero {
					ratio := -x[colIdx] / (z[row] - x[colIdx])
					if step > ratio {
						step, blocker = ratio, row
					}
				}
			}

			if blocker < 0 {
				for row, colIdx := range cols[:active] {
					x[colIdx] = z[row]
				}
				break
			}

			for row, colIdx := range cols[:active] {
				x[colIdx] += step * (z[row] - x[colIdx])
			}

			leaving := cols[blocker]
			x[leaving] = zero
			for row := blocker + 1; row < active; row++ {
				colIdx := cols[row]
				colVec := a[colIdx*mda:]
				cols[row-1] = colIdx
				var cosine, sine float64
				cosine, sine, colVec[row-1] = rotationGen(colVec[row-1], colVec[row])
				colVec[row] = zero
				for l := 0; l < n; l++ {
					if l != colIdx {
						other := a[l*mda : l*mda+row+1 : l*mda+row+1]
						other[row-1], other[row] = rotationApply(cosine, sine, other[row-1], other[row])
					}
				}
				b[row-1], b[row] = rotationApply(cosine, sine, b[row-1], b[row])
			}

			active--
			free--
			cols[free] = leaving

			copy(z[:m], b[:m])
		}
	}
}
