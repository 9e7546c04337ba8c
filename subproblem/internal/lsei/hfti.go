// Copyright ©2025 nonlin authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lsei

import "math"

// HFTI (Householder Forward Triangulation with column Interchanges)
// solves the possibly rank-deficient least-squares problem AX ~= B by
// column-pivoted Householder triangulation followed by a backward
// triangulation of the rank-k row block (ch. 14, algorithm 14.9).
// Returns the computed pseudo-rank k.
func HFTI(
	a []float64, mda, m, n int,
	b []float64, mdb, nb int,
	tau float64,
	norm []float64,
	colNormSq, pivotScale []float64, perm []int) int {

	const refreshTol = 0.001

	rank := min(m, n)
	if rank <= 0 {
		return 0
	}

	if n > len(colNormSq) || rank > len(colNormSq) || rank > len(perm) {
		panic("lsei: bound check error")
	}

	// Column-pivoted forward triangulation: at step j, pick the
	// remaining column with the largest trailing norm, swap it into
	// place, then reflect it to zero below the diagonal. colNormSq is
	// downdated cheaply each step and only recomputed from scratch
	// when that downdate has drifted too far from the true norm.
	peakNormSq := zero
	for j := 0; j < rank; j++ {
		pivot := j
		if j > 0 {
			best := math.NaN()
			for l := j; l < n; l++ {
				t := a[(j-1)+mda*l]
				if colNormSq[l] -= t * t; !(colNormSq[l] <= best) {
					pivot, best = l, colNormSq[l]
				}
			}
		}
		if j == 0 || refreshTol*colNormSq[pivot] < peakNormSq*eps {
			best := math.NaN()
			for l := j; l < n; l++ {
				sm := zero
				for _, t := range a[j+mda*l : m+mda*l] {
					sm += t * t
				}
				if colNormSq[l] = sm; !(colNormSq[l] <= best) {
					pivot, best = l, colNormSq[l]
				}
			}
			peakNormSq = colNormSq[pivot]
		}

		perm[j] = pivot
		if perm[j] != j {
			target, src := a[mda*j:mda*j+m], a[mda*pivot:mda*pivot+m]
			if m > len(target) || m > len(src) {
				panic("lsei: bound check error")
			}
			for i := 0; i < m; i++ {
				target[i], src[i] = src[i], target[i]
			}
			colNormSq[pivot] = colNormSq[j]
		}

		next := min(j+1, n-1)
		colNormSq[j] = reflectorGen(j, j+1, m, a[mda*j:], 1)
		reflectorApply(j, j+1, m, a[mda*j:], 1, colNormSq[j], a[mda*next:], 1, mda, n-j-1)
		reflectorApply(j, j+1, m, a[mda*j:], 1, colNormSq[j], b, 1, mdb, nb)
	}

	// Declare everything below the tau threshold numerically rank
	// deficient: k is the pseudo-rank actually used below.
	k := rank
	for j := 0; j < rank; j++ {
		if math.Abs(a[j+mda*j]) <= tau {
			k = j
			break
		}
	}

	if k > len(a) || k > len(b) || k > len(pivotScale) || nb > len(norm) {
		panic("lsei: bound check error")
	}

	for jb := 0; jb < nb; jb++ {
		sm := zero
		if k < m {
			for _, t := range b[mdb*jb+k : mdb*jb+m] {
				sm += t * t
			}
		}
		norm[jb] = math.Sqrt(sm)
	}

	if k > 0 {
		if k < n {
			for i := k - 1; i >= 0; i-- {
				pivotScale[i] = reflectorGen(i, k, n, a[i:], mda)
				reflectorApply(i, k, n, a[i:], mda, pivotScale[i], a, mda, 1, i)
			}
		}

		for jb := 0; jb < nb; jb++ {
			col := b[mdb*jb:]
			if k > len(col) || n > len(col) {
				panic("lsei: bound check error")
			}

			for i := k - 1; i >= 0; i-- {
				sm := zero
				for j := uint(i + 1); j < uint(k); j++ {
					sm += a[i+mda*int(j)] * col[j]
				}
				col[i] = (col[i] - sm) / a[i+mda*i]
			}

			if k < n {
				dzero(col[k:n])
				for i := 0; i < k; i++ {
					reflectorApply(i, k, n, a[i:], mda, pivotScale[i], col, 1, mdb, 1)
				}
			}

			for j := rank - 1; j >= 0; j-- {
				if l := perm[j]; perm[j] != j {
					col[l], col[j] = col[j], col[l]
				}
			}
		}
	} else if nb > 0 {
		for jb := 0; jb < nb; jb++ {
			dzero(b[mdb*jb : mdb*jb+n])
		}
	}

	return k
}
