// Copyright ©2025 nonlin authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package linalg

// COO is a coordinate-format sparse matrix: parallel entries/row/column
// slices, one triplet per nonzero. Used by Model.Jacobian, where rows
// are appended constraint-by-constraint.
type COO struct {
	Rows, Cols   int
	Entries      []float64
	RowIndices   []int
	ColIndices   []int
}

// NewCOO returns an empty rows x cols COO matrix with capacity reserved
// for nnz entries.
func NewCOO(rows, cols, nnz int) *COO {
	return &COO{
		Rows: rows, Cols: cols,
		Entries:    make([]float64, 0, nnz),
		RowIndices: make([]int, 0, nnz),
		ColIndices: make([]int, 0, nnz),
	}
}

// Insert appends one (row, col, value) triplet.
func (m *COO) Insert(row, col int, value float64) {
	m.Entries = append(m.Entries, value)
	m.RowIndices = append(m.RowIndices, row)
	m.ColIndices = append(m.ColIndices, col)
}

// NNZ returns the number of stored nonzero entries.
func (m *COO) NNZ() int {
	return len(m.Entries)
}

// ForEach visits every stored (row, col, value) triplet.
func (m *COO) ForEach(f func(row, col int, value float64)) {
	for k, v := range m.Entries {
		f(m.RowIndices[k], m.ColIndices[k], v)
	}
}

// DenseRow materializes row `row` of the matrix into g (length Cols),
// which is zeroed first. Used to recover a single constraint gradient
// from a Jacobian stored in COO form.
func (m *COO) DenseRow(row int, g []float64) {
	for i := range g {
		g[i] = 0
	}
	for k, r := range m.RowIndices {
		if r == row {
			g[m.ColIndices[k]] += m.Entries[k]
		}
	}
}
