// Copyright ©2025 nonlin authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package linalg

import "math"

// CSC is a compressed-sparse-column symmetric matrix (one triangle
// stored). Columns are built left to right: Insert appends entries to
// the current column, FinalizeColumn closes it and, if regularization
// is enabled, reserves a diagonal slot for a later SetRegularization
// call. Grounded on CSCSymmetricMatrix (original_source/uno/linear_algebra).
type CSC struct {
	Dimension int

	ColumnStarts []int // len Dimension+1, ColumnStarts[j] <= ColumnStarts[j+1]
	RowIndices   []int
	Entries      []float64

	diagonal        []float64
	currentColumn   int
	useRegularization bool
	regIndex        []int // index into Entries of the regularization slot per column, -1 if none
}

// NewCSC returns an empty dimension x dimension CSC matrix. When
// useRegularization is true, FinalizeColumn reserves a diagonal slot in
// every column so SetRegularization can later perturb it without
// re-allocating the sparsity pattern.
func NewCSC(dimension int, capacity int, useRegularization bool) *CSC {
	return &CSC{
		Dimension:         dimension,
		ColumnStarts:      make([]int, dimension+1),
		RowIndices:        make([]int, 0, capacity),
		Entries:           make([]float64, 0, capacity),
		diagonal:          make([]float64, dimension),
		useRegularization: useRegularization,
		regIndex:          make([]int, dimension),
	}
}

// Insert appends one entry to the column currently being built. column
// must equal the column most recently opened (i.e. not yet finalized).
func (m *CSC) Insert(row, column int, value float64) {
	if column != m.currentColumn {
		panic("linalg: CSC.Insert: previous columns must be finalized first")
	}
	m.Entries = append(m.Entries, value)
	m.RowIndices = append(m.RowIndices, row)
	m.ColumnStarts[column+1]++
	if row == column {
		m.diagonal[row] += value
	}
}

// FinalizeColumn closes `column`, which must be the column currently
// being built, and advances to the next one.
func (m *CSC) FinalizeColumn(column int) {
	if column != m.currentColumn {
		panic("linalg: CSC.FinalizeColumn: not the current column")
	}
	if column >= m.Dimension {
		panic("linalg: CSC.FinalizeColumn: dimension exceeded")
	}
	m.regIndex[column] = -1
	if m.useRegularization {
		m.regIndex[column] = len(m.Entries)
		m.Insert(column, column, 0)
	}
	m.currentColumn++
	if column < m.Dimension-1 {
		m.ColumnStarts[column+2] = m.ColumnStarts[column+1]
	}
}

// ForEach visits every stored (row, col, value) triplet in column-major order.
func (m *CSC) ForEach(f func(row, col int, value float64)) {
	for col := 0; col < m.Dimension; col++ {
		for k := m.ColumnStarts[col]; k < m.ColumnStarts[col+1]; k++ {
			f(m.RowIndices[k], col, m.Entries[k])
		}
	}
}

// ForEachInColumn visits the (row, value) pairs stored in a single column.
func (m *CSC) ForEachInColumn(column int, f func(row int, value float64)) {
	for k := m.ColumnStarts[column]; k < m.ColumnStarts[column+1]; k++ {
		f(m.RowIndices[k], m.Entries[k])
	}
}

// Diagonal returns the accumulated diagonal entry for a row (sum of all
// inserted (row, row) contributions plus any regularization added by
// SetRegularization).
func (m *CSC) Diagonal(row int) float64 {
	return m.diagonal[row]
}

// SmallestDiagonalEntry returns min_i Diagonal(i), or +Inf for a 0-dimensional matrix.
func (m *CSC) SmallestDiagonalEntry() float64 {
	smallest := math.Inf(1)
	for _, d := range m.diagonal {
		smallest = math.Min(smallest, d)
	}
	return smallest
}

// SetRegularization adds regularization(i) to the diagonal slot reserved
// for column i during FinalizeColumn. Panics if useRegularization was false.
func (m *CSC) SetRegularization(regularization func(index int) float64) {
	if !m.useRegularization {
		panic("linalg: CSC.SetRegularization: matrix was not built with regularization slots")
	}
	for col := 0; col < m.Dimension; col++ {
		idx := m.regIndex[col]
		delta := regularization(col)
		m.Entries[idx] += delta
		m.diagonal[col] += delta
	}
}

// Reset empties the matrix so it can be rebuilt column by column.
func (m *CSC) Reset() {
	m.Entries = m.Entries[:0]
	m.RowIndices = m.RowIndices[:0]
	for i := range m.ColumnStarts {
		m.ColumnStarts[i] = 0
	}
	for i := range m.diagonal {
		m.diagonal[i] = 0
	}
	m.currentColumn = 0
}

// Identity returns the n x n identity matrix in CSC form.
func Identity(n int) *CSC {
	m := NewCSC(n, n, false)
	for i := 0; i < n; i++ {
		m.Insert(i, i, 1)
		m.FinalizeColumn(i)
	}
	return m
}

// MulVec computes y = A*x for the symmetric matrix stored as one
// triangle (both (row,col) and (col,row) contributions are applied,
// with the diagonal counted once).
func (m *CSC) MulVec(x, y []float64) {
	for i := range y {
		y[i] = 0
	}
	m.ForEach(func(row, col int, value float64) {
		y[row] += value * x[col]
		if row != col {
			y[col] += value * x[row]
		}
	})
}
