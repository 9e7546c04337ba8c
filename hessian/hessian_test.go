// Copyright ©2025 nonlin authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hessian

import (
	"testing"

	"github.com/corvid-opt/nonlin/internal/blas"
	"github.com/corvid-opt/nonlin/iterate"
	"github.com/corvid-opt/nonlin/linalg"
	"github.com/corvid-opt/nonlin/model"
)

// diagModel is a minimal model.Model whose Lagrangian Hessian is a
// fixed diagonal matrix, used to exercise the Hessian models without
// pulling in a full NLP.
type diagModel struct {
	diag []float64
}

func (d diagModel) N() int                                { return len(d.diag) }
func (d diagModel) M() int                                { return 0 }
func (d diagModel) ConstraintStatus(int) model.ConstraintStatus { return model.Equality }
func (d diagModel) VariableBounds() []model.Bound         { return nil }
func (d diagModel) ConstraintBounds() []model.Bound       { return nil }
func (d diagModel) ObjectiveSense() float64               { return 1 }
func (d diagModel) Objective([]float64) float64           { return 0 }
func (d diagModel) ObjectiveGradient([]float64, []float64) {}
func (d diagModel) Constraints([]float64, []float64)      {}
func (d diagModel) ConstraintGradient(int, []float64, []float64) {}
func (d diagModel) Jacobian([]float64) *linalg.COO        { return linalg.NewCOO(0, len(d.diag), 0) }

func (d diagModel) LagrangianHessian(_ []float64, _ float64, _ []float64) *linalg.CSC {
	h := linalg.NewCSC(len(d.diag), len(d.diag), false)
	for i, v := range d.diag {
		h.Insert(i, i, v)
		h.FinalizeColumn(i)
	}
	return h
}

func denseFromCSC(h *linalg.CSC) []float64 {
	out := make([]float64, h.Dimension)
	h.ForEach(func(row, col int, value float64) {
		if row == col {
			out[row] += value
		}
	})
	return out
}

func TestZeroModel(t *testing.T) {
	z := Zero{}
	it := iterate.New([]float64{1, 2}, iterate.NewMultipliers(2, 0), diagModel{diag: []float64{1, 1}})
	h, err := z.Evaluate(it, 2, 0, 1, nil)
	if err != nil {
		t.Fatalf("Zero.Evaluate: %v", err)
	}
	if h.Dimension != 2 || len(h.Entries) != 0 {
		t.Fatalf("Zero.Evaluate: want empty 2x2, got dim=%d nnz=%d", h.Dimension, len(h.Entries))
	}
}

func TestExactModel(t *testing.T) {
	mdl := diagModel{diag: []float64{3, -1}}
	it := iterate.New([]float64{0, 0}, iterate.NewMultipliers(2, 0), mdl)
	h, err := Exact{}.Evaluate(it, 2, 0, 1, nil)
	if err != nil {
		t.Fatalf("Exact.Evaluate: %v", err)
	}
	got := denseFromCSC(h)
	want := []float64{3, -1}
	if !blas.AlmostEqualVec(got, want, 1e-15) {
		t.Fatalf("Exact.Evaluate: got %v want %v", got, want)
	}
}

func TestConvexifiedRegularizesToPositiveDefinite(t *testing.T) {
	mdl := diagModel{diag: []float64{-2, 5}}
	it := iterate.New([]float64{0, 0}, iterate.NewMultipliers(2, 0), mdl)

	c := NewConvexified(DenseLinearSolver{})
	h, err := c.Evaluate(it, 2, 0, 1, nil)
	if err != nil {
		t.Fatalf("Convexified.Evaluate: %v", err)
	}

	solver := DenseLinearSolver{}
	f, err := solver.Factorize(kktFromHessian(h, 2, 0), 2)
	if err != nil {
		t.Fatalf("Factorize: %v", err)
	}
	if !f.Inertia().Matches(2, 0) {
		t.Fatalf("Convexified.Evaluate: inertia %+v does not match (2,0,0)", f.Inertia())
	}
	if c.deltaLast <= 0 {
		t.Fatalf("Convexified.Evaluate: expected a positive delta to be recorded")
	}
}

func TestConvexifiedAlreadyPositiveDefiniteNeedsNoDelta(t *testing.T) {
	mdl := diagModel{diag: []float64{2, 5}}
	it := iterate.New([]float64{0, 0}, iterate.NewMultipliers(2, 0), mdl)

	c := NewConvexified(DenseLinearSolver{})
	h, err := c.Evaluate(it, 2, 0, 1, nil)
	if err != nil {
		t.Fatalf("Convexified.Evaluate: %v", err)
	}
	got := denseFromCSC(h)
	want := []float64{2, 5}
	if !blas.AlmostEqualVec(got, want, 1e-12) {
		t.Fatalf("Convexified.Evaluate: expected unmodified diagonal, got %v", got)
	}
	if c.deltaLast != 0 {
		t.Fatalf("Convexified.Evaluate: expected no delta persisted, got %v", c.deltaLast)
	}
}

func TestConvexifiedNotifyAcceptedHalves(t *testing.T) {
	c := NewConvexified(DenseLinearSolver{})
	c.deltaLast = 4
	c.NotifyAccepted()
	if c.deltaLast != 2 {
		t.Fatalf("NotifyAccepted: got %v want 2", c.deltaLast)
	}
}

func TestFactoryUnknownModel(t *testing.T) {
	if _, err := Factory("bogus", false, DenseLinearSolver{}); err == nil {
		t.Fatal("Factory: expected error for unknown model name")
	}
}

func TestFactoryDispatch(t *testing.T) {
	if m, err := Factory("zero", false, DenseLinearSolver{}); err != nil || m == nil {
		t.Fatalf("Factory(zero): %v, %v", m, err)
	}
	if m, err := Factory("exact", false, DenseLinearSolver{}); err != nil {
		t.Fatalf("Factory(exact, no convexify): %v", err)
	} else if _, ok := m.(Exact); !ok {
		t.Fatalf("Factory(exact, no convexify): got %T, want Exact", m)
	}
	if m, err := Factory("exact", true, DenseLinearSolver{}); err != nil {
		t.Fatalf("Factory(exact, convexify): %v", err)
	} else if _, ok := m.(*Convexified); !ok {
		t.Fatalf("Factory(exact, convexify): got %T, want *Convexified", m)
	}
}
