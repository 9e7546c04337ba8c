// Copyright ©2025 nonlin authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solverrors

import (
	"errors"
	"testing"
)

func TestKindRoundTrips(t *testing.T) {
	cause := errors.New("factorization diverged")
	err := NumericalError(cause)

	if !As(err, Numerical) {
		t.Fatalf("As(err, Numerical) = false, want true")
	}
	if As(err, InvalidOption) {
		t.Fatalf("As(err, InvalidOption) = true, want false")
	}
	if got, want := err.Error(), "NUMERICAL: factorization diverged"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestWrapNilIsNil(t *testing.T) {
	if NumericalError(nil) != nil {
		t.Fatalf("NumericalError(nil) != nil")
	}
}

func TestEachKindWraps(t *testing.T) {
	cause := errors.New("x")
	cases := []struct {
		err  error
		kind Kind
	}{
		{SubproblemInfeasibleError(cause), SubproblemInfeasible},
		{UnboundedError(cause), Unbounded},
		{InvalidOptionError(cause), InvalidOption},
		{OracleError(cause), Oracle},
	}
	for _, c := range cases {
		if !As(c.err, c.kind) {
			t.Errorf("As(err, %v) = false, want true", c.kind)
		}
	}
}
