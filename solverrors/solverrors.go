// Copyright ©2025 nonlin authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package solverrors defines the small taxonomy of error kinds the
// solver core and its ingredients report, distinguishing failures a
// driver can recover from (try a smaller trust region, switch phase)
// from ones it cannot (a model that refuses to evaluate at all).
package solverrors

import (
	"github.com/pkg/errors"
)

// Kind classifies why an operation failed.
type Kind int

const (
	// Numerical covers factorization failures, NaN/Inf evaluations and
	// other floating-point breakdowns a caller may retry with a smaller
	// step or different regularization.
	Numerical Kind = iota
	// SubproblemInfeasible means the local model (QP/LP/IPM) has no
	// feasible point; the caller should switch to feasibility
	// restoration or shrink the trust region.
	SubproblemInfeasible
	// Unbounded means the local model's objective is unbounded below
	// over its feasible region.
	Unbounded
	// InvalidOption means a configuration value was out of range or of
	// the wrong type; not recoverable without user intervention.
	InvalidOption
	// Oracle means the model itself failed to evaluate (e.g. returned
	// NaN, or a user callback panicked/errored).
	Oracle
)

func (k Kind) String() string {
	switch k {
	case Numerical:
		return "NUMERICAL"
	case SubproblemInfeasible:
		return "SUBPROBLEM_INFEASIBLE"
	case Unbounded:
		return "UNBOUNDED"
	case InvalidOption:
		return "INVALID_OPTION"
	case Oracle:
		return "ORACLE_FAILURE"
	default:
		return "UNKNOWN"
	}
}

// Error pairs a Kind with the wrapped cause.
type Error struct {
	Kind  Kind
	cause error
}

func (e *Error) Error() string {
	return e.Kind.String() + ": " + e.cause.Error()
}

func (e *Error) Unwrap() error {
	return e.cause
}

// As reports whether err (or something it wraps) is a *Error of kind k.
func As(err error, k Kind) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == k
}

func wrap(k Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: k, cause: err}
}

// NumericalError wraps err as a Numerical-kind error.
func NumericalError(err error) error { return wrap(Numerical, err) }

// SubproblemInfeasibleError wraps err as a SubproblemInfeasible-kind error.
func SubproblemInfeasibleError(err error) error { return wrap(SubproblemInfeasible, err) }

// UnboundedError wraps err as an Unbounded-kind error.
func UnboundedError(err error) error { return wrap(Unbounded, err) }

// InvalidOptionError wraps err as an InvalidOption-kind error.
func InvalidOptionError(err error) error { return wrap(InvalidOption, err) }

// OracleError wraps err as an Oracle-kind error.
func OracleError(err error) error { return wrap(Oracle, err) }

// Errorf formats a message and wraps it as a Numerical-kind error, the
// common case for an internal linear-algebra routine reporting an
// unexpected status code.
func Errorf(format string, args ...any) error {
	return wrap(Numerical, errors.Errorf(format, args...))
}
