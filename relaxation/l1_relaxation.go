// Copyright ©2025 nonlin authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package relaxation

import (
	"math"

	"go.uber.org/zap"

	"github.com/corvid-opt/nonlin/globalization"
	"github.com/corvid-opt/nonlin/iterate"
	"github.com/corvid-opt/nonlin/linalg"
	"github.com/corvid-opt/nonlin/model"
	"github.com/corvid-opt/nonlin/progress"
	"github.com/corvid-opt/nonlin/subproblem"
)

// L1Relaxation implements a single-phase ℓ1 exact-penalty
// strategy: a single subproblem solved at a penalty parameter Rho,
// driven toward 0 by the Byrd-Nocedal-Waltz update, and a single merit
// globalization strategy sharing that same Rho.
type L1Relaxation struct {
	Local subproblem.Subproblem
	Merit *globalization.MeritFunction

	Tau        float64 // shrink factor for rho, default 0.5
	Epsilon1   float64 // Condition 1 fraction-of-ideal-decrease tolerance
	Epsilon2   float64 // Condition 2 objective-decrease tolerance
	RhoFloor   float64 // below this, rho snaps to 0
	ErrorTol   float64 // ideal_error <= this counts as "exactly 0"

	Logger *zap.Logger

	rho float64
}

// NewL1Relaxation wires a local QP/LP/IPM subproblem to a merit
// globalization strategy, both sharing the penalty parameter this
// strategy drives. logger may be nil.
func NewL1Relaxation(local subproblem.Subproblem, merit *globalization.MeritFunction, logger *zap.Logger) *L1Relaxation {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &L1Relaxation{
		Local:    local,
		Merit:    merit,
		Tau:      0.5,
		Epsilon1: 0.1,
		Epsilon2: 0.1,
		RhoFloor: 1e-10,
		ErrorTol: 1e-10,
		Logger:   logger,
		rho:      1,
	}
	l.Merit.Rho = l.rho
	return l
}

func (l *L1Relaxation) Reset() {
	l.rho = 1
	l.Merit.Rho = l.rho
	l.Merit.Reset()
}

func (l *L1Relaxation) IsAcceptable(current, trial globalization.Candidate, predictedOptimality, predictedInfeasibility float64) bool {
	return l.Merit.IsAcceptable(current, trial, predictedOptimality, predictedInfeasibility)
}

// ComputeDirection runs the Byrd-Nocedal-Waltz penalty update and
// returns the direction from whichever rho the update settles on.
func (l *L1Relaxation) ComputeDirection(m model.Model, it *iterate.Iterate, trustRegion float64) (*iterate.Direction, subproblem.PredictedReduction, error) {
	residual := progress.Infeasibility(m, it.Constraints(), linalg.L1)

	dir, predicted, err := l.solveAt(l.rho, m, it, trustRegion)
	if err != nil {
		return nil, nil, err
	}
	if l.linearModel(m, it, dir) <= l.ErrorTol {
		l.Merit.Rho = l.rho
		return dir, predicted, nil
	}

	idealDir, _, err := l.solveAt(0, m, it, trustRegion)
	if err != nil {
		return nil, nil, err
	}
	idealError := l.combinedError(m, it, idealDir, 0)
	idealReduction := residual - l.linearModel(m, it, idealDir)

	if idealError <= l.ErrorTol {
		l.rho = 0
		l.Merit.Rho = 0
		return idealDir, zeroPredicted(), nil
	}

	for l.rho > l.RhoFloor {
		candidateRho := l.Tau * l.rho
		candidateDir, _, err := l.solveAt(candidateRho, m, it, trustRegion)
		if err != nil {
			return nil, nil, err
		}
		cond1 := (residual - l.linearModel(m, it, candidateDir)) >= l.Epsilon1*idealReduction
		cond2 := (residual - l.meritDecrease(candidateRho, m, it, candidateDir)) >= l.Epsilon2*(residual-l.meritDecrease(0, m, it, idealDir))
		l.rho = candidateRho
		if cond1 && cond2 {
			break
		}
	}
	if l.rho <= l.RhoFloor {
		l.rho = 0
	}

	denom := math.Max(1, residual)
	l.rho = math.Min(l.rho, (idealError/denom)*(idealError/denom))
	l.Merit.Rho = l.rho
	l.Logger.Info("penalty parameter updated", zap.Float64("rho", l.rho))

	if l.rho == 0 {
		return idealDir, zeroPredicted(), nil
	}
	return l.solveAt(l.rho, m, it, trustRegion)
}

// ComputeSecondOrderCorrection re-wraps both iterates at the current
// penalty parameter, matching the sigma=rho scaling every other call
// into l.Local uses.
func (l *L1Relaxation) ComputeSecondOrderCorrection(m model.Model, current, trial *iterate.Iterate, trustRegion float64) (*iterate.Direction, bool, error) {
	wrapped := scaledModel{Model: m, scale: l.rho}
	currentMult, trialMult := current.Mult, trial.Mult
	currentMult.Sigma, trialMult.Sigma = l.rho, l.rho
	wrappedCurrent := iterate.New(current.X, currentMult, wrapped)
	wrappedTrial := iterate.New(trial.X, trialMult, wrapped)
	return computeSecondOrderCorrection(l.Local, wrapped, wrappedCurrent, wrappedTrial, trustRegion)
}

func (l *L1Relaxation) solveAt(rho float64, m model.Model, it *iterate.Iterate, trustRegion float64) (*iterate.Direction, subproblem.PredictedReduction, error) {
	wrapped := scaledModel{Model: m, scale: rho}
	mult := it.Mult
	mult.Sigma = rho
	scaledIt := iterate.New(it.X, mult, wrapped)
	dir, predicted, err := l.Local.Solve(wrapped, scaledIt, trustRegion)
	if err != nil {
		return nil, nil, err
	}
	dir.Phase = iterate.OptimalityPhase
	return dir, predicted, nil
}

// linearModel is the stage-2 "sum of elastic
// components": since this reduction has no elastic-variable columns
// (see scaledModel's doc comment), it is approximated by the
// linearized constraint violation remaining after the step, which is 0
// exactly when the step fully resolves the linearized constraints, the
// same condition the elastic sum vanishes under.
func (l *L1Relaxation) linearModel(m model.Model, it *iterate.Iterate, dir *iterate.Direction) float64 {
	c := it.Constraints()
	jac := it.Jacobian()
	n := m.N()
	mc := m.M()
	row := make([]float64, n)
	trial := make([]float64, mc)
	for j := 0; j < mc; j++ {
		jac.DenseRow(j, row)
		trial[j] = c[j] + linalg.Dot(row, dir.Primals)
	}
	return progress.Infeasibility(m, trial, linalg.L1)
}

// meritDecrease is the rho-weighted linear merit model at the step,
// linearModel(d) + rho*g^T d, with the constant rho*f(x) term left out;
// Condition 2 compares residual minus this value, the model decrease,
// between the candidate rho and rho = 0.
func (l *L1Relaxation) meritDecrease(rho float64, m model.Model, it *iterate.Iterate, dir *iterate.Direction) float64 {
	residual := progress.Infeasibility(m, it.Constraints(), linalg.L1)
	linearized := l.linearModel(m, it, dir)
	predictedInfeas := residual - linearized
	g := it.ObjectiveGradient()
	predictedOpt := progress.PredictedOptimalityReduction(g, dir.Primals, nil, rho, 1)
	return residual - (predictedOpt + predictedInfeas)
}

func (l *L1Relaxation) combinedError(m model.Model, it *iterate.Iterate, dir *iterate.Direction, rho float64) float64 {
	n := m.N()
	x := make([]float64, n)
	for i := range x {
		x[i] = it.X[i] + dir.Primals[i]
	}
	g := it.ObjectiveGradient()
	jac := it.Jacobian()
	c := it.Constraints()
	return progress.CombinedError(m, g, jac, x, dir.Multipliers.ZL, dir.Multipliers.ZU, c, dir.Multipliers.Lambda, rho)
}

func zeroPredicted() subproblem.PredictedReduction {
	return func(alpha float64) float64 { return 0 }
}
