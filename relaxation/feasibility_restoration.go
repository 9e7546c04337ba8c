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

// FeasibilityRestoration maintains two phases, each with its own
// subproblem and globalization strategy: OptimalityPhase solves the
// real NLP; FeasibilityRestorationPhase solves a sigma=0 feasibility
// subproblem seeded at the iterate where optimality last failed.
type FeasibilityRestoration struct {
	Optimality  subproblem.Subproblem
	Restoration subproblem.Subproblem

	OptimalityGlobalization  globalization.Strategy
	RestorationGlobalization globalization.Strategy

	// SwitchTolerance bounds the linearized constraint violation that
	// counts as "exactly 0" when checking the RESTORATION -> OPTIMALITY
	// switch-back condition, chosen with a
	// numerically realistic equality test.
	SwitchTolerance float64

	Logger *zap.Logger

	phase                  iterate.Phase
	bestKnownInfeasibility float64
}

// NewFeasibilityRestoration wires the two phases' subproblems and
// globalization strategies together. logger may be nil (a no-op logger
// is substituted).
func NewFeasibilityRestoration(optimality, restoration subproblem.Subproblem, optimalityGlob, restorationGlob globalization.Strategy, logger *zap.Logger) *FeasibilityRestoration {
	if logger == nil {
		logger = zap.NewNop()
	}
	fr := &FeasibilityRestoration{
		Optimality:               optimality,
		Restoration:              restoration,
		OptimalityGlobalization:  optimalityGlob,
		RestorationGlobalization: restorationGlob,
		SwitchTolerance:          1e-10,
		Logger:                   logger,
	}
	fr.Reset()
	return fr
}

func (fr *FeasibilityRestoration) Reset() {
	fr.phase = iterate.OptimalityPhase
	fr.bestKnownInfeasibility = math.Inf(1)
	fr.OptimalityGlobalization.Reset()
	fr.RestorationGlobalization.Reset()
}

// Phase reports the strategy's current phase, for the driver's
// loose-tolerance bookkeeping.
func (fr *FeasibilityRestoration) Phase() iterate.Phase { return fr.phase }

func (fr *FeasibilityRestoration) ComputeDirection(m model.Model, it *iterate.Iterate, trustRegion float64) (*iterate.Direction, subproblem.PredictedReduction, error) {
	if fr.phase == iterate.OptimalityPhase {
		dir, predicted, err := fr.Optimality.Solve(m, it, trustRegion)
		if err != nil {
			return nil, nil, err
		}
		if dir.Status != iterate.Infeasible && dir.ObjectiveMultiplier != 0 {
			return dir, predicted, nil
		}
		fr.enterRestoration(m, it)
	}
	return fr.solveRestoration(m, it, trustRegion)
}

func (fr *FeasibilityRestoration) enterRestoration(m model.Model, it *iterate.Iterate) {
	fr.bestKnownInfeasibility = progress.Infeasibility(m, it.Constraints(), linalg.L1)
	fr.phase = iterate.FeasibilityRestorationPhase
	fr.RestorationGlobalization.Reset()
	fr.Logger.Info("entering feasibility restoration",
		zap.Float64("infeasibility", fr.bestKnownInfeasibility))
}

func (fr *FeasibilityRestoration) solveRestoration(m model.Model, it *iterate.Iterate, trustRegion float64) (*iterate.Direction, subproblem.PredictedReduction, error) {
	wrapped := scaledModel{Model: m, scale: 0}
	mult := it.Mult
	mult.Sigma = 0
	restIt := iterate.New(it.X, mult, wrapped)

	dir, predicted, err := fr.Restoration.Solve(wrapped, restIt, trustRegion)
	if err != nil {
		return nil, nil, err
	}
	dir.Phase = iterate.FeasibilityRestorationPhase

	if fr.switchBackCondition(m, it, dir) {
		fr.Logger.Info("returning to optimality phase",
			zap.Float64("best_known_infeasibility", fr.bestKnownInfeasibility))
		fr.phase = iterate.OptimalityPhase
		fr.OptimalityGlobalization.Reset()
	}
	return dir, predicted, nil
}

// switchBackCondition implements the RESTORATION ->
// OPTIMALITY rule: the linearized constraint violation at the current
// iterate with a unit step along dir is (numerically) 0, and the
// resulting trial iterate's infeasibility improves on the best-known
// infeasibility registered since entering restoration.
func (fr *FeasibilityRestoration) switchBackCondition(m model.Model, it *iterate.Iterate, dir *iterate.Direction) bool {
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
	linearized := progress.Infeasibility(m, trial, linalg.L1)
	if linearized > fr.SwitchTolerance {
		return false
	}

	x := make([]float64, n)
	for i := range x {
		x[i] = it.X[i] + dir.Primals[i]
	}
	trialActual := make([]float64, mc)
	m.Constraints(x, trialActual)
	trialInfeasibility := progress.Infeasibility(m, trialActual, linalg.L1)
	if trialInfeasibility >= fr.bestKnownInfeasibility {
		return false
	}
	fr.bestKnownInfeasibility = trialInfeasibility
	return true
}

// ComputeSecondOrderCorrection delegates to whichever phase's
// subproblem produced the rejected trial.
func (fr *FeasibilityRestoration) ComputeSecondOrderCorrection(m model.Model, current, trial *iterate.Iterate, trustRegion float64) (*iterate.Direction, bool, error) {
	local := fr.Optimality
	if fr.phase == iterate.FeasibilityRestorationPhase {
		local = fr.Restoration
	}
	return computeSecondOrderCorrection(local, m, current, trial, trustRegion)
}

func (fr *FeasibilityRestoration) IsAcceptable(current, trial globalization.Candidate, predictedOptimality, predictedInfeasibility float64) bool {
	if fr.phase == iterate.OptimalityPhase {
		return fr.OptimalityGlobalization.IsAcceptable(current, trial, predictedOptimality, predictedInfeasibility)
	}
	return fr.RestorationGlobalization.IsAcceptable(current, trial, predictedOptimality, predictedInfeasibility)
}
