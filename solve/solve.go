// Copyright ©2025 nonlin authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package solve runs the outer trust-region iteration: at each current
// iterate, ask a constraint-relaxation strategy for a direction, build
// the trial iterate that direction proposes, let a globalization
// strategy decide whether to accept it, and adjust the trust-region
// radius accordingly. The shape mirrors a classic SQP main loop
// (evaluate, solve a local model, line-search/accept, update, repeat)
// generalized so the local-model and acceptance policies are pluggable
// rather than hardcoded.
package solve

import (
	"io"
	"math"
	"time"

	"github.com/corvid-opt/nonlin/globalization"
	"github.com/corvid-opt/nonlin/iterate"
	"github.com/corvid-opt/nonlin/linalg"
	"github.com/corvid-opt/nonlin/model"
	"github.com/corvid-opt/nonlin/options"
	"github.com/corvid-opt/nonlin/progress"
	"github.com/corvid-opt/nonlin/relaxation"
	"github.com/corvid-opt/nonlin/solverrors"
	"github.com/corvid-opt/nonlin/stats"
)

// Result is the outcome the Driver reports once it stops iterating.
type Result struct {
	X             []float64
	Objective     float64
	Infeasibility float64
	Status        iterate.Status
	Iterations    int
}

// Driver owns the outer loop: a model, the constraint-relaxation
// strategy that produces directions, and the option/stats plumbing
// that tunes and narrates the run.
type Driver struct {
	Model    model.Model
	Strategy relaxation.Strategy
	Options  *options.Options
	Stats    *stats.Sink
}

// New wires a Driver. opts and sink may be nil; nil opts fall back to
// every tunable's built-in default, nil sink suppresses all output.
func New(m model.Model, strategy relaxation.Strategy, opts *options.Options, sink *stats.Sink) *Driver {
	if opts == nil {
		opts = options.New()
	}
	if sink == nil {
		sink = stats.NewSink(stats.LevelNoop, io.Discard)
	}
	return &Driver{Model: m, Strategy: strategy, Options: opts, Stats: sink}
}

// Solve runs the outer iteration from x0 until a termination status is
// reached.
func (d *Driver) Solve(x0 []float64) (*Result, error) {
	norm := d.residualNorm()

	trustRegion := d.Options.GetFloat("trust_region_initial_radius", 1)
	maxTrustRegion := d.Options.GetFloat("trust_region_max_radius", 1e8)
	shrink := d.Options.GetFloat("trust_region_shrink", 0.5)
	grow := d.Options.GetFloat("trust_region_grow", 2)
	iterationLimit := d.Options.GetInt("iteration_limit", 200)
	timeLimit := d.Options.GetFloat("time_limit_seconds", math.Inf(1))
	convergenceTolerance := d.Options.GetFloat("convergence_tolerance", 1e-8)
	smallStepTolerance := d.Options.GetFloat("small_step_tolerance", 1e-12)
	divergenceThreshold := d.Options.GetFloat("divergence_threshold", 1e20)
	unboundedThreshold := d.Options.GetFloat("unbounded_threshold", 1e20)
	secondOrderCorrection := d.Options.GetBool("second_order_correction", false)
	looseTolerance := d.Options.GetFloat("loose_tolerance", 1e-6)
	looseStreakThreshold := d.Options.GetInt("loose_tolerance_consecutive_iteration_threshold", 0)
	looseStreak := 0
	phaseReporter, _ := d.Strategy.(relaxation.PhaseReporter)

	start := time.Now()
	d.Strategy.Reset()

	current := iterate.New(x0, iterate.NewMultipliers(d.Model.N(), d.Model.M()), d.Model)
	d.refreshProgress(current, norm)
	d.Stats.Header()

	for it := 0; ; it++ {
		if it >= iterationLimit {
			d.Stats.Summary("stopped: iteration limit %d reached", iterationLimit)
			return d.result(current, it, iterate.NotOptimal), nil
		}
		if time.Since(start).Seconds() >= timeLimit {
			d.Stats.Summary("stopped: time limit %.3gs reached", timeLimit)
			return d.result(current, it, iterate.NotOptimal), nil
		}
		if linalg.NormVec(linalg.Inf, current.X) >= divergenceThreshold {
			d.Stats.Summary("stopped: iterate diverged")
			return d.result(current, it, iterate.NotOptimal), nil
		}
		if current.Progress.UnscaledOptimality <= -unboundedThreshold && current.Progress.Infeasibility <= convergenceTolerance {
			d.Stats.Summary("stopped: objective unbounded below")
			return d.result(current, it, iterate.NotOptimal), nil
		}
		if status := d.classify(current, convergenceTolerance, smallStepTolerance, math.Inf(1)); status != iterate.NotOptimal {
			d.Stats.Summary("converged: %s after %d iterations", status, it)
			return d.result(current, it, status), nil
		}

		if looseStreakThreshold > 0 {
			inRestoration := phaseReporter != nil && phaseReporter.Phase() == iterate.FeasibilityRestorationPhase
			if !inRestoration && d.classify(current, looseTolerance, smallStepTolerance, math.Inf(1)) == iterate.KKTPoint {
				looseStreak++
			} else {
				looseStreak = 0
			}
			if looseStreak >= looseStreakThreshold {
				d.Stats.Summary("converged: KKT_POINT (loose tolerance) after %d consecutive near-optimal iterations", looseStreak)
				return d.result(current, it, iterate.KKTPoint), nil
			}
		}

		dir, predicted, err := d.Strategy.ComputeDirection(d.Model, current, trustRegion)
		if err != nil {
			return nil, solverrors.NumericalError(err)
		}

		if status := d.classify(current, convergenceTolerance, smallStepTolerance, dir.Norm); status != iterate.NotOptimal {
			d.Stats.Summary("converged: %s after %d iterations", status, it)
			return d.result(current, it, status), nil
		}

		trialX := make([]float64, d.Model.N())
		linalg.AddVectors(current.X, dir.Primals, 1, trialX)
		trial := iterate.New(trialX, dir.Multipliers, d.Model)
		d.refreshProgress(trial, norm)

		predictedOptimality := predicted(1)
		predictedInfeasibility := progress.PredictedInfeasibilityReduction(d.Model, current.Constraints(), current.Jacobian(), dir.Primals, 1)

		currentCandidate := globalization.Candidate{Infeasibility: current.Progress.Infeasibility, Objective: current.Progress.UnscaledOptimality}
		trialCandidate := globalization.Candidate{Infeasibility: trial.Progress.Infeasibility, Objective: trial.Progress.UnscaledOptimality}

		accepted := dir.Status == iterate.Optimal &&
			d.Strategy.IsAcceptable(currentCandidate, trialCandidate, predictedOptimality, predictedInfeasibility)

		if !accepted && secondOrderCorrection && trial.Progress.Infeasibility > current.Progress.Infeasibility {
			correctedTrial, correctedDir, ok, err := d.trySecondOrderCorrection(current, trial, dir.Phase, trustRegion, norm)
			if err != nil {
				return nil, solverrors.NumericalError(err)
			}
			if ok {
				predictedInfeasibility = progress.PredictedInfeasibilityReduction(d.Model, current.Constraints(), current.Jacobian(), correctedDir.Primals, 1)
				correctedCandidate := globalization.Candidate{Infeasibility: correctedTrial.Progress.Infeasibility, Objective: correctedTrial.Progress.UnscaledOptimality}
				if d.Strategy.IsAcceptable(currentCandidate, correctedCandidate, predictedOptimality, predictedInfeasibility) {
					trial, dir, trialCandidate, accepted = correctedTrial, correctedDir, correctedCandidate, true
				}
			}
		}

		d.Stats.Iteration(stats.Record{
			Iteration:       it,
			Phase:           dir.Phase.String(),
			Objective:       trial.Progress.UnscaledOptimality,
			Infeasibility:   trial.Progress.Infeasibility,
			Stationarity:    current.Residuals.Stationarity,
			Complementarity: current.Residuals.Complementarity,
			StepNorm:        dir.Norm,
			StepLength:      1,
			Accepted:        accepted,
		})

		if accepted {
			current = trial
			trustRegion = math.Min(maxTrustRegion, grow*trustRegion)
			continue
		}

		trustRegion *= shrink
		if trustRegion < smallStepTolerance {
			status := iterate.FeasibleSmallStep
			if current.Progress.Infeasibility > convergenceTolerance {
				status = iterate.InfeasibleSmallStep
			}
			d.Stats.Summary("stopped: %s, trust region collapsed", status)
			return d.result(current, it, status), nil
		}
	}
}

// trySecondOrderCorrection asks the strategy for a correction to trial
// and, if one comes back with Optimal status, refreshes its progress so
// the caller can test it for acceptance. phase restamps the correction
// with the phase of the direction that produced the rejected trial,
// since a subproblem's own Solve always stamps OptimalityPhase.
func (d *Driver) trySecondOrderCorrection(current, trial *iterate.Iterate, phase iterate.Phase, trustRegion float64, norm linalg.Norm) (*iterate.Iterate, *iterate.Direction, bool, error) {
	corrected, ok, err := d.Strategy.ComputeSecondOrderCorrection(d.Model, current, trial, trustRegion)
	if err != nil {
		return nil, nil, false, err
	}
	if !ok || corrected.Status != iterate.Optimal {
		return nil, nil, false, nil
	}
	corrected.Phase = phase

	correctedX := make([]float64, d.Model.N())
	linalg.AddVectors(current.X, corrected.Primals, 1, correctedX)
	correctedTrial := iterate.New(correctedX, corrected.Multipliers, d.Model)
	d.refreshProgress(correctedTrial, norm)
	return correctedTrial, corrected, true, nil
}

// classify reports the termination status current already satisfies,
// or NotOptimal if the loop should keep going. dirNorm is the norm of
// the most recently computed direction (math.Inf(1) before one exists,
// so the small-step branch cannot fire prematurely).
func (d *Driver) classify(current *iterate.Iterate, convergenceTolerance, smallStepTolerance, dirNorm float64) iterate.Status {
	feasible := current.Progress.Infeasibility <= convergenceTolerance
	stationary := current.Residuals.Stationarity <= convergenceTolerance && current.Residuals.Complementarity <= convergenceTolerance
	switch {
	case stationary && feasible && current.Mult.Sigma != 0:
		return iterate.KKTPoint
	case stationary && current.Mult.Sigma == 0:
		return iterate.FJPoint
	case dirNorm <= smallStepTolerance:
		if feasible {
			return iterate.FeasibleSmallStep
		}
		return iterate.InfeasibleSmallStep
	default:
		return iterate.NotOptimal
	}
}

// refreshProgress evaluates and stores the progress/residual measures
// an Iterate's owner is responsible for filling in before it is
// compared by a globalization strategy or the convergence check.
func (d *Driver) refreshProgress(it *iterate.Iterate, norm linalg.Norm) {
	c := it.Constraints()
	sense := d.Model.ObjectiveSense()
	objective := it.Objective()

	it.Progress = iterate.Progress{
		Infeasibility:      progress.Infeasibility(d.Model, c, norm),
		ScaledOptimality:    func(sigma float64) float64 { return sigma * sense * objective },
		UnscaledOptimality: sense * objective,
	}

	g := it.ObjectiveGradient()
	jac := it.Jacobian()
	it.Residuals = iterate.Residuals{
		Stationarity:    progress.StationarityResidual(g, jac, it.Mult.Lambda, it.Mult.ZL, it.Mult.ZU, norm),
		Complementarity: progress.ComplementaritySum(d.Model, it.X, it.Mult.ZL, it.Mult.ZU, c, it.Mult.Lambda),
	}
}

func (d *Driver) residualNorm() linalg.Norm {
	switch d.Options.GetString("residual_norm", "L1") {
	case "L2":
		return linalg.L2
	case "INF":
		return linalg.Inf
	default:
		return linalg.L1
	}
}

func (d *Driver) result(current *iterate.Iterate, iterations int, status iterate.Status) *Result {
	current.Status = status
	return &Result{
		X:             append([]float64(nil), current.X...),
		Objective:     current.Objective(),
		Infeasibility: current.Progress.Infeasibility,
		Status:        status,
		Iterations:    iterations,
	}
}
