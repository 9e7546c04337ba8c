// Copyright ©2025 nonlin authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command nlsolve runs one of the bundled example problems through the
// trust-region driver and prints the result, the same small
// wire-a-problem-end-to-end shape as any small example
// binary.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/corvid-opt/nonlin/examples"
	"github.com/corvid-opt/nonlin/globalization"
	"github.com/corvid-opt/nonlin/hessian"
	"github.com/corvid-opt/nonlin/model"
	"github.com/corvid-opt/nonlin/options"
	"github.com/corvid-opt/nonlin/relaxation"
	"github.com/corvid-opt/nonlin/solve"
	"github.com/corvid-opt/nonlin/stats"
	"github.com/corvid-opt/nonlin/subproblem"
)

// problem names a bundled model.Model and the starting point to solve
// it from.
type problem struct {
	Model model.Model
	X0    []float64
}

var problems = map[string]problem{
	"rosenbrock":  {examples.Rosenbrock{}, []float64{-1.2, 1}},
	"hs071":       {examples.HS071{}, []float64{1, 5, 5, 1}},
	"infeasible":  {examples.Infeasible{}, []float64{0}},
	"degenerate":  {examples.Degenerate{}, []float64{0, 0}},
	"phaseswitch": {examples.PhaseSwitch{}, examples.PhaseSwitch{}.StartPoint()},
}

func main() {
	name := flag.String("problem", "hs071", "bundled problem: rosenbrock, hs071, infeasible, degenerate, phaseswitch")
	optionsPath := flag.String("options", "", "path to a YAML options file (optional)")
	strategyName := flag.String("strategy", "restoration", "relaxation strategy: restoration or l1")
	verbosity := flag.Int("v", int(stats.LevelIteration), "stats verbosity: -1 noop, 0 summary, 1 iteration, 99 detail")
	flag.Parse()

	if err := run(*name, *optionsPath, *strategyName, stats.Level(*verbosity)); err != nil {
		fmt.Fprintln(os.Stderr, "nlsolve:", err)
		os.Exit(1)
	}
}

func run(name, optionsPath, strategyName string, level stats.Level) error {
	p, ok := problems[name]
	if !ok {
		return fmt.Errorf("unknown problem %q", name)
	}

	opts := options.New()
	if optionsPath != "" {
		loaded, err := options.Load(optionsPath)
		if err != nil {
			return err
		}
		opts = loaded
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer logger.Sync()

	local := &subproblem.QP{Hessian: hessian.Exact{}}
	var strategy relaxation.Strategy
	switch strategyName {
	case "l1":
		strategy = relaxation.NewL1Relaxation(local, globalization.NewMeritFunction(), logger)
	case "restoration":
		fr := relaxation.NewFeasibilityRestoration(local, local, globalization.NewMeritFunction(), globalization.NewMeritFunction(), logger)
		fr.SwitchTolerance = opts.GetFloat("restoration_switch_tolerance", fr.SwitchTolerance)
		strategy = fr
	default:
		return fmt.Errorf("unknown strategy %q", strategyName)
	}

	sink := stats.NewSink(level, os.Stdout)
	driver := solve.New(p.Model, strategy, opts, sink)

	result, err := driver.Solve(p.X0)
	if err != nil {
		return err
	}

	fmt.Printf("status: %s\n", result.Status)
	fmt.Printf("iterations: %d\n", result.Iterations)
	fmt.Printf("objective: %.10g\n", result.Objective)
	fmt.Printf("infeasibility: %.3g\n", result.Infeasibility)
	fmt.Printf("x: %v\n", result.X)
	return nil
}
