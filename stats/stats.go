// Copyright ©2025 nonlin authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stats is a tabular per-iteration statistics sink for the
// outer driver: a level-gated pair of writers, one for free-form
// messages and one for the fixed-width iteration table, the same split
// a bound-constrained solver uses for its own iteration
// log.
package stats

import (
	"fmt"
	"io"
)

// Level controls how much a Sink prints.
type Level int

const (
	// LevelNoop suppresses all output.
	LevelNoop Level = -1
	// LevelSummary prints only the final line.
	LevelSummary Level = 0
	// LevelIteration prints one row per outer iteration.
	LevelIteration Level = 1
	// LevelDetail additionally prints the free-form lines written with
	// Message.
	LevelDetail Level = 99
)

// Sink pairs a level with two writers: Msg for narrative log lines, Out
// for the fixed-width iteration table. Both must be safe for the single
// goroutine that owns the driver; nothing here is safe to share across
// goroutines, matching the driver's single-threaded loop.
type Sink struct {
	Level Level
	Msg   io.Writer
	Out   io.Writer
}

// NewSink returns a Sink writing both streams to w at the given level.
func NewSink(level Level, w io.Writer) *Sink {
	return &Sink{Level: level, Msg: w, Out: w}
}

func (s *Sink) enable(level Level) bool {
	return s != nil && s.Level >= level
}

func (s *Sink) logf(w io.Writer, format string, a ...any) {
	if len(a) == 0 {
		fmt.Fprint(w, format)
		return
	}
	fmt.Fprintf(w, format, a...)
}

// Message writes a narrative line at LevelDetail.
func (s *Sink) Message(format string, a ...any) {
	if !s.enable(LevelDetail) {
		return
	}
	s.logf(s.Msg, format+"\n", a...)
}

// Record is one outer-iteration row.
type Record struct {
	Iteration       int
	Phase           string
	Objective       float64
	Infeasibility   float64
	Stationarity    float64
	Complementarity float64
	StepNorm        float64
	StepLength      float64
	Accepted        bool
}

const header = "  iter  phase                  f            h          |stat|      |comp|      |step|    alpha  acc\n"

// Header writes the column header once, at LevelIteration.
func (s *Sink) Header() {
	if !s.enable(LevelIteration) {
		return
	}
	s.logf(s.Out, header)
}

// Iteration writes one Record as a fixed-width row.
func (s *Sink) Iteration(r Record) {
	if !s.enable(LevelIteration) {
		return
	}
	mark := " "
	if r.Accepted {
		mark = "*"
	}
	s.logf(s.Out, " %5d  %-20s %11.4e  %11.4e  %11.4e  %11.4e  %11.4e  %6.3f   %s\n",
		r.Iteration, r.Phase, r.Objective, r.Infeasibility, r.Stationarity, r.Complementarity, r.StepNorm, r.StepLength, mark)
}

// Summary writes the final one-line report at LevelSummary or above.
func (s *Sink) Summary(format string, a ...any) {
	if !s.enable(LevelSummary) {
		return
	}
	s.logf(s.Msg, format+"\n", a...)
}
