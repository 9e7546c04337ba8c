// Copyright ©2025 nonlin authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stats

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelNoopSuppressesEverything(t *testing.T) {
	var buf bytes.Buffer
	s := NewSink(LevelNoop, &buf)
	s.Header()
	s.Iteration(Record{Iteration: 1})
	s.Summary("done")
	s.Message("detail")
	if buf.Len() != 0 {
		t.Fatalf("expected no output at LevelNoop, got %q", buf.String())
	}
}

func TestLevelIterationPrintsRowsNotDetail(t *testing.T) {
	var buf bytes.Buffer
	s := NewSink(LevelIteration, &buf)
	s.Header()
	s.Iteration(Record{Iteration: 1, Phase: "OPTIMALITY", Objective: 1.5, Accepted: true})
	s.Message("should not appear")
	out := buf.String()
	if !strings.Contains(out, "iter") {
		t.Fatalf("expected header in output, got %q", out)
	}
	if !strings.Contains(out, "OPTIMALITY") {
		t.Fatalf("expected iteration row in output, got %q", out)
	}
	if strings.Contains(out, "should not appear") {
		t.Fatalf("Message should be suppressed below LevelDetail, got %q", out)
	}
}

func TestLevelDetailPrintsMessages(t *testing.T) {
	var buf bytes.Buffer
	s := NewSink(LevelDetail, &buf)
	s.Message("entering restoration at iter %d", 3)
	if !strings.Contains(buf.String(), "entering restoration at iter 3") {
		t.Fatalf("expected formatted message, got %q", buf.String())
	}
}

func TestAcceptedMarkerDistinguishesRows(t *testing.T) {
	var buf bytes.Buffer
	s := NewSink(LevelIteration, &buf)
	s.Iteration(Record{Iteration: 0, Accepted: true})
	s.Iteration(Record{Iteration: 1, Accepted: false})
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 rows, got %d: %v", len(lines), lines)
	}
	if !strings.Contains(lines[0], "*") {
		t.Fatalf("expected accepted marker in row 0: %q", lines[0])
	}
	if strings.Contains(lines[1], "*") {
		t.Fatalf("expected no accepted marker in row 1: %q", lines[1])
	}
}
