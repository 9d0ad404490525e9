// Copyright 2025 The go-perfmeasure Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perfbench

import (
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/benchkit/go-perfmeasure/events"
	"github.com/benchkit/go-perfmeasure/measure"
)

// testB is a fake *testing.B that records reported metrics.
type testB struct {
	t       *testing.T
	metrics map[string]float64
	logs    []string
	cleanup func()
}

func (tb *testB) ReportMetric(n float64, unit string) {
	if tb.metrics == nil {
		tb.metrics = map[string]float64{}
	}
	tb.metrics[unit] = n
}

func (tb *testB) Logf(format string, args ...any) {
	tb.logs = append(tb.logs, fmt.Sprintf(format, args...))
}

func (tb *testB) Cleanup(fn func()) {
	tb.cleanup = fn
}

// requireCounters skips the test when the kernel won't grant hardware
// counters. Open failures inside the package are logged once globally,
// so the fake's log is not a reliable signal.
func requireCounters(t *testing.T) {
	t.Helper()
	c, err := measure.Open(events.EventInstructions)
	if err != nil {
		t.Skipf("hardware counters unavailable: %v", err)
	}
	c.Close()
}

func TestBasic(t *testing.T) {
	requireCounters(t)

	tb := &testB{t: t}
	open(tb, 1, defaultEvents)
	tb.cleanup()

	for _, ev := range defaultEvents {
		name := ev.String() + "/op"
		if val, ok := tb.metrics[name]; !ok {
			t.Errorf("metric %s not reported", name)
		} else if val == 0 {
			if strings.HasPrefix(name, "cache-") {
				// Cache counters can legitimately be 0 in a test this
				// small.
				continue
			}
			t.Errorf("metric %s reported, but value is 0", name)
		}
	}
	if len(tb.metrics) != len(defaultEvents) {
		t.Errorf("got %d metrics, expected %d", len(tb.metrics), len(defaultEvents))
	}
}

var loopIters = 1000

// measureLoop returns the instructions/op of a counted loop. Used as
// the yardstick for the stop/reset tests below.
func measureLoop(t *testing.T) float64 {
	p95 := p95Of(100, func() float64 {
		tb := &testB{t: t}
		open(tb, 1, defaultEvents)
		for i := 0; i < loopIters; i++ {
		}
		tb.cleanup()
		// The instructions counter should be pretty stable.
		return tb.metrics["instructions/op"]
	})
	t.Logf("loop is %f instructions (p95)", p95)
	if p95 < float64(loopIters) {
		t.Fatalf("failed to count loop instructions")
	}
	return p95
}

func p95Of(iters int, f func() float64) float64 {
	dist := make([]float64, iters)
	for i := range dist {
		dist[i] = f()
	}
	sort.Float64s(dist)
	return dist[int(float64(iters)*95/100+0.5)]
}

const slack = 1.5

func TestStop(t *testing.T) {
	requireCounters(t)
	limit := measureLoop(t) * slack

	// Occasionally we get unlucky (e.g., kernel preemption). Do a bunch
	// of runs and ignore the outliers.
	p95 := p95Of(100, func() float64 {
		tb := &testB{t: t}
		cs := open(tb, 1, defaultEvents)
		for i := 0; i < loopIters; i++ {
		}
		cs.Stop()
		for i := 0; i < 100*loopIters; i++ {
		}
		tb.cleanup()
		return tb.metrics["instructions/op"]
	})
	if p95 > limit {
		t.Errorf("stop didn't stop counting, got %f > %f instructions", p95, limit)
	}
}

func TestResetStopped(t *testing.T) {
	requireCounters(t)

	tb := &testB{t: t}
	cs := open(tb, 1, defaultEvents)
	for i := 0; i < loopIters; i++ {
	}
	cs.Stop()
	cs.Reset()
	for i := 0; i < loopIters; i++ {
	}
	tb.cleanup()

	if tb.metrics["instructions/op"] != 0 {
		t.Errorf("reset didn't discard instructions, got %f", tb.metrics["instructions/op"])
	}
}

func TestResetRunning(t *testing.T) {
	requireCounters(t)
	limit := measureLoop(t) * slack

	p95 := p95Of(100, func() float64 {
		tb := &testB{t: t}
		cs := open(tb, 1, defaultEvents)
		for i := 0; i < 100*loopIters; i++ {
		}
		cs.Reset()
		for i := 0; i < loopIters; i++ {
		}
		cs.Stop()
		tb.cleanup()
		return tb.metrics["instructions/op"]
	})

	if p95 > limit {
		t.Errorf("reset didn't reset counter, got %f > %f instructions", p95, limit)
	}
}

func TestTotal(t *testing.T) {
	requireCounters(t)

	tb := &testB{t: t}
	cs := open(tb, 1, defaultEvents)
	for i := 0; i < loopIters; i++ {
	}
	v, ok := cs.Total("instructions")
	if !ok {
		t.Fatal("Total(instructions) unknown")
	}
	if v == 0 {
		t.Error("Total(instructions) is 0 after a counted loop")
	}
	if _, ok := cs.Total("no-such-counter"); ok {
		t.Error("Total reported an unknown counter")
	}

	// Total folds the running count into the totals without losing it.
	cs.Stop()
	tb.cleanup()
	if got := tb.metrics["instructions/op"]; got < v {
		t.Errorf("final metric %f below earlier total %f", got, v)
	}
}
