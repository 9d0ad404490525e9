// Copyright 2025 The go-perfmeasure Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package perfbench reports performance-counter measurements as Go
// benchmark metrics.
//
// On platforms without perf_event support the package compiles to
// no-ops, so benchmarks that use it still build and run everywhere.
package perfbench

import "testing"

// Counters is a set of performance counters that will be reported in
// benchmark results.
type Counters struct {
	countersOS
}

// Open starts the default set of performance counters (cycles,
// instructions, cache references, and cache misses) for benchmark b.
// They are reported as <event>/op metrics when the benchmark ends, and
// count events on the calling goroutine only.
//
// The counters are running on return. Any calls to b.StopTimer,
// b.StartTimer, or b.ResetTimer should be paired with the equivalent
// calls on Counters.
//
// A counter that cannot be opened (usually for lack of permission) is
// logged once and skipped; the benchmark itself still runs.
//
// The final value of the counters is captured in a b.Cleanup function.
// If the benchmark does substantial other work in cleanup functions, it
// may want to explicitly call [Counters.Stop] before returning.
func Open(b *testing.B) *Counters {
	return openOS(b, nil)
}

// OpenSelectors is like [Open] but measures the named events instead of
// the default set. Selectors use the syntax of events.ParseEvent, e.g.
// "branch-misses" or "cpu/event=0xd0,umask=0x82/".
func OpenSelectors(b *testing.B, selectors ...string) *Counters {
	return openOS(b, selectors)
}

// Start resumes stopped counters. Counts from before the stop are kept.
func (cs *Counters) Start() {
	cs.startOS()
}

// Stop pauses the counters, folding the counts so far into the totals.
func (cs *Counters) Stop() {
	cs.stopOS()
}

// Reset discards everything counted so far. Running counters keep
// running.
func (cs *Counters) Reset() {
	cs.resetOS()
}

// Total returns the count of the named counter accumulated so far. The
// name is a reported metric name without the "/op". If the counter is
// unknown or could not be opened, Total returns 0, false.
func (cs *Counters) Total(name string) (float64, bool) {
	return cs.totalOS(name)
}
