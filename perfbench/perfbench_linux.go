// Copyright 2025 The go-perfmeasure Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perfbench

import (
	"fmt"
	"sync"
	"testing"

	"github.com/benchkit/go-perfmeasure/events"
	"github.com/benchkit/go-perfmeasure/measure"
)

var defaultEvents = []events.Event{
	events.EventCPUCycles,
	events.EventInstructions,
	events.EventCacheMisses,
	events.EventCacheReferences,
}

type countersOS struct {
	b  testingB
	bN int

	events   []events.Event
	counters []*measure.Counter
	totals   []measure.Count
	running  bool
}

// testingB is the *testing.B interface needed by Counters. Used for
// testing.
type testingB interface {
	ReportMetric(n float64, unit string)
	Logf(format string, args ...any)
	Cleanup(func())
}

var printUnits = sync.OnceFunc(func() {
	// Print unit metadata for benchstat.
	for _, event := range defaultEvents {
		// Currently all events are better=lower.
		fmt.Printf("Unit %s/op better=lower\n", event.String())
	}
	fmt.Printf("\n")
})

// openErrors dedups open failures so a failing counter doesn't flood
// the log of every benchmark in the run.
var openErrors sync.Map

func openOS(b *testing.B, selectors []string) *Counters {
	printUnits()
	evs := defaultEvents
	if len(selectors) > 0 {
		evs = nil
		for _, sel := range selectors {
			ev, err := events.ParseEvent(sel)
			if err != nil {
				logOnce(b, "error parsing event %s: %v", sel, err)
				continue
			}
			evs = append(evs, ev)
		}
	}
	return open(b, b.N, evs)
}

func open(b testingB, bN int, evs []events.Event) *Counters {
	cs := &Counters{countersOS{
		b:        b,
		bN:       bN,
		events:   evs,
		counters: make([]*measure.Counter, len(evs)),
		totals:   make([]measure.Count, len(evs)),
	}}

	for i, event := range evs {
		var err error
		cs.counters[i], err = measure.Open(event)
		if err != nil {
			logOnce(b, "error opening counter %s: %v", event, err)
		}
	}

	b.Cleanup(cs.close)

	cs.Start()

	return cs
}

func logOnce(b testingB, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if _, prev := openErrors.Swap(msg, true); !prev {
		b.Logf("%s", msg)
	}
}

func (cs *Counters) startOS() {
	if cs.running {
		return
	}
	for _, c := range cs.counters {
		c.Start()
	}
	cs.running = true
}

func (cs *Counters) stopOS() {
	if !cs.running {
		return
	}
	for i, c := range cs.counters {
		cs.totals[i] = c.Add(cs.totals[i], c.End(measure.Batch{}))
	}
	cs.running = false
}

func (cs *Counters) resetOS() {
	for i, c := range cs.counters {
		cs.totals[i] = c.Zero()
		if cs.running {
			// Start zeroes the hardware counter, which is exactly the
			// reset we want while running.
			c.Start()
		}
	}
}

func (cs *Counters) totalOS(name string) (float64, bool) {
	for i, c := range cs.counters {
		if c == nil || cs.events[i].String() != name {
			continue
		}
		if cs.running {
			cs.totals[i] = c.Add(cs.totals[i], c.End(measure.Batch{}))
			c.Start()
		}
		return c.ToF64(cs.totals[i]), true
	}
	return 0, false
}

func (cs *Counters) close() {
	if cs.b == nil {
		return
	}

	cs.Stop()
	for i, c := range cs.counters {
		if c == nil {
			continue
		}
		fv := c.FormattedValue(cs.totals[i], measure.Throughput{})
		cs.b.ReportMetric(fv.Value/float64(cs.bN), fv.Unit+"/op")
		c.Close()
	}
	cs.b = nil
}
