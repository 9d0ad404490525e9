// Copyright 2025 The go-perfmeasure Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package measure

import (
	"github.com/benchkit/go-perfmeasure/events"
	"github.com/benchkit/go-perfmeasure/perf"
)

// Batch is the opaque intermediate of a [Counter] measurement. It
// carries no data: Start zeroes the counter, so End needs no snapshot
// to compute a delta.
type Batch struct{}

// A Counter measures one performance event for a benchmark harness. It
// owns one [perf.Session] for its whole lifetime, bound to the event it
// was opened with.
//
// All methods are safe on a nil Counter and report zero values, so a
// harness that tolerates unavailable counters can keep a nil Counter in
// place of one that failed to open.
type Counter struct {
	session *perf.Session
	label   string
}

var _ Measurement[Batch, Count] = (*Counter)(nil)

// Open opens a counter measuring the given event on the calling
// goroutine. A failure is a *perf.ConfigError and means the benchmark
// cannot be measured with this event; there is nothing to recover.
// Callers must Close the counter when the benchmark run ends.
func Open(event events.Event) (*Counter, error) {
	s, err := perf.OpenSession(event)
	if err != nil {
		return nil, err
	}
	return &Counter{session: s, label: event.String()}, nil
}

// OpenSelector opens a counter for a textual event selector, as
// accepted by [events.ParseEvent].
func OpenSelector(selector string) (*Counter, error) {
	ev, err := events.ParseEvent(selector)
	if err != nil {
		return nil, &perf.ConfigError{Event: selector, Err: err}
	}
	return Open(ev)
}

// Start zeroes the counter and begins measuring an iteration batch.
func (c *Counter) Start() Batch {
	if c != nil {
		c.session.ResetAndStart()
	}
	return Batch{}
}

// End stops the counter and returns the events counted since Start.
//
// A read failure after a successful open invalidates every count
// accumulated in the current sample, so End panics with the
// *perf.MeasurementError instead of returning a value that cannot be
// trusted.
func (c *Counter) End(Batch) Count {
	if c == nil {
		return 0
	}
	n, err := c.session.StopAndRead()
	if err != nil {
		panic(err)
	}
	return Count(n)
}

// Add combines the counts of two iteration batches.
func (c *Counter) Add(a, b Count) Count {
	return a + b
}

// Zero returns the empty count.
func (c *Counter) Zero() Count {
	return 0
}

// ToF64 widens a count for downstream statistics. Counts from realistic
// run lengths stay far below 2^53, so the conversion is exact.
func (c *Counter) ToF64(v Count) float64 {
	return float64(v)
}

// FormattedValue converts a count into a displayable reading. The unit
// label is the counter's event name ("events" for a nil Counter); with
// a throughput basis the value is divided by the basis and the label
// gains a "/byte" or "/element" suffix.
func (c *Counter) FormattedValue(v Count, tp Throughput) FormattedReading {
	label := "events"
	if c != nil {
		label = c.label
	}
	return formatCount(v, label, tp)
}

// Close releases the underlying counter. It is safe to call more than
// once and on a nil Counter.
func (c *Counter) Close() {
	if c == nil {
		return
	}
	c.session.Close()
}
