// Copyright 2025 The go-perfmeasure Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package measure adapts performance counters to benchmark harnesses
// that accept a pluggable measurement source in place of wall-clock
// timing.
//
// A harness drives a [Measurement] around each batch of iterations:
// Start immediately before the batch, End immediately after, summing
// the resulting values with Add across the batches of one statistical
// sample. The harness owns all statistics; this package only produces
// raw counts and converts them for display.
package measure

import "fmt"

// A Count is the raw number of events counted between one Start and the
// following End, or a sum of such counts. It has no identity beyond its
// numeric value.
type Count uint64

// Measurement is the capability a harness uses to measure one iteration
// batch. I is an opaque intermediate carrying whatever Start needs to
// hand to End; V is the reportable value type.
//
// Start and End sit on the hot measurement path and must not allocate
// or log. Add must be associative and commutative with Zero as its
// identity, because harnesses sum batch values in arbitrary order
// before recording a sample.
type Measurement[I, V any] interface {
	// Start begins measuring one iteration batch.
	Start() I

	// End finishes the batch begun by Start and returns its value.
	End(i I) V

	// Add combines two batch values.
	Add(a, b V) V

	// Zero returns the additive identity for Add.
	Zero() V

	// ToF64 converts a value for downstream statistics. The conversion
	// is lossless for any value a realistic run can accumulate.
	ToF64(v V) float64

	// FormattedValue converts a value into a displayable reading,
	// dividing by the throughput basis if one is given.
	FormattedValue(v V, tp Throughput) FormattedReading
}

// A Throughput describes how much input one measured sample consumed.
// Supplying one to FormattedValue reports counts as a per-byte or
// per-element rate instead of an absolute count. The zero Throughput
// means no basis: values are reported as-is.
type Throughput struct {
	unit string
	n    uint64
}

// PerByte reports values per byte of input processed.
func PerByte(n uint64) Throughput { return Throughput{"byte", n} }

// PerElement reports values per element of input processed.
func PerElement(n uint64) Throughput { return Throughput{"element", n} }

// A FormattedReading is a displayable measurement: a numeric value and
// the unit it is expressed in. No magnitude normalization is applied;
// the value is the raw count or its throughput ratio.
type FormattedReading struct {
	Value float64
	Unit  string
}

func (r FormattedReading) String() string {
	return fmt.Sprintf("%.4f %s", r.Value, r.Unit)
}

// formatCount builds a FormattedReading for v under the given unit
// label and throughput basis. A basis of zero bytes or elements is
// treated as no basis.
func formatCount(v Count, label string, tp Throughput) FormattedReading {
	if tp.n == 0 {
		return FormattedReading{float64(v), label}
	}
	return FormattedReading{float64(v) / float64(tp.n), label + "/" + tp.unit}
}
