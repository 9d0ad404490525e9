// Copyright 2025 The go-perfmeasure Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package perf

import "fmt"

// A ConfigError reports that a counter could not be opened for an
// event. It is returned only by [OpenSession], and it is not
// recoverable: the event selector is invalid, the process lacks
// permission, or the hardware has no free counter slot.
type ConfigError struct {
	Event string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("cannot open counter for event %s: %v", e.Event, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// A MeasurementError reports that a counter operation failed after the
// session was successfully opened. A failed stop or read leaves the
// counter state untrustworthy, so callers must treat this as fatal for
// the whole run rather than retrying; every value accumulated so far is
// suspect.
type MeasurementError struct {
	Event string
	Op    string // "disable" or "read"
	Err   error
}

func (e *MeasurementError) Error() string {
	return fmt.Sprintf("counter %s failed for event %s: %v", e.Op, e.Event, e.Err)
}

func (e *MeasurementError) Unwrap() error {
	return e.Err
}
